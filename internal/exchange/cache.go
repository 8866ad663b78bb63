package exchange

import (
	"sort"
	"sync"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/pkg/sigchan"
)

// OrderCache 本地活跃订单缓存（订单 ID -> 订单）
// 由同步服务独占写入；视图组件只做快照读取，每次刷新都重新派生过滤视图
type OrderCache struct {
	mu     sync.RWMutex
	orders map[int64]*domain.Order

	// 订单被标记为成交/取消后从缓存移除，这里保留终态用于状态查询
	terminal map[int64]domain.OrderStatus

	// 信号 channel：缓存任意变化时触发
	C *sigchan.Chan
}

// NewOrderCache 创建订单缓存
func NewOrderCache() *OrderCache {
	return &OrderCache{
		orders:   make(map[int64]*domain.Order),
		terminal: make(map[int64]domain.OrderStatus),
		C:        sigchan.New(1),
	}
}

// Put 写入/覆盖一个订单快照
func (c *OrderCache) Put(order *domain.Order) {
	if order == nil {
		return
	}
	c.mu.Lock()
	c.orders[order.ID] = order
	delete(c.terminal, order.ID)
	c.mu.Unlock()
	c.C.Emit()
}

// MarkFilled 标记订单成交并移出活跃集合
func (c *OrderCache) MarkFilled(id int64) {
	c.markTerminal(id, domain.OrderStatusFilled)
}

// MarkCanceled 标记订单取消并移出活跃集合
func (c *OrderCache) MarkCanceled(id int64) {
	c.markTerminal(id, domain.OrderStatusCanceled)
}

func (c *OrderCache) markTerminal(id int64, status domain.OrderStatus) {
	c.mu.Lock()
	delete(c.orders, id)
	c.terminal[id] = status
	c.mu.Unlock()
	c.C.Emit()
}

// Get 按 ID 读取订单
func (c *OrderCache) Get(id int64) (*domain.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[id]
	return o, ok
}

// TerminalStatus 查询已离开缓存的订单终态
func (c *OrderCache) TerminalStatus(id int64) (domain.OrderStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.terminal[id]
	return s, ok
}

// Snapshot 返回当前全部订单的快照（按 ID 升序，稳定顺序便于测试）
func (c *OrderCache) Snapshot() []*domain.Order {
	c.mu.RLock()
	out := make([]*domain.Order, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len 返回活跃订单数量
func (c *OrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}

// Clear 清空缓存（重连全量同步前调用）
func (c *OrderCache) Clear() {
	c.mu.Lock()
	c.orders = make(map[int64]*domain.Order)
	c.mu.Unlock()
	c.C.Emit()
}
