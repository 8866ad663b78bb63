package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/events"
	"github.com/betbot/dexdesk/pkg/cache"
)

var log = logrus.WithField("module", "exchange")

// Service 交易所同步服务门面
// 组合订单缓存、WebSocket 订阅和只读 REST，向视图层暴露窄接口：
// 状态查询 / 可吃单判断 / token 元数据 / 事件订阅 / 吃单与撤单入口
type Service struct {
	cache *OrderCache
	feed  *FeedClient
	rest  *RESTClient
	hub   *events.Hub

	// token 元数据 TTL 缓存（元数据基本不变，1 小时足够）
	tokens *cache.InMemoryCache[common.Address, *domain.TokenInfo]
}

// NewService 创建同步服务
// feed/rest 允许为 nil（测试场景：只用本地缓存）
func NewService(orderCache *OrderCache, feed *FeedClient, rest *RESTClient, hub *events.Hub) *Service {
	if orderCache == nil {
		orderCache = NewOrderCache()
	}
	if hub == nil {
		hub = events.NewHub()
	}
	return &Service{
		cache:  orderCache,
		feed:   feed,
		rest:   rest,
		hub:    hub,
		tokens: cache.NewInMemoryCache[common.Address, *domain.TokenInfo](1 * time.Hour),
	}
}

// OrderCache 返回活跃订单缓存（只读使用）
func (s *Service) OrderCache() *OrderCache {
	return s.cache
}

// Hub 返回事件中心
func (s *Service) Hub() *events.Hub {
	return s.hub
}

// Snapshot 返回活跃订单快照
func (s *Service) Snapshot() []*domain.Order {
	return s.cache.Snapshot()
}

// GetOrder 按 ID 读取活跃订单
func (s *Service) GetOrder(id int64) (*domain.Order, bool) {
	return s.cache.Get(id)
}

// Ready 传输是否可用
func (s *Service) Ready() bool {
	if s.feed == nil {
		// 无 feed 的本地模式视为就绪
		return true
	}
	return s.feed.Ready()
}

// Start 启动底层订阅
func (s *Service) Start(ctx context.Context) error {
	if s.feed == nil {
		return nil
	}
	return s.feed.Start(ctx)
}

// Stop 停止底层订阅
func (s *Service) Stop() {
	if s.feed != nil {
		s.feed.Stop()
	}
	s.tokens.Stop()
}

// Subscribe 订阅事件（返回可释放句柄）
func (s *Service) Subscribe(ev events.Event, fn events.Handler) *events.Subscription {
	return s.hub.Subscribe(ev, fn)
}

// GetOrderStatus 计算订单当前状态
// 成交/取消来自缓存终态记录；其余按过期时间判定
func (s *Service) GetOrderStatus(o *domain.Order) domain.OrderStatus {
	if o == nil {
		return domain.OrderStatusCanceled
	}
	if status, ok := s.cache.TerminalStatus(o.ID); ok {
		return status
	}
	if o.IsExpiredAt(time.Now()) {
		return domain.OrderStatusExpired
	}
	return domain.OrderStatusActive
}

// CanFillOrder 判断 viewer 是否有资格吃这个订单
// 规则：订单活跃；viewer 非零且不是挂单方；订单开放或指定吃单方就是 viewer
func (s *Service) CanFillOrder(o *domain.Order, viewer common.Address) bool {
	if o == nil || viewer == (common.Address{}) {
		return false
	}
	if s.GetOrderStatus(o) != domain.OrderStatusActive {
		return false
	}
	if o.Maker == viewer {
		return false
	}
	return o.IsOpen() || o.Taker == viewer
}

// SetTokenInfo 预置 token 元数据（启动预热与测试）
func (s *Service) SetTokenInfo(info *domain.TokenInfo) {
	if info != nil {
		s.tokens.Set(info.Address, info, 0)
	}
}

// GetTokenInfo 获取 token 元数据（缓存优先）
func (s *Service) GetTokenInfo(ctx context.Context, addr common.Address) (*domain.TokenInfo, error) {
	if info, ok := s.tokens.Get(addr); ok {
		return info, nil
	}
	if s.rest == nil {
		return nil, fmt.Errorf("token 元数据不可用: %s", addr.Hex())
	}
	info, err := s.rest.GetTokenInfo(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.tokens.Set(addr, info, 0)
	return info, nil
}

// FillOrder 提交吃单
// 传输层确认后做本地记账（移出缓存、广播事件）；链上执行由交易所侧完成
func (s *Service) FillOrder(ctx context.Context, orderID int64, taker common.Address) error {
	o, ok := s.cache.Get(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	if !s.CanFillOrder(o, taker) {
		return &ActionError{Code: CodeInvalidOrder, Message: "订单当前不可吃"}
	}
	if s.rest != nil {
		if err := s.rest.SubmitFill(ctx, orderID, taker); err != nil {
			return err
		}
	}
	s.cache.MarkFilled(orderID)
	s.hub.Emit(events.EventOrderFilled, events.OrderEvent{Order: o, Timestamp: time.Now()})
	s.hub.Emit(events.EventOrdersUpdated, nil)
	log.Infof("✅ 订单已吃单: id=%d taker=%s", orderID, taker.Hex())
	return nil
}

// CancelOrder 提交撤单（只有挂单方可撤）
func (s *Service) CancelOrder(ctx context.Context, orderID int64, maker common.Address) error {
	o, ok := s.cache.Get(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	if o.Maker != maker {
		return &ActionError{Code: CodeUnauthorized, Message: "只有挂单方可以撤单"}
	}
	if s.rest != nil {
		if err := s.rest.SubmitCancel(ctx, orderID, maker); err != nil {
			return err
		}
	}
	s.cache.MarkCanceled(orderID)
	s.hub.Emit(events.EventOrderCanceled, events.OrderEvent{Order: o, Timestamp: time.Now()})
	s.hub.Emit(events.EventOrdersUpdated, nil)
	log.Infof("✅ 订单已撤单: id=%d maker=%s", orderID, maker.Hex())
	return nil
}

// UseFallbackEndpoints 触发只读节点轮换（限流降级路径）
func (s *Service) UseFallbackEndpoints() {
	if s.rest != nil {
		s.rest.RotateEndpoint()
	}
}
