package exchange

import (
	"testing"
	"time"

	"github.com/betbot/dexdesk/internal/domain"
)

func makeOrder(id int64) *domain.Order {
	return &domain.Order{
		ID:        id,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
}

func TestCachePutGet(t *testing.T) {
	c := NewOrderCache()
	c.Put(makeOrder(1))
	c.Put(makeOrder(2))

	if c.Len() != 2 {
		t.Fatalf("期望 2 个订单，实际 %d", c.Len())
	}
	if _, ok := c.Get(1); !ok {
		t.Fatalf("订单 1 应存在")
	}
	if _, ok := c.Get(99); ok {
		t.Fatalf("订单 99 不应存在")
	}
}

func TestCacheSnapshotSorted(t *testing.T) {
	c := NewOrderCache()
	for _, id := range []int64{5, 1, 3, 2, 4} {
		c.Put(makeOrder(id))
	}
	snap := c.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("快照应有 5 个订单，实际 %d", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].ID >= snap[i].ID {
			t.Fatalf("快照应按 ID 升序: %d >= %d", snap[i-1].ID, snap[i].ID)
		}
	}
}

func TestCacheTerminalStatus(t *testing.T) {
	c := NewOrderCache()
	c.Put(makeOrder(1))
	c.Put(makeOrder(2))

	c.MarkFilled(1)
	c.MarkCanceled(2)

	if c.Len() != 0 {
		t.Fatalf("终态订单应移出活跃集合")
	}
	if s, ok := c.TerminalStatus(1); !ok || s != domain.OrderStatusFilled {
		t.Errorf("订单 1 终态应为 Filled，实际 %v (%v)", s, ok)
	}
	if s, ok := c.TerminalStatus(2); !ok || s != domain.OrderStatusCanceled {
		t.Errorf("订单 2 终态应为 Canceled，实际 %v (%v)", s, ok)
	}

	// 重新 Put 清掉终态（全量同步把订单带回来）
	c.Put(makeOrder(1))
	if _, ok := c.TerminalStatus(1); ok {
		t.Errorf("重新写入后终态应被清除")
	}
}

func TestCacheSignalOnChange(t *testing.T) {
	c := NewOrderCache()
	c.Put(makeOrder(1))
	select {
	case <-c.C.C():
	default:
		t.Fatalf("写入后应有变化信号")
	}
}
