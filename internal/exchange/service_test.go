package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/events"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newTestService() *Service {
	// 本地模式：无 feed、无 rest
	return NewService(nil, nil, nil, nil)
}

func activeOrder(id int64, maker, taker common.Address) *domain.Order {
	return &domain.Order{
		ID:        id,
		Maker:     maker,
		Taker:     taker,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
}

func TestGetOrderStatus(t *testing.T) {
	s := newTestService()

	active := activeOrder(1, alice, common.Address{})
	s.OrderCache().Put(active)
	if got := s.GetOrderStatus(active); got != domain.OrderStatusActive {
		t.Errorf("未过期订单状态应为 Active，实际 %s", got)
	}

	expired := &domain.Order{ID: 2, Maker: alice, ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	s.OrderCache().Put(expired)
	if got := s.GetOrderStatus(expired); got != domain.OrderStatusExpired {
		t.Errorf("过期订单状态应为 Expired，实际 %s", got)
	}

	s.OrderCache().Put(active)
	s.OrderCache().MarkFilled(1)
	if got := s.GetOrderStatus(active); got != domain.OrderStatusFilled {
		t.Errorf("成交订单状态应为 Filled，实际 %s", got)
	}
}

func TestCanFillOrder(t *testing.T) {
	s := newTestService()

	open := activeOrder(1, alice, common.Address{})
	targeted := activeOrder(2, alice, bob)
	expired := &domain.Order{ID: 3, Maker: alice, ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	s.OrderCache().Put(open)
	s.OrderCache().Put(targeted)
	s.OrderCache().Put(expired)

	cases := []struct {
		name   string
		order  *domain.Order
		viewer common.Address
		want   bool
	}{
		{"开放订单任何人可吃", open, bob, true},
		{"挂单方不能吃自己的单", open, alice, false},
		{"零地址 viewer 不可吃", open, common.Address{}, false},
		{"定向订单指定人可吃", targeted, bob, true},
		{"定向订单其他人不可吃", targeted, carol, false},
		{"过期订单不可吃", expired, bob, false},
		{"nil 订单不可吃", nil, bob, false},
	}
	for _, c := range cases {
		if got := s.CanFillOrder(c.order, c.viewer); got != c.want {
			t.Errorf("%s: CanFillOrder = %v, 期望 %v", c.name, got, c.want)
		}
	}
}

func TestFillOrderLocalBookkeeping(t *testing.T) {
	s := newTestService()
	o := activeOrder(1, alice, common.Address{})
	s.OrderCache().Put(o)

	var filled, updated bool
	s.Subscribe(events.EventOrderFilled, func(interface{}) { filled = true })
	s.Subscribe(events.EventOrdersUpdated, func(interface{}) { updated = true })

	if err := s.FillOrder(context.Background(), 1, bob); err != nil {
		t.Fatalf("吃单失败: %v", err)
	}
	if !filled || !updated {
		t.Errorf("吃单后应广播 OrderFilled 和 ordersUpdated: filled=%v updated=%v", filled, updated)
	}
	if _, ok := s.GetOrder(1); ok {
		t.Errorf("吃单后订单应移出活跃缓存")
	}
	if got := s.GetOrderStatus(o); got != domain.OrderStatusFilled {
		t.Errorf("吃单后状态应为 Filled，实际 %s", got)
	}
}

func TestFillOrderRejectsIneligible(t *testing.T) {
	s := newTestService()
	o := activeOrder(1, alice, common.Address{})
	s.OrderCache().Put(o)

	if err := s.FillOrder(context.Background(), 1, alice); err == nil {
		t.Fatalf("挂单方吃自己的单应报错")
	}
	if err := s.FillOrder(context.Background(), 99, bob); err != ErrOrderNotFound {
		t.Fatalf("不存在的订单应返回 ErrOrderNotFound，实际 %v", err)
	}
}

func TestCancelOrderOnlyMaker(t *testing.T) {
	s := newTestService()
	o := activeOrder(1, alice, common.Address{})
	s.OrderCache().Put(o)

	if err := s.CancelOrder(context.Background(), 1, bob); err == nil {
		t.Fatalf("非挂单方撤单应报错")
	}
	if err := s.CancelOrder(context.Background(), 1, alice); err != nil {
		t.Fatalf("挂单方撤单失败: %v", err)
	}
	if got := s.GetOrderStatus(o); got != domain.OrderStatusCanceled {
		t.Errorf("撤单后状态应为 Canceled，实际 %s", got)
	}
}

func TestGetTokenInfoCached(t *testing.T) {
	s := newTestService()
	s.SetTokenInfo(&domain.TokenInfo{Address: alice, Symbol: "USDC", Decimals: 6})

	info, err := s.GetTokenInfo(context.Background(), alice)
	if err != nil {
		t.Fatalf("预置元数据读取失败: %v", err)
	}
	if info.Symbol != "USDC" {
		t.Errorf("符号不符: %s", info.Symbol)
	}

	// 未预置且无 REST 客户端时应报错
	if _, err := s.GetTokenInfo(context.Background(), bob); err == nil {
		t.Errorf("缺失元数据且无传输层时应报错")
	}
}
