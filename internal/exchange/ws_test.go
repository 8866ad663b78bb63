package exchange

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/dexdesk/internal/events"
)

func newDecodeClient() (*FeedClient, *OrderCache, *events.Hub) {
	cache := NewOrderCache()
	hub := events.NewHub()
	c := NewFeedClient("ws://unused", cache, hub, nil)
	return c, cache, hub
}

func TestHandleFrameOrderCreated(t *testing.T) {
	c, cache, hub := newDecodeClient()

	var created, updated bool
	hub.Subscribe(events.EventOrderCreated, func(interface{}) { created = true })
	hub.Subscribe(events.EventOrdersUpdated, func(interface{}) { updated = true })

	c.handleFrame([]byte(`{
		"type": "OrderCreated",
		"order": {
			"id": 7,
			"maker": "0x1111111111111111111111111111111111111111",
			"taker": "0x0000000000000000000000000000000000000000",
			"sell_token": "0x1000000000000000000000000000000000000002",
			"buy_token": "0x1000000000000000000000000000000000000001",
			"sell_amount": "1000000000000000000",
			"buy_amount": "2500000000",
			"expires_at": 9999999999
		}
	}`))

	o, ok := cache.Get(7)
	if !ok {
		t.Fatalf("解码后的订单应写入缓存")
	}
	if !o.SellAmount.Equal(decimal.RequireFromString("1000000000000000000")) {
		t.Errorf("卖出数量精度丢失: %s", o.SellAmount)
	}
	if !o.IsOpen() {
		t.Errorf("零地址 taker 应是开放订单")
	}
	if !created || !updated {
		t.Errorf("应广播 OrderCreated 和 ordersUpdated: created=%v updated=%v", created, updated)
	}
}

func TestHandleFrameFilledRemovesFromCache(t *testing.T) {
	c, cache, _ := newDecodeClient()

	c.handleFrame([]byte(`{"type":"OrderCreated","order":{"id":1,"maker":"0x11","sell_amount":"1","buy_amount":"2"}}`))
	if cache.Len() != 1 {
		t.Fatalf("订单应入缓存")
	}

	c.handleFrame([]byte(`{"type":"OrderFilled","order":{"id":1,"maker":"0x11","sell_amount":"1","buy_amount":"2"}}`))
	if cache.Len() != 0 {
		t.Fatalf("成交订单应移出缓存")
	}
	if s, ok := cache.TerminalStatus(1); !ok || s != "Filled" {
		t.Errorf("终态应为 Filled: %v (%v)", s, ok)
	}
}

func TestHandleFrameSyncComplete(t *testing.T) {
	c, cache, hub := newDecodeClient()

	var syncOrders int
	hub.Subscribe(events.EventOrderSyncComplete, func(payload interface{}) {
		ev := payload.(events.SyncCompleteEvent)
		syncOrders = len(ev.Orders)
	})

	c.handleFrame([]byte(`{
		"type": "orderSyncComplete",
		"orders": [
			{"id": 1, "maker": "0x11", "sell_amount": "1", "buy_amount": "2"},
			{"id": 2, "maker": "0x11", "sell_amount": "bogus", "buy_amount": "2"},
			{"id": 3, "maker": "0x11", "sell_amount": "3", "buy_amount": "4"}
		]
	}`))

	if cache.Len() != 2 {
		t.Errorf("坏订单应跳过，好订单入缓存: %d", cache.Len())
	}
	if syncOrders != 2 {
		t.Errorf("同步事件应只带解码成功的订单: %d", syncOrders)
	}
}

func TestHandleFrameErrorEvent(t *testing.T) {
	c, _, hub := newDecodeClient()

	var got events.ErrorEvent
	hub.Subscribe(events.EventError, func(payload interface{}) {
		got = payload.(events.ErrorEvent)
	})

	c.handleFrame([]byte(`{"type":"error","code":"RATE_LIMITED","message":"too many requests"}`))

	if got.Code != CodeRateLimited || got.Message != "too many requests" {
		t.Errorf("错误事件透传不符: %+v", got)
	}
}

func TestHandleFrameIgnoresGarbage(t *testing.T) {
	c, cache, _ := newDecodeClient()

	c.handleFrame([]byte(`not json at all`))
	c.handleFrame([]byte(`{"type":"totally-unknown"}`))
	c.handleFrame([]byte(`{"type":"OrderCreated"}`)) // 缺订单载荷

	if cache.Len() != 0 {
		t.Errorf("垃圾帧不应污染缓存")
	}
}

func TestWireOrderDealMetricsOptional(t *testing.T) {
	w := &wireOrder{
		ID: 1, Maker: "0x11",
		SellAmount: "1", BuyAmount: "2",
		DealRatio:   1.25,
		SellDisplay: "1", BuyDisplay: "2", SellUSD: "2500", BuyUSD: "3125",
	}
	o, err := w.toDomain()
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if !o.HasDeal() || o.Deal.Ratio != 1.25 {
		t.Errorf("deal 指标应解码: %+v", o.Deal)
	}

	// 部分字段缺失时整体放弃
	w.BuyUSD = ""
	o, err = w.toDomain()
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if o.Deal != nil {
		t.Errorf("指标不完整时应整体放弃")
	}
}
