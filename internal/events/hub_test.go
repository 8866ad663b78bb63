package events

import (
	"sync"
	"testing"
)

func TestSubscribeAndEmit(t *testing.T) {
	hub := NewHub()

	var got []interface{}
	hub.Subscribe(EventOrderCreated, func(payload interface{}) {
		got = append(got, payload)
	})

	hub.Emit(EventOrderCreated, 1)
	hub.Emit(EventOrderCreated, 2)
	hub.Emit(EventOrderFilled, 3) // 不同事件，不应触发

	if len(got) != 2 {
		t.Fatalf("期望收到 2 次，实际 %d 次", len(got))
	}
}

func TestSubscriptionReleaseIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(EventOrderCreated, func(interface{}) {})

	if hub.HandlerCount(EventOrderCreated) != 1 {
		t.Fatalf("订阅后处理器数量应为 1")
	}

	sub.Release()
	sub.Release()
	sub.Release()

	if hub.HandlerCount(EventOrderCreated) != 0 {
		t.Fatalf("释放后处理器数量应为 0，实际 %d", hub.HandlerCount(EventOrderCreated))
	}
}

func TestNilSubscriptionRelease(t *testing.T) {
	var sub *Subscription
	sub.Release() // 不应 panic
}

func TestBagReleaseAll(t *testing.T) {
	hub := NewHub()
	var bag Bag

	bag.Add(hub.Subscribe(EventOrderCreated, func(interface{}) {}))
	bag.Add(hub.Subscribe(EventOrderFilled, func(interface{}) {}))
	bag.Add(hub.Subscribe(EventOrderCanceled, func(interface{}) {}))
	bag.Add(nil)

	if bag.Len() != 3 {
		t.Fatalf("期望 3 个句柄，实际 %d", bag.Len())
	}

	bag.ReleaseAll()
	bag.ReleaseAll() // 幂等

	if bag.Len() != 0 {
		t.Errorf("释放后句柄数应为 0")
	}
	for _, ev := range []Event{EventOrderCreated, EventOrderFilled, EventOrderCanceled} {
		if n := hub.HandlerCount(ev); n != 0 {
			t.Errorf("事件 %s 仍有 %d 个处理器", ev, n)
		}
	}
}

func TestEmitAllowsResubscribeInHandler(t *testing.T) {
	hub := NewHub()

	// 处理器内再订阅不应死锁
	done := make(chan struct{})
	hub.Subscribe(EventOrderCreated, func(interface{}) {
		hub.Subscribe(EventOrderFilled, func(interface{}) {})
		close(done)
	})
	hub.Emit(EventOrderCreated, nil)
	<-done

	if hub.HandlerCount(EventOrderFilled) != 1 {
		t.Fatalf("处理器内的订阅应生效")
	}
}

func TestConcurrentSubscribeEmit(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe(EventOrdersUpdated, func(interface{}) {})
			sub.Release()
		}()
		go func() {
			defer wg.Done()
			hub.Emit(EventOrdersUpdated, nil)
		}()
	}
	wg.Wait()
}
