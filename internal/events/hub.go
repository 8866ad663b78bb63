package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "events")

// Handler 事件处理函数
type Handler func(payload interface{})

// Hub 进程内事件中心
// 订阅返回带句柄的 Subscription，组件把句柄收进自己的 Bag，
// 清理时统一 ReleaseAll，保证幂等、可重复调用
type Hub struct {
	mu       sync.RWMutex
	handlers map[Event]map[uuid.UUID]Handler
}

// NewHub 创建事件中心
func NewHub() *Hub {
	return &Hub{
		handlers: make(map[Event]map[uuid.UUID]Handler),
	}
}

// Subscribe 订阅事件，返回可释放的订阅句柄
func (h *Hub) Subscribe(ev Event, fn Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handlers[ev] == nil {
		h.handlers[ev] = make(map[uuid.UUID]Handler)
	}
	id := uuid.New()
	h.handlers[ev][id] = fn
	return &Subscription{hub: h, event: ev, id: id}
}

// Emit 发布事件
// 处理器列表在锁内拷贝、锁外执行，避免处理器内再订阅/退订造成死锁
func (h *Hub) Emit(ev Event, payload interface{}) {
	h.mu.RLock()
	fns := make([]Handler, 0, len(h.handlers[ev]))
	for _, fn := range h.handlers[ev] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// HandlerCount 返回某事件当前的处理器数量（测试/诊断用）
func (h *Hub) HandlerCount(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[ev])
}

func (h *Hub) release(ev Event, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.handlers[ev]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(h.handlers, ev)
		}
	}
}

// Subscription 订阅句柄
type Subscription struct {
	hub   *Hub
	event Event
	id    uuid.UUID

	mu       sync.Mutex
	released bool
}

// Release 释放订阅（幂等，可重复调用）
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.hub.release(s.event, s.id)
}

// Bag 订阅句柄集合（组件级的释放清单）
type Bag struct {
	mu   sync.Mutex
	subs []*Subscription
}

// Add 收纳一个订阅句柄
func (b *Bag) Add(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
}

// ReleaseAll 释放全部句柄并清空（幂等）
func (b *Bag) ReleaseAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.Release()
	}
	if len(subs) > 0 {
		log.Debugf("已释放 %d 个事件订阅", len(subs))
	}
}

// Len 返回当前持有的句柄数量
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
