package events

import (
	"time"

	"github.com/betbot/dexdesk/internal/domain"
)

// Event 事件名称
type Event string

const (
	// EventOrderCreated 新订单写入缓存
	EventOrderCreated Event = "OrderCreated"
	// EventOrderFilled 订单成交
	EventOrderFilled Event = "OrderFilled"
	// EventOrderCanceled 订单取消
	EventOrderCanceled Event = "OrderCanceled"
	// EventOrderSyncComplete 一轮链上事件同步完成（批量）
	EventOrderSyncComplete Event = "orderSyncComplete"
	// EventOrdersUpdated 订单缓存发生任意变化（粗粒度刷新信号）
	EventOrdersUpdated Event = "ordersUpdated"
	// EventError 传输层错误
	EventError Event = "error"
)

// OrderEvent 单订单事件载荷
type OrderEvent struct {
	Order     *domain.Order
	Timestamp time.Time
}

// SyncCompleteEvent 批量同步完成事件载荷
type SyncCompleteEvent struct {
	Orders    []*domain.Order // 本轮同步涉及的订单
	Timestamp time.Time
}

// ErrorEvent 传输层错误事件载荷
type ErrorEvent struct {
	Code    string // 错误码（可能为空）
	Message string // 原始错误消息
}
