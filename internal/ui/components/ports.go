package components

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/events"
	"github.com/betbot/dexdesk/internal/wallet"
)

// Transport 视图组件消费的交易所同步服务窄接口
// 由 exchange.Service 实现；测试里用本地假实现
type Transport interface {
	Ready() bool
	Snapshot() []*domain.Order
	GetOrder(id int64) (*domain.Order, bool)
	GetOrderStatus(o *domain.Order) domain.OrderStatus
	CanFillOrder(o *domain.Order, viewer common.Address) bool
	GetTokenInfo(ctx context.Context, addr common.Address) (*domain.TokenInfo, error)
	Subscribe(ev events.Event, fn events.Handler) *events.Subscription
	FillOrder(ctx context.Context, orderID int64, taker common.Address) error
	CancelOrder(ctx context.Context, orderID int64, maker common.Address) error
	UseFallbackEndpoints()
}

// PriceSource 定价服务窄接口
type PriceSource interface {
	GetPrice(token common.Address) (decimal.Decimal, bool)
	IsPriceEstimated(token common.Address) bool
	Subscribe(fn func()) uuid.UUID
	Unsubscribe(id uuid.UUID)
}

// Account 钱包窄接口
type Account interface {
	GetAccount() (common.Address, bool)
	AddListener(fn wallet.Listener) wallet.ListenerHandle
	RemoveListener(h wallet.ListenerHandle)
}

// Notifier 用户提示窄接口
type Notifier interface {
	ShowError(message string, duration time.Duration)
	ShowSuccess(message string, duration time.Duration)
	ShowWarning(message string, duration time.Duration)
	ShowInfo(message string, duration time.Duration)
}

// ActionRecorder 吃单/撤单动作记录（可选依赖，nil 安全由调用方保证）
type ActionRecorder interface {
	Record(ctx context.Context, kind string, orderID int64, ok bool, message string) error
}
