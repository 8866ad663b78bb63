package components

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/events"
	"github.com/betbot/dexdesk/internal/exchange"
	"github.com/betbot/dexdesk/internal/wallet"
)

var log = logrus.WithField("module", "ui.components")

// retryInterval 传输层未就绪时的自愈重试间隔
const retryInterval = time.Second

// Helper 订单组件装配助手
// 把视图组件和定价/交易所/钱包三个服务粘起来：订阅集中在这里，
// 释放也集中在这里。所有 Setup* 都幂等，重复调用不会叠加订阅
type Helper struct {
	transport Transport
	prices    PriceSource
	account   Account
	toasts    Notifier

	onRefresh func() error

	mu            sync.Mutex
	closed        bool
	servicesReady bool
	pricingSub    uuid.UUID
	hasPricing    bool
	ordersSub     *events.Subscription
	errorSub      *events.Subscription
	walletHandle  wallet.ListenerHandle
	hasWallet     bool
	retryTimers   []*time.Timer

	// websocket 订单事件订阅（created/filled/canceled）
	wsSubs events.Bag
}

// NewHelper 创建装配助手
// onRefresh 在任何会改变表格内容的事件后被调用（订单流、价格刷新、账户切换）
func NewHelper(transport Transport, prices PriceSource, account Account, toasts Notifier, onRefresh func() error) *Helper {
	return &Helper{
		transport: transport,
		prices:    prices,
		account:   account,
		toasts:    toasts,
		onRefresh: onRefresh,
	}
}

// SetupServices 装配定价与订单缓存订阅（幂等）
func (h *Helper) SetupServices() {
	h.mu.Lock()
	if h.closed || h.servicesReady {
		h.mu.Unlock()
		return
	}
	h.servicesReady = true
	h.mu.Unlock()

	pricingSub := h.prices.Subscribe(func() {
		h.refresh("价格刷新")
	})
	ordersSub := h.transport.Subscribe(events.EventOrdersUpdated, func(_ interface{}) {
		h.refresh("订单缓存更新")
	})

	h.mu.Lock()
	h.pricingSub = pricingSub
	h.hasPricing = true
	h.ordersSub = ordersSub
	h.mu.Unlock()
	log.Debug("✅ 服务订阅已装配")
}

// SetupErrorHandling 装配交易所错误事件处理
// 传输层未就绪时 1 秒后自动重试，直到就绪或组件清理
func (h *Helper) SetupErrorHandling() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if !h.transport.Ready() {
		t := time.AfterFunc(retryInterval, h.SetupErrorHandling)
		h.retryTimers = append(h.retryTimers, t)
		h.mu.Unlock()
		log.Debug("🔄 传输层未就绪，1 秒后重试错误处理装配")
		return
	}
	if h.errorSub != nil {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	sub := h.transport.Subscribe(events.EventError, func(payload interface{}) {
		ev, ok := payload.(events.ErrorEvent)
		if !ok {
			return
		}
		h.handleError(ev)
	})

	h.mu.Lock()
	if h.errorSub != nil || h.closed {
		old := sub
		h.mu.Unlock()
		old.Release()
		return
	}
	h.errorSub = sub
	h.mu.Unlock()
	log.Debug("✅ 错误处理已装配")
}

// handleError 错误码 -> 用户提示；限流错误额外切换备用节点
func (h *Helper) handleError(ev events.ErrorEvent) {
	msg := exchange.UserMessage(ev.Code, ev.Message)
	if exchange.IsRateLimited(ev.Code, ev.Message) {
		log.Warnf("⚠️ 命中限流，切换备用节点: code=%s msg=%s", ev.Code, ev.Message)
		h.transport.UseFallbackEndpoints()
		h.toasts.ShowWarning("请求过于频繁，已切换备用节点", 0)
		return
	}
	log.Warnf("交易所错误: code=%s msg=%s", ev.Code, ev.Message)
	h.toasts.ShowError(msg, 0)
}

// SetupWebSocket 装配订单流事件订阅（幂等：先清后订，不叠加）
func (h *Helper) SetupWebSocket() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	// clear-then-set：重复调用只保留最新一组订阅
	h.wsSubs.ReleaseAll()

	for _, ev := range []events.Event{
		events.EventOrderCreated,
		events.EventOrderFilled,
		events.EventOrderCanceled,
	} {
		ev := ev
		h.wsSubs.Add(h.transport.Subscribe(ev, h.guard(string(ev))))
	}
	log.Debug("✅ 订单流订阅已装配")
}

// guard 包装订单流处理器：单个事件 panic 不应拖垮事件中心
func (h *Helper) guard(name string) events.Handler {
	return func(_ interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("订单流处理器 panic: event=%s err=%v", name, r)
				h.toasts.ShowError("订单更新处理失败，显示可能滞后", 0)
			}
		}()
		h.refresh(name)
	}
}

// InitWebSocket 初始化订单流
// 传输层未就绪时 1 秒后重试；就绪后装配订阅并安装钱包监听
func (h *Helper) InitWebSocket() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if !h.transport.Ready() {
		t := time.AfterFunc(retryInterval, h.InitWebSocket)
		h.retryTimers = append(h.retryTimers, t)
		h.mu.Unlock()
		log.Debug("🔄 传输层未就绪，1 秒后重试订单流初始化")
		return
	}
	needWallet := !h.hasWallet
	h.mu.Unlock()

	h.SetupWebSocket()

	if needWallet {
		h.installWalletListener()
	}
}

// installWalletListener 安装钱包状态监听（账户变化触发整表刷新）
func (h *Helper) installWalletListener() {
	handle := h.account.AddListener(func(ev wallet.Event, _ common.Address) {
		log.Infof("钱包状态变化: %s", ev)
		h.refresh("钱包状态变化")
	})
	h.mu.Lock()
	h.walletHandle = handle
	h.hasWallet = true
	h.mu.Unlock()
}

// refresh 执行一次刷新回调
func (h *Helper) refresh(reason string) {
	if h.onRefresh == nil {
		return
	}
	if err := h.onRefresh(); err != nil {
		log.Errorf("刷新失败 (%s): %v", reason, err)
	}
}

// Cleanup 释放全部订阅与定时器（幂等，可重复调用）
func (h *Helper) Cleanup() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	timers := h.retryTimers
	h.retryTimers = nil
	ordersSub, errorSub := h.ordersSub, h.errorSub
	h.ordersSub, h.errorSub = nil, nil
	hasPricing, pricingSub := h.hasPricing, h.pricingSub
	h.hasPricing = false
	hasWallet, walletHandle := h.hasWallet, h.walletHandle
	h.hasWallet = false
	h.servicesReady = false
	h.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	ordersSub.Release()
	errorSub.Release()
	h.wsSubs.ReleaseAll()
	if hasPricing {
		h.prices.Unsubscribe(pricingSub)
	}
	if hasWallet {
		h.account.RemoveListener(walletHandle)
	}
	log.Debug("订单组件装配已清理")
}
