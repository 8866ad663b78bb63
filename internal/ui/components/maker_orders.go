package components

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/events"
	"github.com/betbot/dexdesk/internal/ui/table"
)

// 空态文案
const (
	msgNoOwnOrders       = "当前没有挂单"
	msgNoActiveOwnOrders = "没有活跃的挂单，试试关闭只看活跃"
)

const cancelTimeout = 30 * time.Second

// MakerOrdersView 自有挂单视图
// 只展示 viewer 自己挂的订单，动作列是撤单。管线与可吃订单视图
// 相同，差别只在过滤谓词和动作语义
type MakerOrdersView struct {
	transport Transport
	prices    PriceSource
	account   Account
	toasts    Notifier
	history   ActionRecorder

	renderer *table.Renderer
	helper   *Helper

	initGate    gate
	refreshGate gate
	initialized atomic.Bool

	cancelInFlight atomic.Bool
	syncSub        *events.Subscription
}

// NewMakerOrdersView 创建自有挂单视图
func NewMakerOrdersView(transport Transport, prices PriceSource, account Account, toasts Notifier, history ActionRecorder, defaultPageSize int) *MakerOrdersView {
	v := &MakerOrdersView{
		transport: transport,
		prices:    prices,
		account:   account,
		toasts:    toasts,
		history:   history,
	}
	v.renderer = table.NewRenderer(table.Config{
		Lookup:          transport.GetOrder,
		Status:          transport.GetOrderStatus,
		UpdateAction:    v.updateActionColumn,
		DefaultPageSize: defaultPageSize,
	})
	v.helper = NewHelper(transport, prices, account, toasts, v.RefreshOrdersView)
	return v
}

// Renderer 返回底层表格渲染器
func (v *MakerOrdersView) Renderer() *table.Renderer {
	return v.renderer
}

// Init 初始化视图（CAS 门保护）
func (v *MakerOrdersView) Init() error {
	if !v.initGate.TryEnter() {
		return nil
	}
	defer v.initGate.Exit()
	if v.initialized.Load() {
		return nil
	}

	v.renderer.SetupTable(func() {
		if err := v.RefreshOrdersView(); err != nil {
			log.Errorf("挂单视图刷新失败: %v", err)
		}
	})
	v.helper.SetupServices()
	v.helper.SetupErrorHandling()
	v.helper.InitWebSocket()

	v.syncSub = v.transport.Subscribe(events.EventOrderSyncComplete, func(_ interface{}) {
		if v.cancelInFlight.Load() {
			return
		}
		if err := v.RefreshOrdersView(); err != nil {
			log.Errorf("同步后刷新失败: %v", err)
		}
	})

	v.initialized.Store(true)
	log.Info("✅ 挂单视图已初始化")
	return v.RefreshOrdersView()
}

// RefreshOrdersView 整表刷新（管线同可吃订单视图）
func (v *MakerOrdersView) RefreshOrdersView() error {
	if !v.refreshGate.TryEnter() {
		return nil
	}
	defer v.refreshGate.Exit()

	viewer, connected := v.account.GetAccount()
	if !connected {
		v.renderer.UpdatePaginationControls(0)
		v.renderer.RenderEmpty(msgConnectWallet)
		return nil
	}

	all := v.transport.Snapshot()
	controls := v.renderer.GetControls()

	filtered := make([]*domain.Order, 0, len(all))
	beforeActive := 0
	for _, o := range all {
		if o.Maker != viewer {
			continue
		}
		if !matchTokenFilter(o, controls.Filters) {
			continue
		}
		beforeActive++
		if controls.Filters.ActiveOnly && v.transport.GetOrderStatus(o) != domain.OrderStatusActive {
			continue
		}
		filtered = append(filtered, o)
	}

	v.renderer.UpdatePaginationControls(len(filtered))
	sortOrders(filtered, controls.Sort)

	pageOrders := table.Paginate(filtered, v.renderer.CurrentPage(), controls.PageSize)
	if len(pageOrders) == 0 {
		// 区分本来就没有挂单，和挂单都被"只看活跃"过滤掉了
		if beforeActive > 0 {
			v.renderer.RenderEmpty(msgNoActiveOwnOrders)
		} else {
			v.renderer.RenderEmpty(msgNoOwnOrders)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	v.renderer.RenderOrders(pageOrders, func(o *domain.Order) (*table.Row, error) {
		if o == nil {
			return nil, ErrNilOrder
		}
		return buildOrderRow(ctx, v.transport, v.prices, o), nil
	})
	return nil
}

// updateActionColumn 动作列刷新：只有仍然活跃的自有订单可撤
func (v *MakerOrdersView) updateActionColumn(row *table.Row, o *domain.Order) {
	viewer, connected := v.account.GetAccount()
	canCancel := connected && o.Maker == viewer &&
		v.transport.GetOrderStatus(o) == domain.OrderStatusActive
	row.Action.SetState(canCancel, "Cancel")
	if canCancel && !row.Action.Attached() {
		orderID := o.ID
		row.Action.Attach(func() {
			go v.executeCancel(orderID)
		})
	}
}

// executeCancel 执行撤单
func (v *MakerOrdersView) executeCancel(orderID int64) {
	if !v.cancelInFlight.CompareAndSwap(false, true) {
		v.toasts.ShowInfo("已有撤单进行中，请稍候", 0)
		return
	}
	defer v.cancelInFlight.Store(false)

	viewer, connected := v.account.GetAccount()
	if !connected {
		v.toasts.ShowError("请先连接钱包", 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()

	err := v.transport.CancelOrder(ctx, orderID, viewer)
	v.recordCancel(ctx, orderID, err)
	if err != nil {
		log.Errorf("撤单失败: id=%d err=%v", orderID, err)
		v.toasts.ShowError("撤单失败: "+err.Error(), 0)
		return
	}

	log.Infof("✅ 撤单成功: id=%d", orderID)
	v.toasts.ShowSuccess("撤单成功", 0)
	if err := v.RefreshOrdersView(); err != nil {
		log.Errorf("撤单后刷新失败: %v", err)
	}
}

func (v *MakerOrdersView) recordCancel(ctx context.Context, orderID int64, actionErr error) {
	if v.history == nil {
		return
	}
	msg := ""
	if actionErr != nil {
		msg = actionErr.Error()
	}
	if err := v.history.Record(ctx, "cancel", orderID, actionErr == nil, msg); err != nil {
		log.Warnf("动作历史写入失败: %v", err)
	}
}

// Cleanup 释放订阅与定时器（幂等）
func (v *MakerOrdersView) Cleanup() {
	if !v.initialized.CompareAndSwap(true, false) {
		return
	}
	v.syncSub.Release()
	v.syncSub = nil
	v.helper.Cleanup()
	v.renderer.Cleanup()
	v.helper = NewHelper(v.transport, v.prices, v.account, v.toasts, v.RefreshOrdersView)
	log.Info("挂单视图已清理")
}
