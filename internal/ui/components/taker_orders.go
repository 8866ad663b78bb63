package components

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/events"
	"github.com/betbot/dexdesk/internal/ui/table"
)

// 空态文案
const (
	msgConnectWallet  = "请先连接钱包查看可吃订单"
	msgNoOrders       = "没有匹配的订单"
	msgNoActiveOrders = "没有可吃的订单，试试关闭只看可吃"
)

// fillTimeout 吃单请求超时
const fillTimeout = 30 * time.Second

// TakerOrdersView 可吃订单视图
// 展示 viewer 可以作为吃单方成交的订单：开放订单加上指定给 viewer 的
// 定向订单，不含 viewer 自己挂的单。数据管线（过滤/排序/分页/渲染）
// 不依赖任何终端状态，可单独测试
type TakerOrdersView struct {
	transport Transport
	prices    PriceSource
	account   Account
	toasts    Notifier
	history   ActionRecorder // 可选，nil 时不记录

	renderer *table.Renderer
	helper   *Helper

	initGate    gate
	refreshGate gate
	initialized atomic.Bool

	// 吃单进行中时抑制 orderSyncComplete 触发的整表刷新，
	// 避免正在操作的行被重排走
	fillInFlight atomic.Bool
	syncSub      *events.Subscription
}

// NewTakerOrdersView 创建可吃订单视图
func NewTakerOrdersView(transport Transport, prices PriceSource, account Account, toasts Notifier, history ActionRecorder, defaultPageSize int) *TakerOrdersView {
	v := &TakerOrdersView{
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

// Renderer 返回底层表格渲染器（TUI 消费行与分页状态）
func (v *TakerOrdersView) Renderer() *table.Renderer {
	return v.renderer
}

// Init 初始化视图（CAS 门保护，并发调用只有一个真正执行）
func (v *TakerOrdersView) Init() error {
	if !v.initGate.TryEnter() {
		return nil
	}
	defer v.initGate.Exit()
	if v.initialized.Load() {
		return nil
	}

	v.renderer.SetupTable(func() {
		if err := v.RefreshOrdersView(); err != nil {
			log.Errorf("可吃订单刷新失败: %v", err)
		}
	})
	v.helper.SetupServices()
	v.helper.SetupErrorHandling()
	v.helper.InitWebSocket()

	v.syncSub = v.transport.Subscribe(events.EventOrderSyncComplete, func(payload interface{}) {
		v.onSyncComplete(payload)
	})

	v.initialized.Store(true)
	log.Info("✅ 可吃订单视图已初始化")
	return v.RefreshOrdersView()
}

// onSyncComplete 全量同步完成后的整表刷新（吃单进行中时跳过）
func (v *TakerOrdersView) onSyncComplete(payload interface{}) {
	if v.fillInFlight.Load() {
		log.Debug("吃单进行中，跳过同步触发的刷新")
		return
	}
	if ev, ok := payload.(events.SyncCompleteEvent); ok {
		if viewer, connected := v.account.GetAccount(); connected {
			relevant := 0
			for _, o := range ev.Orders {
				if o != nil && (o.IsOpen() || o.Taker == viewer) && o.Maker != viewer {
					relevant++
				}
			}
			log.Debugf("📥 同步完成: 共 %d 单，其中 %d 单与当前账户相关", len(ev.Orders), relevant)
		}
	}
	if err := v.RefreshOrdersView(); err != nil {
		log.Errorf("同步后刷新失败: %v", err)
	}
}

// RefreshOrdersView 整表刷新
// 快照 -> 过滤 -> 计数/分页控件 -> 排序 -> 取页 -> 渲染。
// 并发调用被刷新门挤掉，只保留一次执行
func (v *TakerOrdersView) RefreshOrdersView() error {
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

	filtered, beforeActive := v.filterOrders(all, viewer, controls.Filters)

	// 总数 = 过滤后、分页前；先更新分页控件再取页，页码会被夹回有效区间
	v.renderer.UpdatePaginationControls(len(filtered))

	sortOrders(filtered, controls.Sort)

	pageOrders := table.Paginate(filtered, v.renderer.CurrentPage(), controls.PageSize)
	if len(pageOrders) == 0 {
		// 区分本来就没有订单，和订单都被"只看可吃"过滤掉了
		if beforeActive > 0 {
			v.renderer.RenderEmpty(msgNoActiveOrders)
		} else {
			v.renderer.RenderEmpty(msgNoOrders)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), fillTimeout)
	defer cancel()
	v.renderer.RenderOrders(pageOrders, func(o *domain.Order) (*table.Row, error) {
		return v.createOrderRow(ctx, o)
	})
	return nil
}

// filterOrders 挑出 viewer 可吃的订单
// beforeActive 是进入"只看可吃"谓词之前的数量，空态文案靠它区分
// 没有订单和订单全被过滤掉两种情况
func (v *TakerOrdersView) filterOrders(all []*domain.Order, viewer common.Address, f table.Filters) (out []*domain.Order, beforeActive int) {
	out = make([]*domain.Order, 0, len(all))
	for _, o := range all {
		// 自己挂的单归挂单视图管
		if o.Maker == viewer {
			continue
		}
		// 开放订单或定向给 viewer 的订单
		if !o.IsOpen() && o.Taker != viewer {
			continue
		}
		if !matchTokenFilter(o, f) {
			continue
		}
		beforeActive++
		if f.ActiveOnly && !v.transport.CanFillOrder(o, viewer) {
			continue
		}
		out = append(out, o)
	}
	return out, beforeActive
}

// matchTokenFilter token 地址过滤（大小写不敏感，空过滤放行）
func matchTokenFilter(o *domain.Order, f table.Filters) bool {
	if f.SellToken != "" && !strings.EqualFold(o.SellToken.Hex(), f.SellToken) {
		return false
	}
	if f.BuyToken != "" && !strings.EqualFold(o.BuyToken.Hex(), f.BuyToken) {
		return false
	}
	return true
}

// sortOrders 按排序模式原地稳定排序
// newest: ID 降序。best-deal: 比率为正的在前、按比率升序
// （等价于展示 deal = 1/ratio 降序），定价不可用的订单排在最后
func sortOrders(orders []*domain.Order, mode table.SortMode) {
	switch mode {
	case table.SortBestDeal:
		sort.SliceStable(orders, func(i, j int) bool {
			a, b := orders[i], orders[j]
			aOK, bOK := a.HasDeal(), b.HasDeal()
			if aOK != bOK {
				return aOK
			}
			if !aOK {
				return false
			}
			return a.Deal.Ratio < b.Deal.Ratio
		})
	default:
		sort.SliceStable(orders, func(i, j int) bool {
			return orders[i].ID > orders[j].ID
		})
	}
}

// createOrderRow 构建一行视图模型
func (v *TakerOrdersView) createOrderRow(ctx context.Context, o *domain.Order) (*table.Row, error) {
	if o == nil {
		return nil, ErrNilOrder
	}
	return buildOrderRow(ctx, v.transport, v.prices, o), nil
}

// updateActionColumn 动作列刷新（定时器每次 tick 回调）
// 资格判断只在这里做：行第一次可吃时绑定回调，之后只翻状态位
func (v *TakerOrdersView) updateActionColumn(row *table.Row, o *domain.Order) {
	viewer, connected := v.account.GetAccount()
	canFill := connected && v.transport.CanFillOrder(o, viewer)
	row.Action.SetState(canFill, "Fill")
	if canFill && !row.Action.Attached() {
		orderID := o.ID
		row.Action.Attach(func() {
			go v.executeFill(orderID)
		})
	}
}

// executeFill 执行吃单
func (v *TakerOrdersView) executeFill(orderID int64) {
	if !v.fillInFlight.CompareAndSwap(false, true) {
		v.toasts.ShowInfo("已有吃单进行中，请稍候", 0)
		return
	}
	defer v.fillInFlight.Store(false)

	viewer, connected := v.account.GetAccount()
	if !connected {
		v.toasts.ShowError("请先连接钱包", 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fillTimeout)
	defer cancel()

	err := v.transport.FillOrder(ctx, orderID, viewer)
	v.record(ctx, "fill", orderID, err)
	if err != nil {
		log.Errorf("吃单失败: id=%d err=%v", orderID, err)
		v.toasts.ShowError("吃单失败: "+err.Error(), 0)
		return
	}

	log.Infof("✅ 吃单成功: id=%d", orderID)
	v.toasts.ShowSuccess("吃单成功", 0)
	if err := v.RefreshOrdersView(); err != nil {
		log.Errorf("吃单后刷新失败: %v", err)
	}
}

// record 写动作历史（history 为 nil 时静默跳过）
func (v *TakerOrdersView) record(ctx context.Context, kind string, orderID int64, actionErr error) {
	if v.history == nil {
		return
	}
	msg := ""
	if actionErr != nil {
		msg = actionErr.Error()
	}
	if err := v.history.Record(ctx, kind, orderID, actionErr == nil, msg); err != nil {
		log.Warnf("动作历史写入失败: %v", err)
	}
}

// Cleanup 释放订阅与定时器，视图回到可重新初始化的状态（幂等）
func (v *TakerOrdersView) Cleanup() {
	if !v.initialized.CompareAndSwap(true, false) {
		return
	}
	v.syncSub.Release()
	v.syncSub = nil
	v.helper.Cleanup()
	v.renderer.Cleanup()
	// 装配助手是一次性的，换新实例让视图可以重新初始化
	v.helper = NewHelper(v.transport, v.prices, v.account, v.toasts, v.RefreshOrdersView)
	log.Info("可吃订单视图已清理")
}
