package components

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/events"
	"github.com/betbot/dexdesk/internal/exchange"
	"github.com/betbot/dexdesk/internal/pricing"
	"github.com/betbot/dexdesk/internal/ui/table"
	"github.com/betbot/dexdesk/internal/ui/toast"
	"github.com/betbot/dexdesk/internal/wallet"
)

var (
	viewer = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	maker  = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	other  = common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")

	usdc = common.HexToAddress("0x1000000000000000000000000000000000000001")
	weth = common.HexToAddress("0x1000000000000000000000000000000000000002")
)

// recorderFake 内存动作记录
type recorderFake struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorderFake) Record(_ context.Context, kind string, orderID int64, ok bool, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, kind)
	return nil
}

func (r *recorderFake) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// testEnv 本地模式的完整组件环境
type testEnv struct {
	svc     *exchange.Service
	prices  *pricing.Service
	wallet  *wallet.Wallet
	toasts  *toast.Center
	history *recorderFake
	view    *TakerOrdersView
}

func newTestEnv(t *testing.T, pageSize int) *testEnv {
	t.Helper()
	env := &testEnv{
		svc:     exchange.NewService(nil, nil, nil, nil),
		prices:  pricing.NewService("", time.Minute, time.Hour),
		wallet:  wallet.NewDisconnected(),
		toasts:  toast.NewCenter(5),
		history: &recorderFake{},
	}
	env.svc.SetTokenInfo(&domain.TokenInfo{Address: usdc, Symbol: "USDC", Decimals: 6})
	env.svc.SetTokenInfo(&domain.TokenInfo{Address: weth, Symbol: "WETH", Decimals: 18})
	env.view = NewTakerOrdersView(env.svc, env.prices, env.wallet, env.toasts, env.history, pageSize)
	t.Cleanup(env.view.Cleanup)
	return env
}

// openOrder 他人挂的开放订单
func openOrder(id int64) *domain.Order {
	return &domain.Order{
		ID:         id,
		Maker:      maker,
		SellToken:  weth,
		BuyToken:   usdc,
		SellAmount: decimal.New(1, 18),
		BuyAmount:  decimal.New(2500, 6),
		ExpiresAt:  time.Now().Add(time.Hour).Unix(),
	}
}

func withDeal(o *domain.Order, ratio float64) *domain.Order {
	o.Deal = &domain.DealMetrics{
		SellDisplay: decimal.NewFromInt(1),
		BuyDisplay:  decimal.NewFromInt(2500),
		SellUSD:     decimal.NewFromInt(2500),
		BuyUSD:      decimal.NewFromFloat(2500 * ratio),
		Ratio:       ratio,
	}
	return o
}

func (e *testEnv) seed(orders ...*domain.Order) {
	for _, o := range orders {
		e.svc.OrderCache().Put(o)
	}
}

func TestRefreshRequiresWallet(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1))

	require.NoError(t, env.view.Init())

	r := env.view.Renderer()
	assert.Equal(t, msgConnectWallet, r.EmptyMessage(), "未连接钱包应显示连接提示")
	assert.Equal(t, 0, r.TotalOrders())
	assert.Empty(t, r.Rows())
}

func TestTotalOrdersIsPostFilterPrePagination(t *testing.T) {
	env := newTestEnv(t, 10)
	for i := 1; i <= 30; i++ {
		env.seed(openOrder(int64(i)))
	}
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	r := env.view.Renderer()
	assert.Equal(t, 30, r.TotalOrders(), "totalOrders 是过滤后、分页前的数量")
	assert.Len(t, r.Rows(), 10, "页内只有 pageSize 行")
	assert.Equal(t, 3, r.Pagination().TotalPages)
}

func TestFilterExcludesOwnAndTargetedToOthers(t *testing.T) {
	env := newTestEnv(t, 10)

	own := openOrder(1)
	own.Maker = viewer // 自己挂的
	targetedToViewer := openOrder(2)
	targetedToViewer.Taker = viewer
	targetedToOther := openOrder(3)
	targetedToOther.Taker = other
	open := openOrder(4)

	env.seed(own, targetedToViewer, targetedToOther, open)
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	r := env.view.Renderer()
	assert.Equal(t, 2, r.TotalOrders(), "只剩开放订单和定向给 viewer 的")

	ids := make([]int64, 0)
	for _, row := range r.Rows() {
		ids = append(ids, row.OrderID)
	}
	assert.ElementsMatch(t, []int64{2, 4}, ids)
}

func TestActiveOnlyKeepsFillableSubset(t *testing.T) {
	env := newTestEnv(t, 25)

	// 30 条缓存订单：23 条定向给他人，7 条定向给 viewer，其中 3 条已过期
	for i := 1; i <= 23; i++ {
		o := openOrder(int64(i))
		o.Taker = other
		env.seed(o)
	}
	for i := 24; i <= 30; i++ {
		o := openOrder(int64(i))
		o.Taker = viewer
		if i <= 26 {
			o.ExpiresAt = time.Now().Add(-time.Hour).Unix()
		}
		env.seed(o)
	}
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	r := env.view.Renderer()
	assert.Equal(t, 7, r.TotalOrders(), "不开只看可吃时 7 条定向单都在")

	r.SetActiveOnly(true)
	assert.Equal(t, 4, r.TotalOrders(), "只看可吃剩 4 条未过期的")
	assert.Len(t, r.Rows(), 4)
	assert.Equal(t, 1, r.Pagination().TotalPages)
}

func TestEmptyMessageDistinguishesActiveFilter(t *testing.T) {
	env := newTestEnv(t, 10)
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	r := env.view.Renderer()
	r.SetActiveOnly(true)
	assert.Equal(t, msgNoOrders, r.EmptyMessage(), "缓存为空时提示没有订单")

	// 有订单但全被"只看可吃"滤掉：提示换成引导关闭过滤
	for i := 1; i <= 2; i++ {
		o := openOrder(int64(i))
		o.ExpiresAt = time.Now().Add(-time.Hour).Unix()
		env.seed(o)
	}
	require.NoError(t, env.view.RefreshOrdersView())
	assert.Equal(t, msgNoActiveOrders, r.EmptyMessage())

	r.SetActiveOnly(false)
	assert.Equal(t, 2, r.TotalOrders(), "关闭过滤后订单重新可见")
}

func TestFilterChangeShrinksAndResetsPage(t *testing.T) {
	env := newTestEnv(t, 10)
	for i := 1; i <= 30; i++ {
		o := openOrder(int64(i))
		if i <= 7 {
			o.SellToken = usdc // 7 个卖 USDC，其余卖 WETH
			o.BuyToken = weth
		}
		env.seed(o)
	}
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	r := env.view.Renderer()
	r.NextPage()
	r.NextPage()
	assert.Equal(t, 3, r.CurrentPage())

	// 过滤到 7 条：页码重置、单页展示全部 7 条
	r.SetSellTokenFilter(usdc.Hex())
	assert.Equal(t, 7, r.TotalOrders())
	assert.Equal(t, 1, r.CurrentPage())
	assert.Len(t, r.Rows(), 7)
	assert.Equal(t, 1, r.Pagination().TotalPages)
}

func TestPageSizeChangeClampsWithoutReset(t *testing.T) {
	env := newTestEnv(t, 10)
	for i := 1; i <= 14; i++ {
		env.seed(openOrder(int64(i)))
	}
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	r := env.view.Renderer()
	r.NextPage()
	assert.Equal(t, 2, r.CurrentPage())
	assert.Len(t, r.Rows(), 4, "第 2 页只有 4 条")

	// 页大小变大：不重置页码，但按新页数夹取
	r.SetPageSize(25)
	assert.Equal(t, 1, r.CurrentPage())
	assert.Len(t, r.Rows(), 14)
}

func TestSortNewestByIDDescending(t *testing.T) {
	env := newTestEnv(t, table.PageSizeAll)
	env.seed(openOrder(3), openOrder(1), openOrder(2))
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	rows := env.view.Renderer().Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0].OrderID)
	assert.Equal(t, int64(2), rows[1].OrderID)
	assert.Equal(t, int64(1), rows[2].OrderID)
}

func TestSortBestDealRatioAscendingPricelessLast(t *testing.T) {
	env := newTestEnv(t, table.PageSizeAll)
	env.seed(
		withDeal(openOrder(1), 0.9), // 最划算（展示 deal 最大）
		withDeal(openOrder(2), 1.2),
		openOrder(3), // 无定价
		withDeal(openOrder(4), 1.0),
	)
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	env.view.Renderer().SetSortMode(table.SortBestDeal)

	rows := env.view.Renderer().Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, int64(1), rows[0].OrderID, "比率最小（对 viewer 最划算）在前")
	assert.Equal(t, int64(4), rows[1].OrderID)
	assert.Equal(t, int64(2), rows[2].OrderID)
	assert.Equal(t, int64(3), rows[3].OrderID, "定价不可用排最后")
}

func TestRowCellsPreferDealMetrics(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(withDeal(openOrder(1), 1.0))
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	rows := env.view.Renderer().Rows()
	require.Len(t, rows, 1)
	cells := rows[0].Cells
	require.Len(t, cells, 4)
	assert.Equal(t, "1", cells[0].Text)
	assert.Equal(t, "2500 USDC ($2500.00)", cells[1].Text)
	assert.Equal(t, "1 WETH ($2500.00)", cells[2].Text)
	assert.Equal(t, "1.0000", cells[3].Text)
	assert.Equal(t, "Open", rows[0].Counterparty)
}

func TestRowCellsFallbackToDecimals(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1)) // 无 Deal 指标
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	rows := env.view.Renderer().Rows()
	require.Len(t, rows, 1)
	cells := rows[0].Cells
	assert.Equal(t, "2500 USDC", cells[1].Text, "无定价时按 decimals 换算")
	assert.Equal(t, "1 WETH", cells[2].Text)
	assert.Equal(t, "N/A", cells[3].Text, "deal 列无定价显示 N/A")
}

func TestActionColumnFillEligibility(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1))
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	rows := env.view.Renderer().Rows()
	require.Len(t, rows, 1)

	canFill, label := rows[0].Action.State()
	assert.True(t, canFill)
	assert.Equal(t, "Fill", label)
	assert.True(t, rows[0].Action.Attached(), "可吃的行应已绑定动作")
}

func TestExecuteFillRemovesOrderAndRecords(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1), openOrder(2))
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())

	env.view.executeFill(1)

	assert.Equal(t, 1, env.view.Renderer().TotalOrders(), "吃掉的订单应从视图消失")
	assert.Equal(t, 1, env.history.count(), "动作应落历史")

	status := env.svc.GetOrderStatus(&domain.Order{ID: 1})
	assert.Equal(t, domain.OrderStatusFilled, status)
}

func TestSyncCompleteSuppressedWhileFillInFlight(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1))
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())
	require.Len(t, env.view.Renderer().Rows(), 1)

	// 新订单入缓存，但吃单进行中时同步事件不触发刷新
	env.svc.OrderCache().Put(openOrder(2))
	env.view.fillInFlight.Store(true)
	env.svc.Hub().Emit(events.EventOrderSyncComplete, nil)
	assert.Len(t, env.view.Renderer().Rows(), 1, "吃单进行中应跳过刷新")

	env.view.fillInFlight.Store(false)
	env.svc.Hub().Emit(events.EventOrderSyncComplete, nil)
	assert.Len(t, env.view.Renderer().Rows(), 2, "吃单结束后刷新恢复")
}

func TestSyncCompleteWithPayloadRefreshes(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1))
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())
	require.Len(t, env.view.Renderer().Rows(), 1)

	// 带载荷的同步完成事件：解码、统计并刷新
	o := openOrder(2)
	env.seed(o)
	env.svc.Hub().Emit(events.EventOrderSyncComplete, events.SyncCompleteEvent{
		Orders:    []*domain.Order{o},
		Timestamp: time.Now(),
	})
	assert.Len(t, env.view.Renderer().Rows(), 2)
}

func TestInitIdempotent(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1))
	env.wallet.Connect(viewer)

	require.NoError(t, env.view.Init())
	require.NoError(t, env.view.Init())
	require.NoError(t, env.view.Init())

	hub := env.svc.Hub()
	assert.Equal(t, 1, hub.HandlerCount(events.EventOrderSyncComplete), "重复 Init 不应叠加订阅")
	assert.Equal(t, 1, hub.HandlerCount(events.EventOrderCreated))
}

func TestCleanupReleasesEverything(t *testing.T) {
	env := newTestEnv(t, 10)
	env.seed(openOrder(1))
	env.wallet.Connect(viewer)
	require.NoError(t, env.view.Init())
	require.NotZero(t, env.view.Renderer().TimerCount())

	env.view.Cleanup()
	env.view.Cleanup() // 幂等

	hub := env.svc.Hub()
	assert.Zero(t, env.view.Renderer().TimerCount())
	assert.Zero(t, hub.HandlerCount(events.EventOrderSyncComplete))
	assert.Zero(t, hub.HandlerCount(events.EventOrderCreated))
	assert.Zero(t, hub.HandlerCount(events.EventOrderFilled))
	assert.Zero(t, hub.HandlerCount(events.EventOrderCanceled))
	assert.Zero(t, env.prices.SubscriberCount())
}
