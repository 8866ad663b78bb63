package table

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/pkg/sigchan"
)

var log = logrus.WithField("module", "ui.table")

// SortMode 排序模式
type SortMode string

const (
	SortNewest   SortMode = "newest"    // 按 ID 降序
	SortBestDeal SortMode = "best-deal" // 按 deal 倒数降序（对 viewer 最划算的在前）
)

// Column 列定义
type Column struct {
	Title string
	Width int
}

// DefaultColumns 订单表默认列
var DefaultColumns = []Column{
	{Title: "ID", Width: 8},
	{Title: "Buy", Width: 20},
	{Title: "Sell", Width: 20},
	{Title: "Deal", Width: 10},
	{Title: "Expires", Width: 12},
	{Title: "Status", Width: 10},
	{Title: "Action", Width: 10},
}

// Filters 会触发分页重置的过滤条件
// 排序模式和页大小变化不重置分页，所以不放在这里
type Filters struct {
	SellToken  string // 卖出 token 地址过滤（空 = 不过滤）
	BuyToken   string // 买入 token 地址过滤
	ActiveOnly bool   // 只显示当前可吃的订单
}

// Controls 全部筛选控件状态
type Controls struct {
	Filters  Filters
	Sort     SortMode
	PageSize int
}

// OrderLookup 从活跃缓存按 ID 取订单（定时器每次 tick 重新读取）
type OrderLookup func(id int64) (*domain.Order, bool)

// StatusFunc 计算订单当前状态
type StatusFunc func(o *domain.Order) domain.OrderStatus

// ActionUpdater 由视图组件提供：唯一知道吃单/撤单资格的地方
type ActionUpdater func(row *Row, o *domain.Order)

// Config 渲染器配置
type Config struct {
	Columns         []Column
	Lookup          OrderLookup
	Status          StatusFunc
	UpdateAction    ActionUpdater
	DefaultPageSize int
	TickInterval    time.Duration // 过期定时器周期，默认 60s
}

// Renderer 订单表渲染器
// 持有表格骨架、筛选控件状态、分页状态和每行的过期定时器；
// "一行长什么样"由注入的行渲染器决定，渲染引擎无关
type Renderer struct {
	mu sync.Mutex

	setupDone bool
	onRefresh func()

	columns  []Column
	controls Controls

	currentPage int
	totalOrders int

	rows         []*Row
	emptyMessage string

	// 行视图模型 arena：订单 ID -> 行 + 定时器句柄
	// 不变式：每个当前渲染的订单 ID 至多一个活跃定时器
	arena map[int64]*rowSlot

	lookup       OrderLookup
	status       StatusFunc
	updateAction ActionUpdater
	tickInterval time.Duration

	pagTop    Pagination
	pagBottom Pagination

	// 重绘信号（TUI 消费）
	C *sigchan.Chan
}

// rowSlot arena 槽位：行视图模型 + 可选的定时任务句柄
type rowSlot struct {
	row  *Row
	stop chan struct{} // nil = 无活跃定时器
}

// NewRenderer 创建渲染器
func NewRenderer(cfg Config) *Renderer {
	columns := cfg.Columns
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 60 * time.Second
	}
	pageSize := cfg.DefaultPageSize
	if pageSize == 0 {
		pageSize = 25
	}
	return &Renderer{
		columns: columns,
		controls: Controls{
			Sort:     SortNewest,
			PageSize: pageSize,
		},
		currentPage:  1,
		arena:        make(map[int64]*rowSlot),
		lookup:       cfg.Lookup,
		status:       cfg.Status,
		updateAction: cfg.UpdateAction,
		tickInterval: tick,
		C:            sigchan.New(1),
	}
}

// SetupTable 装配表格骨架和控件监听（幂等，一次性标志保护）
func (r *Renderer) SetupTable(onRefresh func()) {
	r.mu.Lock()
	if r.setupDone {
		r.mu.Unlock()
		return
	}
	r.setupDone = true
	r.onRefresh = onRefresh
	r.mu.Unlock()
}

// IsSetup 表格是否已装配
func (r *Renderer) IsSetup() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupDone
}

// Controls 返回当前控件状态快照
func (r *Renderer) GetControls() Controls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.controls
}

// CurrentPage 当前页码（1-based）
func (r *Renderer) CurrentPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentPage
}

// TotalOrders 过滤后、分页前的订单总数
func (r *Renderer) TotalOrders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalOrders
}

// SetSellTokenFilter 设置卖出 token 过滤（重置到第 1 页）
func (r *Renderer) SetSellTokenFilter(addr string) {
	r.mu.Lock()
	r.controls.Filters.SellToken = addr
	r.currentPage = 1
	r.mu.Unlock()
	r.triggerRefresh()
}

// SetBuyTokenFilter 设置买入 token 过滤（重置到第 1 页）
func (r *Renderer) SetBuyTokenFilter(addr string) {
	r.mu.Lock()
	r.controls.Filters.BuyToken = addr
	r.currentPage = 1
	r.mu.Unlock()
	r.triggerRefresh()
}

// SetActiveOnly 切换"只看可吃"过滤（重置到第 1 页）
func (r *Renderer) SetActiveOnly(v bool) {
	r.mu.Lock()
	r.controls.Filters.ActiveOnly = v
	r.currentPage = 1
	r.mu.Unlock()
	r.triggerRefresh()
}

// SetSortMode 切换排序模式（不重置分页）
func (r *Renderer) SetSortMode(mode SortMode) {
	r.mu.Lock()
	r.controls.Sort = mode
	r.mu.Unlock()
	r.triggerRefresh()
}

// SetPageSize 切换页大小（不重置分页；页码在刷新时按新页数夹取）
func (r *Renderer) SetPageSize(size int) {
	r.mu.Lock()
	r.controls.PageSize = size
	r.mu.Unlock()
	r.triggerRefresh()
}

// ResetPage 重置到第 1 页（视图在检测到过滤条件变化时调用）
func (r *Renderer) ResetPage() {
	r.mu.Lock()
	r.currentPage = 1
	r.mu.Unlock()
}

// NextPage 翻到下一页（不重置过滤）
func (r *Renderer) NextPage() {
	r.mu.Lock()
	totalPages := TotalPages(r.totalOrders, r.controls.PageSize)
	r.currentPage = ClampPage(r.currentPage+1, totalPages)
	r.mu.Unlock()
	r.triggerRefresh()
}

// PrevPage 翻到上一页
func (r *Renderer) PrevPage() {
	r.mu.Lock()
	r.currentPage = ClampPage(r.currentPage-1, TotalPages(r.totalOrders, r.controls.PageSize))
	r.mu.Unlock()
	r.triggerRefresh()
}

func (r *Renderer) triggerRefresh() {
	r.mu.Lock()
	fn := r.onRefresh
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// RowRenderer 行渲染器：把订单变成行视图模型
type RowRenderer func(o *domain.Order) (*Row, error)

// RenderOrders 渲染一页订单
// 清空表体，逐个调用行渲染器；单行失败只记录并跳过，不中断后续行；
// 每个成功渲染的行都重启一次过期定时器
func (r *Renderer) RenderOrders(orders []*domain.Order, renderRow RowRenderer) {
	newRows := make([]*Row, 0, len(orders))
	for _, o := range orders {
		row, err := renderRow(o)
		if err != nil {
			log.Errorf("订单行渲染失败，已跳过: id=%d err=%v", o.ID, err)
			continue
		}
		newRows = append(newRows, row)
	}

	r.mu.Lock()
	r.emptyMessage = ""
	r.rows = newRows

	// 停掉不再渲染的行的定时器
	rendered := make(map[int64]struct{}, len(newRows))
	for _, row := range newRows {
		rendered[row.OrderID] = struct{}{}
	}
	for id, slot := range r.arena {
		if _, ok := rendered[id]; !ok {
			stopSlot(slot)
			delete(r.arena, id)
		}
	}
	r.mu.Unlock()

	for _, row := range newRows {
		r.StartExpiryTimer(row)
	}
	r.C.Emit()
}

// RenderEmpty 渲染空态（清掉所有行和定时器）
func (r *Renderer) RenderEmpty(message string) {
	r.mu.Lock()
	r.rows = nil
	r.emptyMessage = message
	for id, slot := range r.arena {
		stopSlot(slot)
		delete(r.arena, id)
	}
	r.mu.Unlock()
	r.C.Emit()
}

// EmptyMessage 当前空态文案（空字符串 = 非空态）
func (r *Renderer) EmptyMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emptyMessage
}

// UpdatePaginationControls 按过滤后总数更新上下两份分页控件
// "全部"页大小禁用翻页，只显示计数文案；页码夹回有效区间
func (r *Renderer) UpdatePaginationControls(totalOrders int) {
	r.mu.Lock()
	r.totalOrders = totalOrders
	pag := buildPagination(totalOrders, r.currentPage, r.controls.PageSize)
	r.currentPage = pag.Page
	r.pagTop = pag
	r.pagBottom = pag
	r.mu.Unlock()
	r.C.Emit()
}

// Pagination 返回（顶部）分页控件状态
func (r *Renderer) Pagination() Pagination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pagTop
}

// PaginationBottom 返回底部分页控件状态（与顶部始终一致）
func (r *Renderer) PaginationBottom() Pagination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pagBottom
}

// StartExpiryTimer 为一行启动过期定时器
// 同一订单 ID 的旧定时器先停再换（clear-then-set），保证至多一个；
// 立即触发一次，之后每个周期触发
func (r *Renderer) StartExpiryTimer(row *Row) {
	if row == nil {
		return
	}

	stop := make(chan struct{})

	r.mu.Lock()
	if old, ok := r.arena[row.OrderID]; ok {
		stopSlot(old)
	}
	r.arena[row.OrderID] = &rowSlot{row: row, stop: stop}
	interval := r.tickInterval
	r.mu.Unlock()

	// 首次 tick 同步执行，行一出现就有倒计时和动作状态
	r.TickRow(row.OrderID)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.TickRow(row.OrderID)
				r.C.Emit()
			}
		}
	}()
}

// TickRow 执行一次行刷新
// 每次都从活跃缓存重读订单：订单已消失的陈旧行静默跳过；
// 只有 Active 状态才重算倒计时；动作列状态交给组件回调
func (r *Renderer) TickRow(orderID int64) {
	r.mu.Lock()
	slot, ok := r.arena[orderID]
	lookup, status, updateAction := r.lookup, r.status, r.updateAction
	r.mu.Unlock()
	if !ok || lookup == nil {
		return
	}
	row := slot.row

	o, exists := lookup(orderID)
	if !exists {
		return
	}

	st := domain.OrderStatusActive
	if status != nil {
		st = status(o)
	}
	row.SetStatus(st)

	if st == domain.OrderStatusActive {
		row.SetExpires(FormatTimeLeft(o.TimeToExpiry(time.Now())))
	}

	if updateAction != nil {
		updateAction(row, o)
	}
}

// Rows 返回当前行列表（展示顺序）
func (r *Renderer) Rows() []*Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Row, len(r.rows))
	copy(out, r.rows)
	return out
}

// Columns 返回列定义
func (r *Renderer) Columns() []Column {
	return r.columns
}

// TimerCount 当前活跃定时器数量（测试/诊断用）
func (r *Renderer) TimerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, slot := range r.arena {
		if slot.stop != nil {
			n++
		}
	}
	return n
}

// Cleanup 停掉所有定时器并清空注册表
func (r *Renderer) Cleanup() {
	r.mu.Lock()
	for id, slot := range r.arena {
		stopSlot(slot)
		delete(r.arena, id)
	}
	r.mu.Unlock()
}

func stopSlot(slot *rowSlot) {
	if slot != nil && slot.stop != nil {
		close(slot.stop)
		slot.stop = nil
	}
}
