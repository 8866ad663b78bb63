package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/app"
	"github.com/betbot/dexdesk/internal/common"
	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/ui/table"
	"github.com/betbot/dexdesk/internal/ui/toast"
)

var log = logrus.WithField("module", "tui")

// 标签页
type tab int

const (
	tabTaker tab = iota // 可吃订单
	tabMaker            // 自有挂单
)

// redrawMsg 外部数据变化触发的重绘
type redrawMsg struct{}

// tickMsg 周期心跳（toast 过期清理、时钟刷新）
type tickMsg time.Time

// uiModel Bubble Tea 模型
// 不持有任何订单数据，每次 View 直接从渲染器读当前行；
// 重绘信号由渲染器/toast 的信号通道经 program.Send 注入
type uiModel struct {
	appCtx *app.Context

	activeTab tab
	width     int
	height    int
}

func newModel(appCtx *app.Context) uiModel {
	return uiModel{appCtx: appCtx}
}

// Init 初始化，返回初始命令
func (m uiModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// renderer 当前标签页的表格渲染器
func (m uiModel) renderer() *table.Renderer {
	if m.activeTab == tabMaker {
		return m.appCtx.MakerOrders.Renderer()
	}
	return m.appCtx.TakerOrders.Renderer()
}

// Update 处理消息并更新模型
func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case redrawMsg:
		return m, nil

	case tickMsg:
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.activeTab == tabTaker {
				m.activeTab = tabMaker
			} else {
				m.activeTab = tabTaker
			}
			return m, nil
		case "n", "right":
			m.renderer().NextPage()
		case "p", "left":
			m.renderer().PrevPage()
		case "s":
			m.toggleSort()
		case "a":
			c := m.renderer().GetControls()
			m.renderer().SetActiveOnly(!c.Filters.ActiveOnly)
		case "]":
			m.cyclePageSize(1)
		case "[":
			m.cyclePageSize(-1)
		case "r":
			m.refreshActive()
		case "enter":
			m.invokeSelected()
		}
		return m, nil
	}
	return m, nil
}

// toggleSort 在两种排序模式间切换（不重置分页）
func (m uiModel) toggleSort() {
	r := m.renderer()
	if r.GetControls().Sort == table.SortNewest {
		r.SetSortMode(table.SortBestDeal)
	} else {
		r.SetSortMode(table.SortNewest)
	}
}

// cyclePageSize 在页大小选项间循环（不重置分页）
func (m uiModel) cyclePageSize(dir int) {
	r := m.renderer()
	cur := r.GetControls().PageSize
	idx := 0
	for i, size := range table.PageSizes {
		if size == cur {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(table.PageSizes)) % len(table.PageSizes)
	r.SetPageSize(table.PageSizes[idx])
}

func (m uiModel) refreshActive() {
	var err error
	if m.activeTab == tabMaker {
		err = m.appCtx.MakerOrders.RefreshOrdersView()
	} else {
		err = m.appCtx.TakerOrders.RefreshOrdersView()
	}
	if err != nil {
		log.Errorf("手动刷新失败: %v", err)
	}
}

// invokeSelected 执行第一个可用动作行
// 简化的键盘操作：回车吃掉/撤掉当前页第一条可操作的订单
func (m uiModel) invokeSelected() {
	for _, row := range m.renderer().Rows() {
		if ok, _ := row.Action.State(); ok {
			row.Action.Invoke()
			return
		}
	}
}

// View 渲染界面
func (m uiModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}

	var sections []string
	sections = append(sections, m.renderHeader(width))
	sections = append(sections, m.renderControls())
	sections = append(sections, m.renderPagination())
	sections = append(sections, m.renderTable())
	sections = append(sections, m.renderPagination())
	sections = append(sections, m.renderToasts())

	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render("tab 切换视图 | n/p 翻页 | s 排序 | a 只看可吃 | [/] 页大小 | enter 操作 | r 刷新 | q 退出")
	sections = append(sections, footer)

	return strings.Join(sections, "\n")
}

func (m uiModel) renderHeader(width int) string {
	title := "可吃订单"
	if m.activeTab == tabMaker {
		title = "自有挂单"
	}

	status := "🔄 连接中"
	if m.appCtx.Exchange.Ready() {
		status = "✅ 已连接"
	}
	walletStr := "未连接钱包"
	if account, ok := m.appCtx.Wallet.GetAccount(); ok {
		walletStr = account.Hex()[:10] + "…"
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("63")).
		Width(width)
	return headerStyle.Render(fmt.Sprintf("DexDesk — %s    %s    %s", title, status, walletStr))
}

func (m uiModel) renderControls() string {
	c := m.renderer().GetControls()
	sortStr := "最新优先"
	if c.Sort == table.SortBestDeal {
		sortStr = "最划算优先"
	}
	sizeStr := fmt.Sprintf("%d/页", c.PageSize)
	if c.PageSize == table.PageSizeAll {
		sizeStr = "全部"
	}
	activeStr := ""
	if c.Filters.ActiveOnly {
		activeStr = " | 只看可吃"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render(fmt.Sprintf("排序: %s | %s%s", sortStr, sizeStr, activeStr))
}

func (m uiModel) renderPagination() string {
	pag := m.renderer().Pagination()
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render(pag.Message)
}

func (m uiModel) renderTable() string {
	r := m.renderer()

	if msg := r.EmptyMessage(); msg != "" {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(1, 2).
			Render(msg)
	}

	var b strings.Builder

	headStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	for _, col := range r.Columns() {
		b.WriteString(headStyle.Render(pad(col.Title, col.Width)))
	}
	b.WriteString("\n")

	estStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("178")) // 估算价标黄
	for _, row := range r.Rows() {
		cols := r.Columns()
		for i, cell := range row.Cells {
			text := pad(cell.Text, colWidth(cols, i))
			if cell.Estimated {
				text = estStyle.Render(text)
			}
			b.WriteString(text)
		}
		b.WriteString(pad(row.Expires(), colWidth(cols, 4)))
		b.WriteString(pad(string(row.Status()), colWidth(cols, 5)))
		b.WriteString(m.renderAction(row))
		b.WriteString("  ")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(row.Counterparty))
		b.WriteString("\n")
	}
	return b.String()
}

func (m uiModel) renderAction(row *table.Row) string {
	canAct, label := row.Action.State()
	if !canAct {
		if row.Status() != domain.OrderStatusActive {
			return pad("-", 10)
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(pad(label, 10))
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Render(pad("["+label+"]", 10))
}

func (m uiModel) renderToasts() string {
	toasts := m.appCtx.Toasts.Active(time.Now())
	if len(toasts) == 0 {
		return ""
	}
	var lines []string
	for _, t := range toasts {
		style := lipgloss.NewStyle().Bold(true)
		switch t.Level {
		case toast.LevelError:
			style = style.Foreground(lipgloss.Color("196"))
		case toast.LevelWarning:
			style = style.Foreground(lipgloss.Color("214"))
		case toast.LevelSuccess:
			style = style.Foreground(lipgloss.Color("42"))
		default:
			style = style.Foreground(lipgloss.Color("39"))
		}
		lines = append(lines, style.Render("• "+t.Message))
	}
	return strings.Join(lines, "\n")
}

func colWidth(cols []table.Column, i int) int {
	if i < len(cols) {
		return cols[i].Width
	}
	return 12
}

// pad 按 rune 截断补齐，单元格里有省略号等多字节字符
func pad(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width-1]) + " "
	}
	return s + strings.Repeat(" ", width-len(r))
}

// UI 终端界面
type UI struct {
	appCtx  *app.Context
	program *tea.Program
}

// New 创建终端界面
func New(appCtx *app.Context) *UI {
	return &UI{appCtx: appCtx}
}

// Run 运行界面直到用户退出或 ctx 取消（阻塞）
func (u *UI) Run(ctx context.Context) error {
	m := newModel(u.appCtx)
	u.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// 数据变化 -> 重绘信号泵
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go u.pump(pumpCtx)

	_, err := u.program.Run()
	return err
}

// pump 把渲染器/toast 的信号通道转成 Bubble Tea 消息
// 信号突发时用 debouncer 合并重绘，漏掉的帧由秒级心跳补齐
func (u *UI) pump(ctx context.Context) {
	takerC := u.appCtx.TakerOrders.Renderer().C.C()
	makerC := u.appCtx.MakerOrders.Renderer().C.C()
	toastC := u.appCtx.Toasts.C.C()
	deb := common.NewDebouncer(80 * time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return
		case <-takerC:
		case <-makerC:
		case <-toastC:
		}
		if ready, _ := deb.ReadyNow(); ready {
			deb.MarkNow()
			u.program.Send(redrawMsg{})
		}
	}
}
