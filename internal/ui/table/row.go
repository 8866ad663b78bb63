package table

import (
	"sync"

	"github.com/betbot/dexdesk/internal/domain"
)

// Cell 单元格
type Cell struct {
	Text      string
	Estimated bool // 价格为估算值时的展示样式标记
}

// Action 行为列状态
// 定时器 tick 写入、TUI 读取，所以带锁；动作回调每个单元格最多绑定一次
type Action struct {
	mu      sync.Mutex
	canFill bool
	label   string
	invoke  func()
}

// SetState 更新行为列展示状态
func (a *Action) SetState(canFill bool, label string) {
	a.mu.Lock()
	a.canFill = canFill
	a.label = label
	a.mu.Unlock()
}

// State 读取行为列展示状态
func (a *Action) State() (canFill bool, label string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.canFill, a.label
}

// Attach 绑定动作回调（每个单元格最多绑定一次）
// 返回 false 表示已绑定过，本次忽略
func (a *Action) Attach(fn func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.invoke != nil {
		return false
	}
	a.invoke = fn
	return true
}

// Attached 是否已绑定动作
func (a *Action) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invoke != nil
}

// Invoke 执行动作（未绑定或当前不可用时为 no-op）
func (a *Action) Invoke() {
	a.mu.Lock()
	fn := a.invoke
	ok := a.canFill
	a.mu.Unlock()
	if ok && fn != nil {
		fn()
	}
}

// Row 订单行视图模型
// Cells 由视图组件的行渲染器构建一次；Expires/Status/Action
// 由过期定时器每次 tick 原地更新，避免整行重建
type Row struct {
	OrderID      int64
	Cells        []Cell
	Counterparty string // 对手方展示（零地址哨兵 -> "Open"，否则缩写地址）

	mu      sync.Mutex
	expires string
	status  domain.OrderStatus

	Action Action
}

// SetExpires 更新过期倒计时展示
func (r *Row) SetExpires(text string) {
	r.mu.Lock()
	r.expires = text
	r.mu.Unlock()
}

// Expires 读取过期倒计时展示
func (r *Row) Expires() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expires
}

// SetStatus 更新状态展示
func (r *Row) SetStatus(s domain.OrderStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Status 读取状态展示
func (r *Row) Status() domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
