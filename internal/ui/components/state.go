package components

import "sync/atomic"

// 组件生命周期相位
// 用显式状态机替代"布尔标志先查后设"：进入靠 CAS，天然防并发重入
const (
	phaseIdle int32 = iota
	phaseBusy
)

// gate 单相位门：Idle -> Busy -> Idle
type gate struct {
	v atomic.Int32
}

// TryEnter 尝试进入 Busy；已有人在里面时返回 false（调用方直接跳过）
func (g *gate) TryEnter() bool {
	return g.v.CompareAndSwap(phaseIdle, phaseBusy)
}

// Exit 回到 Idle
func (g *gate) Exit() {
	g.v.Store(phaseIdle)
}

// Busy 当前是否有人在里面
func (g *gate) Busy() bool {
	return g.v.Load() == phaseBusy
}
