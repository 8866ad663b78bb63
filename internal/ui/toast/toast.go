package toast

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/pkg/sigchan"
)

var log = logrus.WithField("module", "toast")

// Level 提示级别
type Level string

const (
	LevelError   Level = "error"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// DefaultDuration 默认展示时长
const DefaultDuration = 5 * time.Second

// Toast 一条用户提示
type Toast struct {
	Level    Level
	Message  string
	Duration time.Duration
	At       time.Time
}

// Center 提示队列
// 组件任意 goroutine 写入，TUI 在渲染时取活跃集合；过期的自动剔除
type Center struct {
	mu    sync.Mutex
	queue []Toast
	max   int

	// 新提示信号，供 TUI 立即重绘
	C *sigchan.Chan
}

// NewCenter 创建提示队列
func NewCenter(max int) *Center {
	if max <= 0 {
		max = 5
	}
	return &Center{max: max, C: sigchan.New(1)}
}

// ShowError 显示错误提示
func (c *Center) ShowError(message string, duration time.Duration) {
	c.push(LevelError, message, duration)
}

// ShowSuccess 显示成功提示
func (c *Center) ShowSuccess(message string, duration time.Duration) {
	c.push(LevelSuccess, message, duration)
}

// ShowWarning 显示警告提示
func (c *Center) ShowWarning(message string, duration time.Duration) {
	c.push(LevelWarning, message, duration)
}

// ShowInfo 显示信息提示
func (c *Center) ShowInfo(message string, duration time.Duration) {
	c.push(LevelInfo, message, duration)
}

func (c *Center) push(level Level, message string, duration time.Duration) {
	if duration <= 0 {
		duration = DefaultDuration
	}
	log.Debugf("[%s] %s", level, message)

	c.mu.Lock()
	c.queue = append(c.queue, Toast{
		Level:    level,
		Message:  message,
		Duration: duration,
		At:       time.Now(),
	})
	if len(c.queue) > c.max {
		c.queue = c.queue[len(c.queue)-c.max:]
	}
	c.mu.Unlock()
	c.C.Emit()
}

// Active 返回当前仍在展示期内的提示（同时清理过期项）
func (c *Center) Active(now time.Time) []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	alive := c.queue[:0]
	for _, t := range c.queue {
		if now.Sub(t.At) < t.Duration {
			alive = append(alive, t)
		}
	}
	c.queue = alive

	out := make([]Toast, len(alive))
	copy(out, alive)
	return out
}
