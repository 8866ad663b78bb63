package shutdown

import (
	"context"
	"sync"

	"github.com/betbot/dexdesk/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context)

// Manager 优雅关闭管理器
// 退出时并发执行各模块的收尾工作（落盘视图设置、停掉订阅、关数据库），
// 带超时兜底，单个模块卡死不拖垮整个退出流程
type Manager struct {
	mu        sync.Mutex
	callbacks []Handler
}

// NewManager 创建关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, handler)
}

// Shutdown 执行所有关闭回调（阻塞），ctx 应带超时
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	callbacks := m.callbacks
	m.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}

	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	var wg sync.WaitGroup
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(handler Handler) {
			defer wg.Done()
			handler(ctx)
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("所有关闭回调已完成")
	case <-ctx.Done():
		logger.Warnf("关闭超时: %v", ctx.Err())
	}
}
