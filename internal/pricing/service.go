package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/pkg/cache"
)

var log = logrus.WithField("module", "pricing")

// quote 单个 token 的报价
type quote struct {
	USD       decimal.Decimal
	Estimated bool // true = 流动性不足，价格为估算值（仅用于展示样式）
}

// RefreshResult 刷新结果
type RefreshResult struct {
	Success bool
	Message string
}

// Service USD 定价服务
// 跟踪一组 token，周期性刷新报价；刷新完成后广播 refreshComplete，
// 视图组件借此触发整表刷新
type Service struct {
	client  *resty.Client
	baseURL string

	mu      sync.RWMutex
	tracked map[common.Address]struct{}

	quotes *cache.InMemoryCache[common.Address, quote]

	subMu       sync.Mutex
	subscribers map[uuid.UUID]func()

	refreshInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewService 创建定价服务
// baseURL 为空时服务降级为纯本地模式（只返回预置报价，测试用）
func NewService(baseURL string, cacheTTL, refreshInterval time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if refreshInterval <= 0 {
		refreshInterval = 30 * time.Second
	}
	var client *resty.Client
	if baseURL != "" {
		client = resty.New().SetTimeout(10 * time.Second)
	}
	return &Service{
		client:          client,
		baseURL:         baseURL,
		tracked:         make(map[common.Address]struct{}),
		quotes:          cache.NewInMemoryCache[common.Address, quote](cacheTTL),
		subscribers:     make(map[uuid.UUID]func()),
		refreshInterval: refreshInterval,
		stopCh:          make(chan struct{}),
	}
}

// Track 把 token 加入刷新集合
func (s *Service) Track(tokens ...common.Address) {
	s.mu.Lock()
	for _, t := range tokens {
		s.tracked[t] = struct{}{}
	}
	s.mu.Unlock()
}

// GetPrice 获取 USD 价格；无报价时返回 false
func (s *Service) GetPrice(token common.Address) (decimal.Decimal, bool) {
	q, ok := s.quotes.Get(token)
	if !ok {
		return decimal.Zero, false
	}
	return q.USD, true
}

// IsPriceEstimated 价格是否为估算值（只影响展示样式）
func (s *Service) IsPriceEstimated(token common.Address) bool {
	q, ok := s.quotes.Get(token)
	return ok && q.Estimated
}

// SetQuote 预置报价（启动预热与测试）
func (s *Service) SetQuote(token common.Address, usd decimal.Decimal, estimated bool) {
	s.quotes.Set(token, quote{USD: usd, Estimated: estimated}, 0)
}

// Subscribe 订阅 refreshComplete 信号
func (s *Service) Subscribe(fn func()) uuid.UUID {
	id := uuid.New()
	s.subMu.Lock()
	s.subscribers[id] = fn
	s.subMu.Unlock()
	return id
}

// Unsubscribe 取消订阅（幂等）
func (s *Service) Unsubscribe(id uuid.UUID) {
	s.subMu.Lock()
	delete(s.subscribers, id)
	s.subMu.Unlock()
}

// SubscriberCount 当前订阅者数量（测试/诊断用）
func (s *Service) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subscribers)
}

// priceResponse /v1/prices 响应
type priceResponse struct {
	Prices map[string]struct {
		USD       string `json:"usd"`
		Estimated bool   `json:"estimated"`
	} `json:"prices"`
}

// RefreshPrices 刷新全部跟踪 token 的报价
// 无论成败都广播 refreshComplete：失败时组件照常刷新，只是拿到旧报价
func (s *Service) RefreshPrices(ctx context.Context) RefreshResult {
	defer s.notifyRefreshComplete()

	if s.client == nil {
		return RefreshResult{Success: true, Message: "local mode"}
	}

	s.mu.RLock()
	addrs := make([]string, 0, len(s.tracked))
	for t := range s.tracked {
		addrs = append(addrs, t.Hex())
	}
	s.mu.RUnlock()

	if len(addrs) == 0 {
		return RefreshResult{Success: true}
	}

	var out priceResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"tokens": addrs}).
		SetResult(&out).
		Post(s.baseURL + "/v1/prices")
	if err != nil {
		log.Warnf("价格刷新失败: %v", err)
		return RefreshResult{Success: false, Message: err.Error()}
	}
	if resp.IsError() {
		log.Warnf("价格刷新失败: %s", resp.Status())
		return RefreshResult{Success: false, Message: resp.Status()}
	}

	updated := 0
	for addr, p := range out.Prices {
		usd, err := decimal.NewFromString(p.USD)
		if err != nil {
			continue
		}
		s.quotes.Set(common.HexToAddress(addr), quote{USD: usd, Estimated: p.Estimated}, 0)
		updated++
	}
	log.Debugf("价格刷新完成: %d 个 token", updated)
	return RefreshResult{Success: true, Message: fmt.Sprintf("updated %d tokens", updated)}
}

// StartAutoRefresh 启动后台周期刷新
func (s *Service) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.RefreshPrices(ctx)
			}
		}
	}()
}

// Stop 停止后台刷新（幂等）
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.quotes.Stop()
}

func (s *Service) notifyRefreshComplete() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
