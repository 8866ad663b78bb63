package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/events"
)

var wsLog = logrus.WithField("module", "exchange.ws")

const (
	defaultReconnectDelay    = 1 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second
	defaultPingInterval      = 15 * time.Second
	defaultReadTimeout       = 60 * time.Second
)

// FeedConfig WebSocket 订阅配置
type FeedConfig struct {
	ReconnectEnabled  bool
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
}

// DefaultFeedConfig 默认配置
func DefaultFeedConfig() *FeedConfig {
	return &FeedConfig{
		ReconnectEnabled:  true,
		ReconnectDelay:    defaultReconnectDelay,
		MaxReconnectDelay: defaultMaxReconnectDelay,
		PingInterval:      defaultPingInterval,
		ReadTimeout:       defaultReadTimeout,
	}
}

// FeedClient 订单事件 WebSocket 客户端
// 独占写入订单缓存，并把解码后的事件转发到事件中心；
// 视图层通过 Ready() 判断传输是否可用
type FeedClient struct {
	url    string
	config *FeedConfig
	cache  *OrderCache
	hub    *events.Hub

	conn   *websocket.Conn
	connMu sync.Mutex

	running   bool
	runningMu sync.RWMutex

	ready   bool
	readyMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}

	reconnectAttempts int
	reconnectMu       sync.Mutex
}

// NewFeedClient 创建订单事件客户端
func NewFeedClient(url string, cache *OrderCache, hub *events.Hub, config *FeedConfig) *FeedClient {
	if config == nil {
		config = DefaultFeedConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FeedClient{
		url:    url,
		config: config,
		cache:  cache,
		hub:    hub,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}
}

// Start 连接并开始监听
func (c *FeedClient) Start(ctx context.Context) error {
	c.runningMu.Lock()
	if c.running {
		c.runningMu.Unlock()
		return fmt.Errorf("订单事件客户端已在运行")
	}
	c.running = true
	c.runningMu.Unlock()

	if ctx != nil {
		c.ctx = ctx
	}

	if err := c.connect(); err != nil {
		c.runningMu.Lock()
		c.running = false
		c.runningMu.Unlock()
		return fmt.Errorf("初始连接失败: %w", err)
	}

	go c.readLoop()
	go c.pingLoop()

	wsLog.Infof("已启动连接到 %s", c.url)
	return nil
}

// Stop 优雅关闭
func (c *FeedClient) Stop() {
	c.runningMu.Lock()
	if !c.running {
		c.runningMu.Unlock()
		return
	}
	c.running = false
	c.runningMu.Unlock()

	c.cancel()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
	c.setReady(false)
}

// Ready 传输是否可用（已连接且完成首次同步握手）
func (c *FeedClient) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

func (c *FeedClient) setReady(v bool) {
	c.readyMu.Lock()
	c.ready = v
	c.readyMu.Unlock()
}

func (c *FeedClient) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.reconnectMu.Lock()
	c.reconnectAttempts = 0
	c.reconnectMu.Unlock()

	c.setReady(true)
	return nil
}

func (c *FeedClient) readLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			c.reconnect()
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			wsLog.Warnf("读取消息失败: %v", err)
			c.setReady(false)
			c.hub.Emit(events.EventError, events.ErrorEvent{Message: err.Error()})
			c.reconnect()
			continue
		}

		c.handleFrame(data)
	}
}

func (c *FeedClient) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				wsLog.Debugf("发送 ping 失败: %v", err)
			}
		}
	}
}

// reconnect 指数退避重连
func (c *FeedClient) reconnect() {
	if !c.config.ReconnectEnabled {
		c.Stop()
		return
	}

	c.reconnectMu.Lock()
	c.reconnectAttempts++
	delay := c.config.ReconnectDelay * time.Duration(1<<uint(min(c.reconnectAttempts-1, 5)))
	if delay > c.config.MaxReconnectDelay {
		delay = c.config.MaxReconnectDelay
	}
	attempts := c.reconnectAttempts
	c.reconnectMu.Unlock()

	wsLog.Infof("🔄 第 %d 次重连，等待 %v", attempts, delay)

	select {
	case <-c.ctx.Done():
		return
	case <-c.stopCh:
		return
	case <-time.After(delay):
	}

	if err := c.connect(); err != nil {
		wsLog.Warnf("重连失败: %v", err)
		c.reconnect()
		return
	}
	wsLog.Info("✅ 重连成功")
}

// wsFrame 服务端推送帧
type wsFrame struct {
	Type    string          `json:"type"`
	Order   *wireOrder      `json:"order,omitempty"`
	Orders  []*wireOrder    `json:"orders,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"payload,omitempty"`
}

// wireOrder 线上订单格式（数量为十进制字符串，避免精度丢失）
type wireOrder struct {
	ID          int64   `json:"id"`
	Maker       string  `json:"maker"`
	Taker       string  `json:"taker"`
	SellToken   string  `json:"sell_token"`
	BuyToken    string  `json:"buy_token"`
	SellAmount  string  `json:"sell_amount"`
	BuyAmount   string  `json:"buy_amount"`
	CreatedAt   int64   `json:"created_at"`
	ExpiresAt   int64   `json:"expires_at"`
	SellDisplay string  `json:"sell_display,omitempty"`
	BuyDisplay  string  `json:"buy_display,omitempty"`
	SellUSD     string  `json:"sell_usd,omitempty"`
	BuyUSD      string  `json:"buy_usd,omitempty"`
	DealRatio   float64 `json:"deal_ratio,omitempty"`
}

func (c *FeedClient) handleFrame(data []byte) {
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		wsLog.Warnf("解析消息失败: %v", err)
		return
	}

	now := time.Now()
	switch events.Event(frame.Type) {
	case events.EventOrderCreated:
		order, err := frame.Order.toDomain()
		if err != nil {
			wsLog.Warnf("订单解码失败: %v", err)
			return
		}
		c.cache.Put(order)
		c.hub.Emit(events.EventOrderCreated, events.OrderEvent{Order: order, Timestamp: now})
		c.hub.Emit(events.EventOrdersUpdated, nil)

	case events.EventOrderFilled:
		order, err := frame.Order.toDomain()
		if err != nil {
			wsLog.Warnf("订单解码失败: %v", err)
			return
		}
		c.cache.MarkFilled(order.ID)
		c.hub.Emit(events.EventOrderFilled, events.OrderEvent{Order: order, Timestamp: now})
		c.hub.Emit(events.EventOrdersUpdated, nil)

	case events.EventOrderCanceled:
		order, err := frame.Order.toDomain()
		if err != nil {
			wsLog.Warnf("订单解码失败: %v", err)
			return
		}
		c.cache.MarkCanceled(order.ID)
		c.hub.Emit(events.EventOrderCanceled, events.OrderEvent{Order: order, Timestamp: now})
		c.hub.Emit(events.EventOrdersUpdated, nil)

	case events.EventOrderSyncComplete:
		orders := make([]*domain.Order, 0, len(frame.Orders))
		for _, w := range frame.Orders {
			order, err := w.toDomain()
			if err != nil {
				wsLog.Warnf("订单解码失败（批量同步）: %v", err)
				continue
			}
			c.cache.Put(order)
			orders = append(orders, order)
		}
		wsLog.Infof("📥 批量同步完成: %d 个订单", len(orders))
		c.hub.Emit(events.EventOrderSyncComplete, events.SyncCompleteEvent{Orders: orders, Timestamp: now})
		c.hub.Emit(events.EventOrdersUpdated, nil)

	case events.EventError:
		c.hub.Emit(events.EventError, events.ErrorEvent{Code: frame.Code, Message: frame.Message})

	default:
		wsLog.Debugf("忽略未知消息类型: %s", frame.Type)
	}
}

func (w *wireOrder) toDomain() (*domain.Order, error) {
	if w == nil {
		return nil, fmt.Errorf("空订单载荷")
	}
	sellAmount, err := decimal.NewFromString(w.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("sell_amount 无效: %w", err)
	}
	buyAmount, err := decimal.NewFromString(w.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("buy_amount 无效: %w", err)
	}

	order := &domain.Order{
		ID:         w.ID,
		Maker:      common.HexToAddress(w.Maker),
		Taker:      common.HexToAddress(w.Taker),
		SellToken:  common.HexToAddress(w.SellToken),
		BuyToken:   common.HexToAddress(w.BuyToken),
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
		CreatedAt:  w.CreatedAt,
		ExpiresAt:  w.ExpiresAt,
	}

	// 预计算指标可选；任何字段缺失都整体放弃，让视图层走换算回退
	if w.DealRatio != 0 && w.SellDisplay != "" && w.BuyDisplay != "" {
		sellDisplay, err1 := decimal.NewFromString(w.SellDisplay)
		buyDisplay, err2 := decimal.NewFromString(w.BuyDisplay)
		sellUSD, err3 := decimal.NewFromString(w.SellUSD)
		buyUSD, err4 := decimal.NewFromString(w.BuyUSD)
		if err1 == nil && err2 == nil && err3 == nil && err4 == nil {
			order.Deal = &domain.DealMetrics{
				SellDisplay: sellDisplay,
				BuyDisplay:  buyDisplay,
				SellUSD:     sellUSD,
				BuyUSD:      buyUSD,
				Ratio:       w.DealRatio,
			}
		}
	}
	return order, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
