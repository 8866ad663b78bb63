package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/pkg/ratelimit"
)

var restLog = logrus.WithField("module", "exchange.rest")

// RESTClient 只读 REST 客户端
// 主地址被限流时轮换到备用只读节点（降级路径，不中断界面）
type RESTClient struct {
	mu        sync.Mutex
	client    *resty.Client
	limiter   ratelimit.Limiter
	baseURLs  []string // [0] 为主地址，其余为备用
	activeIdx int
}

// NewRESTClient 创建 REST 客户端
func NewRESTClient(baseURL string, fallbackURLs []string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	urls := append([]string{baseURL}, fallbackURLs...)
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Accept", "application/json")

	return &RESTClient{
		client:   client,
		limiter:  ratelimit.NewTokenBucket(20, 10),
		baseURLs: urls,
	}
}

// activeBaseURL 返回当前使用的基础地址
func (c *RESTClient) activeBaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURLs[c.activeIdx]
}

// RotateEndpoint 轮换到下一个只读节点，返回新地址
func (c *RESTClient) RotateEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.baseURLs) > 1 {
		c.activeIdx = (c.activeIdx + 1) % len(c.baseURLs)
	}
	restLog.Warnf("⚠️ 只读节点已轮换: %s", c.baseURLs[c.activeIdx])
	return c.baseURLs[c.activeIdx]
}

// tokenInfoResponse /tokens/{address} 响应
type tokenInfoResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

// GetTokenInfo 拉取 token 元数据
func (c *RESTClient) GetTokenInfo(ctx context.Context, addr common.Address) (*domain.TokenInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var out tokenInfoResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("%s/v1/tokens/%s", c.activeBaseURL(), addr.Hex()))
	if err != nil {
		return nil, errors.Wrap(err, "token 元数据请求失败")
	}
	if resp.IsError() {
		// 限流：轮换节点后重试一次
		if IsRateLimited("", resp.Status()) {
			c.RotateEndpoint()
			resp, err = c.client.R().
				SetContext(ctx).
				SetResult(&out).
				Get(fmt.Sprintf("%s/v1/tokens/%s", c.activeBaseURL(), addr.Hex()))
			if err != nil {
				return nil, errors.Wrap(err, "token 元数据请求失败（备用节点）")
			}
		}
		if resp.IsError() {
			return nil, errors.Errorf("token 元数据请求失败: %s", resp.Status())
		}
	}

	return &domain.TokenInfo{
		Address:  common.HexToAddress(out.Address),
		Symbol:   out.Symbol,
		Name:     out.Name,
		Decimals: out.Decimals,
	}, nil
}

// submitResponse 写操作响应
type submitResponse struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitFill 提交吃单请求
// 真正的链上执行（签名、合约调用）由交易所侧的执行服务完成，
// 这里只负责把意图交给传输层并返回其结论
func (c *RESTClient) SubmitFill(ctx context.Context, orderID int64, taker common.Address) error {
	return c.submitAction(ctx, "fill", orderID, taker)
}

// SubmitCancel 提交撤单请求
func (c *RESTClient) SubmitCancel(ctx context.Context, orderID int64, maker common.Address) error {
	return c.submitAction(ctx, "cancel", orderID, maker)
}

func (c *RESTClient) submitAction(ctx context.Context, action string, orderID int64, account common.Address) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var out submitResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"order_id": orderID,
			"account":  account.Hex(),
		}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("%s/v1/orders/%d/%s", c.activeBaseURL(), orderID, action))
	if err != nil {
		return errors.Wrapf(err, "%s 请求失败", action)
	}
	if resp.IsError() || !out.OK {
		code := out.Code
		msg := out.Message
		if msg == "" {
			msg = resp.Status()
		}
		if IsRateLimited(code, msg) {
			c.RotateEndpoint()
		}
		return &ActionError{Code: code, Message: msg}
	}
	return nil
}

// ActionError 携带错误码的写操作错误
type ActionError struct {
	Code    string
	Message string
}

func (e *ActionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}
