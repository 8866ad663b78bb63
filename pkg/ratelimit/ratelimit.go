package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 速率限制器接口
type Limiter interface {
	Allow() bool
	Wait(ctx context.Context) error
	Remaining() int
}

// TokenBucket 令牌桶限流
// 公共只读节点有请求频率上限，客户端侧先行限速，
// 尽量避免触发服务端 429 后被动切换备用节点
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int // 每秒补充的令牌数
	lastRefill time.Time
}

// NewTokenBucket 创建令牌桶
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}
}

// Allow 尝试取一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(time.Now())
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 阻塞直到拿到令牌或 ctx 取消
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		interval := time.Second
		if tb.refillRate > 0 {
			interval = time.Second / time.Duration(tb.refillRate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Remaining 当前剩余令牌数
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(time.Now())
	return tb.tokens
}
