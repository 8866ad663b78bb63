package exchange

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrTransportNotReady transport is connecting or reconnecting; callers are
// expected to retry.
var ErrTransportNotReady = errors.New("exchange transport not ready")

// ErrOrderNotFound order id is not in the live cache.
var ErrOrderNotFound = errors.New("order not found in cache")

// Known transport/contract error codes.
const (
	CodeInvalidOrder          = "INVALID_ORDER"
	CodeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeOrderExpired          = "ORDER_EXPIRED"
	CodeRateLimited           = "RATE_LIMITED"
)

// userMessages maps known error codes to user-facing text. Unknown codes fall
// through to the raw message.
var userMessages = map[string]string{
	CodeInvalidOrder:          "订单无效或已被占用",
	CodeInsufficientAllowance: "代币授权额度不足，请先授权",
	CodeUnauthorized:          "当前账户无权执行该操作",
	CodeOrderExpired:          "订单已过期",
	CodeRateLimited:           "请求过于频繁，已切换备用节点",
}

// UserMessage resolves an error code to a user-facing message.
func UserMessage(code, raw string) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return raw
}

// rate-limit message patterns seen from read endpoints that do not set a code.
var rateLimitPatterns = []string{
	"429",
	"too many requests",
	"rate limit",
}

// IsRateLimited reports whether an error code/message indicates rate limiting.
func IsRateLimited(code, msg string) bool {
	if code == CodeRateLimited {
		return true
	}
	lower := strings.ToLower(msg)
	for _, p := range rateLimitPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
