package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Order 链上限价订单的不可变快照
// 由同步服务写入订单缓存，视图组件只读，永远不原地修改
type Order struct {
	ID         int64           // 订单 ID（稳定排序键）
	Maker      common.Address  // 挂单方地址
	Taker      common.Address  // 吃单方地址（零地址 = 开放订单，任何人可吃）
	SellToken  common.Address  // 卖出 token 地址
	BuyToken   common.Address  // 买入 token 地址
	SellAmount decimal.Decimal // 卖出数量（token 最小单位）
	BuyAmount  decimal.Decimal // 买入数量（token 最小单位）
	CreatedAt  int64           // 创建时间（unix 秒）
	ExpiresAt  int64           // 过期时间（unix 秒）
	Deal       *DealMetrics    // 派生指标（同步服务预计算，可选）
}

// DealMetrics 订单派生指标（展示用，由同步服务在定价刷新后补齐）
type DealMetrics struct {
	SellDisplay decimal.Decimal // 卖出数量（按 decimals 换算后的展示值）
	BuyDisplay  decimal.Decimal // 买入数量（展示值）
	SellUSD     decimal.Decimal // 卖出腿 USD 估值
	BuyUSD      decimal.Decimal // 买入腿 USD 估值
	Ratio       float64         // deal 比率 = buyValue / sellValue（<=0 表示定价不可用）
}

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusActive   OrderStatus = "Active"   // 活跃（未过期、未成交、未取消）
	OrderStatusExpired  OrderStatus = "Expired"  // 已过期
	OrderStatusFilled   OrderStatus = "Filled"   // 已成交
	OrderStatusCanceled OrderStatus = "Canceled" // 已取消
)

// IsOpen 检查是否为开放订单（未指定吃单方）
func (o *Order) IsOpen() bool {
	return o.Taker == (common.Address{})
}

// IsExpiredAt 检查订单在给定时间是否已过期
func (o *Order) IsExpiredAt(now time.Time) bool {
	return o.ExpiresAt > 0 && now.Unix() >= o.ExpiresAt
}

// TimeToExpiry 返回距过期的剩余时间（已过期返回 0）
func (o *Order) TimeToExpiry(now time.Time) time.Duration {
	remaining := time.Unix(o.ExpiresAt, 0).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasDeal 检查订单是否带有可用的 deal 指标（比率为正）
func (o *Order) HasDeal() bool {
	return o.Deal != nil && o.Deal.Ratio > 0
}
