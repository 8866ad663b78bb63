package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenInfo token 元数据（由交易所元数据接口返回）
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Decimals int32          `json:"decimals"`
}

// ToDisplayAmount 把最小单位数量换算为展示数量（除以 10^decimals）
func (t *TokenInfo) ToDisplayAmount(baseUnits decimal.Decimal) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	return baseUnits.Shift(-t.Decimals)
}
