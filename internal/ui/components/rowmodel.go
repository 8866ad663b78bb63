package components

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/dexdesk/internal/domain"
	"github.com/betbot/dexdesk/internal/ui/table"
)

// 行视图模型构建的共享部分：吃单视图和挂单视图的行长得一样，
// 只有动作列的语义不同

// ErrNilOrder 行渲染器收到 nil 订单
var ErrNilOrder = errors.New("nil order")

// ShortenAddress 缩写地址展示: 0x1234…cdef
func ShortenAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "…" + hex[len(hex)-4:]
}

// FormatCounterparty 对手方展示（零地址哨兵 = 开放订单）
func FormatCounterparty(addr common.Address) string {
	if addr == (common.Address{}) {
		return "Open"
	}
	return ShortenAddress(addr)
}

// FormatAmount token 数量展示：最多 4 位小数，去掉尾随零
func FormatAmount(d decimal.Decimal) string {
	return d.Round(4).String()
}

// FormatUSD USD 估值展示
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatDeal deal 列展示
// 展示值是比率的倒数：每付出 1 单位价值能换回多少，>1 对 viewer 划算；
// 比率非正说明定价不可用，展示 N/A
func FormatDeal(ratio float64) string {
	if ratio <= 0 {
		return "N/A"
	}
	return strconv.FormatFloat(1/ratio, 'f', 4, 64)
}

// buildLegCell 构建单腿（买/卖）单元格
// 三级降级：Deal 指标齐全 -> 展示数量 + USD 估值；
// 只有 token 元数据 -> 按 decimals 换算展示数量；都没有 -> N/A
func buildLegCell(ctx context.Context, transport Transport, prices PriceSource,
	token common.Address, raw decimal.Decimal, display, usd decimal.Decimal, hasDeal bool) table.Cell {

	info, err := transport.GetTokenInfo(ctx, token)

	symbol := ShortenAddress(token)
	if err == nil && info != nil && info.Symbol != "" {
		symbol = info.Symbol
	}

	if hasDeal {
		return table.Cell{
			Text:      fmt.Sprintf("%s %s (%s)", FormatAmount(display), symbol, FormatUSD(usd)),
			Estimated: prices.IsPriceEstimated(token),
		}
	}

	if err == nil && info != nil {
		return table.Cell{Text: fmt.Sprintf("%s %s", FormatAmount(info.ToDisplayAmount(raw)), symbol)}
	}

	return table.Cell{Text: "N/A"}
}

// buildOrderRow 构建一整行（除动作列语义外两种视图完全一致）
func buildOrderRow(ctx context.Context, transport Transport, prices PriceSource, o *domain.Order) *table.Row {
	var (
		sellDisplay, sellUSD decimal.Decimal
		buyDisplay, buyUSD   decimal.Decimal
		ratio                float64
		hasDeal              = o.HasDeal()
	)
	if hasDeal {
		sellDisplay, sellUSD = o.Deal.SellDisplay, o.Deal.SellUSD
		buyDisplay, buyUSD = o.Deal.BuyDisplay, o.Deal.BuyUSD
		ratio = o.Deal.Ratio
	}

	row := &table.Row{
		OrderID:      o.ID,
		Counterparty: FormatCounterparty(o.Taker),
	}
	row.Cells = []table.Cell{
		{Text: strconv.FormatInt(o.ID, 10)},
		buildLegCell(ctx, transport, prices, o.BuyToken, o.BuyAmount, buyDisplay, buyUSD, hasDeal),
		buildLegCell(ctx, transport, prices, o.SellToken, o.SellAmount, sellDisplay, sellUSD, hasDeal),
		{Text: FormatDeal(ratio)},
	}
	return row
}
