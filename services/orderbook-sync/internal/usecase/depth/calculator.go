package depth

import (
	"sort"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
)

// Integral is the size and value consumed between two fill boundaries.
type Integral struct {
	Size  decimal.Decimal `json:"size"`
	Value decimal.Decimal `json:"value"`
	Fees  decimal.Decimal `json:"fees"`
}

// sideCache holds cumulative sums over the orders of one side in priority order.
type sideCache struct {
	prices   []decimal.Decimal
	cumSize  []decimal.Decimal
	cumValue []decimal.Decimal
}

func newSideCache(levels []orderbookv1.LevelState) *sideCache {
	c := &sideCache{}
	size, value := decimal.Zero, decimal.Zero

	push := func(price, qty decimal.Decimal) {
		if !qty.IsPositive() {
			return
		}
		size = size.Add(qty)
		value = value.Add(price.Mul(qty))
		c.prices = append(c.prices, price)
		c.cumSize = append(c.cumSize, size)
		c.cumValue = append(c.cumValue, value)
	}

	for _, lvl := range levels {
		if len(lvl.Orders) == 0 {
			push(lvl.Price, lvl.TotalSize)
			continue
		}
		for _, o := range lvl.Orders {
			push(lvl.Price, o.Size)
		}
	}
	return c
}

func (c *sideCache) axis(useValue bool) []decimal.Decimal {
	if useValue {
		return c.cumValue
	}
	return c.cumSize
}

// indexOf is the leftmost index whose cumulative sum reaches target, or -1.
func (c *sideCache) indexOf(target decimal.Decimal, useValue bool) int {
	cum := c.axis(useValue)
	i := sort.Search(len(cum), func(i int) bool {
		return cum[i].GreaterThanOrEqual(target)
	})
	if i == len(cum) {
		return -1
	}
	return i
}

// Calculator answers depth queries against a frozen book state.
// It is not safe for concurrent use.
type Calculator struct {
	state orderbookv1.OrderbookState
	bids  *sideCache
	asks  *sideCache
}

// NewCalculator creates a Calculator over state. The state must not be mutated afterwards.
func NewCalculator(state orderbookv1.OrderbookState) *Calculator {
	return &Calculator{state: state}
}

// SetState replaces the state and discards the cache.
func (c *Calculator) SetState(state orderbookv1.OrderbookState) {
	c.state = state
	c.BustCache()
}

// Precache builds the cumulative arrays of both sides.
func (c *Calculator) Precache() {
	c.bids = newSideCache(c.state.Bids)
	c.asks = newSideCache(c.state.Asks)
}

// BustCache discards the cumulative arrays; the next query rebuilds them.
func (c *Calculator) BustCache() {
	c.bids = nil
	c.asks = nil
}

// side returns the liquidity a taker consumes: asks for a buy, bids for a sell.
func (c *Calculator) side(isBuy bool) *sideCache {
	if c.bids == nil || c.asks == nil {
		c.Precache()
	}
	if isBuy {
		return c.asks
	}
	return c.bids
}

// GetIndexOfTotalSize returns the index of the first order at which the cumulative size reaches size,
// or -1 when the side is not deep enough.
func (c *Calculator) GetIndexOfTotalSize(size decimal.Decimal, isBuy bool) int {
	return c.side(isBuy).indexOf(size, false)
}

// GetIndexOfTotalValue is GetIndexOfTotalSize over cumulative value.
func (c *Calculator) GetIndexOfTotalValue(value decimal.Decimal, isBuy bool) int {
	return c.side(isBuy).indexOf(value, true)
}

// IntegrateBetween returns the size and value between the cumulative boundaries start and end,
// measured in size or, with useValue, in value. The range is clipped to the available depth.
// Fees is the fee rate applied to the value.
func (c *Calculator) IntegrateBetween(start, end decimal.Decimal, isBuy bool, fees decimal.Decimal, useValue bool) Integral {
	integral, _ := c.integrate(start, end, isBuy, fees, useValue)
	return integral
}

type fill struct {
	first decimal.Decimal
	last  decimal.Decimal
	ok    bool
}

func (c *Calculator) integrate(start, end decimal.Decimal, isBuy bool, fees decimal.Decimal, useValue bool) (Integral, fill) {
	result := Integral{Size: decimal.Zero, Value: decimal.Zero, Fees: decimal.Zero}
	var f fill
	if start.IsNegative() {
		start = decimal.Zero
	}
	if !end.GreaterThan(start) {
		return result, f
	}

	side := c.side(isBuy)
	cum := side.axis(useValue)
	i := sort.Search(len(cum), func(i int) bool {
		return cum[i].GreaterThan(start)
	})

	for ; i < len(cum); i++ {
		prev := decimal.Zero
		if i > 0 {
			prev = cum[i-1]
		}
		if !prev.LessThan(end) {
			break
		}

		consumed := decimal.Min(cum[i], end).Sub(decimal.Max(prev, start))
		price := side.prices[i]
		if useValue {
			result.Value = result.Value.Add(consumed)
			result.Size = result.Size.Add(consumed.Div(price))
		} else {
			result.Size = result.Size.Add(consumed)
			result.Value = result.Value.Add(consumed.Mul(price))
		}

		if !f.ok {
			f.first = price
			f.ok = true
		}
		f.last = price
	}

	result.Fees = result.Value.Mul(fees)
	return result, f
}

// GetSizeFromCost returns how much can be bought (or sold) with totalFunds, which include fees,
// starting startValue deep into the book. A fee rate of -1 or below buys nothing.
func (c *Calculator) GetSizeFromCost(startValue, totalFunds decimal.Decimal, isBuy bool, fees decimal.Decimal) Integral {
	divisor := decimal.NewFromInt(1).Add(fees)
	if !divisor.IsPositive() {
		return Integral{Size: decimal.Zero, Value: decimal.Zero, Fees: decimal.Zero}
	}
	net := totalFunds.Div(divisor)
	return c.IntegrateBetween(startValue, startValue.Add(net), isBuy, fees, true)
}

// CalculateMarketOrderStats simulates a market order of amount on side. A buy walks the asks and a
// sell walks the bids. Missing depth is reported in Unfilled rather than as an error.
func (c *Calculator) CalculateMarketOrderStats(side orderbookv1.Side, amount, fees decimal.Decimal) orderbookv1.MarketOrderStats {
	integral, f := c.integrate(decimal.Zero, amount, side == orderbookv1.SideBuy, fees, false)

	stats := orderbookv1.MarketOrderStats{
		FirstPrice:   decimal.Zero,
		LastPrice:    decimal.Zero,
		AveragePrice: decimal.Zero,
		TotalSize:    integral.Size,
		TotalCost:    integral.Value,
		Slippage:     decimal.Zero,
		Fees:         integral.Fees,
		Unfilled:     decimal.Zero,
	}
	if amount.GreaterThan(integral.Size) {
		stats.Unfilled = amount.Sub(integral.Size)
	}
	if !f.ok {
		return stats
	}

	stats.FirstPrice = f.first
	stats.LastPrice = f.last
	stats.AveragePrice = integral.Value.Div(integral.Size)
	stats.Slippage = stats.AveragePrice.Sub(f.first).Abs().Div(f.first)
	return stats
}
