package orderbookv1

import (
	"github.com/shopspring/decimal"
)

// OrderbookState is the serialisable form of a book. Bids are best (highest) first,
// asks best (lowest) first. Decimals marshal as strings.
type OrderbookState struct {
	Sequence       int64            `json:"sequence"`
	SourceSequence *int64           `json:"sourceSequence,omitempty"`
	Bids           []LevelState     `json:"bids"`
	Asks           []LevelState     `json:"asks"`
	OrderPool      map[string]Order `json:"orderPool"`
}

// NewOrderbookState returns an empty state with non-nil collections.
func NewOrderbookState() OrderbookState {
	return OrderbookState{
		Bids:      []LevelState{},
		Asks:      []LevelState{},
		OrderPool: map[string]Order{},
	}
}

// Side returns the levels of the given side.
func (s OrderbookState) Side(side Side) []LevelState {
	if side == SideBuy {
		return s.Bids
	}
	return s.Asks
}

// Clone returns a deep copy of s.
func (s OrderbookState) Clone() OrderbookState {
	out := OrderbookState{
		Sequence:  s.Sequence,
		Bids:      cloneLevels(s.Bids),
		Asks:      cloneLevels(s.Asks),
		OrderPool: make(map[string]Order, len(s.OrderPool)),
	}
	if s.SourceSequence != nil {
		seq := *s.SourceSequence
		out.SourceSequence = &seq
	}
	for id, o := range s.OrderPool {
		out.OrderPool[id] = o
	}
	return out
}

// TotalSize sums the level sizes of one side.
func (s OrderbookState) TotalSize(side Side) decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Side(side) {
		total = total.Add(l.TotalSize)
	}
	return total
}

func cloneLevels(levels []LevelState) []LevelState {
	if levels == nil {
		return nil
	}
	out := make([]LevelState, len(levels))
	for i, l := range levels {
		out[i] = l.Clone()
	}
	return out
}

// MarketOrderStats describes the simulated execution of a market order against a snapshot.
type MarketOrderStats struct {
	FirstPrice   decimal.Decimal `json:"firstPrice"`
	LastPrice    decimal.Decimal `json:"lastPrice"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	TotalSize    decimal.Decimal `json:"totalSize"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	// Slippage is |AveragePrice - FirstPrice| / FirstPrice.
	Slippage decimal.Decimal `json:"slippage"`
	// Fees is TotalCost times the fee rate; it is not included in TotalCost.
	Fees     decimal.Decimal `json:"fees"`
	Unfilled decimal.Decimal `json:"unfilled"`
}
