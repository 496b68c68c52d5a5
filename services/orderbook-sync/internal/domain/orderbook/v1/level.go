package orderbookv1

import "github.com/shopspring/decimal"

// LevelState is the exported view of one price level.
type LevelState struct {
	Price     decimal.Decimal `json:"price"`
	TotalSize decimal.Decimal `json:"totalSize"`
	Orders    []Order         `json:"orders"`
}

// Value is the notional resting at the level, Σ price × size.
// A level without orders is priced from its total size.
func (l LevelState) Value() decimal.Decimal {
	if len(l.Orders) == 0 {
		return l.Price.Mul(l.TotalSize)
	}
	total := decimal.Zero
	for _, o := range l.Orders {
		total = total.Add(o.Value())
	}
	return total
}

// Clone returns a copy that shares no slice with l.
func (l LevelState) Clone() LevelState {
	out := l
	if l.Orders != nil {
		out.Orders = make([]Order, len(l.Orders))
		copy(out.Orders, l.Orders)
	}
	return out
}

// CumulativeLevel is one step of a walk through a side of the book.
type CumulativeLevel struct {
	Price decimal.Decimal `json:"price"`
	// Size and Value available at this level (after any start offset).
	Size  decimal.Decimal `json:"size"`
	Value decimal.Decimal `json:"value"`
	// CumSize and CumValue include this level.
	CumSize  decimal.Decimal `json:"cumSize"`
	CumValue decimal.Decimal `json:"cumValue"`
}

// StartPoint resumes a walk part way into the book: levels better than Price are skipped
// and Size is treated as already consumed at Price.
type StartPoint struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}
