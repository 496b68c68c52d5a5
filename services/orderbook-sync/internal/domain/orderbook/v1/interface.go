package orderbookv1

import "github.com/shopspring/decimal"

// Book is an in-memory limit order book keyed by order id and price level.
// Implementations are not safe for concurrent use.
type Book interface {
	Add(order Order) bool
	Modify(id string, newSize decimal.Decimal, newSide *Side) bool
	Remove(id string) (Order, bool)

	GetOrder(id string) (Order, bool)
	HasOrder(id string) bool
	OrderCount() int

	GetLevel(side Side, price decimal.Decimal) (LevelState, bool)
	SetLevel(side Side, price, size decimal.Decimal) bool
	RemoveLevel(side Side, price decimal.Decimal) bool

	BestBid() (LevelState, bool)
	BestAsk() (LevelState, bool)
	BidsTotalSize() decimal.Decimal
	AsksTotalSize() decimal.Decimal
	BidsValueTotal() decimal.Decimal
	AsksValueTotal() decimal.Decimal

	OrdersForValue(side Side, target decimal.Decimal, useQuote bool, start *StartPoint) []CumulativeLevel

	Sequence() int64
	SetSequence(seq int64)
	SourceSequence() (int64, bool)
	SetSourceSequence(seq int64)

	State() OrderbookState
	StateCopy() OrderbookState
	FromState(state OrderbookState) error
}
