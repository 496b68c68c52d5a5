package orderbookv1

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the side of the book an order rests on.
type Side string

const (
	// SideBuy rests on the bid side.
	SideBuy Side = "buy"
	// SideSell rests on the ask side.
	SideSell Side = "sell"
)

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ParseSide accepts the canonical names plus the bid/ask aliases some venues use.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy", "bid", "bids":
		return SideBuy, nil
	case "sell", "ask", "asks":
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Order is a single resting order. Orders are values; the book keeps exactly one copy per id.
type Order struct {
	ID    string          `json:"id"`
	Side  Side            `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// NewOrder creates an order.
func NewOrder(id string, side Side, price, size decimal.Decimal) Order {
	return Order{
		ID:    id,
		Side:  side,
		Price: price,
		Size:  size,
	}
}

// Value is price times size.
func (o Order) Value() decimal.Decimal {
	return o.Price.Mul(o.Size)
}

// Negated returns a copy of o with its size sign flipped.
func (o Order) Negated() Order {
	o.Size = o.Size.Neg()
	return o
}

// Validate checks the fields a book needs to index the order.
// Size is not checked: diff books carry negative sizes.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidOrder)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: order %s: %w", ErrInvalidOrder, o.ID, ErrInvalidSide)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: order %s: price %s must be positive", ErrInvalidOrder, o.ID, o.Price)
	}
	return nil
}

// AggregateOrderID is the id of the synthetic order standing in for an aggregated (L2) level.
func AggregateOrderID(side Side, price decimal.Decimal) string {
	return fmt.Sprintf("%s@%s", side, price.String())
}
