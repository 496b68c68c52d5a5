package orderbook

import (
	"fmt"
	"sort"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
)

type totals struct {
	size  decimal.Decimal
	value decimal.Decimal
}

func (t *totals) add(size, value decimal.Decimal) {
	t.size = t.size.Add(size)
	t.value = t.value.Add(value)
}

// Book is an order pool plus a price level index per side.
// Every pooled order sits in exactly one level of its side, and every level holds at least one order.
// Book is not safe for concurrent use.
type Book struct {
	sequence       int64
	sourceSequence *int64

	pool map[string]orderbookv1.Order
	bids *priceIndex
	asks *priceIndex

	bidTotals totals
	askTotals totals
}

var _ orderbookv1.Book = (*Book)(nil)

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{
		pool: make(map[string]orderbookv1.Order),
		bids: newPriceIndex(orderbookv1.SideBuy),
		asks: newPriceIndex(orderbookv1.SideSell),
	}
}

func (b *Book) index(side orderbookv1.Side) *priceIndex {
	if side == orderbookv1.SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *Book) totalsFor(side orderbookv1.Side) *totals {
	if side == orderbookv1.SideBuy {
		return &b.bidTotals
	}
	return &b.askTotals
}

// Add inserts a new order at the back of its price level.
// It returns false without touching the book when the order is malformed or its id is already present.
func (b *Book) Add(order orderbookv1.Order) bool {
	if order.Validate() != nil {
		return false
	}
	if _, exists := b.pool[order.ID]; exists {
		return false
	}

	b.index(order.Side).getOrCreate(order.Price).append(order)
	b.pool[order.ID] = order
	b.totalsFor(order.Side).add(order.Size, order.Value())
	return true
}

// Remove deletes an order and drops its level when it was the last one there.
func (b *Book) Remove(id string) (orderbookv1.Order, bool) {
	order, ok := b.pool[id]
	if !ok {
		return orderbookv1.Order{}, false
	}

	idx := b.index(order.Side)
	if lvl, ok := idx.get(order.Price); ok {
		lvl.remove(order)
		if lvl.empty() {
			idx.delete(order.Price)
		}
	}
	delete(b.pool, id)
	b.totalsFor(order.Side).add(order.Size.Neg(), order.Value().Neg())
	return order, true
}

// Modify sets the remaining size of an order. A zero size removes it.
// A different newSide moves the order to the back of the same price on the other side.
func (b *Book) Modify(id string, newSize decimal.Decimal, newSide *orderbookv1.Side) bool {
	order, ok := b.pool[id]
	if !ok || newSize.IsNegative() {
		return false
	}
	if newSide != nil && !newSide.Valid() {
		return false
	}

	if newSize.IsZero() {
		b.Remove(id)
		return true
	}

	if newSide != nil && *newSide != order.Side {
		b.Remove(id)
		order.Side = *newSide
		order.Size = newSize
		return b.Add(order)
	}

	delta := newSize.Sub(order.Size)
	deltaValue := order.Price.Mul(delta)
	if lvl, ok := b.index(order.Side).get(order.Price); ok {
		lvl.adjust(delta, deltaValue)
	}
	b.totalsFor(order.Side).add(delta, deltaValue)

	order.Size = newSize
	b.pool[id] = order
	return true
}

// GetOrder returns the pooled order with the given id.
func (b *Book) GetOrder(id string) (orderbookv1.Order, bool) {
	o, ok := b.pool[id]
	return o, ok
}

// HasOrder reports whether id is tracked.
func (b *Book) HasOrder(id string) bool {
	_, ok := b.pool[id]
	return ok
}

// OrderCount is the number of pooled orders.
func (b *Book) OrderCount() int {
	return len(b.pool)
}

// GetLevel returns a copy of the level at price.
func (b *Book) GetLevel(side orderbookv1.Side, price decimal.Decimal) (orderbookv1.LevelState, bool) {
	if !side.Valid() {
		return orderbookv1.LevelState{}, false
	}
	lvl, ok := b.index(side).get(price)
	if !ok {
		return orderbookv1.LevelState{}, false
	}
	return b.levelState(lvl), true
}

// SetLevel replaces the level at price with a single aggregate order of the given size.
// A zero size removes the level.
func (b *Book) SetLevel(side orderbookv1.Side, price, size decimal.Decimal) bool {
	if !side.Valid() || !price.IsPositive() || size.IsNegative() {
		return false
	}

	b.RemoveLevel(side, price)
	if size.IsZero() {
		return true
	}
	return b.Add(orderbookv1.NewOrder(orderbookv1.AggregateOrderID(side, price), side, price, size))
}

// RemoveLevel drops the level at price together with all of its orders.
func (b *Book) RemoveLevel(side orderbookv1.Side, price decimal.Decimal) bool {
	if !side.Valid() {
		return false
	}
	idx := b.index(side)
	lvl, ok := idx.get(price)
	if !ok {
		return false
	}

	for _, id := range lvl.orderIDs {
		delete(b.pool, id)
	}
	b.totalsFor(side).add(lvl.totalSize.Neg(), lvl.totalValue.Neg())
	idx.delete(price)
	return true
}

// BestBid returns the highest bid level.
func (b *Book) BestBid() (orderbookv1.LevelState, bool) {
	return b.best(b.bids)
}

// BestAsk returns the lowest ask level.
func (b *Book) BestAsk() (orderbookv1.LevelState, bool) {
	return b.best(b.asks)
}

func (b *Book) best(idx *priceIndex) (orderbookv1.LevelState, bool) {
	lvl, ok := idx.best()
	if !ok {
		return orderbookv1.LevelState{}, false
	}
	return b.levelState(lvl), true
}

// BidsTotalSize is the running total of bid sizes.
func (b *Book) BidsTotalSize() decimal.Decimal { return b.bidTotals.size }

// AsksTotalSize is the running total of ask sizes.
func (b *Book) AsksTotalSize() decimal.Decimal { return b.askTotals.size }

// BidsValueTotal is the running total of bid notional.
func (b *Book) BidsValueTotal() decimal.Decimal { return b.bidTotals.value }

// AsksValueTotal is the running total of ask notional.
func (b *Book) AsksValueTotal() decimal.Decimal { return b.askTotals.value }

// Bids returns the bid levels, best first.
func (b *Book) Bids() []orderbookv1.LevelState {
	return b.levels(b.bids)
}

// Asks returns the ask levels, best first.
func (b *Book) Asks() []orderbookv1.LevelState {
	return b.levels(b.asks)
}

func (b *Book) levels(idx *priceIndex) []orderbookv1.LevelState {
	out := make([]orderbookv1.LevelState, 0, idx.len())
	idx.walk(func(l *level) bool {
		out = append(out, b.levelState(l))
		return true
	})
	return out
}

func (b *Book) levelState(l *level) orderbookv1.LevelState {
	orders := make([]orderbookv1.Order, len(l.orderIDs))
	for i, id := range l.orderIDs {
		orders[i] = b.pool[id]
	}
	return orderbookv1.LevelState{
		Price:     l.price,
		TotalSize: l.totalSize,
		Orders:    orders,
	}
}

// OrdersForValue walks the side a taker of the given side would consume: asks for a buy, bids for a sell.
// The walk covers whole levels and stops as soon as the cumulative size, or value when useQuote is set,
// reaches target. With start, levels better than start.Price are skipped and start.Size is
// taken as already consumed at start.Price.
func (b *Book) OrdersForValue(side orderbookv1.Side, target decimal.Decimal, useQuote bool, start *orderbookv1.StartPoint) []orderbookv1.CumulativeLevel {
	if !side.Valid() || !target.IsPositive() {
		return nil
	}

	var (
		out      []orderbookv1.CumulativeLevel
		cumSize  = decimal.Zero
		cumValue = decimal.Zero
	)

	visit := func(l *level) bool {
		size := l.totalSize
		value := l.totalValue
		if start != nil && l.price.Equal(start.Price) {
			size = size.Sub(start.Size)
			value = l.price.Mul(size)
		}
		if !size.IsPositive() {
			return true
		}

		cumSize = cumSize.Add(size)
		cumValue = cumValue.Add(value)
		out = append(out, orderbookv1.CumulativeLevel{
			Price:    l.price,
			Size:     size,
			Value:    value,
			CumSize:  cumSize,
			CumValue: cumValue,
		})

		reached := cumSize
		if useQuote {
			reached = cumValue
		}
		return reached.LessThan(target)
	}

	idx := b.index(side.Opposite())
	if start == nil {
		idx.walk(visit)
	} else {
		idx.walkFrom(start.Price, visit)
	}
	return out
}

// Sequence is the last applied stream sequence.
func (b *Book) Sequence() int64 { return b.sequence }

// SetSequence records the last applied stream sequence.
func (b *Book) SetSequence(seq int64) { b.sequence = seq }

// SourceSequence is the venue's own sequence when it differs from the stream sequence.
func (b *Book) SourceSequence() (int64, bool) {
	if b.sourceSequence == nil {
		return 0, false
	}
	return *b.sourceSequence, true
}

// SetSourceSequence records the venue sequence.
func (b *Book) SetSourceSequence(seq int64) { b.sourceSequence = &seq }

// State returns a value view of the book. The result shares nothing with the book.
func (b *Book) State() orderbookv1.OrderbookState {
	state := orderbookv1.OrderbookState{
		Sequence:  b.sequence,
		Bids:      b.Bids(),
		Asks:      b.Asks(),
		OrderPool: make(map[string]orderbookv1.Order, len(b.pool)),
	}
	if seq, ok := b.SourceSequence(); ok {
		state.SourceSequence = &seq
	}
	for id, o := range b.pool {
		state.OrderPool[id] = o
	}
	return state
}

// StateCopy returns a deep copy of State.
func (b *Book) StateCopy() orderbookv1.OrderbookState {
	return b.State().Clone()
}

// FromState replaces the whole book with state. The book is only swapped once every order
// has been accepted, so a failed import leaves it untouched.
//
// Levels without orders but with a size are imported as aggregate levels. A state that has
// no levels but a non-empty order pool is rebuilt from the pool in id order.
func (b *Book) FromState(state orderbookv1.OrderbookState) error {
	next := NewBook()

	if len(state.Bids) == 0 && len(state.Asks) == 0 {
		ids := make([]string, 0, len(state.OrderPool))
		for id := range state.OrderPool {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			o := state.OrderPool[id]
			if o.ID == "" {
				o.ID = id
			}
			if err := next.importOrder(o); err != nil {
				return err
			}
		}
	}

	for _, side := range []orderbookv1.Side{orderbookv1.SideBuy, orderbookv1.SideSell} {
		for _, lvl := range state.Side(side) {
			if err := next.importLevel(side, lvl); err != nil {
				return err
			}
		}
	}

	next.sequence = state.Sequence
	if state.SourceSequence != nil {
		next.SetSourceSequence(*state.SourceSequence)
	}

	*b = *next
	return nil
}

func (b *Book) importLevel(side orderbookv1.Side, lvl orderbookv1.LevelState) error {
	if len(lvl.Orders) == 0 {
		if lvl.TotalSize.IsZero() {
			return nil
		}
		return b.importOrder(orderbookv1.NewOrder(orderbookv1.AggregateOrderID(side, lvl.Price), side, lvl.Price, lvl.TotalSize))
	}

	for _, o := range lvl.Orders {
		if o.Side == "" {
			o.Side = side
		}
		if o.Price.IsZero() {
			o.Price = lvl.Price
		}
		if o.Side != side || !o.Price.Equal(lvl.Price) {
			return fmt.Errorf("%w: order %s listed under %s %s", orderbookv1.ErrInvalidState, o.ID, side, lvl.Price)
		}
		if err := b.importOrder(o); err != nil {
			return err
		}
	}
	return nil
}

func (b *Book) importOrder(o orderbookv1.Order) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("%w: %w", orderbookv1.ErrInvalidState, err)
	}
	if !b.Add(o) {
		return fmt.Errorf("%w: order %s: %w", orderbookv1.ErrInvalidState, o.ID, orderbookv1.ErrOrderExists)
	}
	return nil
}

// Validate recomputes every aggregate from the pooled orders and reports the first drift found.
func (b *Book) Validate() error {
	seen := 0
	for _, side := range []orderbookv1.Side{orderbookv1.SideBuy, orderbookv1.SideSell} {
		var err error
		sideSize, sideValue := decimal.Zero, decimal.Zero

		b.index(side).walk(func(l *level) bool {
			if l.empty() {
				err = fmt.Errorf("empty %s level at %s", side, l.price)
				return false
			}
			size, value := decimal.Zero, decimal.Zero
			for _, id := range l.orderIDs {
				o, ok := b.pool[id]
				if !ok {
					err = fmt.Errorf("%s level %s references unknown order %s", side, l.price, id)
					return false
				}
				if o.Side != side || !o.Price.Equal(l.price) {
					err = fmt.Errorf("order %s indexed under %s %s", id, side, l.price)
					return false
				}
				size = size.Add(o.Size)
				value = value.Add(o.Value())
				seen++
			}
			if !size.Equal(l.totalSize) || !value.Equal(l.totalValue) {
				err = fmt.Errorf("%s level %s totals %s/%s, orders sum to %s/%s", side, l.price, l.totalSize, l.totalValue, size, value)
				return false
			}
			sideSize = sideSize.Add(size)
			sideValue = sideValue.Add(value)
			return true
		})
		if err != nil {
			return err
		}

		t := b.totalsFor(side)
		if !t.size.Equal(sideSize) || !t.value.Equal(sideValue) {
			return fmt.Errorf("%s running totals %s/%s, levels sum to %s/%s", side, t.size, t.value, sideSize, sideValue)
		}
	}

	if seen != len(b.pool) {
		return fmt.Errorf("pool holds %d orders, levels reference %d", len(b.pool), seen)
	}
	return nil
}
