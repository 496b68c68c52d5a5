package orderbook

import (
	"github.com/google/btree"
	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
)

const indexDegree = 32

// level is a price level node. It references orders by id; the order values live in the pool.
type level struct {
	price      decimal.Decimal
	totalSize  decimal.Decimal
	totalValue decimal.Decimal
	orderIDs   []string
}

func newLevel(price decimal.Decimal) *level {
	return &level{
		price:      price,
		totalSize:  decimal.Zero,
		totalValue: decimal.Zero,
	}
}

func (l *level) append(o orderbookv1.Order) {
	l.orderIDs = append(l.orderIDs, o.ID)
	l.adjust(o.Size, o.Value())
}

func (l *level) remove(o orderbookv1.Order) bool {
	for i, id := range l.orderIDs {
		if id == o.ID {
			l.orderIDs = append(l.orderIDs[:i], l.orderIDs[i+1:]...)
			l.adjust(o.Size.Neg(), o.Value().Neg())
			return true
		}
	}
	return false
}

func (l *level) adjust(size, value decimal.Decimal) {
	l.totalSize = l.totalSize.Add(size)
	l.totalValue = l.totalValue.Add(value)
}

func (l *level) empty() bool {
	return len(l.orderIDs) == 0
}

// priceIndex orders the levels of one side. Both sides are stored ascending;
// iteration direction gives bids highest-first and asks lowest-first.
type priceIndex struct {
	side orderbookv1.Side
	tree *btree.BTreeG[*level]
}

func newPriceIndex(side orderbookv1.Side) *priceIndex {
	return &priceIndex{
		side: side,
		tree: btree.NewG(indexDegree, func(a, b *level) bool {
			return a.price.LessThan(b.price)
		}),
	}
}

func (x *priceIndex) get(price decimal.Decimal) (*level, bool) {
	return x.tree.Get(&level{price: price})
}

func (x *priceIndex) getOrCreate(price decimal.Decimal) *level {
	if l, ok := x.get(price); ok {
		return l
	}
	l := newLevel(price)
	x.tree.ReplaceOrInsert(l)
	return l
}

func (x *priceIndex) delete(price decimal.Decimal) {
	x.tree.Delete(&level{price: price})
}

func (x *priceIndex) len() int {
	return x.tree.Len()
}

func (x *priceIndex) best() (*level, bool) {
	if x.side == orderbookv1.SideBuy {
		return x.tree.Max()
	}
	return x.tree.Min()
}

// walk visits levels best first until fn returns false.
func (x *priceIndex) walk(fn func(*level) bool) {
	if x.side == orderbookv1.SideBuy {
		x.tree.Descend(fn)
		return
	}
	x.tree.Ascend(fn)
}

// walkFrom visits levels at price or worse, best first.
func (x *priceIndex) walkFrom(price decimal.Decimal, fn func(*level) bool) {
	pivot := &level{price: price}
	if x.side == orderbookv1.SideBuy {
		x.tree.DescendLessOrEqual(pivot, fn)
		return
	}
	x.tree.AscendGreaterOrEqual(pivot, fn)
}
