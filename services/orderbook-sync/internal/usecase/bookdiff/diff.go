package bookdiff

import (
	"sort"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/orderbook"
)

// Diff is a level-granularity difference between two book states.
// Both sides are ordered by ascending price.
type Diff struct {
	Bids []orderbookv1.LevelState `json:"bids"`
	Asks []orderbookv1.LevelState `json:"asks"`
}

// Empty reports whether the diff carries no edits.
func (d Diff) Empty() bool {
	return len(d.Bids) == 0 && len(d.Asks) == 0
}

// CompareByLevel walks the levels of both states in price order and returns the level edits
// that turn initial into final.
//
// A level only in initial is reported with negated size and orders. A level only in final is
// reported as is. A level present in both with a different size is reported with the final size
// when absolute is set, the signed delta otherwise; its orders are the negated initial orders when
// keepInitial is set, the final orders otherwise. Equal levels are omitted.
func CompareByLevel(initial, final orderbookv1.OrderbookState, absolute, keepInitial bool) Diff {
	return Diff{
		Bids: compareSide(ascending(initial.Bids), ascending(final.Bids), absolute, keepInitial),
		Asks: compareSide(ascending(initial.Asks), ascending(final.Asks), absolute, keepInitial),
	}
}

func compareSide(from, to []orderbookv1.LevelState, absolute, keepInitial bool) []orderbookv1.LevelState {
	out := []orderbookv1.LevelState{}
	i, j := 0, 0

	for i < len(from) || j < len(to) {
		switch {
		case j == len(to) || (i < len(from) && from[i].Price.LessThan(to[j].Price)):
			out = append(out, negate(from[i]))
			i++
		case i == len(from) || to[j].Price.LessThan(from[i].Price):
			out = append(out, to[j].Clone())
			j++
		default:
			a, b := from[i], to[j]
			i++
			j++
			if a.TotalSize.Equal(b.TotalSize) {
				continue
			}

			lvl := orderbookv1.LevelState{Price: b.Price, TotalSize: b.TotalSize}
			if !absolute {
				lvl.TotalSize = b.TotalSize.Sub(a.TotalSize)
			}
			if keepInitial {
				lvl.Orders = negate(a).Orders
			} else {
				lvl.Orders = b.Clone().Orders
			}
			out = append(out, lvl)
		}
	}
	return out
}

// CompareByOrder diffs the order pools of two states by id. Orders in both are left out,
// orders only in final are kept as is and orders only in initial are negated.
// The result is the state of a book holding those orders.
func CompareByOrder(initial, final orderbookv1.OrderbookState) orderbookv1.OrderbookState {
	before := ordersOf(initial)
	after := ordersOf(final)

	book := orderbook.NewBook()
	for _, o := range after.list {
		if _, ok := before.byID[o.ID]; !ok {
			book.Add(o)
		}
	}
	for _, o := range before.list {
		if _, ok := after.byID[o.ID]; !ok {
			book.Add(o.Negated())
		}
	}
	book.SetSequence(final.Sequence)
	return book.State()
}

type orderSet struct {
	list []orderbookv1.Order
	byID map[string]struct{}
}

// ordersOf lists the orders of a state in level order. Levels without orders stand for one
// aggregate order; a state without levels falls back to its pool in id order.
func ordersOf(state orderbookv1.OrderbookState) orderSet {
	set := orderSet{byID: map[string]struct{}{}}
	push := func(o orderbookv1.Order) {
		if _, dup := set.byID[o.ID]; dup {
			return
		}
		set.byID[o.ID] = struct{}{}
		set.list = append(set.list, o)
	}

	for _, side := range []orderbookv1.Side{orderbookv1.SideBuy, orderbookv1.SideSell} {
		for _, lvl := range state.Side(side) {
			if len(lvl.Orders) == 0 && !lvl.TotalSize.IsZero() {
				push(orderbookv1.NewOrder(orderbookv1.AggregateOrderID(side, lvl.Price), side, lvl.Price, lvl.TotalSize))
				continue
			}
			for _, o := range lvl.Orders {
				if o.Side == "" {
					o.Side = side
				}
				push(o)
			}
		}
	}

	if len(set.list) == 0 {
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
			push(o)
		}
	}
	return set
}

func ascending(levels []orderbookv1.LevelState) []orderbookv1.LevelState {
	out := make([]orderbookv1.LevelState, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

func negate(l orderbookv1.LevelState) orderbookv1.LevelState {
	out := orderbookv1.LevelState{Price: l.Price, TotalSize: l.TotalSize.Neg()}
	if l.Orders != nil {
		out.Orders = make([]orderbookv1.Order, len(l.Orders))
		for i, o := range l.Orders {
			out.Orders[i] = o.Negated()
		}
	}
	return out
}
