package bookdiff

import (
	"testing"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/orderbook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func stateOf(t *testing.T, orders ...orderbookv1.Order) orderbookv1.OrderbookState {
	t.Helper()
	book := orderbook.NewBook()
	for _, o := range orders {
		require.True(t, book.Add(o), "add %s", o.ID)
	}
	return book.State()
}

func buy(id, price, size string) orderbookv1.Order {
	return orderbookv1.NewOrder(id, orderbookv1.SideBuy, d(price), d(size))
}

func sell(id, price, size string) orderbookv1.Order {
	return orderbookv1.NewOrder(id, orderbookv1.SideSell, d(price), d(size))
}

type levelSize struct {
	price string
	size  string
}

func assertLevels(t *testing.T, want []levelSize, got []orderbookv1.LevelState) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.True(t, d(w.price).Equal(got[i].Price), "level %d price: want %s, got %s", i, w.price, got[i].Price)
		assert.True(t, d(w.size).Equal(got[i].TotalSize), "level %d size: want %s, got %s", i, w.size, got[i].TotalSize)
	}
}

func TestCompareByLevel(t *testing.T) {
	initial := stateOf(t, buy("1", "100", "5"))
	final := stateOf(t, buy("1", "100", "4"), buy("2", "101", "3"), sell("3", "102", "1"))

	t.Run("signed delta", func(t *testing.T) {
		diff := CompareByLevel(initial, final, false, false)
		assertLevels(t, []levelSize{{"100", "-1"}, {"101", "3"}}, diff.Bids)
		assertLevels(t, []levelSize{{"102", "1"}}, diff.Asks)
		require.Len(t, diff.Bids[0].Orders, 1)
		assert.True(t, d("4").Equal(diff.Bids[0].Orders[0].Size), "final orders are carried")
	})

	t.Run("absolute keeping initial orders", func(t *testing.T) {
		diff := CompareByLevel(initial, final, true, true)
		assertLevels(t, []levelSize{{"100", "4"}, {"101", "3"}}, diff.Bids)
		require.Len(t, diff.Bids[0].Orders, 1)
		assert.Equal(t, "1", diff.Bids[0].Orders[0].ID)
		assert.True(t, d("-5").Equal(diff.Bids[0].Orders[0].Size))
	})

	t.Run("removed levels are negated", func(t *testing.T) {
		diff := CompareByLevel(final, initial, false, false)
		assertLevels(t, []levelSize{{"100", "1"}, {"101", "-3"}}, diff.Bids)
		assertLevels(t, []levelSize{{"102", "-1"}}, diff.Asks)
		require.Len(t, diff.Asks[0].Orders, 1)
		assert.True(t, d("-1").Equal(diff.Asks[0].Orders[0].Size))
	})

	t.Run("bids are reported ascending", func(t *testing.T) {
		from := stateOf(t, buy("a", "97", "1"), buy("b", "99", "1"))
		to := stateOf(t, buy("c", "98", "1"), buy("d", "100", "1"))
		diff := CompareByLevel(from, to, false, false)
		assertLevels(t, []levelSize{{"97", "-1"}, {"98", "1"}, {"99", "-1"}, {"100", "1"}}, diff.Bids)
		assert.Empty(t, diff.Asks)
	})

	t.Run("does not alias inputs", func(t *testing.T) {
		diff := CompareByLevel(initial, final, false, false)
		diff.Asks[0].Orders[0].Size = d("999")
		assert.True(t, d("1").Equal(final.Asks[0].Orders[0].Size))
	})
}

func TestCompareByLevel_IdenticalStatesAreEmpty(t *testing.T) {
	states := []orderbookv1.OrderbookState{
		orderbookv1.NewOrderbookState(),
		stateOf(t, buy("1", "100", "5")),
		stateOf(t, buy("1", "100", "2"), buy("2", "99", "1"), sell("3", "110", "2"), sell("4", "110", "0.5")),
	}

	for _, s := range states {
		for _, absolute := range []bool{true, false} {
			for _, keep := range []bool{true, false} {
				diff := CompareByLevel(s, s.Clone(), absolute, keep)
				assert.True(t, diff.Empty())
				assert.NotNil(t, diff.Bids)
				assert.NotNil(t, diff.Asks)
			}
		}
	}
}

func TestCompareByOrder(t *testing.T) {
	initial := stateOf(t, buy("1", "100", "5"), buy("2", "99", "1"), sell("3", "110", "2"))
	final := stateOf(t, buy("1", "100", "4"), buy("4", "100", "3"), sell("3", "110", "2"), sell("5", "111", "1"))
	final.Sequence = 42

	diff := CompareByOrder(initial, final)

	assert.Equal(t, int64(42), diff.Sequence)
	require.Len(t, diff.OrderPool, 3)
	assert.NotContains(t, diff.OrderPool, "1", "orders present in both are left out")
	assert.NotContains(t, diff.OrderPool, "3")
	assert.True(t, d("3").Equal(diff.OrderPool["4"].Size))
	assert.True(t, d("1").Equal(diff.OrderPool["5"].Size))
	assert.True(t, d("-1").Equal(diff.OrderPool["2"].Size))

	assertLevels(t, []levelSize{{"100", "3"}, {"99", "-1"}}, diff.Bids)
	assertLevels(t, []levelSize{{"111", "1"}}, diff.Asks)
}

func TestCompareByOrder_AggregateLevels(t *testing.T) {
	initial := orderbookv1.NewOrderbookState()
	initial.Bids = []orderbookv1.LevelState{{Price: d("100"), TotalSize: d("2")}}
	final := orderbookv1.NewOrderbookState()
	final.Bids = []orderbookv1.LevelState{{Price: d("101"), TotalSize: d("1")}}

	diff := CompareByOrder(initial, final)

	assertLevels(t, []levelSize{{"101", "1"}, {"100", "-2"}}, diff.Bids)
	assert.Contains(t, diff.OrderPool, orderbookv1.AggregateOrderID(orderbookv1.SideBuy, d("100")))
}

func TestCompareByOrder_IdenticalStatesAreEmpty(t *testing.T) {
	s := stateOf(t, buy("1", "100", "2"), sell("2", "110", "1"))
	diff := CompareByOrder(s, s)
	assert.Empty(t, diff.OrderPool)
	assert.Empty(t, diff.Bids)
	assert.Empty(t, diff.Asks)
}
