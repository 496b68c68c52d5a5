package main

import (
	"context"
	"testing"

	"github.com/muhammadchandra19/exchange/pkg/logger"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/orderbook"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/synchronizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip sends msg through the wire encoding the producer uses.
func roundTrip(t *testing.T, msg messagev1.Message) messagev1.Message {
	t.Helper()
	data, err := messagev1.Encode(msg)
	require.NoError(t, err)
	decoded, err := messagev1.Decode(data)
	require.NoError(t, err)
	return decoded
}

func TestStreamGenerator_StreamAppliesCleanly(t *testing.T) {
	gen := newStreamGenerator("BTC-USD", 42, 1000, 3945.5, 200, 0)
	book := orderbook.NewBook()
	sync := synchronizer.NewSynchronizer(book, logger.NewNopLogger(), synchronizer.Options{ProductID: "BTC-USD", Strict: true})
	ctx := context.Background()

	snapshot := gen.Snapshot(20)
	assert.Equal(t, int64(1000), snapshot.Sequence)
	assert.Len(t, snapshot.OrderPool, 40)

	res, err := sync.Apply(ctx, roundTrip(t, snapshot))
	require.NoError(t, err)
	require.Equal(t, synchronizer.ResultApplied, res)

	kinds := map[messagev1.Kind]int{}
	for i := 0; i < 2000; i++ {
		msg := gen.Next()
		kinds[msg.Kind()]++

		res, err := sync.Apply(ctx, roundTrip(t, msg))
		require.NoError(t, err, "message %d (%s)", i, msg.Kind())
		require.Equal(t, synchronizer.ResultApplied, res, "message %d (%s)", i, msg.Kind())
	}

	for _, kind := range []messagev1.Kind{
		messagev1.KindNewOrder,
		messagev1.KindOrderDone,
		messagev1.KindChangedOrder,
		messagev1.KindTicker,
		messagev1.KindTrade,
	} {
		assert.Positive(t, kinds[kind], kind)
	}

	assert.Equal(t, synchronizer.StateSynced, sync.State())
	assert.Equal(t, gen.seq, book.Sequence())
	assert.Equal(t, gen.book.OrderCount(), book.OrderCount())
	assert.True(t, gen.book.BidsTotalSize().Equal(book.BidsTotalSize()))
	assert.True(t, gen.book.AsksValueTotal().Equal(book.AsksValueTotal()))
	require.NoError(t, book.Validate())

	if bid, ok := book.BestBid(); ok {
		if ask, ok := book.BestAsk(); ok {
			assert.True(t, bid.Price.LessThan(ask.Price))
		}
	}
}

func TestStreamGenerator_GapsAndRecovery(t *testing.T) {
	gen := newStreamGenerator("BTC-USD", 7, 0, 100, 10, 5)
	book := orderbook.NewBook()
	sync := synchronizer.NewSynchronizer(book, logger.NewNopLogger(), synchronizer.Options{ProductID: "BTC-USD"})
	ctx := context.Background()

	_, err := sync.Apply(ctx, gen.Snapshot(5))
	require.NoError(t, err)

	skipped := false
	for i := 0; i < 50 && !skipped; i++ {
		res, err := sync.Apply(ctx, gen.Next())
		require.NoError(t, err)
		skipped = res == synchronizer.ResultSkipped
	}
	require.True(t, skipped)
	assert.Equal(t, synchronizer.StateGapDetected, sync.State())

	_, err = sync.Apply(ctx, gen.Snapshot(5))
	require.NoError(t, err)
	assert.Equal(t, synchronizer.StateSynced, sync.State())
	assert.Equal(t, gen.seq, book.Sequence())
	assert.Equal(t, gen.book.OrderCount(), book.OrderCount())
}
