package feed

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/muhammadchandra19/exchange/pkg/logger"
	eventv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/event/v1"
	eventmock "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/event/v1/mock"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	messagemock "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1/mock"
	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	snapshotv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/snapshot/v1"
	snapshotmock "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/snapshot/v1/mock"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/bookdiff"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/metrics"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/orderbook"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/synchronizer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const product = "BTC-USD"

// Test fixtures and helpers
type testFixture struct {
	ctrl              *gomock.Controller
	mockReader        *messagemock.MockReader
	mockSnapshotStore *snapshotmock.MockStore
	mockPublisher     *eventmock.MockPublisher
	book              *orderbook.Book
	synchronizer      *synchronizer.Synchronizer
	feed              *Feed
}

func setupTestFixture(t *testing.T, strict bool, options *Options) *testFixture {
	ctrl := gomock.NewController(t)
	log := logger.NewNopLogger()

	f := &testFixture{
		ctrl:              ctrl,
		mockReader:        messagemock.NewMockReader(ctrl),
		mockSnapshotStore: snapshotmock.NewMockStore(ctrl),
		mockPublisher:     eventmock.NewMockPublisher(ctrl),
		book:              orderbook.NewBook(),
	}
	f.synchronizer = synchronizer.NewSynchronizer(f.book, log, synchronizer.Options{ProductID: product, Strict: strict})
	if options == nil {
		options = DefaultFeedOptions()
	}
	f.feed = NewFeedWithOptions(
		f.synchronizer,
		f.mockReader,
		f.mockSnapshotStore,
		f.mockPublisher,
		metrics.New(prometheus.NewRegistry()),
		log,
		options,
	)
	return f
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshotState(seq int64, orders ...orderbookv1.Order) orderbookv1.OrderbookState {
	book := orderbook.NewBook()
	for _, o := range orders {
		book.Add(o)
	}
	book.SetSequence(seq)
	return book.State()
}

func newOrder(seq int64, id string, side orderbookv1.Side, price, size string) *messagev1.NewOrder {
	return &messagev1.NewOrder{
		Header:   messagev1.Header{ProductID: product},
		Sequence: seq,
		OrderID:  id,
		Side:     side,
		Price:    d(price),
		Size:     d(size),
	}
}

// queueReader serves records from a queue and blocks on the context once it is empty.
type queueReader struct {
	mu    sync.Mutex
	queue []queued
}

type queued struct {
	raw kafka.Message
	msg messagev1.Message
	err error
}

func (q *queueReader) push(offset int64, msg messagev1.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, queued{raw: kafka.Message{Offset: offset}, msg: msg})
}

func (q *queueReader) pushErr(offset int64, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, queued{raw: kafka.Message{Offset: offset}, err: err})
}

func (q *queueReader) read(ctx context.Context) (kafka.Message, messagev1.Message, error) {
	q.mu.Lock()
	if len(q.queue) > 0 {
		next := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()
		return next.raw, next.msg, next.err
	}
	q.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, nil, ctx.Err()
}

func blockingRead(ctx context.Context) (kafka.Message, messagev1.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, nil, ctx.Err()
}

func stop(t *testing.T, f *Feed) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.Stop(ctx))
}

func TestFeed_StartRestoresCheckpoint(t *testing.T) {
	f := setupTestFixture(t, true, nil)

	checkpoint := &snapshotv1.Snapshot{
		ProductID: product,
		Offset:    100,
		State:     snapshotState(10, orderbookv1.NewOrder("b1", orderbookv1.SideBuy, d("100"), d("1"))),
	}
	f.mockSnapshotStore.EXPECT().LoadStore(gomock.Any()).Return(checkpoint, nil).Times(1)
	f.mockReader.EXPECT().SetOffset(int64(101)).Return(nil).Times(1)
	f.mockReader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(blockingRead).AnyTimes()
	f.mockReader.EXPECT().Close().Return(nil).Times(1)
	f.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.mockPublisher.EXPECT().Close().Return(nil).Times(1)

	require.NoError(t, f.feed.Start(context.Background()))

	assert.True(t, f.feed.Ready())
	assert.Equal(t, int64(100), f.feed.Offset())
	assert.Equal(t, int64(100), f.feed.LastCheckpointOffset())
	assert.Equal(t, int64(10), f.feed.Status().Sequence)
	assert.True(t, f.book.HasOrder("b1"))

	// nothing moved, so no checkpoint is written on shutdown
	stop(t, f.feed)
}

func TestFeed_StartWithoutCheckpoint(t *testing.T) {
	f := setupTestFixture(t, true, nil)

	f.mockSnapshotStore.EXPECT().LoadStore(gomock.Any()).Return(nil, nil).Times(1)
	f.mockReader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(blockingRead).AnyTimes()
	f.mockReader.EXPECT().Close().Return(nil).Times(1)
	f.mockPublisher.EXPECT().Close().Return(nil).Times(1)

	require.NoError(t, f.feed.Start(context.Background()))
	assert.False(t, f.feed.Ready())
	assert.Equal(t, int64(-1), f.feed.Offset())

	stop(t, f.feed)
}

func TestFeed_StartDiscardsUnusableCheckpoint(t *testing.T) {
	f := setupTestFixture(t, true, nil)

	state := orderbookv1.NewOrderbookState()
	state.Sequence = 5
	state.Bids = []orderbookv1.LevelState{{
		Price:  d("100"),
		Orders: []orderbookv1.Order{orderbookv1.NewOrder("x", orderbookv1.SideSell, d("100"), d("1"))},
	}}

	f.mockSnapshotStore.EXPECT().LoadStore(gomock.Any()).Return(&snapshotv1.Snapshot{Offset: 9, State: state}, nil)
	f.mockSnapshotStore.EXPECT().Discard(gomock.Any()).Return(nil).Times(1)
	f.mockReader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(blockingRead).AnyTimes()
	f.mockReader.EXPECT().Close().Return(nil)
	f.mockPublisher.EXPECT().Close().Return(nil)

	require.NoError(t, f.feed.Start(context.Background()))
	assert.False(t, f.feed.Ready())
	assert.Equal(t, int64(-1), f.feed.Offset())

	stop(t, f.feed)
}

func TestFeed_StartFailsWhenCheckpointCannotBeRead(t *testing.T) {
	f := setupTestFixture(t, true, nil)
	f.mockSnapshotStore.EXPECT().LoadStore(gomock.Any()).Return(nil, stderrors.New("redis down"))

	require.Error(t, f.feed.Start(context.Background()))
}

func TestFeed_ProcessesStream(t *testing.T) {
	f := setupTestFixture(t, true, &Options{
		SnapshotInterval: time.Hour,
		EventBufferSize:  16,
		ReadBackoff:      time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	q := &queueReader{}
	q.push(0, messagev1.NewSnapshot(product, snapshotState(10)))
	q.push(1, newOrder(11, "b1", orderbookv1.SideBuy, "100", "2"))
	q.pushErr(2, stderrors.New("broker unavailable"))
	q.pushErr(3, messagev1.ErrMalformedMessage)
	q.push(4, newOrder(12, "a1", orderbookv1.SideSell, "101", "1"))
	q.push(5, newOrder(11, "dup", orderbookv1.SideSell, "101", "1"))

	var (
		mu        sync.Mutex
		committed []int64
		published []eventv1.Event
		stored    *snapshotv1.Snapshot
	)

	f.mockSnapshotStore.EXPECT().LoadStore(gomock.Any()).Return(nil, nil)
	f.mockReader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(q.read).AnyTimes()
	f.mockReader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			for _, m := range msgs {
				committed = append(committed, m.Offset)
			}
			return nil
		}).AnyTimes()
	f.mockReader.EXPECT().Close().Return(nil)
	f.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, events ...eventv1.Event) error {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, events...)
			return nil
		}).AnyTimes()
	f.mockPublisher.EXPECT().Close().Return(nil)
	f.mockSnapshotStore.EXPECT().Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *snapshotv1.Snapshot) error {
			mu.Lock()
			defer mu.Unlock()
			stored = s
			return nil
		}).Times(1)

	require.NoError(t, f.feed.Start(context.Background()))

	require.Eventually(t, func() bool {
		return f.feed.Offset() == 5
	}, 5*time.Second, 5*time.Millisecond)

	stop(t, f.feed)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []int64{0, 1, 3, 4, 5}, committed, "transport errors are retried, undecodable records are skipped")
	assert.Equal(t, int64(12), f.feed.Status().Sequence)
	assert.True(t, f.book.HasOrder("b1"))
	assert.True(t, f.book.HasOrder("a1"))
	assert.False(t, f.book.HasOrder("dup"))

	require.Len(t, published, 1)
	assert.Equal(t, eventv1.KindSnapshotApplied, published[0].Kind())

	require.NotNil(t, stored, "a checkpoint is written on shutdown")
	assert.Equal(t, int64(5), stored.Offset)
	assert.Equal(t, int64(12), stored.State.Sequence)
	assert.Len(t, stored.State.OrderPool, 2)
}

func TestFeed_ProcessStrictGap(t *testing.T) {
	f := setupTestFixture(t, true, nil)
	f.feed.ctx = context.Background()
	f.mockReader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	f.feed.process(kafka.Message{Offset: 0}, messagev1.NewSnapshot(product, snapshotState(10)))
	f.feed.process(kafka.Message{Offset: 1}, newOrder(13, "b1", orderbookv1.SideBuy, "100", "1"))

	status := f.feed.Status()
	assert.Equal(t, synchronizer.StateHalted, status.State)
	require.NotNil(t, status.Gap)
	assert.Equal(t, int64(11), status.Gap.Expected)
	assert.False(t, f.feed.Ready())

	f.feed.process(kafka.Message{Offset: 2}, newOrder(11, "b1", orderbookv1.SideBuy, "100", "1"))
	assert.False(t, f.book.HasOrder("b1"))
	assert.Equal(t, int64(2), f.feed.Offset())

	f.feed.process(kafka.Message{Offset: 3}, messagev1.NewSnapshot(product, snapshotState(20)))
	assert.True(t, f.feed.Ready())
}

func TestFeed_Checkpoint(t *testing.T) {
	f := setupTestFixture(t, false, nil)
	ctx := context.Background()
	f.feed.ctx = ctx

	// not synced yet
	f.feed.checkpoint(ctx)

	_, err := f.feed.Apply(ctx, messagev1.NewSnapshot(product, snapshotState(3, orderbookv1.NewOrder("b1", orderbookv1.SideBuy, d("100"), d("1")))))
	require.NoError(t, err)
	f.feed.offset = 7

	f.mockSnapshotStore.EXPECT().Store(gomock.Any(), gomock.Any()).Return(stderrors.New("redis down")).Times(1)
	f.feed.checkpoint(ctx)
	assert.Equal(t, int64(-1), f.feed.LastCheckpointOffset())

	f.mockSnapshotStore.EXPECT().Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *snapshotv1.Snapshot) error {
			assert.Equal(t, product, s.ProductID)
			assert.Equal(t, int64(7), s.Offset)
			assert.Equal(t, int64(3), s.State.Sequence)
			return nil
		}).Times(1)
	f.feed.checkpoint(ctx)
	assert.Equal(t, int64(7), f.feed.LastCheckpointOffset())

	// unchanged sequence: nothing to store
	f.feed.checkpoint(ctx)
}

func TestFeed_AggregatedStreamIsReadyAndCheckpointed(t *testing.T) {
	f := setupTestFixture(t, false, nil)
	ctx := context.Background()
	f.feed.ctx = ctx
	f.mockReader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	registry := NewRegistry()
	require.NoError(t, registry.Register(f.feed))
	require.Error(t, registry.Ready())

	level := func(seq int64, side orderbookv1.Side, price, size string) *messagev1.Level {
		return &messagev1.Level{Header: messagev1.Header{ProductID: product}, Sequence: seq, Side: side, Price: d(price), Size: d(size)}
	}
	f.feed.process(kafka.Message{Offset: 0}, level(40, orderbookv1.SideBuy, "100", "2"))
	f.feed.process(kafka.Message{Offset: 1}, level(41, orderbookv1.SideSell, "101", "1"))

	assert.Equal(t, synchronizer.StateSyncedAggregated, f.feed.Status().State)
	assert.True(t, f.feed.Ready())
	require.NoError(t, registry.Ready())

	f.mockSnapshotStore.EXPECT().Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *snapshotv1.Snapshot) error {
			assert.Equal(t, int64(1), s.Offset)
			assert.Equal(t, int64(41), s.State.Sequence)
			require.Len(t, s.State.Bids, 1)
			require.Len(t, s.State.Asks, 1)
			assert.True(t, d("2").Equal(s.State.Bids[0].TotalSize))
			return nil
		}).Times(1)
	f.feed.checkpoint(ctx)
	assert.Equal(t, int64(1), f.feed.LastCheckpointOffset())

	// a gap makes the feed unready until the missing level arrives
	f.feed.process(kafka.Message{Offset: 2}, level(43, orderbookv1.SideBuy, "100", "1"))
	assert.False(t, f.feed.Ready())
	f.feed.checkpoint(ctx)

	f.feed.process(kafka.Message{Offset: 3}, level(42, orderbookv1.SideBuy, "99", "1"))
	assert.True(t, f.feed.Ready())

	// order messages still need a snapshot
	f.feed.process(kafka.Message{Offset: 4}, newOrder(43, "b1", orderbookv1.SideBuy, "100", "1"))
	assert.False(t, f.book.HasOrder("b1"))
}

func TestFeed_ProcessLogsCorrelationID(t *testing.T) {
	f := setupTestFixture(t, false, nil)
	f.feed.ctx = context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	f.feed.logger = logger.FromZap(zap.New(core))
	f.mockReader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	invalid := newOrder(1, "", orderbookv1.SideBuy, "100", "1")

	f.feed.process(kafka.Message{
		Offset:  0,
		Headers: []kafka.Header{{Key: messagev1.CorrelationHeader, Value: []byte("corr-42")}},
	}, invalid)
	f.feed.process(kafka.Message{Offset: 1}, invalid)

	entries := logs.FilterMessage("message rejected").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "corr-42", entries[0].ContextMap()["correlation_id"])

	generated, ok := entries[1].ContextMap()["correlation_id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
}

func TestFeed_EventBufferOverflowDrops(t *testing.T) {
	f := setupTestFixture(t, false, &Options{SnapshotInterval: time.Hour, EventBufferSize: 1})
	ctx := context.Background()

	for seq := int64(1); seq <= 3; seq++ {
		_, err := f.feed.Apply(ctx, messagev1.NewSnapshot(product, snapshotState(seq)))
		require.NoError(t, err)
	}

	assert.Len(t, f.feed.events, 1)
	e := <-f.feed.events
	assert.Equal(t, int64(1), e.(eventv1.SnapshotApplied).Sequence)
}

func TestFeed_Subscribe(t *testing.T) {
	f := setupTestFixture(t, false, nil)

	var got []eventv1.Kind
	unsubscribe := f.feed.Subscribe(func(e eventv1.Event) { got = append(got, e.Kind()) })

	_, err := f.feed.Apply(context.Background(), &messagev1.Trade{TradeID: "t", Side: orderbookv1.SideBuy, Price: d("1"), Size: d("1")})
	require.NoError(t, err)
	unsubscribe()
	_, err = f.feed.Apply(context.Background(), &messagev1.Trade{TradeID: "t", Side: orderbookv1.SideBuy, Price: d("1"), Size: d("1")})
	require.NoError(t, err)

	assert.Equal(t, []eventv1.Kind{eventv1.KindTradeObserved}, got)
}

func TestFeed_Queries(t *testing.T) {
	f := setupTestFixture(t, false, nil)
	ctx := context.Background()

	_, err := f.feed.Apply(ctx, messagev1.NewSnapshot(product, snapshotState(1,
		orderbookv1.NewOrder("b1", orderbookv1.SideBuy, d("100"), d("2")),
		orderbookv1.NewOrder("b2", orderbookv1.SideBuy, d("99"), d("1")),
		orderbookv1.NewOrder("b3", orderbookv1.SideBuy, d("98"), d("4")),
		orderbookv1.NewOrder("a1", orderbookv1.SideSell, d("110"), d("2")),
	)))
	require.NoError(t, err)
	_, err = f.feed.Apply(ctx, &messagev1.Ticker{Price: d("105"), Bid: d("100"), Ask: d("110")})
	require.NoError(t, err)

	t.Run("state is a copy", func(t *testing.T) {
		state := f.feed.State()
		state.Bids[0].Orders[0].Size = d("1000")
		state.OrderPool["b1"] = orderbookv1.Order{}
		o, _ := f.book.GetOrder("b1")
		assert.True(t, d("2").Equal(o.Size))
	})

	t.Run("market order stats", func(t *testing.T) {
		stats := f.feed.MarketOrderStats(orderbookv1.SideSell, d("3"), decimal.Zero)
		assert.True(t, d("100").Equal(stats.FirstPrice))
		assert.True(t, d("99").Equal(stats.LastPrice))
		assert.True(t, d("299").Equal(stats.TotalCost))
	})

	t.Run("diff and commands", func(t *testing.T) {
		target := snapshotState(1,
			orderbookv1.NewOrder("x", orderbookv1.SideBuy, d("100"), d("1")),
			orderbookv1.NewOrder("b2", orderbookv1.SideBuy, d("99"), d("1")),
			orderbookv1.NewOrder("b3", orderbookv1.SideBuy, d("98"), d("4")),
			orderbookv1.NewOrder("a1", orderbookv1.SideSell, d("110"), d("2")),
		)

		diff := f.feed.Diff(target)
		require.Len(t, diff.Bids, 1)
		assert.Empty(t, diff.Asks)
		assert.True(t, d("1").Equal(diff.Bids[0].TotalSize))

		commands := f.feed.ReconcileCommands(target)
		require.Len(t, commands, 2)
		assert.Equal(t, bookdiff.CommandCancelOrder, commands[0].Kind)
		assert.Equal(t, "b1", commands[0].OrderID)
		assert.Equal(t, bookdiff.CommandPlaceOrder, commands[1].Kind)
		assert.Equal(t, product, commands[1].ProductID)
	})

	t.Run("ticker", func(t *testing.T) {
		ticker, ok := f.feed.Ticker()
		require.True(t, ok)
		assert.True(t, d("105").Equal(ticker.Price))
	})
}
