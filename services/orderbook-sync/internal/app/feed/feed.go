package feed

import (
	"context"
	"sync"
	"time"

	"github.com/muhammadchandra19/exchange/pkg/logger"
	eventv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/event/v1"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	snapshotv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/bookdiff"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/depth"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/metrics"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/synchronizer"
	"github.com/shopspring/decimal"
)

// Options tunes a Feed.
type Options struct {
	// SnapshotInterval is how often the book is checkpointed when its sequence moved.
	SnapshotInterval time.Duration
	// EventBufferSize bounds the events waiting to be published. Events beyond it are dropped.
	EventBufferSize int
	// ReadBackoff is the pause after a transport error.
	ReadBackoff time.Duration
	// ShutdownTimeout bounds the final checkpoint and event flush on Stop.
	ShutdownTimeout time.Duration
}

// DefaultFeedOptions returns the default options.
func DefaultFeedOptions() *Options {
	return &Options{
		SnapshotInterval: 30 * time.Second,
		EventBufferSize:  1024,
		ReadBackoff:      100 * time.Millisecond,
		ShutdownTimeout:  5 * time.Second,
	}
}

// Feed keeps the book of one product in sync with its message stream.
type Feed struct {
	// Core components
	productID     string
	book          orderbookv1.Book
	synchronizer  *synchronizer.Synchronizer
	reader        messagev1.Reader
	snapshotStore snapshotv1.Store
	publisher     eventv1.Publisher
	metrics       *metrics.Metrics
	generator     *bookdiff.Generator
	logger        *logger.Logger

	// mu guards the book, the synchronizer and the offsets below.
	mu                   sync.RWMutex
	offset               int64
	lastCheckpointSeq    int64
	lastCheckpointOffset int64

	events chan eventv1.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	options Options
}

// NewFeed creates a Feed with the default options.
func NewFeed(
	syncer *synchronizer.Synchronizer,
	reader messagev1.Reader,
	snapshotStore snapshotv1.Store,
	publisher eventv1.Publisher,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Feed {
	return NewFeedWithOptions(syncer, reader, snapshotStore, publisher, metrics, logger, DefaultFeedOptions())
}

// NewFeedWithOptions creates a Feed around syncer and the book it drives.
// snapshotStore, publisher and metrics may be nil to disable checkpoints, publishing and metrics.
func NewFeedWithOptions(
	syncer *synchronizer.Synchronizer,
	reader messagev1.Reader,
	snapshotStore snapshotv1.Store,
	publisher eventv1.Publisher,
	metrics *metrics.Metrics,
	log *logger.Logger,
	options *Options,
) *Feed {
	productID := syncer.Status().ProductID
	f := &Feed{
		productID:     productID,
		book:          syncer.Book(),
		synchronizer:  syncer,
		reader:        reader,
		snapshotStore: snapshotStore,
		publisher:     publisher,
		metrics:       metrics,
		generator:     bookdiff.NewGenerator(bookdiff.DefaultGeneratorOptions(productID)),
		logger:        log.WithFields(logger.NewField("product_id", productID)),

		offset:               -1,
		lastCheckpointSeq:    -1,
		lastCheckpointOffset: -1,
		options:              *options,
	}

	if publisher != nil {
		f.events = make(chan eventv1.Event, options.EventBufferSize)
		syncer.Subscribe(f.enqueue)
	}
	return f
}

// Start restores the last checkpoint and starts the processing routines.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.loadSnapshot(ctx); err != nil {
		return err
	}

	f.mu.RLock()
	next := f.offset + 1
	f.mu.RUnlock()
	if next > 0 {
		if err := f.reader.SetOffset(next); err != nil {
			return err
		}
	}

	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.runMessageProcessor()
	if f.snapshotStore != nil {
		f.wg.Add(1)
		go f.runCheckpointManager()
	}
	if f.publisher != nil {
		f.wg.Add(1)
		go f.runEventPublisher()
	}

	f.logger.Info("Feed started", logger.Field{
		Key:   "offset",
		Value: next,
	})
	return nil
}

// Stop gracefully shuts down the feed.
func (f *Feed) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("Feed stopped gracefully")
		return nil
	case <-ctx.Done():
		f.logger.Warn("Feed stop timeout exceeded")
		return ctx.Err()
	}
}

// ProductID returns the product the feed tracks.
func (f *Feed) ProductID() string {
	return f.productID
}

// Subscribe registers fn for the synchronizer events. fn runs on the processing goroutine
// and must not block.
func (f *Feed) Subscribe(fn synchronizer.EventHandler) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unsub := f.synchronizer.Subscribe(fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		unsub()
	}
}

// Apply feeds one message to the synchronizer outside of the transport, e.g. a snapshot fetched
// by an operator to recover a halted feed.
func (f *Feed) Apply(ctx context.Context, msg messagev1.Message) (synchronizer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.synchronizer.Apply(ctx, msg)
}

// State returns a consistent deep copy of the book.
func (f *Feed) State() orderbookv1.OrderbookState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.book.StateCopy()
}

// Status returns the synchronizer state and sequence.
func (f *Feed) Status() synchronizer.Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.synchronizer.Status()
}

// Ready reports whether the book is synced.
func (f *Feed) Ready() bool {
	return f.Status().State.Synced()
}

// Ticker returns the last ticker received.
func (f *Feed) Ticker() (messagev1.Ticker, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.synchronizer.Ticker()
}

// Offset returns the transport offset of the last message processed, -1 before the first one.
func (f *Feed) Offset() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.offset
}

// MarketOrderStats simulates a market order against a copy of the book.
func (f *Feed) MarketOrderStats(side orderbookv1.Side, amount, fees decimal.Decimal) orderbookv1.MarketOrderStats {
	return depth.NewCalculator(f.State()).CalculateMarketOrderStats(side, amount, fees)
}

// Diff returns the level edits turning the current book into target. Level sizes are the
// target sizes and the orders to pull are carried negated.
func (f *Feed) Diff(target orderbookv1.OrderbookState) bookdiff.Diff {
	return bookdiff.CompareByLevel(f.State(), target, true, true)
}

// ReconcileCommands returns the venue commands that move the current book to target.
func (f *Feed) ReconcileCommands(target orderbookv1.OrderbookState) []bookdiff.Command {
	return f.generator.DiffCommands(f.Diff(target))
}
