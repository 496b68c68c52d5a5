package synchronizer

import (
	"context"
	"fmt"

	"github.com/muhammadchandra19/exchange/pkg/logger"
	"github.com/muhammadchandra19/exchange/pkg/util"
	eventv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/event/v1"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
)

// State is the synchronization state of a book.
type State string

const (
	StateAwaitingSnapshot State = "awaitingSnapshot"
	StateSynced           State = "synced"
	// StateSyncedAggregated is a contiguous level stream with no snapshot; order messages are still ignored.
	StateSyncedAggregated State = "syncedAggregated"
	// StateGapDetected is entered in lenient mode; messages keep flowing but the book may be stale.
	StateGapDetected State = "gapDetected"
	// StateHalted is entered in strict mode; only a snapshot leaves it.
	StateHalted State = "halted"
)

// Synced reports whether the book is contiguous with the stream.
func (s State) Synced() bool {
	return s == StateSynced || s == StateSyncedAggregated
}

// Result tells the caller what Apply did with a message.
type Result string

const (
	ResultApplied      Result = "applied"
	ResultDropped      Result = "dropped"
	ResultIgnored      Result = "ignored"
	ResultSkipped      Result = "skipped"
	ResultInconsistent Result = "inconsistent"
	ResultRejected     Result = "rejected"
)

// EventHandler receives events synchronously, in the goroutine calling Apply.
type EventHandler func(eventv1.Event)

// Options configures a Synchronizer.
type Options struct {
	ProductID string
	// Strict turns a sequence gap into a terminal error instead of an event.
	Strict bool
}

// Status is a point-in-time summary of the synchronizer.
type Status struct {
	ProductID string
	State     State
	Sequence  int64
	Gap       *SequenceGapError
}

type subscription struct {
	id int
	fn EventHandler
}

// Synchronizer applies the canonical message stream to a book with sequence checking.
// It is not safe for concurrent use; callers serialise Apply and reads of the book.
type Synchronizer struct {
	productID string
	strict    bool
	book      orderbookv1.Book
	logger    *logger.Logger

	state     State
	resume    State
	baselined bool
	// snapshotApplied gates order messages; only a snapshot sets it.
	snapshotApplied bool
	gap             *SequenceGapError
	ticker          *messagev1.Ticker

	handlers []subscription
	nextID   int
}

// NewSynchronizer creates a Synchronizer driving book.
func NewSynchronizer(book orderbookv1.Book, log *logger.Logger, opts Options) *Synchronizer {
	return &Synchronizer{
		productID: opts.ProductID,
		strict:    opts.Strict,
		book:      book,
		logger:    log.WithFields(logger.NewField("product_id", opts.ProductID)),
		state:     StateAwaitingSnapshot,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Synchronizer) Subscribe(fn EventHandler) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, subscription{id: id, fn: fn})

	return func() {
		for i, h := range s.handlers {
			if h.id == id {
				s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// State returns the current state.
func (s *Synchronizer) State() State { return s.state }

// Book returns the book being maintained.
func (s *Synchronizer) Book() orderbookv1.Book { return s.book }

// Status summarises state and sequence.
func (s *Synchronizer) Status() Status {
	return Status{
		ProductID: s.productID,
		State:     s.state,
		Sequence:  s.book.Sequence(),
		Gap:       s.gap,
	}
}

// Ticker returns the last ticker received.
func (s *Synchronizer) Ticker() (messagev1.Ticker, bool) {
	if s.ticker == nil {
		return messagev1.Ticker{}, false
	}
	return *s.ticker, true
}

// Apply processes one message. The returned error is non-nil for malformed messages,
// for the gap itself in strict mode and for book messages received while halted.
func (s *Synchronizer) Apply(ctx context.Context, msg messagev1.Message) (Result, error) {
	if msg == nil {
		return ResultRejected, fmt.Errorf("%w: nil message", messagev1.ErrMalformedMessage)
	}
	if err := msg.Validate(); err != nil {
		return ResultRejected, err
	}

	switch m := msg.(type) {
	case *messagev1.Snapshot:
		return s.applySnapshot(ctx, m)
	case *messagev1.Ticker:
		t := *m
		s.ticker = &t
		s.emit(eventv1.NewTickerUpdated(s.productID, m.Price, m.Bid, m.Ask, m.Volume, m.Time))
		return ResultApplied, nil
	case *messagev1.Trade:
		s.emit(eventv1.NewTradeObserved(s.productID, m.TradeID, m.Side, m.Price, m.Size, m.Time))
		return ResultApplied, nil
	}

	if s.state == StateHalted {
		return ResultRejected, fmt.Errorf("%w: %w", ErrHalted, s.gap)
	}

	switch m := msg.(type) {
	case *messagev1.Level:
		return s.applyLevel(ctx, m)
	case *messagev1.NewOrder:
		return s.applyOrderMessage(ctx, m, func() (Result, string) { return s.addOrder(m) })
	case *messagev1.OrderDone:
		return s.applyOrderMessage(ctx, m, func() (Result, string) { return s.doneOrder(m) })
	case *messagev1.ChangedOrder:
		return s.applyOrderMessage(ctx, m, func() (Result, string) { return s.changeOrder(m) })
	default:
		return ResultRejected, fmt.Errorf("%w: %s", messagev1.ErrUnknownMessage, msg.Kind())
	}
}

func (s *Synchronizer) applySnapshot(ctx context.Context, m *messagev1.Snapshot) (Result, error) {
	if err := s.book.FromState(m.State()); err != nil {
		s.logger.WarnContext(ctx, "rejected snapshot",
			logger.NewField("sequence", m.Sequence),
			logger.NewField("error", err.Error()),
		)
		return ResultRejected, fmt.Errorf("%w: snapshot: %w", messagev1.ErrMalformedMessage, err)
	}

	previous := s.state
	s.state = StateSynced
	s.baselined = true
	s.snapshotApplied = true
	s.gap = nil

	state := s.book.State()
	s.logger.InfoContext(ctx, "snapshot applied",
		logger.NewField("sequence", m.Sequence),
		logger.NewField("previous_state", previous),
		logger.NewField("orders", len(state.OrderPool)),
	)
	s.emit(eventv1.NewSnapshotApplied(s.productID, m.Sequence, len(state.Bids), len(state.Asks), len(state.OrderPool)))
	return ResultApplied, nil
}

func (s *Synchronizer) applyLevel(ctx context.Context, m *messagev1.Level) (Result, error) {
	if !s.baselined {
		s.baselined = true
		s.book.SetSequence(m.Sequence - 1)
		if s.state == StateAwaitingSnapshot {
			s.state = StateSyncedAggregated
			s.logger.InfoContext(ctx, "level stream baselined", logger.NewField("sequence", m.Sequence))
		}
	}

	if res, ok, err := s.checkSequence(ctx, m); !ok {
		return res, err
	}

	res := ResultApplied
	if !s.book.SetLevel(m.Side, m.Price, m.Size) {
		res = s.inconsistent(ctx, m, "", "level rejected by book")
	} else {
		s.emit(eventv1.NewLevelUpdated(s.productID, m.Sequence, m.Side, m.Price, m.Size))
	}
	s.advance(m.Sequence)
	return res, nil
}

func (s *Synchronizer) applyOrderMessage(ctx context.Context, m messagev1.Sequenced, apply func() (Result, string)) (Result, error) {
	if !s.snapshotApplied {
		return ResultIgnored, nil
	}

	if res, ok, err := s.checkSequence(ctx, m); !ok {
		return res, err
	}

	res, reason := apply()
	if res == ResultInconsistent {
		s.inconsistent(ctx, m, orderID(m), reason)
	}
	s.advance(m.Seq())
	return res, nil
}

func (s *Synchronizer) addOrder(m *messagev1.NewOrder) (Result, string) {
	if s.book.HasOrder(m.OrderID) {
		return ResultInconsistent, orderbookv1.ErrOrderExists.Error()
	}
	if !s.book.Add(m.Order()) {
		return ResultInconsistent, "order rejected by book"
	}
	return ResultApplied, ""
}

func (s *Synchronizer) doneOrder(m *messagev1.OrderDone) (Result, string) {
	if _, ok := s.book.Remove(m.OrderID); !ok {
		return ResultIgnored, ""
	}
	return ResultApplied, ""
}

func (s *Synchronizer) changeOrder(m *messagev1.ChangedOrder) (Result, string) {
	if m.NewSize == nil && m.ChangedAmount == nil {
		return ResultIgnored, ""
	}

	current, ok := s.book.GetOrder(m.OrderID)
	if !ok {
		return ResultInconsistent, "unknown order"
	}

	var newSize = current.Size
	if m.NewSize != nil {
		newSize = *m.NewSize
	} else {
		newSize = newSize.Add(*m.ChangedAmount)
	}

	side := m.Side
	if !s.book.Modify(m.OrderID, newSize, &side) {
		return ResultInconsistent, fmt.Sprintf("modify to size %s rejected", newSize)
	}
	return ResultApplied, ""
}

// checkSequence returns ok when seq is exactly one past the book sequence.
func (s *Synchronizer) checkSequence(ctx context.Context, m messagev1.Sequenced) (Result, bool, error) {
	seq := m.Seq()
	cur := s.book.Sequence()
	ctx = util.WithSequence(ctx, seq)

	switch {
	case seq <= cur:
		s.logger.DebugContext(ctx, "dropping stale message",
			logger.NewField("kind", m.Kind()),
			logger.NewField("current", cur),
		)
		return ResultDropped, false, nil
	case seq == cur+1:
		return "", true, nil
	}

	gap := &SequenceGapError{ProductID: s.productID, Expected: cur + 1, Received: seq}
	if s.strict {
		s.state = StateHalted
		s.gap = gap
		s.logger.ErrorContext(ctx, gap, logger.NewField("kind", m.Kind()))
		return ResultRejected, false, gap
	}

	if s.state != StateGapDetected {
		s.resume = s.state
	}
	s.state = StateGapDetected
	s.gap = gap
	s.logger.WarnContext(ctx, "sequence gap, continuing",
		logger.NewField("expected", gap.Expected),
		logger.NewField("received", gap.Received),
	)
	s.emit(eventv1.NewSequenceSkipped(s.productID, gap.Expected, gap.Received))
	return ResultSkipped, false, nil
}

func (s *Synchronizer) advance(seq int64) {
	s.book.SetSequence(seq)
	if s.state == StateGapDetected {
		s.state = s.resume
		s.gap = nil
	}
}

func (s *Synchronizer) inconsistent(ctx context.Context, m messagev1.Sequenced, id, reason string) Result {
	s.logger.WarnContext(util.WithSequence(ctx, m.Seq()), "inconsistent book state",
		logger.NewField("kind", m.Kind()),
		logger.NewField("order_id", id),
		logger.NewField("reason", reason),
	)
	s.emit(eventv1.NewInconsistentState(s.productID, m.Seq(), string(m.Kind()), id, reason))
	return ResultInconsistent
}

func (s *Synchronizer) emit(e eventv1.Event) {
	for _, h := range s.handlers {
		h.fn(e)
	}
}

func orderID(m messagev1.Message) string {
	switch v := m.(type) {
	case *messagev1.NewOrder:
		return v.OrderID
	case *messagev1.OrderDone:
		return v.OrderID
	case *messagev1.ChangedOrder:
		return v.OrderID
	}
	return ""
}
