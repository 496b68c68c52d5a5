package eventv1

import (
	"encoding/json"
	"time"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
)

// Kind names an event variant on the wire.
type Kind string

const (
	KindSnapshotApplied   Kind = "snapshotApplied"
	KindLevelUpdated      Kind = "levelUpdated"
	KindTradeObserved     Kind = "tradeObserved"
	KindTickerUpdated     Kind = "tickerUpdated"
	KindInconsistentState Kind = "inconsistentState"
	KindSequenceSkipped   Kind = "sequenceSkipped"
)

// Event is emitted by the synchronizer. Only the types below implement it.
type Event interface {
	Kind() Kind
	Product() string
	isEvent()
}

type base struct {
	ProductID string `json:"productId"`
}

func (b base) Product() string { return b.ProductID }
func (base) isEvent()          {}

// SnapshotApplied follows a successful book replacement.
type SnapshotApplied struct {
	base
	Sequence int64 `json:"sequence"`
	Bids     int   `json:"bids"`
	Asks     int   `json:"asks"`
	Orders   int   `json:"orders"`
}

func (SnapshotApplied) Kind() Kind { return KindSnapshotApplied }

// LevelUpdated follows an aggregated level replacement.
type LevelUpdated struct {
	base
	Sequence int64            `json:"sequence"`
	Side     orderbookv1.Side `json:"side"`
	Price    decimal.Decimal  `json:"price"`
	Size     decimal.Decimal  `json:"size"`
}

func (LevelUpdated) Kind() Kind { return KindLevelUpdated }

// TradeObserved relays a trade message.
type TradeObserved struct {
	base
	TradeID string           `json:"tradeId"`
	Side    orderbookv1.Side `json:"side"`
	Price   decimal.Decimal  `json:"price"`
	Size    decimal.Decimal  `json:"size"`
	Time    time.Time        `json:"time"`
}

func (TradeObserved) Kind() Kind { return KindTradeObserved }

// TickerUpdated relays a ticker message.
type TickerUpdated struct {
	base
	Price  decimal.Decimal `json:"price"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	Volume decimal.Decimal `json:"volume"`
	Time   time.Time       `json:"time"`
}

func (TickerUpdated) Kind() Kind { return KindTickerUpdated }

// InconsistentState reports a message the book could not apply while in sequence,
// e.g. a new order whose id is already tracked. The sequence still advances.
type InconsistentState struct {
	base
	Sequence    int64  `json:"sequence"`
	MessageKind string `json:"messageKind"`
	OrderID     string `json:"orderId,omitempty"`
	Reason      string `json:"reason"`
}

func (InconsistentState) Kind() Kind { return KindInconsistentState }

// SequenceSkipped reports a gap in lenient mode. The book sequence is not advanced.
type SequenceSkipped struct {
	base
	Expected int64 `json:"expected"`
	Received int64 `json:"received"`
}

func (SequenceSkipped) Kind() Kind { return KindSequenceSkipped }

// NewSnapshotApplied builds a SnapshotApplied event.
func NewSnapshotApplied(productID string, sequence int64, bids, asks, orders int) SnapshotApplied {
	return SnapshotApplied{base: base{productID}, Sequence: sequence, Bids: bids, Asks: asks, Orders: orders}
}

// NewLevelUpdated builds a LevelUpdated event.
func NewLevelUpdated(productID string, sequence int64, side orderbookv1.Side, price, size decimal.Decimal) LevelUpdated {
	return LevelUpdated{base: base{productID}, Sequence: sequence, Side: side, Price: price, Size: size}
}

// NewTradeObserved builds a TradeObserved event.
func NewTradeObserved(productID, tradeID string, side orderbookv1.Side, price, size decimal.Decimal, at time.Time) TradeObserved {
	return TradeObserved{base: base{productID}, TradeID: tradeID, Side: side, Price: price, Size: size, Time: at}
}

// NewTickerUpdated builds a TickerUpdated event.
func NewTickerUpdated(productID string, price, bid, ask, volume decimal.Decimal, at time.Time) TickerUpdated {
	return TickerUpdated{base: base{productID}, Price: price, Bid: bid, Ask: ask, Volume: volume, Time: at}
}

// NewInconsistentState builds an InconsistentState event.
func NewInconsistentState(productID string, sequence int64, messageKind, orderID, reason string) InconsistentState {
	return InconsistentState{base: base{productID}, Sequence: sequence, MessageKind: messageKind, OrderID: orderID, Reason: reason}
}

// NewSequenceSkipped builds a SequenceSkipped event.
func NewSequenceSkipped(productID string, expected, received int64) SequenceSkipped {
	return SequenceSkipped{base: base{productID}, Expected: expected, Received: received}
}

// Envelope is the published form of an event.
type Envelope struct {
	Type      Kind      `json:"type"`
	ProductID string    `json:"productId"`
	Time      time.Time `json:"time"`
	Payload   Event     `json:"payload"`
}

// Marshal wraps e in an Envelope stamped with at.
func Marshal(e Event, at time.Time) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      e.Kind(),
		ProductID: e.Product(),
		Time:      at.UTC(),
		Payload:   e,
	})
}
