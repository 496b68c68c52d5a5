package messagev1

import (
	"errors"
	"fmt"
	"time"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownMessage   = errors.New("unknown message type")
)

// Kind is the discriminator carried in the "type" field.
type Kind string

const (
	KindSnapshot     Kind = "snapshot"
	KindLevel        Kind = "level"
	KindNewOrder     Kind = "newOrder"
	KindOrderDone    Kind = "orderDone"
	KindChangedOrder Kind = "changedOrder"
	KindTicker       Kind = "ticker"
	KindTrade        Kind = "trade"
)

// Message is one canonical stream message. The set of implementations is closed:
// only the types in this package satisfy it.
type Message interface {
	Kind() Kind
	Validate() error
	header() *Header
}

// Sequenced is implemented by messages that take part in sequence checking.
type Sequenced interface {
	Message
	Seq() int64
}

// Header is shared by every message.
type Header struct {
	Type      Kind      `json:"type"`
	ProductID string    `json:"productId"`
	Time      time.Time `json:"time"`
}

func (h *Header) header() *Header { return h }

// Snapshot replaces the whole book.
type Snapshot struct {
	Header
	Sequence       int64                        `json:"sequence"`
	SourceSequence *int64                       `json:"sourceSequence,omitempty"`
	Bids           []orderbookv1.LevelState     `json:"bids"`
	Asks           []orderbookv1.LevelState     `json:"asks"`
	OrderPool      map[string]orderbookv1.Order `json:"orderPool,omitempty"`
}

// NewSnapshot builds a snapshot message from a book state.
func NewSnapshot(productID string, state orderbookv1.OrderbookState) *Snapshot {
	return &Snapshot{
		Header:         Header{Type: KindSnapshot, ProductID: productID, Time: time.Now().UTC()},
		Sequence:       state.Sequence,
		SourceSequence: state.SourceSequence,
		Bids:           state.Bids,
		Asks:           state.Asks,
		OrderPool:      state.OrderPool,
	}
}

func (m *Snapshot) Kind() Kind { return KindSnapshot }

func (m *Snapshot) Validate() error {
	if m.Sequence < 0 {
		return malformed(m.Kind(), "negative sequence %d", m.Sequence)
	}
	return nil
}

// State converts the message into the book import format.
func (m *Snapshot) State() orderbookv1.OrderbookState {
	return orderbookv1.OrderbookState{
		Sequence:       m.Sequence,
		SourceSequence: m.SourceSequence,
		Bids:           m.Bids,
		Asks:           m.Asks,
		OrderPool:      m.OrderPool,
	}
}

// Level replaces one aggregated price level.
type Level struct {
	Header
	Sequence int64            `json:"sequence"`
	Side     orderbookv1.Side `json:"side"`
	Price    decimal.Decimal  `json:"price"`
	Size     decimal.Decimal  `json:"size"`
	Count    int              `json:"count,omitempty"`
}

func (m *Level) Kind() Kind { return KindLevel }
func (m *Level) Seq() int64 { return m.Sequence }
func (m *Level) Validate() error {
	if !m.Side.Valid() {
		return malformed(m.Kind(), "invalid side %q", m.Side)
	}
	if !m.Price.IsPositive() {
		return malformed(m.Kind(), "price %s must be positive", m.Price)
	}
	if m.Size.IsNegative() {
		return malformed(m.Kind(), "size %s must not be negative", m.Size)
	}
	return nil
}

// NewOrder opens a resting order.
type NewOrder struct {
	Header
	Sequence int64            `json:"sequence"`
	OrderID  string           `json:"orderId"`
	Side     orderbookv1.Side `json:"side"`
	Price    decimal.Decimal  `json:"price"`
	Size     decimal.Decimal  `json:"size"`
}

func (m *NewOrder) Kind() Kind { return KindNewOrder }
func (m *NewOrder) Seq() int64 { return m.Sequence }
func (m *NewOrder) Validate() error {
	if m.OrderID == "" {
		return malformed(m.Kind(), "missing orderId")
	}
	if !m.Side.Valid() {
		return malformed(m.Kind(), "invalid side %q", m.Side)
	}
	if !m.Price.IsPositive() {
		return malformed(m.Kind(), "price %s must be positive", m.Price)
	}
	if !m.Size.IsPositive() {
		return malformed(m.Kind(), "size %s must be positive", m.Size)
	}
	return nil
}

// Order returns the book order the message describes.
func (m *NewOrder) Order() orderbookv1.Order {
	return orderbookv1.NewOrder(m.OrderID, m.Side, m.Price, m.Size)
}

// OrderDone closes an order (filled or cancelled).
type OrderDone struct {
	Header
	Sequence      int64            `json:"sequence"`
	OrderID       string           `json:"orderId"`
	Side          orderbookv1.Side `json:"side,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	RemainingSize decimal.Decimal  `json:"remainingSize"`
	Reason        string           `json:"reason,omitempty"`
}

func (m *OrderDone) Kind() Kind { return KindOrderDone }
func (m *OrderDone) Seq() int64 { return m.Sequence }
func (m *OrderDone) Validate() error {
	if m.OrderID == "" {
		return malformed(m.Kind(), "missing orderId")
	}
	if m.Side != "" && !m.Side.Valid() {
		return malformed(m.Kind(), "invalid side %q", m.Side)
	}
	return nil
}

// ChangedOrder resizes an order, either to NewSize or by ChangedAmount.
type ChangedOrder struct {
	Header
	Sequence      int64            `json:"sequence"`
	OrderID       string           `json:"orderId"`
	Side          orderbookv1.Side `json:"side"`
	Price         decimal.Decimal  `json:"price"`
	NewSize       *decimal.Decimal `json:"newSize,omitempty"`
	ChangedAmount *decimal.Decimal `json:"changedAmount,omitempty"`
}

func (m *ChangedOrder) Kind() Kind { return KindChangedOrder }
func (m *ChangedOrder) Seq() int64 { return m.Sequence }
func (m *ChangedOrder) Validate() error {
	if m.OrderID == "" {
		return malformed(m.Kind(), "missing orderId")
	}
	if !m.Side.Valid() {
		return malformed(m.Kind(), "invalid side %q", m.Side)
	}
	if m.NewSize != nil && m.NewSize.IsNegative() {
		return malformed(m.Kind(), "newSize %s must not be negative", m.NewSize)
	}
	return nil
}

// Ticker carries top-of-book and last trade information. It never touches the book.
type Ticker struct {
	Header
	Price   decimal.Decimal `json:"price"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	Volume  decimal.Decimal `json:"volume"`
	TradeID string          `json:"tradeId,omitempty"`
	Size    decimal.Decimal `json:"size"`
}

func (m *Ticker) Kind() Kind { return KindTicker }
func (m *Ticker) Validate() error {
	if !m.Price.IsPositive() {
		return malformed(m.Kind(), "price %s must be positive", m.Price)
	}
	if !m.Bid.IsPositive() || !m.Ask.IsPositive() {
		return malformed(m.Kind(), "bid %s and ask %s must be positive", m.Bid, m.Ask)
	}
	if m.Volume.IsNegative() || m.Size.IsNegative() {
		return malformed(m.Kind(), "volume %s and size %s must not be negative", m.Volume, m.Size)
	}
	return nil
}

// Trade reports an execution. It is informational only.
type Trade struct {
	Header
	TradeID string           `json:"tradeId"`
	Side    orderbookv1.Side `json:"side"`
	Price   decimal.Decimal  `json:"price"`
	Size    decimal.Decimal  `json:"size"`
}

func (m *Trade) Kind() Kind { return KindTrade }
func (m *Trade) Validate() error {
	if !m.Side.Valid() {
		return malformed(m.Kind(), "invalid side %q", m.Side)
	}
	if !m.Price.IsPositive() || !m.Size.IsPositive() {
		return malformed(m.Kind(), "price %s and size %s must be positive", m.Price, m.Size)
	}
	return nil
}

func malformed(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedMessage, kind, fmt.Sprintf(format, args...))
}

// ProductID returns the product a message belongs to.
func ProductID(m Message) string {
	return m.header().ProductID
}
