package main

import (
	"math/rand"
	"sort"
	"strconv"
	"time"

	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/orderbook"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	priceScale = 2
	sizeScale  = 3
)

var minSize = decimal.New(1, -sizeScale)

// streamGenerator synthesises a canonical message stream. It mirrors every order message on
// a local book so that done and changed messages always reference live orders.
type streamGenerator struct {
	productID string
	rnd       *rand.Rand
	book      *orderbook.Book
	ids       []string

	basePrice decimal.Decimal
	spread    float64
	seq       int64
	gapEvery  int
	sequenced int
	trades    int
}

func newStreamGenerator(productID string, seed, startSequence int64, basePrice, spread float64, gapEvery int) *streamGenerator {
	book := orderbook.NewBook()
	book.SetSequence(startSequence)
	return &streamGenerator{
		productID: productID,
		rnd:       rand.New(rand.NewSource(seed)),
		book:      book,
		basePrice: decimal.NewFromFloat(basePrice),
		spread:    spread,
		seq:       startSequence,
		gapEvery:  gapEvery,
	}
}

// Snapshot tops the local book up to depth orders per side and returns it as a snapshot
// message at the current sequence.
func (g *streamGenerator) Snapshot(depth int) *messagev1.Snapshot {
	for _, side := range []orderbookv1.Side{orderbookv1.SideBuy, orderbookv1.SideSell} {
		for count(g.book.State().Side(side)) < depth {
			g.book.Add(g.randomOrder(side))
		}
	}
	g.ids = g.ids[:0]
	for id := range g.book.State().OrderPool {
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)

	return messagev1.NewSnapshot(g.productID, g.book.StateCopy())
}

// Next returns the next message of the stream.
func (g *streamGenerator) Next() messagev1.Message {
	r := g.rnd.Float64()
	switch {
	case r < 0.05:
		return g.ticker()
	case r < 0.10:
		return g.trade()
	case len(g.ids) == 0 || r < 0.55:
		return g.newOrder()
	case r < 0.80:
		return g.orderDone()
	default:
		return g.changedOrder()
	}
}

func (g *streamGenerator) header() messagev1.Header {
	return messagev1.Header{ProductID: g.productID, Time: time.Now().UTC()}
}

// nextSequence advances the counter, jumping one number every gapEvery messages.
func (g *streamGenerator) nextSequence() int64 {
	g.sequenced++
	g.seq++
	if g.gapEvery > 0 && g.sequenced%g.gapEvery == 0 {
		g.seq++
	}
	g.book.SetSequence(g.seq)
	return g.seq
}

func (g *streamGenerator) randomSide() orderbookv1.Side {
	if g.rnd.Intn(2) == 0 {
		return orderbookv1.SideBuy
	}
	return orderbookv1.SideSell
}

func (g *streamGenerator) randomSize() decimal.Decimal {
	size := orderbookv1.TruncateTo(decimal.NewFromFloat(0.001+g.rnd.Float64()*4.999), sizeScale)
	if !size.IsPositive() {
		return minSize
	}
	return size
}

// randomOrder prices bids below and asks above the base price.
func (g *streamGenerator) randomOrder(side orderbookv1.Side) orderbookv1.Order {
	offset := orderbookv1.TruncateTo(decimal.NewFromFloat(0.01+g.rnd.Float64()*g.spread), priceScale)
	price := g.basePrice.Add(offset)
	if side == orderbookv1.SideBuy {
		price = g.basePrice.Sub(offset)
	}
	if !price.IsPositive() {
		price = g.basePrice
	}
	return orderbookv1.NewOrder(ulid.Make().String(), side, price, g.randomSize())
}

func (g *streamGenerator) newOrder() messagev1.Message {
	o := g.randomOrder(g.randomSide())
	g.book.Add(o)
	g.ids = append(g.ids, o.ID)

	return &messagev1.NewOrder{
		Header:   g.header(),
		Sequence: g.nextSequence(),
		OrderID:  o.ID,
		Side:     o.Side,
		Price:    o.Price,
		Size:     o.Size,
	}
}

func (g *streamGenerator) pick() orderbookv1.Order {
	o, _ := g.book.GetOrder(g.ids[g.rnd.Intn(len(g.ids))])
	return o
}

func (g *streamGenerator) forget(id string) {
	for i, v := range g.ids {
		if v == id {
			g.ids[i] = g.ids[len(g.ids)-1]
			g.ids = g.ids[:len(g.ids)-1]
			return
		}
	}
}

func (g *streamGenerator) orderDone() messagev1.Message {
	o := g.pick()
	g.book.Remove(o.ID)
	g.forget(o.ID)

	reason, remaining := "filled", decimal.Zero
	if g.rnd.Intn(2) == 0 {
		reason, remaining = "canceled", o.Size
	}

	return &messagev1.OrderDone{
		Header:        g.header(),
		Sequence:      g.nextSequence(),
		OrderID:       o.ID,
		Side:          o.Side,
		Price:         o.Price,
		RemainingSize: remaining,
		Reason:        reason,
	}
}

// changedOrder halves an order; orders too small to halve are closed instead.
func (g *streamGenerator) changedOrder() messagev1.Message {
	o := g.pick()
	newSize := orderbookv1.TruncateTo(o.Size.Div(decimal.NewFromInt(2)), sizeScale)
	if !newSize.IsPositive() {
		return g.orderDone()
	}
	g.book.Modify(o.ID, newSize, nil)

	return &messagev1.ChangedOrder{
		Header:   g.header(),
		Sequence: g.nextSequence(),
		OrderID:  o.ID,
		Side:     o.Side,
		Price:    o.Price,
		NewSize:  &newSize,
	}
}

func (g *streamGenerator) mid() (bid, ask, mid decimal.Decimal) {
	bid, ask = g.basePrice, g.basePrice
	if lvl, ok := g.book.BestBid(); ok {
		bid = lvl.Price
	}
	if lvl, ok := g.book.BestAsk(); ok {
		ask = lvl.Price
	}
	return bid, ask, orderbookv1.TruncateTo(bid.Add(ask).Div(decimal.NewFromInt(2)), priceScale)
}

func (g *streamGenerator) ticker() messagev1.Message {
	bid, ask, price := g.mid()
	return &messagev1.Ticker{
		Header:  g.header(),
		Price:   price,
		Bid:     bid,
		Ask:     ask,
		Volume:  orderbookv1.TruncateTo(decimal.NewFromFloat(g.rnd.Float64()*10000), sizeScale),
		TradeID: strconv.Itoa(g.trades),
		Size:    g.randomSize(),
	}
}

func (g *streamGenerator) trade() messagev1.Message {
	g.trades++
	_, _, price := g.mid()
	return &messagev1.Trade{
		Header:  g.header(),
		TradeID: strconv.Itoa(g.trades),
		Side:    g.randomSide(),
		Price:   price,
		Size:    g.randomSize(),
	}
}

func count(levels []orderbookv1.LevelState) int {
	n := 0
	for _, lvl := range levels {
		n += len(lvl.Orders)
	}
	return n
}
