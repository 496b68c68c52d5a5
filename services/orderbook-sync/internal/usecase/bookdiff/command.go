package bookdiff

import (
	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// CommandKind is the action a venue command performs.
type CommandKind string

const (
	CommandCancelAll   CommandKind = "cancelAll"
	CommandCancelOrder CommandKind = "cancelOrder"
	CommandPlaceOrder  CommandKind = "placeOrder"
)

// Command is one venue instruction produced by a Generator.
type Command struct {
	Kind          CommandKind      `json:"kind"`
	ProductID     string           `json:"productId"`
	ClientOrderID string           `json:"clientOrderId,omitempty"`
	OrderID       string           `json:"orderId,omitempty"`
	Side          orderbookv1.Side `json:"side,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	Size          decimal.Decimal  `json:"size"`
}

// GeneratorOptions configures a Generator. A negative scale disables truncation.
type GeneratorOptions struct {
	ProductID  string
	PriceScale int32
	SizeScale  int32
}

// DefaultGeneratorOptions keeps full precision.
func DefaultGeneratorOptions(productID string) GeneratorOptions {
	return GeneratorOptions{
		ProductID:  productID,
		PriceScale: -1,
		SizeScale:  -1,
	}
}

// Generator turns book states and diffs into venue commands.
type Generator struct {
	productID  string
	priceScale int32
	sizeScale  int32
	newID      func() string
}

// NewGenerator creates a Generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	return &Generator{
		productID:  opts.ProductID,
		priceScale: opts.PriceScale,
		sizeScale:  opts.SizeScale,
		newID:      func() string { return ulid.Make().String() },
	}
}

// SimpleCommandSet cancels everything and places one order per non-empty level of final.
func (g *Generator) SimpleCommandSet(final orderbookv1.OrderbookState) []Command {
	commands := []Command{{Kind: CommandCancelAll, ProductID: g.productID}}
	for _, side := range []orderbookv1.Side{orderbookv1.SideBuy, orderbookv1.SideSell} {
		for _, lvl := range final.Side(side) {
			if cmd, ok := g.place(side, lvl.Price, lvl.TotalSize); ok {
				commands = append(commands, cmd)
			}
		}
	}
	return commands
}

// DiffCommands cancels every negative order of diff, then places one order for every level
// with a positive target size. diff is expected to come from CompareByLevel with absolute and
// keepInitial set, so negative orders are the resting orders to pull and level sizes are targets.
func (g *Generator) DiffCommands(diff Diff) []Command {
	var cancels, places []Command
	sides := []struct {
		side   orderbookv1.Side
		levels []orderbookv1.LevelState
	}{
		{orderbookv1.SideBuy, diff.Bids},
		{orderbookv1.SideSell, diff.Asks},
	}

	for _, s := range sides {
		for _, lvl := range s.levels {
			for _, o := range lvl.Orders {
				if !o.Size.IsNegative() {
					continue
				}
				cancels = append(cancels, Command{
					Kind:      CommandCancelOrder,
					ProductID: g.productID,
					OrderID:   o.ID,
					Side:      s.side,
					Price:     o.Price,
					Size:      o.Size.Neg(),
				})
			}
			if cmd, ok := g.place(s.side, lvl.Price, lvl.TotalSize); ok {
				places = append(places, cmd)
			}
		}
	}
	return append(cancels, places...)
}

func (g *Generator) place(side orderbookv1.Side, price, size decimal.Decimal) (Command, bool) {
	size = orderbookv1.TruncateTo(size, g.sizeScale)
	if !size.IsPositive() {
		return Command{}, false
	}
	return Command{
		Kind:          CommandPlaceOrder,
		ProductID:     g.productID,
		ClientOrderID: g.newID(),
		Side:          side,
		Price:         orderbookv1.TruncateTo(price, g.priceScale),
		Size:          size,
	}, true
}
