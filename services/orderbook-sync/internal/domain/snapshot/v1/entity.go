package snapshotv1

import (
	"time"

	orderbookv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/orderbook/v1"
)

// Snapshot is a checkpoint of one product's book together with the transport offset
// of the last message folded into it.
type Snapshot struct {
	ProductID string                     `json:"productId"`
	Offset    int64                      `json:"offset"`
	StoredAt  time.Time                  `json:"storedAt"`
	State     orderbookv1.OrderbookState `json:"state"`
}
