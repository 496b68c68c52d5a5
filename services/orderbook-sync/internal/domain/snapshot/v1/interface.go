package snapshotv1

import "context"

// Store defines the interface for storing and loading checkpoints of the order book.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=snapshotv1_mock
type Store interface {
	Store(ctx context.Context, snapshot *Snapshot) error
	// LoadStore returns nil, nil when no checkpoint exists.
	LoadStore(ctx context.Context) (*Snapshot, error)
	// Discard removes the checkpoint, e.g. after the stream proved it stale.
	Discard(ctx context.Context) error
}
