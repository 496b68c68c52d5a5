package feed

import (
	"context"
	"time"

	"github.com/muhammadchandra19/exchange/pkg/logger"
	snapshotv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/snapshot/v1"
)

// runCheckpointManager stores the book periodically and once more on shutdown.
func (f *Feed) runCheckpointManager() {
	defer f.wg.Done()

	ticker := newTicker(f.options.SnapshotInterval)
	defer ticker.Stop()

	f.logger.Info("Starting checkpoint manager")

	for {
		select {
		case <-f.ctx.Done():
			ctx, cancel := context.WithTimeout(context.WithoutCancel(f.ctx), f.options.ShutdownTimeout)
			f.checkpoint(ctx)
			cancel()
			f.logger.Info("Checkpoint manager shutting down")
			return
		case <-ticker.C:
			f.checkpoint(f.ctx)
		}
	}
}

// checkpoint stores a copy of the book when it is synced and moved since the last checkpoint.
func (f *Feed) checkpoint(ctx context.Context) {
	f.mu.RLock()
	if !f.synchronizer.State().Synced() || f.book.Sequence() == f.lastCheckpointSeq {
		f.mu.RUnlock()
		return
	}
	snapshot := &snapshotv1.Snapshot{
		ProductID: f.productID,
		Offset:    f.offset,
		State:     f.book.StateCopy(),
	}
	f.mu.RUnlock()

	err := f.snapshotStore.Store(ctx, snapshot)
	f.metrics.Checkpoint(f.productID, err)
	if err != nil {
		f.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "store_snapshot",
		})
		return
	}

	f.mu.Lock()
	f.lastCheckpointSeq = snapshot.State.Sequence
	f.lastCheckpointOffset = snapshot.Offset
	f.mu.Unlock()

	f.logger.Debug("Checkpoint stored", logger.Field{
		Key:   "offset",
		Value: snapshot.Offset,
	}, logger.Field{
		Key:   "sequence",
		Value: snapshot.State.Sequence,
	})
}

// LastCheckpointOffset returns the offset of the last stored checkpoint, -1 if none.
func (f *Feed) LastCheckpointOffset() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastCheckpointOffset
}

func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		d = DefaultFeedOptions().SnapshotInterval
	}
	return time.NewTicker(d)
}
