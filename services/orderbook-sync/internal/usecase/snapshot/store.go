package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/muhammadchandra19/exchange/pkg/errors"
	logger "github.com/muhammadchandra19/exchange/pkg/logger"
	"github.com/muhammadchandra19/exchange/pkg/redis"
	snapshotv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/snapshot/v1"
)

// Store keeps the latest checkpoint of one product's book in Redis.
type Store struct {
	productID   string
	ttl         time.Duration
	logger      *logger.Logger
	redisclient redis.Client
}

var _ snapshotv1.Store = (*Store)(nil)

// NewSnapshotStore creates a Store for productID. A zero ttl keeps checkpoints forever.
func NewSnapshotStore(redisclient redis.Client, productID string, ttl time.Duration, log *logger.Logger) *Store {
	return &Store{
		productID:   productID,
		ttl:         ttl,
		redisclient: redisclient,
		logger: log.WithFields(logger.Field{
			Key:   "product_id",
			Value: productID,
		}),
	}
}

func (s *Store) key() string {
	return s.redisclient.Key("snapshot:" + s.productID)
}

// Store writes the checkpoint, replacing the previous one.
func (s *Store) Store(ctx context.Context, snapshot *snapshotv1.Snapshot) error {
	if snapshot.StoredAt.IsZero() {
		snapshot.StoredAt = time.Now().UTC()
	}

	buf, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "marshal snapshot",
		})
		return errors.NewTracer(errors.SnapshotMarshalError).Wrap(err)
	}

	err = s.redisclient.Set(ctx, s.key(), buf, s.ttl)
	if err != nil && s.reconnect(ctx) {
		err = s.redisclient.Set(ctx, s.key(), buf, s.ttl)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "store snapshot",
		})
		return errors.NewTracer(errors.SnapshotStoreError).Wrap(err)
	}

	s.logger.DebugContext(ctx, fmt.Sprintf("Snapshot stored for product %s", s.productID), logger.Field{
		Key:   "sequence",
		Value: snapshot.State.Sequence,
	}, logger.Field{
		Key:   "offset",
		Value: snapshot.Offset,
	})
	return nil
}

// reconnect re-establishes the connection when Redis no longer answers a ping.
// It returns true when a retry is worthwhile.
func (s *Store) reconnect(ctx context.Context) bool {
	if s.redisclient.Ping(ctx) == nil {
		return false
	}
	s.logger.WarnContext(ctx, "Redis unreachable, reconnecting", logger.Field{
		Key:   "action",
		Value: "store snapshot",
	})
	return s.redisclient.Reconnect(ctx)
}

// LoadStore reads the checkpoint. It returns nil, nil when there is none.
func (s *Store) LoadStore(ctx context.Context) (*snapshotv1.Snapshot, error) {
	data, err := s.redisclient.Get(ctx, s.key())
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "load snapshot",
		})
		return nil, errors.NewTracer(errors.SnapshotLoadError).Wrap(err)
	}

	if data == "" {
		s.logger.WarnContext(ctx, fmt.Sprintf("No snapshot found for product %s", s.productID), logger.Field{
			Key:   "action",
			Value: "load snapshot",
		})
		return nil, nil
	}

	var snapshot snapshotv1.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "unmarshal snapshot",
		})
		return nil, errors.NewTracer(errors.SnapshotUnmarshalError).Wrap(err)
	}

	s.logger.InfoContext(ctx, fmt.Sprintf("Snapshot loaded for product %s", s.productID), logger.Field{
		Key:   "sequence",
		Value: snapshot.State.Sequence,
	}, logger.Field{
		Key:   "stored_at",
		Value: snapshot.StoredAt,
	})
	return &snapshot, nil
}

// Discard deletes the checkpoint.
func (s *Store) Discard(ctx context.Context) error {
	if _, err := s.redisclient.Del(ctx, s.key()); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "discard snapshot",
		})
		return errors.NewTracer(errors.SnapshotStoreError).Wrap(err)
	}
	return nil
}
