package feed

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/muhammadchandra19/exchange/pkg/errors"
	"github.com/muhammadchandra19/exchange/pkg/logger"
	"github.com/muhammadchandra19/exchange/pkg/util"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/synchronizer"
	"github.com/segmentio/kafka-go"
)

// runMessageProcessor reads, applies and commits messages in a single goroutine.
func (f *Feed) runMessageProcessor() {
	defer f.wg.Done()

	f.logger.Info("Starting message processor")

	for {
		select {
		case <-f.ctx.Done():
			f.logger.Info("Message processor shutting down")
			if err := f.reader.Close(); err != nil {
				f.logger.Error(err, logger.Field{Key: "action", Value: "close_reader"})
			}
			return
		default:
			raw, msg, err := f.reader.ReadMessage(f.ctx)
			if err != nil {
				if f.ctx.Err() != nil {
					continue
				}
				if isDecodeError(err) {
					f.skip(raw, err)
					continue
				}
				f.logger.ErrorContext(f.ctx, err, logger.Field{
					Key:   "action",
					Value: "read_message",
				})
				f.backoff()
				continue
			}

			f.process(raw, msg)
		}
	}
}

// process applies one message and commits it.
func (f *Feed) process(raw kafka.Message, msg messagev1.Message) {
	ctx := util.WithCorrelationID(util.WithProductID(f.ctx, f.productID), correlationID(raw))

	f.mu.Lock()
	res, err := f.synchronizer.Apply(ctx, msg)
	seq := f.book.Sequence()
	f.offset = raw.Offset
	f.mu.Unlock()

	f.metrics.ObserveMessage(f.productID, string(msg.Kind()), string(res))
	f.metrics.SetSequence(f.productID, seq)

	switch {
	case res == synchronizer.ResultSkipped:
		f.metrics.SequenceGap(f.productID)
	case res == synchronizer.ResultInconsistent:
		f.metrics.Inconsistency(f.productID)
	case err == nil:
	case stderrors.Is(err, synchronizer.ErrHalted):
		f.logger.DebugContext(ctx, "dropping message while halted", logger.Field{
			Key:   "offset",
			Value: raw.Offset,
		})
	case stderrors.Is(err, synchronizer.ErrSequenceGap):
		f.metrics.SequenceGap(f.productID)
		f.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "halted_until_snapshot",
		})
	default:
		f.logger.WarnContext(ctx, "message rejected", logger.Field{
			Key:   "error",
			Value: errors.NewTracer(errors.MessageApplyError).Wrap(err).Error(),
		}, logger.Field{
			Key:   "offset",
			Value: raw.Offset,
		})
	}

	f.commit(raw)
}

// correlationID returns the correlation header of raw, empty when the producer set none.
func correlationID(raw kafka.Message) string {
	for _, h := range raw.Headers {
		if h.Key == messagev1.CorrelationHeader {
			return string(h.Value)
		}
	}
	return ""
}

// skip commits past a record that could not be decoded.
func (f *Feed) skip(raw kafka.Message, err error) {
	f.logger.Warn("skipping undecodable message", logger.Field{
		Key:   "offset",
		Value: raw.Offset,
	}, logger.Field{
		Key:   "error",
		Value: err.Error(),
	})
	f.metrics.ObserveMessage(f.productID, "unknown", string(synchronizer.ResultRejected))

	f.mu.Lock()
	f.offset = raw.Offset
	f.mu.Unlock()
	f.commit(raw)
}

func (f *Feed) commit(raw kafka.Message) {
	if err := f.reader.CommitMessages(f.ctx, raw); err != nil {
		f.logger.ErrorContext(f.ctx, err, logger.Field{
			Key:   "action",
			Value: "commit_message",
		})
	}
}

func (f *Feed) backoff() {
	t := time.NewTimer(f.options.ReadBackoff)
	defer t.Stop()
	select {
	case <-f.ctx.Done():
	case <-t.C:
	}
}

func isDecodeError(err error) bool {
	return stderrors.Is(err, messagev1.ErrMalformedMessage) || stderrors.Is(err, messagev1.ErrUnknownMessage)
}

// loadSnapshot restores the book from the last checkpoint. A checkpoint the book rejects is
// discarded and the feed starts from the stream.
func (f *Feed) loadSnapshot(ctx context.Context) error {
	if f.snapshotStore == nil {
		return nil
	}

	snapshot, err := f.snapshotStore.LoadStore(ctx)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}

	f.mu.Lock()
	_, err = f.synchronizer.Apply(ctx, messagev1.NewSnapshot(f.productID, snapshot.State))
	if err == nil {
		f.offset = snapshot.Offset
		f.lastCheckpointSeq = snapshot.State.Sequence
		f.lastCheckpointOffset = snapshot.Offset
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.ErrorContext(ctx, errors.NewTracer(errors.SnapshotRestoreError).Wrap(err), logger.Field{
			Key:   "action",
			Value: "discard_checkpoint",
		}, logger.Field{
			Key:   "offset",
			Value: snapshot.Offset,
		})
		return f.snapshotStore.Discard(ctx)
	}

	f.logger.Info("Book restored from checkpoint", logger.Field{
		Key:   "offset",
		Value: snapshot.Offset,
	}, logger.Field{
		Key:   "sequence",
		Value: snapshot.State.Sequence,
	})
	return nil
}
