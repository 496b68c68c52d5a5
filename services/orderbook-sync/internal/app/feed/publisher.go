package feed

import (
	"context"

	"github.com/muhammadchandra19/exchange/pkg/logger"
	eventv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/event/v1"
)

const maxPublishBatch = 128

// enqueue hands an event to the publisher goroutine without blocking the processor.
func (f *Feed) enqueue(e eventv1.Event) {
	select {
	case f.events <- e:
	default:
		f.metrics.EventDropped(f.productID)
		f.logger.Warn("event buffer full, dropping event", logger.Field{
			Key:   "event",
			Value: e.Kind(),
		})
	}
}

// runEventPublisher publishes queued events in batches.
func (f *Feed) runEventPublisher() {
	defer f.wg.Done()

	f.logger.Info("Starting event publisher")

	for {
		select {
		case <-f.ctx.Done():
			ctx, cancel := context.WithTimeout(context.WithoutCancel(f.ctx), f.options.ShutdownTimeout)
			f.publish(ctx, f.drain(nil, len(f.events)))
			cancel()
			if err := f.publisher.Close(); err != nil {
				f.logger.Error(err, logger.Field{Key: "action", Value: "close_publisher"})
			}
			f.logger.Info("Event publisher shutting down")
			return
		case e := <-f.events:
			f.publish(f.ctx, f.drain([]eventv1.Event{e}, maxPublishBatch))
		}
	}
}

// drain appends up to limit queued events to batch without blocking.
func (f *Feed) drain(batch []eventv1.Event, limit int) []eventv1.Event {
	for len(batch) < limit {
		select {
		case e := <-f.events:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (f *Feed) publish(ctx context.Context, batch []eventv1.Event) {
	if len(batch) == 0 {
		return
	}
	if err := f.publisher.Publish(ctx, batch...); err != nil {
		f.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "publish_events",
		}, logger.Field{
			Key:   "events",
			Value: len(batch),
		})
	}
}
