package eventpublisher

import (
	"context"
	"time"

	"github.com/muhammadchandra19/exchange/pkg/errors"
	"github.com/muhammadchandra19/exchange/pkg/logger"
	eventv1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/event/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/pkg/config"
	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes domain events to the events topic, keyed by product id.
type Publisher struct {
	kafkaWriter kafkaWriter
	logger      *logger.Logger
	now         func() time.Time
}

var _ eventv1.Publisher = (*Publisher)(nil)

// NewPublisher creates a new Kafka publisher for domain events.
func NewPublisher(cfg config.KafkaConfig, log *logger.Logger) *Publisher {
	return &Publisher{
		kafkaWriter: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.EventsTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: log.WithFields(logger.Field{Key: "topic", Value: cfg.EventsTopic}),
		now:    time.Now,
	}
}

// Publish writes events in order as one batch.
func (p *Publisher) Publish(ctx context.Context, events ...eventv1.Event) error {
	if len(events) == 0 {
		return nil
	}

	at := p.now()
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := eventv1.Marshal(e, at)
		if err != nil {
			p.logger.ErrorContext(ctx, err, logger.Field{Key: "event", Value: e.Kind()})
			return errors.NewTracer(errors.EventEncodeError).Wrap(err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Product()),
			Value: value,
			Time:  at,
		})
	}

	if err := p.kafkaWriter.WriteMessages(ctx, msgs...); err != nil {
		p.logger.ErrorContext(ctx, err,
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "events", Value: len(events)},
		)
		return errors.NewTracer(errors.EventPublishError).Wrap(err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.kafkaWriter.Close()
}
