package messagereader

import (
	"context"

	"github.com/muhammadchandra19/exchange/pkg/errors"
	"github.com/muhammadchandra19/exchange/pkg/logger"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/pkg/config"
	"github.com/segmentio/kafka-go"
)

// kafkaReader is the part of *kafka.Reader the Reader uses.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	SetOffset(offset int64) error
	Close() error
}

// Reader consumes the canonical message topic of one product.
type Reader struct {
	kafkaReader kafkaReader
	grouped     bool
	logger      *logger.Logger
}

var _ messagev1.Reader = (*Reader)(nil)

// NewReader creates a Kafka reader for the topic of productID. Without a group id it reads
// partition 0 directly and offsets are managed through SetOffset and the checkpoint store.
func NewReader(cfg config.KafkaConfig, productID string, log *logger.Logger) *Reader {
	readerConfig := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic(productID),
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}
	if cfg.GroupID != "" {
		readerConfig.GroupID = cfg.GroupID
	} else {
		readerConfig.Partition = 0
	}

	return &Reader{
		kafkaReader: kafka.NewReader(readerConfig),
		grouped:     cfg.GroupID != "",
		logger: log.WithFields(
			logger.Field{Key: "product_id", Value: productID},
			logger.Field{Key: "topic", Value: readerConfig.Topic},
		),
	}
}

// logError is a helper method to log errors consistently
func (r *Reader) logError(err error, operation string) {
	r.logger.Error(err,
		logger.Field{Key: "error", Value: err.Error()},
		logger.Field{Key: "operation", Value: operation},
	)
}

// SetOffset positions a partition reader. Consumer-group readers resume from the committed offset.
func (r *Reader) SetOffset(offset int64) error {
	if r.grouped {
		return nil
	}
	if err := r.kafkaReader.SetOffset(offset); err != nil {
		r.logError(err, "SetOffset")
		return errors.NewTracer(errors.MessageReadError).Wrap(err)
	}
	return nil
}

// ReadMessage fetches the next record and decodes it. A record that does not decode is returned
// with the error so it can be committed and skipped.
func (r *Reader) ReadMessage(ctx context.Context) (kafka.Message, messagev1.Message, error) {
	msg, err := r.kafkaReader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logError(err, "ReadMessage")
		}
		return kafka.Message{}, nil, errors.NewTracer(errors.MessageReadError).Wrap(err)
	}

	decoded, err := messagev1.Decode(msg.Value)
	if err != nil {
		r.logger.Warn("undecodable message",
			logger.Field{Key: "offset", Value: msg.Offset},
			logger.Field{Key: "error", Value: err.Error()},
		)
		return msg, nil, errors.NewTracer(errors.MessageDecodeError).Wrap(err)
	}

	r.logger.Debug("ReadMessage",
		logger.Field{Key: "offset", Value: msg.Offset},
		logger.Field{Key: "type", Value: decoded.Kind()},
	)
	return msg, decoded, nil
}

// CommitMessages commits the records in consumer-group mode.
func (r *Reader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if !r.grouped || len(msgs) == 0 {
		return nil
	}
	if err := r.kafkaReader.CommitMessages(ctx, msgs...); err != nil {
		r.logError(err, "CommitMessages")
		return errors.NewTracer(errors.MessageCommitError).Wrap(err)
	}
	return nil
}

// Close properly closes the Kafka reader.
func (r *Reader) Close() error {
	if err := r.kafkaReader.Close(); err != nil {
		r.logError(err, "Close")
		return err
	}
	return nil
}
