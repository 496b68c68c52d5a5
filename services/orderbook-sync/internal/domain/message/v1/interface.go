package messagev1

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Reader delivers canonical messages from the transport.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=messagev1_mock
type Reader interface {
	// ReadMessage blocks for the next record and decodes it. A decode failure returns the
	// raw record together with the error so the caller can still commit past it.
	ReadMessage(ctx context.Context) (kafka.Message, Message, error)
	// SetOffset positions the reader. It is a no-op for consumer-group readers.
	SetOffset(offset int64) error
	// CommitMessages commits the records after processing.
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	// Close closes the reader.
	Close() error
}
