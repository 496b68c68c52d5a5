package util

import (
	"context"

	"github.com/google/uuid"
)

type key string

const (
	productIDKey     = key("product-id")
	correlationIDKey = key("correlation-id")
	sequenceKey      = key("sequence")
)

// FieldsFromContext extracts the log fields this package stores on a context.
type FieldsFromContext struct{}

// Fields returns a map of the key-value pairs that this library has set into `context`.
// Keys that were never set are omitted.
func (f *FieldsFromContext) Fields(ctx context.Context) map[string]interface{} {
	mapFields := make(map[string]interface{})
	if id := GetProductID(ctx); id != "" {
		mapFields["product_id"] = id
	}
	if id := GetCorrelationID(ctx); id != "" {
		mapFields["correlation_id"] = id
	}
	if seq, ok := GetSequence(ctx); ok {
		mapFields["sequence"] = seq
	}

	return mapFields
}

// WithProductID returns a context carrying the product the work belongs to.
func WithProductID(ctx context.Context, productID string) context.Context {
	return context.WithValue(ctx, productIDKey, productID)
}

// GetProductID returns the product id from context, empty if not present.
func GetProductID(ctx context.Context) string {
	id, _ := ctx.Value(productIDKey).(string)
	return id
}

// WithCorrelationID returns a context with a correlation id.
// It generates a new uuid-v4 when the provided id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID returns the correlation id from context, empty if not present.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithSequence returns a context tagged with the stream sequence being processed.
func WithSequence(ctx context.Context, sequence int64) context.Context {
	return context.WithValue(ctx, sequenceKey, sequence)
}

// GetSequence returns the sequence stored on the context.
func GetSequence(ctx context.Context) (int64, bool) {
	seq, ok := ctx.Value(sequenceKey).(int64)
	return seq, ok
}
