package errors

import (
	"bytes"
	"strings"
)

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"
	// GeneralBadRequestError represents a generic invalid input error.
	GeneralBadRequestError ErrorCode = "general_bad_request_error"

	// ConfigInvalidError is returned when a configuration value fails validation.
	ConfigInvalidError ErrorCode = "config_invalid_error"

	// MessageDecodeError is returned when a stream payload cannot be decoded into a canonical message.
	MessageDecodeError ErrorCode = "message_decode_error"
	// MessageReadError is returned when the transport fails to deliver the next message.
	MessageReadError ErrorCode = "message_read_error"
	// MessageCommitError is returned when committing a consumed message fails.
	MessageCommitError ErrorCode = "message_commit_error"
	// MessageApplyError is returned when the synchronizer rejects a message.
	MessageApplyError ErrorCode = "message_apply_error"

	// EventEncodeError is returned when a domain event cannot be serialised.
	EventEncodeError ErrorCode = "event_encode_error"
	// EventPublishError is returned when a domain event cannot be written to the transport.
	EventPublishError ErrorCode = "event_publish_error"

	// SnapshotMarshalError is returned when a book checkpoint cannot be serialised.
	SnapshotMarshalError ErrorCode = "snapshot_marshal_error"
	// SnapshotUnmarshalError is returned when a stored checkpoint cannot be parsed.
	SnapshotUnmarshalError ErrorCode = "snapshot_unmarshal_error"
	// SnapshotStoreError is returned when writing a checkpoint fails.
	SnapshotStoreError ErrorCode = "snapshot_store_error"
	// SnapshotLoadError is returned when reading a checkpoint fails.
	SnapshotLoadError ErrorCode = "snapshot_load_error"
	// SnapshotRestoreError is returned when a loaded checkpoint cannot be applied to the book.
	SnapshotRestoreError ErrorCode = "snapshot_restore_error"

	// FeedAlreadyRegistered is returned when a product already has a feed in the registry.
	FeedAlreadyRegistered ErrorCode = "feed_already_registered"
	// FeedNotReady is returned by readiness checks while a feed is not synced.
	FeedNotReady ErrorCode = "feed_not_ready"

	// RedisConfigError represents an error when the Redis configuration is invalid or nil.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisDisconnectionError represents an error when disconnecting from Redis.
	RedisDisconnectionError ErrorCode = "redis_disconnection_error"
	// RedisPingError represents an error when pinging Redis.
	RedisPingError ErrorCode = "redis_pinging_error"
	// RedisGetError represents an error when getting a value from Redis.
	RedisGetError ErrorCode = "redis_get_error"
	// RedisSetError represents an error when setting a value in Redis.
	RedisSetError ErrorCode = "redis_set_error"
	// RedisDelError represents an error when deleting a value from Redis.
	RedisDelError ErrorCode = "redis_del_error"
)

// BaseError is an `error` type containing an array of ErrorDetails.
// It is used where validation collects every problem instead of stopping at the first one.
type BaseError struct {
	details []*ErrorDetails
}

// NewBaseError create BaseError with ErrorDetails
func NewBaseError(details ...*ErrorDetails) *BaseError {
	return &BaseError{details: details}
}

// AddErrorDetails add more ErrorDetails to BaseError
func (b *BaseError) AddErrorDetails(errors ...*ErrorDetails) {
	b.details = append(b.details, errors...)
}

// GetDetails get array ErrorDetails on BaseError
func (b *BaseError) GetDetails() []*ErrorDetails {
	return b.details
}

// HasDetails reports whether any ErrorDetails were collected.
func (b *BaseError) HasDetails() bool {
	return len(b.details) > 0
}

// Error implement error interface
func (b *BaseError) Error() string {
	buff := bytes.NewBufferString("")

	buff.WriteString("Error on\n")
	for _, err := range b.details {
		buff.WriteString("code: ")
		buff.WriteString(err.Code)
		buff.WriteString("; error: ")
		buff.WriteString(err.Error())
		buff.WriteString("; field: ")
		buff.WriteString(err.Field)
		buff.WriteString("\n")
	}

	return strings.TrimSpace(buff.String())
}

// IsAnyCodeEqual check if any ErrorDetails code is equal with given code
func (b *BaseError) IsAnyCodeEqual(code string) bool {
	for _, d := range b.GetDetails() {
		if d.Code == code {
			return true
		}
	}
	return false
}

// ErrorOrNil returns b when it holds details, nil otherwise.
func (b *BaseError) ErrorOrNil() error {
	if b == nil || !b.HasDetails() {
		return nil
	}
	return b
}
