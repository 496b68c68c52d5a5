package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTracer(t *testing.T) {
	cause := stderrors.New("connection refused")

	t.Run("wrap keeps cause reachable", func(t *testing.T) {
		err := NewTracer(SnapshotStoreError).Wrap(cause)

		assert.Equal(t, "snapshot_store_error: connection refused", err.Error())
		assert.True(t, stderrors.Is(err, cause))
		assert.NotNil(t, err.StackTrace())
	})

	t.Run("tracer from error", func(t *testing.T) {
		err := TracerFromError(cause)

		assert.Equal(t, "connection refused", err.Error())
		assert.True(t, stderrors.Is(err, cause))
		assert.NotNil(t, err.StackTrace())
	})

	t.Run("message only", func(t *testing.T) {
		err := NewTracer("boom")

		assert.Equal(t, "boom", err.Error())
		assert.Nil(t, err.StackTrace())
	})
}

func TestErrorCodeEquals(t *testing.T) {
	details := NewErrorDetails("redis addresses are empty", RedisConfigError, "connect")

	assert.True(t, ErrorCodeEquals(details, RedisConfigError))
	assert.True(t, ErrorCodeEquals(fmt.Errorf("connect: %w", details), RedisConfigError))
	assert.False(t, ErrorCodeEquals(details, RedisPingError))
	assert.False(t, ErrorCodeEquals(stderrors.New("plain"), RedisConfigError))
}

func TestBaseError(t *testing.T) {
	base := NewBaseError()
	require.NoError(t, base.ErrorOrNil())

	base.AddErrorDetails(
		NewErrorDetails("products must not be empty", ConfigInvalidError, "PRODUCTS"),
		NewErrorDetails("brokers must not be empty", ConfigInvalidError, "KAFKA_BROKERS"),
	)

	err := base.ErrorOrNil()
	require.Error(t, err)
	assert.Len(t, base.GetDetails(), 2)
	assert.True(t, base.IsAnyCodeEqual(string(ConfigInvalidError)))
	assert.Contains(t, err.Error(), "field: KAFKA_BROKERS")
}
