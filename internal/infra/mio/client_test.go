package mio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresEndpointAndBucket(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewClient(context.Background(), Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	rc := RetryConfig{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := retry(context.Background(), rc, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retry(context.Background(), rc, func() error {
		calls++
		return errors.New("down")
	})
	assert.ErrorContains(t, err, "gave up after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := RetryConfig{Attempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	err := retry(ctx, rc, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}
