package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedDelay(t *testing.T) {
	policy := FixedDelay(3, 50*time.Millisecond)

	delay, again := policy(1)
	assert.True(t, again)
	assert.Equal(t, 50*time.Millisecond, delay)

	delay, again = policy(2)
	assert.True(t, again)
	assert.Equal(t, 50*time.Millisecond, delay)

	_, again = policy(3)
	assert.False(t, again)
}

func TestBackoff(t *testing.T) {
	policy := Backoff(5, 100*time.Millisecond, 400*time.Millisecond)

	tests := []struct {
		attempt int
		want    time.Duration
		again   bool
	}{
		{attempt: 1, want: 100 * time.Millisecond, again: true},
		{attempt: 2, want: 200 * time.Millisecond, again: true},
		{attempt: 3, want: 400 * time.Millisecond, again: true},
		{attempt: 4, want: 400 * time.Millisecond, again: true},
		{attempt: 5, again: false},
	}
	for _, tt := range tests {
		delay, again := policy(tt.attempt)
		assert.Equal(t, tt.again, again, "attempt %d", tt.attempt)
		if tt.again {
			assert.Equal(t, tt.want, delay, "attempt %d", tt.attempt)
		}
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, FixedDelay(5, time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsPolicy(t *testing.T) {
	wantErr := errors.New("permanent")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return wantErr
	}, FixedDelay(3, time.Millisecond))

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("always fails")
	}, FixedDelay(10, time.Hour))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestUserError(t *testing.T) {
	base := errors.New("connection reset")
	err := NewUserError("could not reach the server", base)

	assert.Equal(t, "could not reach the server: connection reset", err.Error())
	assert.ErrorIs(t, err, base)

	bare := NewUserError("invalid input", nil)
	assert.Equal(t, "invalid input", bare.Error())
}
