package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	value, err := RetryWithBackoff(context.Background(), func(context.Context) (int, error) {
		attempts++
		return 7, nil
	}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	value, err := RetryWithBackoff(context.Background(), func(context.Context) ([]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("rate limited")
		}
		return []float32{1}, nil
	}, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, value)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expected := errors.New("model unavailable")
	_, err := RetryWithBackoff(context.Background(), func(context.Context) (struct{}, error) {
		attempts++
		return struct{}{}, expected
	}, 3, time.Millisecond)
	assert.Equal(t, expected, err, "should return the last error unchanged")
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := RetryWithBackoff(ctx, func(context.Context) (int, error) {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return 0, errors.New("error")
	}, 10, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts, "should stop once the context is canceled")
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	var delays []time.Duration
	last := time.Now()
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), func(context.Context) (int, error) {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(last))
		}
		last = time.Now()
		if attempts < 4 {
			return 0, errors.New("error")
		}
		return 0, nil
	}, 5, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, delays, 3)

	assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, delays[2], 40*time.Millisecond)
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, max := range []int{0, -1} {
		attempts := 0
		_, err := RetryWithBackoff(context.Background(), func(context.Context) (int, error) {
			attempts++
			return 0, nil
		}, max, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Zero(t, attempts)
	}
}
