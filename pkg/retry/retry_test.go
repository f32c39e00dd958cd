package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.InitialDelay = time.Millisecond
	cfg.JitterFraction = 0
	return cfg
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	boom := errors.New("persistent")
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestOnceAttemptsTwice(t *testing.T) {
	calls := 0
	cfg := Once(time.Millisecond)
	cfg.JitterFraction = 0

	_ = Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("nope")
	})

	assert.Equal(t, 2, calls)
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func() error {
		calls++
		return errors.New("should not run")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDoWithResultReturnsValue(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastConfig(2), func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestOnRetryCallbackFires(t *testing.T) {
	var seen []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error) {
		seen = append(seen, attempt)
	}

	_ = Do(context.Background(), cfg, func() error {
		return errors.New("always")
	})

	assert.Equal(t, []int{1, 2}, seen)
}
