package retry

import (
	"context"
	"testing"
	"time"

	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(t *testing.T) *[]time.Duration {
	var slept []time.Duration

	original := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}

	t.Cleanup(func() { sleepFunc = original })

	return &slept
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	slept := noSleep(t)
	calls := 0

	result, err := Retry(context.Background(), ulogger.TestLogger{}, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.NewStorageUnavailableError("not yet")
		}

		return "ok", nil
	}, WithRetryCount(5), WithBackoffMultiplier(2), WithBackoffDurationType(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 3 * time.Millisecond}, *slept)
}

func TestRetryReturnsLastError(t *testing.T) {
	noSleep(t)

	calls := 0

	_, err := Retry(context.Background(), ulogger.TestLogger{}, func() (int, error) {
		calls++
		return 0, errors.NewStorageUnavailableError("down")
	}, WithRetryCount(3))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable))
	assert.Equal(t, 3, calls)
}

func TestRetryExponentialBackoffIsCapped(t *testing.T) {
	slept := noSleep(t)

	_, _ = Retry(context.Background(), ulogger.TestLogger{}, func() (int, error) {
		return 0, errors.NewProcessingError("fail")
	}, WithRetryCount(5), WithExponentialBackoff(), WithBackoffDurationType(10*time.Millisecond),
		WithBackoffFactor(2), WithMaxBackoff(30*time.Millisecond))

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 30 * time.Millisecond}, *slept)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	noSleep(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0

	_, err := Retry(ctx, ulogger.TestLogger{}, func() (int, error) {
		calls++
		return 0, errors.NewProcessingError("fail")
	}, WithRetryCount(5))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryIfStopsOnPermanentError(t *testing.T) {
	slept := noSleep(t)
	calls := 0

	_, err := Retry(context.Background(), ulogger.TestLogger{}, func() (int, error) {
		calls++
		return 0, errors.NewConfigurationError("bad url")
	}, WithRetryCount(5), WithRetryIf(func(err error) bool {
		return errors.Is(err, errors.ErrStorageUnavailable)
	}))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}
