package retry

import (
	"context"
	"time"

	"github.com/shieldnode/shieldnode/ulogger"
)

type Options struct {
	retryCount         int
	backoffMultiplier  int
	backoffDuration    time.Duration
	exponentialBackoff bool
	backoffFactor      float64
	maxBackoff         time.Duration
	message            string
	retryIf            func(error) bool
}

type Option func(*Options)

func WithRetryCount(count int) Option {
	return func(o *Options) {
		o.retryCount = count
	}
}

func WithBackoffMultiplier(multiplier int) Option {
	return func(o *Options) {
		o.backoffMultiplier = multiplier
	}
}

func WithBackoffDurationType(d time.Duration) Option {
	return func(o *Options) {
		o.backoffDuration = d
	}
}

// WithExponentialBackoff multiplies the wait by the backoff factor after every attempt, up to the max backoff.
func WithExponentialBackoff() Option {
	return func(o *Options) {
		o.exponentialBackoff = true
	}
}

func WithBackoffFactor(factor float64) Option {
	return func(o *Options) {
		o.backoffFactor = factor
	}
}

func WithMaxBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.maxBackoff = d
	}
}

func WithMessage(message string) Option {
	return func(o *Options) {
		o.message = message
	}
}

// WithRetryIf limits retries to errors for which retryable returns true. Other errors are returned
// straight away.
func WithRetryIf(retryable func(error) bool) Option {
	return func(o *Options) {
		o.retryIf = retryable
	}
}

// Retry calls f until it succeeds, the retry count is exhausted or ctx is done. The last error is
// returned when every attempt failed.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Option) (T, error) {
	options := &Options{
		retryCount:        3,
		backoffMultiplier: 2,
		backoffDuration:   time.Second,
		backoffFactor:     2.0,
		maxBackoff:        30 * time.Second,
		message:           "retrying",
	}

	for _, opt := range opts {
		opt(options)
	}

	var (
		result T
		err    error
	)

	backoff := options.backoffDuration

	for i := 0; i < options.retryCount; i++ {
		if result, err = f(); err == nil {
			return result, nil
		}

		if i == options.retryCount-1 || (options.retryIf != nil && !options.retryIf(err)) {
			break
		}

		logger.Warnf("%s (attempt %d/%d): %v", options.message, i+1, options.retryCount, err)

		if options.exponentialBackoff {
			if sleepErr := sleepFunc(ctx, backoff); sleepErr != nil {
				return result, sleepErr
			}

			backoff = CappedExponentialBackoff(backoff, options.backoffFactor, options.maxBackoff)
		} else if sleepErr := BackoffAndSleep(ctx, i, options.backoffMultiplier, options.backoffDuration); sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}
