package mempool

import (
	"math/rand/v2"
	"time"
)

type Options struct {
	rng *rand.Rand
	now func() time.Time
}

// Option is a function that sets some option on the Options struct
type Option func(*Options)

func NewDefaultOptions() *Options {
	return &Options{
		now: time.Now,
	}
}

func ProcessOptions(opts ...Option) *Options {
	options := NewDefaultOptions()
	for _, o := range opts {
		o(options)
	}

	if options.rng == nil {
		options.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return options
}

// WithRand sets the random source used for eviction draws, sanity check sampling and the fee
// estimator
func WithRand(rng *rand.Rand) Option {
	return func(o *Options) {
		o.rng = rng
	}
}

// WithClock sets the clock used for entry times and the recently evicted window
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}
