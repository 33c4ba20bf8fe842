package daemon

import (
	"github.com/shieldnode/shieldnode/services/mempool"
	"github.com/shieldnode/shieldnode/stores/coins"
)

type Options struct {
	store          coins.Store
	onStoreError   func(err error)
	mempoolOptions []mempool.Option
}

// Option is a functional option type for configuring the ChainState.
type Option func(*Options)

func NewDefaultOptions() *Options {
	return &Options{}
}

func ProcessOptions(opts ...Option) *Options {
	options := NewDefaultOptions()
	for _, o := range opts {
		o(options)
	}

	return options
}

// WithStore uses store instead of opening the configured store url.
func WithStore(store coins.Store) Option {
	return func(o *Options) {
		o.store = store
	}
}

// WithStoreErrorHandler replaces the fatal log on backing store read failures.
func WithStoreErrorHandler(onError func(err error)) Option {
	return func(o *Options) {
		o.onStoreError = onError
	}
}

// WithMempoolOptions passes options through to the mempool.
func WithMempoolOptions(opts ...mempool.Option) Option {
	return func(o *Options) {
		o.mempoolOptions = append(o.mempoolOptions, opts...)
	}
}
