// Package daemon wires the backing store, the tip cache and the mempool into the node chain state and
// runs their maintenance.
package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/services/mempool"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/stores/coins/factory"
	"github.com/shieldnode/shieldnode/ulogger"
	"golang.org/x/sync/errgroup"
)

// ChainState owns the chain-state cache stack and the mempool. The chain lock guards the tip cache;
// the mempool guards itself. When both are needed the chain lock is taken first.
type ChainState struct {
	logger   ulogger.Logger
	settings *settings.Settings

	mu      sync.Mutex
	store   coins.Store
	catcher *coins.ErrorCatcher
	tip     *coins.Cache
	height  uint32

	// branch id of the last connected block
	branchID uint32

	mempool *mempool.Mempool

	cancel  context.CancelFunc
	g       *errgroup.Group
	stopped bool
}

// New opens the configured store and builds the tip cache and the mempool on top of it.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, opts ...Option) (*ChainState, error) {
	initPrometheusMetrics()

	options := ProcessOptions(opts...)

	store := options.store
	if store == nil {
		var err error

		store, err = factory.NewStore(ctx, logger, tSettings, tSettings.Coins.StoreURL)
		if err != nil {
			return nil, err
		}
	}

	catcher := coins.NewErrorCatcher(logger, store)
	if options.onStoreError != nil {
		catcher.OnError = options.onStoreError
	}

	cs := &ChainState{
		logger:   logger,
		settings: tSettings,
		store:    store,
		catcher:  catcher,
		tip:      coins.NewCache(logger, catcher),
		mempool:  mempool.New(logger, tSettings, options.mempoolOptions...),
	}

	best, err := cs.tip.GetBestBlock(ctx)
	if err != nil {
		return nil, err
	}

	logger.Infof("[ChainState] opened chain state at best block %s", best)

	return cs, nil
}

func (cs *ChainState) Mempool() *mempool.Mempool {
	return cs.mempool
}

// Lock takes the chain lock. Callers reading the tip cache directly must hold it.
func (cs *ChainState) Lock() {
	cs.mu.Lock()
}

func (cs *ChainState) Unlock() {
	cs.mu.Unlock()
}

// Tip returns the tip cache. The chain lock must be held while it is used.
func (cs *ChainState) Tip() *coins.Cache {
	return cs.tip
}

func (cs *ChainState) Height() uint32 {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.height
}

func (cs *ChainState) BestBlock(ctx context.Context) (chainhash.Hash, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.tip.GetBestBlock(ctx)
}

func (cs *ChainState) feeEstimatesPath() string {
	file := cs.settings.Mempool.FeeEstimatesFile
	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(cs.settings.DataFolder, file)
}

// Start loads the persisted fee estimates and launches the maintenance loop.
func (cs *ChainState) Start(ctx context.Context) error {
	cs.loadFeeEstimates()

	ctx, cs.cancel = context.WithCancel(ctx)
	cs.g, ctx = errgroup.WithContext(ctx)

	interval := cs.settings.Mempool.MaintenanceInterval
	if interval <= 0 {
		interval = time.Minute
	}

	cs.g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := cs.Maintain(ctx); err != nil {
					cs.logger.Errorf("[ChainState] maintenance failed: %v", err)
				}
			}
		}
	})

	cs.logger.Infof("[ChainState] started, maintenance every %s", interval)

	return nil
}

func (cs *ChainState) loadFeeEstimates() {
	path := cs.feeEstimatesPath()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cs.logger.Infof("[ChainState] no fee estimates at %s, starting cold", path)
		} else {
			cs.logger.Warnf("[ChainState] cannot open fee estimates at %s, starting cold: %v", path, err)
		}

		return
	}

	defer f.Close()

	cs.mempool.ReadFeeEstimates(f)
}

// Maintain expires transactions, enforces the mempool cost limit, forgets old evictions, runs the
// sampled consistency check and flushes the tip cache when it is over its budget.
func (cs *ChainState) Maintain(ctx context.Context) error {
	start := time.Now()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	expired := cs.mempool.RemoveExpired(cs.height + 1)
	evicted := cs.mempool.EnsureSizeLimit()
	cs.mempool.PruneRecentlyEvicted()

	if len(expired) > 0 || len(evicted) > 0 {
		cs.logger.Infof("[ChainState] maintenance removed %d expired and evicted %d transactions", len(expired), len(evicted))
	}

	if err := cs.mempool.Check(ctx, cs.tip); err != nil {
		return err
	}

	if err := cs.flushIfNeeded(ctx); err != nil {
		return err
	}

	prometheusChainStateMaintenance.Observe(time.Since(start).Seconds())

	return nil
}

func (cs *ChainState) flushIfNeeded(ctx context.Context) error {
	usage := cs.tip.DynamicMemoryUsage()
	prometheusChainStateCacheUsage.Set(float64(usage))

	if limit := cs.settings.Coins.CacheMaxSize; limit > 0 && usage > int(limit) {
		cs.logger.Infof("[ChainState] tip cache holds %d bytes, over %d, flushing", usage, limit)
		return cs.flush(ctx)
	}

	return nil
}

func (cs *ChainState) flush(ctx context.Context) error {
	if _, err := cs.tip.Flush(ctx); err != nil {
		return err
	}

	prometheusChainStateCacheUsage.Set(0)

	return nil
}

// Flush writes the tip cache through to the backing store.
func (cs *ChainState) Flush(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.flush(ctx)
}

// WriteFeeEstimates persists the fee estimator next to the data folder. The file is replaced
// atomically.
func (cs *ChainState) WriteFeeEstimates() error {
	path := cs.feeEstimatesPath()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewStorageError("cannot create folder for %s", path, err)
	}

	tmp := path + ".new"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.NewStorageError("cannot create %s", tmp, err)
	}

	if err = cs.mempool.WriteFeeEstimates(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)

		return err
	}

	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.NewStorageError("cannot close %s", tmp, err)
	}

	if err = os.Rename(tmp, path); err != nil {
		return errors.NewStorageError("cannot replace %s", path, err)
	}

	return nil
}

// Stop ends the maintenance loop, writes the fee estimates, flushes the tip cache and closes the
// store. Failing to write the fee estimates is only logged.
func (cs *ChainState) Stop(ctx context.Context) error {
	if cs.cancel != nil {
		cs.cancel()

		if err := cs.g.Wait(); err != nil {
			cs.logger.Errorf("[ChainState] maintenance loop ended with: %v", err)
		}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.stopped {
		return nil
	}

	cs.stopped = true

	if err := cs.WriteFeeEstimates(); err != nil {
		cs.logger.Warnf("[ChainState] failed to write fee estimates: %v", err)
	}

	if err := cs.flush(ctx); err != nil {
		return err
	}

	cs.logger.Infof("[ChainState] flushed chain state, closing store")

	return cs.store.Close(ctx)
}
