package coins

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/ulogger"
)

// ErrorCatcher sits between the tip cache and the backing store. A read failure there means the
// chain state can no longer be trusted, so it is reported through OnError, which by default logs
// fatally. The error is still returned for callers that survive OnError.
type ErrorCatcher struct {
	Backed

	logger  ulogger.Logger
	OnError func(err error)
}

func NewErrorCatcher(logger ulogger.Logger, base View) *ErrorCatcher {
	initPrometheusMetrics()

	e := &ErrorCatcher{
		Backed: Backed{base: base},
		logger: logger,
	}

	e.OnError = func(err error) {
		e.logger.Fatalf("[CoinsErrorCatcher] error reading from database: %v", err)
	}

	return e
}

func (e *ErrorCatcher) catch(err error) error {
	if err != nil {
		prometheusCoinsReadErrors.Inc()
		e.OnError(err)
	}

	return err
}

func (e *ErrorCatcher) GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	coins, found, err := e.base.GetCoins(ctx, txid)
	return coins, found, e.catch(err)
}

func (e *ErrorCatcher) HaveCoins(ctx context.Context, txid chainhash.Hash) (bool, error) {
	found, err := e.base.HaveCoins(ctx, txid)
	return found, e.catch(err)
}

func (e *ErrorCatcher) GetAnchorAt(ctx context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error) {
	tree, found, err := e.base.GetAnchorAt(ctx, pool, root)
	return tree, found, e.catch(err)
}

func (e *ErrorCatcher) GetBestAnchor(ctx context.Context, pool model.ShieldedType) (chainhash.Hash, error) {
	root, err := e.base.GetBestAnchor(ctx, pool)
	return root, e.catch(err)
}

func (e *ErrorCatcher) GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	spent, err := e.base.GetNullifier(ctx, pool, nf)
	return spent, e.catch(err)
}

func (e *ErrorCatcher) GetBestBlock(ctx context.Context) (chainhash.Hash, error) {
	hash, err := e.base.GetBestBlock(ctx)
	return hash, e.catch(err)
}

func (e *ErrorCatcher) GetHistoryLength(ctx context.Context, epoch model.Epoch) (model.HistoryIndex, error) {
	length, err := e.base.GetHistoryLength(ctx, epoch)
	return length, e.catch(err)
}

func (e *ErrorCatcher) GetHistoryAt(ctx context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	node, found, err := e.base.GetHistoryAt(ctx, epoch, index)
	return node, found, e.catch(err)
}

func (e *ErrorCatcher) GetHistoryRoot(ctx context.Context, epoch model.Epoch) (chainhash.Hash, error) {
	root, err := e.base.GetHistoryRoot(ctx, epoch)
	return root, e.catch(err)
}
