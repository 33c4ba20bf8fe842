package daemon

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/services/mempool"
)

// AcceptToMempool validates tx against the tip overlaid with the mempool and admits it. It returns
// the transactions evicted to make room. The chain lock is held throughout.
func (cs *ChainState) AcceptToMempool(ctx context.Context, tx *model.Tx) ([]chainhash.Hash, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	evicted, err := cs.acceptToMempool(ctx, tx)
	if err != nil {
		code := errors.ERR_UNKNOWN

		var tErr *errors.Error
		if errors.As(err, &tErr) {
			code = tErr.Code()
		}

		prometheusChainStateRejected.WithLabelValues(code.String()).Inc()
		cs.logger.Debugf("[ChainState] rejected %s: %v", tx.TxID(), err)

		return evicted, err
	}

	prometheusChainStateAccepted.Inc()

	return evicted, nil
}

func (cs *ChainState) acceptToMempool(ctx context.Context, tx *model.Tx) ([]chainhash.Hash, error) {
	if tx.IsCoinbase() {
		return nil, errors.NewTxInvalidError("coinbase transaction %s cannot enter the mempool", tx.TxID())
	}

	if cs.mempool.Exists(tx.TxID()) {
		return nil, errors.NewTxAlreadyExistsError("transaction %s already in mempool", tx.TxID())
	}

	entry, err := cs.newEntry(ctx, tx)
	if err != nil {
		return nil, err
	}

	return cs.mempool.Accept(entry, true)
}

// newEntry prices tx against a throwaway view of the tip and the mempool. The chain lock must be
// held.
func (cs *ChainState) newEntry(ctx context.Context, tx *model.Tx) (*mempool.TxMempoolEntry, error) {
	txid := tx.TxID()
	view := cs.mempoolView()

	ok, err := view.HaveInputs(ctx, tx)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errors.NewCoinsNotFoundError("transaction %s spends missing or spent outputs", txid)
	}

	unsatisfied, err := view.CheckShieldedRequirements(ctx, tx)
	if err != nil {
		return nil, err
	}

	if unsatisfied != nil {
		return nil, errors.NewTxInvalidError("transaction %s", txid, unsatisfied.AsError())
	}

	valueIn, err := view.GetValueIn(ctx, tx)
	if err != nil {
		return nil, err
	}

	valueOut := tx.GetValueOut()
	if valueIn < valueOut {
		return nil, errors.NewTxInvalidError("transaction %s spends %d but only has %d", txid, valueOut, valueIn)
	}

	priority, err := view.GetPriority(ctx, tx, cs.height)
	if err != nil {
		return nil, err
	}

	var (
		spendsCoinbase bool
		inChainValue   model.Amount
	)

	for _, in := range tx.Inputs {
		c, err := view.AccessCoins(ctx, in.PrevOut.Hash)
		if err != nil {
			return nil, err
		}

		if c.Coinbase {
			if cs.height+1 < c.Height+mempool.CoinbaseMaturity {
				return nil, errors.NewTxInvalidError("transaction %s spends immature coinbase %s", txid, in.PrevOut.Hash)
			}

			spendsCoinbase = true
		}

		if c.Height != mempool.MempoolHeight {
			inChainValue += c.Outputs[in.PrevOut.Index].Value
		}
	}

	return mempool.NewTxMempoolEntry(tx, valueIn-valueOut, cs.mempool.Now(), priority, cs.height,
		cs.mempool.HasNoInputsOf(tx), inChainValue, spendsCoinbase, 0, tx.ConsensusBranchID), nil
}
