package mempool

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
)

// CoinsView overlays the pool on a confirmed view: outputs of pool transactions appear as coins at
// MempoolHeight and nullifiers revealed by pool transactions count as spent. Admission checks a
// candidate against a coins.Cache built on top of it.
type CoinsView struct {
	coins.Backed
	mempool *Mempool
}

var _ coins.View = (*CoinsView)(nil)

func NewCoinsView(base coins.View, mempool *Mempool) *CoinsView {
	return &CoinsView{
		Backed:  *coins.NewBacked(base),
		mempool: mempool,
	}
}

func (v *CoinsView) GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	// a pool transaction is never also confirmed, so its coins shadow nothing
	if tx, ok := v.mempool.Lookup(txid); ok {
		return model.NewCoinsFromTx(tx, MempoolHeight), true, nil
	}

	return v.Backed.GetCoins(ctx, txid)
}

func (v *CoinsView) HaveCoins(ctx context.Context, txid chainhash.Hash) (bool, error) {
	if v.mempool.Exists(txid) {
		return true, nil
	}

	return v.Backed.HaveCoins(ctx, txid)
}

func (v *CoinsView) GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	if v.mempool.NullifierExists(pool, nf) {
		return true, nil
	}

	return v.Backed.GetNullifier(ctx, pool, nf)
}

func (v *CoinsView) BatchWrite(context.Context, *coins.Batch) error {
	return errors.NewProcessingError("the mempool coins view is read only")
}
