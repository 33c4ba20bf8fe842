package coins

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
)

// Backed forwards every call to another View. Embedding it gives a view layer default pass-through
// behaviour that it can selectively override.
type Backed struct {
	base View
}

func NewBacked(base View) *Backed {
	return &Backed{base: base}
}

// SetBackend retargets the view at another parent.
func (b *Backed) SetBackend(base View) {
	b.base = base
}

func (b *Backed) GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	return b.base.GetCoins(ctx, txid)
}

func (b *Backed) HaveCoins(ctx context.Context, txid chainhash.Hash) (bool, error) {
	return b.base.HaveCoins(ctx, txid)
}

func (b *Backed) GetAnchorAt(ctx context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error) {
	return b.base.GetAnchorAt(ctx, pool, root)
}

func (b *Backed) GetBestAnchor(ctx context.Context, pool model.ShieldedType) (chainhash.Hash, error) {
	return b.base.GetBestAnchor(ctx, pool)
}

func (b *Backed) GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	return b.base.GetNullifier(ctx, pool, nf)
}

func (b *Backed) GetBestBlock(ctx context.Context) (chainhash.Hash, error) {
	return b.base.GetBestBlock(ctx)
}

func (b *Backed) GetHistoryLength(ctx context.Context, epoch model.Epoch) (model.HistoryIndex, error) {
	return b.base.GetHistoryLength(ctx, epoch)
}

func (b *Backed) GetHistoryAt(ctx context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	return b.base.GetHistoryAt(ctx, epoch, index)
}

func (b *Backed) GetHistoryRoot(ctx context.Context, epoch model.Epoch) (chainhash.Hash, error) {
	return b.base.GetHistoryRoot(ctx, epoch)
}

func (b *Backed) BatchWrite(ctx context.Context, batch *Batch) error {
	return b.base.BatchWrite(ctx, batch)
}
