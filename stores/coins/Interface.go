package coins

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
)

// Cache entry flags.
const (
	// DIRTY marks an entry that differs from the parent view.
	DIRTY uint8 = 1 << iota
	// FRESH marks an entry the parent view does not have at all.
	FRESH
)

// View is the read contract shared by the backing stores, the cache layers and the mempool overlay.
// Absence is reported through the bool result, never as an error. BatchWrite is the only mutation.
type View interface {
	GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error)
	HaveCoins(ctx context.Context, txid chainhash.Hash) (bool, error)
	GetAnchorAt(ctx context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error)
	GetBestAnchor(ctx context.Context, pool model.ShieldedType) (chainhash.Hash, error)
	GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error)
	GetBestBlock(ctx context.Context) (chainhash.Hash, error)
	GetHistoryLength(ctx context.Context, epoch model.Epoch) (model.HistoryIndex, error)
	GetHistoryAt(ctx context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error)
	GetHistoryRoot(ctx context.Context, epoch model.Epoch) (chainhash.Hash, error)
	BatchWrite(ctx context.Context, batch *Batch) error
}

// Store is a persistent View.
type Store interface {
	View
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Close(ctx context.Context) error
}

type CacheEntry struct {
	Coins *model.Coins
	Flags uint8
}

type AnchorEntry struct {
	Entered bool
	Tree    *model.NoteCommitmentTree
	Flags   uint8
}

type NullifierEntry struct {
	Entered bool
	Flags   uint8
}

type (
	CoinsMap      map[chainhash.Hash]*CacheEntry
	AnchorsMap    map[chainhash.Hash]*AnchorEntry
	NullifiersMap map[chainhash.Hash]*NullifierEntry
	HistoryMap    map[model.Epoch]*HistoryCache
)

// Batch is the complete set of changes handed to a parent view in one BatchWrite. Zero best block and
// best anchor hashes leave the parent value unchanged. Coin diffs are final states, so replaying a
// batch is harmless.
type Batch struct {
	Coins       CoinsMap
	BestBlock   chainhash.Hash
	BestAnchors map[model.ShieldedType]chainhash.Hash
	Anchors     map[model.ShieldedType]AnchorsMap
	Nullifiers  map[model.ShieldedType]NullifiersMap
	History     HistoryMap
}

func NewBatch() *Batch {
	b := &Batch{
		Coins:       CoinsMap{},
		BestAnchors: map[model.ShieldedType]chainhash.Hash{},
		Anchors:     map[model.ShieldedType]AnchorsMap{},
		Nullifiers:  map[model.ShieldedType]NullifiersMap{},
		History:     HistoryMap{},
	}

	for _, pool := range model.AllShieldedTypes {
		b.Anchors[pool] = AnchorsMap{}
		b.Nullifiers[pool] = NullifiersMap{}
	}

	return b
}

// IsEmpty reports whether the batch carries no change at all.
func (b *Batch) IsEmpty() bool {
	if len(b.Coins) > 0 || len(b.History) > 0 || b.BestBlock != (chainhash.Hash{}) {
		return false
	}

	for _, pool := range model.AllShieldedTypes {
		if len(b.Anchors[pool]) > 0 || len(b.Nullifiers[pool]) > 0 || b.BestAnchors[pool] != (chainhash.Hash{}) {
			return false
		}
	}

	return true
}
