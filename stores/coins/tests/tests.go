// Package tests holds the conformance suite every coins.Store backend runs, plus fixtures shared by
// the cache and mempool tests.
package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const TestEpoch model.Epoch = 0xc2d6d0b4

// Hash returns a deterministic hash for a label.
func Hash(label string) chainhash.Hash {
	return chainhash.HashH([]byte(label))
}

// Tx builds a transparent transaction spending the given outpoints into outputs of the given values.
func Tx(label string, prevOuts []model.OutPoint, values ...model.Amount) *model.Tx {
	tx := &model.Tx{
		Version:           5,
		ConsensusBranchID: uint32(TestEpoch),
	}

	for _, p := range prevOuts {
		tx.Inputs = append(tx.Inputs, &model.TxIn{PrevOut: p, ScriptSig: []byte(label), Sequence: 0xffffffff})
	}

	for _, v := range values {
		tx.Outputs = append(tx.Outputs, &model.TxOut{Value: v, Script: []byte{0x51}})
	}

	return tx
}

// Coinbase builds a coinbase transaction paying value at height.
func Coinbase(height uint32, value model.Amount) *model.Tx {
	tx := Tx(fmt.Sprintf("coinbase-%d", height), []model.OutPoint{model.NullOutPoint()}, value)
	tx.Inputs[0].ScriptSig = []byte(fmt.Sprintf("height %d", height))

	return tx
}

// Block builds an empty block at height.
func Block(height uint32) *model.Block {
	prev := chainhash.HashH([]byte{byte(height), byte(height >> 8)})

	return model.NewBlock(&model.BlockHeader{
		Version:       4,
		HashPrevBlock: &prev,
		Timestamp:     1_700_000_000 + height*75,
		Bits:          0x1f07ffff,
	}, height, uint32(TestEpoch), nil)
}

// Leaf builds the history leaf of the block at height.
func Leaf(height uint32) model.HistoryNode {
	return model.NewHistoryLeaf(Block(height), model.EmptyRoot(model.Sapling), model.EmptyRoot(model.Orchard), 1, 0)
}

// Tree returns a tree of pool holding the given commitments.
func Tree(t *testing.T, pool model.ShieldedType, labels ...string) *model.NoteCommitmentTree {
	tree := model.NewNoteCommitmentTree(pool)

	for _, label := range labels {
		require.NoError(t, tree.Append(Hash(label)))
	}

	return tree
}

// Store runs the whole conformance suite against db, which must start empty.
func Store(t *testing.T, db coins.Store) {
	t.Run("coins", func(t *testing.T) { StoreCoins(t, db) })
	t.Run("anchors", func(t *testing.T) { StoreAnchors(t, db) })
	t.Run("nullifiers", func(t *testing.T) { StoreNullifiers(t, db) })
	t.Run("best block", func(t *testing.T) { StoreBestBlock(t, db) })
	t.Run("history", func(t *testing.T) { StoreHistory(t, db) })
	t.Run("replay", func(t *testing.T) { StoreReplay(t, db) })
	t.Run("health", func(t *testing.T) { StoreHealth(t, db) })
}

func StoreCoins(t *testing.T, db coins.Store) {
	ctx := context.Background()
	tx := Tx("store-coins", nil, 10, 20, 30)
	txid := tx.TxID()

	found, err := db.HaveCoins(ctx, txid)
	require.NoError(t, err)
	assert.False(t, found)

	batch := coins.NewBatch()
	batch.Coins[txid] = &coins.CacheEntry{Coins: model.NewCoinsFromTx(tx, 7), Flags: coins.DIRTY | coins.FRESH}

	clean := Tx("store-coins-clean", nil, 1)
	batch.Coins[clean.TxID()] = &coins.CacheEntry{Coins: model.NewCoinsFromTx(clean, 7)}

	require.NoError(t, db.BatchWrite(ctx, batch))

	got, found, err := db.GetCoins(ctx, txid)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(model.NewCoinsFromTx(tx, 7)))
	assert.Equal(t, uint32(7), got.Height)

	// entries that are not dirty never reach the store
	found, err = db.HaveCoins(ctx, clean.TxID())
	require.NoError(t, err)
	assert.False(t, found)

	spent := model.NewCoinsFromTx(tx, 7)
	require.True(t, spent.Spend(1))

	batch = coins.NewBatch()
	batch.Coins[txid] = &coins.CacheEntry{Coins: spent, Flags: coins.DIRTY}
	require.NoError(t, db.BatchWrite(ctx, batch))

	got, found, err = db.GetCoins(ctx, txid)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, got.IsAvailable(1))
	assert.True(t, got.IsAvailable(2))

	batch = coins.NewBatch()
	batch.Coins[txid] = &coins.CacheEntry{Coins: &model.Coins{}, Flags: coins.DIRTY}
	require.NoError(t, db.BatchWrite(ctx, batch))

	_, found, err = db.GetCoins(ctx, txid)
	require.NoError(t, err)
	assert.False(t, found)
}

func StoreAnchors(t *testing.T, db coins.Store) {
	ctx := context.Background()

	for _, pool := range model.AllShieldedTypes {
		best, err := db.GetBestAnchor(ctx, pool)
		require.NoError(t, err)
		assert.Equal(t, model.EmptyRoot(pool), best)

		empty, found, err := db.GetAnchorAt(ctx, pool, model.EmptyRoot(pool))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uint64(0), empty.Size())

		tree := Tree(t, pool, "anchor-a", "anchor-b")
		root := tree.Root()

		batch := coins.NewBatch()
		batch.Anchors[pool][root] = &coins.AnchorEntry{Entered: true, Tree: tree, Flags: coins.DIRTY | coins.FRESH}
		batch.BestAnchors[pool] = root
		require.NoError(t, db.BatchWrite(ctx, batch))

		got, found, err := db.GetAnchorAt(ctx, pool, root)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, tree.Equal(got))
		assert.Equal(t, pool, got.Pool())

		best, err = db.GetBestAnchor(ctx, pool)
		require.NoError(t, err)
		assert.Equal(t, root, best)

		batch = coins.NewBatch()
		batch.Anchors[pool][root] = &coins.AnchorEntry{Entered: false, Tree: tree, Flags: coins.DIRTY}
		batch.BestAnchors[pool] = model.EmptyRoot(pool)
		require.NoError(t, db.BatchWrite(ctx, batch))

		_, found, err = db.GetAnchorAt(ctx, pool, root)
		require.NoError(t, err)
		assert.False(t, found)

		best, err = db.GetBestAnchor(ctx, pool)
		require.NoError(t, err)
		assert.Equal(t, model.EmptyRoot(pool), best)
	}
}

func StoreNullifiers(t *testing.T, db coins.Store) {
	ctx := context.Background()
	nf := Hash("store-nullifier")

	batch := coins.NewBatch()
	batch.Nullifiers[model.Sapling][nf] = &coins.NullifierEntry{Entered: true, Flags: coins.DIRTY}
	require.NoError(t, db.BatchWrite(ctx, batch))

	spent, err := db.GetNullifier(ctx, model.Sapling, nf)
	require.NoError(t, err)
	assert.True(t, spent)

	// nullifier sets are per pool
	spent, err = db.GetNullifier(ctx, model.Orchard, nf)
	require.NoError(t, err)
	assert.False(t, spent)

	batch = coins.NewBatch()
	batch.Nullifiers[model.Sapling][nf] = &coins.NullifierEntry{Entered: false, Flags: coins.DIRTY}
	require.NoError(t, db.BatchWrite(ctx, batch))

	spent, err = db.GetNullifier(ctx, model.Sapling, nf)
	require.NoError(t, err)
	assert.False(t, spent)
}

func StoreBestBlock(t *testing.T, db coins.Store) {
	ctx := context.Background()
	hash := Hash("best-block")

	batch := coins.NewBatch()
	batch.BestBlock = hash
	require.NoError(t, db.BatchWrite(ctx, batch))

	got, err := db.GetBestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	// a zero best block leaves the stored one alone
	require.NoError(t, db.BatchWrite(ctx, coins.NewBatch()))

	got, err = db.GetBestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func StoreHistory(t *testing.T, db coins.Store) {
	ctx := context.Background()
	cache := coins.NewCache(ulogger.TestLogger{}, db)

	for h := uint32(0); h < 5; h++ {
		require.NoError(t, cache.PushHistoryNode(ctx, TestEpoch, Leaf(h)))
	}

	root, err := cache.GetHistoryRoot(ctx, TestEpoch)
	require.NoError(t, err)

	_, err = cache.Flush(ctx)
	require.NoError(t, err)

	length, err := db.GetHistoryLength(ctx, TestEpoch)
	require.NoError(t, err)
	assert.Equal(t, model.HistoryIndex(8), length)

	stored, err := db.GetHistoryRoot(ctx, TestEpoch)
	require.NoError(t, err)
	assert.Equal(t, root, stored)

	node, found, err := db.GetHistoryAt(ctx, TestEpoch, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, Leaf(0).Equal(node))

	_, found, err = db.GetHistoryAt(ctx, TestEpoch, 8)
	require.NoError(t, err)
	assert.False(t, found)

	// popping the fifth leaf goes back to the four leaf tree, pushing it again restores the root
	require.NoError(t, cache.PopHistoryNode(ctx, TestEpoch))
	_, err = cache.Flush(ctx)
	require.NoError(t, err)

	length, err = db.GetHistoryLength(ctx, TestEpoch)
	require.NoError(t, err)
	assert.Equal(t, model.HistoryIndex(7), length)

	require.NoError(t, cache.PushHistoryNode(ctx, TestEpoch, Leaf(4)))
	_, err = cache.Flush(ctx)
	require.NoError(t, err)

	stored, err = db.GetHistoryRoot(ctx, TestEpoch)
	require.NoError(t, err)
	assert.Equal(t, root, stored)
}

// StoreReplay writes the same batch twice; final-state diffs make the second write a no-op.
func StoreReplay(t *testing.T, db coins.Store) {
	ctx := context.Background()
	tx := Tx("replay", nil, 5, 6)

	batch := coins.NewBatch()
	batch.Coins[tx.TxID()] = &coins.CacheEntry{Coins: model.NewCoinsFromTx(tx, 3), Flags: coins.DIRTY}
	batch.Nullifiers[model.Orchard][Hash("replay-nf")] = &coins.NullifierEntry{Entered: true, Flags: coins.DIRTY}

	require.NoError(t, db.BatchWrite(ctx, batch))
	require.NoError(t, db.BatchWrite(ctx, batch))

	got, found, err := db.GetCoins(ctx, tx.TxID())
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(model.NewCoinsFromTx(tx, 3)))

	spent, err := db.GetNullifier(ctx, model.Orchard, Hash("replay-nf"))
	require.NoError(t, err)
	assert.True(t, spent)
}

func StoreHealth(t *testing.T, db coins.Store) {
	status, _, err := db.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
}
