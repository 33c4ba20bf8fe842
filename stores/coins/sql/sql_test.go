package sql

import (
	"context"
	"net/url"
	"testing"

	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/stores/coins/tests"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, rawURL string) *Store {
	storeURL, err := url.Parse(rawURL)
	require.NoError(t, err)

	tSettings := settings.NewSettings()
	tSettings.DataFolder = t.TempDir()

	store, err := New(ulogger.TestLogger{}, storeURL, tSettings)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(context.Background()) })

	return store
}

func TestSqliteMemory(t *testing.T) {
	tests.Store(t, newTestStore(t, "sqlitememory:///coins"))
}

func TestSqliteFile(t *testing.T) {
	tests.Store(t, newTestStore(t, "sqlite:///coins"))
}

func TestHistoryRewriteBelowLength(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "sqlitememory:///coins")

	batch := coins.NewBatch()
	hc := coins.NewHistoryCache(0, tests.Hash("root-1"), tests.TestEpoch)

	for h := uint32(0); h < 3; h++ {
		hc.Extend(tests.Leaf(h))
	}

	batch.History[tests.TestEpoch] = hc
	require.NoError(t, store.BatchWrite(ctx, batch))

	// rewriting from index 1 replaces everything above it
	batch = coins.NewBatch()
	hc = coins.NewHistoryCache(3, tests.Hash("root-1"), tests.TestEpoch)
	hc.Truncate(1)
	hc.Extend(tests.Leaf(7))
	hc.Root = tests.Hash("root-2")
	batch.History[tests.TestEpoch] = hc
	require.NoError(t, store.BatchWrite(ctx, batch))

	length, err := store.GetHistoryLength(ctx, tests.TestEpoch)
	require.NoError(t, err)
	assert.Equal(t, model.HistoryIndex(2), length)

	node, found, err := store.GetHistoryAt(ctx, tests.TestEpoch, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, tests.Leaf(7).Equal(node))

	_, found, err = store.GetHistoryAt(ctx, tests.TestEpoch, 2)
	require.NoError(t, err)
	assert.False(t, found)

	root, err := store.GetHistoryRoot(ctx, tests.TestEpoch)
	require.NoError(t, err)
	assert.Equal(t, tests.Hash("root-2"), root)
}

func TestFailedBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "sqlitememory:///coins")

	tx := tests.Tx("rollback", nil, 1)

	// a duplicate history index violates the primary key after the coins insert already ran
	batch := coins.NewBatch()
	batch.Coins[tx.TxID()] = &coins.CacheEntry{Coins: model.NewCoinsFromTx(tx, 1), Flags: coins.DIRTY}

	hc := coins.NewHistoryCache(0, tests.Hash("r"), tests.TestEpoch)
	hc.Extend(tests.Leaf(0))
	hc.UpdateDepth = 1
	batch.History[tests.TestEpoch] = hc
	require.NoError(t, store.BatchWrite(ctx, batch))

	batch.Coins = coins.CoinsMap{}

	other := tests.Tx("rollback-2", nil, 2)
	batch.Coins[other.TxID()] = &coins.CacheEntry{Coins: model.NewCoinsFromTx(other, 1), Flags: coins.DIRTY}
	require.Error(t, store.BatchWrite(ctx, batch))

	found, err := store.HaveCoins(ctx, other.TxID())
	require.NoError(t, err)
	assert.False(t, found)
}
