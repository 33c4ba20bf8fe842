package pebble

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

func TestInMemory(t *testing.T) {
	storeURL, err := url.Parse("pebble://")
	require.NoError(t, err)

	db, err := New(ulogger.TestLogger{}, storeURL, settings.NewSettings())
	require.NoError(t, err)

	defer func() { _ = db.Close(context.Background()) }()

	tests.Store(t, db)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()

	tSettings := settings.NewSettings()
	tSettings.DataFolder = t.TempDir()

	storeURL, err := url.Parse("pebble:///coins")
	require.NoError(t, err)

	db, err := New(ulogger.TestLogger{}, storeURL, tSettings)
	require.NoError(t, err)

	tx := tests.Tx("reopen", nil, 42)

	batch := coins.NewBatch()
	batch.Coins[tx.TxID()] = &coins.CacheEntry{Coins: model.NewCoinsFromTx(tx, 9), Flags: coins.DIRTY}
	batch.BestBlock = tests.Hash("reopen-tip")
	require.NoError(t, db.BatchWrite(ctx, batch))
	require.NoError(t, db.Close(ctx))

	db, err = New(ulogger.TestLogger{}, storeURL, tSettings)
	require.NoError(t, err)

	defer func() { _ = db.Close(ctx) }()

	got, found, err := db.GetCoins(ctx, tx.TxID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.Amount(42), got.Outputs[0].Value)

	best, err := db.GetBestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, tests.Hash("reopen-tip"), best)
}
