package settings

import (
	"testing"
	"time"

	"github.com/ordishs/gocore"
	"github.com/shieldnode/shieldnode/util/bytesize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// check settings object is initialised
func TestInitialiseSettings(t *testing.T) {
	tSettings := NewSettings()

	require.NotNil(t, tSettings.Coins.StoreURL)
	assert.NotEmpty(t, tSettings.DataFolder)
	assert.Positive(t, tSettings.Mempool.TxCostLimit)
	assert.Positive(t, tSettings.Mempool.EvictedCapacity)
	assert.Positive(t, tSettings.Mempool.MinTxCost)
	assert.GreaterOrEqual(t, tSettings.Mempool.SanityCheckProbability, 0.0)
	assert.LessOrEqual(t, tSettings.Mempool.SanityCheckProbability, 1.0)
}

func TestEvictionMemory(t *testing.T) {
	s := MempoolSettings{EvictionMemoryMinutes: 2}
	assert.Equal(t, 2*time.Minute, s.EvictionMemory())
}

func TestOverrides(t *testing.T) {
	gocore.Config().Set("mempool_txCostLimit", "12345")
	gocore.Config().Set("mempool_sanityCheckProbability", "0.25")

	defer func() {
		gocore.Config().Unset("mempool_txCostLimit")
		gocore.Config().Unset("mempool_sanityCheckProbability")
	}()

	gocore.Config().Set("coins_cacheMaxSize", "16MB")
	defer gocore.Config().Unset("coins_cacheMaxSize")

	tSettings := NewSettings()
	assert.Equal(t, 16*bytesize.MB, tSettings.Coins.CacheMaxSize)
	assert.Equal(t, int64(12345), tSettings.Mempool.TxCostLimit)
	assert.InDelta(t, 0.25, tSettings.Mempool.SanityCheckProbability, 1e-9)
}

func TestHelpersFallBackOnGarbage(t *testing.T) {
	gocore.Config().Set("test_garbage_int64", "not-a-number")
	defer gocore.Config().Unset("test_garbage_int64")

	assert.Equal(t, int64(7), getInt64("test_garbage_int64", 7))
	assert.Equal(t, 3*bytesize.MB, getByteSize("test_garbage_int64", 3*bytesize.MB))
	assert.InDelta(t, 1.5, getFloat64("test_missing_float", 1.5), 1e-9)
}
