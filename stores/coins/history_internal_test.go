package coins

import (
	"testing"

	"github.com/shieldnode/shieldnode/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryPeaks(t *testing.T) {
	cases := []struct {
		length model.HistoryIndex
		peaks  []mmrPeak
	}{
		{length: 1, peaks: []mmrPeak{{pos: 0, alt: 0}}},
		{length: 3, peaks: []mmrPeak{{pos: 2, alt: 1}}},
		{length: 4, peaks: []mmrPeak{{pos: 2, alt: 1}, {pos: 3, alt: 0}}},
		{length: 7, peaks: []mmrPeak{{pos: 6, alt: 2}}},
		{length: 8, peaks: []mmrPeak{{pos: 6, alt: 2}, {pos: 7, alt: 0}}},
		{length: 10, peaks: []mmrPeak{{pos: 6, alt: 2}, {pos: 9, alt: 1}}},
		{length: 11, peaks: []mmrPeak{{pos: 6, alt: 2}, {pos: 9, alt: 1}, {pos: 10, alt: 0}}},
	}

	for _, tc := range cases {
		peaks, err := historyPeaks(tc.length)
		require.NoError(t, err)
		assert.Equal(t, tc.peaks, peaks, "length %d", tc.length)
	}

	for _, invalid := range []model.HistoryIndex{2, 5, 6, 9} {
		_, err := historyPeaks(invalid)
		assert.Error(t, err, "length %d", invalid)
	}
}

func TestHistoryCacheTruncate(t *testing.T) {
	hc := NewHistoryCache(4, [32]byte{}, 1)
	hc.Extend(model.HistoryNode{StartHeight: 4})
	hc.Extend(model.HistoryNode{StartHeight: 5})
	hc.Extend(model.HistoryNode{StartHeight: 6})

	assert.Equal(t, []model.HistoryIndex{4, 5, 6}, hc.SortedAppends())

	hc.Truncate(5)
	assert.Equal(t, model.HistoryIndex(5), hc.Length)
	assert.Equal(t, model.HistoryIndex(4), hc.UpdateDepth)
	assert.Len(t, hc.Appends, 1)

	hc.Truncate(2)
	assert.Equal(t, model.HistoryIndex(2), hc.UpdateDepth)
	assert.Empty(t, hc.Appends)
}
