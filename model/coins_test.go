package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinsSpendTrimsTrailingOutputs(t *testing.T) {
	coins := NewCoinsFromTx(testTx(), 10)
	require.Len(t, coins.Outputs, 2)

	assert.True(t, coins.Spend(1))
	assert.Len(t, coins.Outputs, 1)
	assert.False(t, coins.Spend(1))
	assert.False(t, coins.IsPruned())

	assert.True(t, coins.Spend(0))
	assert.Nil(t, coins.Outputs)
	assert.True(t, coins.IsPruned())
}

func TestCoinsSpendKeepsIndexStable(t *testing.T) {
	coins := NewCoinsFromTx(testTx(), 10)

	assert.True(t, coins.Spend(0))
	assert.Len(t, coins.Outputs, 2)
	assert.False(t, coins.IsAvailable(0))
	assert.True(t, coins.IsAvailable(1))
	assert.Equal(t, Amount(2000), coins.GetValueOut())
}

func TestPrunedCoinsAreEqual(t *testing.T) {
	a := &Coins{Coinbase: true, Height: 5, Version: 1}
	b := &Coins{Height: 900, Version: 4, Outputs: []*TxOut{{Value: -1}}}

	assert.True(t, a.Equal(b))

	c := NewCoinsFromTx(testTx(), 10)
	assert.False(t, a.Equal(c))
	assert.True(t, c.Equal(c.Clone()))
}

func TestCoinsCloneIsDeep(t *testing.T) {
	c := NewCoinsFromTx(testTx(), 10)
	clone := c.Clone()

	clone.Spend(0)
	clone.Outputs[1].Script[0] = 0xff

	assert.True(t, c.IsAvailable(0))
	assert.Equal(t, byte(0x51), c.Outputs[1].Script[0])
}

func TestCoinsBytesRoundTrip(t *testing.T) {
	c := NewCoinsFromTx(testTx(), 77)
	c.Spend(0)

	decoded, err := NewCoinsFromBytes(c.Bytes())
	require.NoError(t, err)

	assert.True(t, c.Equal(decoded))
	assert.True(t, decoded.Outputs[0].IsNull())
	assert.Equal(t, uint32(77), decoded.Height)

	_, err = NewCoinsFromBytes(c.Bytes()[:5])
	require.Error(t, err)
}

func TestCoinsDynamicMemoryUsage(t *testing.T) {
	c := NewCoinsFromTx(testTx(), 1)
	assert.Greater(t, c.DynamicMemoryUsage(), 0)

	c.Clear()
	assert.Zero(t, c.DynamicMemoryUsage())
}
