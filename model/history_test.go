package model

import (
	"math/big"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlock(height uint32) *Block {
	prev := chainhash.HashH([]byte{byte(height - 1)})

	return NewBlock(&BlockHeader{
		Version:       4,
		HashPrevBlock: &prev,
		Timestamp:     1_700_000_000 + height*75,
		Bits:          0x1f07ffff,
	}, height, 0xc2d6d0b4, nil)
}

func TestHistoryLeaf(t *testing.T) {
	block := testBlock(10)
	leaf := NewHistoryLeaf(block, EmptyRoot(Sapling), EmptyRoot(Orchard), 2, 1)

	assert.Equal(t, *block.Hash(), leaf.SubtreeCommitment)
	assert.Equal(t, uint64(10), leaf.StartHeight)
	assert.Equal(t, 1, leaf.SubtreeTotalWork.Sign())
}

func TestCombineHistoryNodes(t *testing.T) {
	left := NewHistoryLeaf(testBlock(10), EmptyRoot(Sapling), EmptyRoot(Orchard), 2, 1)
	right := NewHistoryLeaf(testBlock(11), chainhash.HashH([]byte("s")), chainhash.HashH([]byte("o")), 3, 0)

	parent := CombineHistoryNodes(1, left, right)

	assert.Equal(t, uint64(10), parent.StartHeight)
	assert.Equal(t, uint64(11), parent.EndHeight)
	assert.Equal(t, left.StartTime, parent.StartTime)
	assert.Equal(t, right.EndSaplingRoot, parent.EndSaplingRoot)
	assert.Equal(t, uint64(5), parent.SaplingTxCount)
	assert.Equal(t, 0, parent.SubtreeTotalWork.Cmp(new(big.Int).Add(left.SubtreeTotalWork, right.SubtreeTotalWork)))

	assert.NotEqual(t, parent.SubtreeCommitment, CombineHistoryNodes(2, left, right).SubtreeCommitment)
	assert.NotEqual(t, HashHistoryNode(1, parent), HashHistoryNode(2, parent))
}

func TestHistoryNodeBytesRoundTrip(t *testing.T) {
	node := CombineHistoryNodes(7,
		NewHistoryLeaf(testBlock(1), EmptyRoot(Sapling), EmptyRoot(Orchard), 0, 0),
		NewHistoryLeaf(testBlock(2), EmptyRoot(Sapling), EmptyRoot(Orchard), 1, 1))

	decoded, err := NewHistoryNodeFromBytes(node.Bytes())
	require.NoError(t, err)
	assert.True(t, node.Equal(decoded))

	_, err = NewHistoryNodeFromBytes(node.Bytes()[:40])
	require.Error(t, err)
}

func TestBlockMerkleRoot(t *testing.T) {
	block := testBlock(3)
	block.Txs = []*Tx{testTx(), {Version: 1}, {Version: 2}}

	root := block.CalculateMerkleRoot()
	block.Header.HashMerkleRoot = &root
	require.NoError(t, block.CheckMerkleRoot())
	require.NoError(t, block.CheckDuplicateTransactions())

	block.Txs = append(block.Txs, &Tx{Version: 1})
	require.Error(t, block.CheckDuplicateTransactions())
}

func TestBlockHeaderBytes(t *testing.T) {
	header := testBlock(4).Header

	decoded, err := NewBlockHeaderFromBytes(header.Bytes())
	require.NoError(t, err)
	assert.Equal(t, header.Hash(), decoded.Hash())

	_, err = NewBlockHeaderFromBytes(header.Bytes()[:79])
	require.Error(t, err)
}
