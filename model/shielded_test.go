package model

import (
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTreeRoot(t *testing.T) {
	for _, pool := range AllShieldedTypes {
		tree := NewNoteCommitmentTree(pool)

		assert.Equal(t, EmptyRoot(pool), tree.Root(), pool.String())
		assert.Zero(t, tree.Size())
	}

	assert.NotEqual(t, EmptyRoot(Sapling), EmptyRoot(Orchard))
}

func TestTreeAppendChangesRoot(t *testing.T) {
	tree := NewNoteCommitmentTree(Sapling)
	roots := map[chainhash.Hash]struct{}{tree.Root(): {}}

	for i := 0; i < 9; i++ {
		require.NoError(t, tree.Append(chainhash.HashH([]byte{byte(i)})))

		root := tree.Root()
		_, seen := roots[root]
		assert.False(t, seen)

		roots[root] = struct{}{}
	}

	assert.Equal(t, uint64(9), tree.Size())
}

func TestTreeRootMatchesManualHashing(t *testing.T) {
	tree := NewNoteCommitmentTree(Sprout)
	a, b, c := chainhash.HashH([]byte("a")), chainhash.HashH([]byte("b")), chainhash.HashH([]byte("c"))

	require.NoError(t, tree.Append(a))
	require.NoError(t, tree.Append(b))
	require.NoError(t, tree.Append(c))

	empty := emptyRoots[Sprout]
	root := combineNodes(Sprout, 1, combineNodes(Sprout, 0, a, b), combineNodes(Sprout, 0, c, empty[0]))

	for d := 2; d < Sprout.TreeDepth(); d++ {
		root = combineNodes(Sprout, d, root, empty[d])
	}

	assert.Equal(t, root, tree.Root())
}

func TestTreeCloneAndBytes(t *testing.T) {
	tree := NewNoteCommitmentTree(Orchard)

	for i := 0; i < 5; i++ {
		require.NoError(t, tree.Append(chainhash.HashH([]byte{byte(i), 1})))
	}

	clone := tree.Clone()
	require.NoError(t, clone.Append(chainhash.HashH([]byte("more"))))
	assert.NotEqual(t, tree.Root(), clone.Root())

	decoded, err := NewNoteCommitmentTreeFromBytes(tree.Bytes())
	require.NoError(t, err)
	assert.True(t, tree.Equal(decoded))
	assert.Equal(t, Orchard, decoded.Pool())

	_, err = NewNoteCommitmentTreeFromBytes([]byte{9})
	require.Error(t, err)
}
