package coins_test

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/stores/coins/tests"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epoch = tests.TestEpoch

func TestHistoryPushLengths(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache()

	for i, want := range []model.HistoryIndex{1, 3, 4, 7, 8} {
		require.NoError(t, cache.PushHistoryNode(ctx, epoch, tests.Leaf(uint32(i))))

		length, err := cache.GetHistoryLength(ctx, epoch)
		require.NoError(t, err)
		assert.Equal(t, want, length, "after %d pushes", i+1)
	}

	// node 2 joins the first two leaves, node 6 the two pairs
	n0, _, _ := cache.GetHistoryAt(ctx, epoch, 0)
	n1, _, _ := cache.GetHistoryAt(ctx, epoch, 1)
	n2, found, err := cache.GetHistoryAt(ctx, epoch, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, model.CombineHistoryNodes(epoch, n0, n1).Equal(n2))

	n5, _, _ := cache.GetHistoryAt(ctx, epoch, 5)
	n6, _, _ := cache.GetHistoryAt(ctx, epoch, 6)
	assert.True(t, model.CombineHistoryNodes(epoch, n2, n5).Equal(n6))
	assert.Equal(t, uint64(3), n6.EndHeight)
}

func TestHistoryRoots(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache()

	require.NoError(t, cache.PushHistoryNode(ctx, epoch, tests.Leaf(0)))

	root, err := cache.GetHistoryRoot(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, model.HashHistoryNode(epoch, tests.Leaf(0)), root)

	require.NoError(t, cache.PushHistoryNode(ctx, epoch, tests.Leaf(1)))

	root, err = cache.GetHistoryRoot(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, model.HashHistoryNode(epoch, model.CombineHistoryNodes(epoch, tests.Leaf(0), tests.Leaf(1))), root)

	require.NoError(t, cache.PushHistoryNode(ctx, epoch, tests.Leaf(2)))

	// two peaks are bagged into one node before hashing
	n2, _, _ := cache.GetHistoryAt(ctx, epoch, 2)
	root, err = cache.GetHistoryRoot(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, model.HashHistoryNode(epoch, model.CombineHistoryNodes(epoch, n2, tests.Leaf(2))), root)
}

func TestHistoryPopRestoresRoots(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache()

	roots := make([]chainhash.Hash, 0, 8)
	lengths := make([]model.HistoryIndex, 0, 8)

	for i := uint32(0); i < 8; i++ {
		require.NoError(t, cache.PushHistoryNode(ctx, epoch, tests.Leaf(i)))

		root, err := cache.GetHistoryRoot(ctx, epoch)
		require.NoError(t, err)

		length, err := cache.GetHistoryLength(ctx, epoch)
		require.NoError(t, err)

		roots = append(roots, root)
		lengths = append(lengths, length)
	}

	// popping back through every state restores both length and root
	for i := 6; i >= 0; i-- {
		require.NoError(t, cache.PopHistoryNode(ctx, epoch))

		length, err := cache.GetHistoryLength(ctx, epoch)
		require.NoError(t, err)
		assert.Equal(t, lengths[i], length, "after popping to %d leaves", i+1)

		root, err := cache.GetHistoryRoot(ctx, epoch)
		require.NoError(t, err)
		assert.Equal(t, roots[i], root, "after popping to %d leaves", i+1)
	}

	require.NoError(t, cache.PopHistoryNode(ctx, epoch))

	length, err := cache.GetHistoryLength(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, model.HistoryIndex(0), length)

	// popping an empty tree is allowed
	require.NoError(t, cache.PopHistoryNode(ctx, epoch))
}

func TestHistoryPopFromEightAcrossFlush(t *testing.T) {
	ctx := context.Background()
	cache, db := newCache()

	var fourLeafRoot chainhash.Hash

	for i := uint32(0); i < 5; i++ {
		require.NoError(t, cache.PushHistoryNode(ctx, epoch, tests.Leaf(i)))

		if i == 3 {
			root, err := cache.GetHistoryRoot(ctx, epoch)
			require.NoError(t, err)

			fourLeafRoot = root
		}
	}

	_, err := cache.Flush(ctx)
	require.NoError(t, err)

	tip := coins.NewCache(ulogger.TestLogger{}, db)
	require.NoError(t, tip.PopHistoryNode(ctx, epoch))

	length, err := tip.GetHistoryLength(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, model.HistoryIndex(7), length)

	root, err := tip.GetHistoryRoot(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, fourLeafRoot, root)
}

func TestHistoryNestedMerge(t *testing.T) {
	ctx := context.Background()
	parent, _ := newCache()

	for i := uint32(0); i < 4; i++ {
		require.NoError(t, parent.PushHistoryNode(ctx, epoch, tests.Leaf(i)))
	}

	child := coins.NewCache(ulogger.TestLogger{}, parent)

	// pop two leaves and push a different one, which truncates below the parent's length
	require.NoError(t, child.PopHistoryNode(ctx, epoch))
	require.NoError(t, child.PopHistoryNode(ctx, epoch))
	require.NoError(t, child.PushHistoryNode(ctx, epoch, tests.Leaf(20)))

	want, err := child.GetHistoryRoot(ctx, epoch)
	require.NoError(t, err)

	_, err = child.Flush(ctx)
	require.NoError(t, err)

	length, err := parent.GetHistoryLength(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, model.HistoryIndex(4), length)

	leaf, found, err := parent.GetHistoryAt(ctx, epoch, 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, tests.Leaf(20).Equal(leaf))

	got, err := parent.GetHistoryRoot(ctx, epoch)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHistoryCorruptNodeRejected(t *testing.T) {
	ctx := context.Background()
	cache, db := newCache()

	for i := uint32(0); i < 4; i++ {
		require.NoError(t, cache.PushHistoryNode(ctx, epoch, tests.Leaf(i)))
	}

	_, err := cache.Flush(ctx)
	require.NoError(t, err)

	top, found, err := db.GetHistoryAt(ctx, epoch, 6)
	require.NoError(t, err)
	require.True(t, found)

	// replace node 4 so that node 5 no longer matches its children
	batch := coins.NewBatch()
	hc := coins.NewHistoryCache(4, chainhash.Hash{}, epoch)
	hc.Extend(tests.Leaf(9))
	hc.Extend(model.CombineHistoryNodes(epoch, tests.Leaf(2), tests.Leaf(3)))
	hc.Extend(top)
	batch.History[epoch] = hc
	require.NoError(t, db.BatchWrite(ctx, batch))

	err = coins.NewCache(ulogger.TestLogger{}, db).PopHistoryNode(ctx, epoch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrHistoryInvalid))
}
