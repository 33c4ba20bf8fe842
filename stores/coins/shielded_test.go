package coins_test

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/stores/coins/memory"
	"github.com/shieldnode/shieldnode/stores/coins/tests"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saplingSpend(label string, anchor chainhash.Hash) *model.Tx {
	tx := tests.Tx(label, nil, 1)
	tx.SaplingSpends = []*model.SpendDescription{
		{Anchor: anchor, Nullifier: tests.Hash(label + "-own")},
		{Anchor: anchor, Nullifier: tests.Hash("shared-nf")},
	}

	return tx
}

func TestDuplicateNullifier(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache()

	first := saplingSpend("first", model.EmptyRoot(model.Sapling))
	second := saplingSpend("second", model.EmptyRoot(model.Sapling))

	unsatisfied, err := cache.CheckShieldedRequirements(ctx, first)
	require.NoError(t, err)
	require.Nil(t, unsatisfied)

	cache.SetNullifiers(ctx, first, true)

	unsatisfied, err = cache.CheckShieldedRequirements(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, unsatisfied)
	assert.Equal(t, model.Sapling, unsatisfied.Pool)
	assert.Equal(t, coins.DuplicateNullifier, unsatisfied.Kind)
	assert.Equal(t, 1, unsatisfied.Index)

	rejection := unsatisfied.AsError()
	assert.True(t, errors.Is(rejection, errors.ErrShieldedUnsatisfied))

	var data *errors.ShieldedReqErrData

	require.True(t, errors.AsData(rejection, &data))
	assert.Equal(t, "sapling", data.Pool)
	assert.Equal(t, "duplicate-nullifier", data.Kind)

	// the same nullifier in another pool is a different note
	orchard := tests.Tx("orchard", nil, 1)
	orchard.Orchard = &model.OrchardBundle{
		Actions: []model.OrchardAction{{Nullifier: tests.Hash("shared-nf"), Cmx: tests.Hash("cmx")}},
		Anchor:  model.EmptyRoot(model.Orchard),
	}

	unsatisfied, err = cache.CheckShieldedRequirements(ctx, orchard)
	require.NoError(t, err)
	assert.Nil(t, unsatisfied)
}

func TestDuplicateNullifierWithinTx(t *testing.T) {
	cache, _ := newCache()

	tx := tests.Tx("self", nil, 1)
	tx.Orchard = &model.OrchardBundle{
		Actions: []model.OrchardAction{
			{Nullifier: tests.Hash("twice"), Cmx: tests.Hash("a")},
			{Nullifier: tests.Hash("twice"), Cmx: tests.Hash("b")},
		},
		Anchor: model.EmptyRoot(model.Orchard),
	}

	unsatisfied, err := cache.CheckShieldedRequirements(context.Background(), tx)
	require.NoError(t, err)
	require.NotNil(t, unsatisfied)
	assert.Equal(t, coins.DuplicateNullifier, unsatisfied.Kind)
	assert.Equal(t, 1, unsatisfied.Index)
}

func TestNullifierMonotonicity(t *testing.T) {
	ctx := context.Background()
	cache, db := newCache()
	tx := saplingSpend("mono", model.EmptyRoot(model.Sapling))

	cache.SetNullifiers(ctx, tx, true)
	_, err := cache.Flush(ctx)
	require.NoError(t, err)

	// reading through a fresh layer never turns a spent nullifier back into an unspent one
	reader := coins.NewCache(ulogger.TestLogger{}, cache)

	spent, err := reader.GetNullifier(ctx, model.Sapling, tests.Hash("shared-nf"))
	require.NoError(t, err)
	assert.True(t, spent)

	_, err = reader.Flush(ctx)
	require.NoError(t, err)

	spent, err = db.GetNullifier(ctx, model.Sapling, tests.Hash("shared-nf"))
	require.NoError(t, err)
	assert.True(t, spent)

	// only disconnecting the block unspends them
	cache.SetNullifiers(ctx, tx, false)
	_, err = cache.Flush(ctx)
	require.NoError(t, err)

	spent, err = db.GetNullifier(ctx, model.Sapling, tests.Hash("shared-nf"))
	require.NoError(t, err)
	assert.False(t, spent)
}

func TestUnknownAnchor(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache()

	tx := saplingSpend("anchor", tests.Hash("nowhere"))

	unsatisfied, err := cache.CheckShieldedRequirements(ctx, tx)
	require.NoError(t, err)
	require.NotNil(t, unsatisfied)
	assert.Equal(t, model.Sapling, unsatisfied.Pool)
	assert.Equal(t, coins.UnknownAnchor, unsatisfied.Kind)
	assert.Equal(t, 0, unsatisfied.Index)

	tree := tests.Tree(t, model.Sapling, "cm-1")
	require.NoError(t, cache.PushAnchor(ctx, tree))

	unsatisfied, err = cache.CheckShieldedRequirements(ctx, saplingSpend("anchor", tree.Root()))
	require.NoError(t, err)
	assert.Nil(t, unsatisfied)
}

func TestSproutIntermediateAnchors(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache()

	first := &model.JSDescription{
		Anchor:      model.EmptyRoot(model.Sprout),
		Nullifiers:  [2]chainhash.Hash{tests.Hash("js-nf-0"), tests.Hash("js-nf-1")},
		Commitments: [2]chainhash.Hash{tests.Hash("js-cm-0"), tests.Hash("js-cm-1")},
	}

	intermediate := tests.Tree(t, model.Sprout, "js-cm-0", "js-cm-1")

	second := &model.JSDescription{
		Anchor:      intermediate.Root(),
		Nullifiers:  [2]chainhash.Hash{tests.Hash("js-nf-2"), tests.Hash("js-nf-3")},
		Commitments: [2]chainhash.Hash{tests.Hash("js-cm-2"), tests.Hash("js-cm-3")},
	}

	tx := tests.Tx("sprout", nil, 1)
	tx.JoinSplits = []*model.JSDescription{first, second}

	unsatisfied, err := cache.CheckShieldedRequirements(ctx, tx)
	require.NoError(t, err)
	assert.Nil(t, unsatisfied)

	// the intermediate root is not a block anchor on its own
	tx.JoinSplits = []*model.JSDescription{second}

	unsatisfied, err = cache.CheckShieldedRequirements(ctx, tx)
	require.NoError(t, err)
	require.NotNil(t, unsatisfied)
	assert.Equal(t, model.Sprout, unsatisfied.Pool)
	assert.Equal(t, coins.UnknownAnchor, unsatisfied.Kind)
}

func TestPushPopAnchor(t *testing.T) {
	ctx := context.Background()
	cache, db := newCache()

	best, err := cache.GetBestAnchor(ctx, model.Orchard)
	require.NoError(t, err)
	assert.Equal(t, model.EmptyRoot(model.Orchard), best)

	one := tests.Tree(t, model.Orchard, "o-1")
	require.NoError(t, cache.PushAnchor(ctx, one))

	// pushing the same tree again changes nothing
	require.NoError(t, cache.PushAnchor(ctx, one.Clone()))

	_, err = cache.Flush(ctx)
	require.NoError(t, err)

	best, err = db.GetBestAnchor(ctx, model.Orchard)
	require.NoError(t, err)
	assert.Equal(t, one.Root(), best)

	two := tests.Tree(t, model.Orchard, "o-1", "o-2")
	require.NoError(t, cache.PushAnchor(ctx, two))

	// popping a FRESH anchor drops it before it reaches the store
	require.NoError(t, cache.PopAnchor(ctx, model.Orchard, one.Root()))

	_, found, err := cache.GetAnchorAt(ctx, model.Orchard, two.Root())
	require.NoError(t, err)
	assert.False(t, found)

	// popping a stored anchor deletes it on flush
	require.NoError(t, cache.PopAnchor(ctx, model.Orchard, model.EmptyRoot(model.Orchard)))

	_, err = cache.Flush(ctx)
	require.NoError(t, err)

	_, found, err = db.GetAnchorAt(ctx, model.Orchard, one.Root())
	require.NoError(t, err)
	assert.False(t, found)

	best, err = db.GetBestAnchor(ctx, model.Orchard)
	require.NoError(t, err)
	assert.Equal(t, model.EmptyRoot(model.Orchard), best)
}

func TestPopUnknownAnchor(t *testing.T) {
	ctx := context.Background()
	db := memory.New(ulogger.TestLogger{})

	batch := coins.NewBatch()
	batch.BestAnchors[model.Sapling] = tests.Hash("lost")
	require.NoError(t, db.BatchWrite(ctx, batch))

	cache := coins.NewCache(ulogger.TestLogger{}, db)

	err := cache.PopAnchor(ctx, model.Sapling, model.EmptyRoot(model.Sapling))
	assert.True(t, errors.Is(err, errors.ErrAnchorNotFound))
}
