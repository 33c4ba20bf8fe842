package daemon_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/daemon"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/services/mempool"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/stores/coins/memory"
	"github.com/shieldnode/shieldnode/stores/coins/tests"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const otherBranch uint32 = 0x76b809bb

func testSettings(t *testing.T) *settings.Settings {
	return &settings.Settings{
		ClientName: "chainstate-test",
		DataFolder: t.TempDir(),
		Network:    "regtest",
		Coins: settings.CoinsSettings{
			CacheMaxSize: 64 * 1024 * 1024,
		},
		Mempool: settings.MempoolSettings{
			TxCostLimit:                    80_000_000,
			EvictionMemoryMinutes:          60,
			EvictedCapacity:                40_000,
			MinTxCost:                      10_000,
			LowFeePenalty:                  16_000,
			SanityCheckProbability:         1,
			FeeEstimatesFile:               "fee_estimates.dat",
			FeeEstimateMaxRollback:         2,
			FeeEstimateMinRegisteredBlocks: 1,
			MaintenanceInterval:            time.Hour,
		},
		Policy: settings.PolicySettings{MinRelayTxFee: 100},
	}
}

type chain struct {
	t      *testing.T
	ctx    context.Context
	cs     *daemon.ChainState
	store  *memory.Memory
	seeds  []model.OutPoint
	blocks []*model.Block
	undos  []*daemon.BlockUndo
}

// newChain opens a chain state on a memory store holding one confirmed coin per seed value.
func newChain(t *testing.T, tSettings *settings.Settings, seeds ...model.Amount) *chain {
	ctx := context.Background()
	store := memory.New(ulogger.TestLogger{})

	c := &chain{t: t, ctx: ctx, store: store}

	batch := coins.NewBatch()

	for i, value := range seeds {
		label := fmt.Sprintf("seed-%d", i)
		tx := tests.Tx(label, []model.OutPoint{model.NewOutPoint(tests.Hash(label), 0)}, value)

		batch.Coins[tx.TxID()] = &coins.CacheEntry{Coins: model.NewCoinsFromTx(tx, 1), Flags: coins.DIRTY | coins.FRESH}
		c.seeds = append(c.seeds, model.NewOutPoint(tx.TxID(), 0))
	}

	require.NoError(t, store.BatchWrite(ctx, batch))

	cs, err := daemon.New(ctx, ulogger.TestLogger{}, tSettings,
		daemon.WithStore(store),
		daemon.WithMempoolOptions(mempool.WithRand(rand.New(rand.NewPCG(1, 2)))),
	)
	require.NoError(t, err)

	c.cs = cs

	return c
}

// next builds the block following the last connected one, coinbase first.
func (c *chain) next(txs ...*model.Tx) *model.Block {
	height := uint32(len(c.blocks)) + 2

	block := tests.Block(height)

	if len(c.blocks) > 0 {
		prev := *c.blocks[len(c.blocks)-1].Hash()
		block.Header.HashPrevBlock = &prev
	}

	block.Txs = append([]*model.Tx{tests.Coinbase(height, 50)}, txs...)

	return block
}

func (c *chain) connect(block *model.Block) []*model.Tx {
	undo, conflicts, err := c.cs.ConnectBlock(c.ctx, block)
	require.NoError(c.t, err)

	c.blocks = append(c.blocks, block)
	c.undos = append(c.undos, undo)

	return conflicts
}

func (c *chain) mine(txs ...*model.Tx) *model.Block {
	block := c.next(txs...)
	c.connect(block)

	return block
}

func (c *chain) disconnect() *model.Block {
	last := len(c.blocks) - 1
	block := c.blocks[last]

	require.NoError(c.t, c.cs.DisconnectBlock(c.ctx, block, c.undos[last]))

	c.blocks = c.blocks[:last]
	c.undos = c.undos[:last]

	return block
}

func (c *chain) available(outpoint model.OutPoint) bool {
	c.cs.Lock()
	defer c.cs.Unlock()

	record, err := c.cs.Tip().AccessCoins(c.ctx, outpoint.Hash)
	require.NoError(c.t, err)

	return record != nil && record.IsAvailable(outpoint.Index)
}

func (c *chain) historyRoot() chainhash.Hash {
	c.cs.Lock()
	defer c.cs.Unlock()

	root, err := c.cs.Tip().GetHistoryRoot(c.ctx, tests.TestEpoch)
	require.NoError(c.t, err)

	return root
}

func (c *chain) bestAnchor(pool model.ShieldedType) chainhash.Hash {
	c.cs.Lock()
	defer c.cs.Unlock()

	root, err := c.cs.Tip().GetBestAnchor(c.ctx, pool)
	require.NoError(c.t, err)

	return root
}

func (c *chain) accept(tx *model.Tx) {
	_, err := c.cs.AcceptToMempool(c.ctx, tx)
	require.NoError(c.t, err)
}

func spend(label string, prevOut model.OutPoint, values ...model.Amount) *model.Tx {
	return tests.Tx(label, []model.OutPoint{prevOut}, values...)
}

func TestConnectDisconnectRoundTrip(t *testing.T) {
	c := newChain(t, testSettings(t), 5000, 7000)

	first := c.mine()
	rootAfterFirst := c.historyRoot()

	tx := spend("pay", c.seeds[0], 4000)
	second := c.mine(tx)

	best, err := c.cs.BestBlock(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, *second.Hash(), best)
	assert.Equal(t, second.Height, c.cs.Height())

	assert.False(t, c.available(c.seeds[0]))
	assert.True(t, c.available(model.NewOutPoint(tx.TxID(), 0)))
	assert.True(t, c.available(model.NewOutPoint(second.Txs[0].TxID(), 0)))
	assert.NotEqual(t, rootAfterFirst, c.historyRoot())

	c.disconnect()

	best, err = c.cs.BestBlock(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, *first.Hash(), best)
	assert.Equal(t, first.Height, c.cs.Height())

	assert.True(t, c.available(c.seeds[0]))
	assert.True(t, c.available(c.seeds[1]))
	assert.False(t, c.available(model.NewOutPoint(tx.TxID(), 0)))
	assert.False(t, c.available(model.NewOutPoint(second.Txs[0].TxID(), 0)))
	assert.Equal(t, rootAfterFirst, c.historyRoot())

	// the disconnected transaction is back in the pool, the coinbase is not
	assert.True(t, c.cs.Mempool().Exists(tx.TxID()))
	assert.False(t, c.cs.Mempool().Exists(second.Txs[0].TxID()))

	// the same block connects again on top of the restored state
	c.connect(second)
	assert.False(t, c.cs.Mempool().Exists(tx.TxID()))
	assert.False(t, c.available(c.seeds[0]))
}

func TestConnectRejectsBlockNotExtendingTip(t *testing.T) {
	c := newChain(t, testSettings(t))

	first := c.mine()

	orphan := c.next()
	stray := chainhash.HashH([]byte("stray"))
	orphan.Header.HashPrevBlock = &stray

	_, _, err := c.cs.ConnectBlock(c.ctx, orphan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockInvalid))

	best, err := c.cs.BestBlock(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, *first.Hash(), best)

	// only the best block can be disconnected
	c.mine()
	require.Error(t, c.cs.DisconnectBlock(c.ctx, first, c.undos[0]))
}

func TestFailedConnectLeavesTipUntouched(t *testing.T) {
	c := newChain(t, testSettings(t), 5000)

	first := c.mine()
	root := c.historyRoot()

	bad := c.next(spend("a", c.seeds[0], 4000), spend("b", c.seeds[0], 3000))

	_, _, err := c.cs.ConnectBlock(c.ctx, bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCoinsNotFound))

	best, err := c.cs.BestBlock(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, *first.Hash(), best)
	assert.Equal(t, first.Height, c.cs.Height())
	assert.True(t, c.available(c.seeds[0]))
	assert.Equal(t, root, c.historyRoot())

	c.mine(spend("a", c.seeds[0], 4000))
	assert.False(t, c.available(c.seeds[0]))
}

func TestConnectRejectsRevealedNullifier(t *testing.T) {
	c := newChain(t, testSettings(t))

	nf := tests.Hash("nf")

	shielded := func(label string) *model.Tx {
		tx := tests.Tx(label, nil, 900)
		tx.SaplingValueBalance = 1000
		tx.SaplingSpends = []*model.SpendDescription{{Anchor: model.EmptyRoot(model.Sapling), Nullifier: nf}}
		tx.Outputs[0].Script = []byte(label)

		return tx
	}

	c.mine(shielded("first"))

	_, _, err := c.cs.ConnectBlock(c.ctx, c.next(shielded("second")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrShieldedUnsatisfied))

	// disconnecting the block forgets the nullifier
	c.disconnect()
	c.mine(shielded("second"))
}

func TestConnectRemovesConflicts(t *testing.T) {
	c := newChain(t, testSettings(t), 5000, 7000)

	c.mine()

	loser := spend("loser", c.seeds[0], 4000)
	child := spend("child", model.NewOutPoint(loser.TxID(), 0), 3000)
	bystander := spend("bystander", c.seeds[1], 6000)

	c.accept(loser)
	c.accept(child)
	c.accept(bystander)

	winner := spend("winner", c.seeds[0], 4500)
	conflicts := c.connect(c.next(winner))

	ids := make([]chainhash.Hash, 0, len(conflicts))
	for _, tx := range conflicts {
		ids = append(ids, tx.TxID())
	}

	assert.ElementsMatch(t, []chainhash.Hash{loser.TxID(), child.TxID()}, ids)
	assert.True(t, c.cs.Mempool().Exists(bystander.TxID()))
	assert.Equal(t, 1, c.cs.Mempool().Size())

	// a block confirming a pool transaction takes it out without reporting it
	conflicts = c.connect(c.next(bystander))
	assert.Empty(t, conflicts)
	assert.Zero(t, c.cs.Mempool().Size())

	require.NoError(t, c.cs.Maintain(c.ctx))
}

func TestDisconnectDropsTransactionsOnWithdrawnAnchor(t *testing.T) {
	c := newChain(t, testSettings(t), 5000)

	c.mine()

	shield := spend("shield", c.seeds[0], 3000)
	shield.SaplingValueBalance = -1000
	shield.SaplingOutputs = []*model.OutputDescription{{Cmu: tests.Hash("cmu")}}

	c.mine(shield)

	root := c.bestAnchor(model.Sapling)
	require.NotEqual(t, model.EmptyRoot(model.Sapling), root)

	unshield := tests.Tx("unshield", nil, 900)
	unshield.SaplingValueBalance = 1000
	unshield.SaplingSpends = []*model.SpendDescription{{Anchor: root, Nullifier: tests.Hash("nf")}}

	c.accept(unshield)

	c.disconnect()

	assert.Equal(t, model.EmptyRoot(model.Sapling), c.bestAnchor(model.Sapling))
	assert.False(t, c.cs.Mempool().Exists(unshield.TxID()))
	assert.True(t, c.cs.Mempool().Exists(shield.TxID()))

	require.NoError(t, c.cs.Maintain(c.ctx))
}

func TestAcceptToMempool(t *testing.T) {
	c := newChain(t, testSettings(t), 5000, 7000)

	first := c.mine()

	t.Run("coinbase", func(t *testing.T) {
		_, err := c.cs.AcceptToMempool(c.ctx, tests.Coinbase(99, 50))
		assert.True(t, errors.Is(err, errors.ErrTxInvalid))
	})

	t.Run("missing inputs", func(t *testing.T) {
		_, err := c.cs.AcceptToMempool(c.ctx, spend("missing", model.NewOutPoint(tests.Hash("nowhere"), 0), 1))
		assert.True(t, errors.Is(err, errors.ErrCoinsNotFound))
	})

	t.Run("overspend", func(t *testing.T) {
		_, err := c.cs.AcceptToMempool(c.ctx, spend("overspend", c.seeds[0], 5001))
		assert.True(t, errors.Is(err, errors.ErrTxInvalid))
	})

	t.Run("immature coinbase", func(t *testing.T) {
		_, err := c.cs.AcceptToMempool(c.ctx, spend("early", model.NewOutPoint(first.Txs[0].TxID(), 0), 10))
		assert.True(t, errors.Is(err, errors.ErrTxInvalid))
	})

	t.Run("unknown anchor", func(t *testing.T) {
		tx := tests.Tx("unknown-anchor", nil, 900)
		tx.SaplingValueBalance = 1000
		tx.SaplingSpends = []*model.SpendDescription{{Anchor: tests.Hash("nowhere"), Nullifier: tests.Hash("nf")}}

		_, err := c.cs.AcceptToMempool(c.ctx, tx)
		assert.True(t, errors.Is(err, errors.ErrShieldedUnsatisfied))
	})

	parent := spend("parent", c.seeds[0], 4000)
	child := spend("child", model.NewOutPoint(parent.TxID(), 0), 3000)

	t.Run("chain of pool transactions", func(t *testing.T) {
		c.accept(parent)
		c.accept(child)

		info, ok := c.cs.Mempool().Info(child.TxID())
		require.True(t, ok)
		assert.Equal(t, model.NewFeeRate(1000, child.Size()), info.FeeRate)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := c.cs.AcceptToMempool(c.ctx, parent)
		assert.True(t, errors.Is(err, errors.ErrTxAlreadyExists))
	})

	t.Run("double spend of a pool input", func(t *testing.T) {
		_, err := c.cs.AcceptToMempool(c.ctx, spend("double", c.seeds[0], 4500))
		assert.True(t, errors.Is(err, errors.ErrTxConflict))
	})

	t.Run("expired", func(t *testing.T) {
		tx := spend("expired", c.seeds[1], 6000)
		tx.ExpiryHeight = c.cs.Height()

		_, err := c.cs.AcceptToMempool(c.ctx, tx)
		assert.True(t, errors.Is(err, errors.ErrTxExpired))
	})

	require.NoError(t, c.cs.Maintain(c.ctx))
	assert.Equal(t, 2, c.cs.Mempool().Size())
}

func TestMaintainRemovesExpired(t *testing.T) {
	c := newChain(t, testSettings(t), 5000, 7000)

	c.mine()

	expiring := spend("expiring", c.seeds[0], 4000)
	expiring.ExpiryHeight = c.cs.Height() + 2

	lasting := spend("lasting", c.seeds[1], 6000)

	c.accept(expiring)
	c.accept(lasting)

	c.mine()
	require.NoError(t, c.cs.Maintain(c.ctx))
	assert.True(t, c.cs.Mempool().Exists(expiring.TxID()))

	c.mine()
	require.NoError(t, c.cs.Maintain(c.ctx))
	assert.False(t, c.cs.Mempool().Exists(expiring.TxID()))
	assert.True(t, c.cs.Mempool().Exists(lasting.TxID()))
}

func TestBranchChangeDropsOldBranchTransactions(t *testing.T) {
	c := newChain(t, testSettings(t), 5000)

	c.mine()

	tx := spend("old-branch", c.seeds[0], 4000)
	c.accept(tx)

	upgrade := c.next()
	upgrade.ConsensusBranchID = otherBranch
	c.connect(upgrade)

	assert.False(t, c.cs.Mempool().Exists(tx.TxID()))
}

func TestFlushOverBudget(t *testing.T) {
	tSettings := testSettings(t)
	tSettings.Coins.CacheMaxSize = 1

	c := newChain(t, tSettings, 5000)

	c.mine()
	block := c.mine(spend("pay", c.seeds[0], 4000))

	best, err := c.store.GetBestBlock(c.ctx)
	require.NoError(t, err)
	assert.Equal(t, *block.Hash(), best)

	c.cs.Lock()
	assert.Zero(t, c.cs.Tip().CacheSize())
	c.cs.Unlock()

	found, err := c.store.HaveCoins(c.ctx, c.seeds[0].Hash)
	require.NoError(t, err)
	assert.False(t, found)

	// disconnecting reads the spent coin back from the undo data
	c.disconnect()
	assert.True(t, c.available(c.seeds[0]))
}

func TestFeeEstimatesSurviveRestart(t *testing.T) {
	tSettings := testSettings(t)

	c := newChain(t, tSettings, 5000, 7000, 9000)
	require.NoError(t, c.cs.Start(c.ctx))

	c.mine()

	for i, seed := range c.seeds {
		c.accept(spend(fmt.Sprintf("fee-%d", i), seed, 4000-model.Amount(i)*100))
	}

	txs := make([]*model.Tx, 0, len(c.seeds))
	for _, info := range c.cs.Mempool().InfoAll() {
		txs = append(txs, info.Tx)
	}

	c.mine(txs...)
	c.mine()

	require.NoError(t, c.cs.Stop(c.ctx))

	path := filepath.Join(tSettings.DataFolder, tSettings.Mempool.FeeEstimatesFile)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, written)

	// stopping twice is harmless
	require.NoError(t, c.cs.Stop(c.ctx))

	restarted := newChain(t, tSettings)
	require.NoError(t, restarted.cs.Start(restarted.ctx))

	for n := 1; n <= 25; n++ {
		assert.Equal(t, c.cs.Mempool().EstimateFee(n), restarted.cs.Mempool().EstimateFee(n), "fee for %d blocks", n)
		assert.Equal(t, c.cs.Mempool().EstimatePriority(n), restarted.cs.Mempool().EstimatePriority(n), "priority for %d blocks", n)
	}

	require.NoError(t, restarted.cs.Stop(restarted.ctx))

	rewritten, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, written, rewritten)
}

func TestCorruptFeeEstimatesStartCold(t *testing.T) {
	tSettings := testSettings(t)

	path := filepath.Join(tSettings.DataFolder, tSettings.Mempool.FeeEstimatesFile)
	require.NoError(t, os.WriteFile(path, []byte("not fee estimates"), 0o600))

	c := newChain(t, tSettings)
	require.NoError(t, c.cs.Start(c.ctx))

	assert.Equal(t, model.FeeRate{}, c.cs.Mempool().EstimateFee(1))
	assert.Equal(t, float64(-1), c.cs.Mempool().EstimatePriority(1))

	require.NoError(t, c.cs.Stop(c.ctx))
}
