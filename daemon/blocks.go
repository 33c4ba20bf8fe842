package daemon

import (
	"context"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/services/mempool"
	"github.com/shieldnode/shieldnode/stores/coins"
)

// SpentOutput is a transparent output consumed by a block, with what is needed to recreate its coin
// record when the block is disconnected.
type SpentOutput struct {
	Out      *model.TxOut
	Height   uint32
	Coinbase bool
	Version  int32
}

// BlockUndo is what DisconnectBlock needs beyond the block itself.
type BlockUndo struct {
	// per non-coinbase transaction, per input
	Spent [][]SpentOutput

	// best anchors before the block
	Anchors map[model.ShieldedType]chainhash.Hash
}

// ConnectBlock applies block on top of the tip: spends its inputs, adds its outputs, reveals its
// nullifiers, appends its note commitments and its history leaf. The block is applied in a child
// cache, so a failure leaves the tip untouched. The mempool is then reconciled and the conflicts it
// dropped are returned with the undo data.
func (cs *ChainState) ConnectBlock(ctx context.Context, block *model.Block) (*BlockUndo, []*model.Tx, error) {
	start := time.Now()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	best, err := cs.tip.GetBestBlock(ctx)
	if err != nil {
		return nil, nil, err
	}

	if prev := block.Header.HashPrevBlock; best != (chainhash.Hash{}) && (prev == nil || *prev != best) {
		return nil, nil, errors.NewBlockInvalidError("block %s does not extend the best block %s", block.Hash(), best)
	}

	view := coins.NewCache(cs.logger, cs.tip)

	undo, err := cs.applyBlock(ctx, view, block)
	if err != nil {
		return nil, nil, err
	}

	if _, err = view.Flush(ctx); err != nil {
		return nil, nil, err
	}

	cs.height = block.Height
	prometheusChainStateHeight.Set(float64(block.Height))

	conflicts := cs.mempool.RemoveForBlock(*block.Hash(), block.Txs, block.Height, true)

	if cs.branchID != 0 && cs.branchID != block.ConsensusBranchID {
		removed := cs.mempool.RemoveWithoutBranchID(block.ConsensusBranchID)
		cs.logger.Infof("[ChainState] consensus branch changed to %08x at height %d, removed %d transactions", block.ConsensusBranchID, block.Height, len(removed))
	}

	cs.branchID = block.ConsensusBranchID

	if err = cs.flushIfNeeded(ctx); err != nil {
		return nil, nil, err
	}

	cs.logger.Debugf("[ChainState] connected block %s in %s", block, time.Since(start))
	prometheusChainStateConnect.Observe(time.Since(start).Seconds())

	return undo, conflicts, nil
}

func (cs *ChainState) applyBlock(ctx context.Context, view *coins.Cache, block *model.Block) (*BlockUndo, error) {
	undo := &BlockUndo{Anchors: map[model.ShieldedType]chainhash.Hash{}}
	trees := map[model.ShieldedType]*model.NoteCommitmentTree{}

	for _, pool := range model.AllShieldedTypes {
		root, err := view.GetBestAnchor(ctx, pool)
		if err != nil {
			return nil, err
		}

		tree, found, err := view.GetAnchorAt(ctx, pool, root)
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, errors.NewAnchorNotFoundError("best %s anchor %s is not known", pool, root)
		}

		undo.Anchors[pool] = root
		trees[pool] = tree
	}

	var saplingTxs, orchardTxs uint64

	for _, tx := range block.Txs {
		txid := tx.TxID()

		if !tx.IsCoinbase() {
			spent, err := spendInputs(ctx, view, tx)
			if err != nil {
				return nil, err
			}

			undo.Spent = append(undo.Spent, spent)
		}

		if tx.HasShieldedSpends() {
			unsatisfied, err := view.CheckShieldedRequirements(ctx, tx)
			if err != nil {
				return nil, err
			}

			if unsatisfied != nil {
				return nil, errors.NewBlockInvalidError("transaction %s in block %s", txid, block.Hash(), unsatisfied.AsError())
			}

			view.SetNullifiers(ctx, tx, true)
		}

		for _, pool := range model.AllShieldedTypes {
			for _, cm := range tx.NoteCommitments(pool) {
				if err := trees[pool].Append(cm); err != nil {
					return nil, errors.NewBlockInvalidError("%s note commitment tree of block %s", pool, block.Hash(), err)
				}
			}
		}

		if len(tx.SaplingSpends) > 0 || len(tx.SaplingOutputs) > 0 {
			saplingTxs++
		}

		if tx.Orchard != nil && len(tx.Orchard.Actions) > 0 {
			orchardTxs++
		}

		m, err := view.ModifyCoins(ctx, txid)
		if err != nil {
			return nil, err
		}

		if !m.Coins().IsPruned() {
			m.Release()
			return nil, errors.NewBlockInvalidError("transaction %s in block %s overwrites unspent outputs", txid, block.Hash())
		}

		m.Set(model.NewCoinsFromTx(tx, block.Height))
		m.Release()
	}

	for _, pool := range model.AllShieldedTypes {
		if err := view.PushAnchor(ctx, trees[pool]); err != nil {
			return nil, err
		}
	}

	leaf := model.NewHistoryLeaf(block, trees[model.Sapling].Root(), trees[model.Orchard].Root(), saplingTxs, orchardTxs)
	if err := view.PushHistoryNode(ctx, block.Epoch(), leaf); err != nil {
		return nil, err
	}

	view.SetBestBlock(*block.Hash())

	return undo, nil
}

func spendInputs(ctx context.Context, view *coins.Cache, tx *model.Tx) ([]SpentOutput, error) {
	spent := make([]SpentOutput, 0, len(tx.Inputs))

	for _, in := range tx.Inputs {
		m, err := view.ModifyCoins(ctx, in.PrevOut.Hash)
		if err != nil {
			return nil, err
		}

		c := m.Coins()

		if !c.IsAvailable(in.PrevOut.Index) {
			m.Release()
			return nil, errors.NewCoinsNotFoundError("transaction %s spends missing or spent output %s", tx.TxID(), in.PrevOut)
		}

		spent = append(spent, SpentOutput{
			Out:      c.Outputs[in.PrevOut.Index].Clone(),
			Height:   c.Height,
			Coinbase: c.Coinbase,
			Version:  c.Version,
		})

		c.Spend(in.PrevOut.Index)
		m.Release()
	}

	return spent, nil
}

// DisconnectBlock reverts block, which must be the best block, using the undo data ConnectBlock
// returned for it. The block's transactions go back to the mempool when their inputs are still
// there, and pool transactions that relied on the disconnected state are dropped.
func (cs *ChainState) DisconnectBlock(ctx context.Context, block *model.Block, undo *BlockUndo) error {
	start := time.Now()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	best, err := cs.tip.GetBestBlock(ctx)
	if err != nil {
		return err
	}

	if best != *block.Hash() {
		return errors.NewBlockInvalidError("block %s is not the best block %s", block.Hash(), best)
	}

	view := coins.NewCache(cs.logger, cs.tip)

	popped, err := cs.revertBlock(ctx, view, block, undo)
	if err != nil {
		return err
	}

	if _, err = view.Flush(ctx); err != nil {
		return err
	}

	if block.Height > 0 {
		cs.height = block.Height - 1
	}

	prometheusChainStateHeight.Set(float64(cs.height))

	cs.resurrect(ctx, block)

	for pool, root := range popped {
		cs.mempool.RemoveWithAnchor(root, pool)
	}

	if _, err = cs.mempool.RemoveForReorg(ctx, cs.tip, block.Height, nil); err != nil {
		return err
	}

	if err = cs.mempool.RollbackFeeEstimates(*block.Hash()); err != nil {
		cs.logger.Warnf("[ChainState] fee estimates not rolled back for %s: %v", block.Hash(), err)
	}

	if err = cs.flushIfNeeded(ctx); err != nil {
		return err
	}

	cs.logger.Debugf("[ChainState] disconnected block %s in %s", block, time.Since(start))
	prometheusChainStateDisconnect.Observe(time.Since(start).Seconds())

	return nil
}

// revertBlock undoes block in view and returns the anchors that stopped being valid.
func (cs *ChainState) revertBlock(ctx context.Context, view *coins.Cache, block *model.Block, undo *BlockUndo) (map[model.ShieldedType]chainhash.Hash, error) {
	if undo == nil {
		return nil, errors.NewInvalidArgumentError("no undo data for block %s", block.Hash())
	}

	spentIdx := len(undo.Spent)

	for i := len(block.Txs) - 1; i >= 0; i-- {
		tx := block.Txs[i]

		m, err := view.ModifyCoins(ctx, tx.TxID())
		if err != nil {
			return nil, err
		}

		m.Coins().Clear()
		m.Release()

		view.SetNullifiers(ctx, tx, false)

		if tx.IsCoinbase() {
			continue
		}

		spentIdx--
		if spentIdx < 0 || len(undo.Spent[spentIdx]) != len(tx.Inputs) {
			return nil, errors.NewInvalidArgumentError("undo data of block %s does not match transaction %s", block.Hash(), tx.TxID())
		}

		for j := len(tx.Inputs) - 1; j >= 0; j-- {
			if err := restoreInput(ctx, view, tx.Inputs[j].PrevOut, undo.Spent[spentIdx][j]); err != nil {
				return nil, err
			}
		}
	}

	popped := map[model.ShieldedType]chainhash.Hash{}

	for _, pool := range model.AllShieldedTypes {
		current, err := view.GetBestAnchor(ctx, pool)
		if err != nil {
			return nil, err
		}

		previous := undo.Anchors[pool]
		if current == previous {
			continue
		}

		if err := view.PopAnchor(ctx, pool, previous); err != nil {
			return nil, err
		}

		popped[pool] = current
	}

	if err := view.PopHistoryNode(ctx, block.Epoch()); err != nil {
		return nil, err
	}

	var prev chainhash.Hash
	if block.Header.HashPrevBlock != nil {
		prev = *block.Header.HashPrevBlock
	}

	view.SetBestBlock(prev)

	return popped, nil
}

func restoreInput(ctx context.Context, view *coins.Cache, outpoint model.OutPoint, spent SpentOutput) error {
	m, err := view.ModifyCoins(ctx, outpoint.Hash)
	if err != nil {
		return err
	}

	defer m.Release()

	c := m.Coins()

	if c.IsPruned() {
		c.Height = spent.Height
		c.Coinbase = spent.Coinbase
		c.Version = spent.Version
	}

	for uint32(len(c.Outputs)) <= outpoint.Index {
		out := &model.TxOut{}
		out.SetNull()
		c.Outputs = append(c.Outputs, out)
	}

	if c.IsAvailable(outpoint.Index) {
		return errors.NewProcessingError("undo would overwrite unspent output %s", outpoint)
	}

	c.Outputs[outpoint.Index] = spent.Out.Clone()

	return nil
}

// resurrect offers the transactions of a disconnected block back to the mempool. Rejections are
// expected, as when a transaction was only valid in the disconnected branch, and only logged.
func (cs *ChainState) resurrect(ctx context.Context, block *model.Block) {
	for _, tx := range block.Txs {
		if tx.IsCoinbase() {
			continue
		}

		entry, err := cs.newEntry(ctx, tx)
		if err == nil {
			err = cs.mempool.AddUnchecked(entry, false)
		}

		if err != nil {
			cs.logger.Debugf("[ChainState] not returning %s to the mempool: %v", tx.TxID(), err)
		}
	}
}

// mempoolView stacks a throwaway cache on the mempool overlay of the tip.
func (cs *ChainState) mempoolView() *coins.Cache {
	return coins.NewCache(cs.logger, mempool.NewCoinsView(cs.tip, cs.mempool))
}
