package mempool

import (
	"context"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
)

// CheckView is what the consistency check needs from the confirmed chain state.
type CheckView interface {
	CoinsReader
	coins.ShieldedView
}

// Check runs the consistency check with the configured sanity check probability.
func (mp *Mempool) Check(ctx context.Context, view CheckView) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	p := mp.settings.Mempool.SanityCheckProbability
	if p <= 0 || mp.rng.Float64() >= p {
		return nil
	}

	return mp.check(ctx, view)
}

// CheckAlways runs the consistency check unconditionally.
func (mp *Mempool) CheckAlways(ctx context.Context, view CheckView) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.check(ctx, view)
}

func sameSet(a, b map[chainhash.Hash]struct{}) bool {
	if len(a) != len(b) {
		return false
	}

	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}

	return true
}

// check verifies that the indices agree with each other, that every input is available either in
// the pool or in view, and that shielded spends are still valid against view.
func (mp *Mempool) check(ctx context.Context, view CheckView) error {
	start := time.Now()
	defer func() {
		prometheusMempoolCheck.Observe(time.Since(start).Seconds())
	}()

	mp.logger.Debugf("[Mempool] checking mempool with %d transactions and %d inputs", len(mp.entries), len(mp.nextTx))

	if len(mp.byFeeRate.entries) != len(mp.entries) || len(mp.byScore.entries) != len(mp.entries) {
		return errors.NewMempoolInconsistentError("index sizes differ: %d entries, %d by fee rate, %d by score",
			len(mp.entries), len(mp.byFeeRate.entries), len(mp.byScore.entries))
	}

	for _, index := range []*sortedIndex{&mp.byFeeRate, &mp.byScore} {
		for i, entry := range index.entries {
			if mp.entries[entry.txid] != entry {
				return errors.NewMempoolInconsistentError("indexed entry %s is not in the pool", entry.txid)
			}

			if i > 0 && index.cmp(index.entries[i-1], entry) >= 0 {
				return errors.NewMempoolInconsistentError("index out of order at %s", entry.txid)
			}
		}
	}

	if mp.limitSet.Len() != len(mp.entries) {
		return errors.NewMempoolInconsistentError("cost tree holds %d transactions, pool holds %d", mp.limitSet.Len(), len(mp.entries))
	}

	var (
		checkTotal uint64
		innerUsage int
		totalCost  int64
	)

	for txid, entry := range mp.entries {
		tx := entry.tx

		checkTotal += uint64(entry.size)
		totalCost += mp.costPolicy.Weight(entry.size, entry.fee).Cost

		links, ok := mp.links[txid]
		if !ok {
			return errors.NewMempoolInconsistentError("transaction %s has no links", txid)
		}

		innerUsage += entry.usage + linkUsage*(len(links.parents)+len(links.children))

		parents := map[chainhash.Hash]struct{}{}

		for i, in := range tx.Inputs {
			if parent, ok := mp.entries[in.PrevOut.Hash]; ok {
				outs := parent.tx.Outputs
				if int(in.PrevOut.Index) >= len(outs) || outs[in.PrevOut.Index].IsNull() {
					return errors.NewMempoolInconsistentError("%s spends missing output %s", txid, in.PrevOut)
				}

				parents[in.PrevOut.Hash] = struct{}{}
			} else if !tx.IsCoinbase() {
				c, found, err := view.GetCoins(ctx, in.PrevOut.Hash)
				if err != nil {
					return err
				}

				if !found || !c.IsAvailable(in.PrevOut.Index) {
					return errors.NewMempoolInconsistentError("%s spends unavailable coin %s", txid, in.PrevOut)
				}
			}

			spender, ok := mp.nextTx[in.PrevOut]
			if !ok || spender.txid != txid || spender.n != uint32(i) {
				return errors.NewMempoolInconsistentError("input %d of %s is not in the spend index", i, txid)
			}
		}

		if !sameSet(parents, links.parents) {
			return errors.NewMempoolInconsistentError("parent links of %s are wrong", txid)
		}

		children := map[chainhash.Hash]struct{}{}

		for i := range tx.Outputs {
			if spender, ok := mp.nextTx[model.NewOutPoint(txid, uint32(i))]; ok {
				if _, ok := mp.entries[spender.txid]; !ok {
					return errors.NewMempoolInconsistentError("spend index points at missing %s", spender.txid)
				}

				children[spender.txid] = struct{}{}
			}
		}

		if !sameSet(children, links.children) {
			return errors.NewMempoolInconsistentError("child links of %s are wrong", txid)
		}

		for _, pool := range model.AllShieldedTypes {
			for _, nf := range tx.Nullifiers(pool) {
				if mp.nullifiers[pool][nf] != txid {
					return errors.NewMempoolInconsistentError("%s nullifier %s of %s is not indexed", pool, nf, txid)
				}
			}
		}

		if tx.HasShieldedSpends() {
			unsatisfied, err := coins.CheckShieldedRequirements(ctx, view, tx)
			if err != nil {
				return err
			}

			if unsatisfied != nil {
				return errors.NewMempoolInconsistentError("%s no longer meets its shielded requirements: %s", txid, unsatisfied)
			}
		}
	}

	for outpoint, spender := range mp.nextTx {
		entry, ok := mp.entries[spender.txid]
		if !ok {
			return errors.NewMempoolInconsistentError("spend of %s by missing %s", outpoint, spender.txid)
		}

		if int(spender.n) >= len(entry.tx.Inputs) || entry.tx.Inputs[spender.n].PrevOut != outpoint {
			return errors.NewMempoolInconsistentError("spend index entry %s does not match %s", outpoint, spender.txid)
		}
	}

	for _, pool := range model.AllShieldedTypes {
		for nf, txid := range mp.nullifiers[pool] {
			if _, ok := mp.entries[txid]; !ok {
				return errors.NewMempoolInconsistentError("%s nullifier %s points at missing %s", pool, nf, txid)
			}
		}
	}

	if checkTotal != mp.totalTxSize {
		return errors.NewMempoolInconsistentError("total size is %d, entries add up to %d", mp.totalTxSize, checkTotal)
	}

	if innerUsage != mp.cachedInnerUsage {
		return errors.NewMempoolInconsistentError("usage is %d, entries add up to %d", mp.cachedInnerUsage, innerUsage)
	}

	if totalCost != mp.limitSet.Total().Cost {
		return errors.NewMempoolInconsistentError("cost tree total is %d, entries add up to %d", mp.limitSet.Total().Cost, totalCost)
	}

	return nil
}
