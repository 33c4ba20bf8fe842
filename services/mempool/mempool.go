// Package mempool holds the pool of valid unconfirmed transactions: three consistent indices over
// the entries, the spend and nullifier reverse indices, prioritisation, expiry, cost-bounded random
// eviction and the fee estimator fed by admissions and connected blocks.
//
// The pool has its own lock. Callers that also touch the chain state take the chain lock first.
package mempool

import (
	"bytes"
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/ulogger"
	"golang.org/x/exp/slices"
)

// heap cost of one parent or child link
const linkUsage = 48

type inPoint struct {
	txid chainhash.Hash
	n    uint32
}

type txLinks struct {
	parents  map[chainhash.Hash]struct{}
	children map[chainhash.Hash]struct{}
}

type deltas struct {
	priority float64
	fee      model.Amount
}

// sortedIndex keeps entries ordered by a strict total order.
type sortedIndex struct {
	entries []*TxMempoolEntry
	cmp     func(a, b *TxMempoolEntry) int
}

func (s *sortedIndex) insert(e *TxMempoolEntry) {
	i, _ := slices.BinarySearchFunc(s.entries, e, s.cmp)
	s.entries = slices.Insert(s.entries, i, e)
}

func (s *sortedIndex) remove(e *TxMempoolEntry) bool {
	i, found := slices.BinarySearchFunc(s.entries, e, s.cmp)
	if !found || s.entries[i] != e {
		return false
	}

	s.entries = slices.Delete(s.entries, i, i+1)

	return true
}

// compareScore orders by modified fee per byte, best first.
func compareScore(a, b *TxMempoolEntry) int {
	f1 := float64(a.ModifiedFee()) * float64(b.size)
	f2 := float64(b.ModifiedFee()) * float64(a.size)

	switch {
	case f1 > f2:
		return -1
	case f1 < f2:
		return 1
	}

	return bytes.Compare(b.txid[:], a.txid[:])
}

// compareFeeRate orders by the fee per byte actually paid, best first, older entries winning ties.
func compareFeeRate(a, b *TxMempoolEntry) int {
	f1 := float64(a.fee) * float64(b.size)
	f2 := float64(b.fee) * float64(a.size)

	switch {
	case f1 > f2:
		return -1
	case f1 < f2:
		return 1
	case a.time.Before(b.time):
		return -1
	case b.time.Before(a.time):
		return 1
	}

	return bytes.Compare(a.txid[:], b.txid[:])
}

type Mempool struct {
	logger   ulogger.Logger
	settings *settings.Settings

	mu sync.RWMutex

	entries   map[chainhash.Hash]*TxMempoolEntry
	byFeeRate sortedIndex
	byScore   sortedIndex

	nextTx     map[model.OutPoint]inPoint
	links      map[chainhash.Hash]*txLinks
	deltas     map[chainhash.Hash]deltas
	nullifiers map[model.ShieldedType]map[chainhash.Hash]chainhash.Hash

	recentlyAdded         map[chainhash.Hash]*model.Tx
	recentlyAddedSequence uint64
	notifiedSequence      uint64

	totalTxSize      uint64
	cachedInnerUsage int
	height           uint32

	transactionsUpdated atomic.Uint64

	costPolicy      CostPolicy
	limitSet        *WeightedTxTree
	recentlyEvicted *RecentlyEvictedList
	feeEstimator    *FeeEstimator

	rng *rand.Rand
	now func() time.Time
}

func New(logger ulogger.Logger, tSettings *settings.Settings, opts ...Option) *Mempool {
	initPrometheusMetrics()

	options := ProcessOptions(opts...)

	mp := &Mempool{
		logger:        logger,
		settings:      tSettings,
		entries:       map[chainhash.Hash]*TxMempoolEntry{},
		byFeeRate:     sortedIndex{cmp: compareFeeRate},
		byScore:       sortedIndex{cmp: compareScore},
		nextTx:        map[model.OutPoint]inPoint{},
		links:         map[chainhash.Hash]*txLinks{},
		deltas:        map[chainhash.Hash]deltas{},
		nullifiers:    map[model.ShieldedType]map[chainhash.Hash]chainhash.Hash{},
		recentlyAdded: map[chainhash.Hash]*model.Tx{},
		costPolicy: CostPolicy{
			MinTxCost:     tSettings.Mempool.MinTxCost,
			LowFeePenalty: tSettings.Mempool.LowFeePenalty,
			MinRelayFee:   model.NewFeeRatePerK(model.Amount(tSettings.Policy.MinRelayTxFee)),
		},
		limitSet:        NewWeightedTxTree(tSettings.Mempool.TxCostLimit),
		recentlyEvicted: NewRecentlyEvictedList(tSettings.Mempool.EvictedCapacity, tSettings.Mempool.EvictionMemory(), options.now),
		rng:             options.rng,
		now:             options.now,
	}

	for _, pool := range model.AllShieldedTypes {
		mp.nullifiers[pool] = map[chainhash.Hash]chainhash.Hash{}
	}

	mp.feeEstimator = mp.newFeeEstimator()

	return mp
}

func (mp *Mempool) newFeeEstimator() *FeeEstimator {
	return NewFeeEstimator(
		uint32(mp.settings.Mempool.FeeEstimateMaxRollback),
		uint32(mp.settings.Mempool.FeeEstimateMinRegisteredBlocks),
		rngFrom(mp.rng),
	)
}

// rngFrom derives an independent random source, so a seeded pool stays reproducible.
func rngFrom(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
}

// Now returns the pool clock, which entry times should be taken from.
func (mp *Mempool) Now() time.Time {
	return mp.now()
}

// AddUnchecked records an entry whose inputs, nullifiers and fees the caller has already validated.
// It only refuses entries that would corrupt the indices: a duplicate txid or an input or nullifier
// already claimed by another pool transaction.
func (mp *Mempool) AddUnchecked(entry *TxMempoolEntry, currentEstimate bool) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.addUnchecked(entry, currentEstimate)
}

// Accept adds entry and enforces the cost limit, reporting admission failures with their reason
// code: already present, recently evicted, expired, conflicting or evicted straight away.
func (mp *Mempool) Accept(entry *TxMempoolEntry, currentEstimate bool) ([]chainhash.Hash, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	txid := entry.txid

	if mp.recentlyEvicted.Contains(txid) {
		return nil, errors.NewTxRecentlyEvictedError("transaction %s was recently evicted", txid)
	}

	if entry.tx.IsExpired(entry.height + 1) {
		return nil, errors.NewTxExpiredError("transaction %s expires at height %d", txid, entry.tx.ExpiryHeight)
	}

	if err := mp.addUnchecked(entry, currentEstimate); err != nil {
		return nil, err
	}

	evicted := mp.ensureSizeLimit()

	if _, ok := mp.entries[txid]; !ok {
		return evicted, errors.NewMempoolFullError("transaction %s was evicted on admission", txid)
	}

	return evicted, nil
}

func (mp *Mempool) addUnchecked(entry *TxMempoolEntry, currentEstimate bool) error {
	txid := entry.txid
	tx := entry.tx

	if _, ok := mp.entries[txid]; ok {
		return errors.NewTxAlreadyExistsError("transaction %s already in mempool", txid)
	}

	for _, in := range tx.Inputs {
		if spender, ok := mp.nextTx[in.PrevOut]; ok {
			return errors.NewTxConflictError("input %s of %s already spent by %s", in.PrevOut, txid, spender.txid)
		}
	}

	for _, pool := range model.AllShieldedTypes {
		for _, nf := range tx.Nullifiers(pool) {
			if other, ok := mp.nullifiers[pool][nf]; ok {
				return errors.NewTxConflictError("%s nullifier %s of %s already revealed by %s", pool, nf, txid, other)
			}
		}
	}

	if d, ok := mp.deltas[txid]; ok {
		entry.feeDelta = d.fee
	}

	mp.entries[txid] = entry
	mp.byFeeRate.insert(entry)
	mp.byScore.insert(entry)
	mp.links[txid] = &txLinks{parents: map[chainhash.Hash]struct{}{}, children: map[chainhash.Hash]struct{}{}}
	mp.cachedInnerUsage += entry.usage

	for i, in := range tx.Inputs {
		mp.nextTx[in.PrevOut] = inPoint{txid: txid, n: uint32(i)}

		if _, ok := mp.entries[in.PrevOut.Hash]; ok {
			mp.link(in.PrevOut.Hash, txid)
		}
	}

	// a transaction re-added after a reorg may already have children in the pool
	for i := range tx.Outputs {
		if spender, ok := mp.nextTx[model.NewOutPoint(txid, uint32(i))]; ok {
			mp.link(txid, spender.txid)
		}
	}

	for _, pool := range model.AllShieldedTypes {
		for _, nf := range tx.Nullifiers(pool) {
			mp.nullifiers[pool][nf] = txid
		}
	}

	mp.totalTxSize += uint64(entry.size)
	mp.limitSet.Add(txid, mp.costPolicy.Weight(entry.size, entry.fee))

	mp.recentlyAdded[txid] = tx
	mp.recentlyAddedSequence++
	mp.transactionsUpdated.Add(1)

	if currentEstimate {
		mp.feeEstimator.ObserveTransaction(entry)
	}

	prometheusMempoolAdded.Inc()
	mp.updateGauges()

	return nil
}

func (mp *Mempool) link(parent, child chainhash.Hash) {
	pl, cl := mp.links[parent], mp.links[child]

	if _, ok := pl.children[child]; !ok {
		pl.children[child] = struct{}{}
		mp.cachedInnerUsage += linkUsage
	}

	if _, ok := cl.parents[parent]; !ok {
		cl.parents[parent] = struct{}{}
		mp.cachedInnerUsage += linkUsage
	}
}

func (mp *Mempool) removeUnchecked(entry *TxMempoolEntry, reason string) {
	txid := entry.txid
	tx := entry.tx

	delete(mp.recentlyAdded, txid)

	for _, in := range tx.Inputs {
		if spender, ok := mp.nextTx[in.PrevOut]; ok && spender.txid == txid {
			delete(mp.nextTx, in.PrevOut)
		}
	}

	for _, pool := range model.AllShieldedTypes {
		for _, nf := range tx.Nullifiers(pool) {
			if mp.nullifiers[pool][nf] == txid {
				delete(mp.nullifiers[pool], nf)
			}
		}
	}

	links := mp.links[txid]

	for parent := range links.parents {
		if pl, ok := mp.links[parent]; ok {
			delete(pl.children, txid)
			mp.cachedInnerUsage -= linkUsage
		}
	}

	for child := range links.children {
		if cl, ok := mp.links[child]; ok {
			delete(cl.parents, txid)
			mp.cachedInnerUsage -= linkUsage
		}
	}

	mp.cachedInnerUsage -= entry.usage + linkUsage*(len(links.parents)+len(links.children))
	mp.totalTxSize -= uint64(entry.size)

	delete(mp.links, txid)
	delete(mp.entries, txid)
	mp.byFeeRate.remove(entry)
	mp.byScore.remove(entry)
	mp.limitSet.Remove(txid)
	mp.feeEstimator.RemoveTransaction(txid)

	mp.transactionsUpdated.Add(1)

	prometheusMempoolRemoved.WithLabelValues(reason).Inc()
}

// calculateDescendants returns roots followed by every in-pool descendant, each once.
func (mp *Mempool) calculateDescendants(roots []chainhash.Hash) []chainhash.Hash {
	seen := make(map[chainhash.Hash]struct{}, len(roots))
	result := make([]chainhash.Hash, 0, len(roots))

	stage := append([]chainhash.Hash(nil), roots...)

	for len(stage) > 0 {
		txid := stage[0]
		stage = stage[1:]

		if _, ok := seen[txid]; ok {
			continue
		}

		seen[txid] = struct{}{}
		result = append(result, txid)

		if links, ok := mp.links[txid]; ok {
			for child := range links.children {
				if _, ok := seen[child]; !ok {
					stage = append(stage, child)
				}
			}
		}
	}

	return result
}

func (mp *Mempool) remove(tx *model.Tx, recursive bool, reason string) []*model.Tx {
	txid := tx.TxID()

	var roots []chainhash.Hash

	if _, ok := mp.entries[txid]; ok {
		roots = append(roots, txid)
	} else if recursive {
		// the transaction itself may have left the pool, as when it was not re-accepted after a reorg,
		// while its children are still here
		for i := range tx.Outputs {
			if spender, ok := mp.nextTx[model.NewOutPoint(txid, uint32(i))]; ok {
				roots = append(roots, spender.txid)
			}
		}
	}

	all := roots
	if recursive {
		all = mp.calculateDescendants(roots)
	}

	removed := make([]*model.Tx, 0, len(all))

	for _, id := range all {
		entry, ok := mp.entries[id]
		if !ok {
			continue
		}

		removed = append(removed, entry.tx)
		mp.removeUnchecked(entry, reason)
	}

	if len(removed) > 0 {
		mp.updateGauges()
	}

	return removed
}

// Remove takes tx out of the pool and, when recursive, every pool transaction depending on it.
func (mp *Mempool) Remove(tx *model.Tx, recursive bool) []*model.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.remove(tx, recursive, reasonManual)
}

func (mp *Mempool) removeConflicts(tx *model.Tx) []*model.Tx {
	txid := tx.TxID()

	var removed []*model.Tx

	for _, in := range tx.Inputs {
		spender, ok := mp.nextTx[in.PrevOut]
		if !ok || spender.txid == txid {
			continue
		}

		if entry, ok := mp.entries[spender.txid]; ok {
			removed = append(removed, mp.remove(entry.tx, true, reasonConflict)...)
		}
	}

	for _, pool := range model.AllShieldedTypes {
		for _, nf := range tx.Nullifiers(pool) {
			other, ok := mp.nullifiers[pool][nf]
			if !ok || other == txid {
				continue
			}

			if entry, ok := mp.entries[other]; ok {
				removed = append(removed, mp.remove(entry.tx, true, reasonConflict)...)
			}
		}
	}

	return removed
}

// RemoveConflicts removes every pool transaction, with its descendants, that spends an input or
// reveals a nullifier that tx also spends.
func (mp *Mempool) RemoveConflicts(tx *model.Tx) []*model.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.removeConflicts(tx)
}

// RemoveForBlock reconciles the pool with a connected block: its transactions leave the pool, their
// conflicts are removed recursively and their prioritisation is cleared. When currentEstimate is set
// the block also feeds the fee estimator. The removed conflicts are returned.
func (mp *Mempool) RemoveForBlock(blockHash chainhash.Hash, txs []*model.Tx, height uint32, currentEstimate bool) []*model.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.height = height

	if currentEstimate {
		txids := make([]chainhash.Hash, 0, len(txs))
		for _, tx := range txs {
			txids = append(txids, tx.TxID())
		}

		if err := mp.feeEstimator.RegisterBlock(blockHash, int32(height), txids); err != nil {
			mp.logger.Warnf("[Mempool] fee estimator restarting at height %d: %v", height, err)
			mp.feeEstimator.Restart(int32(height))
		}
	} else {
		mp.feeEstimator.Restart(int32(height))
	}

	var conflicts []*model.Tx

	for _, tx := range txs {
		mp.remove(tx, false, reasonBlock)
		conflicts = append(conflicts, mp.removeConflicts(tx)...)
		delete(mp.deltas, tx.TxID())
	}

	return conflicts
}

// RemoveExpired removes, with their descendants, the transactions that can no longer be mined at
// height and returns the ids of the expired ones.
func (mp *Mempool) RemoveExpired(height uint32) []chainhash.Hash {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var expired []*model.Tx

	for _, entry := range mp.byScore.entries {
		if entry.tx.IsExpired(height) {
			expired = append(expired, entry.tx)
		}
	}

	ids := make([]chainhash.Hash, 0, len(expired))

	for _, tx := range expired {
		mp.remove(tx, true, reasonExpired)
		ids = append(ids, tx.TxID())

		mp.logger.Debugf("[Mempool] removing expired txid: %s", tx.TxID())
	}

	return ids
}

// RemoveWithAnchor removes the transactions spending from a pool anchor that is no longer valid
// because the block creating it was disconnected.
func (mp *Mempool) RemoveWithAnchor(invalidRoot chainhash.Hash, pool model.ShieldedType) []*model.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var toRemove []*model.Tx

	for _, entry := range mp.byScore.entries {
		if usesAnchor(entry.tx, pool, invalidRoot) {
			toRemove = append(toRemove, entry.tx)
		}
	}

	var removed []*model.Tx

	for _, tx := range toRemove {
		removed = append(removed, mp.remove(tx, true, reasonAnchor)...)
	}

	return removed
}

func usesAnchor(tx *model.Tx, pool model.ShieldedType, root chainhash.Hash) bool {
	switch pool {
	case model.Sprout:
		for _, js := range tx.JoinSplits {
			if js.Anchor == root {
				return true
			}
		}
	case model.Sapling:
		for _, spend := range tx.SaplingSpends {
			if spend.Anchor == root {
				return true
			}
		}
	case model.Orchard:
		return tx.Orchard != nil && len(tx.Orchard.Actions) > 0 && tx.Orchard.Anchor == root
	}

	return false
}

// RemoveWithoutBranchID removes the transactions validated under another consensus branch, after the
// tip crossed a network upgrade.
func (mp *Mempool) RemoveWithoutBranchID(branchID uint32) []*model.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var toRemove []*model.Tx

	for _, entry := range mp.byScore.entries {
		if entry.branchID != branchID {
			toRemove = append(toRemove, entry.tx)
		}
	}

	var removed []*model.Tx

	for _, tx := range toRemove {
		removed = append(removed, mp.remove(tx, true, reasonBranchID)...)
	}

	return removed
}

// CoinsReader is the part of a coin view RemoveForReorg and Check read.
type CoinsReader interface {
	GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error)
}

// RemoveForReorg removes transactions that stopped being final and transactions spending a coinbase
// that is immature again at mempoolHeight, or whose confirmed inputs disappeared. isFinal may be nil.
func (mp *Mempool) RemoveForReorg(ctx context.Context, view CoinsReader, mempoolHeight uint32, isFinal func(*model.Tx) bool) ([]*model.Tx, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var toRemove []*model.Tx

	for _, entry := range mp.byScore.entries {
		tx := entry.tx

		if isFinal != nil && !isFinal(tx) {
			toRemove = append(toRemove, tx)
			continue
		}

		if !entry.spendsCoinbase {
			continue
		}

		for _, in := range tx.Inputs {
			if _, ok := mp.entries[in.PrevOut.Hash]; ok {
				continue
			}

			c, found, err := view.GetCoins(ctx, in.PrevOut.Hash)
			if err != nil {
				return nil, err
			}

			if !found || (c.Coinbase && int64(mempoolHeight)-int64(c.Height) < CoinbaseMaturity) {
				toRemove = append(toRemove, tx)
				break
			}
		}
	}

	if mempoolHeight > 0 {
		mp.height = mempoolHeight - 1
	}

	var removed []*model.Tx

	for _, tx := range toRemove {
		removed = append(removed, mp.remove(tx, true, reasonReorg)...)
	}

	return removed, nil
}

// Clear empties the pool. Prioritisation deltas survive.
func (mp *Mempool) Clear() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.entries = map[chainhash.Hash]*TxMempoolEntry{}
	mp.byFeeRate.entries = nil
	mp.byScore.entries = nil
	mp.nextTx = map[model.OutPoint]inPoint{}
	mp.links = map[chainhash.Hash]*txLinks{}
	mp.recentlyAdded = map[chainhash.Hash]*model.Tx{}

	for _, pool := range model.AllShieldedTypes {
		mp.nullifiers[pool] = map[chainhash.Hash]chainhash.Hash{}
	}

	mp.totalTxSize = 0
	mp.cachedInnerUsage = 0
	mp.limitSet = NewWeightedTxTree(mp.limitSet.Capacity())
	mp.transactionsUpdated.Add(1)

	mp.updateGauges()
}

// PrioritiseTransaction adds to the priority and fee deltas of txid. The deltas apply whether or not
// the transaction is in the pool yet.
func (mp *Mempool) PrioritiseTransaction(txid chainhash.Hash, priorityDelta float64, feeDelta model.Amount) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	d := mp.deltas[txid]
	d.priority += priorityDelta
	d.fee += feeDelta
	mp.deltas[txid] = d

	if entry, ok := mp.entries[txid]; ok {
		mp.byScore.remove(entry)
		entry.feeDelta = d.fee
		mp.byScore.insert(entry)
	}

	mp.logger.Infof("[Mempool] PrioritiseTransaction: %s priority += %f, fee += %d", txid, priorityDelta, feeDelta)
}

// ApplyDeltas returns the priority and fee deltas recorded for txid.
func (mp *Mempool) ApplyDeltas(txid chainhash.Hash) (float64, model.Amount) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	d := mp.deltas[txid]

	return d.priority, d.fee
}

func (mp *Mempool) ClearPrioritisation(txid chainhash.Hash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.deltas, txid)

	if entry, ok := mp.entries[txid]; ok && entry.feeDelta != 0 {
		mp.byScore.remove(entry)
		entry.feeDelta = 0
		mp.byScore.insert(entry)
	}
}

// EnsureSizeLimit evicts random transactions, weighted towards large and low-fee ones, until the
// total cost is within the limit. Every removed transaction, descendants included, is remembered as
// recently evicted. The evicted ids are returned.
func (mp *Mempool) EnsureSizeLimit() []chainhash.Hash {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.ensureSizeLimit()
}

func (mp *Mempool) ensureSizeLimit() []chainhash.Hash {
	var evicted []chainhash.Hash

	for {
		txid, ok := mp.limitSet.MaybeDropRandom(mp.rng)
		if !ok {
			break
		}

		entry, ok := mp.entries[txid]
		if !ok {
			mp.logger.Errorf("[Mempool] eviction candidate %s is not in the pool", txid)
			mp.limitSet.Remove(txid)

			continue
		}

		for _, tx := range mp.remove(entry.tx, true, reasonEvicted) {
			id := tx.TxID()
			mp.recentlyEvicted.Add(id)
			evicted = append(evicted, id)
		}
	}

	if len(evicted) > 0 {
		prometheusMempoolEvicted.Add(float64(len(evicted)))
		mp.logger.Infof("[Mempool] evicted %d transactions, cost now %d of %d", len(evicted), mp.limitSet.Total().Cost, mp.limitSet.Capacity())
	}

	return evicted
}

// SetMempoolCostLimit replaces the cost limit and the recently evicted window. Transactions already
// in the pool are carried over; the recently evicted list starts empty.
func (mp *Mempool) SetMempoolCostLimit(totalCostLimit int64, evictionMemory time.Duration) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.logger.Infof("[Mempool] setting mempool cost limit: (limit=%d, time=%s)", totalCostLimit, evictionMemory)

	mp.recentlyEvicted = NewRecentlyEvictedList(mp.settings.Mempool.EvictedCapacity, evictionMemory, mp.now)
	mp.limitSet = NewWeightedTxTree(totalCostLimit)

	for _, entry := range mp.byScore.entries {
		mp.limitSet.Add(entry.txid, mp.costPolicy.Weight(entry.size, entry.fee))
	}
}

func (mp *Mempool) IsRecentlyEvicted(txid chainhash.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.recentlyEvicted.Contains(txid)
}

// EvictedAt returns when txid was evicted, while that is remembered.
func (mp *Mempool) EvictedAt(txid chainhash.Hash) (time.Time, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.recentlyEvicted.EvictedAt(txid)
}

// PruneRecentlyEvicted drops the recently evicted entries older than the window.
func (mp *Mempool) PruneRecentlyEvicted() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.recentlyEvicted.Prune()
}

// TotalCost returns the weighted cost counted against the limit.
func (mp *Mempool) TotalCost() int64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.limitSet.Total().Cost
}

func (mp *Mempool) updateGauges() {
	prometheusMempoolTransactions.Set(float64(len(mp.entries)))
	prometheusMempoolBytes.Set(float64(mp.totalTxSize))
	prometheusMempoolUsage.Set(float64(mp.cachedInnerUsage))
	prometheusMempoolCost.Set(float64(mp.limitSet.Total().Cost))
}
