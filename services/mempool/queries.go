package mempool

import (
	"io"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
)

func (mp *Mempool) Exists(txid chainhash.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, ok := mp.entries[txid]

	return ok
}

func (mp *Mempool) Lookup(txid chainhash.Hash) (*model.Tx, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	entry, ok := mp.entries[txid]
	if !ok {
		return nil, false
	}

	return entry.tx, true
}

func (mp *Mempool) Info(txid chainhash.Hash) (TxMempoolInfo, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	entry, ok := mp.entries[txid]
	if !ok {
		return TxMempoolInfo{}, false
	}

	return TxMempoolInfo{Tx: entry.tx, Time: entry.time, FeeRate: entry.FeeRate()}, true
}

// InfoAll returns the summary of every entry in score order.
func (mp *Mempool) InfoAll() []TxMempoolInfo {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	infos := make([]TxMempoolInfo, 0, len(mp.byScore.entries))
	for _, entry := range mp.byScore.entries {
		infos = append(infos, TxMempoolInfo{Tx: entry.tx, Time: entry.time, FeeRate: entry.FeeRate()})
	}

	return infos
}

// QueryHashes returns the txids in score order.
func (mp *Mempool) QueryHashes() []chainhash.Hash {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	ids := make([]chainhash.Hash, 0, len(mp.byScore.entries))
	for _, entry := range mp.byScore.entries {
		ids = append(ids, entry.txid)
	}

	return ids
}

func (mp *Mempool) Size() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.entries)
}

func (mp *Mempool) GetTotalTxSize() uint64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.totalTxSize
}

// DynamicMemoryUsage approximates the heap held by the pool, indices included.
func (mp *Mempool) DynamicMemoryUsage() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	// one pointer per sorted index slot plus map buckets for the reverse indices
	indices := 2*8*len(mp.entries) + 64*len(mp.nextTx) + 64*len(mp.deltas)

	for _, pool := range model.AllShieldedTypes {
		indices += 80 * len(mp.nullifiers[pool])
	}

	return mp.cachedInnerUsage + indices
}

func (mp *Mempool) GetTransactionsUpdated() uint64 {
	return mp.transactionsUpdated.Load()
}

func (mp *Mempool) AddTransactionsUpdated(n uint64) {
	mp.transactionsUpdated.Add(n)
}

// HasNoInputsOf reports whether tx spends no output of a pool transaction.
func (mp *Mempool) HasNoInputsOf(tx *model.Tx) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	for _, in := range tx.Inputs {
		if _, ok := mp.entries[in.PrevOut.Hash]; ok {
			return false
		}
	}

	return true
}

// NullifierExists reports whether a pool transaction reveals nf in pool.
func (mp *Mempool) NullifierExists(pool model.ShieldedType, nf chainhash.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, ok := mp.nullifiers[pool][nf]

	return ok
}

// IsSpent reports whether a pool transaction spends outpoint.
func (mp *Mempool) IsSpent(outpoint model.OutPoint) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, ok := mp.nextTx[outpoint]

	return ok
}

// DrainRecentlyAdded hands out the transactions added since the last drain, with the sequence number
// they bring the pool to.
func (mp *Mempool) DrainRecentlyAdded() ([]*model.Tx, uint64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	txs := make([]*model.Tx, 0, len(mp.recentlyAdded))
	for _, tx := range mp.recentlyAdded {
		txs = append(txs, tx)
	}

	mp.recentlyAdded = map[chainhash.Hash]*model.Tx{}

	return txs, mp.recentlyAddedSequence
}

// SetNotifiedSequence records that listeners have seen everything up to sequence.
func (mp *Mempool) SetNotifiedSequence(sequence uint64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.notifiedSequence = sequence
}

func (mp *Mempool) IsFullyNotified() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.recentlyAddedSequence == mp.notifiedSequence
}

func (mp *Mempool) snapshot(index *sortedIndex) []TxSnapshot {
	snapshots := make([]TxSnapshot, 0, len(index.entries))

	for _, entry := range index.entries {
		s := entry.snapshot(mp.height)
		s.Priority += mp.deltas[entry.txid].priority
		snapshots = append(snapshots, s)
	}

	return snapshots
}

// ScoreOrderedSnapshot returns copies of every entry, best modified fee rate first, with the
// prioritisation deltas applied.
func (mp *Mempool) ScoreOrderedSnapshot() []TxSnapshot {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.snapshot(&mp.byScore)
}

// FeeRateOrderedSnapshot returns copies of every entry ordered by the fee rate actually paid, best
// first.
func (mp *Mempool) FeeRateOrderedSnapshot() []TxSnapshot {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.snapshot(&mp.byFeeRate)
}

func (mp *Mempool) EstimateFee(nBlocks int) model.FeeRate {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.feeEstimator.EstimateFee(nBlocks)
}

func (mp *Mempool) EstimatePriority(nBlocks int) float64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.feeEstimator.EstimatePriority(nBlocks)
}

// RollbackFeeEstimates undoes what the disconnected block blockHash taught the fee estimator.
func (mp *Mempool) RollbackFeeEstimates(blockHash chainhash.Hash) error {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.feeEstimator.Rollback(blockHash)
}

// WriteFeeEstimates writes the fee estimator state to w.
func (mp *Mempool) WriteFeeEstimates(w io.Writer) error {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if err := mp.feeEstimator.Write(w); err != nil {
		return errors.NewStorageError("failed to write fee estimates", err)
	}

	return nil
}

// ReadFeeEstimates replaces the fee estimator with the state read from r. Unreadable input is logged
// and leaves a cold estimator in place.
func (mp *Mempool) ReadFeeEstimates(r io.Reader) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	fe, err := ReadFeeEstimator(r, rngFrom(mp.rng))
	if err != nil {
		mp.logger.Warnf("[Mempool] discarding fee estimates, starting cold: %v", err)
		mp.feeEstimator = mp.newFeeEstimator()

		return
	}

	fe.maxRollback = uint32(mp.settings.Mempool.FeeEstimateMaxRollback)
	fe.minRegisteredBlocks = uint32(mp.settings.Mempool.FeeEstimateMinRegisteredBlocks)

	for uint32(len(fe.dropped)) > fe.maxRollback {
		fe.forget(fe.dropped[0])
		fe.dropped = fe.dropped[1:]
	}

	mp.feeEstimator = fe
}
