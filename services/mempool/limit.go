package mempool

import (
	"math/rand/v2"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shieldnode/shieldnode/model"
)

// TxWeight is the contribution of one transaction to the pool budget. Cost counts against the
// limit, EvictionWeight biases the random draw.
type TxWeight struct {
	Cost           int64
	EvictionWeight int64
}

func (w TxWeight) add(other TxWeight) TxWeight {
	return TxWeight{Cost: w.Cost + other.Cost, EvictionWeight: w.EvictionWeight + other.EvictionWeight}
}

func (w TxWeight) sub(other TxWeight) TxWeight {
	return TxWeight{Cost: w.Cost - other.Cost, EvictionWeight: w.EvictionWeight - other.EvictionWeight}
}

// CostPolicy turns a transaction size and fee into its TxWeight.
type CostPolicy struct {
	MinTxCost     int64
	LowFeePenalty int64
	MinRelayFee   model.FeeRate
}

// Weight charges at least MinTxCost per transaction and adds LowFeePenalty to the eviction weight
// of transactions paying less than the minimum relay fee for their size.
func (p CostPolicy) Weight(size int, fee model.Amount) TxWeight {
	cost := max(int64(size), p.MinTxCost)
	weight := cost

	if fee < p.MinRelayFee.GetFee(size) {
		weight += p.LowFeePenalty
	}

	return TxWeight{Cost: cost, EvictionWeight: weight}
}

// WeightedTxTree keeps the transactions of the pool in an implicit binary tree where every node
// stores the total weight of its subtree, so a weighted random pick and removal are both
// logarithmic.
type WeightedTxTree struct {
	capacity int64
	txIDs    []chainhash.Hash
	weights  []TxWeight
	subtree  []TxWeight
	index    map[chainhash.Hash]int
}

func NewWeightedTxTree(capacity int64) *WeightedTxTree {
	return &WeightedTxTree{
		capacity: capacity,
		index:    map[chainhash.Hash]int{},
	}
}

func (t *WeightedTxTree) Capacity() int64 {
	return t.capacity
}

func (t *WeightedTxTree) Len() int {
	return len(t.txIDs)
}

// Total returns the summed weight of every transaction in the tree.
func (t *WeightedTxTree) Total() TxWeight {
	if len(t.subtree) == 0 {
		return TxWeight{}
	}

	return t.subtree[0]
}

func (t *WeightedTxTree) Contains(txid chainhash.Hash) bool {
	_, ok := t.index[txid]
	return ok
}

// propagate applies delta to the subtree totals of idx and all its ancestors.
func (t *WeightedTxTree) propagate(idx int, delta TxWeight, add bool) {
	for {
		if add {
			t.subtree[idx] = t.subtree[idx].add(delta)
		} else {
			t.subtree[idx] = t.subtree[idx].sub(delta)
		}

		if idx == 0 {
			return
		}

		idx = (idx - 1) / 2
	}
}

func (t *WeightedTxTree) Add(txid chainhash.Hash, w TxWeight) {
	if _, ok := t.index[txid]; ok {
		return
	}

	idx := len(t.txIDs)
	t.txIDs = append(t.txIDs, txid)
	t.weights = append(t.weights, TxWeight{})
	t.subtree = append(t.subtree, TxWeight{})
	t.index[txid] = idx

	t.weights[idx] = w
	t.propagate(idx, w, true)
}

// Remove takes txid out of the tree by moving the last node into its slot.
func (t *WeightedTxTree) Remove(txid chainhash.Hash) {
	idx, ok := t.index[txid]
	if !ok {
		return
	}

	last := len(t.txIDs) - 1
	lastID, lastWeight := t.txIDs[last], t.weights[last]

	t.propagate(last, lastWeight, false)

	if idx != last {
		removed := t.weights[idx]
		t.propagate(idx, removed, false)

		t.txIDs[idx] = lastID
		t.weights[idx] = lastWeight
		t.index[lastID] = idx
		t.propagate(idx, lastWeight, true)
	}

	t.txIDs = t.txIDs[:last]
	t.weights = t.weights[:last]
	t.subtree = t.subtree[:last]

	delete(t.index, txid)
}

// pick finds the node owning position r of the cumulative eviction weight.
func (t *WeightedTxTree) pick(r int64) int {
	idx := 0

	for {
		own := t.weights[idx].EvictionWeight
		if r < own {
			return idx
		}

		r -= own

		left := 2*idx + 1
		if left < len(t.subtree) && r < t.subtree[left].EvictionWeight {
			idx = left
			continue
		}

		if left < len(t.subtree) {
			r -= t.subtree[left].EvictionWeight
		}

		right := 2*idx + 2
		if right >= len(t.subtree) {
			// rounding can only land here when r equals the total
			return idx
		}

		idx = right
	}
}

// MaybeDropRandom returns a victim chosen with probability proportional to its eviction weight
// while the total cost is over capacity. The victim is not removed from the tree.
func (t *WeightedTxTree) MaybeDropRandom(rng *rand.Rand) (chainhash.Hash, bool) {
	total := t.Total()
	if total.Cost <= t.capacity || total.EvictionWeight <= 0 {
		return chainhash.Hash{}, false
	}

	return t.txIDs[t.pick(rng.Int64N(total.EvictionWeight))], true
}

// RecentlyEvictedList remembers evicted transactions for a bounded time and count. Entries expire on
// the injected clock; the ttl cache bounds memory on the wall clock.
type RecentlyEvictedList struct {
	cache  *ttlcache.Cache[chainhash.Hash, time.Time]
	window time.Duration
	now    func() time.Time
}

func NewRecentlyEvictedList(capacity int, window time.Duration, now func() time.Time) *RecentlyEvictedList {
	if now == nil {
		now = time.Now
	}

	opts := []ttlcache.Option[chainhash.Hash, time.Time]{
		ttlcache.WithTTL[chainhash.Hash, time.Time](window),
		ttlcache.WithDisableTouchOnHit[chainhash.Hash, time.Time](),
	}

	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[chainhash.Hash, time.Time](uint64(capacity)))
	}

	return &RecentlyEvictedList{
		cache:  ttlcache.New[chainhash.Hash, time.Time](opts...),
		window: window,
		now:    now,
	}
}

func (l *RecentlyEvictedList) Add(txid chainhash.Hash) time.Time {
	at := l.now()
	l.cache.Set(txid, at, ttlcache.DefaultTTL)

	return at
}

// EvictedAt returns when txid was evicted, if that is still within the window.
func (l *RecentlyEvictedList) EvictedAt(txid chainhash.Hash) (time.Time, bool) {
	item := l.cache.Get(txid)
	if item == nil {
		return time.Time{}, false
	}

	at := item.Value()
	if l.now().Sub(at) >= l.window {
		return time.Time{}, false
	}

	return at, true
}

func (l *RecentlyEvictedList) Contains(txid chainhash.Hash) bool {
	_, ok := l.EvictedAt(txid)
	return ok
}

// Prune drops the entries that fell out of the window.
func (l *RecentlyEvictedList) Prune() {
	l.cache.DeleteExpired()

	for _, txid := range l.cache.Keys() {
		if !l.Contains(txid) {
			l.cache.Delete(txid)
		}
	}
}

func (l *RecentlyEvictedList) Len() int {
	return l.cache.Len()
}
