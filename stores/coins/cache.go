package coins

import (
	"context"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/ulogger"
)

// rough per-entry bookkeeping cost of the cache maps, on top of the records themselves
const (
	coinsEntryOverhead     = 96
	anchorEntryOverhead    = 80
	nullifierEntryOverhead = 56
	historyNodeOverhead    = 320
)

// Cache is a write-back overlay over another View. Reads are memoised, mutations stay local until
// Flush hands every change to the parent in one BatchWrite. A Cache is not safe for concurrent use;
// callers serialise access with the chain lock.
type Cache struct {
	Backed

	logger      ulogger.Logger
	hashBlock   chainhash.Hash
	bestAnchors map[model.ShieldedType]chainhash.Hash
	coins       CoinsMap
	anchors     map[model.ShieldedType]AnchorsMap
	nullifiers  map[model.ShieldedType]NullifiersMap
	history     HistoryMap

	hasModifier      bool
	cachedCoinsUsage int
}

func NewCache(logger ulogger.Logger, base View) *Cache {
	initPrometheusMetrics()

	c := &Cache{
		Backed: Backed{base: base},
		logger: logger,
	}

	c.reset()
	c.bestAnchors = map[model.ShieldedType]chainhash.Hash{}

	return c
}

func (c *Cache) reset() {
	c.coins = CoinsMap{}
	c.anchors = map[model.ShieldedType]AnchorsMap{}
	c.nullifiers = map[model.ShieldedType]NullifiersMap{}
	c.history = HistoryMap{}
	c.cachedCoinsUsage = 0

	for _, pool := range model.AllShieldedTypes {
		c.anchors[pool] = AnchorsMap{}
		c.nullifiers[pool] = NullifiersMap{}
	}
}

func (c *Cache) fetchCoins(ctx context.Context, txid chainhash.Hash) (*CacheEntry, error) {
	if entry, ok := c.coins[txid]; ok {
		prometheusCoinsCacheHits.Inc()
		return entry, nil
	}

	prometheusCoinsCacheMisses.Inc()

	coins, found, err := c.base.GetCoins(ctx, txid)
	if err != nil {
		return nil, err
	}

	entry := &CacheEntry{Coins: coins}

	if !found || coins.IsPruned() {
		// the parent has nothing to shadow, remember that so the next miss stays local
		entry.Coins = &model.Coins{}
		entry.Flags = FRESH
	}

	c.coins[txid] = entry
	c.cachedCoinsUsage += entry.Coins.DynamicMemoryUsage()

	return entry, nil
}

// GetCoins returns a copy of the unspent outputs of txid.
func (c *Cache) GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	entry, err := c.fetchCoins(ctx, txid)
	if err != nil {
		return nil, false, err
	}

	if entry.Coins.IsPruned() {
		return nil, false, nil
	}

	return entry.Coins.Clone(), true, nil
}

// AccessCoins returns the cached record of txid, or nil when it has no unspent output. The record
// belongs to the cache and must not be modified; use ModifyCoins for that.
func (c *Cache) AccessCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, error) {
	entry, err := c.fetchCoins(ctx, txid)
	if err != nil {
		return nil, err
	}

	if entry.Coins.IsPruned() {
		return nil, nil
	}

	return entry.Coins, nil
}

func (c *Cache) HaveCoins(ctx context.Context, txid chainhash.Hash) (bool, error) {
	entry, err := c.fetchCoins(ctx, txid)
	if err != nil {
		return false, err
	}

	return !entry.Coins.IsPruned(), nil
}

// HaveCoinsInCache reports whether txid has unspent outputs in this layer, without reading the parent.
func (c *Cache) HaveCoinsInCache(txid chainhash.Hash) bool {
	entry, ok := c.coins[txid]
	return ok && !entry.Coins.IsPruned()
}

// HavePrunedCoins reports whether this layer holds an entry for txid whose outputs are all spent.
func (c *Cache) HavePrunedCoins(txid chainhash.Hash) bool {
	entry, ok := c.coins[txid]
	return ok && entry.Coins.IsPruned()
}

// Uncache drops a clean entry so that the next read goes back to the parent.
func (c *Cache) Uncache(txid chainhash.Hash) {
	entry, ok := c.coins[txid]
	if !ok || entry.Flags&DIRTY != 0 {
		return
	}

	c.cachedCoinsUsage -= entry.Coins.DynamicMemoryUsage()
	delete(c.coins, txid)
}

func (c *Cache) claimModifier() {
	if c.hasModifier {
		panic("coins cache: a modifier is already outstanding")
	}

	c.hasModifier = true
}

// ModifyCoins returns the exclusive handle to the record of txid, reading it from the parent when it
// is not cached. Only one handle may be outstanding per cache; a second acquisition panics.
func (c *Cache) ModifyCoins(ctx context.Context, txid chainhash.Hash) (*Modifier, error) {
	if c.hasModifier {
		panic("coins cache: a modifier is already outstanding")
	}

	usage := 0

	entry, ok := c.coins[txid]
	if ok {
		usage = entry.Coins.DynamicMemoryUsage()
	} else {
		coins, found, err := c.base.GetCoins(ctx, txid)
		if err != nil {
			return nil, err
		}

		entry = &CacheEntry{Coins: coins}

		if !found || coins.IsPruned() {
			entry.Coins = &model.Coins{}
			entry.Flags = FRESH
		}

		c.coins[txid] = entry
	}

	// every caller of ModifyCoins is assumed to change the record
	entry.Flags |= DIRTY

	c.claimModifier()

	return &Modifier{cache: c, txid: txid, entry: entry, usage: usage}, nil
}

// ModifyNewCoins returns a handle on an empty record for txid without reading the parent. The caller
// asserts that no unspent record for txid exists anywhere in the view stack.
func (c *Cache) ModifyNewCoins(txid chainhash.Hash) *Modifier {
	if c.hasModifier {
		panic("coins cache: a modifier is already outstanding")
	}

	usage := 0

	entry, ok := c.coins[txid]
	if ok {
		if !entry.Coins.IsPruned() {
			panic("coins cache: ModifyNewCoins on " + txid.String() + " which has unspent outputs")
		}

		usage = entry.Coins.DynamicMemoryUsage()
	} else {
		entry = &CacheEntry{}
		c.coins[txid] = entry
	}

	entry.Coins = &model.Coins{}
	entry.Flags = FRESH | DIRTY

	c.claimModifier()

	return &Modifier{cache: c, txid: txid, entry: entry, usage: usage}
}

func (c *Cache) GetBestBlock(ctx context.Context) (chainhash.Hash, error) {
	if c.hashBlock == (chainhash.Hash{}) {
		hash, err := c.base.GetBestBlock(ctx)
		if err != nil {
			return chainhash.Hash{}, err
		}

		c.hashBlock = hash
	}

	return c.hashBlock, nil
}

func (c *Cache) SetBestBlock(hash chainhash.Hash) {
	c.hashBlock = hash
}

// GetValueIn sums the transparent inputs of tx plus the value it takes out of the shielded pools.
func (c *Cache) GetValueIn(ctx context.Context, tx *model.Tx) (model.Amount, error) {
	if tx.IsCoinbase() {
		return 0, nil
	}

	var total model.Amount

	for _, in := range tx.Inputs {
		out, err := c.getOutputFor(ctx, in)
		if err != nil {
			return 0, err
		}

		total += out.Value
	}

	return total + tx.GetShieldedValueIn(), nil
}

func (c *Cache) getOutputFor(ctx context.Context, in *model.TxIn) (*model.TxOut, error) {
	coins, err := c.AccessCoins(ctx, in.PrevOut.Hash)
	if err != nil {
		return nil, err
	}

	if coins == nil || !coins.IsAvailable(in.PrevOut.Index) {
		return nil, errors.NewCoinsNotFoundError("output %s is not available", in.PrevOut)
	}

	return coins.Outputs[in.PrevOut.Index], nil
}

// HaveInputs reports whether every transparent input of tx refers to an unspent output.
func (c *Cache) HaveInputs(ctx context.Context, tx *model.Tx) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	for _, in := range tx.Inputs {
		coins, err := c.AccessCoins(ctx, in.PrevOut.Hash)
		if err != nil {
			return false, err
		}

		if coins == nil || !coins.IsAvailable(in.PrevOut.Index) {
			return false, nil
		}
	}

	return true, nil
}

// GetPriority returns the coin-age priority of tx if it were mined at height. Inputs created above
// height, such as outputs of unconfirmed transactions, add nothing.
func (c *Cache) GetPriority(ctx context.Context, tx *model.Tx, height uint32) (float64, error) {
	if tx.IsCoinbase() {
		return 0, nil
	}

	var result float64

	for _, in := range tx.Inputs {
		coins, err := c.AccessCoins(ctx, in.PrevOut.Hash)
		if err != nil {
			return 0, err
		}

		if coins == nil || !coins.IsAvailable(in.PrevOut.Index) {
			continue
		}

		if coins.Height <= height {
			result += float64(coins.Outputs[in.PrevOut.Index].Value) * float64(height-coins.Height)
		}
	}

	return tx.ComputePriority(result, 0), nil
}

// Flush writes every change to the parent in one BatchWrite and empties the cache. On failure the
// local state is kept so the flush can be retried.
func (c *Cache) Flush(ctx context.Context) (bool, error) {
	if c.hasModifier {
		panic("coins cache: flush with an outstanding modifier")
	}

	start := time.Now()

	batch := &Batch{
		Coins:       c.coins,
		BestBlock:   c.hashBlock,
		BestAnchors: make(map[model.ShieldedType]chainhash.Hash, len(c.bestAnchors)),
		Anchors:     c.anchors,
		Nullifiers:  c.nullifiers,
		History:     c.history,
	}

	for pool, root := range c.bestAnchors {
		batch.BestAnchors[pool] = root
	}

	if err := c.base.BatchWrite(ctx, batch); err != nil {
		prometheusCoinsCacheFlushErrors.Inc()
		return false, errors.NewStorageError("failed to flush coins cache", err)
	}

	c.logger.Debugf("[CoinsCache] flushed %d coins, usage %d bytes in %s", len(batch.Coins), c.DynamicMemoryUsage(), time.Since(start))

	c.reset()

	prometheusCoinsCacheFlushes.Inc()
	prometheusCoinsCacheFlushDuration.Observe(time.Since(start).Seconds())
	prometheusCoinsCacheUsage.Set(0)

	return true, nil
}

// CacheSize is the number of cached coin entries.
func (c *Cache) CacheSize() int {
	return len(c.coins)
}

// DynamicMemoryUsage estimates the heap held by this layer.
func (c *Cache) DynamicMemoryUsage() int {
	usage := c.cachedCoinsUsage + len(c.coins)*coinsEntryOverhead

	for _, pool := range model.AllShieldedTypes {
		usage += len(c.anchors[pool])*anchorEntryOverhead + len(c.nullifiers[pool])*nullifierEntryOverhead
	}

	for _, hc := range c.history {
		usage += len(hc.Appends) * historyNodeOverhead
	}

	prometheusCoinsCacheUsage.Set(float64(usage))

	return usage
}

// BatchWrite merges the changes of a child cache into this one.
func (c *Cache) BatchWrite(ctx context.Context, batch *Batch) error {
	if c.hasModifier {
		panic("coins cache: batch write with an outstanding modifier")
	}

	// resolve everything that needs the parent first so that a read failure leaves this layer untouched
	histories := make(map[model.Epoch]*HistoryCache, len(batch.History))

	for epoch, child := range batch.History {
		hc, err := c.selectHistoryCache(ctx, epoch)
		if err != nil {
			return err
		}

		if child.UpdateDepth > hc.Length ||
			min(hc.Length, child.UpdateDepth)+model.HistoryIndex(len(child.Appends)) != child.Length {
			return errors.NewHistoryInvalidError("history of epoch %d does not extend this view (length %d, update depth %d, child length %d)",
				epoch, hc.Length, child.UpdateDepth, child.Length)
		}

		histories[epoch] = hc
	}

	for txid, child := range batch.Coins {
		if child.Flags&DIRTY == 0 {
			continue
		}

		ours, ok := c.coins[txid]
		if !ok {
			// fresh and pruned in the child means nothing ever existed
			if child.Flags&FRESH != 0 && child.Coins.IsPruned() {
				continue
			}

			entry := &CacheEntry{Coins: child.Coins, Flags: DIRTY}

			// only FRESH in the child guarantees our parent lacks it too; otherwise it may have been
			// flushed from here earlier
			if child.Flags&FRESH != 0 {
				entry.Flags |= FRESH
			}

			c.coins[txid] = entry
			c.cachedCoinsUsage += entry.Coins.DynamicMemoryUsage()

			continue
		}

		c.cachedCoinsUsage -= ours.Coins.DynamicMemoryUsage()

		if ours.Flags&FRESH != 0 && child.Coins.IsPruned() {
			delete(c.coins, txid)
			continue
		}

		ours.Coins = child.Coins
		ours.Flags |= DIRTY
		c.cachedCoinsUsage += ours.Coins.DynamicMemoryUsage()
	}

	for pool, anchors := range batch.Anchors {
		c.mergeAnchors(pool, anchors)
	}

	for pool, nullifiers := range batch.Nullifiers {
		c.mergeNullifiers(pool, nullifiers)
	}

	for epoch, child := range batch.History {
		hc := histories[epoch]
		hc.Truncate(child.UpdateDepth)

		for _, idx := range child.SortedAppends() {
			hc.Extend(child.Appends[idx])
		}

		hc.Root = child.Root
	}

	if batch.BestBlock != (chainhash.Hash{}) {
		c.hashBlock = batch.BestBlock
	}

	for pool, root := range batch.BestAnchors {
		if root != (chainhash.Hash{}) {
			c.bestAnchors[pool] = root
		}
	}

	return nil
}

func (c *Cache) mergeAnchors(pool model.ShieldedType, anchors AnchorsMap) {
	ours := c.anchors[pool]

	for root, child := range anchors {
		if child.Flags&DIRTY == 0 {
			continue
		}

		entry, ok := ours[root]
		if !ok {
			if child.Flags&FRESH != 0 && !child.Entered {
				continue
			}

			entry = &AnchorEntry{Entered: child.Entered, Tree: child.Tree, Flags: DIRTY | child.Flags&FRESH}
			ours[root] = entry

			if entry.Tree != nil {
				c.cachedCoinsUsage += entry.Tree.DynamicMemoryUsage()
			}

			continue
		}

		if entry.Flags&FRESH != 0 && !child.Entered {
			if entry.Tree != nil {
				c.cachedCoinsUsage -= entry.Tree.DynamicMemoryUsage()
			}

			delete(ours, root)

			continue
		}

		if entry.Entered != child.Entered {
			entry.Entered = child.Entered
			entry.Flags |= DIRTY
		}

		if entry.Tree == nil && child.Tree != nil {
			entry.Tree = child.Tree
			c.cachedCoinsUsage += entry.Tree.DynamicMemoryUsage()
		}
	}
}

func (c *Cache) mergeNullifiers(pool model.ShieldedType, nullifiers NullifiersMap) {
	ours := c.nullifiers[pool]

	for nf, child := range nullifiers {
		if child.Flags&DIRTY == 0 {
			continue
		}

		entry, ok := ours[nf]
		if !ok {
			ours[nf] = &NullifierEntry{Entered: child.Entered, Flags: DIRTY}
			continue
		}

		if entry.Entered != child.Entered {
			entry.Entered = child.Entered
			entry.Flags |= DIRTY
		}
	}
}
