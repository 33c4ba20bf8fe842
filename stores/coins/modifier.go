package coins

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
)

// Modifier is the exclusive handle on one cached coin record. Changes made through Coins are folded
// back into the cache accounting by Release, which callers defer right after acquisition.
type Modifier struct {
	cache    *Cache
	txid     chainhash.Hash
	entry    *CacheEntry
	usage    int
	released bool
}

func (m *Modifier) TxID() chainhash.Hash {
	return m.txid
}

// Coins returns the record to mutate in place.
func (m *Modifier) Coins() *model.Coins {
	return m.entry.Coins
}

// Set replaces the record with coins.
func (m *Modifier) Set(coins *model.Coins) {
	m.entry.Coins = coins
}

// Release finalises the modification. Calling it more than once is a no-op.
func (m *Modifier) Release() {
	if m.released {
		return
	}

	m.released = true

	c := m.cache
	c.hasModifier = false

	m.entry.Coins.Cleanup()
	c.cachedCoinsUsage -= m.usage

	if m.entry.Flags&FRESH != 0 && m.entry.Coins.IsPruned() {
		delete(c.coins, m.txid)
		return
	}

	if m.entry.Coins.IsPruned() {
		// keep the tombstone as an explicit deletion for the parent
		m.entry.Coins.Clear()
	}

	c.cachedCoinsUsage += m.entry.Coins.DynamicMemoryUsage()
}
