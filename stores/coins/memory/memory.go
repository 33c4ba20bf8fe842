// Package memory implements a coins.Store held entirely in process memory. It backs tests and
// short-lived regtest nodes.
package memory

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/ulogger"
)

type anchorKey struct {
	pool model.ShieldedType
	root chainhash.Hash
}

type nullifierKey struct {
	pool model.ShieldedType
	nf   chainhash.Hash
}

type epochHistory struct {
	nodes []model.HistoryNode
	root  chainhash.Hash
}

type Memory struct {
	mu          sync.RWMutex
	logger      ulogger.Logger
	coins       *swiss.Map[chainhash.Hash, *model.Coins]
	anchors     *swiss.Map[anchorKey, *model.NoteCommitmentTree]
	nullifiers  *swiss.Map[nullifierKey, struct{}]
	history     map[model.Epoch]*epochHistory
	bestBlock   chainhash.Hash
	bestAnchors map[model.ShieldedType]chainhash.Hash
}

func New(logger ulogger.Logger) *Memory {
	// swiss maps stay compact when they hold millions of small records
	return &Memory{
		logger:      logger,
		coins:       swiss.NewMap[chainhash.Hash, *model.Coins](1024),
		anchors:     swiss.NewMap[anchorKey, *model.NoteCommitmentTree](64),
		nullifiers:  swiss.NewMap[nullifierKey, struct{}](1024),
		history:     map[model.Epoch]*epochHistory{},
		bestAnchors: map[model.ShieldedType]chainhash.Hash{},
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return 200, "Memory Store", nil
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}

func (m *Memory) GetCoins(_ context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.coins.Get(txid)
	if !ok {
		return nil, false, nil
	}

	return c.Clone(), true, nil
}

func (m *Memory) HaveCoins(_ context.Context, txid chainhash.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.coins.Has(txid), nil
}

func (m *Memory) GetAnchorAt(_ context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error) {
	if root == model.EmptyRoot(pool) {
		return model.NewNoteCommitmentTree(pool), true, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tree, ok := m.anchors.Get(anchorKey{pool: pool, root: root})
	if !ok {
		return nil, false, nil
	}

	return tree.Clone(), true, nil
}

func (m *Memory) GetBestAnchor(_ context.Context, pool model.ShieldedType) (chainhash.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if root, ok := m.bestAnchors[pool]; ok {
		return root, nil
	}

	return model.EmptyRoot(pool), nil
}

func (m *Memory) GetNullifier(_ context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.nullifiers.Has(nullifierKey{pool: pool, nf: nf}), nil
}

func (m *Memory) GetBestBlock(_ context.Context) (chainhash.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.bestBlock, nil
}

func (m *Memory) GetHistoryLength(_ context.Context, epoch model.Epoch) (model.HistoryIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if h, ok := m.history[epoch]; ok {
		return model.HistoryIndex(len(h.nodes)), nil
	}

	return 0, nil
}

func (m *Memory) GetHistoryAt(_ context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.history[epoch]
	if !ok || index >= model.HistoryIndex(len(h.nodes)) {
		return model.HistoryNode{}, false, nil
	}

	return h.nodes[index], true, nil
}

func (m *Memory) GetHistoryRoot(_ context.Context, epoch model.Epoch) (chainhash.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if h, ok := m.history[epoch]; ok {
		return h.root, nil
	}

	return chainhash.Hash{}, nil
}

// BatchWrite applies the batch under the write lock, so readers never see half of it.
func (m *Memory) BatchWrite(_ context.Context, batch *coins.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for txid, entry := range batch.Coins {
		if entry.Flags&coins.DIRTY == 0 {
			continue
		}

		if entry.Coins.IsPruned() {
			m.coins.Delete(txid)
		} else {
			m.coins.Put(txid, entry.Coins.Clone())
		}
	}

	for pool, anchors := range batch.Anchors {
		for root, entry := range anchors {
			if entry.Flags&coins.DIRTY == 0 {
				continue
			}

			key := anchorKey{pool: pool, root: root}

			if entry.Entered {
				m.anchors.Put(key, entry.Tree.Clone())
			} else {
				m.anchors.Delete(key)
			}
		}
	}

	for pool, nullifiers := range batch.Nullifiers {
		for nf, entry := range nullifiers {
			if entry.Flags&coins.DIRTY == 0 {
				continue
			}

			key := nullifierKey{pool: pool, nf: nf}

			if entry.Entered {
				m.nullifiers.Put(key, struct{}{})
			} else {
				m.nullifiers.Delete(key)
			}
		}
	}

	for epoch, hc := range batch.History {
		h, ok := m.history[epoch]
		if !ok {
			h = &epochHistory{}
			m.history[epoch] = h
		}

		if model.HistoryIndex(len(h.nodes)) > hc.UpdateDepth {
			h.nodes = h.nodes[:hc.UpdateDepth]
		}

		for _, idx := range hc.SortedAppends() {
			h.nodes = append(h.nodes, hc.Appends[idx])
		}

		h.root = hc.Root
	}

	if batch.BestBlock != (chainhash.Hash{}) {
		m.bestBlock = batch.BestBlock
	}

	for pool, root := range batch.BestAnchors {
		if root != (chainhash.Hash{}) {
			m.bestAnchors[pool] = root
		}
	}

	m.logger.Debugf("[CoinsMemory] wrote batch of %d coins, store holds %d", len(batch.Coins), m.coins.Count())

	return nil
}
