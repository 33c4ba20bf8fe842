// Package kv implements coins.Store on top of an ordered key-value engine. The leveldb and pebble
// packages provide the engines.
package kv

import (
	"context"
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/ulogger"
)

// Engine is the minimal surface a key-value database must offer. Get reports a missing key through
// the bool, and NewBatch returns a write batch that is applied atomically by Commit.
type Engine interface {
	Get(key []byte) ([]byte, bool, error)
	NewBatch() Batch
	Close() error
	Name() string
}

type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Commit() error
	Len() int
}

type Store struct {
	logger ulogger.Logger
	engine Engine
}

func New(logger ulogger.Logger, engine Engine) *Store {
	initPrometheusMetrics()

	return &Store{
		logger: logger,
		engine: engine,
	}
}

func (s *Store) get(op string, key []byte) ([]byte, bool, error) {
	prometheusKVReads.WithLabelValues(s.engine.Name(), op).Inc()

	value, found, err := s.engine.Get(key)
	if err != nil {
		prometheusKVErrors.WithLabelValues(s.engine.Name(), op).Inc()
		return nil, false, errors.NewStorageError("[%s] %s: failed to read key %x", s.engine.Name(), op, key, err)
	}

	return value, found, nil
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	if _, _, err := s.engine.Get(bestBlockKey()); err != nil {
		return 503, s.engine.Name() + " store unavailable", err
	}

	return 200, s.engine.Name() + " store", nil
}

func (s *Store) Close(_ context.Context) error {
	return s.engine.Close()
}

func (s *Store) GetCoins(_ context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	value, found, err := s.get("GetCoins", coinsKey(txid))
	if err != nil || !found {
		return nil, false, err
	}

	c, err := model.NewCoinsFromBytes(value)
	if err != nil {
		return nil, false, errors.NewStorageError("[%s] corrupt coins record for %s", s.engine.Name(), txid, err)
	}

	return c, true, nil
}

func (s *Store) HaveCoins(_ context.Context, txid chainhash.Hash) (bool, error) {
	_, found, err := s.get("HaveCoins", coinsKey(txid))
	return found, err
}

func (s *Store) GetAnchorAt(_ context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error) {
	if root == model.EmptyRoot(pool) {
		return model.NewNoteCommitmentTree(pool), true, nil
	}

	value, found, err := s.get("GetAnchorAt", anchorKey(pool, root))
	if err != nil || !found {
		return nil, false, err
	}

	tree, err := model.NewNoteCommitmentTreeFromBytes(value)
	if err != nil {
		return nil, false, errors.NewStorageError("[%s] corrupt %s anchor %s", s.engine.Name(), pool, root, err)
	}

	return tree, true, nil
}

func (s *Store) GetBestAnchor(_ context.Context, pool model.ShieldedType) (chainhash.Hash, error) {
	value, found, err := s.get("GetBestAnchor", bestAnchorKey(pool))
	if err != nil {
		return chainhash.Hash{}, err
	}

	if !found {
		return model.EmptyRoot(pool), nil
	}

	return hashFromBytes(value)
}

func (s *Store) GetNullifier(_ context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	_, found, err := s.get("GetNullifier", nullifierKey(pool, nf))
	return found, err
}

func (s *Store) GetBestBlock(_ context.Context) (chainhash.Hash, error) {
	value, found, err := s.get("GetBestBlock", bestBlockKey())
	if err != nil || !found {
		return chainhash.Hash{}, err
	}

	return hashFromBytes(value)
}

func (s *Store) GetHistoryLength(_ context.Context, epoch model.Epoch) (model.HistoryIndex, error) {
	return s.historyLength(epoch)
}

func (s *Store) historyLength(epoch model.Epoch) (model.HistoryIndex, error) {
	value, found, err := s.get("GetHistoryLength", historyLengthKey(epoch))
	if err != nil || !found {
		return 0, err
	}

	if len(value) != 8 {
		return 0, errors.NewStorageError("[%s] corrupt history length for epoch %d", s.engine.Name(), epoch)
	}

	return model.HistoryIndex(binary.BigEndian.Uint64(value)), nil
}

func (s *Store) GetHistoryAt(_ context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	value, found, err := s.get("GetHistoryAt", historyNodeKey(epoch, index))
	if err != nil || !found {
		return model.HistoryNode{}, false, err
	}

	node, err := model.NewHistoryNodeFromBytes(value)
	if err != nil {
		return model.HistoryNode{}, false, errors.NewStorageError("[%s] corrupt history node %d of epoch %d", s.engine.Name(), index, epoch, err)
	}

	return node, true, nil
}

func (s *Store) GetHistoryRoot(_ context.Context, epoch model.Epoch) (chainhash.Hash, error) {
	value, found, err := s.get("GetHistoryRoot", historyRootKey(epoch))
	if err != nil || !found {
		return chainhash.Hash{}, err
	}

	return hashFromBytes(value)
}

// BatchWrite translates the batch into one engine batch, so a crash leaves either all or none of it.
func (s *Store) BatchWrite(_ context.Context, batch *coins.Batch) error {
	b := s.engine.NewBatch()

	for txid, entry := range batch.Coins {
		if entry.Flags&coins.DIRTY == 0 {
			continue
		}

		if entry.Coins.IsPruned() {
			b.Delete(coinsKey(txid))
		} else {
			b.Put(coinsKey(txid), entry.Coins.Bytes())
		}
	}

	for pool, anchors := range batch.Anchors {
		for root, entry := range anchors {
			if entry.Flags&coins.DIRTY == 0 {
				continue
			}

			if entry.Entered {
				b.Put(anchorKey(pool, root), entry.Tree.Bytes())
			} else {
				b.Delete(anchorKey(pool, root))
			}
		}
	}

	for pool, nullifiers := range batch.Nullifiers {
		for nf, entry := range nullifiers {
			if entry.Flags&coins.DIRTY == 0 {
				continue
			}

			if entry.Entered {
				b.Put(nullifierKey(pool, nf), []byte{1})
			} else {
				b.Delete(nullifierKey(pool, nf))
			}
		}
	}

	for epoch, hc := range batch.History {
		length, err := s.historyLength(epoch)
		if err != nil {
			return err
		}

		for idx := hc.UpdateDepth; idx < length; idx++ {
			b.Delete(historyNodeKey(epoch, idx))
		}

		for _, idx := range hc.SortedAppends() {
			b.Put(historyNodeKey(epoch, idx), hc.Appends[idx].Bytes())
		}

		b.Put(historyLengthKey(epoch), binary.BigEndian.AppendUint64(nil, uint64(hc.Length)))
		b.Put(historyRootKey(epoch), hc.Root.CloneBytes())
	}

	if batch.BestBlock != (chainhash.Hash{}) {
		b.Put(bestBlockKey(), batch.BestBlock.CloneBytes())
	}

	for pool, root := range batch.BestAnchors {
		if root != (chainhash.Hash{}) {
			b.Put(bestAnchorKey(pool), root.CloneBytes())
		}
	}

	n := b.Len()

	if err := b.Commit(); err != nil {
		prometheusKVErrors.WithLabelValues(s.engine.Name(), "BatchWrite").Inc()
		return errors.NewStorageError("[%s] failed to commit batch of %d writes", s.engine.Name(), n, err)
	}

	prometheusKVWrites.WithLabelValues(s.engine.Name()).Add(float64(n))
	s.logger.Debugf("[%s] committed batch of %d writes", s.engine.Name(), n)

	return nil
}

func hashFromBytes(b []byte) (chainhash.Hash, error) {
	h, err := chainhash.NewHash(b)
	if err != nil {
		return chainhash.Hash{}, errors.NewStorageError("corrupt hash record", err)
	}

	return *h, nil
}
