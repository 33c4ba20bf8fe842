// Package logger wraps a coins.Store and logs every call with its result and call site.
package logger

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/ulogger"
)

type Store struct {
	logger ulogger.Logger
	store  coins.Store
}

func New(logger ulogger.Logger, store coins.Store) coins.Store {
	return &Store{
		logger: logger,
		store:  store,
	}
}

func caller() string {
	var callers []string

	depth := 5

	for i := 0; i < depth; i++ {
		pc, file, line, ok := runtime.Caller(2 + i)
		if !ok {
			break
		}

		// trim the module prefix from the file path
		folders := strings.Split(file, string(filepath.Separator))
		for i, folder := range folders {
			if folder == "shieldnode" && i+1 < len(folders) {
				folders = folders[i+1:]
				break
			}
		}

		file = filepath.Join(folders...)

		funcName := runtime.FuncForPC(pc).Name()
		funcPaths := strings.Split(funcName, "/")
		funcName = funcPaths[len(funcPaths)-1]

		callers = append(callers, fmt.Sprintf("called from %s: %s:%d", funcName, file, line))
	}

	return strings.Join(callers, ",")
}

func (s *Store) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	s.logger.Infof("[CoinsStore][logger][Health] : %s", caller())
	return s.store.Health(ctx, checkLiveness)
}

func (s *Store) Close(ctx context.Context) error {
	err := s.store.Close(ctx)
	s.logger.Infof("[CoinsStore][logger][Close] err %v : %s", err, caller())

	return err
}

func (s *Store) GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	c, found, err := s.store.GetCoins(ctx, txid)
	s.logger.Infof("[CoinsStore][logger][GetCoins] txid %s found %t coins %v err %v : %s", txid, found, c, err, caller())

	return c, found, err
}

func (s *Store) HaveCoins(ctx context.Context, txid chainhash.Hash) (bool, error) {
	found, err := s.store.HaveCoins(ctx, txid)
	s.logger.Infof("[CoinsStore][logger][HaveCoins] txid %s found %t err %v : %s", txid, found, err, caller())

	return found, err
}

func (s *Store) GetAnchorAt(ctx context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error) {
	tree, found, err := s.store.GetAnchorAt(ctx, pool, root)
	s.logger.Infof("[CoinsStore][logger][GetAnchorAt] pool %s root %s found %t err %v : %s", pool, root, found, err, caller())

	return tree, found, err
}

func (s *Store) GetBestAnchor(ctx context.Context, pool model.ShieldedType) (chainhash.Hash, error) {
	root, err := s.store.GetBestAnchor(ctx, pool)
	s.logger.Infof("[CoinsStore][logger][GetBestAnchor] pool %s root %s err %v : %s", pool, root, err, caller())

	return root, err
}

func (s *Store) GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	spent, err := s.store.GetNullifier(ctx, pool, nf)
	s.logger.Infof("[CoinsStore][logger][GetNullifier] pool %s nf %s spent %t err %v : %s", pool, nf, spent, err, caller())

	return spent, err
}

func (s *Store) GetBestBlock(ctx context.Context) (chainhash.Hash, error) {
	hash, err := s.store.GetBestBlock(ctx)
	s.logger.Infof("[CoinsStore][logger][GetBestBlock] %s err %v : %s", hash, err, caller())

	return hash, err
}

func (s *Store) GetHistoryLength(ctx context.Context, epoch model.Epoch) (model.HistoryIndex, error) {
	length, err := s.store.GetHistoryLength(ctx, epoch)
	s.logger.Infof("[CoinsStore][logger][GetHistoryLength] epoch %d length %d err %v : %s", epoch, length, err, caller())

	return length, err
}

func (s *Store) GetHistoryAt(ctx context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	node, found, err := s.store.GetHistoryAt(ctx, epoch, index)
	s.logger.Infof("[CoinsStore][logger][GetHistoryAt] epoch %d index %d found %t err %v : %s", epoch, index, found, err, caller())

	return node, found, err
}

func (s *Store) GetHistoryRoot(ctx context.Context, epoch model.Epoch) (chainhash.Hash, error) {
	root, err := s.store.GetHistoryRoot(ctx, epoch)
	s.logger.Infof("[CoinsStore][logger][GetHistoryRoot] epoch %d root %s err %v : %s", epoch, root, err, caller())

	return root, err
}

func (s *Store) BatchWrite(ctx context.Context, batch *coins.Batch) error {
	err := s.store.BatchWrite(ctx, batch)

	nullifiers, anchors := 0, 0
	for _, pool := range model.AllShieldedTypes {
		nullifiers += len(batch.Nullifiers[pool])
		anchors += len(batch.Anchors[pool])
	}

	s.logger.Infof("[CoinsStore][logger][BatchWrite] coins %d anchors %d nullifiers %d history epochs %d best block %s err %v : %s",
		len(batch.Coins), anchors, nullifiers, len(batch.History), batch.BestBlock, err, caller())

	return err
}
