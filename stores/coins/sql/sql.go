// Package sql stores the chain state in PostgreSQL or SQLite.
package sql

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	_ "github.com/lib/pq"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/shieldnode/shieldnode/util"
	"github.com/shieldnode/shieldnode/util/usql"
	_ "modernc.org/sqlite"
)

// tip rows: the best block and one best anchor per pool
const (
	tipBestBlock = -1
)

type Store struct {
	logger    ulogger.Logger
	db        *usql.DB
	engine    util.SQLEngine
	dbTimeout time.Duration
}

func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*Store, error) {
	initPrometheusMetrics()

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	switch util.SQLEngine(storeURL.Scheme) {
	case util.Postgres:
		if err = createPostgresSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create postgres schema", err)
		}

	case util.Sqlite, util.SqliteMemory:
		if err = createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create sqlite schema", err)
		}

	default:
		return nil, errors.NewConfigurationError("unknown database engine: %s", storeURL.Scheme)
	}

	return &Store{
		logger:    logger,
		db:        db,
		engine:    util.SQLEngine(storeURL.Scheme),
		dbTimeout: tSettings.Coins.DBTimeout,
	}, nil
}

func (s *Store) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.dbTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.dbTimeout)
}

func (s *Store) fail(function string, err error, message string, params ...interface{}) error {
	prometheusCoinsSQLErrors.WithLabelValues(function, err.Error()).Inc()
	return errors.NewStorageError(message, append(params, err)...)
}

func (s *Store) Health(ctx context.Context, _ bool) (int, string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var num int

	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&num); err != nil {
		return 503, "sql coins store unreachable", err
	}

	return 200, string(s.engine) + " coins store", nil
}

func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

// getBytes runs a single-column query and reports sql.ErrNoRows as absence.
func (s *Store) getBytes(ctx context.Context, function, q string, args ...interface{}) ([]byte, bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	prometheusCoinsSQLReads.WithLabelValues(function).Inc()

	var data []byte

	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, s.fail(function, err, "%s: query failed", function)
	}

	return data, true, nil
}

func (s *Store) GetCoins(ctx context.Context, txid chainhash.Hash) (*model.Coins, bool, error) {
	data, found, err := s.getBytes(ctx, "GetCoins", `SELECT data FROM coins WHERE txid = $1`, txid[:])
	if err != nil || !found {
		return nil, false, err
	}

	c, err := model.NewCoinsFromBytes(data)
	if err != nil {
		return nil, false, errors.NewStorageError("corrupt coins record for %s", txid, err)
	}

	return c, true, nil
}

func (s *Store) HaveCoins(ctx context.Context, txid chainhash.Hash) (bool, error) {
	_, found, err := s.getBytes(ctx, "HaveCoins", `SELECT txid FROM coins WHERE txid = $1`, txid[:])
	return found, err
}

func (s *Store) GetAnchorAt(ctx context.Context, pool model.ShieldedType, root chainhash.Hash) (*model.NoteCommitmentTree, bool, error) {
	if root == model.EmptyRoot(pool) {
		return model.NewNoteCommitmentTree(pool), true, nil
	}

	data, found, err := s.getBytes(ctx, "GetAnchorAt", `SELECT data FROM anchors WHERE pool = $1 AND root = $2`, int(pool), root[:])
	if err != nil || !found {
		return nil, false, err
	}

	tree, err := model.NewNoteCommitmentTreeFromBytes(data)
	if err != nil {
		return nil, false, errors.NewStorageError("corrupt %s anchor %s", pool, root, err)
	}

	return tree, true, nil
}

func (s *Store) getTip(ctx context.Context, function string, kind int) (chainhash.Hash, bool, error) {
	data, found, err := s.getBytes(ctx, function, `SELECT hash FROM tips WHERE kind = $1`, kind)
	if err != nil || !found {
		return chainhash.Hash{}, false, err
	}

	h, err := chainhash.NewHash(data)
	if err != nil {
		return chainhash.Hash{}, false, errors.NewStorageError("corrupt tip record %d", kind, err)
	}

	return *h, true, nil
}

func (s *Store) GetBestAnchor(ctx context.Context, pool model.ShieldedType) (chainhash.Hash, error) {
	root, found, err := s.getTip(ctx, "GetBestAnchor", int(pool))
	if err != nil {
		return chainhash.Hash{}, err
	}

	if !found {
		return model.EmptyRoot(pool), nil
	}

	return root, nil
}

func (s *Store) GetNullifier(ctx context.Context, pool model.ShieldedType, nf chainhash.Hash) (bool, error) {
	_, found, err := s.getBytes(ctx, "GetNullifier", `SELECT nf FROM nullifiers WHERE pool = $1 AND nf = $2`, int(pool), nf[:])
	return found, err
}

func (s *Store) GetBestBlock(ctx context.Context) (chainhash.Hash, error) {
	hash, _, err := s.getTip(ctx, "GetBestBlock", tipBestBlock)
	return hash, err
}

func (s *Store) GetHistoryLength(ctx context.Context, epoch model.Epoch) (model.HistoryIndex, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var length int64

	err := s.db.QueryRowContext(ctx, `SELECT length FROM history WHERE epoch = $1`, int64(epoch)).Scan(&length)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, s.fail("GetHistoryLength", err, "GetHistoryLength: query failed")
	}

	return model.HistoryIndex(length), nil
}

func (s *Store) GetHistoryAt(ctx context.Context, epoch model.Epoch, index model.HistoryIndex) (model.HistoryNode, bool, error) {
	data, found, err := s.getBytes(ctx, "GetHistoryAt", `SELECT data FROM history_nodes WHERE epoch = $1 AND idx = $2`, int64(epoch), int64(index))
	if err != nil || !found {
		return model.HistoryNode{}, false, err
	}

	node, err := model.NewHistoryNodeFromBytes(data)
	if err != nil {
		return model.HistoryNode{}, false, errors.NewStorageError("corrupt history node %d of epoch %d", index, epoch, err)
	}

	return node, true, nil
}

func (s *Store) GetHistoryRoot(ctx context.Context, epoch model.Epoch) (chainhash.Hash, error) {
	data, found, err := s.getBytes(ctx, "GetHistoryRoot", `SELECT root FROM history WHERE epoch = $1`, int64(epoch))
	if err != nil || !found {
		return chainhash.Hash{}, err
	}

	h, err := chainhash.NewHash(data)
	if err != nil {
		return chainhash.Hash{}, errors.NewStorageError("corrupt history root of epoch %d", epoch, err)
	}

	return *h, nil
}

// BatchWrite applies the whole batch in one database transaction.
func (s *Store) BatchWrite(ctx context.Context, batch *coins.Batch) (err error) {
	start := time.Now()

	// a flush can be large, so it is not bound by the per-query timeout
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("BatchWrite", err, "failed to begin transaction")
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exec := func(q string, args ...interface{}) error {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return s.fail("BatchWrite", err, "batch write failed")
		}

		return nil
	}

	for txid, entry := range batch.Coins {
		if entry.Flags&coins.DIRTY == 0 {
			continue
		}

		if entry.Coins.IsPruned() {
			err = exec(`DELETE FROM coins WHERE txid = $1`, txid[:])
		} else {
			err = exec(`INSERT INTO coins (txid, data) VALUES ($1, $2) ON CONFLICT (txid) DO UPDATE SET data = excluded.data`,
				txid[:], entry.Coins.Bytes())
		}

		if err != nil {
			return err
		}
	}

	for pool, anchors := range batch.Anchors {
		for root, entry := range anchors {
			if entry.Flags&coins.DIRTY == 0 {
				continue
			}

			if entry.Entered {
				err = exec(`INSERT INTO anchors (pool, root, data) VALUES ($1, $2, $3) ON CONFLICT (pool, root) DO UPDATE SET data = excluded.data`,
					int(pool), root[:], entry.Tree.Bytes())
			} else {
				err = exec(`DELETE FROM anchors WHERE pool = $1 AND root = $2`, int(pool), root[:])
			}

			if err != nil {
				return err
			}
		}
	}

	for pool, nullifiers := range batch.Nullifiers {
		for nf, entry := range nullifiers {
			if entry.Flags&coins.DIRTY == 0 {
				continue
			}

			if entry.Entered {
				err = exec(`INSERT INTO nullifiers (pool, nf) VALUES ($1, $2) ON CONFLICT DO NOTHING`, int(pool), nf[:])
			} else {
				err = exec(`DELETE FROM nullifiers WHERE pool = $1 AND nf = $2`, int(pool), nf[:])
			}

			if err != nil {
				return err
			}
		}
	}

	for epoch, hc := range batch.History {
		if err = exec(`DELETE FROM history_nodes WHERE epoch = $1 AND idx >= $2`, int64(epoch), int64(hc.UpdateDepth)); err != nil {
			return err
		}

		for _, idx := range hc.SortedAppends() {
			if err = exec(`INSERT INTO history_nodes (epoch, idx, data) VALUES ($1, $2, $3)`,
				int64(epoch), int64(idx), hc.Appends[idx].Bytes()); err != nil {
				return err
			}
		}

		if err = exec(`INSERT INTO history (epoch, length, root) VALUES ($1, $2, $3) ON CONFLICT (epoch) DO UPDATE SET length = excluded.length, root = excluded.root`,
			int64(epoch), int64(hc.Length), hc.Root.CloneBytes()); err != nil {
			return err
		}
	}

	setTip := func(kind int, hash chainhash.Hash) error {
		return exec(`INSERT INTO tips (kind, hash) VALUES ($1, $2) ON CONFLICT (kind) DO UPDATE SET hash = excluded.hash`, kind, hash.CloneBytes())
	}

	if batch.BestBlock != (chainhash.Hash{}) {
		if err = setTip(tipBestBlock, batch.BestBlock); err != nil {
			return err
		}
	}

	for pool, root := range batch.BestAnchors {
		if root != (chainhash.Hash{}) {
			if err = setTip(int(pool), root); err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return s.fail("BatchWrite", err, "failed to commit transaction")
	}

	prometheusCoinsSQLBatchDuration.Observe(time.Since(start).Seconds())
	s.logger.Debugf("[CoinsSQL] batch of %d coins written in %s", len(batch.Coins), time.Since(start))

	return nil
}
