// Package leveldb stores the chain state in a LevelDB database.
package leveldb

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/storage"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins/kv"
	"github.com/shieldnode/shieldnode/ulogger"
)

type engine struct {
	db *leveldb.DB
}

// New opens the database named by the URL path below the data folder. A leveldb:// URL without a
// path opens an in-memory database.
func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*kv.Store, error) {
	var (
		db  *leveldb.DB
		err error
	)

	if storeURL.Path == "" || storeURL.Path == "/" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		dir := filepath.Join(tSettings.DataFolder, storeURL.Path)

		if err = os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
			return nil, errors.NewStorageError("failed to create leveldb folder %s", dir, err)
		}

		logger.Infof("Using leveldb coins store: %s", dir)

		db, err = leveldb.OpenFile(dir, &opt.Options{
			BlockCacheCapacity: 64 * opt.MiB,
			WriteBuffer:        32 * opt.MiB,
		})
	}

	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open leveldb", err)
	}

	return kv.New(logger, &engine{db: db}), nil
}

func (e *engine) Name() string {
	return "leveldb"
}

func (e *engine) Get(key []byte) ([]byte, bool, error) {
	value, err := e.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return value, true, nil
}

func (e *engine) NewBatch() kv.Batch {
	return &batch{db: e.db, b: new(leveldb.Batch)}
}

func (e *engine) Close() error {
	return e.db.Close()
}

type batch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *batch) Put(key, value []byte) {
	b.b.Put(key, value)
}

func (b *batch) Delete(key []byte) {
	b.b.Delete(key)
}

func (b *batch) Len() int {
	return b.b.Len()
}

func (b *batch) Commit() error {
	return b.db.Write(b.b, &opt.WriteOptions{Sync: true})
}
