// Package pebble stores the chain state in a Pebble database.
package pebble

import (
	"net/url"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins/kv"
	"github.com/shieldnode/shieldnode/ulogger"
)

type engine struct {
	db *pebble.DB
}

// New opens the database named by the URL path below the data folder. A pebble:// URL without a path
// opens an in-memory database.
func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*kv.Store, error) {
	opts := &pebble.Options{}
	dir := ""

	if storeURL.Path == "" || storeURL.Path == "/" {
		opts.FS = vfs.NewMem()
	} else {
		dir = filepath.Join(tSettings.DataFolder, storeURL.Path)
		logger.Infof("Using pebble coins store: %s", dir)
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open pebble", err)
	}

	return kv.New(logger, &engine{db: db}), nil
}

func (e *engine) Name() string {
	return "pebble"
}

func (e *engine) Get(key []byte) ([]byte, bool, error) {
	value, closer, err := e.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	defer closer.Close()

	// the value is only valid until the closer runs
	out := make([]byte, len(value))
	copy(out, value)

	return out, true, nil
}

func (e *engine) NewBatch() kv.Batch {
	return &batch{b: e.db.NewBatch()}
}

func (e *engine) Close() error {
	return e.db.Close()
}

type batch struct {
	b *pebble.Batch
	n int
}

func (b *batch) Put(key, value []byte) {
	// pebble batch writes only fail once the batch is committed or closed
	_ = b.b.Set(key, value, nil)
	b.n++
}

func (b *batch) Delete(key []byte) {
	_ = b.b.Delete(key, nil)
	b.n++
}

func (b *batch) Len() int {
	return b.n
}

func (b *batch) Commit() error {
	defer b.b.Close()

	return b.b.Commit(pebble.Sync)
}
