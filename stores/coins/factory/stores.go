package factory

import (
	"context"
	"net/url"

	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/stores/coins/leveldb"
	"github.com/shieldnode/shieldnode/stores/coins/memory"
	"github.com/shieldnode/shieldnode/stores/coins/pebble"
	"github.com/shieldnode/shieldnode/stores/coins/sql"
	"github.com/shieldnode/shieldnode/ulogger"
)

func init() {
	availableDatabases["memory"] = func(_ context.Context, logger ulogger.Logger, _ *settings.Settings, _ *url.URL) (coins.Store, error) {
		return memory.New(logger), nil
	}

	sqlInit := func(_ context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (coins.Store, error) {
		return sql.New(logger, storeURL, tSettings)
	}

	availableDatabases["postgres"] = sqlInit
	availableDatabases["sqlite"] = sqlInit
	availableDatabases["sqlitememory"] = sqlInit

	availableDatabases["leveldb"] = func(_ context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (coins.Store, error) {
		return leveldb.New(logger, storeURL, tSettings)
	}

	availableDatabases["pebble"] = func(_ context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (coins.Store, error) {
		return pebble.New(logger, storeURL, tSettings)
	}
}
