package factory

import (
	"context"
	"net/url"
	"testing"

	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins/kv"
	storelogger "github.com/shieldnode/shieldnode/stores/coins/logger"
	"github.com/shieldnode/shieldnode/stores/coins/memory"
	"github.com/shieldnode/shieldnode/stores/coins/sql"
	"github.com/shieldnode/shieldnode/stores/coins/tests"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, rawURL string) (interface{}, error) {
	storeURL, err := url.Parse(rawURL)
	require.NoError(t, err)

	tSettings := settings.NewSettings()
	tSettings.DataFolder = t.TempDir()
	tSettings.Coins.Logging = false

	return NewStore(context.Background(), ulogger.TestLogger{}, tSettings, storeURL)
}

func TestNewStoreBySchema(t *testing.T) {
	cases := map[string]interface{}{
		"memory://":              &memory.Memory{},
		"sqlitememory:///coins":  &sql.Store{},
		"sqlite:///coins":        &sql.Store{},
		"leveldb://":             &kv.Store{},
		"pebble:///coins":        &kv.Store{},
		"memory://?logging=true": &storelogger.Store{},
	}

	for rawURL, want := range cases {
		t.Run(rawURL, func(t *testing.T) {
			store, err := open(t, rawURL)
			require.NoError(t, err)
			assert.IsType(t, want, store)
		})
	}
}

func TestUnknownScheme(t *testing.T) {
	_, err := open(t, "cassandra://localhost/coins")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestLoggedStoreConformance(t *testing.T) {
	storeURL, err := url.Parse("memory://?logging=true")
	require.NoError(t, err)

	store, err := NewStore(context.Background(), ulogger.TestLogger{}, settings.NewSettings(), storeURL)
	require.NoError(t, err)

	tests.Store(t, store)
}
