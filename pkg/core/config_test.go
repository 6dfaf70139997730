package core

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	config := DefaultConfig()
	config.Path = "/tmp/data.db"
	config.BusyTimeout = 2 * time.Second
	config.JournalMode = "wal"

	dsn := config.DSN()
	path, query, ok := strings.Cut(dsn, "?")
	require.True(t, ok, dsn)
	assert.Equal(t, "/tmp/data.db", path)

	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, []string{"busy_timeout(2000)", "journal_mode(WAL)", "foreign_keys(1)"}, values["_pragma"])

	assert.Equal(t, "plain.db", Config{Path: "plain.db"}.DSN())
	assert.Contains(t, Config{Path: "file:x.db?mode=rwc", ForeignKeys: true}.DSN(), "?mode=rwc&_pragma=")
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Path = "x.db"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty path", func(c *Config) { c.Path = "" }},
		{"too many params", func(c *Config) { c.MaxParams = sqliteMaxParams + 1 }},
		{"negative params", func(c *Config) { c.MaxParams = -1 }},
		{"negative pool", func(c *Config) { c.MaxOpenConns = -1 }},
		{"unknown policy", func(c *Config) { c.MatchPolicy = MatchPolicy(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}

	assert.Equal(t, sqliteMaxParams, Config{}.maxParams())
	assert.Equal(t, 10, Config{MaxParams: 10}.maxParams())
	assert.Equal(t, "unique", MatchUnique.String())
	assert.Equal(t, "permissive", MatchPermissive.String())
}

func TestConfigInMemory(t *testing.T) {
	for _, path := range []string{":memory:", "file::memory:?cache=shared", "file:mem1?mode=memory&cache=shared"} {
		assert.True(t, Config{Path: path}.inMemory(), path)
	}
	for _, path := range []string{"data.db", "file:data.db?mode=ro", "/tmp/memory.db"} {
		assert.False(t, Config{Path: path}.inMemory(), path)
	}

	config := DefaultConfig()
	config.Path = ":memory:"
	store, err := OpenConnection(context.Background(), config)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, 1, store.DB().Stats().MaxOpenConnections)

	_, err = store.DB().Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	tables, err := store.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, tables)
}
