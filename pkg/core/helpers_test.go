package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStore opens a store on a fresh database file. A file is used rather
// than :memory: so every pooled connection sees the same database.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "test.db")
	store, err := OpenConnection(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func execAll(t *testing.T, q Executor, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := q.ExecContext(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
}

// createTable runs the DDL statements and reflects the named table
func createTable(t *testing.T, store *Store, name string, stmts ...string) *Table {
	t.Helper()
	execAll(t, store.DB(), stmts...)
	table, err := store.GetTable(context.Background(), name)
	require.NoError(t, err)
	return table
}

// inSession runs fn in a committed session and returns the statements it executed
func inSession(t *testing.T, store *Store, fn func(*Session) error) int {
	t.Helper()
	sess, err := store.BeginSession(context.Background())
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	require.NoError(t, fn(sess))
	n := sess.Statements()
	require.NoError(t, sess.Commit())
	return n
}

func selectAll(t *testing.T, store *Store, table TableHandle) []Record {
	t.Helper()
	records, err := SelectAll(context.Background(), store.DB(), table)
	require.NoError(t, err)
	return records
}

func rowCount(t *testing.T, store *Store, table TableHandle) int {
	t.Helper()
	n, err := store.RowCount(context.Background(), table)
	require.NoError(t, err)
	return n
}

// seedItems creates items(id, name) holding ids 1..5 named a..e
func seedItems(t *testing.T, store *Store) *Table {
	t.Helper()
	return createTable(t, store, "items",
		`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO items (id, name) VALUES (1, 'a'), (2, 'b'), (3, 'c'), (4, 'd'), (5, 'e')`)
}

func ids(records []Record) []any {
	return columnOf(records, "id")
}
