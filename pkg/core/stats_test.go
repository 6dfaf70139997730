package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedItems(t, store)
	createTable(t, store, "logs", `CREATE TABLE logs (ts INTEGER, msg TEXT)`)
	createTable(t, store, "grades",
		`CREATE TABLE grades (student TEXT, course TEXT, grade INTEGER, PRIMARY KEY (student, course))`)

	var stmts []string
	for i := 0; i < 12; i++ {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE t%02d (id INTEGER PRIMARY KEY)`, i))
	}
	execAll(t, store.DB(), stmts...)

	stats, err := store.TableStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 15)

	byName := make(map[string]TableStat, len(stats))
	for _, s := range stats {
		byName[s.Name] = s
	}
	assert.Equal(t, TableStat{Name: "items", Columns: 2, PrimaryKey: []string{"id"}, Rows: 5}, byName["items"])
	assert.Equal(t, TableStat{Name: "logs", Columns: 2, Rows: 0}, byName["logs"])
	assert.Equal(t, []string{"student", "course"}, byName["grades"].PrimaryKey)

	// results keep the requested order
	assert.Equal(t, "grades", stats[0].Name)

	_, err = TableStats(ctx, store.DB(), "", []string{"items", "missing"})
	assert.ErrorIs(t, err, ErrTableNotFound)
}
