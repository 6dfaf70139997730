package sqrecord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/sqrecord/pkg/core"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUsers(t *testing.T, db *DB) *Table {
	t.Helper()
	users, err := db.CreateTable(context.Background(), "users", []core.ColumnDef{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
	}, []string{"id"}, core.IfExistsFail)
	require.NoError(t, err)
	return users
}

func TestOpen(t *testing.T) {
	_, err := Open(DefaultConfig(""))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	db := openTestDB(t)
	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)

	_, err = db.Table(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestTableMutationsCommit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := createUsers(t, db)

	assert.Equal(t, []string{"id", "name"}, users.Columns())
	assert.Equal(t, []string{"id"}, users.PrimaryKey())
	assert.Equal(t, core.StrategyFast, users.Strategy())

	require.NoError(t, users.InsertRecords(ctx, []core.Record{
		core.NewRecord("id", 1, "name", "a"),
		core.NewRecord("id", 2, "name", "b"),
		core.NewRecord("id", 3, "name", "c"),
	}))

	require.NoError(t, users.UpdateRecords(ctx, []core.Record{core.NewRecord("id", 2, "name", "B")}, nil))
	name, err := users.SelectValueByPrimaryKey(ctx, "name", core.NewRecord("id", 2))
	require.NoError(t, err)
	assert.Equal(t, "B", name)

	require.NoError(t, users.DeleteRecords(ctx, "id", []any{1}))
	n, err := users.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, users.SetColumnValues(ctx, "name", "z"))
	values, err := users.SelectColumnValues(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, []any{"z", "z"}, values)

	require.NoError(t, users.DeleteAllRecords(ctx))
	n, err = users.RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTableMutationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := createUsers(t, db)

	// the duplicate key fails the statement, so neither row is kept
	err := users.InsertRecords(ctx, []core.Record{
		core.NewRecord("id", 1, "name", "a"),
		core.NewRecord("id", 1, "name", "b"),
	})
	require.Error(t, err)

	n, err := users.RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTableIndexing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := createUsers(t, db)

	var records []core.Record
	for i := 1; i <= 5; i++ {
		records = append(records, core.NewRecord("id", i, "name", string(rune('a'+i-1))))
	}
	require.NoError(t, users.InsertRecords(ctx, records))

	last, err := users.SelectByIndex(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, core.NewRecord("id", 5, "name", "e"), last)

	_, err = users.SelectByIndex(ctx, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	middle, err := users.SelectBySlice(ctx, core.Span(1, -1))
	require.NoError(t, err)
	assert.Equal(t, records[1:4], middle)

	v, err := users.SelectColumnValueByIndex(ctx, "name", 0)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	names, err := users.SelectColumnValuesBySlice(ctx, "name", core.From(-2))
	require.NoError(t, err)
	assert.Equal(t, []any{"d", "e"}, names)

	chunks, err := users.SelectChunks(ctx, 2)
	require.NoError(t, err)
	all, err := chunks.Collect()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Len(t, all[2], 1)

	existing, err := users.SelectExistingValues(ctx, "id", []any{2, 9, 4})
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{int64(2), int64(4)}, existing)
}

func TestKeylessTableUsesMatchPolicy(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	logs, err := db.CreateTableFromRecords(ctx, "logs", []core.Record{
		core.NewRecord("ts", 1, "msg", "dup"),
		core.NewRecord("ts", 1, "msg", "dup"),
		core.NewRecord("ts", 2, "msg", "b"),
	}, nil, core.IfExistsFail)
	require.NoError(t, err)
	assert.Equal(t, core.StrategySlow, logs.Strategy())

	err = logs.DeleteRecordsByValues(ctx, []core.Record{core.NewRecord("ts", 1, "msg", "dup")})
	assert.ErrorIs(t, err, ErrAmbiguousMatch)

	err = logs.DeleteRecordsByValues(ctx, []core.Record{core.NewRecord("ts", 1, "msg", "dup")},
		core.WithMatchPolicy(core.MatchPermissive))
	require.NoError(t, err)

	rest, err := logs.SelectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Record{core.NewRecord("ts", 2, "msg", "b")}, rest)
}

func TestUpdateRecordsAcceptsMutationOptions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	logs, err := db.CreateTableFromRecords(ctx, "logs", []core.Record{
		core.NewRecord("ts", 1, "msg", "a"),
		core.NewRecord("ts", 1, "msg", "b"),
	}, nil, core.IfExistsFail)
	require.NoError(t, err)

	update := []core.Record{core.NewRecord("ts", 1, "msg", "z")}
	err = logs.UpdateRecords(ctx, update, []string{"ts"})
	assert.ErrorIs(t, err, ErrAmbiguousMatch)

	err = logs.UpdateRecords(ctx, update, []string{"ts"}, core.WithMatchPolicy(core.MatchPermissive))
	require.NoError(t, err)

	msgs, err := logs.SelectColumnValues(ctx, "msg")
	require.NoError(t, err)
	assert.Equal(t, []any{"z", "z"}, msgs)
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(DefaultConfig(":memory:"))
	require.NoError(t, err)
	defer db.Close()

	users := createUsers(t, db)
	var records []core.Record
	for i := 1; i <= 20; i++ {
		records = append(records, core.NewRecord("id", i, "name", "n"))
	}
	require.NoError(t, users.InsertRecords(ctx, records))

	// every pooled read must see the same database
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			n, err := users.RowCount(ctx)
			if err != nil {
				return err
			}
			if n != 20 {
				return fmt.Errorf("got %d rows", n)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 20, stats[0].Rows)
}

func TestCopyDumpLoad(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := createUsers(t, db)
	require.NoError(t, users.InsertRecords(ctx, []core.Record{
		core.NewRecord("id", 1, "name", "a"),
		core.NewRecord("id", 2, "name", nil),
	}))
	want, err := users.SelectAll(ctx)
	require.NoError(t, err)

	backup, err := users.Copy(ctx, "users_backup", core.IfExistsFail)
	require.NoError(t, err)
	copied, err := backup.SelectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, copied)

	var buf bytes.Buffer
	dumped, err := users.Dump(ctx, &buf, core.DumpOptions{Format: core.DumpFormatJSONL, Compression: core.CompressionZstd})
	require.NoError(t, err)
	assert.Equal(t, 2, dumped.Rows)

	require.NoError(t, users.DeleteAllRecords(ctx))
	loaded, err := users.Load(ctx, &buf, core.LoadOptions{Format: core.DumpFormatJSONL, Compression: core.CompressionZstd})
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Rows)

	got, err := users.SelectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, backup.Drop(ctx))
	_, err = db.Table(ctx, "users_backup")
	assert.ErrorIs(t, err, ErrTableNotFound)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Rows)
}

func TestSessionGroupsOperations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := createUsers(t, db)

	boom := errors.New("boom")
	err := db.Session(ctx, func(s *core.Session) error {
		if err := core.InsertRecords(ctx, s, users.Handle(), []core.Record{core.NewRecord("id", 1, "name", "a")}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := users.RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRefreshAfterSchemaChange(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := createUsers(t, db)

	_, err := db.Store().DB().ExecContext(ctx, `ALTER TABLE users ADD COLUMN email TEXT`)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, users.Columns())

	require.NoError(t, users.Refresh(ctx))
	assert.Equal(t, []string{"id", "name", "email"}, users.Columns())
}
