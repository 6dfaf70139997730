package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersTable() *Table {
	return NewTable("", "users", []Column{
		{Name: "id", Type: "INTEGER", PrimaryKey: 1},
		{Name: "name", Type: "TEXT"},
		{Name: "age", Type: "INTEGER"},
	})
}

func TestBuildPredicate(t *testing.T) {
	users := usersTable()

	t.Run("conjunction in record order", func(t *testing.T) {
		p, err := BuildPredicate(users, NewRecord("name", "a", "age", 3))
		require.NoError(t, err)

		where, args := p.ToSQL()
		assert.Equal(t, `"name" = ? AND "age" = ?`, where)
		assert.Equal(t, []any{"a", int64(3)}, args)
		assert.Len(t, p.Conditions(), 2)
	})

	t.Run("null matches with IS NULL", func(t *testing.T) {
		p, err := BuildPredicate(users, NewRecord("name", nil))
		require.NoError(t, err)

		where, args := p.ToSQL()
		assert.Equal(t, `"name" IS NULL`, where)
		assert.Empty(t, args)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := BuildPredicate(users, NewRecord("email", "x"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidColumn))

		var colErr *ColumnError
		require.True(t, errors.As(err, &colErr))
		assert.Equal(t, "email", colErr.Column)
		assert.Equal(t, "users", colErr.Table)
	})

	t.Run("empty record matches every row", func(t *testing.T) {
		p, err := BuildPredicate(users, Record{})
		require.NoError(t, err)
		assert.True(t, p.IsEmpty())

		where, args := p.ToSQL()
		assert.Equal(t, "1 = 1", where)
		assert.Empty(t, args)
	})

	t.Run("explicit pairs normalize values", func(t *testing.T) {
		p, err := BuildPredicateFromPairs(users, []ColumnValue{{Column: "id", Value: uint8(4)}})
		require.NoError(t, err)
		_, args := p.ToSQL()
		assert.Equal(t, []any{int64(4)}, args)
	})

	t.Run("and appends conditions", func(t *testing.T) {
		a, err := BuildPredicate(users, NewRecord("id", 1))
		require.NoError(t, err)
		b, err := BuildPredicate(users, NewRecord("name", "a"))
		require.NoError(t, err)

		where, args := a.And(b).ToSQL()
		assert.Equal(t, `"id" = ? AND "name" = ?`, where)
		assert.Equal(t, []any{int64(1), "a"}, args)
		assert.Len(t, a.Conditions(), 1)
	})
}

func TestBuildDeletePredicate(t *testing.T) {
	users := usersTable()

	_, err := BuildDeletePredicate(users, Record{})
	assert.ErrorIs(t, err, ErrEmptyPredicate)

	p, err := BuildDeletePredicate(users, NewRecord("id", 1, "name", "a"))
	require.NoError(t, err)
	where, _ := p.ToSQL()
	assert.Equal(t, `"id" = ? AND "name" = ?`, where)
}

func TestBuildInPredicate(t *testing.T) {
	users := usersTable()

	p, err := BuildInPredicate(users, "id", []any{1, 2, 3})
	require.NoError(t, err)
	where, args := p.ToSQL()
	assert.Equal(t, `"id" IN (?,?,?)`, where)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, args)

	p, err = BuildInPredicate(users, "id", nil)
	require.NoError(t, err)
	where, args = p.ToSQL()
	assert.Equal(t, "1 = 0", where)
	assert.Empty(t, args)

	_, err = BuildInPredicate(users, "missing", []any{1})
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestBuildInPredicateLongList(t *testing.T) {
	values := make([]any, sqliteMaxParams+1)
	for i := range values {
		values[i] = i
	}
	p, err := BuildInPredicate(usersTable(), "id", values)
	require.NoError(t, err)

	where, args := p.ToSQL()
	assert.True(t, strings.HasPrefix(where, `"id" IN (SELECT `), where)
	assert.Contains(t, where, "json_each(?)")
	require.Len(t, args, 1)
	assert.True(t, strings.HasPrefix(args[0].(string), "[0,1,2,"))
}

func TestInListSQLMatchesEveryKind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	execAll(t, store.DB(), `CREATE TABLE v (i INTEGER, s TEXT, b BLOB, f REAL, ok BOOLEAN, at TEXT)`)
	_, err := store.DB().ExecContext(ctx, `INSERT INTO v VALUES (?, ?, ?, ?, ?, ?)`, 1, "x", []byte{1, 2}, 1.5, true, at)
	require.NoError(t, err)

	count := func(where string, args []any) int {
		t.Helper()
		var n int
		require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM v WHERE "+where, args...).Scan(&n))
		return n
	}

	tests := []struct {
		name   string
		lhs    string
		width  int
		hit    []any
		misses [][]any
	}{
		{"integer", `"i"`, 1, []any{int64(1)}, [][]any{{int64(2)}, {int64(3)}}},
		{"text", `"s"`, 1, []any{"x"}, [][]any{{"y"}, {"1"}}},
		{"blob", `"b"`, 1, []any{[]byte{1, 2}}, [][]any{{[]byte{1}}, {"0102"}}},
		{"real", `"f"`, 1, []any{1.5}, [][]any{{2.5}, {nil}}},
		{"bool", `"ok"`, 1, []any{true}, [][]any{{false}, {int64(2)}}},
		{"time", `"at"`, 1, []any{at}, [][]any{{at.Add(time.Second)}, {"2024"}}},
		{"composite", `("i", "s")`, 2, []any{int64(1), "x"}, [][]any{{int64(1), "y"}, {int64(2), "x"}}},
		{"composite blob", `("i", "b")`, 2, []any{int64(1), []byte{1, 2}}, [][]any{{int64(1), []byte{2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := append([][]any{tt.hit}, tt.misses...)

			// a limit below the value count forces the JSON form
			where, args := inListSQL(tt.lhs, tt.width, rows, 1)
			require.Len(t, args, 1)
			assert.Equal(t, 1, count(where, args))

			where, args = inListSQL(tt.lhs, tt.width, rows, sqliteMaxParams)
			assert.Len(t, args, len(rows)*tt.width)
			assert.Equal(t, 1, count(where, args))

			where, args = inListSQL(tt.lhs, tt.width, tt.misses, 1)
			assert.Zero(t, count(where, args))
		})
	}

	where, args := inListSQL(`"i"`, 1, nil, 1)
	assert.Equal(t, "1 = 0", where)
	assert.Empty(t, args)
}
