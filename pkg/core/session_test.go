package core

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSession(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		store := newTestStore(t)
		items := seedItems(t, store)

		err := store.WithSession(ctx, func(s *Session) error {
			return InsertRecords(ctx, s, items, []Record{NewRecord("id", 6, "name", "f")})
		})
		require.NoError(t, err)
		assert.Equal(t, 6, rowCount(t, store, items))
	})

	t.Run("rolls back and returns the error", func(t *testing.T) {
		store := newTestStore(t)
		items := seedItems(t, store)
		boom := errors.New("boom")

		err := store.WithSession(ctx, func(s *Session) error {
			if err := DeleteAllRecords(ctx, s, items); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 5, rowCount(t, store, items))
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		store := newTestStore(t)
		items := seedItems(t, store)

		assert.Panics(t, func() {
			_ = store.WithSession(ctx, func(s *Session) error {
				require.NoError(t, DeleteAllRecords(ctx, s, items))
				panic("boom")
			})
		})
		assert.Equal(t, 5, rowCount(t, store, items))

		// the connection was released and the store still accepts writes
		require.NoError(t, store.WithSession(ctx, func(s *Session) error {
			return DeleteRecords(ctx, s, items, "id", []any{1})
		}))
		assert.Equal(t, 4, rowCount(t, store, items))
	})

	t.Run("mutation errors roll back earlier statements", func(t *testing.T) {
		store := newTestStore(t)
		items := seedItems(t, store)

		err := store.WithSession(ctx, func(s *Session) error {
			if err := SetColumnValues(ctx, s, items, "name", "x"); err != nil {
				return err
			}
			return InsertRecords(ctx, s, items, []Record{NewRecord("id", 1, "name", "dup")})
		})
		require.Error(t, err)

		names, err := SelectColumnValuesAll(ctx, store.DB(), items, "name")
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b", "c", "d", "e"}, names)
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	items := seedItems(t, store)

	sess, err := store.BeginSession(ctx)
	require.NoError(t, err)

	_, err = uuid.Parse(sess.ID())
	assert.NoError(t, err)
	assert.NotNil(t, sess.Tx())
	assert.Equal(t, 0, sess.Statements())

	require.NoError(t, SetColumnValues(ctx, sess, items, "name", "z"))
	require.NoError(t, DeleteRecords(ctx, sess, items, "id", []any{5}))
	assert.Equal(t, 2, sess.Statements())

	require.NoError(t, sess.Commit())
	assert.ErrorIs(t, sess.Commit(), sql.ErrTxDone)
	assert.ErrorIs(t, sess.Rollback(), sql.ErrTxDone)
	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())

	assert.Equal(t, 4, rowCount(t, store, items))
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.BeginSession(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.GetTable(ctx, "items")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.WithSession(ctx, func(*Session) error { return nil }), ErrStoreClosed)
	assert.ErrorIs(t, store.Init(ctx), ErrStoreClosed)
}

func TestStoreNotInitialized(t *testing.T) {
	store, err := New("unused.db")
	require.NoError(t, err)

	_, err = store.ListTables(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
