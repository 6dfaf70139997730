package sqrecord

import (
	"context"
	"io"

	"github.com/liliang-cn/sqrecord/pkg/core"
)

// Table is a reflected table whose methods each run in their own transaction
type Table struct {
	db    *DB
	table *core.Table
}

// Name returns the table name
func (t *Table) Name() string {
	return t.table.Name()
}

// Handle returns the reflected schema for use with package core
func (t *Table) Handle() *core.Table {
	return t.table
}

// Columns returns the column names in declaration order
func (t *Table) Columns() []string {
	return core.Columns(t.table)
}

// PrimaryKey returns the key column names in key order
func (t *Table) PrimaryKey() []string {
	return t.table.PrimaryKeyColumns()
}

// Strategy returns the write strategy mutations on this table use
func (t *Table) Strategy() core.Strategy {
	return core.ChooseMutationStrategy(t.table)
}

// Refresh re-reads the table schema
func (t *Table) Refresh(ctx context.Context) error {
	fresh, err := t.db.store.GetTable(ctx, t.table.Name())
	if err != nil {
		return err
	}
	t.table = fresh
	return nil
}

func (t *Table) mutationOptions(opts []core.MutationOption) []core.MutationOption {
	return append(t.db.store.MutationOptions(), opts...)
}

// run executes fn in an auto-committed session
func (t *Table) run(ctx context.Context, fn func(*core.Session) error) error {
	return t.db.Session(ctx, fn)
}

// InsertRecords inserts records and commits
func (t *Table) InsertRecords(ctx context.Context, records []core.Record, opts ...core.MutationOption) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.InsertRecords(ctx, s, t.table, records, t.mutationOptions(opts)...)
	})
}

// UpdateRecords updates records by primary key, or by matchColumns on keyless tables, and commits
func (t *Table) UpdateRecords(ctx context.Context, records []core.Record, matchColumns []string, opts ...core.MutationOption) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.UpdateRecords(ctx, s, t.table, records, matchColumns, t.mutationOptions(opts)...)
	})
}

// UpdateMatchingRecords updates the rows matching each record on matchColumns and commits
func (t *Table) UpdateMatchingRecords(ctx context.Context, matchColumns []string, records []core.Record, opts ...core.MutationOption) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.UpdateMatchingRecords(ctx, s, t.table, matchColumns, records, t.mutationOptions(opts)...)
	})
}

// SetColumnValues sets column to value on every row and commits
func (t *Table) SetColumnValues(ctx context.Context, column string, value any) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.SetColumnValues(ctx, s, t.table, column, value)
	})
}

// DeleteRecords deletes the rows whose column is in values and commits
func (t *Table) DeleteRecords(ctx context.Context, column string, values []any) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.DeleteRecords(ctx, s, t.table, column, values)
	})
}

// DeleteRecordsByValues deletes the row each record describes and commits
func (t *Table) DeleteRecordsByValues(ctx context.Context, records []core.Record, opts ...core.MutationOption) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.DeleteRecordsByValues(ctx, s, t.table, records, t.mutationOptions(opts)...)
	})
}

// DeleteAllRecords empties the table and commits
func (t *Table) DeleteAllRecords(ctx context.Context) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.DeleteAllRecords(ctx, s, t.table)
	})
}

// InsertFromTable copies every row of source into t and commits
func (t *Table) InsertFromTable(ctx context.Context, source *Table) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.InsertFromTable(ctx, s, source.table, t.table)
	})
}

// Copy creates newName with the same columns, key and rows
func (t *Table) Copy(ctx context.Context, newName string, ifExists core.IfExists) (*Table, error) {
	var copied *core.Table
	err := t.run(ctx, func(s *core.Session) error {
		var err error
		copied, err = core.CopyTable(ctx, s, t.table, newName, ifExists)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Table{db: t.db, table: copied}, nil
}

// Drop drops the table
func (t *Table) Drop(ctx context.Context) error {
	return t.run(ctx, func(s *core.Session) error {
		return core.DropTable(ctx, s, t.table.Schema(), t.table.Name(), false)
	})
}

// RowCount counts the rows
func (t *Table) RowCount(ctx context.Context) (int, error) {
	return t.db.store.RowCount(ctx, t.table)
}

// Constraints lists the primary key, unique and foreign key constraints
func (t *Table) Constraints(ctx context.Context) ([]core.Constraint, error) {
	return core.TableConstraints(ctx, t.db.store.DB(), t.table)
}

// SelectAll returns every row
func (t *Table) SelectAll(ctx context.Context, opts ...core.SelectOption) ([]core.Record, error) {
	return core.SelectAll(ctx, t.db.store.DB(), t.table, opts...)
}

// SelectChunks returns a lazy scan over the table. It reads outside of any
// transaction, so concurrent writes may shift rows between chunks.
func (t *Table) SelectChunks(ctx context.Context, chunkSize int, opts ...core.SelectOption) (*core.Chunks[core.Record], error) {
	return core.SelectChunks(ctx, t.db.store.DB(), t.table, chunkSize, opts...)
}

// SelectByIndex returns the row at a signed index. The row count and the
// fetch share one transaction.
func (t *Table) SelectByIndex(ctx context.Context, index int, opts ...core.SelectOption) (core.Record, error) {
	var r core.Record
	err := t.run(ctx, func(s *core.Session) error {
		var err error
		r, err = core.SelectByIndex(ctx, s, t.table, index, opts...)
		return err
	})
	return r, err
}

// SelectBySlice returns the rows of a signed half-open range
func (t *Table) SelectBySlice(ctx context.Context, slice core.Slice, opts ...core.SelectOption) ([]core.Record, error) {
	var records []core.Record
	err := t.run(ctx, func(s *core.Session) error {
		var err error
		records, err = core.SelectBySlice(ctx, s, t.table, slice, opts...)
		return err
	})
	return records, err
}

// SelectByPrimaryKey returns the row with the given key
func (t *Table) SelectByPrimaryKey(ctx context.Context, key core.Record, opts ...core.SelectOption) (core.Record, error) {
	return core.SelectByPrimaryKey(ctx, t.db.store.DB(), t.table, key, opts...)
}

// SelectByPrimaryKeys returns the rows with the given keys
func (t *Table) SelectByPrimaryKeys(ctx context.Context, keys []core.Record, opts ...core.SelectOption) ([]core.Record, error) {
	return core.SelectByPrimaryKeys(ctx, t.db.store.DB(), t.table, keys, opts...)
}

// SelectColumnValues returns one column of every row
func (t *Table) SelectColumnValues(ctx context.Context, column string) ([]any, error) {
	return core.SelectColumnValuesAll(ctx, t.db.store.DB(), t.table, column)
}

// SelectColumnValuesChunks returns a lazy scan over one column
func (t *Table) SelectColumnValuesChunks(ctx context.Context, column string, chunkSize int) (*core.Chunks[any], error) {
	return core.SelectColumnValuesChunks(ctx, t.db.store.DB(), t.table, column, chunkSize)
}

// SelectColumnValueByIndex returns one column of the row at a signed index
func (t *Table) SelectColumnValueByIndex(ctx context.Context, column string, index int) (any, error) {
	var v any
	err := t.run(ctx, func(s *core.Session) error {
		var err error
		v, err = core.SelectColumnValueByIndex(ctx, s, t.table, column, index)
		return err
	})
	return v, err
}

// SelectColumnValuesBySlice returns one column of a signed half-open range
func (t *Table) SelectColumnValuesBySlice(ctx context.Context, column string, slice core.Slice) ([]any, error) {
	var values []any
	err := t.run(ctx, func(s *core.Session) error {
		var err error
		values, err = core.SelectColumnValuesBySlice(ctx, s, t.table, column, slice)
		return err
	})
	return values, err
}

// SelectColumnValuesByPrimaryKeys returns one column of the rows with the given keys
func (t *Table) SelectColumnValuesByPrimaryKeys(ctx context.Context, column string, keys []core.Record) ([]any, error) {
	return core.SelectColumnValuesByPrimaryKeys(ctx, t.db.store.DB(), t.table, column, keys)
}

// SelectValueByPrimaryKey returns one column of the row with the given key
func (t *Table) SelectValueByPrimaryKey(ctx context.Context, column string, key core.Record) (any, error) {
	return core.SelectValueByPrimaryKey(ctx, t.db.store.DB(), t.table, column, key)
}

// SelectExistingValues returns which of values appear in column
func (t *Table) SelectExistingValues(ctx context.Context, column string, values []any) ([]any, error) {
	return core.SelectExistingValues(ctx, t.db.store.DB(), t.table, column, values)
}

// Dump writes the table to w from a single read transaction
func (t *Table) Dump(ctx context.Context, w io.Writer, opts core.DumpOptions) (*core.DumpStats, error) {
	var stats *core.DumpStats
	err := t.run(ctx, func(s *core.Session) error {
		var err error
		stats, err = core.Dump(ctx, s, t.table, w, opts)
		return err
	})
	return stats, err
}

// Load inserts the records read from r; nothing is kept if any record fails
func (t *Table) Load(ctx context.Context, r io.Reader, opts core.LoadOptions) (*core.LoadStats, error) {
	opts.Mutation = t.mutationOptions(opts.Mutation)
	var stats *core.LoadStats
	err := t.run(ctx, func(s *core.Session) error {
		var err error
		stats, err = core.Load(ctx, s, t.table, r, opts)
		return err
	})
	return stats, err
}
