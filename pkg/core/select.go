package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// SelectOption configures a record select
type SelectOption func(*selectOptions)

type selectOptions struct {
	columns []string
	sorted  bool
}

// WithColumns restricts the selected columns, in the given order
func WithColumns(columns ...string) SelectOption {
	return func(o *selectOptions) {
		o.columns = append([]string(nil), columns...)
	}
}

// Sorted orders keyless tables by rowid. Keyed tables are always read in
// primary key order.
func Sorted() SelectOption {
	return func(o *selectOptions) {
		o.sorted = true
	}
}

func sortedRequested(opts []SelectOption) bool {
	var o selectOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.sorted
}

func projection(table TableHandle, opts []SelectOption) ([]string, error) {
	var o selectOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.columns) == 0 {
		return Columns(table), nil
	}
	if err := validateColumns(table, o.columns); err != nil {
		return nil, err
	}
	return o.columns, nil
}

// selectSQL renders SELECT cols FROM table [WHERE ...] ORDER BY primary key.
// Tables without a key are read in storage order unless sorted is set.
func selectSQL(table TableHandle, columns []string, where string, sorted bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", quoteList(columns), qualifiedName(table))
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if pk := table.PrimaryKeyColumns(); len(pk) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(quoteList(pk))
	} else if sorted {
		b.WriteString(" ORDER BY rowid")
	}
	return b.String()
}

func scanValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	default:
		if nv, err := encoding.NormalizeValue(x); err == nil {
			return nv
		}
		return x
	}
}

func recordScanner(columns []string) func(*sql.Rows) ([]Record, error) {
	return func(rows *sql.Rows) ([]Record, error) {
		defer rows.Close()

		var out []Record
		dest := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return nil, fmt.Errorf("failed to scan row: %w", err)
			}
			var r Record
			for i, c := range columns {
				r.set(c, scanValue(dest[i]))
			}
			out = append(out, r)
		}
		return out, rows.Err()
	}
}

func valueScanner(rows *sql.Rows) ([]any, error) {
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out = append(out, scanValue(v))
	}
	return out, rows.Err()
}

func queryRecords(ctx context.Context, q Executor, columns []string, query string, args ...any) ([]Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return recordScanner(columns)(rows)
}

func queryValues(ctx context.Context, q Executor, query string, args ...any) ([]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	return valueScanner(rows)
}

// SelectAll returns every row, in primary key order when the table has one
func SelectAll(ctx context.Context, q Executor, table TableHandle, opts ...SelectOption) ([]Record, error) {
	columns, err := projection(table, opts)
	if err != nil {
		return nil, wrapError("select_all", err)
	}
	records, err := queryRecords(ctx, q, columns, selectSQL(table, columns, "", sortedRequested(opts)))
	if err != nil {
		return nil, wrapError("select_all", err)
	}
	return records, nil
}

// SelectChunks returns a lazy scan yielding at most chunkSize records per chunk.
// Keyless tables are paged in rowid order.
func SelectChunks(ctx context.Context, q Executor, table TableHandle, chunkSize int, opts ...SelectOption) (*Chunks[Record], error) {
	if chunkSize <= 0 {
		return nil, wrapError("select_chunks", ErrInvalidChunkSize)
	}
	columns, err := projection(table, opts)
	if err != nil {
		return nil, wrapError("select_chunks", err)
	}
	return newChunks(ctx, q, "select_chunks", selectSQL(table, columns, "", true), nil, chunkSize, recordScanner(columns)), nil
}

// resolveOffset counts rows and maps index onto an in-range offset
func resolveOffset(ctx context.Context, q Executor, table TableHandle, index int) (int, error) {
	n, err := RowCount(ctx, q, table)
	if err != nil {
		return 0, err
	}
	off := ResolveIndex(index, n)
	if off >= n {
		return 0, fmt.Errorf("%w: index %d with %d rows", ErrIndexOutOfRange, index, n)
	}
	return off, nil
}

// resolveRange counts rows and maps a slice onto offsets
func resolveRange(ctx context.Context, q Executor, table TableHandle, s Slice) (int, int, error) {
	n, err := RowCount(ctx, q, table)
	if err != nil {
		return 0, 0, err
	}
	start, stop := ResolveSlice(s, n)
	return start, stop, nil
}

// SelectByIndex returns the row at a signed index. The row count is read
// first through q; pass a Session to read both in one transaction.
func SelectByIndex(ctx context.Context, q Executor, table TableHandle, index int, opts ...SelectOption) (Record, error) {
	columns, err := projection(table, opts)
	if err != nil {
		return Record{}, wrapError("select_by_index", err)
	}
	off, err := resolveOffset(ctx, q, table, index)
	if err != nil {
		return Record{}, wrapError("select_by_index", err)
	}

	records, err := queryRecords(ctx, q, columns, selectSQL(table, columns, "", sortedRequested(opts))+" LIMIT 1 OFFSET ?", off)
	if err != nil {
		return Record{}, wrapError("select_by_index", err)
	}
	if len(records) == 0 {
		// the table shrank between the count and the fetch
		return Record{}, wrapError("select_by_index", fmt.Errorf("%w: index %d", ErrIndexOutOfRange, index))
	}
	return records[0], nil
}

// SelectBySlice returns rows [start, stop) after resolving the slice against the row count
func SelectBySlice(ctx context.Context, q Executor, table TableHandle, s Slice, opts ...SelectOption) ([]Record, error) {
	columns, err := projection(table, opts)
	if err != nil {
		return nil, wrapError("select_by_slice", err)
	}
	start, stop, err := resolveRange(ctx, q, table, s)
	if err != nil {
		return nil, wrapError("select_by_slice", err)
	}
	if start == stop {
		return []Record{}, nil
	}

	records, err := queryRecords(ctx, q, columns, selectSQL(table, columns, "", sortedRequested(opts))+" LIMIT ? OFFSET ?", stop-start, start)
	if err != nil {
		return nil, wrapError("select_by_slice", err)
	}
	return records, nil
}

// primaryKeyWhere renders "id IN (...)" for single keys and
// "(a, b) IN (VALUES ...)" for composite keys.
func primaryKeyWhere(table TableHandle, keys []Record) (string, []any, error) {
	pk := table.PrimaryKeyColumns()
	if len(pk) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrMissingPrimaryKey, table.Name())
	}

	for i, k := range keys {
		for _, c := range pk {
			if !k.Has(c) {
				return "", nil, recordError(i, columnError(table.Name(), c, ErrMissingPrimaryKeyValue))
			}
		}
		if err := validateColumns(table, k.keys); err != nil {
			return "", nil, recordError(i, err)
		}
	}

	if len(pk) == 1 {
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i], _ = k.Get(pk[0])
		}
		pred, err := BuildInPredicate(table, pk[0], values)
		if err != nil {
			return "", nil, err
		}
		where, args := pred.ToSQL()
		return where, args, nil
	}

	rows := make([][]any, len(keys))
	for i, k := range keys {
		row := make([]any, len(pk))
		for j, c := range pk {
			row[j], _ = k.Get(c)
		}
		rows[i] = row
	}
	where, args := inListSQL("("+quoteList(pk)+")", len(pk), rows, sqliteMaxParams)
	return where, args, nil
}

// SelectByPrimaryKeys returns the rows whose keys appear in keys, in key order
func SelectByPrimaryKeys(ctx context.Context, q Executor, table TableHandle, keys []Record, opts ...SelectOption) ([]Record, error) {
	columns, err := projection(table, opts)
	if err != nil {
		return nil, wrapError("select_by_primary_keys", err)
	}
	where, args, err := primaryKeyWhere(table, keys)
	if err != nil {
		return nil, wrapError("select_by_primary_keys", err)
	}
	records, err := queryRecords(ctx, q, columns, selectSQL(table, columns, where, false), args...)
	if err != nil {
		return nil, wrapError("select_by_primary_keys", err)
	}
	return records, nil
}

// SelectByPrimaryKey returns the single row with the given key
func SelectByPrimaryKey(ctx context.Context, q Executor, table TableHandle, key Record, opts ...SelectOption) (Record, error) {
	records, err := SelectByPrimaryKeys(ctx, q, table, []Record{key}, opts...)
	if err != nil {
		return Record{}, wrapError("select_by_primary_key", err)
	}
	if len(records) == 0 {
		return Record{}, wrapError("select_by_primary_key", fmt.Errorf("%w: %s", ErrNotFound, key))
	}
	return records[0], nil
}

// SelectColumnValuesAll returns one column of every row
func SelectColumnValuesAll(ctx context.Context, q Executor, table TableHandle, column string) ([]any, error) {
	if err := validateColumns(table, []string{column}); err != nil {
		return nil, wrapError("select_column_values_all", err)
	}
	values, err := queryValues(ctx, q, selectSQL(table, []string{column}, "", false))
	if err != nil {
		return nil, wrapError("select_column_values_all", err)
	}
	return values, nil
}

// SelectColumnValuesChunks lazily scans one column in fixed-size chunks
func SelectColumnValuesChunks(ctx context.Context, q Executor, table TableHandle, column string, chunkSize int) (*Chunks[any], error) {
	if chunkSize <= 0 {
		return nil, wrapError("select_column_values_chunks", ErrInvalidChunkSize)
	}
	if err := validateColumns(table, []string{column}); err != nil {
		return nil, wrapError("select_column_values_chunks", err)
	}
	return newChunks(ctx, q, "select_column_values_chunks", selectSQL(table, []string{column}, "", true), nil, chunkSize, valueScanner), nil
}

// SelectColumnValuesBySlice returns one column of rows [start, stop)
func SelectColumnValuesBySlice(ctx context.Context, q Executor, table TableHandle, column string, s Slice) ([]any, error) {
	records, err := SelectBySlice(ctx, q, table, s, WithColumns(column))
	if err != nil {
		return nil, wrapError("select_column_values_by_slice", err)
	}
	return columnOf(records, column), nil
}

// SelectColumnValueByIndex returns one column of the row at a signed index
func SelectColumnValueByIndex(ctx context.Context, q Executor, table TableHandle, column string, index int) (any, error) {
	r, err := SelectByIndex(ctx, q, table, index, WithColumns(column))
	if err != nil {
		return nil, wrapError("select_column_value_by_index", err)
	}
	v, _ := r.Get(column)
	return v, nil
}

// SelectColumnValuesByPrimaryKeys returns one column of the rows with the given keys
func SelectColumnValuesByPrimaryKeys(ctx context.Context, q Executor, table TableHandle, column string, keys []Record) ([]any, error) {
	records, err := SelectByPrimaryKeys(ctx, q, table, keys, WithColumns(column))
	if err != nil {
		return nil, wrapError("select_column_values_by_primary_keys", err)
	}
	return columnOf(records, column), nil
}

// SelectValueByPrimaryKey returns one column of the row with the given key
func SelectValueByPrimaryKey(ctx context.Context, q Executor, table TableHandle, column string, key Record) (any, error) {
	r, err := SelectByPrimaryKey(ctx, q, table, key, WithColumns(column))
	if err != nil {
		return nil, wrapError("select_value_by_primary_key", err)
	}
	v, _ := r.Get(column)
	return v, nil
}

// SelectExistingValues returns the distinct values of column that appear in values
func SelectExistingValues(ctx context.Context, q Executor, table TableHandle, column string, values []any) ([]any, error) {
	pred, err := BuildInPredicate(table, column, values)
	if err != nil {
		return nil, wrapError("select_existing_values", err)
	}
	where, args := pred.ToSQL()
	col := encoding.QuoteIdent(column)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s ORDER BY %s", col, qualifiedName(table), where, col)
	out, err := queryValues(ctx, q, query, args...)
	if err != nil {
		return nil, wrapError("select_existing_values", err)
	}
	return out, nil
}

func columnOf(records []Record, column string) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i], _ = r.Get(column)
	}
	return out
}
