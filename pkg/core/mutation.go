package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// MutationOption configures a session-scoped mutation
type MutationOption func(*mutationOptions)

type mutationOptions struct {
	policy    MatchPolicy
	maxParams int
	logger    Logger
}

func defaultMutationOptions() mutationOptions {
	return mutationOptions{
		policy:    MatchUnique,
		maxParams: sqliteMaxParams,
		logger:    NopLogger(),
	}
}

// WithMatchPolicy sets how per-record predicates that match several rows are handled
func WithMatchPolicy(p MatchPolicy) MutationOption {
	return func(o *mutationOptions) {
		o.policy = p
	}
}

// WithMaxParams caps the bound parameters of one bulk statement
func WithMaxParams(n int) MutationOption {
	return func(o *mutationOptions) {
		if n > 0 && n <= sqliteMaxParams {
			o.maxParams = n
		}
	}
}

// WithMutationLogger logs strategy decisions and statement counts
func WithMutationLogger(l Logger) MutationOption {
	return func(o *mutationOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyMutationOptions(opts []MutationOption) mutationOptions {
	o := defaultMutationOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// checkUnique fails with ErrAmbiguousMatch when the predicate matches more than one row
func (o mutationOptions) checkUnique(ctx context.Context, q Executor, table TableHandle, pred Predicate) error {
	if o.policy == MatchPermissive {
		return nil
	}
	where, args := pred.ToSQL()
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s WHERE %s LIMIT 2)", qualifiedName(table), where)
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return fmt.Errorf("failed to check match uniqueness: %w", err)
	}
	if n > 1 {
		return fmt.Errorf("%w: %s", ErrAmbiguousMatch, pred)
	}
	return nil
}

// InsertRecords inserts records in input order. Keyed tables get one bulk
// INSERT (split only past the parameter limit); other tables get one INSERT
// per record. The session is not committed.
func InsertRecords(ctx context.Context, exec Executor, table TableHandle, records []Record, opts ...MutationOption) error {
	o := applyMutationOptions(opts)
	m := newMutator(ChooseMutationStrategy(table), o, nil)

	o.logger.Debug("insert records", "table", table.Name(), "strategy", m.strategy(), "records", len(records))
	if err := m.insert(ctx, exec, table, records); err != nil {
		return wrapError("insert_records", err)
	}
	return nil
}

// UpdateMatchingRecords updates each record's non-match columns on the rows
// whose matchColumns equal the record's values. When matchColumns is exactly
// the primary key the bulk keyed path is used.
func UpdateMatchingRecords(ctx context.Context, exec Executor, table TableHandle, matchColumns []string, records []Record, opts ...MutationOption) error {
	o := applyMutationOptions(opts)

	strategy := StrategySlow
	if table.HasPrimaryKey() && sameColumns(matchColumns, table.PrimaryKeyColumns()) {
		strategy = StrategyFast
	}
	m := newMutator(strategy, o, matchColumns)

	o.logger.Debug("update matching records", "table", table.Name(), "strategy", m.strategy(), "records", len(records))
	if err := m.update(ctx, exec, table, records); err != nil {
		return wrapError("update_matching_records", err)
	}
	return nil
}

// UpdateRecords updates records by primary key on keyed tables. Tables
// without a key need matchColumns, otherwise ErrMissingPrimaryKey.
func UpdateRecords(ctx context.Context, exec Executor, table TableHandle, records []Record, matchColumns []string, opts ...MutationOption) error {
	o := applyMutationOptions(opts)

	if ChooseMutationStrategy(table) == StrategySlow || (len(matchColumns) > 0 && !sameColumns(matchColumns, table.PrimaryKeyColumns())) {
		if len(matchColumns) == 0 {
			return wrapError("update_records", fmt.Errorf("%w: %s and no match columns given", ErrMissingPrimaryKey, table.Name()))
		}
		return UpdateMatchingRecords(ctx, exec, table, matchColumns, records, opts...)
	}

	m := newMutator(StrategyFast, o, nil)
	o.logger.Debug("update records", "table", table.Name(), "strategy", m.strategy(), "records", len(records))
	if err := m.update(ctx, exec, table, records); err != nil {
		return wrapError("update_records", err)
	}
	return nil
}

// SetColumnValues sets one column to one value on every row with a single statement
func SetColumnValues(ctx context.Context, exec Executor, table TableHandle, column string, value any) error {
	if !table.HasColumn(column) {
		return wrapError("set_column_values", columnError(table.Name(), column, ErrInvalidColumn))
	}
	v, err := encoding.NormalizeValue(value)
	if err != nil {
		return wrapError("set_column_values", err)
	}

	query := fmt.Sprintf("UPDATE %s SET %s = ?", qualifiedName(table), encoding.QuoteIdent(column))
	if _, err := exec.ExecContext(ctx, query, v); err != nil {
		return wrapError("set_column_values", fmt.Errorf("failed to set column values: %w", err))
	}
	return nil
}

// DeleteRecords deletes every row whose column value is in values, in one statement
func DeleteRecords(ctx context.Context, exec Executor, table TableHandle, column string, values []any) error {
	pred, err := BuildInPredicate(table, column, values)
	if err != nil {
		return wrapError("delete_records", err)
	}
	if len(values) == 0 {
		return nil
	}

	where, args := pred.ToSQL()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", qualifiedName(table), where)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return wrapError("delete_records", fmt.Errorf("failed to delete records: %w", err))
	}
	return nil
}

// DeleteRecordsByValues deletes the row each record describes, one statement per record
func DeleteRecordsByValues(ctx context.Context, exec Executor, table TableHandle, records []Record, opts ...MutationOption) error {
	o := applyMutationOptions(opts)
	o.logger.Debug("delete records by values", "table", table.Name(), "records", len(records), "policy", o.policy)

	for i, r := range records {
		pred, err := BuildDeletePredicate(table, r)
		if err != nil {
			return wrapError("delete_records_by_values", recordError(i, err))
		}
		if err := o.checkUnique(ctx, exec, table, pred); err != nil {
			return wrapError("delete_records_by_values", recordError(i, err))
		}

		where, args := pred.ToSQL()
		query := fmt.Sprintf("DELETE FROM %s WHERE %s", qualifiedName(table), where)
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return wrapError("delete_records_by_values", recordError(i, fmt.Errorf("failed to delete record: %w", err)))
		}
	}
	return nil
}

// DeleteAllRecords deletes every row with one statement
func DeleteAllRecords(ctx context.Context, exec Executor, table TableHandle) error {
	query := fmt.Sprintf("DELETE FROM %s", qualifiedName(table))
	if _, err := exec.ExecContext(ctx, query); err != nil {
		return wrapError("delete_all_records", fmt.Errorf("failed to delete all records: %w", err))
	}
	return nil
}

// InsertFromTable copies every row of source into destination with one
// INSERT ... SELECT over the destination columns source also has.
func InsertFromTable(ctx context.Context, exec Executor, source, destination TableHandle) error {
	var shared []string
	for _, c := range Columns(destination) {
		if source.HasColumn(c) {
			shared = append(shared, c)
		}
	}
	if len(shared) == 0 {
		return wrapError("insert_from_table", fmt.Errorf("%w: %s, %s", ErrIncompatibleTables, source.Name(), destination.Name()))
	}

	cols := quoteList(shared)
	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		qualifiedName(destination), cols, cols, qualifiedName(source))
	if _, err := exec.ExecContext(ctx, query); err != nil {
		return wrapError("insert_from_table", fmt.Errorf("failed to copy rows: %w", err))
	}
	return nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
