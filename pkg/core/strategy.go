package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// Strategy selects how a batch of records is written
type Strategy int

const (
	// StrategySlow issues one statement per record, matched by predicate
	StrategySlow Strategy = iota
	// StrategyFast issues bulk statements keyed by primary key
	StrategyFast
)

// String returns the string representation of the strategy
func (s Strategy) String() string {
	switch s {
	case StrategyFast:
		return "fast"
	case StrategySlow:
		return "slow"
	default:
		return "unknown"
	}
}

// HasPrimaryKey reports whether the table declares at least one key column
func HasPrimaryKey(table TableHandle) bool {
	return table.HasPrimaryKey()
}

// ChooseMutationStrategy picks FAST for keyed tables and SLOW otherwise.
// The choice applies to a whole call.
func ChooseMutationStrategy(table TableHandle) Strategy {
	if HasPrimaryKey(table) {
		return StrategyFast
	}
	return StrategySlow
}

// mutator writes a batch of records with one strategy
type mutator interface {
	strategy() Strategy
	insert(ctx context.Context, exec Executor, table TableHandle, records []Record) error
	update(ctx context.Context, exec Executor, table TableHandle, records []Record) error
}

func newMutator(s Strategy, o mutationOptions, matchColumns []string) mutator {
	if s == StrategyFast {
		return fastMutator{opts: o}
	}
	return slowMutator{opts: o, match: matchColumns}
}

// fastMutator writes multi-row statements
type fastMutator struct {
	opts mutationOptions
}

func (fastMutator) strategy() Strategy { return StrategyFast }

func (m fastMutator) insert(ctx context.Context, exec Executor, table TableHandle, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	columns := records[0].Keys()
	if err := validateColumns(table, columns); err != nil {
		return err
	}
	signature := records[0].columnSet()
	for i, r := range records[1:] {
		if r.columnSet() != signature {
			return recordError(i+1, ErrNonUniformRecords)
		}
	}
	if err := checkInsertKeys(table, records[0]); err != nil {
		return err
	}

	if len(columns) == 0 {
		return insertDefaults(ctx, exec, table, len(records))
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = r.values[c]
		}
		rows[i] = row
	}

	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", qualifiedName(table), quoteList(columns))
	tuple := "(" + encoding.Placeholders(len(columns)) + ")"
	for _, batch := range batchRows(rows, len(columns), m.opts.maxParams) {
		query := head + strings.TrimSuffix(strings.Repeat(tuple+",", len(batch)), ",")
		if _, err := exec.ExecContext(ctx, query, flatten(batch)...); err != nil {
			return fmt.Errorf("failed to insert records: %w", err)
		}
	}
	return nil
}

// update writes one UPDATE ... FROM (VALUES ...) per run of consecutive
// records sharing a column set, in input order. Within a run, a repeated key
// keeps the last record.
func (m fastMutator) update(ctx context.Context, exec Executor, table TableHandle, records []Record) error {
	pk := table.PrimaryKeyColumns()
	if len(pk) == 0 {
		return ErrMissingPrimaryKey
	}

	type group struct {
		signature  string
		setColumns []string
		rows       [][]any
		byKey      map[string]int
	}
	var groups []*group

	for i, r := range records {
		for _, k := range pk {
			if !r.Has(k) {
				return recordError(i, columnError(table.Name(), k, ErrMissingPrimaryKeyValue))
			}
		}
		if err := validateColumns(table, r.keys); err != nil {
			return recordError(i, err)
		}

		set := r.Without(pk...)
		if set.Len() == 0 {
			continue
		}

		sig := r.columnSet()
		var g *group
		if n := len(groups); n > 0 && groups[n-1].signature == sig {
			g = groups[n-1]
		} else {
			g = &group{signature: sig, setColumns: set.Keys(), byKey: make(map[string]int)}
			groups = append(groups, g)
		}

		row := make([]any, 0, len(pk)+len(g.setColumns))
		for _, k := range pk {
			row = append(row, r.values[k])
		}
		for _, c := range g.setColumns {
			row = append(row, r.values[c])
		}

		key := keySignature(row[:len(pk)])
		if at, dup := g.byKey[key]; dup {
			g.rows[at] = row
			continue
		}
		g.byKey[key] = len(g.rows)
		g.rows = append(g.rows, row)
	}

	for _, g := range groups {
		width := len(pk) + len(g.setColumns)
		for _, batch := range batchRows(g.rows, width, m.opts.maxParams) {
			query := bulkUpdateSQL(table, pk, g.setColumns, len(batch))
			if _, err := exec.ExecContext(ctx, query, flatten(batch)...); err != nil {
				return fmt.Errorf("failed to update records: %w", err)
			}
		}
	}
	return nil
}

// bulkUpdateSQL renders
//
//	WITH "_v"("c0", ...) AS (VALUES (?, ...), ...)
//	UPDATE t AS "_t" SET "x" = "_v"."c2" FROM "_v" WHERE "_t"."id" = "_v"."c0"
func bulkUpdateSQL(table TableHandle, pk, setColumns []string, rows int) string {
	width := len(pk) + len(setColumns)
	aliases := make([]string, width)
	for i := range aliases {
		aliases[i] = fmt.Sprintf(`"c%d"`, i)
	}

	tuple := "(" + encoding.Placeholders(width) + ")"
	values := strings.TrimSuffix(strings.Repeat(tuple+",", rows), ",")

	sets := make([]string, len(setColumns))
	for i, c := range setColumns {
		sets[i] = fmt.Sprintf(`%s = "_v".%s`, encoding.QuoteIdent(c), aliases[len(pk)+i])
	}
	joins := make([]string, len(pk))
	for i, k := range pk {
		joins[i] = fmt.Sprintf(`"_t".%s = "_v".%s`, encoding.QuoteIdent(k), aliases[i])
	}

	return fmt.Sprintf(`WITH "_v"(%s) AS (VALUES %s) UPDATE %s AS "_t" SET %s FROM "_v" WHERE %s`,
		strings.Join(aliases, ", "), values, qualifiedName(table),
		strings.Join(sets, ", "), strings.Join(joins, " AND "))
}

// slowMutator writes one statement per record
type slowMutator struct {
	opts  mutationOptions
	match []string
}

func (slowMutator) strategy() Strategy { return StrategySlow }

func (m slowMutator) insert(ctx context.Context, exec Executor, table TableHandle, records []Record) error {
	for i, r := range records {
		if err := validateColumns(table, r.keys); err != nil {
			return recordError(i, err)
		}
		if r.Len() == 0 {
			if err := insertDefaults(ctx, exec, table, 1); err != nil {
				return recordError(i, err)
			}
			continue
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			qualifiedName(table), quoteList(r.keys), encoding.Placeholders(r.Len()))
		if _, err := exec.ExecContext(ctx, query, r.Values()...); err != nil {
			return recordError(i, fmt.Errorf("failed to insert record: %w", err))
		}
	}
	return nil
}

func (m slowMutator) update(ctx context.Context, exec Executor, table TableHandle, records []Record) error {
	if len(m.match) == 0 {
		return ErrEmptyPredicate
	}
	if err := validateColumns(table, m.match); err != nil {
		return err
	}

	for i, r := range records {
		pairs := make([]ColumnValue, 0, len(m.match))
		for _, c := range m.match {
			v, ok := r.Get(c)
			if !ok {
				return recordError(i, columnError(table.Name(), c, ErrMissingMatchValue))
			}
			pairs = append(pairs, ColumnValue{Column: c, Value: v})
		}
		pred, err := BuildPredicateFromPairs(table, pairs)
		if err != nil {
			return recordError(i, err)
		}

		set := r.Without(m.match...)
		if set.Len() == 0 {
			continue
		}
		if err := validateColumns(table, set.keys); err != nil {
			return recordError(i, err)
		}

		if err := m.opts.checkUnique(ctx, exec, table, pred); err != nil {
			return recordError(i, err)
		}

		where, whereArgs := pred.ToSQL()
		assignments := make([]string, set.Len())
		for j, c := range set.keys {
			assignments[j] = encoding.QuoteIdent(c) + " = ?"
		}
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", qualifiedName(table), strings.Join(assignments, ", "), where)
		args := append(set.Values(), whereArgs...)
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return recordError(i, fmt.Errorf("failed to update record: %w", err))
		}
	}
	return nil
}

// checkInsertKeys rejects bulk inserts that omit key columns SQLite cannot generate
func checkInsertKeys(table TableHandle, record Record) error {
	if isRowidAlias(table) {
		return nil
	}
	for _, k := range table.PrimaryKeyColumns() {
		if !record.Has(k) {
			return recordError(0, columnError(table.Name(), k, ErrMissingPrimaryKeyValue))
		}
	}
	return nil
}

func insertDefaults(ctx context.Context, exec Executor, table TableHandle, n int) error {
	query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", qualifiedName(table))
	for i := 0; i < n; i++ {
		if _, err := exec.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to insert default row: %w", err)
		}
	}
	return nil
}

// batchRows splits rows so each batch binds at most maxParams values
func batchRows(rows [][]any, width, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if width > 0 && maxParams > 0 {
		per = maxParams / width
		if per < 1 {
			per = 1
		}
	}

	var out [][][]any
	for i := 0; i < len(rows); i += per {
		end := i + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[i:end])
	}
	return out
}

func flatten(rows [][]any) []any {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	out := make([]any, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func quoteList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = encoding.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func keySignature(values []any) string {
	var b strings.Builder
	for _, v := range values {
		fmt.Fprintf(&b, "%T:%v\x00", v, v)
	}
	return b.String()
}
