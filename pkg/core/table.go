package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// Column describes one column of a table
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"notNull,omitempty"`
	PrimaryKey int    `json:"primaryKey,omitempty"` // 1-based position in the primary key, 0 if not a key column
}

// TableHandle is the read-only view of a table the record operations need
type TableHandle interface {
	// Schema returns the attached database name, empty for main
	Schema() string
	// Name returns the table name
	Name() string
	// Columns returns the columns in declaration order
	Columns() []Column
	// PrimaryKeyColumns returns the key column names in key order
	PrimaryKeyColumns() []string
	// HasPrimaryKey reports whether the table declares a primary key
	HasPrimaryKey() bool
	// HasColumn reports whether the table has the named column
	HasColumn(name string) bool
}

// Table is a reflected table schema
type Table struct {
	schema  string
	name    string
	columns []Column
	pk      []string
	index   map[string]int

	withoutRowid bool
}

// NewTable builds a table handle from column definitions
func NewTable(schema, name string, columns []Column) *Table {
	t := &Table{
		schema:  schema,
		name:    name,
		columns: append([]Column(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}

	keyed := make([]Column, 0, 1)
	for i, c := range t.columns {
		t.index[c.Name] = i
		if c.PrimaryKey > 0 {
			keyed = append(keyed, c)
		}
	}
	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].PrimaryKey < keyed[j].PrimaryKey })
	for _, c := range keyed {
		t.pk = append(t.pk, c.Name)
	}

	return t
}

func (t *Table) Schema() string { return t.schema }
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column list
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// PrimaryKeyColumns returns a copy of the key column names
func (t *Table) PrimaryKeyColumns() []string {
	return append([]string(nil), t.pk...)
}

func (t *Table) HasPrimaryKey() bool { return len(t.pk) > 0 }

// WithoutRowid reports whether the table was created WITHOUT ROWID
func (t *Table) WithoutRowid() bool { return t.withoutRowid }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column
func (t *Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, columnError(t.name, name, ErrInvalidColumn)
	}
	return t.columns[i], nil
}

// String returns the qualified table name
func (t *Table) String() string {
	if t.schema == "" {
		return t.name
	}
	return t.schema + "." + t.name
}

// GetTable reflects a table's columns and primary key
func GetTable(ctx context.Context, q Executor, schema, name string) (*Table, error) {
	query := `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`
	args := []any{name}
	if schema != "" {
		query = `SELECT name, type, "notnull", pk FROM pragma_table_info(?, ?)`
		args = append(args, schema)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("get_table", fmt.Errorf("failed to read table info: %w", err))
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		var notNull int
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &c.PrimaryKey); err != nil {
			return nil, wrapError("get_table", fmt.Errorf("failed to scan column: %w", err))
		}
		c.NotNull = notNull != 0
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("get_table", err)
	}
	if len(columns) == 0 {
		return nil, wrapError("get_table", fmt.Errorf("%w: %s", ErrTableNotFound, name))
	}

	t := NewTable(schema, name, columns)
	if t.withoutRowid, err = withoutRowid(ctx, q, schema, name); err != nil {
		return nil, wrapError("get_table", err)
	}
	return t, nil
}

// withoutRowid reads the WITHOUT ROWID flag from pragma_table_list. An
// unqualified name resolves the way SQLite does: temp, then main.
func withoutRowid(ctx context.Context, q Executor, schema, name string) (bool, error) {
	query := `SELECT wr FROM pragma_table_list WHERE name = ? AND (schema = ? OR ? = '') ORDER BY schema = 'temp' DESC, schema = 'main' DESC LIMIT 1`
	var wr int
	err := q.QueryRowContext(ctx, query, name, schema, schema).Scan(&wr)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read table list: %w", err)
	}
	return wr != 0, nil
}

// Columns returns a table's column names in declaration order
func Columns(table TableHandle) []string {
	cols := table.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// ColumnTypes maps column names to their declared types
func ColumnTypes(table TableHandle) map[string]string {
	out := make(map[string]string)
	for _, c := range table.Columns() {
		out[c.Name] = c.Type
	}
	return out
}

// PrimaryKeyColumns returns the table's key columns in key order
func PrimaryKeyColumns(table TableHandle) []string {
	return table.PrimaryKeyColumns()
}

// MissingPrimaryKey reports whether the table has no primary key
func MissingPrimaryKey(table TableHandle) bool {
	return !table.HasPrimaryKey()
}

// TablesMetadataEqual compares two tables by name and primary key columns
func TablesMetadataEqual(a, b TableHandle) bool {
	if a.Name() != b.Name() {
		return false
	}
	ka, kb := a.PrimaryKeyColumns(), b.PrimaryKeyColumns()
	sort.Strings(ka)
	sort.Strings(kb)
	return strings.Join(ka, "\x00") == strings.Join(kb, "\x00")
}

// ConstraintKind identifies a table constraint
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "PRIMARY KEY"
	ConstraintUnique     ConstraintKind = "UNIQUE"
	ConstraintForeignKey ConstraintKind = "FOREIGN KEY"
)

// Constraint is a reflected table constraint
type Constraint struct {
	Kind       ConstraintKind `json:"kind"`
	Name       string         `json:"name,omitempty"`
	Columns    []string       `json:"columns"`
	References string         `json:"references,omitempty"` // referenced table for foreign keys
}

// TableConstraints lists primary key, unique and foreign key constraints
func TableConstraints(ctx context.Context, q Executor, table TableHandle) ([]Constraint, error) {
	var out []Constraint
	if table.HasPrimaryKey() {
		out = append(out, Constraint{Kind: ConstraintPrimaryKey, Columns: table.PrimaryKeyColumns()})
	}

	unique, err := uniqueConstraints(ctx, q, table)
	if err != nil {
		return nil, wrapError("table_constraints", err)
	}
	out = append(out, unique...)

	foreign, err := foreignKeyConstraints(ctx, q, table)
	if err != nil {
		return nil, wrapError("table_constraints", err)
	}
	return append(out, foreign...), nil
}

// PrimaryKeyConstraint returns the key columns, or ErrMissingPrimaryKey
func PrimaryKeyConstraint(table TableHandle) ([]string, error) {
	if !table.HasPrimaryKey() {
		return nil, wrapError("primary_key_constraint", fmt.Errorf("%w: %s", ErrMissingPrimaryKey, table.Name()))
	}
	return table.PrimaryKeyColumns(), nil
}

func pragmaArgs(table TableHandle) (string, []any) {
	if table.Schema() != "" {
		return "?, ?", []any{table.Name(), table.Schema()}
	}
	return "?", []any{table.Name()}
}

func uniqueConstraints(ctx context.Context, q Executor, table TableHandle) ([]Constraint, error) {
	placeholders, args := pragmaArgs(table)
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT name FROM pragma_index_list(%s) WHERE "unique" = 1 AND origin = 'u' ORDER BY seq`, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]Constraint, 0, len(names))
	for _, name := range names {
		idxArgs := []any{name}
		query := `SELECT name FROM pragma_index_info(?) ORDER BY seqno`
		if table.Schema() != "" {
			query = `SELECT name FROM pragma_index_info(?, ?) ORDER BY seqno`
			idxArgs = append(idxArgs, table.Schema())
		}
		cols, err := scanStrings(ctx, q, query, idxArgs...)
		if err != nil {
			return nil, err
		}
		out = append(out, Constraint{Kind: ConstraintUnique, Name: name, Columns: cols})
	}
	return out, nil
}

func foreignKeyConstraints(ctx context.Context, q Executor, table TableHandle) ([]Constraint, error) {
	placeholders, args := pragmaArgs(table)
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, "table", "from" FROM pragma_foreign_key_list(%s) ORDER BY id, seq`, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys: %w", err)
	}
	defer rows.Close()

	var out []Constraint
	lastID := -1
	for rows.Next() {
		var id int
		var ref, from string
		if err := rows.Scan(&id, &ref, &from); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if id != lastID {
			out = append(out, Constraint{Kind: ConstraintForeignKey, References: ref})
			lastID = id
		}
		out[len(out)-1].Columns = append(out[len(out)-1].Columns, from)
	}
	return out, rows.Err()
}

// ListTables returns the user tables of a schema in name order
func ListTables(ctx context.Context, q Executor, schema string) ([]string, error) {
	master := "sqlite_master"
	if schema != "" {
		master = encoding.QuoteIdent(schema) + ".sqlite_master"
	}
	names, err := scanStrings(ctx, q,
		fmt.Sprintf(`SELECT name FROM %s WHERE type = 'table' AND name NOT LIKE 'sqlite_%%' ORDER BY name`, master))
	if err != nil {
		return nil, wrapError("list_tables", err)
	}
	return names, nil
}

// ListSchemas returns the attached database names
func ListSchemas(ctx context.Context, q Executor) ([]string, error) {
	names, err := scanStrings(ctx, q, `SELECT name FROM pragma_database_list ORDER BY seq`)
	if err != nil {
		return nil, wrapError("list_schemas", err)
	}
	return names, nil
}

// RowCount counts the rows of a table through the given executor.
// Pass a Session to read the count inside the caller's transaction.
func RowCount(ctx context.Context, q Executor, table TableHandle) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualifiedName(table))
	if err := q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, wrapError("row_count", fmt.Errorf("failed to count rows: %w", err))
	}
	return n, nil
}

func scanStrings(ctx context.Context, q Executor, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s.String)
	}
	return out, rows.Err()
}

// qualifiedName renders "schema"."table" for SQL text
func qualifiedName(table TableHandle) string {
	if table.Schema() == "" {
		return encoding.QuoteIdent(table.Name())
	}
	return encoding.QuoteIdent(table.Schema()) + "." + encoding.QuoteIdent(table.Name())
}

// validateColumns checks every name against the table
func validateColumns(table TableHandle, columns []string) error {
	for _, c := range columns {
		if !table.HasColumn(c) {
			return columnError(table.Name(), c, ErrInvalidColumn)
		}
	}
	return nil
}

// isRowidAlias reports whether the table's single key column is an INTEGER PRIMARY KEY,
// which SQLite fills in when omitted. WITHOUT ROWID tables have no alias.
func isRowidAlias(table TableHandle) bool {
	if wr, ok := table.(interface{ WithoutRowid() bool }); ok && wr.WithoutRowid() {
		return false
	}
	pk := table.PrimaryKeyColumns()
	if len(pk) != 1 {
		return false
	}
	for _, c := range table.Columns() {
		if c.Name == pk[0] {
			return strings.EqualFold(strings.TrimSpace(c.Type), "INTEGER")
		}
	}
	return false
}
