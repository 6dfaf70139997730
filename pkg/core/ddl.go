package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// IfExists decides what CreateTable does when the table already exists
type IfExists int

const (
	// IfExistsFail returns the driver's "table already exists" error
	IfExistsFail IfExists = iota
	// IfExistsReplace drops the existing table first
	IfExistsReplace
	// IfExistsSkip keeps the existing table untouched
	IfExistsSkip
)

// ColumnDef declares a column for CreateTable
type ColumnDef struct {
	Name    string
	Type    string
	NotNull bool
	Unique  bool
}

// CreateTable creates a table and returns its reflected handle
func CreateTable(ctx context.Context, exec Executor, schema, name string, columns []ColumnDef, primaryKey []string, ifExists IfExists) (*Table, error) {
	if len(columns) == 0 {
		return nil, wrapError("create_table", fmt.Errorf("%w: table %s needs at least one column", ErrInvalidConfig, name))
	}
	declared := make(map[string]bool, len(columns))
	for _, c := range columns {
		declared[c.Name] = true
	}
	for _, k := range primaryKey {
		if !declared[k] {
			return nil, wrapError("create_table", columnError(name, k, ErrInvalidColumn))
		}
	}

	target := tableRef{schema: schema, name: name}
	switch ifExists {
	case IfExistsReplace:
		if err := DropTable(ctx, exec, schema, name, true); err != nil {
			return nil, wrapError("create_table", err)
		}
	case IfExistsSkip:
		if t, err := GetTable(ctx, exec, schema, name); err == nil {
			return t, nil
		} else if !errors.Is(err, ErrTableNotFound) {
			return nil, wrapError("create_table", err)
		}
	}

	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		typ := c.Type
		if typ == "" {
			typ = encoding.TypeText
		}
		def := encoding.QuoteIdent(c.Name) + " " + typ
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		defs = append(defs, def)
	}
	if len(primaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteList(primaryKey)))
	}

	query := fmt.Sprintf("CREATE TABLE %s (%s)", qualifiedName(target), strings.Join(defs, ", "))
	if _, err := exec.ExecContext(ctx, query); err != nil {
		return nil, wrapError("create_table", fmt.Errorf("failed to create table: %w", err))
	}

	return GetTable(ctx, exec, schema, name)
}

// CreateTableFromRecords creates a table whose columns and types are inferred
// from the records, then inserts them. Columns missing from a record are NULL.
func CreateTableFromRecords(ctx context.Context, exec Executor, schema, name string, records []Record, primaryKey []string, ifExists IfExists) (*Table, error) {
	var order []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}

	defs := make([]ColumnDef, len(order))
	for i, c := range order {
		values := make([]any, len(records))
		for j, r := range records {
			values[j], _ = r.Get(c)
		}
		defs[i] = ColumnDef{Name: c, Type: encoding.InferColumnType(values)}
	}

	table, err := CreateTable(ctx, exec, schema, name, defs, primaryKey, ifExists)
	if err != nil {
		return nil, err
	}

	filled := make([]Record, len(records))
	for i, r := range records {
		var full Record
		for _, c := range order {
			v, _ := r.Get(c)
			full.set(c, v)
		}
		filled[i] = full
	}
	if err := InsertRecords(ctx, exec, table, filled); err != nil {
		return nil, wrapError("create_table_from_records", err)
	}
	return table, nil
}

// DropTable drops a table
func DropTable(ctx context.Context, exec Executor, schema, name string, ifExists bool) error {
	clause := ""
	if ifExists {
		clause = "IF EXISTS "
	}
	query := fmt.Sprintf("DROP TABLE %s%s", clause, qualifiedName(tableRef{schema: schema, name: name}))
	if _, err := exec.ExecContext(ctx, query); err != nil {
		return wrapError("drop_table", fmt.Errorf("failed to drop table: %w", err))
	}
	return nil
}

// CopyTable creates newName with the source's columns and key, then copies every row
func CopyTable(ctx context.Context, exec Executor, source TableHandle, newName string, ifExists IfExists) (*Table, error) {
	cols := source.Columns()
	defs := make([]ColumnDef, len(cols))
	for i, c := range cols {
		defs[i] = ColumnDef{Name: c.Name, Type: c.Type, NotNull: c.NotNull}
	}

	dest, err := CreateTable(ctx, exec, source.Schema(), newName, defs, source.PrimaryKeyColumns(), ifExists)
	if err != nil {
		return nil, wrapError("copy_table", err)
	}
	if err := InsertFromTable(ctx, exec, source, dest); err != nil {
		return nil, wrapError("copy_table", err)
	}
	return dest, nil
}

// tableRef names a table that has not been reflected yet
type tableRef struct {
	schema string
	name   string
}

func (t tableRef) Schema() string { return t.schema }
func (t tableRef) Name() string { return t.name }
func (t tableRef) Columns() []Column { return nil }
func (t tableRef) PrimaryKeyColumns() []string { return nil }
func (t tableRef) HasPrimaryKey() bool { return false }
func (t tableRef) HasColumn(string) bool { return false }
