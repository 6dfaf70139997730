package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// PredicateOperator is the comparison applied by a condition
type PredicateOperator string

const (
	OpEqual PredicateOperator = "="
	OpIn    PredicateOperator = "IN"
)

// Condition constrains one column
type Condition struct {
	Column   string
	Operator PredicateOperator
	Values   []any // one value for OpEqual, any number for OpIn
}

// ColumnValue is an explicit column/value constraint
type ColumnValue struct {
	Column string
	Value  any
}

// Predicate is an AND of conditions, kept in the order they were built
type Predicate struct {
	table      string
	conditions []Condition
}

// Conditions returns a copy of the conditions
func (p Predicate) Conditions() []Condition {
	return append([]Condition(nil), p.conditions...)
}

// IsEmpty reports whether the predicate has no conditions (matches every row)
func (p Predicate) IsEmpty() bool {
	return len(p.conditions) == 0
}

// And returns a predicate with the other predicate's conditions appended
func (p Predicate) And(other Predicate) Predicate {
	out := Predicate{table: p.table}
	out.conditions = append(append(out.conditions, p.conditions...), other.conditions...)
	return out
}

// ToSQL renders the WHERE clause body and its arguments.
// An empty predicate renders "1 = 1"; a nil equality renders IS NULL.
// IN lists longer than the parameter limit bind one JSON array.
func (p Predicate) ToSQL() (string, []any) {
	if len(p.conditions) == 0 {
		return "1 = 1", nil
	}

	parts := make([]string, 0, len(p.conditions))
	var args []any
	for _, c := range p.conditions {
		col := encoding.QuoteIdent(c.Column)
		switch c.Operator {
		case OpIn:
			if len(c.Values) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			rows := make([][]any, len(c.Values))
			for i, v := range c.Values {
				rows[i] = []any{v}
			}
			clause, a := inListSQL(col, 1, rows, sqliteMaxParams-(len(p.conditions)-1))
			parts = append(parts, clause)
			args = append(args, a...)
		default:
			if c.Values[0] == nil {
				parts = append(parts, col+" IS NULL")
				continue
			}
			parts = append(parts, col+" = ?")
			args = append(args, c.Values[0])
		}
	}
	return strings.Join(parts, " AND "), args
}

// String renders the predicate for debugging
func (p Predicate) String() string {
	clause, args := p.ToSQL()
	return fmt.Sprintf("%s %v", clause, args)
}

// BuildPredicate turns a full or partial record into an equality predicate
func BuildPredicate(table TableHandle, record Record) (Predicate, error) {
	pairs := make([]ColumnValue, 0, record.Len())
	for _, k := range record.keys {
		pairs = append(pairs, ColumnValue{Column: k, Value: record.values[k]})
	}
	return BuildPredicateFromPairs(table, pairs)
}

// BuildPredicateFromPairs builds an equality predicate from explicit constraints
func BuildPredicateFromPairs(table TableHandle, pairs []ColumnValue) (Predicate, error) {
	p := Predicate{table: table.Name(), conditions: make([]Condition, 0, len(pairs))}
	for _, pair := range pairs {
		if !table.HasColumn(pair.Column) {
			return Predicate{}, columnError(table.Name(), pair.Column, ErrInvalidColumn)
		}
		v, err := encoding.NormalizeValue(pair.Value)
		if err != nil {
			return Predicate{}, fmt.Errorf("column %q: %w", pair.Column, err)
		}
		p.conditions = append(p.conditions, Condition{Column: pair.Column, Operator: OpEqual, Values: []any{v}})
	}
	return p, nil
}

// BuildDeletePredicate builds the predicate used to delete the row a record
// describes. It does not check that the record identifies a single row; the
// mutation engine does that under MatchUnique.
func BuildDeletePredicate(table TableHandle, record Record) (Predicate, error) {
	p, err := BuildPredicate(table, record)
	if err != nil {
		return Predicate{}, err
	}
	if p.IsEmpty() {
		return Predicate{}, ErrEmptyPredicate
	}
	return p, nil
}

// BuildInPredicate builds "column IN (values...)"
func BuildInPredicate(table TableHandle, column string, values []any) (Predicate, error) {
	if !table.HasColumn(column) {
		return Predicate{}, columnError(table.Name(), column, ErrInvalidColumn)
	}
	normalized := make([]any, len(values))
	for i, v := range values {
		nv, err := encoding.NormalizeValue(v)
		if err != nil {
			return Predicate{}, fmt.Errorf("column %q: %w", column, err)
		}
		normalized[i] = nv
	}
	return Predicate{
		table:      table.Name(),
		conditions: []Condition{{Column: column, Operator: OpIn, Values: normalized}},
	}, nil
}

// inListSQL renders "lhs IN (...)" over rows of width values. Lists that fit
// in maxParams bind one parameter per value; longer lists bind a single JSON
// array read back through json_each, so the statement stays one statement.
func inListSQL(lhs string, width int, rows [][]any, maxParams int) (string, []any) {
	if len(rows) == 0 {
		return "1 = 0", nil
	}
	if len(rows)*width <= maxParams {
		return placeholderList(lhs, width, rows), flatten(rows)
	}

	doc, ok := jsonList(width, rows)
	if !ok {
		return placeholderList(lhs, width, rows), flatten(rows)
	}
	if width == 1 {
		elem := "CASE type WHEN 'object' THEN unhex(json_extract(value, '$.x')) ELSE value END"
		return fmt.Sprintf("%s IN (SELECT %s FROM json_each(?))", lhs, elem), []any{doc}
	}
	elems := make([]string, width)
	for i := range elems {
		path := fmt.Sprintf("'$[%d]'", i)
		elems[i] = fmt.Sprintf("CASE json_type(value, %s) WHEN 'object' THEN unhex(json_extract(value, '$[%d].x')) ELSE json_extract(value, %s) END",
			path, i, path)
	}
	return fmt.Sprintf("%s IN (SELECT %s FROM json_each(?))", lhs, strings.Join(elems, ", ")), []any{doc}
}

func placeholderList(lhs string, width int, rows [][]any) string {
	if width == 1 {
		return fmt.Sprintf("%s IN (%s)", lhs, encoding.Placeholders(len(rows)))
	}
	tuple := "(" + encoding.Placeholders(width) + ")"
	return fmt.Sprintf("%s IN (VALUES %s)", lhs, strings.TrimSuffix(strings.Repeat(tuple+",", len(rows)), ","))
}

// jsonList encodes rows as a JSON array, one element per row (an array when
// width > 1). Blobs become {"x": hex}. It fails on values JSON cannot carry.
func jsonList(width int, rows [][]any) (string, bool) {
	out := make([]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, v := range row {
			jv, ok := jsonScalar(v)
			if !ok {
				return "", false
			}
			vals[j] = jv
		}
		if width == 1 {
			out[i] = vals[0]
		} else {
			out[i] = vals
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func jsonScalar(v any) (any, bool) {
	switch x := v.(type) {
	case []byte:
		return map[string]string{"x": hex.EncodeToString(x)}, true
	case time.Time:
		// matches how the driver binds time.Time parameters
		return x.String(), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, false
		}
		return x, true
	default:
		return x, true
	}
}
