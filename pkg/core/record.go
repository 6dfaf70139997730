package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// Record is an ordered mapping from column name to scalar value.
// The zero value is an empty record ready to use.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord builds a record from alternating column/value pairs:
//
//	NewRecord("id", 1, "name", "a")
//
// It panics on an odd number of arguments, a non-string column or an
// unsupported value, mirroring fmt-style programmer errors.
func NewRecord(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("sqrecord: NewRecord needs column/value pairs")
	}
	var r Record
	for i := 0; i < len(pairs); i += 2 {
		col, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("sqrecord: column name must be a string, got %T", pairs[i]))
		}
		if err := r.Set(col, pairs[i+1]); err != nil {
			panic("sqrecord: " + err.Error())
		}
	}
	return r
}

// RecordFromMap converts a map into a record with keys in sorted order
func RecordFromMap(m map[string]any) (Record, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var r Record
	for _, k := range keys {
		if err := r.Set(k, m[k]); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}

// Set assigns a value, appending the column if it is new
func (r *Record) Set(column string, value any) error {
	v, err := encoding.NormalizeValue(value)
	if err != nil {
		return fmt.Errorf("column %q: %w", column, err)
	}
	r.set(column, v)
	return nil
}

func (r *Record) set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.keys = append(r.keys, column)
	}
	r.values[column] = value
}

// Get returns the value for a column and whether it is present
func (r Record) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Has reports whether the column is present
func (r Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Keys returns the columns in insertion order
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Values returns the values in key order
func (r Record) Values() []any {
	out := make([]any, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// Len returns the number of columns
func (r Record) Len() int {
	return len(r.keys)
}

// Map returns an unordered copy of the record
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.keys))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Project returns a record holding only the given columns, in that order.
// Columns absent from r are skipped.
func (r Record) Project(columns ...string) Record {
	var out Record
	for _, c := range columns {
		if v, ok := r.values[c]; ok {
			out.set(c, v)
		}
	}
	return out
}

// Without returns a record minus the given columns, preserving order
func (r Record) Without(columns ...string) Record {
	drop := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		drop[c] = struct{}{}
	}
	var out Record
	for _, k := range r.keys {
		if _, skip := drop[k]; !skip {
			out.set(k, r.values[k])
		}
	}
	return out
}

// Equal reports whether both records hold the same columns in the same order
// with equal values.
func (r Record) Equal(other Record) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k || !valuesEqual(r.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok || bok {
		return aok && bok && bytes.Equal(ab, bb)
	}
	return a == b
}

// String renders the record like a map literal in key order
func (r Record) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %v", k, r.values[k])
	}
	buf.WriteByte('}')
	return buf.String()
}

// MarshalJSON encodes the record as a JSON object in key order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
// Integral numbers decode as int64, other numbers as float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		v, err := encoding.DecodeJSONValue(raw)
		if err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		r.set(key, v)
	}
	_, err = dec.Token()
	return err
}

// columnSet returns a comparable signature of the record's columns
func (r Record) columnSet() string {
	keys := r.Keys()
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte(0)
	}
	return buf.String()
}
