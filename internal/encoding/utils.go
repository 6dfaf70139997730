package encoding

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedValue is returned when a value cannot be stored in a record
var ErrUnsupportedValue = errors.New("unsupported value type")

// SQLite storage classes used when declaring columns
const (
	TypeInteger  = "INTEGER"
	TypeReal     = "REAL"
	TypeText     = "TEXT"
	TypeBlob     = "BLOB"
	TypeBoolean  = "BOOLEAN"
	TypeDateTime = "DATETIME"
)

// NormalizeValue converts Go scalars to the canonical set kept in records:
// int64, float64, string, []byte, bool, time.Time and nil.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, int64, float64, string, []byte, bool, time.Time:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return uintToInt64(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return uintToInt64(x)
	case float32:
		return float64(x), nil
	case json.Number:
		return NumberValue(x)
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func uintToInt64(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}
	return int64(u), nil
}

// NumberValue converts a JSON number to int64 when integral, float64 otherwise
func NumberValue(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n.String(), err)
	}
	return f, nil
}

// DecodeJSONValue converts a value produced by a json.Decoder with UseNumber
// into a record scalar. Nested objects and arrays are kept as JSON text.
func DecodeJSONValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		return NumberValue(x)
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("failed to encode nested value: %w", err)
		}
		return string(data), nil
	default:
		return NormalizeValue(x)
	}
}

// SQLType returns the declared column type used for a Go scalar
func SQLType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32, float64:
		return TypeReal
	case bool:
		return TypeBoolean
	case []byte:
		return TypeBlob
	case time.Time, *time.Time:
		return TypeDateTime
	default:
		return TypeText
	}
}

// InferColumnType picks one declared type for a column of values.
// NULLs are ignored; mixed or empty columns fall back to TEXT.
func InferColumnType(values []any) string {
	inferred := ""
	for _, v := range values {
		if v == nil {
			continue
		}
		t := SQLType(v)
		if inferred == "" {
			inferred = t
			continue
		}
		if t != inferred {
			// integers widen to REAL, anything else degrades to TEXT
			if (t == TypeReal && inferred == TypeInteger) || (t == TypeInteger && inferred == TypeReal) {
				inferred = TypeReal
				continue
			}
			return TypeText
		}
	}
	if inferred == "" {
		return TypeText
	}
	return inferred
}

// FormatValue renders a scalar as text for CSV output
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// ParseValue interprets CSV or command-line text as the narrowest scalar:
// empty -> NULL, integer, float, boolean, otherwise string.
func ParseValue(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) && !strings.ContainsAny(s, "xXpP") {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// QuoteIdent quotes an SQLite identifier
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholders returns n comma-separated bind markers
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
