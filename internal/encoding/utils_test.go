package encoding

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValue(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", 7, int64(7)},
		{"int32", int32(-3), int64(-3)},
		{"uint16", uint16(9), int64(9)},
		{"float32", float32(0.5), float64(0.5)},
		{"string", "a", "a"},
		{"nil", nil, nil},
		{"bool", true, true},
		{"time", now, now},
		{"time pointer", &now, now},
		{"json integer", json.Number("42"), int64(42)},
		{"json float", json.Number("1.25"), 1.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		_, err := NormalizeValue(struct{}{})
		assert.ErrorIs(t, err, ErrUnsupportedValue)
	})

	t.Run("uint64 overflow", func(t *testing.T) {
		_, err := NormalizeValue(uint64(1 << 63))
		assert.ErrorIs(t, err, ErrUnsupportedValue)
	})
}

func TestDecodeJSONValue(t *testing.T) {
	v, err := DecodeJSONValue(map[string]any{"a": json.Number("1")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = DecodeJSONValue(json.Number("3"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestInferColumnType(t *testing.T) {
	assert.Equal(t, TypeInteger, InferColumnType([]any{int64(1), nil, 3}))
	assert.Equal(t, TypeReal, InferColumnType([]any{int64(1), 2.5}))
	assert.Equal(t, TypeText, InferColumnType([]any{int64(1), "x"}))
	assert.Equal(t, TypeText, InferColumnType([]any{nil, nil}))
	assert.Equal(t, TypeBoolean, InferColumnType([]any{true, false}))
	assert.Equal(t, TypeBlob, InferColumnType([]any{[]byte("x")}))
}

func TestParseAndFormatValue(t *testing.T) {
	assert.Nil(t, ParseValue(""))
	assert.Equal(t, int64(12), ParseValue("12"))
	assert.Equal(t, 1.5, ParseValue("1.5"))
	assert.Equal(t, true, ParseValue("TRUE"))
	assert.Equal(t, "inf", ParseValue("inf"))
	assert.Equal(t, "archived", ParseValue("archived"))

	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "12", FormatValue(int64(12)))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "false", FormatValue(false))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
	assert.Equal(t, "?,?,?", Placeholders(3))
	assert.Equal(t, "", Placeholders(0))
}
