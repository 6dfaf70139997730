package core

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo).With("component", "test")

	logger.Debug("hidden")
	logger.Info("hello", "table", "users")
	logger.With("session", "s1").Warn("careful")
	logger.Error("failed", "error", "boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[INFO] component=test table=users: hello")
	assert.Contains(t, lines[1], "[WARN] component=test session=s1: careful")
	assert.Contains(t, lines[2], "[ERROR] component=test error=boom: failed")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlogLogger(slog.New(handler)).With("component", "test")

	logger.Debug("insert records", "strategy", StrategyFast, "records", 2)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, `msg="insert records"`)
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "strategy=fast")
	assert.Contains(t, out, "records=2")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	assert.NotPanics(t, func() {
		logger.With("a", 1).Error("ignored")
	})
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "UNKNOWN", LogLevel(9).String())
}
