package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MatchPolicy controls whether record-derived predicates must identify a single row
type MatchPolicy int

const (
	// MatchUnique rejects a per-record update or delete whose predicate matches more than one row
	MatchUnique MatchPolicy = iota
	// MatchPermissive applies the statement to every matching row
	MatchPermissive
)

// String returns the string representation of the policy
func (p MatchPolicy) String() string {
	switch p {
	case MatchUnique:
		return "unique"
	case MatchPermissive:
		return "permissive"
	default:
		return "unknown"
	}
}

// sqliteMaxParams is SQLITE_MAX_VARIABLE_NUMBER for the bundled SQLite (>= 3.32)
const sqliteMaxParams = 32766

// Config represents configuration options for the record store
type Config struct {
	Path            string        `json:"path"`            // Database file path
	JournalMode     string        `json:"journalMode"`     // SQLite journal mode, e.g. WAL
	BusyTimeout     time.Duration `json:"busyTimeout"`     // Wait for locks instead of failing immediately
	ForeignKeys     bool          `json:"foreignKeys"`     // Enforce foreign key constraints
	MaxOpenConns    int           `json:"maxOpenConns"`    // Connection pool size
	MaxIdleConns    int           `json:"maxIdleConns"`    // Idle connections kept in the pool
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"` // Maximum connection reuse time
	MaxParams       int           `json:"maxParams"`       // Bound parameters per bulk statement
	MatchPolicy     MatchPolicy   `json:"matchPolicy"`     // Default policy for per-record matching
	Logger          Logger        `json:"-"`               // Logger, NopLogger when nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		JournalMode:     "WAL",
		BusyTimeout:     5 * time.Second,
		ForeignKeys:     true,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 2 * time.Hour,
		MaxParams:       sqliteMaxParams,
		MatchPolicy:     MatchUnique,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig)
	}
	if c.MaxParams < 0 || c.MaxParams > sqliteMaxParams {
		return fmt.Errorf("%w: max params must be between 0 and %d", ErrInvalidConfig, sqliteMaxParams)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("%w: connection limits must be non-negative", ErrInvalidConfig)
	}
	if c.MatchPolicy != MatchUnique && c.MatchPolicy != MatchPermissive {
		return fmt.Errorf("%w: unknown match policy %d", ErrInvalidConfig, c.MatchPolicy)
	}
	return nil
}

// DSN builds the modernc.org/sqlite data source name.
// _pragma=busy_timeout(5000): wait up to 5s for a lock
// _pragma=journal_mode(WAL): readers do not block the writer
// _pragma=foreign_keys(1): enforce references
func (c Config) DSN() string {
	q := url.Values{}
	if c.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	}
	if c.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if len(q) == 0 {
		return c.Path
	}
	sep := "?"
	if strings.Contains(c.Path, "?") {
		sep = "&"
	}
	return c.Path + sep + q.Encode()
}

// inMemory reports whether Path names an in-memory database, which exists
// only on the connection that opened it
func (c Config) inMemory() bool {
	p := strings.ToLower(c.Path)
	return p == ":memory:" || strings.HasPrefix(p, ":memory:?") ||
		strings.HasPrefix(p, "file::memory:") || strings.Contains(p, "mode=memory")
}

func (c Config) maxParams() int {
	if c.MaxParams <= 0 {
		return sqliteMaxParams
	}
	return c.MaxParams
}
