package sqrecord

import (
	"context"
	"fmt"
	"time"

	"github.com/liliang-cn/sqrecord/pkg/core"
)

// DB represents an open SQLite database
type DB struct {
	store  *core.Store
	logger core.Logger
}

// Config represents database configuration
type Config struct {
	Path        string           // Database file path
	MatchPolicy core.MatchPolicy // How per-record matches that hit several rows are handled
	BusyTimeout time.Duration    // Wait for locks instead of failing immediately
	ReadOnly    bool             // Open the file read-only
}

// DefaultConfig returns default configuration
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		MatchPolicy: core.MatchUnique,
		BusyTimeout: 5 * time.Second,
	}
}

// Option is a functional option for configuring the DB.
type Option func(*DB)

// WithLogger routes store, session and mutation logs to l.
func WithLogger(l core.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// Open opens or creates a database file.
func Open(config Config, opts ...Option) (*DB, error) {
	db := &DB{logger: core.NopLogger()}
	for _, opt := range opts {
		opt(db)
	}

	coreConfig := core.DefaultConfig()
	coreConfig.Path = config.Path
	coreConfig.MatchPolicy = config.MatchPolicy
	coreConfig.BusyTimeout = config.BusyTimeout
	coreConfig.Logger = db.logger
	if config.ReadOnly {
		coreConfig.Path = "file:" + config.Path + "?mode=ro"
		coreConfig.JournalMode = ""
	}

	store, err := core.OpenConnection(context.Background(), coreConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.store = store

	return db, nil
}

// Store returns the underlying core store
func (db *DB) Store() *core.Store {
	return db.store
}

// Close closes the database
func (db *DB) Close() error {
	return db.store.Close()
}

// Session runs fn in one transaction, committing when fn returns nil
func (db *DB) Session(ctx context.Context, fn func(*core.Session) error) error {
	return db.store.WithSession(ctx, fn)
}

// Tables lists the tables of the main schema
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	return db.store.ListTables(ctx)
}

// Stats reflects and counts every table
func (db *DB) Stats(ctx context.Context) ([]core.TableStat, error) {
	return db.store.TableStats(ctx)
}

// Table reflects an existing table
func (db *DB) Table(ctx context.Context, name string) (*Table, error) {
	t, err := db.store.GetTable(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Table{db: db, table: t}, nil
}

// CreateTable creates a table and returns it
func (db *DB) CreateTable(ctx context.Context, name string, columns []core.ColumnDef, primaryKey []string, ifExists core.IfExists) (*Table, error) {
	var created *core.Table
	err := db.Session(ctx, func(s *core.Session) error {
		var err error
		created, err = core.CreateTable(ctx, s, "", name, columns, primaryKey, ifExists)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Table{db: db, table: created}, nil
}

// CreateTableFromRecords creates a table shaped like the records and inserts them
func (db *DB) CreateTableFromRecords(ctx context.Context, name string, records []core.Record, primaryKey []string, ifExists core.IfExists) (*Table, error) {
	var created *core.Table
	err := db.Session(ctx, func(s *core.Session) error {
		var err error
		created, err = core.CreateTableFromRecords(ctx, s, "", name, records, primaryKey, ifExists)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Table{db: db, table: created}, nil
}
