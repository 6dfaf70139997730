package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store owns the SQLite connection pool that tables and sessions are drawn from
type Store struct {
	db     *sql.DB
	config Config
	logger Logger
	mu     sync.RWMutex
	closed bool
}

// New creates a store for the database file at path with default configuration
func New(path string) (*Store, error) {
	config := DefaultConfig()
	config.Path = path
	return NewWithConfig(config)
}

// NewWithConfig creates a store with custom configuration. Call Init before use.
func NewWithConfig(config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, wrapError("init", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = NopLogger()
	}

	return &Store{
		config: config,
		logger: logger.With("component", "sqrecord"),
	}, nil
}

// OpenConnection creates and initializes a store in one step
func OpenConnection(ctx context.Context, config Config) (*Store, error) {
	s, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Init opens the database connection
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.config.DSN())
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	if s.config.inMemory() {
		// a second connection would open a different, empty database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		s.logger.Debug("in-memory database, pool pinned to one connection")
	} else {
		db.SetMaxOpenConns(s.config.MaxOpenConns)
		db.SetMaxIdleConns(s.config.MaxIdleConns)
		db.SetConnMaxLifetime(s.config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return wrapError("init", fmt.Errorf("failed to connect: %w", err))
	}

	s.db = db
	s.logger.Info("database initialized", "path", s.config.Path)

	return nil
}

// DB returns the underlying connection pool
func (s *Store) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Config returns the store configuration
func (s *Store) Config() Config {
	return s.config
}

// Logger returns the store logger
func (s *Store) Logger() Logger {
	return s.logger
}

func (s *Store) conn(op string) (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError(op, ErrStoreClosed)
	}
	if s.db == nil {
		return nil, wrapError(op, fmt.Errorf("%w: store not initialized", ErrInvalidConfig))
	}
	return s.db, nil
}

// GetTable reflects a table in the main schema
func (s *Store) GetTable(ctx context.Context, name string) (*Table, error) {
	return s.GetTableInSchema(ctx, "", name)
}

// GetTableInSchema reflects a table in an attached schema
func (s *Store) GetTableInSchema(ctx context.Context, schema, name string) (*Table, error) {
	db, err := s.conn("get_table")
	if err != nil {
		return nil, err
	}
	return GetTable(ctx, db, schema, name)
}

// BeginSession starts a transaction-backed session
func (s *Store) BeginSession(ctx context.Context) (*Session, error) {
	db, err := s.conn("begin_session")
	if err != nil {
		return nil, err
	}
	return BeginSession(ctx, db, s.logger)
}

// WithSession runs fn in a session that is committed on success
func (s *Store) WithSession(ctx context.Context, fn func(*Session) error) error {
	db, err := s.conn("with_session")
	if err != nil {
		return err
	}
	return WithSession(ctx, db, s.logger, fn)
}

// RowCount counts rows outside of any session
func (s *Store) RowCount(ctx context.Context, table TableHandle) (int, error) {
	db, err := s.conn("row_count")
	if err != nil {
		return 0, err
	}
	return RowCount(ctx, db, table)
}

// ListTables returns the tables of the main schema
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	db, err := s.conn("list_tables")
	if err != nil {
		return nil, err
	}
	return ListTables(ctx, db, "")
}

// TableStats reflects and counts every table of the main schema
func (s *Store) TableStats(ctx context.Context) ([]TableStat, error) {
	db, err := s.conn("table_stats")
	if err != nil {
		return nil, err
	}
	names, err := ListTables(ctx, db, "")
	if err != nil {
		return nil, err
	}
	return TableStats(ctx, db, "", names)
}

// MutationOptions returns the mutation options implied by the configuration
func (s *Store) MutationOptions() []MutationOption {
	return []MutationOption{
		WithMatchPolicy(s.config.MatchPolicy),
		WithMaxParams(s.config.maxParams()),
		WithMutationLogger(s.logger),
	}
}

// Close closes the database connection and releases resources
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return wrapError("close", err)
		}
	}

	s.logger.Info("database connection closed")

	return nil
}
