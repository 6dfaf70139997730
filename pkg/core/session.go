package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Executor is the subset of *sql.DB, *sql.Conn and *sql.Tx that record
// operations issue statements through. *Session implements it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner starts transactions; *sql.DB and *sql.Conn implement it
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Session is a transactional context borrowed by session-scoped operations.
// Those operations never commit or roll back; the owner of the session does.
type Session struct {
	id     string
	tx     *sql.Tx
	logger Logger

	mu         sync.Mutex
	done       bool
	statements int
}

// BeginSession starts a transaction and wraps it in a session
func BeginSession(ctx context.Context, db Beginner, logger Logger) (*Session, error) {
	if logger == nil {
		logger = NopLogger()
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapError("begin_session", fmt.Errorf("failed to begin transaction: %w", err))
	}

	id := uuid.New().String()
	s := &Session{
		id:     id,
		tx:     tx,
		logger: logger.With("session", id),
	}
	s.logger.Debug("session started")
	return s, nil
}

// ID returns the session identifier used in log lines
func (s *Session) ID() string {
	return s.id
}

// Tx returns the underlying transaction
func (s *Session) Tx() *sql.Tx {
	return s.tx
}

// Statements returns how many statements were executed through the session
func (s *Session) Statements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statements
}

// ExecContext executes a statement inside the session's transaction
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	s.statements++
	s.mu.Unlock()

	return s.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the session's transaction
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query inside the session's transaction
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

// Commit commits the session
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return wrapError("commit", sql.ErrTxDone)
	}
	s.done = true

	if err := s.tx.Commit(); err != nil {
		s.logger.Error("commit failed", "error", err)
		return wrapError("commit", err)
	}
	s.logger.Debug("session committed", "statements", s.statements)
	return nil
}

// Rollback rolls the session back
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return wrapError("rollback", sql.ErrTxDone)
	}
	s.done = true

	if err := s.tx.Rollback(); err != nil {
		return wrapError("rollback", err)
	}
	s.logger.Debug("session rolled back", "statements", s.statements)
	return nil
}

// Close rolls back the session if it is still open. It is safe to call more than once.
func (s *Session) Close() error {
	err := s.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// WithSession acquires a session, runs fn, commits when fn returns nil and
// rolls back otherwise. The session is released on every path, including panics.
func WithSession(ctx context.Context, db Beginner, logger Logger, fn func(*Session) error) error {
	sess, err := BeginSession(ctx, db, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			sess.logger.Warn("failed to release session", "error", cerr)
		}
	}()

	if err := fn(sess); err != nil {
		sess.logger.Debug("rolling back after error", "error", err)
		return err
	}
	return sess.Commit()
}
