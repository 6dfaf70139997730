// Package core provides the record-level engine for sqrecord.
//
// It reads and writes rows of existing SQLite tables as ordered records,
// resolving Python-style signed indexes and slices against the current row
// count and choosing a write strategy per call.
//
// # Key Components
//
//   - Store: owns the connection pool and hands out sessions.
//   - Session: a transaction borrowed by mutations; callers commit or roll back.
//   - Table: reflected columns and primary key of a table.
//   - Record: an ordered column/value mapping.
//   - Strategy: FAST issues bulk statements keyed by primary key, SLOW one statement per record.
//   - Chunks: a lazy LIMIT/OFFSET scan.
//
// Every mutation takes an Executor, usually a *Session, and never commits it.
// WithSession wraps a unit of work that commits on success and rolls back on
// error or panic.
//
// # Observability
//
// Logging is pluggable through the Logger interface; NewSlogLogger adapts log/slog.
package core
