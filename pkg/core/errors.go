package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidColumn is returned when a record or predicate names a column the table does not have
	ErrInvalidColumn = errors.New("invalid column")

	// ErrMissingPrimaryKey is returned when an operation needs a primary key the table lacks
	ErrMissingPrimaryKey = errors.New("table has no primary key")

	// ErrMissingPrimaryKeyValue is returned when a record on the bulk path omits a key column
	ErrMissingPrimaryKeyValue = errors.New("record is missing a primary key value")

	// ErrMissingMatchValue is returned when a record omits one of the requested match columns
	ErrMissingMatchValue = errors.New("record is missing a match column value")

	// ErrAmbiguousMatch is returned when a record-derived predicate matches more than one row
	ErrAmbiguousMatch = errors.New("record matches more than one row")

	// ErrEmptyPredicate is returned when a targeted update or delete would have no WHERE clause
	ErrEmptyPredicate = errors.New("empty match predicate")

	// ErrNonUniformRecords is returned when a bulk batch mixes column sets
	ErrNonUniformRecords = errors.New("records do not share the same columns")

	// ErrIncompatibleTables is returned when two tables share no columns
	ErrIncompatibleTables = errors.New("tables have no columns in common")

	// ErrIndexOutOfRange is returned when a resolved row offset is outside the table
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrTableNotFound is returned when reflecting a table that does not exist
	ErrTableNotFound = errors.New("table not found")

	// ErrNotFound is returned when a keyed lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrInvalidChunkSize is returned when a chunked scan is requested with a non-positive size
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("sqrecord: %v", e.Err)
	}
	return fmt.Sprintf("sqrecord: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) && se.Op == op {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ColumnError reports a column that failed validation against a table.
//
// The sentinel it wraps (usually ErrInvalidColumn) can be matched with errors.Is.
type ColumnError struct {
	Table  string
	Column string
	cause  error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: %q on table %q", e.cause, e.Column, e.Table)
}

func (e *ColumnError) Unwrap() error { return e.cause }

func columnError(table, column string, cause error) error {
	return &ColumnError{Table: table, Column: column, cause: cause}
}

// RecordError reports which record in a batch failed.
type RecordError struct {
	Index int
	cause error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.cause)
}

func (e *RecordError) Unwrap() error { return e.cause }

func recordError(i int, cause error) error {
	return &RecordError{Index: i, cause: cause}
}
