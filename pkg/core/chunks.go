package core

import (
	"context"
	"database/sql"
)

// Chunks lazily scans a table in fixed-size pages. Each call to Next issues a
// fresh LIMIT/OFFSET query, so a Chunks value cannot be rewound; select again
// to rescan.
//
//	chunks, err := core.SelectChunks(ctx, db, table, 100)
//	for chunks.Next() {
//	    process(chunks.Chunk())
//	}
//	if err := chunks.Err(); err != nil { ... }
type Chunks[T any] struct {
	ctx    context.Context
	q      Executor
	op     string
	query  string
	args   []any
	size   int
	offset int
	scan   func(*sql.Rows) ([]T, error)

	chunk []T
	err   error
	done  bool
}

func newChunks[T any](ctx context.Context, q Executor, op, query string, args []any, size int, scan func(*sql.Rows) ([]T, error)) *Chunks[T] {
	return &Chunks[T]{
		ctx:   ctx,
		q:     q,
		op:    op,
		query: query + " LIMIT ? OFFSET ?",
		args:  args,
		size:  size,
		scan:  scan,
	}
}

// Next fetches the next chunk and reports whether one was produced
func (c *Chunks[T]) Next() bool {
	c.chunk = nil
	if c.done || c.err != nil {
		return false
	}

	args := append(append([]any(nil), c.args...), c.size, c.offset)
	rows, err := c.q.QueryContext(c.ctx, c.query, args...)
	if err != nil {
		c.err = wrapError(c.op, err)
		return false
	}
	items, err := c.scan(rows)
	if err != nil {
		c.err = wrapError(c.op, err)
		return false
	}

	if len(items) == 0 {
		c.done = true
		return false
	}
	if len(items) < c.size {
		c.done = true
	}
	c.offset += len(items)
	c.chunk = items
	return true
}

// Chunk returns the chunk fetched by the last successful Next
func (c *Chunks[T]) Chunk() []T {
	return c.chunk
}

// Err returns the first error encountered while scanning
func (c *Chunks[T]) Err() error {
	return c.err
}

// Collect drains the remaining chunks
func (c *Chunks[T]) Collect() ([][]T, error) {
	var out [][]T
	for c.Next() {
		out = append(out, c.Chunk())
	}
	return out, c.Err()
}
