package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// statsConcurrency bounds the COUNT(*) queries in flight
const statsConcurrency = 8

// TableStat summarizes one table
type TableStat struct {
	Name       string   `json:"name"`
	Columns    int      `json:"columns"`
	PrimaryKey []string `json:"primaryKey,omitempty"`
	Rows       int      `json:"rows"`
}

// TableStats reflects and counts the named tables concurrently. Each table is
// read in its own query, so counts are not a consistent snapshot across
// tables; q must be safe for concurrent use (a *sql.DB, not a Session).
func TableStats(ctx context.Context, q Executor, schema string, names []string) ([]TableStat, error) {
	out := make([]TableStat, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, name := range names {
		g.Go(func() error {
			table, err := GetTable(gctx, q, schema, name)
			if err != nil {
				return err
			}
			n, err := RowCount(gctx, q, table)
			if err != nil {
				return err
			}
			out[i] = TableStat{
				Name:       name,
				Columns:    len(table.Columns()),
				PrimaryKey: table.PrimaryKeyColumns(),
				Rows:       n,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrapError("table_stats", err)
	}
	return out, nil
}
