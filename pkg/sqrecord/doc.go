// Package sqrecord provides record-level access to the tables of a SQLite database.
//
// sqrecord reads and writes rows as ordered records. Every Table method runs in
// its own transaction that is committed on success and rolled back on error.
// Built on modernc.org/sqlite, it needs no cgo.
//
// # Key Features
//
//   - Bulk writes: keyed tables are inserted and updated with one statement per batch.
//   - Per-record writes: tables without a primary key are matched record by record.
//   - Python-style indexing: negative indexes and slices count back from the last row.
//   - Chunked scans that page through large tables lazily.
//   - Dump and load as JSON, JSON Lines or CSV, optionally gzip, zstd or lz4 compressed.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/liliang-cn/sqrecord/pkg/core"
//	    "github.com/liliang-cn/sqrecord/pkg/sqrecord"
//	)
//
//	func main() {
//	    db, _ := sqrecord.Open(sqrecord.DefaultConfig("app.db"))
//	    defer db.Close()
//
//	    ctx := context.Background()
//	    users, _ := db.Table(ctx, "users")
//
//	    _ = users.InsertRecords(ctx, []core.Record{
//	        core.NewRecord("id", 1, "name", "a"),
//	        core.NewRecord("id", 2, "name", "b"),
//	    })
//
//	    last, _ := users.SelectByIndex(ctx, -1)
//	    fmt.Println(last) // {id: 2, name: b}
//	}
//
// # Sessions
//
// To group several operations in one transaction, use DB.Session and the
// session-scoped functions of package core:
//
//	err := db.Session(ctx, func(s *core.Session) error {
//	    if err := core.DeleteAllRecords(ctx, s, users.Handle()); err != nil {
//	        return err
//	    }
//	    return core.InsertRecords(ctx, s, users.Handle(), records)
//	})
//
// # Observability
//
// Pass WithLogger to Open to receive lifecycle and strategy logs.
package sqrecord
