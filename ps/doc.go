// Package ps provides the backing store client for Orpheus.
//
// Datasets live in an ordinary relational database. The store is reached
// through sqlx and one of three drivers:
//
//   - sqlite (modernc.org/sqlite, the default; an empty DSN is in-memory)
//   - duckdb (github.com/duckdb/duckdb-go/v2)
//   - postgres (github.com/jackc/pgx/v4/stdlib)
//
// # Opening a Store
//
//	store, err := ps.Open(ctx, ps.Config{Driver: "sqlite", DSN: "orpheus.db", Transactional: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Statements
//
// All statements run through a Conn, obtained from the pool or from a
// transaction. Identifiers are always quoted.
//
//	err = store.RunInTx(ctx, func(conn *ps.Conn) error {
//	    if err := conn.CreateTable(ctx, "t", schema); err != nil {
//	        return err
//	    }
//	    return conn.InsertRows(ctx, "t", schema.Names(), rows)
//	})
//
// # Errors
//
// A store that cannot be reached yields *core.ConnectionError; a rejected
// statement yields *core.StatementError. IsUniqueViolation classifies
// primary key collisions on every engine.
package ps
