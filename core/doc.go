// Package core provides core types used throughout Orpheus.
//
// The package defines the identity a request runs as, the schema of a
// relation, row tuples and their normalized comparison, versions,
// derivation records and the error taxonomy returned by every operation.
//
// # Identity
//
// Identity is the principal of a request. It authors versions and receives
// access to checked out tables:
//
//	identity := core.Identity{
//	    Name:  "alice",
//	    Email: "alice@example.com",
//	}
//
// # Schema
//
// A schema is an ordered list of columns. Declared SQL types are normalized
// to kinds so that INTEGER and INT4 compare alike:
//
//	schema := core.Schema{Columns: []core.Column{
//	    core.NewColumn("id", "INTEGER"),
//	    core.NewColumn("total", "DOUBLE"),
//	}}
//
// # Errors
//
// Typed errors are matched with errors.As:
//
//	var mismatch *core.SchemaMismatchError
//	if errors.As(err, &mismatch) {
//	    // ...
//	}
package core
