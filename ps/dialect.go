package ps

import "strings"

// Dialect captures the few places the supported engines disagree.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	DuckDB   Dialect = "duckdb"
	Postgres Dialect = "postgres"
)

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case DuckDB:
		return "duckdb"
	default:
		return "sqlite"
	}
}

// Quote returns name as a quoted identifier. Dataset and table names come
// from users, so every identifier goes through here.
func (d Dialect) Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) BlobType() string {
	if d == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}

// SupportsGrant reports whether the engine has per-table privileges.
func (d Dialect) SupportsGrant() bool {
	return d == Postgres
}

func (d Dialect) tableExistsQuery() string {
	if d == SQLite {
		return `SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`
	}
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
}

func (d Dialect) listTablesQuery() string {
	if d == SQLite {
		return `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`
	}
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name`
}
