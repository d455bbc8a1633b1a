package ps

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/nickyhof/orpheus/core"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func wrapStatementError(query string, err error) error {
	if IsConnectionError(err) {
		return &core.ConnectionError{Err: err}
	}
	return &core.StatementError{Statement: query, Err: err}
}

// IsConnectionError reports whether err means the store went away rather
// than that a statement was rejected.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var connErr *core.ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsUniqueViolation reports whether err is a primary key or unique
// constraint violation on any supported engine.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}

	// duckdb reports constraint failures only through the message
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") &&
		(strings.Contains(msg, "PRIMARY KEY") || strings.Contains(msg, "unique") || strings.Contains(msg, "Duplicate key"))
}
