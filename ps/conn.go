package ps

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/nickyhof/orpheus/core"
)

// Conn executes statements either on the pool or inside a transaction.
// Every query is fully read before it returns, so a Conn can be used on a
// single-connection store without deadlocking.
type Conn struct {
	ex      sqlx.ExtContext
	dialect Dialect
}

func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// Quote is shorthand for c.Dialect().Quote.
func (c *Conn) Quote(name string) string {
	return c.dialect.Quote(name)
}

// Exec runs a statement and returns the number of affected rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	query = c.ex.Rebind(query)
	res, err := c.ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapStatementError(query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows for DDL.
		return 0, nil
	}
	return n, nil
}

// Query runs a query and returns its column names and normalized rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) ([]string, []core.Row, error) {
	query = c.ex.Rebind(query)
	rows, err := c.ex.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, nil, wrapStatementError(query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, wrapStatementError(query, err)
	}

	var result []core.Row
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, nil, wrapStatementError(query, err)
		}
		result = append(result, core.NormalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrapStatementError(query, err)
	}
	return columns, result, nil
}

// Get scans a single row into dest.
func (c *Conn) Get(ctx context.Context, dest any, query string, args ...any) error {
	query = c.ex.Rebind(query)
	if err := sqlx.GetContext(ctx, c.ex, dest, query, args...); err != nil {
		return wrapStatementError(query, err)
	}
	return nil
}

// Select scans every row into dest, a pointer to a slice.
func (c *Conn) Select(ctx context.Context, dest any, query string, args ...any) error {
	query = c.ex.Rebind(query)
	if err := sqlx.SelectContext(ctx, c.ex, dest, query, args...); err != nil {
		return wrapStatementError(query, err)
	}
	return nil
}
