package ps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nickyhof/orpheus/core"
)

const (
	maxBatchRows   = 500
	maxBatchParams = 30000
)

// CreateTable creates name with the given columns. Columns without a
// declared type are created as TEXT.
func (c *Conn) CreateTable(ctx context.Context, name string, schema core.Schema) error {
	if len(schema.Columns) == 0 {
		return &core.BadParametersError{Reason: fmt.Sprintf("table %s has no columns", name)}
	}

	defs := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		declared := strings.TrimSpace(col.Declared)
		if declared == "" {
			declared = "TEXT"
		}
		defs[i] = c.Quote(col.Name) + " " + declared
	}

	query := fmt.Sprintf("CREATE TABLE %s (%s)", c.Quote(name), strings.Join(defs, ", "))
	_, err := c.Exec(ctx, query)
	return err
}

// DropTable drops name if it exists.
func (c *Conn) DropTable(ctx context.Context, name string) error {
	_, err := c.Exec(ctx, "DROP TABLE IF EXISTS "+c.Quote(name))
	return err
}

func (c *Conn) TableExists(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := c.Get(ctx, &n, c.dialect.tableExistsQuery(), name); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTables returns every table name in the current schema, sorted.
func (c *Conn) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.Select(ctx, &names, c.dialect.listTablesQuery()); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// TableSchema returns the columns of name in declaration order.
func (c *Conn) TableSchema(ctx context.Context, name string) (core.Schema, error) {
	exists, err := c.TableExists(ctx, name)
	if err != nil {
		return core.Schema{}, err
	}
	if !exists {
		return core.Schema{}, fmt.Errorf("%s: %w", name, core.ErrTableNotFound)
	}

	query := c.ex.Rebind(fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", c.Quote(name)))
	rows, err := c.ex.QueryxContext(ctx, query)
	if err != nil {
		return core.Schema{}, wrapStatementError(query, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return core.Schema{}, wrapStatementError(query, err)
	}

	schema := core.Schema{Columns: make([]core.Column, len(types))}
	for i, ct := range types {
		schema.Columns[i] = core.NewColumn(ct.Name(), ct.DatabaseTypeName())
	}
	return schema, rows.Err()
}

// InsertRows appends rows to table in multi-row batches. Every row must be
// aligned with columns.
func (c *Conn) InsertRows(ctx context.Context, table string, columns []string, rows []core.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if len(columns) == 0 {
		return &core.BadParametersError{Reason: "insert without columns"}
	}

	batch := maxBatchRows
	if perRow := maxBatchParams / len(columns); perRow < batch {
		batch = max(perRow, 1)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = c.Quote(col)
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", c.Quote(table), strings.Join(quoted, ", "))
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))

		var sb strings.Builder
		sb.WriteString(head)
		args := make([]any, 0, (end-start)*len(columns))
		for i, row := range rows[start:end] {
			if len(row) != len(columns) {
				return &core.BadParametersError{Reason: fmt.Sprintf("row %d has %d values, expected %d", start+i, len(row), len(columns))}
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(tuple)
			args = append(args, row...)
		}

		if _, err := c.Exec(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// SelectRows reads the named columns of every row of table.
func (c *Conn) SelectRows(ctx context.Context, table string, columns []string, orderBy string) ([]core.Row, error) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = c.Quote(col)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), c.Quote(table))
	if orderBy != "" {
		query += " ORDER BY " + c.Quote(orderBy)
	}
	_, rows, err := c.Query(ctx, query)
	return rows, err
}

func (c *Conn) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := c.Get(ctx, &n, "SELECT COUNT(*) FROM "+c.Quote(table))
	return n, err
}

// MaxInt returns the largest value of an integer column, or 0 for an empty
// table.
func (c *Conn) MaxInt(ctx context.Context, table, column string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", c.Quote(column), c.Quote(table))
	err := c.Get(ctx, &n, query)
	return n, err
}
