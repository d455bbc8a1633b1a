package op

import (
	"context"
	"fmt"

	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
)

// TableOp wraps an ordinary table: a dataset source, a checkout destination
// or a working copy being committed.
type TableOp struct {
	Name string
	Conn *ps.Conn
}

// CreateTable creates name with schema.
func CreateTable(ctx context.Context, conn *ps.Conn, name string, schema core.Schema) (*TableOp, error) {
	exists, err := conn.TableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &core.BadParametersError{Reason: fmt.Sprintf("table %s already exists", name)}
	}
	if err := conn.CreateTable(ctx, name, schema); err != nil {
		return nil, err
	}
	return &TableOp{Name: name, Conn: conn}, nil
}

// GetTable opens an existing table.
func GetTable(ctx context.Context, conn *ps.Conn, name string) (*TableOp, error) {
	exists, err := conn.TableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, core.ErrTableNotFound)
	}
	return &TableOp{Name: name, Conn: conn}, nil
}

func (op *TableOp) Schema(ctx context.Context) (core.Schema, error) {
	return op.Conn.TableSchema(ctx, op.Name)
}

// Rows reads every row projected on attrs.
func (op *TableOp) Rows(ctx context.Context, attrs []string) ([]core.Row, error) {
	return op.Conn.SelectRows(ctx, op.Name, attrs, "")
}

// Relation reads the whole table with its schema.
func (op *TableOp) Relation(ctx context.Context) (vc.Relation, error) {
	schema, err := op.Schema(ctx)
	if err != nil {
		return vc.Relation{}, err
	}
	rows, err := op.Rows(ctx, schema.Names())
	if err != nil {
		return vc.Relation{}, err
	}
	return vc.Relation{Schema: schema, Rows: rows}, nil
}

func (op *TableOp) Insert(ctx context.Context, attrs []string, rows []core.Row) error {
	return op.Conn.InsertRows(ctx, op.Name, attrs, rows)
}

func (op *TableOp) Count(ctx context.Context) (int64, error) {
	return op.Conn.CountRows(ctx, op.Name)
}

func (op *TableOp) Drop(ctx context.Context) error {
	return op.Conn.DropTable(ctx, op.Name)
}
