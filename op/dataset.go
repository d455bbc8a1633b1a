package op

import (
	"context"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
	"go.uber.org/multierr"
)

// RidColumn is the row identifier column of every row store.
const RidColumn = "rid"

// fetchBatch bounds the rid list of one IN clause.
const fetchBatch = 500

// DatasetOp wraps the three structures of a dataset: the row store, the
// version graph and the version index.
type DatasetOp struct {
	Name  string
	Conn  *ps.Conn
	Graph *vc.Graph
	Index *vc.Index
}

func newDatasetOp(name string, conn *ps.Conn, cache *vc.Cache) *DatasetOp {
	return &DatasetOp{
		Name:  name,
		Conn:  conn,
		Graph: vc.NewGraph(name),
		Index: vc.NewIndex(name, cache),
	}
}

// CreateDataset creates the row store, graph and index tables of a new
// dataset whose attributes are schema. None of the three names may be taken.
// On failure only the tables created here are dropped.
func CreateDataset(ctx context.Context, conn *ps.Conn, name string, schema core.Schema, cache *vc.Cache) (*DatasetOp, error) {
	if name == "" {
		return nil, &core.BadParametersError{Reason: "dataset name is empty"}
	}
	if len(schema.Columns) == 0 {
		return nil, &core.BadParametersError{Reason: fmt.Sprintf("dataset %s has no attributes", name)}
	}
	if _, ok := schema.Lookup(RidColumn); ok {
		return nil, &core.BadParametersError{Reason: fmt.Sprintf("attribute name %q is reserved", RidColumn)}
	}

	present, err := DatasetTables(ctx, conn, name)
	if err != nil {
		return nil, err
	}
	if len(present) > 0 {
		return nil, fmt.Errorf("%s: %w (table %s exists)", name, core.ErrDatasetExists, present[0])
	}

	op := newDatasetOp(name, conn, cache)

	storeSchema := core.Schema{Columns: append([]core.Column{core.NewColumn(RidColumn, "BIGINT PRIMARY KEY")}, schema.Columns...)}
	if err := conn.CreateTable(ctx, core.DataTable(name), storeSchema); err != nil {
		return nil, err
	}
	if err := op.Graph.Create(ctx, conn); err != nil {
		return nil, multierr.Append(err, conn.DropTable(ctx, core.DataTable(name)))
	}
	if err := op.Index.Create(ctx, conn); err != nil {
		return nil, multierr.Combine(err, op.Graph.Drop(ctx, conn), conn.DropTable(ctx, core.DataTable(name)))
	}
	return op, nil
}

// DatasetTables returns which of the row store, graph and index tables of
// name exist, in that order.
func DatasetTables(ctx context.Context, conn *ps.Conn, name string) ([]string, error) {
	var present []string
	for _, table := range []string{core.DataTable(name), core.GraphTable(name), core.IndexTable(name)} {
		exists, err := conn.TableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if exists {
			present = append(present, table)
		}
	}
	return present, nil
}

// GetDataset opens an existing dataset.
func GetDataset(ctx context.Context, conn *ps.Conn, name string, cache *vc.Cache) (*DatasetOp, error) {
	exists, err := conn.TableExists(ctx, core.DataTable(name))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, core.ErrDatasetNotFound)
	}
	return newDatasetOp(name, conn, cache), nil
}

// ListDatasets returns the names of every dataset in the store, sorted.
func ListDatasets(ctx context.Context, conn *ps.Conn) ([]string, error) {
	tables, err := conn.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(tables))
	for _, table := range tables {
		existing[table] = true
	}
	var names []string
	for _, table := range tables {
		name, ok := strings.CutSuffix(table, core.DataTableSuffix)
		if ok && name != "" && existing[core.GraphTable(name)] && existing[core.IndexTable(name)] {
			names = append(names, name)
		}
	}
	return names, nil
}

// Drop removes all three tables, attempting each even when an earlier one
// fails. The row store goes last so a partly dropped dataset is still found
// and the drop can be retried.
func (op *DatasetOp) Drop(ctx context.Context) error {
	return multierr.Combine(
		op.Graph.Drop(ctx, op.Conn),
		op.Index.Drop(ctx, op.Conn),
		op.Conn.DropTable(ctx, core.DataTable(op.Name)),
	)
}

// Schema returns the dataset attributes, without the rid column.
func (op *DatasetOp) Schema(ctx context.Context) (core.Schema, error) {
	schema, err := op.Conn.TableSchema(ctx, core.DataTable(op.Name))
	if err != nil {
		return core.Schema{}, err
	}
	return schema.Without(RidColumn), nil
}

// Size returns the number of rows in the row store.
func (op *DatasetOp) Size(ctx context.Context) (int64, error) {
	return op.Conn.CountRows(ctx, core.DataTable(op.Name))
}

// Relation reads every row of the row store, projected on attrs, together
// with its rid.
func (op *DatasetOp) Relation(ctx context.Context, schema core.Schema) (vc.Relation, error) {
	columns := append([]string{RidColumn}, schema.Names()...)
	rows, err := op.Conn.SelectRows(ctx, core.DataTable(op.Name), columns, RidColumn)
	if err != nil {
		return vc.Relation{}, err
	}

	rel := vc.Relation{
		Schema: schema,
		Rows:   make([]core.Row, len(rows)),
		Rids:   make([]int64, len(rows)),
	}
	for i, row := range rows {
		rid, ok := row[0].(int64)
		if !ok {
			return vc.Relation{}, fmt.Errorf("row store %s holds a non-integer rid %v", op.Name, row[0])
		}
		rel.Rids[i] = rid
		rel.Rows[i] = row[1:]
	}
	return rel, nil
}

// AppendRows inserts rows, aligned with attrs, under fresh rids starting one
// past the largest rid in the store. The assigned rids are returned in
// order.
func (op *DatasetOp) AppendRows(ctx context.Context, attrs []string, rows []core.Row) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	last, err := op.Conn.MaxInt(ctx, core.DataTable(op.Name), RidColumn)
	if err != nil {
		return nil, err
	}

	rids := make([]int64, len(rows))
	withRid := make([]core.Row, len(rows))
	for i, row := range rows {
		rids[i] = last + int64(i) + 1
		withRid[i] = append(core.Row{rids[i]}, row...)
	}

	columns := append([]string{RidColumn}, attrs...)
	if err := op.Conn.InsertRows(ctx, core.DataTable(op.Name), columns, withRid); err != nil {
		return nil, err
	}
	return rids, nil
}

// FetchRows returns the rows with the given rids, projected on attrs and
// ordered by rid.
func (op *DatasetOp) FetchRows(ctx context.Context, attrs []string, rids *roaring64.Bitmap) ([]core.Row, error) {
	quoted := make([]string, len(attrs))
	for i, attr := range attrs {
		quoted[i] = op.Conn.Quote(attr)
	}
	head := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (", strings.Join(quoted, ", "),
		op.Conn.Quote(core.DataTable(op.Name)), op.Conn.Quote(RidColumn))
	tail := ") ORDER BY " + op.Conn.Quote(RidColumn)

	all := vc.Rids(rids)
	out := make([]core.Row, 0, len(all))
	for start := 0; start < len(all); start += fetchBatch {
		batch := all[start:min(start+fetchBatch, len(all))]
		args := make([]any, len(batch))
		for i, rid := range batch {
			args[i] = rid
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")

		_, rows, err := op.Conn.Query(ctx, head+placeholders+tail, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}
