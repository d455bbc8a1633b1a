package db

import (
	"context"
	"fmt"
	"time"

	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ingest"
	"github.com/nickyhof/orpheus/op"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// InitRequest places a table or a delimited file under version control.
type InitRequest struct {
	Dataset string
	// Table or File is the source; exactly one must be set.
	Table string
	File  string
	// SchemaTable names an existing table whose columns type a file source.
	SchemaTable string
	// Attributes restricts and orders the tracked columns. For a file
	// without SchemaTable they are created as text.
	Attributes []string
	Delimiter  string
	Header     bool
}

// InitDataset creates a dataset from its source and records the root
// version holding every row. On failure the dataset is removed again.
func (engine *Engine) InitDataset(ctx context.Context, req InitRequest) (CommitResult, error) {
	start := time.Now()

	if req.Dataset == "" {
		return CommitResult{}, &core.BadParametersError{Reason: "dataset name is required"}
	}
	if (req.Table == "") == (req.File == "") {
		return CommitResult{}, &core.BadParametersError{Reason: "exactly one of table or file must be given"}
	}

	var file ingest.Table
	if req.File != "" {
		if req.SchemaTable == "" && len(req.Attributes) == 0 {
			return CommitResult{}, &core.BadParametersError{Reason: "a file source needs a schema table or an attribute list"}
		}
		var err error
		file, err = ingest.LoadDelimited(ctx, ingest.Resolve(req.File, engine.home), engine.ingestOptions(req.Delimiter, req.Header))
		if err != nil {
			return CommitResult{}, err
		}
	}

	unlock := engine.locks.Lock(req.Dataset)
	defer unlock()

	log := engine.log(req.Dataset)
	result := CommitResult{Dataset: req.Dataset}
	created := false

	err := engine.Store.RunInTx(ctx, func(conn *ps.Conn) error {
		schema, rows, err := engine.initSource(ctx, conn, req, file)
		if err != nil {
			return err
		}

		ds, err := op.CreateDataset(ctx, conn, req.Dataset, schema, engine.cache)
		if err != nil {
			return err
		}
		created = true

		rids, err := ds.AppendRows(ctx, schema.Names(), rows)
		if err != nil {
			return err
		}
		root, err := ds.Graph.CreateRoot(ctx, conn, int64(len(rids)), time.Now())
		if err != nil {
			return err
		}
		if err := ds.Index.Record(ctx, conn, root.ID, vc.NewRidSet(rids...)); err != nil {
			return err
		}

		result.Version = &root
		result.RowsAdded = len(rids)
		result.TablesCreated = 3
		return nil
	})
	if err != nil {
		if created {
			err = multierr.Append(err, engine.dropStructures(ctx, req.Dataset))
		}
		log.WithError(err).Error("dataset initialization failed")
		return CommitResult{}, err
	}

	result.ExecutionTimeSec = time.Since(start).Seconds()
	log.WithFields(logrus.Fields{"version": result.Version.ID, "rows": result.RowsAdded}).Info("dataset initialized")
	return result, nil
}

// initSource resolves the schema and rows a new dataset starts from.
func (engine *Engine) initSource(ctx context.Context, conn *ps.Conn, req InitRequest, file ingest.Table) (core.Schema, []core.Row, error) {
	if req.Table != "" {
		source, err := op.GetTable(ctx, conn, req.Table)
		if err != nil {
			return core.Schema{}, nil, err
		}
		schema, err := source.Schema(ctx)
		if err != nil {
			return core.Schema{}, nil, err
		}
		if len(req.Attributes) > 0 {
			if schema, err = schema.Project(req.Attributes); err != nil {
				return core.Schema{}, nil, err
			}
		}
		rows, err := source.Rows(ctx, schema.Names())
		return schema, rows, err
	}

	var schema core.Schema
	if req.SchemaTable != "" {
		typed, err := op.GetTable(ctx, conn, req.SchemaTable)
		if err != nil {
			return core.Schema{}, nil, err
		}
		if schema, err = typed.Schema(ctx); err != nil {
			return core.Schema{}, nil, err
		}
		if len(req.Attributes) > 0 {
			if schema, err = schema.Project(req.Attributes); err != nil {
				return core.Schema{}, nil, err
			}
		}
	} else {
		for _, attr := range req.Attributes {
			schema.Columns = append(schema.Columns, core.NewColumn(attr, "TEXT"))
		}
	}

	rows, err := parseFileRows(file, schema)
	return schema, rows, err
}

// parseFileRows projects a delimited file onto schema and converts each
// field to the column's kind.
func parseFileRows(file ingest.Table, schema core.Schema) ([]core.Row, error) {
	fields, err := file.Project(schema.Names())
	if err != nil {
		return nil, err
	}

	rows := make([]core.Row, len(fields))
	for r, record := range fields {
		row := make(core.Row, len(record))
		for i, field := range record {
			v, err := core.ParseText(field, schema.Columns[i].Type)
			if err != nil {
				return nil, &core.BadParametersError{Reason: fmt.Sprintf("line %d, column %s: %v", r+1, schema.Columns[i].Name, err)}
			}
			row[i] = v
		}
		rows[r] = row
	}
	return rows, nil
}

// DropDataset removes the row store, graph and index of a dataset. Every
// table is attempted; failures are combined. A dataset left partly dropped
// by an earlier failure is still found, so the drop can be retried.
func (engine *Engine) DropDataset(ctx context.Context, name string) (CommitResult, error) {
	start := time.Now()

	unlock := engine.locks.Lock(name)
	defer unlock()

	present, err := op.DatasetTables(ctx, engine.Store.Conn(), name)
	if err != nil {
		return CommitResult{}, err
	}
	if len(present) == 0 {
		return CommitResult{}, fmt.Errorf("%s: %w", name, core.ErrDatasetNotFound)
	}

	log := engine.log(name)
	if err := engine.dropStructures(ctx, name); err != nil {
		log.WithError(err).Error("dataset drop incomplete")
		return CommitResult{}, fmt.Errorf("failed to drop dataset %s: %w", name, err)
	}

	log.Info("dataset dropped")
	return CommitResult{
		Dataset:          name,
		TablesDeleted:    len(present),
		ExecutionTimeSec: time.Since(start).Seconds(),
	}, nil
}

func (engine *Engine) dropStructures(ctx context.Context, name string) error {
	conn := engine.Store.Conn()
	ds := &op.DatasetOp{Name: name, Conn: conn, Graph: vc.NewGraph(name), Index: vc.NewIndex(name, engine.cache)}
	return ds.Drop(ctx)
}
