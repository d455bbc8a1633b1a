package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ingest"
	"github.com/nickyhof/orpheus/meta"
	"github.com/nickyhof/orpheus/op"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// CheckoutRequest materializes the union of one or more versions of a
// dataset into a new table or a delimited file.
type CheckoutRequest struct {
	Dataset  string
	Versions []int64
	// Table or File is the destination; exactly one must be set.
	Table     string
	File      string
	Delimiter string
	Header    bool
	// IgnoreDuplicates writes a tuple held under several rids only once.
	IgnoreDuplicates bool
}

// Checkout materializes the requested versions and records the destination's
// derivation so that a later Commit knows its parents. The destination is
// removed again if any later step fails.
func (engine *Engine) Checkout(ctx context.Context, req CheckoutRequest) (CommitResult, error) {
	start := time.Now()

	if req.Dataset == "" {
		return CommitResult{}, &core.BadParametersError{Reason: "dataset name is required"}
	}
	if len(req.Versions) == 0 {
		return CommitResult{}, &core.BadParametersError{Reason: "at least one version is required"}
	}
	if (req.Table == "") == (req.File == "") {
		return CommitResult{}, &core.BadParametersError{Reason: "exactly one of table or file must be given"}
	}

	// the request order is the parent order of the next commit
	vids := make([]int64, 0, len(req.Versions))
	for _, vid := range req.Versions {
		if !slices.Contains(vids, vid) {
			vids = append(vids, vid)
		}
	}

	destination := req.Table
	path := ""
	if req.File != "" {
		path = ingest.Resolve(req.File, engine.home)
		destination = path
	}

	unlock := engine.locks.Lock(req.Dataset)
	defer unlock()

	log := engine.log(req.Dataset).WithFields(logrus.Fields{
		"destination": destination,
		"versions":    core.FormatVersions(vids),
	})
	result := CommitResult{Dataset: req.Dataset, Destination: destination}

	var (
		columns      []string
		rows         []core.Row
		tableCreated bool
		fileWritten  bool
	)
	err := engine.Store.RunInTx(ctx, func(conn *ps.Conn) error {
		ds, err := op.GetDataset(ctx, conn, req.Dataset, engine.cache)
		if err != nil {
			return err
		}
		schema, err := ds.Schema(ctx)
		if err != nil {
			return err
		}
		rids, err := ds.Index.ResolveMany(ctx, conn, vids)
		if err != nil {
			return err
		}
		columns = schema.Names()
		if rows, err = ds.FetchRows(ctx, columns, rids); err != nil {
			return err
		}
		if req.IgnoreDuplicates {
			rows = vc.Distinct(rows)
		}

		if req.Table == "" {
			return nil
		}
		table, err := op.CreateTable(ctx, conn, req.Table, schema)
		if err != nil {
			return err
		}
		tableCreated = true
		if err := table.Insert(ctx, columns, rows); err != nil {
			return err
		}
		return engine.access.GrantAccess(ctx, conn, req.Table, engine.Identity.Principal())
	})

	if err == nil && path != "" {
		fileWritten = true
		err = ingest.WriteDelimited(ctx, path, columns, rows, engine.ingestOptions(req.Delimiter, req.Header))
	}

	if err == nil {
		message := fmt.Sprintf("Checkout %s version(s) %s to %s", req.Dataset, core.FormatVersions(vids), destination)
		result.Transaction, err = engine.Meta.Modify(engine.Identity, message, func(doc *meta.Document) error {
			doc.Update(req.Table, path, req.Dataset, vids, time.Now())
			return nil
		})
	}

	if err != nil {
		if tableCreated {
			err = multierr.Append(err, engine.Store.Conn().DropTable(ctx, req.Table))
		}
		if fileWritten && ingest.IsLocal(path) {
			err = multierr.Append(err, ingest.Remove(path))
		}
		log.WithError(err).Error("checkout failed")
		return CommitResult{}, err
	}

	result.RecordsWritten = len(rows)
	if tableCreated {
		result.TablesCreated = 1
	}
	result.ExecutionTimeSec = time.Since(start).Seconds()
	log.WithField("records", result.RecordsWritten).Info("checked out")
	return result, nil
}
