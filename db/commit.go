package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ingest"
	"github.com/nickyhof/orpheus/op"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// CommitRequest records the current content of a checked out table or file
// as a new version.
type CommitRequest struct {
	Table     string
	File      string
	Message   string
	Delimiter string
	Header    bool
}

// Commit diffs the destination against the dataset's row store, appends the
// rows it has never seen and records a version whose parents are the
// versions the destination was checked out from. A destination holding
// nothing new is reported as a no-op.
func (engine *Engine) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	start := time.Now()

	switch {
	case req.Table != "" && req.File != "":
		return CommitResult{}, &core.NotImplementedError{Feature: "committing a table and a file together"}
	case req.Table == "" && req.File == "":
		return CommitResult{}, &core.BadParametersError{Reason: "a table or a file to commit is required"}
	}

	doc, err := engine.Meta.Load()
	if err != nil {
		return CommitResult{}, err
	}

	var (
		derivation core.Derivation
		file       ingest.Table
		createdAt  = start
	)
	if req.Table != "" {
		if derivation, err = engine.Meta.LoadParentInfo(req.Table); err != nil {
			return CommitResult{}, err
		}
		if ts, ok := doc.TableCreateTime(req.Table); ok {
			createdAt = ts
		}
	} else {
		path := ingest.Resolve(req.File, engine.home)
		if derivation, err = engine.Meta.LoadFileParentInfo(path); err != nil {
			return CommitResult{}, err
		}
		if file, err = ingest.LoadDelimited(ctx, path, engine.ingestOptions(req.Delimiter, req.Header)); err != nil {
			return CommitResult{}, err
		}
	}

	unlock := engine.locks.Lock(derivation.Dataset)
	defer unlock()

	log := engine.log(derivation.Dataset).WithFields(logrus.Fields{
		"destination": derivation.Destination,
		"parents":     core.FormatVersions(derivation.Versions),
	})
	result := CommitResult{Dataset: derivation.Dataset, Destination: derivation.Destination}

	err = engine.Store.RunInTx(ctx, func(conn *ps.Conn) error {
		ds, err := op.GetDataset(ctx, conn, derivation.Dataset, engine.cache)
		if err != nil {
			return err
		}
		schema, err := ds.Schema(ctx)
		if err != nil {
			return err
		}
		expect, err := ds.Graph.LastIssued(ctx, conn)
		if err != nil {
			return err
		}

		var candidate vc.Relation
		if req.Table != "" {
			table, err := op.GetTable(ctx, conn, req.Table)
			if err != nil {
				return err
			}
			if candidate, err = table.Relation(ctx); err != nil {
				return err
			}
		} else {
			rows, err := parseFileRows(file, schema)
			if err != nil {
				return err
			}
			if candidate, err = storedRelation(ctx, conn, schema, rows); err != nil {
				return err
			}
		}

		canonical, err := ds.Relation(ctx, schema)
		if err != nil {
			return err
		}

		attrs := schema.Names()
		fresh, err := vc.Complement(candidate, canonical, attrs)
		if err != nil {
			return err
		}
		if len(fresh) == 0 {
			result.NoOp = true
			return nil
		}

		matched, err := vc.Intersection(candidate, canonical, attrs)
		if err != nil {
			return err
		}
		rids, err := ds.AppendRows(ctx, attrs, fresh)
		if err != nil {
			return err
		}
		members := matched.Clone()
		members.Or(vc.NewRidSet(rids...))

		version, err := ds.Graph.Append(ctx, conn, vc.AppendRequest{
			Parents:      derivation.Versions,
			RowCount:     int64(members.GetCardinality()),
			CreatedAt:    createdAt,
			Message:      req.Message,
			ExpectLatest: &expect,
		})
		if err != nil {
			return err
		}
		if err := ds.Index.Record(ctx, conn, version.ID, members); err != nil {
			return err
		}

		result.Version = &version
		result.RowsAdded = len(rids)
		result.RowsMatched = int(matched.GetCardinality())
		return nil
	})
	if err != nil {
		var conflict *core.ConcurrentModificationError
		if errors.As(err, &conflict) {
			log.WithError(err).Warn("commit lost a race for the next version id")
		} else {
			log.WithError(err).Error("commit failed")
		}
		return CommitResult{}, err
	}

	result.ExecutionTimeSec = time.Since(start).Seconds()
	if result.NoOp {
		log.Info("nothing to commit")
		return result, nil
	}
	log.WithFields(logrus.Fields{
		"version": result.Version.ID,
		"added":   result.RowsAdded,
		"matched": result.RowsMatched,
	}).Info("version committed")
	return result, nil
}

// scratchPrefix names the short-lived tables file commits pass through.
const scratchPrefix = "orpheus_scratch_"

// storedRelation round-trips rows parsed from a file through a scratch table
// of the dataset schema, so they compare in the representation the store
// gives the row store.
func storedRelation(ctx context.Context, conn *ps.Conn, schema core.Schema, rows []core.Row) (rel vc.Relation, err error) {
	name := scratchPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	table, err := op.CreateTable(ctx, conn, name, schema)
	if err != nil {
		return vc.Relation{}, err
	}
	defer func() {
		err = multierr.Append(err, table.Drop(ctx))
	}()

	if err := table.Insert(ctx, schema.Names(), rows); err != nil {
		return vc.Relation{}, err
	}
	return table.Relation(ctx)
}
