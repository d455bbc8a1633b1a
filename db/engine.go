package db

import (
	"context"
	"time"

	"github.com/nickyhof/orpheus/access"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ingest"
	"github.com/nickyhof/orpheus/meta"
	"github.com/nickyhof/orpheus/op"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
	"github.com/sirupsen/logrus"
)

// QueryContext carries the caller of an engine operation.
type QueryContext struct {
	Identity core.Identity
}

// Options are the collaborators shared by every engine of an instance. Zero
// fields get defaults.
type Options struct {
	Access access.Manager
	Cache  *vc.Cache
	Locks  *Locks
	Logger *logrus.Logger
	// Home resolves relative file paths.
	Home string
	S3   *ingest.S3Config
}

type Engine struct {
	Store *ps.Store
	Meta  *meta.Store
	QueryContext

	access access.Manager
	cache  *vc.Cache
	locks  *Locks
	logger *logrus.Logger
	home   string
	s3     *ingest.S3Config
}

func NewEngine(store *ps.Store, metaStore *meta.Store, identity core.Identity, opts Options) *Engine {
	if opts.Access == nil {
		opts.Access = access.SQLManager{}
	}
	if opts.Cache == nil {
		opts.Cache, _ = vc.NewCache(vc.DefaultCacheSize)
	}
	if opts.Locks == nil {
		opts.Locks = NewLocks()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Engine{
		Store:        store,
		Meta:         metaStore,
		QueryContext: QueryContext{Identity: identity},
		access:       opts.Access,
		cache:        opts.Cache,
		locks:        opts.Locks,
		logger:       opts.Logger,
		home:         opts.Home,
		s3:           opts.S3,
	}
}

func (engine *Engine) log(dataset string) *logrus.Entry {
	return engine.logger.WithFields(logrus.Fields{
		"dataset": dataset,
		"user":    engine.Identity.Principal(),
	})
}

func (engine *Engine) ingestOptions(delimiter string, header bool) ingest.Options {
	return ingest.Options{Delimiter: delimiter, Header: header, S3: engine.s3}
}

// ListDatasets returns every dataset name, sorted.
func (engine *Engine) ListDatasets(ctx context.Context) ([]string, error) {
	return op.ListDatasets(ctx, engine.Store.Conn())
}

// DatasetInfo describes a dataset for display.
type DatasetInfo struct {
	Name     string
	Schema   core.Schema
	Size     int64
	Versions []core.Version
}

// ShowDataset returns the schema, row store size and versions of a dataset.
func (engine *Engine) ShowDataset(ctx context.Context, name string) (DatasetInfo, error) {
	conn := engine.Store.Conn()
	ds, err := op.GetDataset(ctx, conn, name, engine.cache)
	if err != nil {
		return DatasetInfo{}, err
	}

	schema, err := ds.Schema(ctx)
	if err != nil {
		return DatasetInfo{}, err
	}
	size, err := ds.Size(ctx)
	if err != nil {
		return DatasetInfo{}, err
	}
	versions, err := ds.Graph.List(ctx, conn)
	if err != nil {
		return DatasetInfo{}, err
	}

	return DatasetInfo{Name: name, Schema: schema, Size: size, Versions: versions}, nil
}

// Versions lists the versions of a dataset in id order.
func (engine *Engine) Versions(ctx context.Context, dataset string) ([]core.Version, error) {
	conn := engine.Store.Conn()
	ds, err := op.GetDataset(ctx, conn, dataset, engine.cache)
	if err != nil {
		return nil, err
	}
	return ds.Graph.List(ctx, conn)
}

// Ancestors returns every version vid descends from.
func (engine *Engine) Ancestors(ctx context.Context, dataset string, vid int64) ([]int64, error) {
	conn := engine.Store.Conn()
	ds, err := op.GetDataset(ctx, conn, dataset, engine.cache)
	if err != nil {
		return nil, err
	}
	return ds.Graph.Ancestors(ctx, conn, vid)
}

// Clean resets the metadata document. Datasets are untouched.
func (engine *Engine) Clean(ctx context.Context) (meta.Transaction, error) {
	txn, err := engine.Meta.Clean(engine.Identity)
	if err != nil {
		return meta.Transaction{}, err
	}
	engine.logger.WithField("user", engine.Identity.Principal()).Info("metadata cleaned")
	return txn, nil
}

// History lists the changes to the metadata document, newest first.
func (engine *Engine) History(ctx context.Context, since time.Time) ([]meta.Transaction, error) {
	return engine.Meta.History(since)
}
