package orpheus

import (
	"context"

	"github.com/nickyhof/orpheus/config"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/db"
	"github.com/nickyhof/orpheus/meta"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
	"go.uber.org/multierr"
)

// Instance is an open backing store and metadata store. Engines created from
// one instance share its rid set cache and dataset locks.
type Instance struct {
	Store *ps.Store
	Meta  *meta.Store

	options db.Options
}

func Open(store *ps.Store, metaStore *meta.Store, opts db.Options) *Instance {
	if opts.Cache == nil {
		opts.Cache, _ = vc.NewCache(vc.DefaultCacheSize)
	}
	if opts.Locks == nil {
		opts.Locks = db.NewLocks()
	}
	return &Instance{Store: store, Meta: metaStore, options: opts}
}

// OpenConfig opens the stores cfg describes. An empty metadata directory
// keeps the metadata in memory.
func OpenConfig(ctx context.Context, cfg config.Config) (*Instance, error) {
	store, err := ps.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	var metaStore *meta.Store
	if cfg.Meta.Dir == "" {
		metaStore, err = meta.NewMemoryStore()
	} else {
		var gitURL *string
		if cfg.Meta.GitURL != "" {
			gitURL = &cfg.Meta.GitURL
		}
		metaStore, err = meta.NewFileStore(cfg.Meta.Dir, gitURL)
	}
	if err != nil {
		return nil, multierr.Append(err, store.Close())
	}

	s3 := cfg.S3
	return Open(store, metaStore, db.Options{
		Logger: cfg.Logger(),
		Home:   cfg.Home,
		S3:     &s3,
	}), nil
}

func (instance *Instance) Engine(identity core.Identity) *db.Engine {
	return db.NewEngine(instance.Store, instance.Meta, identity, instance.options)
}

func (instance *Instance) Close() error {
	return instance.Store.Close()
}
