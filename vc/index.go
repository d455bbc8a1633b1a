package vc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ps"
)

// DefaultCacheSize is the number of resolved rid sets kept in memory.
const DefaultCacheSize = 256

type cacheKey struct {
	dataset string
	vid     int64
}

// Cache holds resolved rid sets across datasets. Index entries never change
// once written and version ids are never reused, so entries never go stale.
type Cache struct {
	lru *lru.Cache[cacheKey, *roaring64.Bitmap]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cacheKey, *roaring64.Bitmap](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) get(dataset string, vid int64) (*roaring64.Bitmap, bool) {
	if c == nil {
		return nil, false
	}
	bm, ok := c.lru.Get(cacheKey{dataset, vid})
	if !ok {
		return nil, false
	}
	return bm.Clone(), true
}

func (c *Cache) add(dataset string, vid int64, bm *roaring64.Bitmap) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey{dataset, vid}, bm.Clone())
}

// Forget evicts every entry of dataset.
func (c *Cache) Forget(dataset string) {
	if c == nil {
		return
	}
	for _, key := range c.lru.Keys() {
		if key.dataset == dataset {
			c.lru.Remove(key)
		}
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Index maps each version of one dataset to the explicit set of rids it
// contains, stored in <dataset>_indexTbl as serialized roaring bitmaps.
type Index struct {
	dataset string
	table   string
	cache   *Cache
}

// NewIndex returns the index of dataset. cache may be nil.
func NewIndex(dataset string, cache *Cache) *Index {
	return &Index{dataset: dataset, table: core.IndexTable(dataset), cache: cache}
}

// Create creates the index table.
func (idx *Index) Create(ctx context.Context, conn *ps.Conn) error {
	query := fmt.Sprintf("CREATE TABLE %s (vid BIGINT PRIMARY KEY, rlist %s NOT NULL)",
		conn.Quote(idx.table), conn.Dialect().BlobType())
	_, err := conn.Exec(ctx, query)
	return err
}

// Record stores the rid set of vid. Recording an equal set again is a
// no-op; a different set fails with IndexConflictError.
func (idx *Index) Record(ctx context.Context, conn *ps.Conn, vid int64, rids *roaring64.Bitmap) error {
	existing, err := idx.load(ctx, conn, vid)
	if err == nil {
		if existing.Equals(rids) {
			return nil
		}
		return &core.IndexConflictError{Dataset: idx.dataset, Version: vid}
	}
	var unknown *core.UnknownVersionError
	if !errors.As(err, &unknown) {
		return err
	}

	rids.RunOptimize()
	data, err := rids.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize rid set of version %d: %w", vid, err)
	}

	query := fmt.Sprintf("INSERT INTO %s (vid, rlist) VALUES (?, ?)", conn.Quote(idx.table))
	if _, err := conn.Exec(ctx, query, vid, data); err != nil {
		if ps.IsUniqueViolation(err) {
			return &core.IndexConflictError{Dataset: idx.dataset, Version: vid}
		}
		return err
	}
	return nil
}

// Resolve returns the rid set of vid.
func (idx *Index) Resolve(ctx context.Context, conn *ps.Conn, vid int64) (*roaring64.Bitmap, error) {
	if bm, ok := idx.cache.get(idx.dataset, vid); ok {
		return bm, nil
	}
	bm, err := idx.load(ctx, conn, vid)
	if err != nil {
		return nil, err
	}
	idx.cache.add(idx.dataset, vid, bm)
	return bm, nil
}

// ResolveMany returns the union of the rid sets of vids. A rid present in
// several versions appears once.
func (idx *Index) ResolveMany(ctx context.Context, conn *ps.Conn, vids []int64) (*roaring64.Bitmap, error) {
	if len(vids) == 0 {
		return nil, &core.BadParametersError{Reason: "no versions given"}
	}
	union := roaring64.New()
	for _, vid := range vids {
		bm, err := idx.Resolve(ctx, conn, vid)
		if err != nil {
			return nil, err
		}
		union.Or(bm)
	}
	return union, nil
}

func (idx *Index) load(ctx context.Context, conn *ps.Conn, vid int64) (*roaring64.Bitmap, error) {
	var data []byte
	query := fmt.Sprintf("SELECT rlist FROM %s WHERE vid = ?", conn.Quote(idx.table))
	err := conn.Get(ctx, &data, query, vid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.UnknownVersionError{Dataset: idx.dataset, Version: vid}
	}
	if err != nil {
		return nil, err
	}

	bm := roaring64.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("corrupt rid set for version %d of %s: %w", vid, idx.dataset, err)
	}
	return bm, nil
}

// Drop removes the index table and evicts cached sets.
func (idx *Index) Drop(ctx context.Context, conn *ps.Conn) error {
	idx.cache.Forget(idx.dataset)
	return conn.DropTable(ctx, idx.table)
}

// NewRidSet builds a rid set from a slice.
func NewRidSet(rids ...int64) *roaring64.Bitmap {
	bm := roaring64.New()
	for _, rid := range rids {
		bm.Add(uint64(rid))
	}
	return bm
}

// Rids returns the members of bm in ascending order.
func Rids(bm *roaring64.Bitmap) []int64 {
	out := make([]int64, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	return out
}
