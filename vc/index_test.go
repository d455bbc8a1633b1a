package vc

import (
	"context"
	"testing"

	"github.com/nickyhof/orpheus/core"
	"github.com/stretchr/testify/require"
)

func TestIndexRecordResolve(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	cache, err := NewCache(8)
	require.NoError(t, err)
	idx := NewIndex("orders", cache)
	require.NoError(t, idx.Create(ctx, conn))

	require.NoError(t, idx.Record(ctx, conn, 1, NewRidSet(1, 2, 3)))
	require.NoError(t, idx.Record(ctx, conn, 2, NewRidSet(1, 2, 3, 4)))

	rids, err := idx.Resolve(ctx, conn, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, Rids(rids))
	require.Equal(t, 1, cache.Len())

	// cached sets are copies
	rids.Add(99)
	again, err := idx.Resolve(ctx, conn, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, Rids(again))
}

func TestIndexRecordIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	idx := NewIndex("orders", nil)
	require.NoError(t, idx.Create(ctx, conn))

	require.NoError(t, idx.Record(ctx, conn, 1, NewRidSet(1, 2)))
	require.NoError(t, idx.Record(ctx, conn, 1, NewRidSet(2, 1)))

	err := idx.Record(ctx, conn, 1, NewRidSet(1, 2, 3))
	var conflict *core.IndexConflictError
	require.ErrorAs(t, err, &conflict)
	require.EqualValues(t, 1, conflict.Version)
}

func TestIndexResolveUnknown(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	idx := NewIndex("orders", nil)
	require.NoError(t, idx.Create(ctx, conn))

	_, err := idx.Resolve(ctx, conn, 7)
	var unknown *core.UnknownVersionError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "orders", unknown.Dataset)

	_, err = idx.ResolveMany(ctx, conn, nil)
	var bad *core.BadParametersError
	require.ErrorAs(t, err, &bad)
}

func TestIndexResolveManyDeduplicates(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	idx := NewIndex("orders", nil)
	require.NoError(t, idx.Create(ctx, conn))

	require.NoError(t, idx.Record(ctx, conn, 1, NewRidSet(1, 2, 3)))
	require.NoError(t, idx.Record(ctx, conn, 2, NewRidSet(2, 3, 4)))

	union, err := idx.ResolveMany(ctx, conn, []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, Rids(union))
}

func TestIndexDropEvictsCache(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	cache, err := NewCache(0)
	require.NoError(t, err)
	idx := NewIndex("orders", cache)
	other := NewIndex("items", cache)
	require.NoError(t, idx.Create(ctx, conn))
	require.NoError(t, other.Create(ctx, conn))

	require.NoError(t, idx.Record(ctx, conn, 1, NewRidSet(1)))
	require.NoError(t, other.Record(ctx, conn, 1, NewRidSet(5)))
	_, err = idx.Resolve(ctx, conn, 1)
	require.NoError(t, err)
	_, err = other.Resolve(ctx, conn, 1)
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	require.NoError(t, idx.Drop(ctx, conn))
	require.Equal(t, 1, cache.Len())
}
