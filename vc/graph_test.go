package vc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ps"
	"github.com/stretchr/testify/require"
)

func openConn(t *testing.T) *ps.Conn {
	t.Helper()
	store, err := ps.Open(context.Background(), ps.Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.Conn()
}

func newGraph(t *testing.T, conn *ps.Conn, dataset string) *Graph {
	t.Helper()
	g := NewGraph(dataset)
	require.NoError(t, g.Create(context.Background(), conn))
	return g
}

func TestCreateRoot(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	g := newGraph(t, conn, "orders")

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	root, err := g.CreateRoot(ctx, conn, 3, ts)
	require.NoError(t, err)
	require.EqualValues(t, 1, root.ID)
	require.True(t, root.IsRoot())
	require.EqualValues(t, 3, root.RowCount)

	got, err := g.Get(ctx, conn, root.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, got.ID)
	require.Empty(t, got.Parents)
	require.True(t, got.CreatedAt.Equal(ts))
	require.Equal(t, RootMessage, got.Message)

	_, err = g.CreateRoot(ctx, conn, 3, ts)
	require.ErrorIs(t, err, core.ErrRootExists)
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	g := newGraph(t, conn, "orders")

	root, err := g.CreateRoot(ctx, conn, 3, time.Now())
	require.NoError(t, err)

	v2, err := g.Append(ctx, conn, AppendRequest{Parents: []int64{root.ID}, RowCount: 4, Message: "add row"})
	require.NoError(t, err)
	require.Greater(t, v2.ID, root.ID)
	require.Equal(t, []int64{root.ID}, v2.Parents)

	merge, err := g.Append(ctx, conn, AppendRequest{Parents: []int64{root.ID, v2.ID}, RowCount: 4, Message: "merge"})
	require.NoError(t, err)
	require.Greater(t, merge.ID, v2.ID)

	versions, err := g.List(ctx, conn)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	require.Equal(t, []int64{root.ID, v2.ID}, versions[2].Parents)

	latest, err := g.Latest(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, merge.ID, latest.ID)
	require.Equal(t, "merge", latest.Message)
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	g := newGraph(t, conn, "orders")

	_, err := g.CreateRoot(ctx, conn, 1, time.Now())
	require.NoError(t, err)

	_, err = g.Append(ctx, conn, AppendRequest{RowCount: 1})
	var bad *core.BadParametersError
	require.ErrorAs(t, err, &bad)

	_, err = g.Append(ctx, conn, AppendRequest{Parents: []int64{1, 42}, RowCount: 1})
	var unknown *core.UnknownParentError
	require.ErrorAs(t, err, &unknown)
	require.EqualValues(t, 42, unknown.Parent)
}

func TestAppendExpectLatest(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	g := newGraph(t, conn, "orders")

	root, err := g.CreateRoot(ctx, conn, 1, time.Now())
	require.NoError(t, err)

	observed := root.ID
	_, err = g.Append(ctx, conn, AppendRequest{Parents: []int64{root.ID}, RowCount: 1, ExpectLatest: &observed})
	require.NoError(t, err)

	// a second writer that observed the same state loses
	_, err = g.Append(ctx, conn, AppendRequest{Parents: []int64{root.ID}, RowCount: 1, ExpectLatest: &observed})
	var conflict *core.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	require.True(t, conflict.Temporary())
}

func TestAppendLostRaceKeepsReadError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	conn := ps.NewStore(sqlx.NewDb(db, "sqlmock"), ps.SQLite, false).Conn()

	mock.ExpectQuery(`SELECT vid FROM "orders_version"`).WillReturnRows(sqlmock.NewRows([]string{"vid"}).AddRow(1))
	mock.ExpectQuery(`SELECT last_vid FROM "orpheus_version_seq"`).WillReturnRows(sqlmock.NewRows([]string{"last_vid"}).AddRow(1))
	mock.ExpectExec(`UPDATE "orpheus_version_seq" SET last_vid`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT last_vid FROM "orpheus_version_seq"`).WillReturnError(errors.New("connection reset"))

	_, err = NewGraph("orders").Append(context.Background(), conn, AppendRequest{Parents: []int64{1}, RowCount: 1})
	var conflict *core.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionIdsNotReusedAfterDrop(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	g := newGraph(t, conn, "orders")

	root, err := g.CreateRoot(ctx, conn, 1, time.Now())
	require.NoError(t, err)
	v2, err := g.Append(ctx, conn, AppendRequest{Parents: []int64{root.ID}, RowCount: 1})
	require.NoError(t, err)

	require.NoError(t, g.Drop(ctx, conn))

	g = newGraph(t, conn, "orders")
	newRoot, err := g.CreateRoot(ctx, conn, 1, time.Now())
	require.NoError(t, err)
	require.Greater(t, newRoot.ID, v2.ID)
}

func TestAncestors(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	g := newGraph(t, conn, "orders")

	root, err := g.CreateRoot(ctx, conn, 1, time.Now())
	require.NoError(t, err)
	a, err := g.Append(ctx, conn, AppendRequest{Parents: []int64{root.ID}, RowCount: 1})
	require.NoError(t, err)
	b, err := g.Append(ctx, conn, AppendRequest{Parents: []int64{root.ID}, RowCount: 1})
	require.NoError(t, err)
	m, err := g.Append(ctx, conn, AppendRequest{Parents: []int64{a.ID, b.ID}, RowCount: 1})
	require.NoError(t, err)

	ancestors, err := g.Ancestors(ctx, conn, m.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{root.ID, a.ID, b.ID}, ancestors)

	ancestors, err = g.Ancestors(ctx, conn, root.ID)
	require.NoError(t, err)
	require.Empty(t, ancestors)

	_, err = g.Ancestors(ctx, conn, 99)
	var unknown *core.UnknownVersionError
	require.ErrorAs(t, err, &unknown)
}

func TestGraphIsAcyclic(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)
	g := newGraph(t, conn, "orders")

	root, err := g.CreateRoot(ctx, conn, 1, time.Now())
	require.NoError(t, err)
	prev := []int64{root.ID}
	for i := 0; i < 5; i++ {
		v, err := g.Append(ctx, conn, AppendRequest{Parents: prev, RowCount: 1})
		require.NoError(t, err)
		prev = append(prev, v.ID)
	}

	versions, err := g.List(ctx, conn)
	require.NoError(t, err)
	for _, v := range versions {
		for _, p := range v.Parents {
			require.Less(t, p, v.ID, "parent must predate child")
		}
		ancestors, err := g.Ancestors(ctx, conn, v.ID)
		require.NoError(t, err)
		require.NotContains(t, ancestors, v.ID)
	}
}
