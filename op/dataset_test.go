package op

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ps"
	"github.com/nickyhof/orpheus/vc"
	"github.com/stretchr/testify/require"
)

func openConn(t *testing.T) *ps.Conn {
	t.Helper()
	store, err := ps.Open(context.Background(), ps.Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.Conn()
}

var ordersSchema = core.Schema{Columns: []core.Column{
	core.NewColumn("id", "INTEGER"),
	core.NewColumn("item", "TEXT"),
}}

func TestCreateAndGetDataset(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	_, err := CreateDataset(ctx, conn, "orders", ordersSchema, nil)
	require.NoError(t, err)

	for _, table := range []string{"orders_datatable", "orders_version", "orders_indexTbl"} {
		exists, err := conn.TableExists(ctx, table)
		require.NoError(t, err)
		require.True(t, exists, table)
	}

	ds, err := GetDataset(ctx, conn, "orders", nil)
	require.NoError(t, err)
	schema, err := ds.Schema(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "item"}, schema.Names())

	_, err = CreateDataset(ctx, conn, "orders", ordersSchema, nil)
	require.ErrorIs(t, err, core.ErrDatasetExists)

	_, err = GetDataset(ctx, conn, "missing", nil)
	require.ErrorIs(t, err, core.ErrDatasetNotFound)
}

func TestCreateDatasetRejectsRidAttribute(t *testing.T) {
	conn := openConn(t)
	schema := core.Schema{Columns: []core.Column{core.NewColumn("RID", "INTEGER")}}

	_, err := CreateDataset(context.Background(), conn, "orders", schema, nil)
	var bad *core.BadParametersError
	require.ErrorAs(t, err, &bad)
}

func TestAppendAndFetchRows(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	ds, err := CreateDataset(ctx, conn, "orders", ordersSchema, nil)
	require.NoError(t, err)

	rids, err := ds.AppendRows(ctx, ordersSchema.Names(), []core.Row{
		{int64(1), "apple"},
		{int64(2), "pear"},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, rids)

	more, err := ds.AppendRows(ctx, ordersSchema.Names(), []core.Row{{int64(3), "plum"}})
	require.NoError(t, err)
	require.Equal(t, []int64{3}, more)

	rel, err := ds.Relation(ctx, ordersSchema)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, rel.Rids)
	require.Equal(t, core.Row{int64(3), "plum"}, rel.Rows[2])

	rows, err := ds.FetchRows(ctx, []string{"item"}, vc.NewRidSet(3, 1))
	require.NoError(t, err)
	require.Equal(t, []core.Row{{"apple"}, {"plum"}}, rows)

	size, err := ds.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, size)
}

func TestFetchRowsManyBatches(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	ds, err := CreateDataset(ctx, conn, "numbers", core.Schema{Columns: []core.Column{core.NewColumn("n", "BIGINT")}}, nil)
	require.NoError(t, err)

	rows := make([]core.Row, 1201)
	for i := range rows {
		rows[i] = core.Row{int64(i * 10)}
	}
	rids, err := ds.AppendRows(ctx, []string{"n"}, rows)
	require.NoError(t, err)

	fetched, err := ds.FetchRows(ctx, []string{"n"}, vc.NewRidSet(rids...))
	require.NoError(t, err)
	require.Equal(t, rows, fetched)
}

func TestListAndDropDatasets(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	_, err := CreateDataset(ctx, conn, "orders", ordersSchema, nil)
	require.NoError(t, err)
	items, err := CreateDataset(ctx, conn, "items", ordersSchema, nil)
	require.NoError(t, err)
	_, err = CreateTable(ctx, conn, "scratch", ordersSchema)
	require.NoError(t, err)
	// a user table that only looks like a row store
	_, err = CreateTable(ctx, conn, "stray_datatable", ordersSchema)
	require.NoError(t, err)

	names, err := ListDatasets(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, []string{"items", "orders"}, names)

	require.NoError(t, items.Drop(ctx))
	names, err = ListDatasets(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, []string{"orders"}, names)

	for _, table := range []string{"items_datatable", "items_version", "items_indexTbl"} {
		exists, err := conn.TableExists(ctx, table)
		require.NoError(t, err)
		require.False(t, exists, table)
	}
}

func TestCreateDatasetKeepsForeignTables(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	foreign, err := CreateTable(ctx, conn, "orders_indexTbl", ordersSchema)
	require.NoError(t, err)
	require.NoError(t, foreign.Insert(ctx, ordersSchema.Names(), []core.Row{{int64(1), "mine"}}))

	_, err = CreateDataset(ctx, conn, "orders", ordersSchema, nil)
	require.ErrorIs(t, err, core.ErrDatasetExists)

	count, err := foreign.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	present, err := DatasetTables(ctx, conn, "orders")
	require.NoError(t, err)
	require.Equal(t, []string{"orders_indexTbl"}, present)
}

func TestDropAttemptsEveryTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conn := ps.NewStore(sqlx.NewDb(db, "sqlmock"), ps.SQLite, false).Conn()
	ds := &DatasetOp{Name: "orders", Conn: conn, Graph: vc.NewGraph("orders"), Index: vc.NewIndex("orders", nil)}

	mock.ExpectExec(`DROP TABLE IF EXISTS "orders_version"`).WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectExec(`DROP TABLE IF EXISTS "orders_indexTbl"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "orders_datatable"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.Drop(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableOp(t *testing.T) {
	ctx := context.Background()
	conn := openConn(t)

	table, err := CreateTable(ctx, conn, "scratch", ordersSchema)
	require.NoError(t, err)
	require.NoError(t, table.Insert(ctx, ordersSchema.Names(), []core.Row{{int64(1), "apple"}}))

	_, err = CreateTable(ctx, conn, "scratch", ordersSchema)
	var bad *core.BadParametersError
	require.ErrorAs(t, err, &bad)

	opened, err := GetTable(ctx, conn, "scratch")
	require.NoError(t, err)
	rel, err := opened.Relation(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.Row{{int64(1), "apple"}}, rel.Rows)
	require.Nil(t, rel.Rids)

	n, err := opened.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.NoError(t, opened.Drop(ctx))
	_, err = GetTable(ctx, conn, "scratch")
	require.ErrorIs(t, err, core.ErrTableNotFound)
}
