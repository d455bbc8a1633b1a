// Package op provides the table-level operations the engine is built from.
//
// The op package sits between the engine (db/) and the backing store (ps/).
//
// # DatasetOp
//
// DatasetOp wraps the row store, version graph and version index of one
// dataset:
//
//	ds, err := op.CreateDataset(ctx, conn, "orders", schema, cache)
//	rids, _ := ds.AppendRows(ctx, schema.Names(), rows)   // rids 1..n
//	rel, _ := ds.Relation(ctx, schema)                     // rows with rids
//	rows, _ := ds.FetchRows(ctx, schema.Names(), ridSet)   // rows of a version
//	ds.Drop(ctx)                                           // all three tables
//
// Rows are only ever appended. A rid, once assigned, always names the same
// attribute values.
//
// # TableOp
//
// TableOp wraps an ordinary table, such as a checkout destination:
//
//	t, err := op.GetTable(ctx, conn, "orders_clone")
//	rel, _ := t.Relation(ctx)
//
// # Architecture
//
// The layering is:
//
//	Engine (db/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Version control (vc/)
//	     ↓
//	Backing store (ps/)
package op
