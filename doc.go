// Package orpheus provides dataset version control on top of a relational
// store.
//
// A dataset is a table placed under version control. Its rows live once in
// an append-only row store; each version records the set of row ids it
// contains and the versions it was derived from. Checking out versions
// materializes their rows into an ordinary table or a delimited file, and
// committing that destination records whatever new rows it holds as a new
// version.
//
// # Quick Start
//
// Open an in-memory instance:
//
//	store, _ := ps.Open(ctx, ps.Config{Driver: "sqlite"})
//	metaStore, _ := meta.NewMemoryStore()
//	instance := orpheus.Open(store, metaStore, db.Options{})
//	engine := instance.Engine(core.Identity{Name: "App", Email: "app@example.com"})
//
//	engine.InitDataset(ctx, db.InitRequest{Dataset: "orders", Table: "orders_src"})
//	engine.Checkout(ctx, db.CheckoutRequest{Dataset: "orders", Versions: []int64{1}, Table: "orders_work"})
//	// modify orders_work with plain SQL
//	result, _ := engine.Commit(ctx, db.CommitRequest{Table: "orders_work", Message: "more orders"})
//	result.Display()
//
// # Storage
//
// Each dataset owns three tables in the backing store:
//   - <name>_datatable: the row store, keyed by rid
//   - <name>_version: the version graph
//   - <name>_indexTbl: the rid set of every version, roaring-encoded
//
// Which table or file was checked out from which versions is kept in a JSON
// document committed to a git repository, so its history can be inspected.
package orpheus
