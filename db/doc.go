// Package db is the operation layer of Orpheus.
//
// An Engine binds a backing store, a metadata store and the identity of its
// caller, and exposes the dataset operations:
//
//	engine := db.NewEngine(store, metaStore, identity, db.Options{})
//	result, err := engine.InitDataset(ctx, db.InitRequest{Dataset: "orders", Table: "orders_src"})
//	result, err = engine.Checkout(ctx, db.CheckoutRequest{Dataset: "orders", Versions: []int64{1}, Table: "orders_work"})
//	result, err = engine.Commit(ctx, db.CommitRequest{Table: "orders_work", Message: "add rows"})
//	result.Display()
//
// # Result Types
//
// There are two result types:
//   - QueryResult: tabular listings (datasets, versions, metadata history)
//   - CommitResult: an operation that created a version, a destination or
//     a metadata transaction
//
// Init, commit, checkout and drop of the same dataset are serialized inside
// one process by a keyed lock; across processes the version graph's
// compare-and-append rejects the loser with a ConcurrentModificationError.
package db
