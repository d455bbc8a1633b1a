// Package vc implements dataset version control: the version graph, the
// version index and the diff engine.
//
// Every dataset owns two tables next to its row store. The graph table
// holds one row per version with its parents, row count, timestamps and
// message. The index table maps each version id to the complete set of rids
// it contains, stored as a serialized roaring bitmap, so any version can be
// reconstructed without walking its ancestry.
//
//	graph := vc.NewGraph("orders")
//	root, _ := graph.CreateRoot(ctx, conn, 3, time.Now())
//
//	index := vc.NewIndex("orders", cache)
//	index.Record(ctx, conn, root.ID, vc.NewRidSet(1, 2, 3))
//	rids, _ := index.ResolveMany(ctx, conn, []int64{root.ID})
//
// Version ids come from a per-dataset sequence in the store catalog. An
// append advances it with a compare-and-set, so of two writers racing on the
// same dataset one fails with *core.ConcurrentModificationError.
//
// Complement and Intersection compare rows by their attribute tuples, not by
// rid, which is how a working table without rids is matched against the row
// store.
package vc
