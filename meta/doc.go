// Package meta provides the metadata store for Orpheus.
//
// The metadata store records, for every table or file produced by a
// checkout, which dataset and which versions it was derived from, plus the
// time each table was created. Commit consults it to learn what a working
// table should be diffed against.
//
// The document lives outside the relational store, as meta_info.json in a
// git repository managed with go-git. Every update is a git commit, so the
// provenance of working tables has its own history.
//
//	store, _ := meta.NewMemoryStore()
//	doc, _ := store.Load()
//	doc.Update("orders_clone", "", "orders", []int64{1, 2}, time.Now())
//	store.Commit(doc, identity, "Checkout orders@1,2")
//
//	parent, _ := store.LoadParentInfo("orders_clone")
package meta
