// Package ingest reads and writes delimited files for dataset
// initialization, commit and checkout.
//
// Paths may be local, file://, http(s):// (read only) or s3://.
//
//	table, err := ingest.LoadDelimited(ctx, "s3://bucket/orders.csv", ingest.Options{Header: true})
//	rows, err := table.Project([]string{"id", "item"})
//
//	err = ingest.WriteDelimited(ctx, "orders.csv", columns, rows, ingest.Options{Delimiter: "|"})
package ingest
