// Package db is the document layer of innoldb.
//
// Query binds a ledger table to the lookups innoldb offers:
//
//	q, err := db.NewQuery(ledgerOp, "employees", db.WithIgnoreCase(true))
//	docs, err := q.FindBy(ctx, core.KeyValue{Key: "team", Value: "InnoLab"})
//	docs, err = q.FindLike(ctx, core.KeyValue{Key: "team", Value: "lab"})
//	doc, err := q.Get(ctx, "7e1e9313")
//	doc, err = q.Update(ctx, "7e1e9313", core.KeyValue{Key: "location", Value: "Florida"})
//	strands, err := q.Strands(ctx, "7e1e9313")
//
// Filter matches documents in memory when a lookup cannot be expressed as a
// statement. Printer writes documents as JSON, JSON lines or a table, and
// ReadDocuments and WriteDocuments move documents between a table and local
// files, HTTP or S3.
package db
