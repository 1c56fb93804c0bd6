// Package op is the driver layer: it turns innoldb operations into PartiQL
// statements and runs each one in its own ledger transaction.
//
// # LedgerOp
//
//	ledgerOp := op.NewLedgerOp(ledger, "id", logger)
//	tables, err := ledgerOp.Tables(ctx)
//	employees, err := ledgerOp.EnsureTable(ctx, "employees")
//
// # TableOp
//
//	ids, err := employees.Insert(ctx, map[string]any{"id": "1", "team": "lab"})
//	docs, err := employees.QueryByFields(ctx, map[string]any{"team": "lab"})
//	docs, err = employees.QueryLikeFields(ctx, map[string]string{"team": "la"}, true)
//	n, err := employees.UpdateFields(ctx, "1", map[string]any{"team": "research"})
//	revisions, err := employees.History(ctx, ids[0])
//
// Table and field names are validated before they are formatted into a
// statement; values always travel as parameters.
//
// The layering is:
//
//	CLI (cmd/innoldb)
//	     ↓
//	Queries (db/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Ledger sessions (ps/)
//	     ↓
//	QLDB driver | go-git journal
package op
