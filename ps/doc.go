// Package ps provides the ledger sessions innoldb runs statements through.
//
// Every backend implements Ledger: statements are executed inside a
// transaction that commits when the callback returns nil.
//
// # QLDB
//
// QLDBLedger wraps the Amazon QLDB driver. Credentials come from the
// default AWS chain unless overridden:
//
//	ledger, err := ps.NewQLDBLedger(ctx, "laboratory", ps.QLDBOptions{
//	    AWS:    ps.AWSOptions{Region: "us-east-1"},
//	    Logger: logger,
//	})
//
// Admin talks to the control plane to create and describe ledgers.
//
// # Local ledgers
//
// LocalLedger answers the same statements offline. It is backed by git,
// using go-git for storage: each committed transaction is a commit, the
// HEAD tree holds the current revision of every document, and the commit
// log provides history(table).
//
//	ledger, err := ps.NewMemoryLedger("laboratory")
//	ledger, err := ps.NewFileLedger("laboratory", "/path/to/data")
//
// A transaction sees its own writes before they are committed:
//
//	_, err := ledger.Execute(ctx, func(txn ps.Txn) (any, error) {
//	    if _, err := txn.Execute("INSERT INTO employees ?", doc); err != nil {
//	        return nil, err
//	    }
//	    return txn.Execute("SELECT * FROM employees WHERE id = ?", doc["id"])
//	})
package ps
