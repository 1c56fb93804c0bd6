// Package innoldb is a thin library and command line wrapper around an
// Amazon QLDB ledger.
//
// Documents are inserted, found and updated through PartiQL statements run
// by the QLDB driver. Every update creates a new revision, and the revision
// history of a document can be read back:
//
//	cfg, _ := config.Load(config.LoadOptions{})
//	instance, err := innoldb.Open(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer instance.Close(ctx)
//
//	employees, err := instance.Query(ctx, "employees")
//	doc, err := employees.Save(ctx, core.NewDocument("employees", "id", map[string]any{
//	    "team":     "InnoLab",
//	    "location": "Maryland",
//	}))
//	doc, err = employees.Update(ctx, doc.ID(), core.KeyValue{Key: "location", Value: "Florida"})
//	strands, err := employees.Strands(ctx, doc.ID())
//
// # Backends
//
// The qldb backend talks to AWS with the default credential chain. The
// memory and local backends answer the same statements offline from a
// go-git journal, in memory or under DATA_DIR; they are what the mock
// mode and the tests run against.
//
// # Packages
//
//   - core: Document, Revision and KeyValue
//   - partiql: statement builders and the parser for the statements innoldb emits
//   - ps: ledger sessions (QLDB, local journal) and the QLDB control plane
//   - op: one operation, one statement, one transaction
//   - db: Query, in-memory Filter, output and import/export
//   - config, logging: settings and slog setup
package innoldb
