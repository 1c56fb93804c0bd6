// Package core provides the data model shared by every innoldb layer.
//
// # Documents
//
// A Document is a point-in-time snapshot of one ledger record: the user
// fields, the name of the index field used to look it up, and, when the
// read went through the committed view, the revision metadata the ledger
// assigned to it:
//
//	doc := core.NewDocument("employees", core.DefaultIndex, map[string]any{
//	    "id":   core.NewID(),
//	    "team": "InnoLab",
//	})
//	doc = doc.With("location", "Maryland")
//	team, _ := doc.Get("team")
//
// Documents are immutable; With, Without and Merge return copies.
// Nested structures are reachable by dotted path:
//
//	title, ok := doc.Get("nested_field_1.panopticon.nest.title")
//
// # Revisions
//
// A Revision is one row of the committed view or of the history function:
// the user data together with its block address, hash and metadata.
//
// # Key/value arguments
//
// KeyValue parses the `key=value` arguments accepted by the CLI:
//
//	kvs, err := core.ParseKeyValues([]string{"team=InnoLab", "location=Florida"})
package core
