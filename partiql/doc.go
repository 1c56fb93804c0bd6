// Package partiql builds and parses the PartiQL statements innoldb sends to
// a ledger.
//
// # Building statements
//
// Table and field names are validated and formatted into the text; every
// value travels as a positional parameter:
//
//	stmt, err := partiql.SelectWhere("employees", map[string]any{"team": "InnoLab"})
//	// stmt.Text   == "SELECT * FROM employees WHERE team = ?"
//	// stmt.Params == []any{"InnoLab"}
//
// Substring searches escape LIKE metacharacters in the value:
//
//	stmt, err := partiql.SelectLike("employees", map[string]string{"team": "lab"}, true)
//	// SELECT * FROM employees WHERE LOWER(team) LIKE ? ESCAPE '\'
//	// with the parameter "%lab%"
//
// # Parsing statements
//
// The parser understands the statement shapes the builders emit, which is
// what the local ledger needs to answer them:
//
//	node, err := partiql.Parse("SELECT * FROM history(employees) AS h WHERE h.metadata.id = ?")
//
// Supported statements:
//   - SelectStatement over a table, _ql_committed_<table> or history(<table>)
//   - InsertStatement with a single parameter or a bag of parameters
//   - UpdateStatement with SET lists and an optional alias
//   - CreateTableStatement, DropTableStatement, CreateIndexStatement
//
// WHERE clauses are conjunctions of `=`, `LIKE ... [ESCAPE]` and `IN`
// conditions, with LOWER/UPPER on the left side.
package partiql
