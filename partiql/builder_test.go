package partiql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClauses(t *testing.T) {
	assert.Equal(t, "a = ? AND b = ?", WhereEquals("a", "b"))
	assert.Equal(t, `a LIKE ? ESCAPE '\'`, WhereLike(false, "a"))
	assert.Equal(t, `LOWER(a) LIKE ? ESCAPE '\' AND LOWER(b) LIKE ? ESCAPE '\'`, WhereLike(true, "a", "b"))
	assert.Equal(t, "a IN (?, ?) AND b IN (?)", WhereIn(map[string]int{"b": 1, "a": 2}))
	assert.Equal(t, "a = ?, b = ?", SetList("a", "b"))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%lab%", LikePattern("lab", false))
	assert.Equal(t, "%lab%", LikePattern("LaB", true))
	assert.Equal(t, `%50\%\_off\\%`, LikePattern(`50%_off\`, false))
	assert.Equal(t, "%%", LikePattern("", false))
}

func TestBuilders(t *testing.T) {
	tests := []struct {
		name   string
		build  func() (Statement, error)
		text   string
		params []any
	}{
		{
			name:  "create table",
			build: func() (Statement, error) { return CreateTable("employees") },
			text:  "CREATE TABLE employees",
		},
		{
			name:  "create index",
			build: func() (Statement, error) { return CreateIndex("employees", "id") },
			text:  "CREATE INDEX ON employees (id)",
		},
		{
			name:  "drop table",
			build: func() (Statement, error) { return DropTable("employees") },
			text:  "DROP TABLE employees",
		},
		{
			name:   "insert one",
			build:  func() (Statement, error) { return InsertInto("employees", map[string]any{"id": "1"}) },
			text:   "INSERT INTO employees ?",
			params: []any{map[string]any{"id": "1"}},
		},
		{
			name: "insert many",
			build: func() (Statement, error) {
				return InsertInto("employees", map[string]any{"id": "1"}, map[string]any{"id": "2"})
			},
			text:   "INSERT INTO employees << ?, ? >>",
			params: []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}},
		},
		{
			name: "update document",
			build: func() (Statement, error) {
				return UpdateDocument("employees", "id", map[string]any{"id": "1", "team": "x"})
			},
			text:   "UPDATE employees AS d SET d = ? WHERE d.id = ?",
			params: []any{map[string]any{"id": "1", "team": "x"}, "1"},
		},
		{
			name: "update fields",
			build: func() (Statement, error) {
				return UpdateFields("employees", "id", "1", map[string]any{"team": "x", "location": "y"})
			},
			text:   "UPDATE employees AS d SET d.location = ?, d.team = ? WHERE d.id = ?",
			params: []any{"y", "x", "1"},
		},
		{
			name:  "select all",
			build: func() (Statement, error) { return SelectAll("employees") },
			text:  "SELECT * FROM employees AS d",
		},
		{
			name: "select where sorted",
			build: func() (Statement, error) {
				return SelectWhere("employees", map[string]any{"team": "x", "location": "y"})
			},
			text:   "SELECT * FROM employees AS d WHERE d.location = ? AND d.team = ?",
			params: []any{"y", "x"},
		},
		{
			name:  "select where empty",
			build: func() (Statement, error) { return SelectWhere("employees", nil) },
			text:  "SELECT * FROM employees AS d",
		},
		{
			name: "select like",
			build: func() (Statement, error) {
				return SelectLike("employees", map[string]string{"team": "Lab"}, true)
			},
			text:   `SELECT * FROM employees AS d WHERE LOWER(d.team) LIKE ? ESCAPE '\'`,
			params: []any{"%lab%"},
		},
		{
			name: "select in",
			build: func() (Statement, error) {
				return SelectIn("employees", map[string][]any{"team": {"a", "b"}})
			},
			text:   "SELECT * FROM employees AS d WHERE d.team IN (?, ?)",
			params: []any{"a", "b"},
		},
		{
			name: "select committed",
			build: func() (Statement, error) {
				return SelectCommitted("employees", map[string]any{"id": "1"})
			},
			text:   "SELECT * FROM _ql_committed_employees AS c WHERE c.data.id = ?",
			params: []any{"1"},
		},
		{
			name:  "history all",
			build: func() (Statement, error) { return History("employees", "") },
			text:  "SELECT * FROM history(employees) AS h",
		},
		{
			name:   "history of document",
			build:  func() (Statement, error) { return History("employees", "meta") },
			text:   "SELECT * FROM history(employees) AS h WHERE h.metadata.id = ?",
			params: []any{"meta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := tt.build()
			require.NoError(t, err)
			assert.Equal(t, tt.text, stmt.Text)
			assert.Equal(t, tt.params, stmt.Params)

			// Everything we build must be something the parser accepts.
			_, err = Parse(stmt.Text)
			assert.NoError(t, err)
		})
	}
}

func TestBuilderErrors(t *testing.T) {
	_, err := UpdateDocument("employees", "id", map[string]any{"team": "x"})
	assert.ErrorIs(t, err, ErrMissingIndex)

	_, err = UpdateFields("employees", "id", "1", nil)
	assert.ErrorIs(t, err, ErrNoFields)

	_, err = InsertInto("employees")
	assert.ErrorIs(t, err, ErrNoFields)

	_, err = SelectIn("employees", map[string][]any{"team": {}})
	assert.ErrorIs(t, err, ErrNoFields)

	_, err = SelectWhere("employees; DROP TABLE x", map[string]any{"a": 1})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = SelectWhere("employees", map[string]any{"a = 1 OR 1": 1})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	// Indexes are top-level fields; dotted paths are rejected up front.
	_, err = UpdateDocument("employees", "badge.id", map[string]any{"badge": map[string]any{"id": "1"}})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = UpdateFields("employees", "badge.id", "1", map[string]any{"team": "x"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = CreateIndex("employees", "badge.id")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"employees", "_private", "Team2", strings.Repeat("a", MaxIdentifierLength)}
	for _, name := range valid {
		assert.NoError(t, ValidateIdentifier(name), name)
	}

	invalid := []string{"", "2fast", "with space", "semi;colon", "quote'", "select", "Table", "a.b", strings.Repeat("a", MaxIdentifierLength+1)}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateIdentifier(name), ErrInvalidIdentifier, name)
	}

	assert.NoError(t, ValidatePath("nested_field_1.panopticon.nest.title"))
	assert.ErrorIs(t, ValidatePath("a..b"), ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidatePath(""), ErrInvalidIdentifier)
}
