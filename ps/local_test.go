package ps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/partiql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *LocalLedger {
	t.Helper()
	ledger, err := NewMemoryLedger("laboratory")
	if err != nil {
		t.Fatalf("Failed to create memory ledger: %v", err)
	}
	return ledger
}

func exec(t *testing.T, ledger Ledger, statement string, params ...any) []Row {
	t.Helper()
	result, err := ledger.Execute(context.Background(), func(txn Txn) (any, error) {
		return txn.Execute(statement, params...)
	})
	if err != nil {
		t.Fatalf("%s: %v", statement, err)
	}
	rows, _ := result.([]Row)
	return rows
}

func seedEmployees(t *testing.T, ledger Ledger) {
	t.Helper()
	exec(t, ledger, "CREATE TABLE employees")
	exec(t, ledger, "CREATE INDEX ON employees (id)")
	exec(t, ledger, "INSERT INTO employees << ?, ?, ? >>",
		map[string]any{"id": "1", "team": "InnoLab", "location": "Maryland", "age": 37},
		map[string]any{"id": "2", "team": "Innovation Lab", "location": "Florida", "age": 41},
		map[string]any{"id": "3", "team": "Platform", "location": "Virginia", "nested": map[string]any{"title": "lead"}},
	)
}

func TestNewMemoryLedger(t *testing.T) {
	ledger := newTestLedger(t)

	if !ledger.IsInitialized() {
		t.Error("Expected ledger to be initialized")
	}
	if ledger.Name() != "laboratory" {
		t.Errorf("Expected name 'laboratory', got '%s'", ledger.Name())
	}
	if ledger.Commits() != 0 {
		t.Errorf("Expected empty journal, got %d commits", ledger.Commits())
	}
}

func TestLedgerNotInitialized(t *testing.T) {
	var ledger *LocalLedger

	_, err := ledger.Execute(context.Background(), func(Txn) (any, error) { return nil, nil })
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestCreateTableAndIndex(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	rows := exec(t, ledger, "CREATE TABLE employees")
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0]["tableId"])

	exec(t, ledger, "CREATE TABLE badges")
	names, err := ledger.TableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"badges", "employees"}, names)

	_, err = ledger.Execute(ctx, func(txn Txn) (any, error) {
		return txn.Execute("CREATE TABLE employees")
	})
	assert.ErrorIs(t, err, ErrTableExists)

	exec(t, ledger, "CREATE INDEX ON employees (id)")
	_, err = ledger.Execute(ctx, func(txn Txn) (any, error) {
		return txn.Execute("CREATE INDEX ON employees (id)")
	})
	assert.ErrorIs(t, err, ErrIndexExists)

	assert.Equal(t, int64(3), ledger.Commits())
}

func TestMissingTable(t *testing.T) {
	ledger := newTestLedger(t)

	for _, statement := range []string{
		"SELECT * FROM ghosts",
		"SELECT * FROM _ql_committed_ghosts",
		"SELECT * FROM history(ghosts)",
		"INSERT INTO ghosts ?",
		"UPDATE ghosts SET a = ?",
		"DROP TABLE ghosts",
		"CREATE INDEX ON ghosts (id)",
	} {
		_, err := ledger.Execute(context.Background(), func(txn Txn) (any, error) {
			return txn.Execute(statement, map[string]any{"a": 1})
		})
		assert.ErrorIs(t, err, ErrTableNotFound, statement)
	}
}

func TestInsertAndSelect(t *testing.T) {
	ledger := newTestLedger(t)
	seedEmployees(t, ledger)

	rows := exec(t, ledger, "SELECT * FROM employees")
	require.Len(t, rows, 3)
	// Insertion order is preserved.
	assert.Equal(t, "1", rows[0]["id"])
	assert.Equal(t, "3", rows[2]["id"])
	// Integers come back as int64 whatever they went in as.
	assert.Equal(t, int64(37), rows[0]["age"])

	rows = exec(t, ledger, "SELECT * FROM employees WHERE location = ? AND team = ?", "Florida", "Innovation Lab")
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["id"])

	rows = exec(t, ledger, "SELECT * FROM employees WHERE age = ?", 41.0)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["id"])

	rows = exec(t, ledger, "SELECT * FROM employees AS e WHERE e.nested.title = 'lead'")
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0]["id"])

	rows = exec(t, ledger, "SELECT * FROM employees WHERE id IN (?, ?)", "1", "3")
	assert.Len(t, rows, 2)

	rows = exec(t, ledger, "SELECT id, nested.title FROM employees WHERE id = ?", "3")
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"id": "3", "title": "lead"}, rows[0])

	rows = exec(t, ledger, "SELECT * FROM employees WHERE id = ?", "missing")
	assert.Empty(t, rows)
}

func TestSelectLike(t *testing.T) {
	ledger := newTestLedger(t)
	seedEmployees(t, ledger)
	exec(t, ledger, "INSERT INTO employees ?", map[string]any{"id": "4", "team": "100%_real"})

	tests := []struct {
		name      string
		statement string
		param     string
		expected  []string
	}{
		{"case sensitive", `SELECT * FROM employees WHERE team LIKE ? ESCAPE '\'`, "%Lab%", []string{"1", "2"}},
		{"case sensitive miss", `SELECT * FROM employees WHERE team LIKE ? ESCAPE '\'`, "%lab%", nil},
		{"lowered", `SELECT * FROM employees WHERE LOWER(team) LIKE ? ESCAPE '\'`, "%lab%", []string{"1", "2"}},
		{"single char", `SELECT * FROM employees WHERE team LIKE ?`, "InnoLa_", []string{"1"}},
		{"escaped wildcards", `SELECT * FROM employees WHERE team LIKE ? ESCAPE '\'`, `%0\%\_%`, []string{"4"}},
		{"unescaped wildcards", `SELECT * FROM employees WHERE team LIKE ?`, `%0%_%`, []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := exec(t, ledger, tt.statement, tt.param)
			var ids []string
			for _, row := range rows {
				ids = append(ids, row["id"].(string))
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestUpdateCreatesRevisions(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	ledger, err := NewMemoryLedger("laboratory", WithClock(func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Second)
	}))
	require.NoError(t, err)
	seedEmployees(t, ledger)

	rows := exec(t, ledger, "UPDATE employees AS d SET d = ? WHERE d.id = ?",
		map[string]any{"id": "1", "team": "Research", "location": "Maryland"}, "1")
	require.Len(t, rows, 1)
	docID := rows[0]["documentId"].(string)

	exec(t, ledger, "UPDATE employees SET location = ?, badge.color = ? WHERE id = ?", "Ohio", "blue", "1")

	rows = exec(t, ledger, "SELECT * FROM employees WHERE id = ?", "1")
	require.Len(t, rows, 1)
	assert.Equal(t, "Research", rows[0]["team"])
	assert.Equal(t, "Ohio", rows[0]["location"])
	assert.Equal(t, map[string]any{"color": "blue"}, rows[0]["badge"])
	assert.NotContains(t, rows[0], "age")

	rows = exec(t, ledger, "SELECT * FROM _ql_committed_employees AS c WHERE c.data.id = ?", "1")
	require.Len(t, rows, 1)
	committed, err := core.RevisionFromRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, docID, committed.Metadata.ID)
	assert.Equal(t, int64(2), committed.Metadata.Version)
	assert.NotEmpty(t, committed.Hash)
	require.NotNil(t, committed.BlockAddress)

	rows = exec(t, ledger, "SELECT * FROM history(employees) AS h WHERE h.metadata.id = ?", docID)
	require.Len(t, rows, 3)
	var versions []int64
	var teams []any
	for _, row := range rows {
		rev, err := core.RevisionFromRow(row)
		require.NoError(t, err)
		versions = append(versions, rev.Metadata.Version)
		teams = append(teams, rev.Data["team"])
	}
	assert.Equal(t, []int64{0, 1, 2}, versions)
	assert.Equal(t, []any{"InnoLab", "Research", "Research"}, teams)

	first, _ := core.RevisionFromRow(rows[0])
	last, _ := core.RevisionFromRow(rows[2])
	assert.True(t, first.Metadata.TxTime.Before(last.Metadata.TxTime))
	assert.Less(t, first.BlockAddress.SequenceNo, last.BlockAddress.SequenceNo)

	all := exec(t, ledger, "SELECT * FROM history(employees)")
	assert.Len(t, all, 5)
}

func TestTransactionSeesOwnWrites(t *testing.T) {
	ledger := newTestLedger(t)
	exec(t, ledger, "CREATE TABLE employees")

	result, err := ledger.Execute(context.Background(), func(txn Txn) (any, error) {
		if _, err := txn.Execute("INSERT INTO employees ?", map[string]any{"id": "1"}); err != nil {
			return nil, err
		}
		return txn.Execute("SELECT * FROM employees WHERE id = ?", "1")
	})
	require.NoError(t, err)
	assert.Len(t, result.([]Row), 1)
	assert.Equal(t, int64(2), ledger.Commits())
}

func TestTransactionAbort(t *testing.T) {
	ledger := newTestLedger(t)
	exec(t, ledger, "CREATE TABLE employees")

	boom := errors.New("boom")
	_, err := ledger.Execute(context.Background(), func(txn Txn) (any, error) {
		if _, err := txn.Execute("INSERT INTO employees ?", map[string]any{"id": "1"}); err != nil {
			return nil, err
		}
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, exec(t, ledger, "SELECT * FROM employees"))
	assert.Equal(t, int64(1), ledger.Commits())
}

func TestReadOnlyTransactionsDoNotCommit(t *testing.T) {
	ledger := newTestLedger(t)
	seedEmployees(t, ledger)
	before := ledger.Commits()

	exec(t, ledger, "SELECT * FROM employees")
	exec(t, ledger, "UPDATE employees SET team = ? WHERE id = ?", "x", "missing")

	assert.Equal(t, before, ledger.Commits())
}

func TestDropTable(t *testing.T) {
	ledger := newTestLedger(t)
	seedEmployees(t, ledger)

	exec(t, ledger, "DROP TABLE employees")

	names, err := ledger.TableNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)

	exec(t, ledger, "CREATE TABLE employees")
	assert.Empty(t, exec(t, ledger, "SELECT * FROM employees"))
}

func TestHistoryOfRecreatedTable(t *testing.T) {
	ledger := newTestLedger(t)
	seedEmployees(t, ledger)
	require.NotEmpty(t, exec(t, ledger, "SELECT * FROM history(employees)"))

	exec(t, ledger, "DROP TABLE employees")
	exec(t, ledger, "CREATE TABLE employees")
	assert.Empty(t, exec(t, ledger, "SELECT * FROM history(employees)"))

	exec(t, ledger, "INSERT INTO employees ?", map[string]any{"id": "9", "team": "Platform"})
	exec(t, ledger, "CREATE INDEX ON employees (id)")
	exec(t, ledger, "UPDATE employees AS d SET d.team = ? WHERE d.id = ?", "InnoLab", "9")

	rows := exec(t, ledger, "SELECT * FROM history(employees) AS h")
	require.Len(t, rows, 2)
	assert.Equal(t, "Platform", rows[0]["data"].(map[string]any)["team"])
	assert.Equal(t, "InnoLab", rows[1]["data"].(map[string]any)["team"])
}

func TestStatementErrors(t *testing.T) {
	ledger := newTestLedger(t)
	seedEmployees(t, ledger)
	ctx := context.Background()

	run := func(statement string, params ...any) error {
		_, err := ledger.Execute(ctx, func(txn Txn) (any, error) {
			return txn.Execute(statement, params...)
		})
		return err
	}

	assert.ErrorIs(t, run("DELETE FROM employees"), ErrUnsupportedStatement)
	assert.Error(t, run("SELECT * FROM employees WHERE id = ?"))
	assert.Error(t, run("INSERT INTO employees ?", "not a struct"))
	assert.Error(t, run("UPDATE employees AS d SET d = ? WHERE d.id = ?", "x", "1"))
	assert.Error(t, run(`SELECT * FROM employees WHERE team LIKE ? ESCAPE '\'`, `abc\`))
	assert.Error(t, run("UPDATE employees SET team.name = ? WHERE id = ?", "x", "1"))
}

func TestClosedLedger(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Close(context.Background()))

	_, err := ledger.Execute(context.Background(), func(Txn) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrClosed)
	_, err = ledger.TableNames(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCancelledContext(t *testing.T) {
	ledger := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ledger.Execute(ctx, func(txn Txn) (any, error) {
		return txn.Execute("CREATE TABLE employees")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), ledger.Commits())
}

func TestFileLedgerPersists(t *testing.T) {
	dir := t.TempDir()
	identity := core.Identity{Name: "lab", Email: "lab@example.com"}

	ledger, err := NewFileLedger("laboratory", dir, WithIdentity(identity))
	require.NoError(t, err)
	seedEmployees(t, ledger)
	require.NoError(t, ledger.Close(context.Background()))

	reopened, err := NewFileLedger("laboratory", dir)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reopened.Commits())

	rows := exec(t, reopened, "SELECT * FROM employees WHERE team = ?", "Platform")
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0]["id"])

	head, err := reopened.headCommit()
	require.NoError(t, err)
	assert.Equal(t, "lab", head.Author.Name)
}

func TestExecuteStatement(t *testing.T) {
	ledger := newTestLedger(t)
	seedEmployees(t, ledger)

	rows, err := ExecuteStatement(context.Background(), ledger, partiql.Statement{
		Text:   "SELECT * FROM employees WHERE id = ?",
		Params: []any{"2"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Florida", rows[0]["location"])
}
