package ps

import (
	"context"
	"strconv"
	"testing"
)

// setupBenchmarkLedger creates a memory ledger holding n employees.
func setupBenchmarkLedger(b *testing.B, n int) *LocalLedger {
	b.Helper()
	ledger, err := NewMemoryLedger("bench")
	if err != nil {
		b.Fatalf("Failed to create memory ledger: %v", err)
	}

	ctx := context.Background()
	_, err = ledger.Execute(ctx, func(txn Txn) (any, error) {
		if _, err := txn.Execute("CREATE TABLE employees"); err != nil {
			return nil, err
		}
		return txn.Execute("CREATE INDEX ON employees (id)")
	})
	if err != nil {
		b.Fatal(err)
	}

	_, err = ledger.Execute(ctx, func(txn Txn) (any, error) {
		for i := range n {
			doc := map[string]any{
				"id":       strconv.Itoa(i),
				"name":     "User" + strconv.Itoa(i),
				"location": "City" + strconv.Itoa(i%10),
			}
			if _, err := txn.Execute("INSERT INTO employees ?", doc); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return ledger
}

func BenchmarkInsert(b *testing.B) {
	ledger := setupBenchmarkLedger(b, 0)
	ctx := context.Background()

	i := 0
	for b.Loop() {
		doc := map[string]any{"id": strconv.Itoa(i), "name": "User"}
		i++
		_, err := ledger.Execute(ctx, func(txn Txn) (any, error) {
			return txn.Execute("INSERT INTO employees ?", doc)
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSelect(b *testing.B) {
	ledger := setupBenchmarkLedger(b, 500)
	ctx := context.Background()

	queries := []struct {
		name   string
		text   string
		params []any
	}{
		{"All", "SELECT * FROM employees", nil},
		{"ByIndex", "SELECT * FROM employees WHERE id = ?", []any{"250"}},
		{"Like", `SELECT * FROM employees WHERE LOWER(name) LIKE ? ESCAPE '\'`, []any{"%user2%"}},
		{"In", "SELECT * FROM employees WHERE location IN (?, ?)", []any{"City1", "City2"}},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			for b.Loop() {
				_, err := ledger.Execute(ctx, func(txn Txn) (any, error) {
					return txn.Execute(q.text, q.params...)
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
