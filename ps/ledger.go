package ps

import (
	"context"
	"errors"

	"github.com/nickyhof/innoldb/partiql"
)

var (
	ErrClosed               = errors.New("ledger is closed")
	ErrTableNotFound        = errors.New("table not found")
	ErrTableExists          = errors.New("table already exists")
	ErrIndexExists          = errors.New("index already exists")
	ErrUnsupportedStatement = partiql.ErrUnsupportedStatement
)

// Row is one decoded result document.
type Row = map[string]any

// Txn executes statements inside a ledger transaction.
type Txn interface {
	Execute(statement string, params ...any) ([]Row, error)
}

// Ledger runs transactions against a ledger. Execute commits when fn returns
// nil and aborts otherwise; fn may be retried by the driver, so it must not
// have side effects outside the transaction.
type Ledger interface {
	Name() string
	Execute(ctx context.Context, fn func(txn Txn) (any, error)) (any, error)
	TableNames(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// ExecuteStatement runs a single statement in its own transaction.
func ExecuteStatement(ctx context.Context, ledger Ledger, stmt partiql.Statement) ([]Row, error) {
	result, err := ledger.Execute(ctx, func(txn Txn) (any, error) {
		return txn.Execute(stmt.Text, stmt.Params...)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := result.([]Row)
	return rows, nil
}
