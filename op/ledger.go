package op

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/partiql"
	"github.com/nickyhof/innoldb/ps"
)

// LedgerOp runs ledger-level statements. Every operation is one statement in
// one transaction; errors from the ledger are wrapped, never retried here.
type LedgerOp struct {
	Ledger ps.Ledger
	Index  string
	Logger *slog.Logger
}

func NewLedgerOp(ledger ps.Ledger, index string, logger *slog.Logger) *LedgerOp {
	if index == "" {
		index = core.DefaultIndex
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LedgerOp{Ledger: ledger, Index: index, Logger: logger}
}

func (op *LedgerOp) run(ctx context.Context, stmt partiql.Statement) ([]ps.Row, error) {
	op.Logger.Debug("executing statement",
		"ledger", op.Ledger.Name(), "statement", stmt.Text, "params", stmt.Params)

	rows, err := ps.ExecuteStatement(ctx, op.Ledger, stmt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt.Text, err)
	}

	op.Logger.Debug("statement executed", "ledger", op.Ledger.Name(), "rows", len(rows))
	return rows, nil
}

// Tables lists the active tables of the ledger.
func (op *LedgerOp) Tables(ctx context.Context) ([]string, error) {
	names, err := op.Ledger.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

func (op *LedgerOp) HasTable(ctx context.Context, table string) (bool, error) {
	names, err := op.Tables(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, table), nil
}

func (op *LedgerOp) CreateTable(ctx context.Context, table string) error {
	stmt, err := partiql.CreateTable(table)
	if err != nil {
		return err
	}
	_, err = op.run(ctx, stmt)
	return err
}

func (op *LedgerOp) CreateIndex(ctx context.Context, table, field string) error {
	stmt, err := partiql.CreateIndex(table, field)
	if err != nil {
		return err
	}
	_, err = op.run(ctx, stmt)
	return err
}

func (op *LedgerOp) DropTable(ctx context.Context, table string) error {
	stmt, err := partiql.DropTable(table)
	if err != nil {
		return err
	}
	_, err = op.run(ctx, stmt)
	return err
}

// Table returns the operations for an existing table without touching the
// ledger.
func (op *LedgerOp) Table(table string) (*TableOp, error) {
	if err := partiql.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	return &TableOp{Table: table, Index: op.Index, ledger: op}, nil
}

// EnsureTable creates table and its index when the table does not exist yet.
func (op *LedgerOp) EnsureTable(ctx context.Context, table string) (*TableOp, error) {
	tableOp, err := op.Table(table)
	if err != nil {
		return nil, err
	}

	exists, err := op.HasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if exists {
		return tableOp, nil
	}

	op.Logger.Info("creating table", "ledger", op.Ledger.Name(), "table", table, "index", op.Index)

	if err := op.CreateTable(ctx, table); err != nil {
		return nil, err
	}
	if err := op.CreateIndex(ctx, table, op.Index); err != nil {
		return nil, err
	}
	return tableOp, nil
}

// Raw executes a caller supplied statement as is.
func (op *LedgerOp) Raw(ctx context.Context, statement string, params ...any) ([]ps.Row, error) {
	return op.run(ctx, partiql.Statement{Text: statement, Params: params})
}
