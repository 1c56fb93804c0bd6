package op

import (
	"context"
	"fmt"

	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/partiql"
	"github.com/nickyhof/innoldb/ps"
)

// TableOp runs document statements against one table.
type TableOp struct {
	Table string
	Index string

	ledger *LedgerOp
}

// Insert stores docs and returns the ledger assigned document ids.
func (op *TableOp) Insert(ctx context.Context, docs ...map[string]any) ([]string, error) {
	stmt, err := partiql.InsertInto(op.Table, docs...)
	if err != nil {
		return nil, err
	}
	rows, err := op.ledger.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return documentIDs(rows), nil
}

// Update replaces the document sharing doc's index value and returns the
// number of documents changed.
func (op *TableOp) Update(ctx context.Context, doc map[string]any) (int, error) {
	stmt, err := partiql.UpdateDocument(op.Table, op.Index, doc)
	if err != nil {
		return 0, err
	}
	rows, err := op.ledger.run(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// UpdateFields sets fields on the document whose index equals id.
func (op *TableOp) UpdateFields(ctx context.Context, id any, fields map[string]any) (int, error) {
	stmt, err := partiql.UpdateFields(op.Table, op.Index, id, fields)
	if err != nil {
		return 0, err
	}
	rows, err := op.ledger.run(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (op *TableOp) QueryAll(ctx context.Context) ([]core.Document, error) {
	stmt, err := partiql.SelectAll(op.Table)
	if err != nil {
		return nil, err
	}
	return op.documents(ctx, stmt)
}

// QueryByFields returns the documents whose fields equal every value given.
func (op *TableOp) QueryByFields(ctx context.Context, fields map[string]any) ([]core.Document, error) {
	stmt, err := partiql.SelectWhere(op.Table, fields)
	if err != nil {
		return nil, err
	}
	return op.documents(ctx, stmt)
}

// QueryLikeFields returns the documents whose fields contain every substring
// given.
func (op *TableOp) QueryLikeFields(ctx context.Context, fields map[string]string, ignoreCase bool) ([]core.Document, error) {
	stmt, err := partiql.SelectLike(op.Table, fields, ignoreCase)
	if err != nil {
		return nil, err
	}
	return op.documents(ctx, stmt)
}

func (op *TableOp) QueryInFields(ctx context.Context, fields map[string][]any) ([]core.Document, error) {
	stmt, err := partiql.SelectIn(op.Table, fields)
	if err != nil {
		return nil, err
	}
	return op.documents(ctx, stmt)
}

// Committed reads the committed view, filtered on data fields.
func (op *TableOp) Committed(ctx context.Context, fields map[string]any) ([]core.Revision, error) {
	stmt, err := partiql.SelectCommitted(op.Table, fields)
	if err != nil {
		return nil, err
	}
	return op.revisions(ctx, stmt)
}

// History returns every revision of the table, or of the document with the
// ledger assigned id metaID.
func (op *TableOp) History(ctx context.Context, metaID string) ([]core.Revision, error) {
	stmt, err := partiql.History(op.Table, metaID)
	if err != nil {
		return nil, err
	}
	return op.revisions(ctx, stmt)
}

func (op *TableOp) DropTable(ctx context.Context) error {
	return op.ledger.DropTable(ctx, op.Table)
}

func (op *TableOp) documents(ctx context.Context, stmt partiql.Statement) ([]core.Document, error) {
	rows, err := op.ledger.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	docs := make([]core.Document, len(rows))
	for i, row := range rows {
		docs[i] = core.NewDocument(op.Table, op.Index, row)
	}
	return docs, nil
}

func (op *TableOp) revisions(ctx context.Context, stmt partiql.Statement) ([]core.Revision, error) {
	rows, err := op.ledger.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	revisions := make([]core.Revision, 0, len(rows))
	for _, row := range rows {
		rev, err := core.RevisionFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.Table, err)
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

func documentIDs(rows []ps.Row) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["documentId"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
