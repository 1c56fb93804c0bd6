package db

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/op"
)

var ErrNotFound = errors.New("document not found")

// Query reads and writes documents of one table.
type Query struct {
	ledger     *op.LedgerOp
	table      *op.TableOp
	ignoreCase bool
	logger     *slog.Logger
}

type QueryOption func(*Query)

// WithIgnoreCase makes FindLike and Filter fold case.
func WithIgnoreCase(ignoreCase bool) QueryOption {
	return func(q *Query) { q.ignoreCase = ignoreCase }
}

func NewQuery(ledger *op.LedgerOp, table string, opts ...QueryOption) (*Query, error) {
	tableOp, err := ledger.Table(table)
	if err != nil {
		return nil, err
	}
	q := &Query{ledger: ledger, table: tableOp, logger: ledger.Logger}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *Query) Table() string {
	return q.table.Table
}

func (q *Query) Index() string {
	return q.table.Index
}

func (q *Query) All(ctx context.Context) ([]core.Document, error) {
	return q.table.QueryAll(ctx)
}

// Scan yields every document of the table. The iteration stops at the first
// error, which is yielded with a zero document.
func (q *Query) Scan(ctx context.Context) iter.Seq2[core.Document, error] {
	return func(yield func(core.Document, error) bool) {
		docs, err := q.All(ctx)
		if err != nil {
			yield(core.Document{}, err)
			return
		}
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// FindBy returns the documents whose fields equal every key/value given.
func (q *Query) FindBy(ctx context.Context, kvs ...core.KeyValue) ([]core.Document, error) {
	return q.table.QueryByFields(ctx, core.KeyValueMap(kvs))
}

// FindLike returns the documents whose fields contain every value given as a
// substring.
func (q *Query) FindLike(ctx context.Context, kvs ...core.KeyValue) ([]core.Document, error) {
	fields := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		fields[kv.Key] = kv.Value
	}
	return q.table.QueryLikeFields(ctx, fields, q.ignoreCase)
}

// FindIn returns the documents whose fields take one of the listed values.
func (q *Query) FindIn(ctx context.Context, fields map[string][]any) ([]core.Document, error) {
	return q.table.QueryInFields(ctx, fields)
}

// Filter reads the whole table and keeps the documents f matches.
func (q *Query) Filter(ctx context.Context, f Filter) ([]core.Document, error) {
	var matched []core.Document
	for doc, err := range q.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		if f.Match(doc) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// Get loads the current revision of the document whose index equals id,
// with its ledger metadata.
func (q *Query) Get(ctx context.Context, id string) (core.Document, error) {
	return q.get(ctx, id)
}

func (q *Query) Exists(ctx context.Context, id string) (bool, error) {
	return q.exists(ctx, id)
}

func (q *Query) get(ctx context.Context, id any) (core.Document, error) {
	revisions, err := q.table.Committed(ctx, map[string]any{q.Index(): id})
	if err != nil {
		return core.Document{}, err
	}
	if len(revisions) == 0 {
		return core.Document{}, fmt.Errorf("%w: %s %s=%v", ErrNotFound, q.Table(), q.Index(), id)
	}
	if len(revisions) > 1 {
		q.logger.Warn("index is not unique", "table", q.Table(), "index", q.Index(), "id", id, "matches", len(revisions))
	}
	return revisions[0].Document(q.Table(), q.Index()), nil
}

func (q *Query) exists(ctx context.Context, id any) (bool, error) {
	_, err := q.get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Save inserts doc, or replaces the stored document with the same index
// value. A document without an index value is given a fresh one.
func (q *Query) Save(ctx context.Context, doc core.Document) (core.Document, error) {
	doc.Table = q.Table()
	doc.Index = q.Index()
	if doc.ID() == "" {
		doc = doc.With(q.Index(), core.NewID())
	}

	id, _ := doc.Get(q.Index())
	exists, err := q.exists(ctx, id)
	if err != nil {
		return core.Document{}, err
	}
	if exists {
		_, err = q.table.Update(ctx, doc.Fields())
	} else {
		_, err = q.table.Insert(ctx, doc.Fields())
	}
	if err != nil {
		return core.Document{}, err
	}

	return q.get(ctx, id)
}

// Update applies kvs to the stored document whose index equals id.
func (q *Query) Update(ctx context.Context, id string, kvs ...core.KeyValue) (core.Document, error) {
	doc, err := q.Get(ctx, id)
	if err != nil {
		return core.Document{}, err
	}
	return q.Save(ctx, doc.Merge(core.KeyValueMap(kvs)))
}

// Committed returns the committed revisions whose data matches fields.
func (q *Query) Committed(ctx context.Context, fields map[string]any) ([]core.Revision, error) {
	return q.table.Committed(ctx, fields)
}

// History returns the revisions of the table, oldest first. metaID is the
// ledger assigned document id, not the index value; empty means all.
func (q *Query) History(ctx context.Context, metaID string) ([]core.Revision, error) {
	return q.table.History(ctx, metaID)
}

// Strands returns every revision of the document whose index equals id,
// earliest to latest.
func (q *Query) Strands(ctx context.Context, id string) ([]core.Document, error) {
	current, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	revisions, err := q.History(ctx, current.Metadata.ID)
	if err != nil {
		return nil, err
	}
	strands := make([]core.Document, len(revisions))
	for i, rev := range revisions {
		strands[i] = rev.Document(q.Table(), q.Index())
	}
	return strands, nil
}

// Raw runs statement unchecked. Rows are returned as documents of this table.
func (q *Query) Raw(ctx context.Context, statement string, params ...any) ([]core.Document, error) {
	rows, err := q.ledger.Raw(ctx, statement, params...)
	if err != nil {
		return nil, err
	}
	docs := make([]core.Document, len(rows))
	for i, row := range rows {
		docs[i] = core.NewDocument(q.Table(), q.Index(), row)
	}
	return docs, nil
}

// Load reads documents from src and saves each of them.
func (q *Query) Load(ctx context.Context, src string, opts RemoteOptions) ([]core.Document, error) {
	records, err := ReadDocuments(ctx, src, opts)
	if err != nil {
		return nil, err
	}

	saved := make([]core.Document, 0, len(records))
	for _, record := range records {
		doc, err := q.Save(ctx, core.NewDocument(q.Table(), q.Index(), record))
		if err != nil {
			return saved, err
		}
		saved = append(saved, doc)
	}

	q.logger.Info("documents loaded", "table", q.Table(), "source", src, "count", len(saved))
	return saved, nil
}

// Export writes every document of the table to dest.
func (q *Query) Export(ctx context.Context, dest string, opts RemoteOptions) (int, error) {
	docs, err := q.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := WriteDocuments(ctx, dest, docs, opts); err != nil {
		return 0, err
	}
	return len(docs), nil
}
