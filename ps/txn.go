package ps

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/google/uuid"
	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/partiql"
)

var ErrTransactionClosed = errors.New("transaction already finished")

// localTxn buffers writes on top of the tree HEAD pointed at when the
// transaction began.
type localTxn struct {
	ledger     *LocalLedger
	id         string
	when       time.Time
	sequence   int64
	base       plumbing.Hash
	pending    map[string][]byte // nil marks a delete
	statements []string
	done       bool
}

func (l *LocalLedger) begin() (*localTxn, error) {
	base, err := l.currentTree()
	if err != nil {
		return nil, err
	}
	return &localTxn{
		ledger:   l,
		id:       newDocumentID(),
		when:     l.now().UTC().Truncate(time.Millisecond),
		sequence: l.sequence + 1,
		base:     base,
		pending:  make(map[string][]byte),
	}, nil
}

// newDocumentID returns a time-ordered identifier, so that sorting by id
// keeps insertion order.
func newDocumentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

func (t *localTxn) Execute(statement string, params ...any) ([]Row, error) {
	if t.done {
		return nil, ErrTransactionClosed
	}

	parser := partiql.NewParser(statement)
	node, err := parser.Parse()
	if err != nil {
		return nil, err
	}
	if parser.Params() > len(params) {
		return nil, fmt.Errorf("statement expects %d parameters, got %d", parser.Params(), len(params))
	}

	values := make([]any, len(params))
	for i, param := range params {
		if values[i], err = toJSONValue(param); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
	}

	t.statements = append(t.statements, statement)

	switch node := node.(type) {
	case partiql.CreateTableStatement:
		return t.createTable(node.Table)
	case partiql.DropTableStatement:
		return t.dropTable(node.Table)
	case partiql.CreateIndexStatement:
		return t.createIndex(node.Table, node.Field)
	case partiql.InsertStatement:
		return t.insert(node, values)
	case partiql.UpdateStatement:
		return t.update(node, values)
	case partiql.SelectStatement:
		return t.selectRows(node, values)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStatement, node)
	}
}

func (t *localTxn) createTable(name string) ([]Row, error) {
	if err := partiql.ValidateIdentifier(name); err != nil {
		return nil, err
	}
	if _, found, err := t.read(tablePath(name)); err != nil {
		return nil, err
	} else if found {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}

	table := core.Table{ID: newDocumentID(), Name: name, Indexes: []string{}, CreatedAt: t.when}
	if err := t.writeJSON(tablePath(name), table); err != nil {
		return nil, err
	}
	return []Row{{"tableId": table.ID}}, nil
}

func (t *localTxn) dropTable(name string) ([]Row, error) {
	table, err := t.table(name)
	if err != nil {
		return nil, err
	}
	ids, err := t.list(path.Join(dataDir, name))
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		t.remove(documentPath(name, id))
	}
	t.remove(tablePath(name))
	return []Row{{"tableId": table.ID}}, nil
}

func (t *localTxn) createIndex(name, field string) ([]Row, error) {
	table, err := t.table(name)
	if err != nil {
		return nil, err
	}
	if table.HasIndex(field) {
		return nil, fmt.Errorf("%w: %s(%s)", ErrIndexExists, name, field)
	}
	table.Indexes = append(table.Indexes, field)
	if err := t.writeJSON(tablePath(name), table); err != nil {
		return nil, err
	}
	return []Row{{"tableId": table.ID}}, nil
}

func (t *localTxn) insert(node partiql.InsertStatement, params []any) ([]Row, error) {
	if _, err := t.table(node.Table); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(node.Values))
	for _, arg := range node.Values {
		doc, ok := argValue(arg, params).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("INSERT INTO %s expects a struct", node.Table)
		}
		rev := core.Revision{
			Data:     doc,
			Metadata: core.Metadata{ID: newDocumentID(), Version: 0},
		}
		if err := t.writeRevision(node.Table, rev); err != nil {
			return nil, err
		}
		rows = append(rows, Row{"documentId": rev.Metadata.ID})
	}
	return rows, nil
}

func (t *localTxn) update(node partiql.UpdateStatement, params []any) ([]Row, error) {
	if _, err := t.table(node.Table); err != nil {
		return nil, err
	}
	revisions, err := t.documents(node.Table)
	if err != nil {
		return nil, err
	}

	s := newScope(node.Alias, node.Table, params)
	var rows []Row
	for _, rev := range revisions {
		matched, err := s.matches(rev.Data, node.Where)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}

		data := cloneRow(rev.Data)
		for _, set := range node.Sets {
			value := argValue(set.Value, params)
			if set.Path == s.binding {
				doc, ok := value.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("UPDATE %s: SET %s expects a struct", node.Table, set.Path)
				}
				data = doc
				continue
			}
			if err := setPath(data, s.strip(set.Path), value); err != nil {
				return nil, err
			}
		}

		next := core.Revision{
			Data:     data,
			Metadata: core.Metadata{ID: rev.Metadata.ID, Version: rev.Metadata.Version + 1},
		}
		if err := t.writeRevision(node.Table, next); err != nil {
			return nil, err
		}
		rows = append(rows, Row{"documentId": rev.Metadata.ID})
	}
	return rows, nil
}

func (t *localTxn) selectRows(node partiql.SelectStatement, params []any) ([]Row, error) {
	source := node.Source
	table, err := t.table(source.Table)
	if err != nil {
		return nil, err
	}

	var candidates []Row
	switch source.Kind {
	case partiql.UserView, partiql.CommittedView:
		revisions, err := t.documents(source.Table)
		if err != nil {
			return nil, err
		}
		for _, rev := range revisions {
			if source.Kind == partiql.UserView {
				candidates = append(candidates, rev.Data)
			} else {
				candidates = append(candidates, rev.Row())
			}
		}
	case partiql.HistoryView:
		revisions, err := t.ledger.history(table)
		if err != nil {
			return nil, err
		}
		for _, rev := range revisions {
			candidates = append(candidates, rev.Row())
		}
	}

	s := newScope(source.Alias, source.Table, params)
	rows := make([]Row, 0, len(candidates))
	for _, row := range candidates {
		matched, err := s.matches(row, node.Where)
		if err != nil {
			return nil, err
		}
		if matched {
			rows = append(rows, s.project(row, node.Columns))
		}
	}
	return rows, nil
}

func (t *localTxn) table(name string) (core.Table, error) {
	data, found, err := t.read(tablePath(name))
	if err != nil {
		return core.Table{}, err
	}
	if !found {
		return core.Table{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	var table core.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return core.Table{}, fmt.Errorf("failed to decode table %s: %w", name, err)
	}
	return table, nil
}

// documents returns the current revision of every document in table,
// ordered by document id.
func (t *localTxn) documents(table string) ([]core.Revision, error) {
	ids, err := t.list(path.Join(dataDir, table))
	if err != nil {
		return nil, err
	}

	revisions := make([]core.Revision, 0, len(ids))
	for _, id := range ids {
		data, found, err := t.read(documentPath(table, id))
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		rev, err := decodeRevision(data)
		if err != nil {
			return nil, fmt.Errorf("document %s/%s: %w", table, id, err)
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

func (t *localTxn) writeRevision(table string, rev core.Revision) error {
	rev.Metadata.TxID = t.id
	rev.Metadata.TxTime = t.when
	rev.BlockAddress = &core.BlockAddress{StrandID: t.ledger.strandID, SequenceNo: t.sequence}
	rev.Hash = ""

	unhashed, err := json.Marshal(rev)
	if err != nil {
		return fmt.Errorf("failed to encode revision: %w", err)
	}
	sum := sha256.Sum256(unhashed)
	rev.Hash = base64.StdEncoding.EncodeToString(sum[:])

	return t.writeJSON(documentPath(table, rev.Metadata.ID), rev)
}

func (t *localTxn) writeJSON(p string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p, err)
	}
	t.pending[p] = data
	return nil
}

func (t *localTxn) remove(p string) {
	t.pending[p] = nil
}

// read returns the content at p as seen by this transaction.
func (t *localTxn) read(p string) ([]byte, bool, error) {
	if data, ok := t.pending[p]; ok {
		return data, data != nil, nil
	}

	dir, name := path.Split(p)
	entries, err := t.ledger.lookupTree(t.base, strings.TrimSuffix(dir, "/"))
	if err != nil {
		return nil, false, err
	}
	entry, ok := entries[name]
	if !ok || entry.Mode == filemode.Dir {
		return nil, false, nil
	}
	data, err := t.ledger.readBlob(entry.Hash)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// list returns the ids of the json files directly under dir, sorted.
func (t *localTxn) list(dir string) ([]string, error) {
	entries, err := t.ledger.lookupTree(t.base, dir)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(entries))
	for name, entry := range entries {
		if entry.Mode != filemode.Dir {
			names[name] = true
		}
	}
	prefix := dir + "/"
	for p, data := range t.pending {
		name, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(name, "/") {
			continue
		}
		names[name] = data != nil
	}

	ids := make([]string, 0, len(names))
	for name, present := range names {
		if present {
			ids = append(ids, strings.TrimSuffix(name, jsonExt))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *localTxn) commit() error {
	t.done = true
	if len(t.pending) == 0 {
		return nil
	}

	l := t.ledger
	paths := make([]string, 0, len(t.pending))
	for p := range t.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	changes := make([]TreeChange, 0, len(paths))
	for _, p := range paths {
		data := t.pending[p]
		if data == nil {
			changes = append(changes, TreeChange{Path: p, IsDelete: true})
			continue
		}
		blobHash, err := l.createBlob(data)
		if err != nil {
			return fmt.Errorf("failed to create blob for %s: %w", p, err)
		}
		changes = append(changes, TreeChange{Path: p, BlobHash: blobHash})
	}

	newTree, err := l.batchUpdateTree(t.base, changes)
	if err != nil {
		return fmt.Errorf("failed to update tree: %w", err)
	}

	message := fmt.Sprintf("txn %s\n\n%s\n", t.id, strings.Join(t.statements, "\n"))
	hash, err := l.createCommit(newTree, l.identity, t.when, message)
	if err != nil {
		return err
	}
	l.sequence = t.sequence

	l.logger.Debug("transaction committed",
		"ledger", l.name, "txId", t.id, "commit", hash.String(), "changes", len(changes))
	return nil
}

func (t *localTxn) rollback() {
	t.done = true
	t.pending = nil
}

func tablePath(name string) string {
	return path.Join(tablesDir, name+jsonExt)
}

func documentPath(table, id string) string {
	return path.Join(dataDir, table, id+jsonExt)
}

func decodeRevision(data []byte) (core.Revision, error) {
	var rev core.Revision
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&rev); err != nil {
		return core.Revision{}, fmt.Errorf("failed to decode revision: %w", err)
	}
	if data, ok := fromJSONNumbers(rev.Data).(map[string]any); ok {
		rev.Data = data
	}
	return rev, nil
}

// toJSONValue reduces v to the values a JSON document can hold, with
// integral numbers as int64.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return fromJSONNumbers(out), nil
}

func fromJSONNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = fromJSONNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = fromJSONNumbers(item)
		}
		return t
	default:
		return v
	}
}
