package partiql

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrMissingIndex      = errors.New("document is missing its index field")
	ErrNoFields          = errors.New("no fields given")
)

// MaxIdentifierLength is the longest table or field name QLDB accepts.
const MaxIdentifierLength = 128

type Operator string

const (
	OpEquals Operator = "="
	OpLike   Operator = "LIKE"
	OpIn     Operator = "IN"
)

// DocumentAlias binds the table in generated statements. Unaliased, the
// table name itself is in scope and shadows a field of the same name.
const DocumentAlias = "d"

// Statement is PartiQL text together with its positional parameters.
type Statement struct {
	Text   string
	Params []any
}

func (s Statement) String() string {
	return s.Text
}

// WhereEquals renders `a = ? AND b = ?` for cols in the given order.
func WhereEquals(cols ...string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + " = ?"
	}
	return strings.Join(parts, " AND ")
}

// WhereLike renders a LIKE predicate per column, folding the column with
// LOWER when ignoreCase is set. Parameters are expected to come from LikePattern.
func WhereLike(ignoreCase bool, cols ...string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		if ignoreCase {
			col = "LOWER(" + col + ")"
		}
		parts[i] = col + ` LIKE ? ESCAPE '\'`
	}
	return strings.Join(parts, " AND ")
}

// WhereIn renders `col IN (?, ?)` for each column, with as many placeholders
// as the column maps to. Columns are sorted.
func WhereIn(cols map[string]int) string {
	names := sortedKeys(cols)
	parts := make([]string, len(names))
	for i, col := range names {
		parts[i] = col + " IN (" + placeholders(cols[col]) + ")"
	}
	return strings.Join(parts, " AND ")
}

// SetList renders `a = ?, b = ?` for an UPDATE.
func SetList(cols ...string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + " = ?"
	}
	return strings.Join(parts, ", ")
}

// LikePattern turns value into a substring pattern, escaping LIKE
// metacharacters with a backslash.
func LikePattern(value string, ignoreCase bool) string {
	if ignoreCase {
		value = strings.ToLower(value)
	}
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('%')
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '\\', '%', '_':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('%')
	return b.String()
}

func CreateTable(table string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	return Statement{Text: "CREATE TABLE " + table}, nil
}

func CreateIndex(table, field string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if err := ValidateIdentifier(field); err != nil {
		return Statement{}, err
	}
	return Statement{Text: fmt.Sprintf("CREATE INDEX ON %s (%s)", table, field)}, nil
}

func DropTable(table string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	return Statement{Text: "DROP TABLE " + table}, nil
}

// InsertInto inserts one document with `INSERT INTO t ?`, or several with a
// bag of parameters.
func InsertInto(table string, docs ...map[string]any) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	switch len(docs) {
	case 0:
		return Statement{}, fmt.Errorf("insert into %s: %w", table, ErrNoFields)
	case 1:
		return Statement{Text: "INSERT INTO " + table + " ?", Params: []any{docs[0]}}, nil
	}

	params := make([]any, len(docs))
	for i, doc := range docs {
		params[i] = doc
	}
	return Statement{
		Text:   "INSERT INTO " + table + " << " + placeholders(len(docs)) + " >>",
		Params: params,
	}, nil
}

// UpdateDocument replaces the whole document whose index field matches doc's.
func UpdateDocument(table, index string, doc map[string]any) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if err := ValidateIdentifier(index); err != nil {
		return Statement{}, err
	}
	id, ok := doc[index]
	if !ok || id == nil || id == "" {
		return Statement{}, fmt.Errorf("update %s: %w: %s", table, ErrMissingIndex, index)
	}
	return Statement{
		Text:   fmt.Sprintf("UPDATE %s AS %[2]s SET %[2]s = ? WHERE %[2]s.%[3]s = ?", table, DocumentAlias, index),
		Params: []any{doc, id},
	}, nil
}

// UpdateFields sets individual fields on the document whose index equals id.
func UpdateFields(table, index string, id any, fields map[string]any) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if err := ValidateIdentifier(index); err != nil {
		return Statement{}, err
	}
	if len(fields) == 0 {
		return Statement{}, fmt.Errorf("update %s: %w", table, ErrNoFields)
	}
	cols, params, err := sortedFields(fields)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text:   fmt.Sprintf("UPDATE %s AS %s SET %s WHERE %s = ?", table, DocumentAlias, SetList(qualify(cols)...), qualify([]string{index})[0]),
		Params: append(params, id),
	}, nil
}

func SelectAll(table string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	return Statement{Text: "SELECT * FROM " + table + " AS " + DocumentAlias}, nil
}

// SelectWhere matches documents whose fields equal every given value. No
// fields selects the whole table.
func SelectWhere(table string, fields map[string]any) (Statement, error) {
	if len(fields) == 0 {
		return SelectAll(table)
	}
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	cols, params, err := sortedFields(fields)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text:   fmt.Sprintf("SELECT * FROM %s AS %s WHERE %s", table, DocumentAlias, WhereEquals(qualify(cols)...)),
		Params: params,
	}, nil
}

// SelectLike matches documents whose fields contain every given substring.
func SelectLike(table string, fields map[string]string, ignoreCase bool) (Statement, error) {
	if len(fields) == 0 {
		return SelectAll(table)
	}
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	cols := sortedKeys(fields)
	params := make([]any, len(cols))
	for i, col := range cols {
		if err := ValidatePath(col); err != nil {
			return Statement{}, err
		}
		params[i] = LikePattern(fields[col], ignoreCase)
	}
	return Statement{
		Text:   fmt.Sprintf("SELECT * FROM %s AS %s WHERE %s", table, DocumentAlias, WhereLike(ignoreCase, qualify(cols)...)),
		Params: params,
	}, nil
}

// SelectIn matches documents whose fields take one of the listed values.
func SelectIn(table string, fields map[string][]any) (Statement, error) {
	if len(fields) == 0 {
		return SelectAll(table)
	}
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	counts := make(map[string]int, len(fields))
	var params []any
	for _, col := range sortedKeys(fields) {
		if err := ValidatePath(col); err != nil {
			return Statement{}, err
		}
		if len(fields[col]) == 0 {
			return Statement{}, fmt.Errorf("select %s: %w for %s IN", table, ErrNoFields, col)
		}
		counts[DocumentAlias+"."+col] = len(fields[col])
		params = append(params, fields[col]...)
	}
	return Statement{
		Text:   fmt.Sprintf("SELECT * FROM %s AS %s WHERE %s", table, DocumentAlias, WhereIn(counts)),
		Params: params,
	}, nil
}

func qualify(cols []string) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = DocumentAlias + "." + col
	}
	return out
}

// SelectCommitted reads the committed view, filtering on data fields.
func SelectCommitted(table string, fields map[string]any) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	text := "SELECT * FROM " + CommittedPrefix + table + " AS c"
	if len(fields) == 0 {
		return Statement{Text: text}, nil
	}
	cols, params, err := sortedFields(fields)
	if err != nil {
		return Statement{}, err
	}
	for i, col := range cols {
		cols[i] = "c.data." + col
	}
	return Statement{Text: text + " WHERE " + WhereEquals(cols...), Params: params}, nil
}

// History reads every revision of table, or of one document when metaID is set.
func History(table, metaID string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	text := "SELECT * FROM history(" + table + ") AS h"
	if metaID == "" {
		return Statement{Text: text}, nil
	}
	return Statement{Text: text + " WHERE h.metadata.id = ?", Params: []any{metaID}}, nil
}

// ValidateIdentifier checks that name can be used unquoted as a table or
// field name. Statements cannot parameterize names, so anything else is
// rejected before it reaches the text.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidIdentifier, name, MaxIdentifierLength)
	}
	if !isIdentifierStart(name[0]) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	for i := 1; i < len(name); i++ {
		if !isIdentifierStart(name[i]) && !isDigit(name[i]) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	if lookupIdentifier(name) != Identifier {
		return fmt.Errorf("%w: %q is a reserved word", ErrInvalidIdentifier, name)
	}
	return nil
}

// ValidatePath checks a dotted field path segment by segment.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidIdentifier)
	}
	for _, part := range strings.Split(path, ".") {
		if err := ValidateIdentifier(part); err != nil {
			return err
		}
	}
	return nil
}

func sortedFields(fields map[string]any) ([]string, []any, error) {
	cols := sortedKeys(fields)
	params := make([]any, len(cols))
	for i, col := range cols {
		if err := ValidatePath(col); err != nil {
			return nil, nil, err
		}
		params[i] = fields[col]
	}
	return cols, params, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
