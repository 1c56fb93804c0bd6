package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// DefaultIndex is the field documents are looked up by unless configured otherwise.
const DefaultIndex = "id"

// Metadata is the revision information the ledger attaches to a document.
type Metadata struct {
	ID      string    `json:"id"`
	Version int64     `json:"version"`
	TxTime  time.Time `json:"txTime"`
	TxID    string    `json:"txId"`
}

// Document is an immutable snapshot of a ledger record.
type Document struct {
	Table    string
	Index    string
	Metadata *Metadata

	fields map[string]any
}

// NewDocument returns a document over a copy of fields.
func NewDocument(table, index string, fields map[string]any) Document {
	if index == "" {
		index = DefaultIndex
	}
	return Document{
		Table:  table,
		Index:  index,
		fields: cloneMap(fields),
	}
}

// NewID returns a fresh document identifier. PartiQL is unhappy with dashes
// in unquoted values, so they are stripped.
func NewID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// ID returns the value of the index field as a string, or "" when unset.
func (d Document) ID() string {
	v, ok := d.fields[d.Index]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Fields returns a deep copy of the document fields.
func (d Document) Fields() map[string]any {
	return cloneMap(d.fields)
}

// Len returns the number of top-level fields.
func (d Document) Len() int {
	return len(d.fields)
}

// Get resolves a dotted path through nested maps.
func (d Document) Get(path string) (any, bool) {
	return Lookup(d.fields, path)
}

// With returns a copy of the document with key set to value.
func (d Document) With(key string, value any) Document {
	out := d
	out.fields = cloneMap(d.fields)
	out.fields[key] = cloneValue(value)
	return out
}

// Without returns a copy of the document with key removed.
func (d Document) Without(key string) Document {
	out := d
	out.fields = cloneMap(d.fields)
	delete(out.fields, key)
	return out
}

// Merge returns a copy of the document with every entry of fields applied.
func (d Document) Merge(fields map[string]any) Document {
	out := d
	out.fields = cloneMap(d.fields)
	for k, v := range fields {
		out.fields[k] = cloneValue(v)
	}
	return out
}

// WithMetadata returns a copy of the document carrying meta.
func (d Document) WithMetadata(meta Metadata) Document {
	out := d
	out.Metadata = &meta
	return out
}

// Decode copies the document fields into out, which must be a pointer to a
// struct or map. Struct fields are matched by their json tag.
func (d Document) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(d.fields); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID(), err)
	}
	return nil
}

// MarshalJSON renders the user fields only; metadata is available
// separately through the committed view.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.fields)
}

// Lookup resolves a dotted path through nested maps.
func Lookup(fields map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
