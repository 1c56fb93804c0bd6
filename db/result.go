package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/nickyhof/innoldb/core"
)

var ErrUnknownFormat = errors.New("unknown output format")

type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatTable Format = "table"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatJSONL, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Printer writes results in one format, optionally passing each item through
// a jq program first.
type Printer struct {
	w      io.Writer
	format Format
	jq     *gojq.Code
}

func NewPrinter(w io.Writer, format Format, jqExpr string) (*Printer, error) {
	p := &Printer{w: w, format: format}
	if jqExpr == "" {
		return p, nil
	}

	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	p.jq = code
	return p, nil
}

// Documents prints the fields of each document.
func (p *Printer) Documents(docs []core.Document) error {
	items := make([]any, len(docs))
	for i, doc := range docs {
		items[i] = doc
	}
	return p.Items(items)
}

// Revisions prints committed or history rows, metadata included.
func (p *Printer) Revisions(revisions []core.Revision) error {
	items := make([]any, len(revisions))
	for i, rev := range revisions {
		items[i] = rev
	}
	return p.Items(items)
}

// Value prints a single result.
func (p *Printer) Value(v any) error {
	values, err := p.apply([]any{v})
	if err != nil {
		return err
	}
	if len(values) == 1 && p.format == FormatJSON {
		return p.writeJSON(values[0], "  ")
	}
	return p.write(values)
}

func (p *Printer) Items(items []any) error {
	values, err := p.apply(items)
	if err != nil {
		return err
	}
	return p.write(values)
}

func (p *Printer) write(values []any) error {
	switch p.format {
	case FormatJSONL:
		for _, v := range values {
			if err := p.writeJSON(v, ""); err != nil {
				return err
			}
		}
		return nil
	case FormatTable:
		return p.writeTable(values)
	default:
		if values == nil {
			values = []any{}
		}
		return p.writeJSON(values, "  ")
	}
}

func (p *Printer) writeJSON(v any, indent string) error {
	encoder := json.NewEncoder(p.w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", indent)
	return encoder.Encode(v)
}

func (p *Printer) writeTable(values []any) error {
	columns := make(map[string]bool)
	for _, v := range values {
		if m, ok := v.(map[string]any); ok {
			for k := range m {
				columns[k] = true
			}
		}
	}
	headers := make([]string, 0, len(columns))
	for k := range columns {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	table := NewTable(p.w)
	if len(headers) == 0 {
		table.Header([]string{"value"})
		for _, v := range values {
			table.Row([]string{cell(v)})
		}
	} else {
		table.Header(headers)
		for _, v := range values {
			m, _ := v.(map[string]any)
			row := make([]string, len(headers))
			for i, h := range headers {
				if value, ok := m[h]; ok {
					row[i] = cell(value)
				}
			}
			table.Row(row)
		}
	}
	table.Render()

	_, err := fmt.Fprintf(p.w, "%d %s\n", len(values), plural(len(values), "row", "rows"))
	return err
}

// apply converts items to plain JSON values and runs the jq program, if
// any, over each of them.
func (p *Printer) apply(items []any) ([]any, error) {
	var out []any
	for _, item := range items {
		value, err := plainJSON(item)
		if err != nil {
			return nil, err
		}
		if p.jq == nil {
			out = append(out, value)
			continue
		}

		iter := p.jq.Run(value)
		for {
			result, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := result.(error); isErr {
				return nil, fmt.Errorf("jq: %w", err)
			}
			out = append(out, result)
		}
	}
	return out, nil
}

// plainJSON reduces v to the maps, slices and scalars jq operates on.
func plainJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		data, _ := json.Marshal(t)
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
