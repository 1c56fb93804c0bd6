package db

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nickyhof/innoldb/core"
)

// Filter matches documents in memory. A document matches when every Equals
// field has the given value and every Contains field holds the substring.
// Paths may be dotted.
type Filter struct {
	Equals     map[string]any
	Contains   map[string]string
	IgnoreCase bool
}

// NewFilter builds a filter from equality and substring key/values.
func NewFilter(equals, contains []core.KeyValue, ignoreCase bool) Filter {
	f := Filter{
		Equals:     core.KeyValueMap(equals),
		Contains:   make(map[string]string, len(contains)),
		IgnoreCase: ignoreCase,
	}
	for _, kv := range contains {
		f.Contains[kv.Key] = kv.Value
	}
	return f
}

func (f Filter) Match(doc core.Document) bool {
	for path, want := range f.Equals {
		got, ok := doc.Get(path)
		if !ok || !f.equal(got, want) {
			return false
		}
	}
	for path, sub := range f.Contains {
		got, ok := doc.Get(path)
		if !ok {
			return false
		}
		str, ok := scalarString(got)
		if !ok || !f.contains(str, sub) {
			return false
		}
	}
	return true
}

func (f Filter) equal(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	// Command line values arrive as strings.
	gs, ok := scalarString(got)
	if !ok {
		return false
	}
	ws, ok := scalarString(want)
	if !ok {
		return false
	}
	if f.IgnoreCase {
		return strings.EqualFold(gs, ws)
	}
	return gs == ws
}

func (f Filter) contains(s, sub string) bool {
	if f.IgnoreCase {
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	}
	return strings.Contains(s, sub)
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil, map[string]any, []any:
		return "", false
	case string:
		return t, true
	default:
		return fmt.Sprint(t), true
	}
}
