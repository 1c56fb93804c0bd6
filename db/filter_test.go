package db

import (
	"testing"

	"github.com/nickyhof/innoldb/core"
	"github.com/stretchr/testify/assert"
)

func TestFilterMatch(t *testing.T) {
	doc := core.NewDocument("employees", "", map[string]any{
		"id":     "1",
		"team":   "InnoLab",
		"age":    int64(37),
		"nested": map[string]any{"title": "Lead Engineer"},
		"tags":   []any{"a"},
	})

	tests := []struct {
		name   string
		filter Filter
		match  bool
	}{
		{"empty", Filter{}, true},
		{"equals", Filter{Equals: map[string]any{"team": "InnoLab"}}, true},
		{"equals case", Filter{Equals: map[string]any{"team": "innolab"}}, false},
		{"equals ignore case", Filter{Equals: map[string]any{"team": "innolab"}, IgnoreCase: true}, true},
		{"number from string", Filter{Equals: map[string]any{"age": "37"}}, true},
		{"number", Filter{Equals: map[string]any{"age": int64(37)}}, true},
		{"missing field", Filter{Equals: map[string]any{"location": "x"}}, false},
		{"nested equals", Filter{Equals: map[string]any{"nested.title": "Lead Engineer"}}, true},
		{"contains", Filter{Contains: map[string]string{"team": "Lab"}}, true},
		{"contains case", Filter{Contains: map[string]string{"team": "lab"}}, false},
		{"contains ignore case", Filter{Contains: map[string]string{"nested.title": "engineer"}, IgnoreCase: true}, true},
		{"contains struct", Filter{Contains: map[string]string{"nested": "Lead"}}, false},
		{"contains list", Filter{Contains: map[string]string{"tags": "a"}}, false},
		{"both", Filter{Equals: map[string]any{"id": "1"}, Contains: map[string]string{"team": "Inno"}}, true},
		{"both one fails", Filter{Equals: map[string]any{"id": "2"}, Contains: map[string]string{"team": "Inno"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.filter.Match(doc))
		})
	}
}

func TestNewFilter(t *testing.T) {
	f := NewFilter(
		[]core.KeyValue{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}},
		[]core.KeyValue{{Key: "b", Value: "x"}},
		true,
	)

	assert.Equal(t, map[string]any{"a": "2"}, f.Equals)
	assert.Equal(t, map[string]string{"b": "x"}, f.Contains)
	assert.True(t, f.IgnoreCase)
}
