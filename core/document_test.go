package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentDefaultsIndex(t *testing.T) {
	doc := NewDocument("employees", "", map[string]any{"id": "abc"})
	assert.Equal(t, DefaultIndex, doc.Index)
	assert.Equal(t, "abc", doc.ID())
}

func TestDocumentIDNonString(t *testing.T) {
	doc := NewDocument("employees", "badge", map[string]any{"badge": 42})
	assert.Equal(t, "42", doc.ID())

	empty := NewDocument("employees", "badge", nil)
	assert.Equal(t, "", empty.ID())
	assert.Equal(t, 0, empty.Len())
}

func TestDocumentIsImmutable(t *testing.T) {
	fields := map[string]any{
		"id":     "1",
		"nested": map[string]any{"title": "lead"},
	}
	doc := NewDocument("employees", DefaultIndex, fields)

	// Mutating the source map must not leak into the document.
	fields["id"] = "2"
	fields["nested"].(map[string]any)["title"] = "changed"
	assert.Equal(t, "1", doc.ID())
	title, ok := doc.Get("nested.title")
	require.True(t, ok)
	assert.Equal(t, "lead", title)

	updated := doc.With("team", "InnoLab")
	_, ok = doc.Get("team")
	assert.False(t, ok)
	team, ok := updated.Get("team")
	require.True(t, ok)
	assert.Equal(t, "InnoLab", team)

	removed := updated.Without("team")
	assert.Equal(t, 2, removed.Len())
	assert.Equal(t, 3, updated.Len())

	out := doc.Fields()
	out["nested"].(map[string]any)["title"] = "changed"
	title, _ = doc.Get("nested.title")
	assert.Equal(t, "lead", title)
}

func TestDocumentMerge(t *testing.T) {
	doc := NewDocument("employees", DefaultIndex, map[string]any{"id": "1", "team": "a"})
	merged := doc.Merge(map[string]any{"team": "b", "location": "Florida"})

	assert.Equal(t, map[string]any{"id": "1", "team": "b", "location": "Florida"}, merged.Fields())
	assert.Equal(t, map[string]any{"id": "1", "team": "a"}, doc.Fields())
}

func TestDocumentGetPath(t *testing.T) {
	doc := NewDocument("t", DefaultIndex, map[string]any{
		"nested_field_1": map[string]any{
			"panopticon": map[string]any{
				"nest": map[string]any{"title": "deep"},
			},
		},
		"flat": "value",
	})

	v, ok := doc.Get("nested_field_1.panopticon.nest.title")
	require.True(t, ok)
	assert.Equal(t, "deep", v)

	_, ok = doc.Get("flat.missing")
	assert.False(t, ok)
	_, ok = doc.Get("")
	assert.False(t, ok)
}

func TestDocumentDecode(t *testing.T) {
	type employee struct {
		ID      string    `json:"id"`
		Age     int       `json:"age"`
		Started time.Time `json:"started"`
	}

	doc := NewDocument("employees", DefaultIndex, map[string]any{
		"id":      "e1",
		"age":     "37",
		"started": "2021-03-04T05:06:07Z",
	})

	var e employee
	require.NoError(t, doc.Decode(&e))
	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, 37, e.Age)
	assert.Equal(t, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), e.Started)
}

func TestDocumentMarshalJSON(t *testing.T) {
	doc := NewDocument("employees", DefaultIndex, map[string]any{"id": "1"}).
		WithMetadata(Metadata{ID: "meta", Version: 2})

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(data))

	data, err = json.Marshal(Document{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestNewIDHasNoDashes(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}
