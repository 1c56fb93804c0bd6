package db

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickyhof/innoldb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectScheme(t *testing.T) {
	tests := map[string]urlScheme{
		"s3://bucket/key":         schemeS3,
		"S3://bucket/key":         schemeS3,
		"https://example.com/x":   schemeHTTPS,
		"http://example.com/x":    schemeHTTP,
		"file:///tmp/docs.json":   schemeFile,
		"/tmp/docs.json":          schemeLocal,
		"relative/path/docs.json": schemeLocal,
	}
	for path, expected := range tests {
		assert.Equal(t, expected, detectScheme(path), path)
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://ledger-exports/teams/employees.json")
	require.NoError(t, err)
	assert.Equal(t, "ledger-exports", bucket)
	assert.Equal(t, "teams/employees.json", key)

	for _, bad := range []string{"s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := parseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodeDocuments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []map[string]any
	}{
		{"array", ` [{"id": "1", "age": 37}, {"id": "2", "score": 1.5}]`, []map[string]any{
			{"id": "1", "age": int64(37)}, {"id": "2", "score": 1.5},
		}},
		{"lines", "{\"id\": \"1\"}\n\n{\"id\": \"2\", \"tags\": [1]}\n", []map[string]any{
			{"id": "1"}, {"id": "2", "tags": []any{int64(1)}},
		}},
		{"empty", "  \n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := decodeDocuments(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, docs)
		})
	}

	_, err := decodeDocuments(strings.NewReader(`{"id": "1"} {"id":`))
	assert.Error(t, err)
}

func TestWriteAndReadLocal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	docs := []core.Document{
		core.NewDocument("employees", "", map[string]any{"id": "1", "team": "InnoLab"}),
		core.NewDocument("employees", "", map[string]any{"id": "2", "age": int64(41)}),
	}

	for _, name := range []string{"docs.json", "docs.jsonl"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteDocuments(ctx, path, docs, RemoteOptions{}))

		read, err := ReadDocuments(ctx, "file://"+path, RemoteOptions{})
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{docs[0].Fields(), docs[1].Fields()}, read, name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "docs.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestFailedWriteKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	path := filepath.Join(dir, "docs.json")

	good := []core.Document{core.NewDocument("employees", "", map[string]any{"id": "1"})}
	require.NoError(t, WriteDocuments(ctx, path, good, RemoteOptions{}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := []core.Document{core.NewDocument("employees", "", map[string]any{"id": "2", "score": math.NaN()})}
	err = WriteDocuments(ctx, path, bad, RemoteOptions{})
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestS3WriterAbortSkipsUpload(t *testing.T) {
	// A nil client would panic if Close tried to upload.
	w := &s3Writer{ctx: context.Background(), bucket: "bucket", key: "docs.json"}
	_, err := w.Write([]byte("[{"))
	require.NoError(t, err)

	w.Abort()
	assert.NoError(t, w.Close())
	_, err = w.Write([]byte("}]"))
	assert.Error(t, err)
}

func TestReadHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schemas.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "schema-1", "version": 2}]`))
	}))
	defer server.Close()

	ctx := context.Background()
	opts := RemoteOptions{HTTPClient: server.Client()}

	docs, err := ReadDocuments(ctx, server.URL+"/schemas.json", opts)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "schema-1", "version": int64(2)}}, docs)

	_, err = ReadDocuments(ctx, server.URL+"/missing.json", opts)
	assert.ErrorContains(t, err, "404")
}

func TestWriteHTTPUnsupported(t *testing.T) {
	err := WriteDocuments(context.Background(), "https://example.com/docs.json", nil, RemoteOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestQueryExportAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "employees.jsonl")

	source := newTestQuery(t)
	seed(t, source)
	n, err := source.Export(ctx, path, RemoteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	target := newTestQuery(t)
	loaded, err := target.Load(ctx, path, RemoteOptions{})
	require.NoError(t, err)
	assert.Len(t, loaded, 3)

	doc, err := target.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Innovation Lab", doc.Fields()["team"])

	// Loading again updates in place.
	_, err = target.Load(ctx, path, RemoteOptions{})
	require.NoError(t, err)
	all, err := target.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
