// Document import and export over local files, HTTP and S3.
package db

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/ps"
)

var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// RemoteOptions configures access to http(s):// and s3:// locations.
type RemoteOptions struct {
	AWS ps.AWSOptions
	// S3Endpoint points the S3 client at an S3-compatible service.
	S3Endpoint string
	HTTPClient *http.Client
}

type urlScheme string

const (
	schemeFile  urlScheme = "file"
	schemeS3    urlScheme = "s3"
	schemeHTTP  urlScheme = "http"
	schemeHTTPS urlScheme = "https"
	schemeLocal urlScheme = "local" // no scheme, local path
)

func detectScheme(path string) urlScheme {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lowerPath, "s3://"):
		return schemeS3
	case strings.HasPrefix(lowerPath, "https://"):
		return schemeHTTPS
	case strings.HasPrefix(lowerPath, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lowerPath, "file://"):
		return schemeFile
	default:
		return schemeLocal
	}
}

// ReadDocuments reads a JSON array of documents, or one document per line,
// from a local path, file://, http(s):// or s3:// location.
func ReadDocuments(ctx context.Context, src string, opts RemoteOptions) ([]map[string]any, error) {
	reader, err := openRemoteReader(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	docs, err := decodeDocuments(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents from %s: %w", src, err)
	}
	return docs, nil
}

// WriteDocuments writes docs to a local path, file:// or s3:// location. A
// destination ending in .jsonl gets one document per line, anything else a
// JSON array.
func WriteDocuments(ctx context.Context, dest string, docs []core.Document, opts RemoteOptions) error {
	writer, err := openRemoteWriter(ctx, dest, opts)
	if err != nil {
		return err
	}

	if err := encodeDocuments(writer, docs, strings.HasSuffix(strings.ToLower(dest), ".jsonl")); err != nil {
		writer.Abort()
		return fmt.Errorf("failed to write documents to %s: %w", dest, err)
	}
	return writer.Close()
}

// remoteWriter publishes what was written on Close. After Abort the
// destination keeps its previous content.
type remoteWriter interface {
	io.WriteCloser
	Abort()
}

func decodeDocuments(r io.Reader) ([]map[string]any, error) {
	buffered := bufio.NewReader(r)
	first, err := peekNonSpace(buffered)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(buffered)
	decoder.UseNumber()

	if first == '[' {
		var docs []map[string]any
		if err := decoder.Decode(&docs); err != nil {
			return nil, err
		}
		for _, doc := range docs {
			numbers(doc)
		}
		return docs, nil
	}

	var docs []map[string]any
	for {
		var doc map[string]any
		err := decoder.Decode(&doc)
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(docs)+1, err)
		}
		docs = append(docs, numbers(doc).(map[string]any))
	}
}

func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}

// numbers replaces json.Number with int64 or float64, in place.
func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = numbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = numbers(item)
		}
		return t
	default:
		return v
	}
}

func encodeDocuments(w io.Writer, docs []core.Document, lines bool) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if lines {
		for _, doc := range docs {
			if err := encoder.Encode(doc); err != nil {
				return err
			}
		}
		return nil
	}
	if docs == nil {
		docs = []core.Document{}
	}
	encoder.SetIndent("", "  ")
	return encoder.Encode(docs)
}

func openRemoteReader(ctx context.Context, path string, opts RemoteOptions) (io.ReadCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return os.Open(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return openHTTPReader(ctx, path, opts.HTTPClient)
	case schemeS3:
		return openS3Reader(ctx, path, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, path)
	}
}

func openRemoteWriter(ctx context.Context, path string, opts RemoteOptions) (remoteWriter, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return createFileWriter(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return nil, fmt.Errorf("%w: HTTP does not support writing", ErrUnsupportedScheme)
	case schemeS3:
		return openS3Writer(ctx, path, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, path)
	}
}

func openHTTPReader(ctx context.Context, url string, client *http.Client) (io.ReadCloser, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// parseS3URL splits s3://bucket/key.
func parseS3URL(url string) (bucket, key string, err error) {
	path := url[len("s3://"):]
	bucket, key, found := strings.Cut(path, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	return bucket, key, nil
}

func getS3Client(ctx context.Context, opts RemoteOptions) (*s3.Client, error) {
	awsCfg, err := ps.LoadAWSConfig(ctx, opts.AWS)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func openS3Reader(ctx context.Context, url string, opts RemoteOptions) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}
	client, err := getS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}
	return resp.Body, nil
}

// s3Writer buffers the object and uploads it on Close.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buffer bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	return w.buffer.Write(p)
}

func (w *s3Writer) Abort() {
	w.closed = true
	w.buffer.Reset()
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buffer.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func openS3Writer(ctx context.Context, url string, opts RemoteOptions) (remoteWriter, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}
	client, err := getS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, client: client, bucket: bucket, key: key}, nil
}

// fileWriter writes to a temporary file next to path and renames it over
// path on Close.
type fileWriter struct {
	*os.File
	path string
}

func createFileWriter(path string) (*fileWriter, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &fileWriter{File: f, path: path}, nil
}

func (w *fileWriter) Abort() {
	w.File.Close()
	os.Remove(w.File.Name())
}

func (w *fileWriter) Close() error {
	if err := w.File.Close(); err != nil {
		os.Remove(w.File.Name())
		return err
	}
	if err := os.Rename(w.File.Name(), w.path); err != nil {
		os.Remove(w.File.Name())
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}
	return nil
}
