// Package archive keeps raw upload files after they have been imported, so
// a batch can always be traced back to the exact bytes the user sent.
// Archival is best effort: the import has already committed by the time the
// file is archived, and an archival failure is logged, never surfaced.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archiver stores a raw upload and returns a URI it can later be fetched by.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}

// GCS archives uploads to a Cloud Storage bucket. It assumes Application
// Default Credentials are configured.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Close() error { return g.client.Close() }

// Archive writes the upload under uploads/YYYY/MM/DD/<uuid>-<filename> and
// returns the gs:// URI of the stored object.
func (g *GCS) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	now := time.Now().UTC()
	objectName := fmt.Sprintf("uploads/%04d/%02d/%02d/%s-%s",
		now.Year(), now.Month(), now.Day(), uuid.NewString(), filename)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy upload to storage writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload archive: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, objectName), nil
}

// Fetch downloads previously archived bytes by their gs:// URI.
func (g *GCS) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := splitURI(uri)
	if err != nil {
		return nil, err
	}
	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading archived bytes: %w", err)
	}
	return data, nil
}

func splitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid storage URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid storage URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Memory is an in-process Archiver for tests and local development.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Archive(_ context.Context, filename string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uri := fmt.Sprintf("mem://%s-%s", uuid.NewString(), filename)
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[uri] = buf
	return uri, nil
}

// Fetch returns previously archived bytes, or an error for unknown URIs.
func (m *Memory) Fetch(_ context.Context, uri string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("no archived object at %s", uri)
	}
	return data, nil
}

// Len reports how many objects have been archived.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
