package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/revenac/apiserver/config"
)

type memoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	ensured bool
}

func (m *memoryBackend) EnsureBucket(ctx context.Context) error {
	m.ensured = true
	return nil
}

func (m *memoryBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string { return "memory" }

func TestStorageDelegatesToBackend(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{objects: map[string][]byte{}}
	s := NewStorage(backend)

	if err := s.EnsureBucket(ctx); err != nil || !backend.ensured {
		t.Fatalf("ensure bucket: %v", err)
	}
	if err := s.Put(ctx, "rewards/1/a.png", strings.NewReader("png"), 3, "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := s.Get(ctx, "rewards/1/a.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "png" {
		t.Fatalf("unexpected object data %q", data)
	}

	if err := s.Delete(ctx, "rewards/1/a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "rewards/1/a.png"); err != ErrObjectNotFound {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if s.Bucket() != "memory" {
		t.Fatalf("unexpected bucket %q", s.Bucket())
	}
}

func TestOpenWithoutBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	if err != nil || s != nil {
		t.Fatalf("expected nil storage and nil error, got %v, %v", s, err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), config.StorageConfig{Backend: "ftp"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpenValidatesMinioConfig(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "minio"})
	if err == nil || !strings.Contains(err.Error(), "minio") {
		t.Fatalf("expected minio validation error, got %v", err)
	}
}
