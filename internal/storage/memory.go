package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps objects in process memory. It backs local runs with
// MINIO_ENDPOINT=memory and the unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string

	// DeleteErr, when set, is returned by every Delete call.
	DeleteErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func memKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *MemoryStore) Put(_ context.Context, bucket, key string, data io.Reader, _ int64, contentType string) error {
	if key == "" {
		return fmt.Errorf("object name cannot be empty")
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[memKey(bucket, key)] = raw
	s.types[memKey(bucket, key)] = contentType
	return nil
}

func (s *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.objects[memKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrBlobNotFound)
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, memKey(bucket, key))
	delete(s.types, memKey(bucket, key))
	return nil
}

// Has reports whether an object exists.
func (s *MemoryStore) Has(bucket, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[memKey(bucket, key)]
	return ok
}

// ContentType returns the content type recorded for an object.
func (s *MemoryStore) ContentType(bucket, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[memKey(bucket, key)]
}
