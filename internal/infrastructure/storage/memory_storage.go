package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryObjectStorage keeps objects in process memory. Download URLs point
// at BaseURL and are not signed.
type MemoryObjectStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryObjectStorage creates an empty store
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryObjectStorage{BaseURL: baseURL, objects: make(map[string]memoryObject)}
}

// Upload stores a copy of data under key
func (m *MemoryObjectStorage) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: slices.Clone(data), contentType: contentType}
	return nil
}

// GenerateDownloadURL returns BaseURL/key when the object exists
func (m *MemoryObjectStorage) GenerateDownloadURL(_ context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, ErrEmptyKey
	}
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", time.Time{}, fmt.Errorf("object %s not found", key)
	}
	if expiresIn <= 0 {
		expiresIn = defaultPresignExpiration
	}
	return m.BaseURL + "/" + key, time.Now().Add(expiresIn), nil
}

// ObjectExists reports whether key is present
func (m *MemoryObjectStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// DeleteObject removes key; deleting a missing key is not an error
func (m *MemoryObjectStorage) DeleteObject(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Get returns the stored bytes and content type
func (m *MemoryObjectStorage) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return slices.Clone(obj.data), obj.contentType, true
}

// Keys lists stored keys in sorted order
func (m *MemoryObjectStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.objects))
}
