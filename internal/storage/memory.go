package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dharsanguruparan/VaultForm/internal/model"
)

// MemoryStore is an in-memory MetadataStore guarded by an RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	uploads map[string]*model.StoredUpload
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{uploads: make(map[string]*model.StoredUpload)}
}

// Create inserts a record, stamping its timestamps.
func (m *MemoryStore) Create(_ context.Context, u *model.StoredUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.uploads[u.ID]; exists {
		return fmt.Errorf("upload %s already exists", u.ID)
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = model.StatusStored
	}
	m.uploads[u.ID] = u.Clone()
	return nil
}

// Get returns a copy of the record.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.StoredUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

// UpdateStatus updates status and message.
func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status model.UploadStatus, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.Message = msg
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveContent stores extracted text and marks the upload ready.
func (m *MemoryStore) SaveContent(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return ErrNotFound
	}
	u.Content = content
	u.Status = model.StatusReady
	u.Message = ""
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryBlobs is an in-memory BlobStore.
type MemoryBlobs struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryBlobs constructs a MemoryBlobs.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{objects: make(map[string]memoryObject)}
}

// Put reads r fully and stores it under key. size is advisory; -1 means
// unknown.
func (b *MemoryBlobs) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	return nil
}

// Get returns a copy of the object bytes.
func (b *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(obj.data), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *MemoryBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Len reports how many objects are stored.
func (b *MemoryBlobs) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
