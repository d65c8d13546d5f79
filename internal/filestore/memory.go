package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fleetdocs/internal/document/models"
)

// Memory keeps artifacts in a map. Used in development without S3 and in tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Store(_ context.Context, upload models.Upload) (models.FileRef, error) {
	if err := Accept(upload); err != nil {
		return models.FileRef{}, err
	}
	key := fmt.Sprintf("documents/%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(upload.Name)))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), upload.Data...)
	return models.FileRef{
		Key:         key,
		URL:         "memory://" + key,
		Name:        upload.Name,
		Size:        upload.Size(),
		ContentType: normalizeContentType(upload.ContentType),
	}, nil
}

func (m *Memory) Delete(_ context.Context, ref models.FileRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref.Key)
	return nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
