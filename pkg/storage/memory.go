package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// MemoryBackend is a concurrent in-memory Backend.
type MemoryBackend struct {
	mu      sync.RWMutex
	schemas map[string]*fhirschema.FhirSchema
	meta    Metadata
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{schemas: make(map[string]*fhirschema.FhirSchema)}
}

func (m *MemoryBackend) Get(url string) (*fhirschema.FhirSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[url]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryBackend) Put(url string, schema *fhirschema.FhirSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UnixNano()
	if m.meta.Count == 0 && len(m.schemas) == 0 {
		m.meta.Created = now
	}
	m.schemas[url] = schema
	m.meta.Updated = now
	m.meta.OpCounter++
	m.meta.Count = len(m.schemas)
	return nil
}

func (m *MemoryBackend) Remove(url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[url]; !ok {
		return false, nil
	}
	delete(m.schemas, url)
	m.meta.OpCounter++
	m.meta.Count = len(m.schemas)
	return true, nil
}

func (m *MemoryBackend) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	urls := make([]string, 0, len(m.schemas))
	for u := range m.schemas {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

func (m *MemoryBackend) Contains(url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.schemas[url]
	return ok, nil
}

func (m *MemoryBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas = make(map[string]*fhirschema.FhirSchema)
	m.meta = Metadata{}
	return nil
}

func (m *MemoryBackend) Size() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.schemas), nil
}

// Metadata returns a snapshot of the backend's bookkeeping record.
func (m *MemoryBackend) Metadata() Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta
}

var _ Backend = (*MemoryBackend)(nil)
