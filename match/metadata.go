package match

import (
	"context"
	"maps"
	"sync"
)

// Record holds the attributes attached to an enrolled id.
type Record map[string]string

// Clone returns a copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// MetadataStore maps index ids to records.
type MetadataStore interface {
	// Get returns the record for id. ok is false if none exists.
	Get(ctx context.Context, id uint64) (rec Record, ok bool, err error)
	// Put stores or replaces the record for id.
	Put(ctx context.Context, id uint64, rec Record) error
	// Delete removes the record for id. Missing ids are ignored.
	Delete(ctx context.Context, id uint64) error
}

var _ MetadataStore = (*MemoryMetadataStore)(nil)

// MemoryMetadataStore is a MetadataStore backed by a map.
// It is safe for concurrent use.
type MemoryMetadataStore struct {
	mu      sync.RWMutex
	records map[uint64]Record
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{records: make(map[uint64]Record)}
}

// Get returns a copy of the record for id.
func (s *MemoryMetadataStore) Get(_ context.Context, id uint64) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec.Clone(), ok, nil
}

// Put stores a copy of rec.
func (s *MemoryMetadataStore) Put(_ context.Context, id uint64, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = rec.Clone()
	return nil
}

// Delete removes the record for id.
func (s *MemoryMetadataStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Len returns the number of records.
func (s *MemoryMetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
