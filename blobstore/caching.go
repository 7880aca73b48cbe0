package blobstore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingStore wraps a Store and keeps recently read blobs in memory.
//
// Only names accepted by the filter are cached. Blobs that another process
// may overwrite (such as a commit pointer) must be excluded, since the cache
// only observes writes made through this store.
type CachingStore struct {
	inner  Store
	cache  *lru.Cache[string, []byte]
	filter func(name string) bool
}

// CachingOption configures a CachingStore.
type CachingOption func(*CachingStore)

// WithCacheFilter restricts caching to names for which fn returns true.
func WithCacheFilter(fn func(name string) bool) CachingOption {
	return func(s *CachingStore) {
		s.filter = fn
	}
}

// NewCachingStore caches up to size blobs read from inner.
func NewCachingStore(inner Store, size int, optFns ...CachingOption) (*CachingStore, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}

	s := &CachingStore{
		inner:  inner,
		cache:  cache,
		filter: func(string) bool { return true },
	}
	for _, fn := range optFns {
		fn(s)
	}

	return s, nil
}

// Get returns a copy of the cached blob or reads it from the inner store.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if data, ok := s.cache.Get(name); ok {
		return clone(data), nil
	}

	data, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if s.filter(name) {
		s.cache.Add(name, clone(data))
	}

	return data, nil
}

// Put writes through and drops any cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Remove(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes the blob and any cached copy.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Remove(name)
	return s.inner.Delete(ctx, name)
}

// List is never cached.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Len returns the number of cached blobs.
func (s *CachingStore) Len() int {
	return s.cache.Len()
}

func clone(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
