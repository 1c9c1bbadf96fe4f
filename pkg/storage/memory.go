package storage

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process LRU with per-entry expiry.
type MemoryStore struct {
	cache *lru.LRU[string, *FileAnalysis]
	counters
}

// NewMemoryStore holds up to size analyses, each for at most ttl.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size < 1 {
		size = 1
	}
	return &MemoryStore{cache: lru.NewLRU[string, *FileAnalysis](size, nil, ttl)}
}

// Get returns the stored analysis or ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, key string) (*FileAnalysis, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	a, ok := s.cache.Get(key)
	if !ok {
		s.miss()
		return nil, ErrCacheMiss
	}
	s.hit()
	return a, nil
}

// Set stores analysis under key.
func (s *MemoryStore) Set(_ context.Context, key string, analysis *FileAnalysis) error {
	if key == "" {
		return ErrInvalidKey
	}
	if analysis == nil {
		return errors.New("analysis cannot be nil")
	}
	s.cache.Add(key, analysis)
	return nil
}

// Stats returns hit and miss counters.
func (s *MemoryStore) Stats(context.Context) (*Stats, error) {
	return s.stats(int64(s.cache.Len())), nil
}

// Close drops every entry.
func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
