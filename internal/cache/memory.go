package cache

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(fingerprint string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[fingerprint]
	return entry, ok, nil
}

func (s *MemoryStore) Put(fingerprint, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[fingerprint]; ok {
		if existing.Summary == summary {
			return nil
		}
		return &ConsistencyError{Fingerprint: fingerprint}
	}
	s.entries[fingerprint] = Entry{Summary: summary, GeneratedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) Prune(live map[string]bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for fp := range s.entries {
		if !live[fp] {
			delete(s.entries, fp)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}
