package budget

import (
	"sort"
	"sync"

	"github.com/commitment-planner/internal/domain"
)

// MemoryStore is an in-process domain.GrantRepository.
// Grants are copied on the way in and out so callers never share periods.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string]*domain.Grant
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]*domain.Grant)}
}

// Get returns a copy of the grant
func (s *MemoryStore) Get(id string) (*domain.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, domain.NewNotFoundError("grant", id)
	}
	return g.Clone(), nil
}

// Save stores a copy of the grant
func (s *MemoryStore) Save(grant *domain.Grant) error {
	if grant == nil || grant.ID == "" {
		return domain.NewValidationError("grant.id", "must be specified")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.ID] = grant.Clone()
	return nil
}

// List returns the stored grant IDs
func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.grants))
	for id := range s.grants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// KeyedMutex serializes work per key, e.g. spend updates per grant
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the mutex for key and returns its unlock function
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
