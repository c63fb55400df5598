package roles

import (
	"context"
	"sync"

	id "tokengate/pkg/domain"
)

// InMemoryStore implements AccessControl with an explicit grant table. The
// registry consults it before permitting enable/disable/update operations.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[id.Address]map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants: make(map[id.Address]map[string]struct{}),
	}
}

func (s *InMemoryStore) Grant(actor id.Address, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[actor] == nil {
		s.grants[actor] = make(map[string]struct{})
	}
	s.grants[actor][role] = struct{}{}
}

func (s *InMemoryStore) Revoke(actor id.Address, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants[actor], role)
}

func (s *InMemoryStore) HasRole(_ context.Context, actor id.Address, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[actor][role]
	return ok, nil
}
