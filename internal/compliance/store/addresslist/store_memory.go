package addresslist

import (
	"context"
	"sync"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// InMemoryStore implements AddressListStore with per-token whitelist and
// blacklist sets.
type InMemoryStore struct {
	mu        sync.RWMutex
	whitelist map[string]struct{}
	blacklist map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		whitelist: make(map[string]struct{}),
		blacklist: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) IsWhitelisted(_ context.Context, token id.TokenID, subject id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.whitelist[models.SubjectKey(token, subject)]
	return ok, nil
}

func (s *InMemoryStore) IsBlacklisted(_ context.Context, token id.TokenID, subject id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blacklist[models.SubjectKey(token, subject)]
	return ok, nil
}

func (s *InMemoryStore) AddToWhitelist(_ context.Context, token id.TokenID, subject id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[models.SubjectKey(token, subject)] = struct{}{}
	return nil
}

func (s *InMemoryStore) AddToBlacklist(_ context.Context, token id.TokenID, subject id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[models.SubjectKey(token, subject)] = struct{}{}
	return nil
}

func (s *InMemoryStore) RemoveFromWhitelist(_ context.Context, token id.TokenID, subject id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.whitelist, models.SubjectKey(token, subject))
	return nil
}

func (s *InMemoryStore) RemoveFromBlacklist(_ context.Context, token id.TokenID, subject id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blacklist, models.SubjectKey(token, subject))
	return nil
}
