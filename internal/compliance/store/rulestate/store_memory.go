package rulestate

import (
	"context"
	"sync"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// InMemoryStore implements RuleStateStore with map-backed rows plus an
// explicit key index so List iterates in insertion order. All rolling-window
// logic lives in the transfer-rule service; this store is pure I/O.
type InMemoryStore struct {
	mu    sync.RWMutex
	rows  map[string]*models.TransferRestrictions
	order []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows: make(map[string]*models.TransferRestrictions),
	}
}

func (s *InMemoryStore) Get(_ context.Context, token id.TokenID, subject id.Address) (*models.TransferRestrictions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if row, ok := s.rows[models.SubjectKey(token, subject)]; ok {
		return row.Clone(), nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetDefault(_ context.Context, token id.TokenID) (*models.TransferRestrictions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if row, ok := s.rows[models.SubjectKey(token, "")]; ok {
		return row.Clone(), nil
	}
	return nil, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, row *models.TransferRestrictions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.SubjectKey(row.Token, row.Subject)
	if _, exists := s.rows[key]; !exists {
		s.order = append(s.order, key)
	}
	s.rows[key] = row.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, token id.TokenID, subject id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.SubjectKey(token, subject)
	if _, exists := s.rows[key]; !exists {
		return nil
	}
	delete(s.rows, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryStore) List(_ context.Context, token id.TokenID) ([]*models.TransferRestrictions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TransferRestrictions
	for _, key := range s.order {
		row := s.rows[key]
		if row.Token == token {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}
