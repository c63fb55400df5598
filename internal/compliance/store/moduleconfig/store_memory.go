package moduleconfig

import (
	"context"
	"sync"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// InMemoryStore implements ModuleConfigStore. An explicit key index alongside
// the map gives ListByToken real insertion-order iteration, which the
// evaluator relies on for stable priority tie-breaks.
type InMemoryStore struct {
	mu    sync.RWMutex
	rows  map[string]*models.ComplianceModuleConfig
	order []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows: make(map[string]*models.ComplianceModuleConfig),
	}
}

func (s *InMemoryStore) Get(_ context.Context, token id.TokenID, moduleType models.ModuleType) (*models.ComplianceModuleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cfg, ok := s.rows[models.ModuleKey(token, moduleType)]; ok {
		return cloneConfig(cfg), nil
	}
	return nil, nil
}

func (s *InMemoryStore) Put(_ context.Context, cfg *models.ComplianceModuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.ModuleKey(cfg.Token, cfg.Type)
	if _, exists := s.rows[key]; !exists {
		s.order = append(s.order, key)
	}
	s.rows[key] = cloneConfig(cfg)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, token id.TokenID, moduleType models.ModuleType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.ModuleKey(token, moduleType)
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

func (s *InMemoryStore) ListByToken(_ context.Context, token id.TokenID) ([]*models.ComplianceModuleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ComplianceModuleConfig
	for _, key := range s.order {
		cfg := s.rows[key]
		if cfg.Token == token {
			out = append(out, cloneConfig(cfg))
		}
	}
	return out, nil
}

func cloneConfig(cfg *models.ComplianceModuleConfig) *models.ComplianceModuleConfig {
	cp := *cfg
	if cfg.Config != nil {
		cp.Config = append([]byte(nil), cfg.Config...)
	}
	return &cp
}
