// Package balance provides an in-memory BalanceProvider. Production
// deployments adapt the token ledger behind the same interface.
package balance

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		balances: make(map[string]decimal.Decimal),
	}
}

// Set records a subject's current balance.
func (s *InMemoryStore) Set(token id.TokenID, subject id.Address, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[models.SubjectKey(token, subject)] = amount
}

func (s *InMemoryStore) BalanceOf(_ context.Context, token id.TokenID, subject id.Address) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bal, ok := s.balances[models.SubjectKey(token, subject)]; ok {
		return bal, nil
	}
	return decimal.Zero, nil
}
