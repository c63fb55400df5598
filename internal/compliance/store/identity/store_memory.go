// Package identity provides an in-memory IdentityProvider backed by a simple
// attribute table. Production deployments adapt their KYC registry behind the
// same interface.
package identity

import (
	"context"
	"sync"

	id "tokengate/pkg/domain"
)

// Attributes holds the identity facts the compliance modules consult. Claims
// verification happens upstream; this table only stores the verified result.
type Attributes struct {
	KYCLevel     uint8
	InvestorType uint8
	Country      id.CountryCode
}

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.Address]Attributes
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.Address]Attributes),
	}
}

// Set registers or replaces a subject's identity attributes.
func (s *InMemoryStore) Set(subject id.Address, attrs Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[subject] = attrs
}

// Remove deletes a subject's identity record.
func (s *InMemoryStore) Remove(subject id.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, subject)
}

func (s *InMemoryStore) HasIdentity(_ context.Context, subject id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[subject]
	return ok, nil
}

func (s *InMemoryStore) KYCLevel(_ context.Context, subject id.Address) (uint8, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[subject].KYCLevel, nil
}

func (s *InMemoryStore) InvestorType(_ context.Context, subject id.Address) (uint8, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[subject].InvestorType, nil
}

func (s *InMemoryStore) CountryCode(_ context.Context, subject id.Address) (id.CountryCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[subject].Country, nil
}
