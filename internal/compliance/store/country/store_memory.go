package country

import (
	"context"
	"sync"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// InMemoryStore implements CountryStore with explicit key indexes so listing
// iterates in insertion order.
type InMemoryStore struct {
	mu             sync.RWMutex
	countries      map[id.CountryCode]*models.CountryRestriction
	countryOrder   []id.CountryCode
	bilateral      map[string]*models.BilateralRestriction
	bilateralOrder []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		countries: make(map[id.CountryCode]*models.CountryRestriction),
		bilateral: make(map[string]*models.BilateralRestriction),
	}
}

func (s *InMemoryStore) GetCountry(_ context.Context, country id.CountryCode) (*models.CountryRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rule, ok := s.countries[country]; ok {
		cp := *rule
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemoryStore) UpsertCountry(_ context.Context, rule *models.CountryRestriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.countries[rule.Country]; !exists {
		s.countryOrder = append(s.countryOrder, rule.Country)
	}
	cp := *rule
	s.countries[rule.Country] = &cp
	return nil
}

func (s *InMemoryStore) DeleteCountry(_ context.Context, country id.CountryCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.countries[country]; !exists {
		return nil
	}
	delete(s.countries, country)
	for i, c := range s.countryOrder {
		if c == country {
			s.countryOrder = append(s.countryOrder[:i], s.countryOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryStore) ListCountries(_ context.Context) ([]*models.CountryRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CountryRestriction, 0, len(s.countryOrder))
	for _, c := range s.countryOrder {
		cp := *s.countries[c]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) GetBilateral(_ context.Context, source, destination id.CountryCode) (*models.BilateralRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rule, ok := s.bilateral[models.PairKey(source, destination)]; ok {
		cp := *rule
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemoryStore) UpsertBilateral(_ context.Context, rule *models.BilateralRestriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.PairKey(rule.Source, rule.Destination)
	if _, exists := s.bilateral[key]; !exists {
		s.bilateralOrder = append(s.bilateralOrder, key)
	}
	cp := *rule
	s.bilateral[key] = &cp
	return nil
}

func (s *InMemoryStore) DeleteBilateral(_ context.Context, source, destination id.CountryCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.PairKey(source, destination)
	if _, exists := s.bilateral[key]; !exists {
		return nil
	}
	delete(s.bilateral, key)
	for i, k := range s.bilateralOrder {
		if k == key {
			s.bilateralOrder = append(s.bilateralOrder[:i], s.bilateralOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryStore) ListBilateral(_ context.Context) ([]*models.BilateralRestriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.BilateralRestriction, 0, len(s.bilateralOrder))
	for _, k := range s.bilateralOrder {
		cp := *s.bilateral[k]
		out = append(out, &cp)
	}
	return out, nil
}
