package country

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

// ============================================================
// Unilateral rules
// ============================================================

func (s *InMemoryStoreSuite) TestGetCountryMissingReturnsNil() {
	rule, err := s.store.GetCountry(s.ctx, "US")
	s.Require().NoError(err)
	s.Nil(rule)
}

func (s *InMemoryStoreSuite) TestUpsertCountryThenGet() {
	rule, err := models.NewCountryRestriction("KP", true, false, decimal.Zero, "sanctions")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertCountry(s.ctx, rule))

	got, err := s.store.GetCountry(s.ctx, "KP")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.True(got.IsBlocked)
	s.Equal("sanctions", got.Reason)
}

func (s *InMemoryStoreSuite) TestUpsertCountryReplaces() {
	rule, err := models.NewCountryRestriction("US", false, true, decimal.NewFromInt(1000), "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertCountry(s.ctx, rule))

	rule.MaxTransferAmount = decimal.NewFromInt(2000)
	s.Require().NoError(s.store.UpsertCountry(s.ctx, rule))

	got, err := s.store.GetCountry(s.ctx, "US")
	s.Require().NoError(err)
	s.True(got.MaxTransferAmount.Equal(decimal.NewFromInt(2000)))
}

func (s *InMemoryStoreSuite) TestDeleteCountry() {
	rule, err := models.NewCountryRestriction("DE", false, true, decimal.Zero, "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertCountry(s.ctx, rule))
	s.Require().NoError(s.store.DeleteCountry(s.ctx, "DE"))

	got, err := s.store.GetCountry(s.ctx, "DE")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *InMemoryStoreSuite) TestListCountriesInsertionOrder() {
	for _, c := range []string{"CH", "US", "DE"} {
		rule, err := models.NewCountryRestriction(id.CountryCode(c), false, true, decimal.Zero, "")
		s.Require().NoError(err)
		s.Require().NoError(s.store.UpsertCountry(s.ctx, rule))
	}

	rules, err := s.store.ListCountries(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rules, 3)
	s.Equal("CH", rules[0].Country.String())
	s.Equal("US", rules[1].Country.String())
	s.Equal("DE", rules[2].Country.String())
}

// ============================================================
// Bilateral rules
// ============================================================

func (s *InMemoryStoreSuite) TestBilateralPairIsDirectional() {
	rule, err := models.NewBilateralRestriction("US", "CN", true, decimal.Zero)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, rule))

	got, err := s.store.GetBilateral(s.ctx, "US", "CN")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.True(got.IsBlocked)

	reverse, err := s.store.GetBilateral(s.ctx, "CN", "US")
	s.Require().NoError(err)
	s.Nil(reverse)
}

func (s *InMemoryStoreSuite) TestDeleteBilateral() {
	rule, err := models.NewBilateralRestriction("US", "CN", false, decimal.NewFromInt(500))
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, rule))
	s.Require().NoError(s.store.DeleteBilateral(s.ctx, "US", "CN"))

	got, err := s.store.GetBilateral(s.ctx, "US", "CN")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *InMemoryStoreSuite) TestListBilateralInsertionOrder() {
	first, err := models.NewBilateralRestriction("US", "CN", true, decimal.Zero)
	s.Require().NoError(err)
	second, err := models.NewBilateralRestriction("CN", "US", false, decimal.NewFromInt(100))
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, first))
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, second))

	rules, err := s.store.ListBilateral(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rules, 2)
	s.Equal("US", rules[0].Source.String())
	s.Equal("CN", rules[1].Source.String())
}
