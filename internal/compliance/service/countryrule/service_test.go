package countryrule

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/store/country"
	id "tokengate/pkg/domain"
)

type CountryRuleSuite struct {
	suite.Suite
	ctx      context.Context
	store    *country.InMemoryStore
	svc      *Service
	enforced models.CountryConfig
}

func TestCountryRuleSuite(t *testing.T) {
	suite.Run(t, new(CountryRuleSuite))
}

func (s *CountryRuleSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = country.NewInMemoryStore()
	s.enforced = models.CountryConfig{Enforced: true}

	svc, err := New(s.store)
	s.Require().NoError(err)
	s.svc = svc
}

// evaluate runs the default US -> DE corridor.
func (s *CountryRuleSuite) evaluate(amount int64) models.ModuleResult {
	return s.evaluateBetween("US", "DE", amount)
}

func (s *CountryRuleSuite) evaluateBetween(source, destination id.CountryCode, amount int64) models.ModuleResult {
	result, err := s.svc.Evaluate(s.ctx, s.enforced, source, destination, decimal.NewFromInt(amount))
	s.Require().NoError(err)
	return result
}

func (s *CountryRuleSuite) blockCountry(code string) {
	rule, err := models.NewCountryRestriction(id.CountryCode(code), true, false, decimal.Zero, "sanctions")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertCountry(s.ctx, rule))
}

// ============================================================
// Evaluate
// ============================================================

func (s *CountryRuleSuite) TestPassesWithNoRulesConfigured() {
	s.True(s.evaluate(100).Passed)
}

func (s *CountryRuleSuite) TestRejectsNonPositiveAmount() {
	result := s.evaluate(0)
	s.False(result.Passed)
	s.Equal(models.KindInvalidAmount, result.Kind)
}

func (s *CountryRuleSuite) TestEnforcementOffSkipsTables() {
	s.blockCountry("US")

	result, err := s.svc.Evaluate(s.ctx, models.CountryConfig{Enforced: false}, "US", "DE", decimal.NewFromInt(100))
	s.Require().NoError(err)
	s.True(result.Passed)
}

func (s *CountryRuleSuite) TestRejectsUnresolvedSenderCountry() {
	result := s.evaluateBetween("", "DE", 100)
	s.False(result.Passed)
	s.Equal(models.KindMissingIdentity, result.Kind)
	s.Contains(result.Message, "sender")
}

func (s *CountryRuleSuite) TestRejectsUnresolvedRecipientCountry() {
	result := s.evaluateBetween("US", "", 100)
	s.False(result.Passed)
	s.Equal(models.KindMissingIdentity, result.Kind)
	s.Contains(result.Message, "recipient")
}

func (s *CountryRuleSuite) TestRejectsBlockedSourceCountry() {
	s.blockCountry("US")

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindSourceCountryBlocked, result.Kind)
	s.Contains(result.Message, "sanctions")
}

func (s *CountryRuleSuite) TestRejectsBlockedDestinationCountry() {
	s.blockCountry("DE")

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindDestCountryBlocked, result.Kind)
}

func (s *CountryRuleSuite) TestSourceBlockWinsOverDestinationBlock() {
	s.blockCountry("US")
	s.blockCountry("DE")

	result := s.evaluate(100)
	s.Equal(models.KindSourceCountryBlocked, result.Kind)
}

func (s *CountryRuleSuite) TestRejectsBlockedCorridor() {
	rule, err := models.NewBilateralRestriction("US", "DE", true, decimal.Zero)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, rule))

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindBilateralBlocked, result.Kind)
}

func (s *CountryRuleSuite) TestCorridorIsDirectional() {
	rule, err := models.NewBilateralRestriction("DE", "US", true, decimal.Zero)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, rule))

	// US -> DE uses the US->DE corridor, which is open.
	s.True(s.evaluate(100).Passed)
}

func (s *CountryRuleSuite) TestRejectsAmountAboveCorridorLimit() {
	rule, err := models.NewBilateralRestriction("US", "DE", false, decimal.NewFromInt(500))
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, rule))

	result := s.evaluate(501)
	s.False(result.Passed)
	s.Equal(models.KindExceedsBilateralLimit, result.Kind)
	s.Require().NotNil(result.Limit)
	s.True(result.Limit.Equal(decimal.NewFromInt(500)))

	s.True(s.evaluate(500).Passed)
}

func (s *CountryRuleSuite) TestRejectsAmountAboveDestinationCountryLimit() {
	rule, err := models.NewCountryRestriction("DE", false, true, decimal.NewFromInt(300), "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertCountry(s.ctx, rule))

	result := s.evaluate(301)
	s.False(result.Passed)
	s.Equal(models.KindExceedsCountryLimit, result.Kind)
}

func (s *CountryRuleSuite) TestCorridorLimitCheckedBeforeCountryLimit() {
	countryRule, err := models.NewCountryRestriction("DE", false, true, decimal.NewFromInt(300), "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertCountry(s.ctx, countryRule))

	pair, err := models.NewBilateralRestriction("US", "DE", false, decimal.NewFromInt(200))
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertBilateral(s.ctx, pair))

	result := s.evaluate(400)
	s.Equal(models.KindExceedsBilateralLimit, result.Kind)
}

// ============================================================
// Admin surface
// ============================================================

func (s *CountryRuleSuite) TestUpsertCountryValidatesCode() {
	_, err := s.svc.UpsertCountry(s.ctx, models.UpsertCountryRequest{Country: "USA"})
	s.Require().Error(err)
}

func (s *CountryRuleSuite) TestUpsertCountryNormalizesCase() {
	rule, err := s.svc.UpsertCountry(s.ctx, models.UpsertCountryRequest{
		Country:       "us",
		IsWhitelisted: true,
	})
	s.Require().NoError(err)
	s.Equal("US", rule.Country.String())

	got, err := s.store.GetCountry(s.ctx, "US")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.True(got.IsWhitelisted)
}

func (s *CountryRuleSuite) TestUpsertCountryBlockedRequiresReason() {
	_, err := s.svc.UpsertCountry(s.ctx, models.UpsertCountryRequest{
		Country:   "KP",
		IsBlocked: true,
	})
	s.Require().Error(err)
}

func (s *CountryRuleSuite) TestUpsertAndDeleteBilateral() {
	_, err := s.svc.UpsertBilateral(s.ctx, models.UpsertBilateralRequest{
		Source:      "us",
		Destination: "cn",
		IsBlocked:   true,
	})
	s.Require().NoError(err)

	got, err := s.store.GetBilateral(s.ctx, "US", "CN")
	s.Require().NoError(err)
	s.Require().NotNil(got)

	s.Require().NoError(s.svc.DeleteBilateral(s.ctx, "US", "CN"))
	got, err = s.store.GetBilateral(s.ctx, "US", "CN")
	s.Require().NoError(err)
	s.Nil(got)
}
