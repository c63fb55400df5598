package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tokengate/internal/compliance/config"
	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/service/countryrule"
	"tokengate/internal/compliance/service/transferrule"
	"tokengate/internal/compliance/store/addresslist"
	"tokengate/internal/compliance/store/balance"
	"tokengate/internal/compliance/store/country"
	"tokengate/internal/compliance/store/identity"
	"tokengate/internal/compliance/store/moduleconfig"
	"tokengate/internal/compliance/store/rulestate"
	id "tokengate/pkg/domain"
	"tokengate/pkg/platform/audit"
	auditmemory "tokengate/pkg/platform/audit/store/memory"
)

const (
	testToken id.TokenID = "tkn-acme"
	alice     id.Address = "alice"
	bob       id.Address = "bob"
)

type EngineSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	modules   *moduleconfig.InMemoryStore
	rules     *rulestate.InMemoryStore
	countries *country.InMemoryStore
	identity  *identity.InMemoryStore
	addresses *addresslist.InMemoryStore
	balances  *balance.InMemoryStore
	audits    *auditmemory.Store
	engine    *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	s.modules = moduleconfig.NewInMemoryStore()
	s.rules = rulestate.NewInMemoryStore()
	s.countries = country.NewInMemoryStore()
	s.identity = identity.NewInMemoryStore()
	s.addresses = addresslist.NewInMemoryStore()
	s.balances = balance.NewInMemoryStore()
	s.audits = auditmemory.New()

	transferSvc, err := transferrule.New(s.rules, config.DefaultConfig())
	s.Require().NoError(err)
	countrySvc, err := countryrule.New(s.countries)
	s.Require().NoError(err)

	eng, err := New(s.modules, transferSvc, countrySvc, s.identity, s.addresses, s.balances,
		WithAuditPublisher(s.audits))
	s.Require().NoError(err)
	s.engine = eng

	s.identity.Set(alice, identity.Attributes{Country: "US", KYCLevel: 2, InvestorType: 1})
	s.identity.Set(bob, identity.Attributes{Country: "DE", KYCLevel: 2, InvestorType: 1})
}

func (s *EngineSuite) enableModule(moduleType models.ModuleType, priority int, cfg string) {
	mc, err := models.NewComplianceModuleConfig(testToken, moduleType, priority, json.RawMessage(cfg))
	s.Require().NoError(err)
	s.Require().NoError(s.modules.Put(s.ctx, mc))
}

func (s *EngineSuite) check(amount int64) models.TransferCheck {
	return models.TransferCheck{
		Token:  testToken,
		From:   alice,
		To:     bob,
		Amount: decimal.NewFromInt(amount),
		Now:    s.now,
	}
}

func (s *EngineSuite) evaluate(amount int64) *models.ComprehensiveResult {
	result, err := s.engine.EvaluateTransfer(s.ctx, s.check(amount))
	s.Require().NoError(err)
	return result
}

// ============================================================
// Module ordering
// ============================================================

func (s *EngineSuite) TestNoModulesEnabledPasses() {
	result := s.evaluate(100)
	s.True(result.Passed)
	s.Empty(result.ModuleResults)
	s.NotEmpty(result.EvaluationID)
	s.Equal(s.now, result.EvaluatedAt)
}

func (s *EngineSuite) TestModulesRunInDescendingPriority() {
	s.enableModule(models.ModuleAddressList, 10, `{}`)
	s.enableModule(models.ModuleTransferLimits, 90, `{}`)
	s.enableModule(models.ModuleCountryRestrictions, 50, `{"enforced":true}`)

	result := s.evaluate(100)
	s.True(result.Passed)
	s.Require().Len(result.ModuleResults, 3)
	s.Equal(models.ModuleTransferLimits, result.ModuleResults[0].Module)
	s.Equal(models.ModuleCountryRestrictions, result.ModuleResults[1].Module)
	s.Equal(models.ModuleAddressList, result.ModuleResults[2].Module)
}

func (s *EngineSuite) TestEqualPrioritiesKeepInsertionOrder() {
	s.enableModule(models.ModuleCountryRestrictions, 50, `{"enforced":true}`)
	s.enableModule(models.ModuleAddressList, 50, `{}`)
	s.enableModule(models.ModuleTransferLimits, 50, `{}`)

	result := s.evaluate(100)
	s.Require().Len(result.ModuleResults, 3)
	s.Equal(models.ModuleCountryRestrictions, result.ModuleResults[0].Module)
	s.Equal(models.ModuleAddressList, result.ModuleResults[1].Module)
	s.Equal(models.ModuleTransferLimits, result.ModuleResults[2].Module)
}

func (s *EngineSuite) TestDisabledModulesAreSkipped() {
	s.enableModule(models.ModuleTransferLimits, 90, `{}`)
	mc, err := models.NewComplianceModuleConfig(testToken, models.ModuleAddressList, 99, json.RawMessage(`{}`))
	s.Require().NoError(err)
	mc.Enabled = false
	s.Require().NoError(s.modules.Put(s.ctx, mc))

	result := s.evaluate(100)
	s.Require().Len(result.ModuleResults, 1)
	s.Equal(models.ModuleTransferLimits, result.ModuleResults[0].Module)
}

// ============================================================
// Short-circuit
// ============================================================

func (s *EngineSuite) TestFirstFailureShortCircuits() {
	s.addresses.AddToBlacklist(s.ctx, testToken, bob)
	s.enableModule(models.ModuleAddressList, 90, `{}`)
	s.enableModule(models.ModuleTransferLimits, 10, `{}`)

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.ModuleAddressList, result.FailingModule)
	s.Equal(models.KindBlacklisted, result.ErrorKind)
	// The lower-priority module never ran.
	s.Require().Len(result.ModuleResults, 1)
}

func (s *EngineSuite) TestUnknownModuleTypeFailsClosed() {
	mc := &models.ComplianceModuleConfig{
		Token:    testToken,
		Type:     models.ModuleType("sanctions_screening"),
		Enabled:  true,
		Priority: 99,
		Config:   json.RawMessage(`{}`),
		Version:  1,
	}
	s.Require().NoError(s.modules.Put(s.ctx, mc))
	s.enableModule(models.ModuleTransferLimits, 10, `{}`)

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindUnknownModule, result.ErrorKind)
	s.Len(result.ModuleResults, 1)
}

func (s *EngineSuite) TestRejectionEmitsAuditEvent() {
	s.addresses.AddToBlacklist(s.ctx, testToken, alice)
	s.enableModule(models.ModuleAddressList, 90, `{}`)

	s.evaluate(100)

	events := s.audits.ByAction(string(audit.EventTransferRejected))
	s.Require().Len(events, 1)
	s.Equal(string(models.KindBlacklisted), events[0].Decision)
}

// ============================================================
// Supplementary modules
// ============================================================

func (s *EngineSuite) TestTradingHoursModule() {
	s.enableModule(models.ModuleTradingHours, 90, `{"start_sec":32400,"end_sec":61200,"day_mask":127}`)

	s.True(s.evaluate(100).Passed)

	night := s.check(100)
	night.Now = time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	result, err := s.engine.EvaluateTransfer(s.ctx, night)
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Equal(models.KindOutsideTradingHours, result.ErrorKind)
}

func (s *EngineSuite) TestInvestorTypeModule() {
	s.enableModule(models.ModuleInvestorType, 90, `{"allowed_types":[2,3],"min_kyc_level":2}`)

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindInvestorTypeNotAllowed, result.ErrorKind)

	s.identity.Set(bob, identity.Attributes{Country: "DE", KYCLevel: 1, InvestorType: 2})
	result = s.evaluate(100)
	s.Equal(models.KindKYCLevelTooLow, result.ErrorKind)

	s.identity.Set(bob, identity.Attributes{Country: "DE", KYCLevel: 3, InvestorType: 2})
	s.True(s.evaluate(100).Passed)
}

func (s *EngineSuite) TestInvestorTypeModuleRequiresIdentity() {
	s.enableModule(models.ModuleInvestorType, 90, `{}`)
	s.identity.Remove(bob)

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindMissingIdentity, result.ErrorKind)
}

func (s *EngineSuite) TestCountryModuleResolvesPartiesToCountries() {
	rule, err := models.NewCountryRestriction("DE", true, false, decimal.Zero, "sanctions")
	s.Require().NoError(err)
	s.Require().NoError(s.countries.UpsertCountry(s.ctx, rule))
	s.enableModule(models.ModuleCountryRestrictions, 90, `{"enforced":true}`)

	// The engine resolves bob to DE; the country evaluator only sees codes.
	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindDestCountryBlocked, result.ErrorKind)
}

func (s *EngineSuite) TestCountryModuleRequiresResolvableCountry() {
	s.enableModule(models.ModuleCountryRestrictions, 90, `{"enforced":true}`)
	s.identity.Remove(bob)

	result := s.evaluate(100)
	s.False(result.Passed)
	s.Equal(models.KindMissingIdentity, result.ErrorKind)
}

func (s *EngineSuite) TestAddressListWhitelistMode() {
	s.enableModule(models.ModuleAddressList, 90, `{"require_whitelist":true}`)

	result := s.evaluate(100)
	s.Equal(models.KindNotWhitelisted, result.ErrorKind)

	s.addresses.AddToWhitelist(s.ctx, testToken, alice)
	s.addresses.AddToWhitelist(s.ctx, testToken, bob)
	s.True(s.evaluate(100).Passed)
}

func (s *EngineSuite) TestBalanceLimitsModule() {
	s.enableModule(models.ModuleBalanceLimits, 90, `{"max_balance":"1000"}`)
	s.balances.Set(testToken, bob, decimal.NewFromInt(950))

	result := s.evaluate(51)
	s.False(result.Passed)
	s.Equal(models.KindExceedsBalanceLimit, result.ErrorKind)
	s.Require().NotNil(result.Observed)
	s.True(result.Observed.Equal(decimal.NewFromInt(1001)))

	s.True(s.evaluate(50).Passed)
}

// ============================================================
// Evaluate vs Execute
// ============================================================

func (s *EngineSuite) TestEvaluateIsIdempotent() {
	s.enableModule(models.ModuleTransferLimits, 90, `{}`)

	first := s.evaluate(100)
	second := s.evaluate(100)
	s.True(first.Passed)
	s.True(second.Passed)

	// No counters moved: the per-subject row was never created.
	row, err := s.rules.Get(s.ctx, testToken, alice)
	s.Require().NoError(err)
	s.Nil(row)
}

func (s *EngineSuite) TestExecuteTransferRecordsOnPass() {
	s.enableModule(models.ModuleTransferLimits, 90, `{}`)

	result, err := s.engine.ExecuteTransfer(s.ctx, s.check(100))
	s.Require().NoError(err)
	s.True(result.Passed)

	row, err := s.rules.Get(s.ctx, testToken, alice)
	s.Require().NoError(err)
	s.Require().NotNil(row)
	s.True(row.DailyVolumeUsed.Equal(decimal.NewFromInt(100)))
	s.Equal(1, row.DailyCountUsed)
}

func (s *EngineSuite) TestExecuteTransferSkipsRecordOnRejection() {
	s.addresses.AddToBlacklist(s.ctx, testToken, bob)
	s.enableModule(models.ModuleAddressList, 90, `{}`)
	s.enableModule(models.ModuleTransferLimits, 10, `{}`)

	result, err := s.engine.ExecuteTransfer(s.ctx, s.check(100))
	s.Require().NoError(err)
	s.False(result.Passed)

	row, err := s.rules.Get(s.ctx, testToken, alice)
	s.Require().NoError(err)
	s.Nil(row)
}
