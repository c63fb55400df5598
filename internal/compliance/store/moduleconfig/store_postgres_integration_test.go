//go:build integration

package moduleconfig_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/store/moduleconfig"
	"tokengate/pkg/testutil/containers"
)

type PostgresModuleConfigSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *moduleconfig.PostgresStore
}

func TestPostgresModuleConfigSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresModuleConfigSuite))
}

func (s *PostgresModuleConfigSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = moduleconfig.NewPostgres(s.postgres.DB)
}

func (s *PostgresModuleConfigSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "compliance_modules")
	s.Require().NoError(err)
}

func (s *PostgresModuleConfigSuite) TestPutAndGetRoundTrip() {
	ctx := context.Background()

	cfg, err := models.NewComplianceModuleConfig("SEC-A", models.ModuleTransferLimits, 10,
		json.RawMessage(`{"trading_hours":null}`))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Put(ctx, cfg))

	got, err := s.store.Get(ctx, "SEC-A", models.ModuleTransferLimits)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(cfg.Token, got.Token)
	s.Equal(cfg.Type, got.Type)
	s.Equal(cfg.Priority, got.Priority)
	s.Equal(cfg.Version, got.Version)
	s.True(got.Enabled)
	s.JSONEq(string(cfg.Config), string(got.Config))
}

func (s *PostgresModuleConfigSuite) TestGetMissingReturnsNil() {
	ctx := context.Background()

	got, err := s.store.Get(ctx, "SEC-A", models.ModuleCountryRestrictions)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *PostgresModuleConfigSuite) TestPutReplacesAndBumpsVersion() {
	ctx := context.Background()

	cfg, err := models.NewComplianceModuleConfig("SEC-A", models.ModuleCountryRestrictions, 5,
		json.RawMessage(`{"enforced":true}`))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Put(ctx, cfg))

	cfg.Config = json.RawMessage(`{"enforced":false}`)
	cfg.Version++
	s.Require().NoError(s.store.Put(ctx, cfg))

	got, err := s.store.Get(ctx, "SEC-A", models.ModuleCountryRestrictions)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(int64(2), got.Version)
	s.JSONEq(`{"enforced":false}`, string(got.Config))
}

func (s *PostgresModuleConfigSuite) TestListByTokenInsertionOrder() {
	ctx := context.Background()

	types := []models.ModuleType{
		models.ModuleTradingHours,
		models.ModuleTransferLimits,
		models.ModuleCountryRestrictions,
	}
	for i, moduleType := range types {
		cfg, err := models.NewComplianceModuleConfig("SEC-A", moduleType, i, nil)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Put(ctx, cfg))
	}

	other, err := models.NewComplianceModuleConfig("SEC-B", models.ModuleBalanceLimits, 0, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Put(ctx, other))

	configs, err := s.store.ListByToken(ctx, "SEC-A")
	s.Require().NoError(err)
	s.Require().Len(configs, 3)
	for i, moduleType := range types {
		s.Equal(moduleType, configs[i].Type)
	}
}

func (s *PostgresModuleConfigSuite) TestDeleteRemovesRow() {
	ctx := context.Background()

	cfg, err := models.NewComplianceModuleConfig("SEC-A", models.ModuleAddressList, 0, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Put(ctx, cfg))
	s.Require().NoError(s.store.Delete(ctx, "SEC-A", models.ModuleAddressList))

	got, err := s.store.Get(ctx, "SEC-A", models.ModuleAddressList)
	s.Require().NoError(err)
	s.Nil(got)
}
