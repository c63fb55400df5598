package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"tokengate/internal/compliance/models"
	dErrors "tokengate/pkg/domain-errors"
)

type CatalogSuite struct {
	suite.Suite
	catalog *Catalog
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) SetupTest() {
	s.catalog = New()
}

func (s *CatalogSuite) TestListCoversEveryModuleType() {
	specs := s.catalog.List()
	s.Require().Len(specs, 6)
	for _, spec := range specs {
		s.True(spec.Type.IsValid())
		s.NotEmpty(spec.Description)
		s.NoError(s.catalog.ValidateConfig(spec.Type, spec.DefaultConfig), "default config for %s must validate", spec.Type)
	}
}

func (s *CatalogSuite) TestDescribeUnknownType() {
	_, err := s.catalog.Describe(models.ModuleType("bogus"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CatalogSuite) TestValidateConfig() {
	s.Run("empty blob falls back to defaults", func() {
		s.NoError(s.catalog.ValidateConfig(models.ModuleTradingHours, nil))
	})

	s.Run("rejects unknown fields", func() {
		err := s.catalog.ValidateConfig(models.ModuleCountryRestrictions, json.RawMessage(`{"enforcd":true}`))
		s.Require().Error(err)
	})

	s.Run("rejects overnight trading window", func() {
		err := s.catalog.ValidateConfig(models.ModuleTradingHours, json.RawMessage(`{"start_sec":79200,"end_sec":3600,"day_mask":127}`))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects non-positive balance ceiling", func() {
		err := s.catalog.ValidateConfig(models.ModuleBalanceLimits, json.RawMessage(`{"max_balance":"0"}`))
		s.Require().Error(err)
	})

	s.Run("unknown module type", func() {
		err := s.catalog.ValidateConfig(models.ModuleType("bogus"), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
