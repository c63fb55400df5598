// Package catalog describes the supported compliance module types and owns
// parsing and validation of their config blobs. The registry consults it
// before persisting any module config.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tokengate/internal/compliance/models"
	dErrors "tokengate/pkg/domain-errors"
)

// ModuleSpec describes one supported module type.
type ModuleSpec struct {
	Type        models.ModuleType `json:"type"`
	Description string            `json:"description"`
	// DefaultConfig is the blob applied when an enable request omits one.
	DefaultConfig json.RawMessage `json:"default_config"`

	validate func(json.RawMessage) error
}

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed module config")
	}
	return nil
}

func specs() []ModuleSpec {
	return []ModuleSpec{
		{
			Type:          models.ModuleTransferLimits,
			Description:   "Per-subject transfer caps, rolling volume/count windows, and post-transfer locks",
			DefaultConfig: json.RawMessage(`{}`),
			validate: func(raw json.RawMessage) error {
				var cfg models.TransferLimitsConfig
				if err := decodeStrict(raw, &cfg); err != nil {
					return err
				}
				return cfg.Validate()
			},
		},
		{
			Type:          models.ModuleCountryRestrictions,
			Description:   "Unilateral country rules and bilateral corridor rules",
			DefaultConfig: json.RawMessage(`{"enforced":true}`),
			validate: func(raw json.RawMessage) error {
				var cfg models.CountryConfig
				if err := decodeStrict(raw, &cfg); err != nil {
					return err
				}
				return cfg.Validate()
			},
		},
		{
			Type:          models.ModuleTradingHours,
			Description:   "Permitted trading window in seconds since midnight UTC with an epoch-relative day mask",
			DefaultConfig: json.RawMessage(`{"start_sec":0,"end_sec":86399,"day_mask":127}`),
			validate: func(raw json.RawMessage) error {
				var cfg models.TradingHoursConfig
				if err := decodeStrict(raw, &cfg); err != nil {
					return err
				}
				return cfg.Validate()
			},
		},
		{
			Type:          models.ModuleInvestorType,
			Description:   "Investor classification and KYC level gating",
			DefaultConfig: json.RawMessage(`{}`),
			validate: func(raw json.RawMessage) error {
				var cfg models.InvestorTypeConfig
				if err := decodeStrict(raw, &cfg); err != nil {
					return err
				}
				return cfg.Validate()
			},
		},
		{
			Type:          models.ModuleAddressList,
			Description:   "Per-token whitelist and blacklist membership checks",
			DefaultConfig: json.RawMessage(`{"require_whitelist":false}`),
			validate: func(raw json.RawMessage) error {
				var cfg models.AddressListConfig
				if err := decodeStrict(raw, &cfg); err != nil {
					return err
				}
				return cfg.Validate()
			},
		},
		{
			Type:          models.ModuleBalanceLimits,
			Description:   "Post-transfer recipient balance ceiling",
			DefaultConfig: json.RawMessage(`{"max_balance":"1000000"}`),
			validate: func(raw json.RawMessage) error {
				var cfg models.BalanceConfig
				if err := decodeStrict(raw, &cfg); err != nil {
					return err
				}
				return cfg.Validate()
			},
		},
	}
}

// Catalog is the immutable type table. Construct once at startup.
type Catalog struct {
	byType map[models.ModuleType]ModuleSpec
	order  []models.ModuleType
}

func New() *Catalog {
	c := &Catalog{byType: make(map[models.ModuleType]ModuleSpec)}
	for _, spec := range specs() {
		c.byType[spec.Type] = spec
		c.order = append(c.order, spec.Type)
	}
	return c
}

// Describe returns the spec for one module type.
func (c *Catalog) Describe(moduleType models.ModuleType) (ModuleSpec, error) {
	spec, ok := c.byType[moduleType]
	if !ok {
		return ModuleSpec{}, dErrors.Newf(dErrors.CodeNotFound, "unknown module type: %s", moduleType)
	}
	return spec, nil
}

// List returns all specs in declaration order.
func (c *Catalog) List() []ModuleSpec {
	out := make([]ModuleSpec, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.byType[t])
	}
	return out
}

// ValidateConfig checks a raw config blob against the module's schema. An
// empty blob is valid when the module's defaults are.
func (c *Catalog) ValidateConfig(moduleType models.ModuleType, raw json.RawMessage) error {
	spec, ok := c.byType[moduleType]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "unknown module type: %s", moduleType)
	}
	if len(raw) == 0 {
		raw = spec.DefaultConfig
	}
	if err := spec.validate(raw); err != nil {
		return fmt.Errorf("config for %s: %w", moduleType, err)
	}
	return nil
}
