package models

import (
	"github.com/shopspring/decimal"

	dErrors "tokengate/pkg/domain-errors"
)

// Per-module config blob shapes. The catalog owns parsing and validation;
// evaluators receive the already-typed struct for their module.

// TradingHoursConfig is a permitted trading window. Times are seconds since
// midnight UTC; the window is [StartSec, EndSec] inclusive and must not wrap
// past midnight. DayMask bit N corresponds to day N of the epoch-relative
// week (Unix day number mod 7).
type TradingHoursConfig struct {
	StartSec int   `json:"start_sec"`
	EndSec   int   `json:"end_sec"`
	DayMask  uint8 `json:"day_mask"`
}

const secondsPerDay = 86400

// Validate enforces window invariants at configuration time so evaluation
// never sees an inexpressible window.
func (c TradingHoursConfig) Validate() error {
	if c.StartSec < 0 || c.EndSec >= secondsPerDay {
		return dErrors.New(dErrors.CodeValidation, "trading window must fall within a single UTC day")
	}
	if c.StartSec >= c.EndSec {
		return dErrors.New(dErrors.CodeValidation, "trading window start must be before end (overnight windows are not supported)")
	}
	if c.DayMask == 0 || c.DayMask > 0x7F {
		return dErrors.New(dErrors.CodeValidation, "day mask must set at least one of the seven day bits")
	}
	return nil
}

// TransferLimitsConfig configures the transfer-limits module. Limits
// themselves live in the rule-state store; the blob only toggles
// trading-hours enforcement for this scope.
type TransferLimitsConfig struct {
	TradingHours *TradingHoursConfig `json:"trading_hours,omitempty"`
}

// Validate checks the optional embedded trading window.
func (c TransferLimitsConfig) Validate() error {
	if c.TradingHours != nil {
		return c.TradingHours.Validate()
	}
	return nil
}

// CountryConfig configures the country-restrictions module. When Enforced is
// false the module passes immediately without consulting the tables.
type CountryConfig struct {
	Enforced bool `json:"enforced"`
}

// Validate is trivially nil; present for catalog uniformity.
func (c CountryConfig) Validate() error { return nil }

// InvestorTypeConfig configures investor gating. AllowedTypes empty means any
// investor type passes; MinKYCLevel zero means no KYC floor.
type InvestorTypeConfig struct {
	AllowedTypes []uint8 `json:"allowed_types,omitempty"`
	MinKYCLevel  uint8   `json:"min_kyc_level,omitempty"`
}

// Validate is trivially nil; present for catalog uniformity.
func (c InvestorTypeConfig) Validate() error { return nil }

// AddressListConfig configures the whitelist/blacklist module. Blacklist
// membership always rejects; RequireWhitelist additionally demands explicit
// whitelist membership for both counterparties.
type AddressListConfig struct {
	RequireWhitelist bool `json:"require_whitelist"`
}

// Validate is trivially nil; present for catalog uniformity.
func (c AddressListConfig) Validate() error { return nil }

// BalanceConfig configures the post-transfer balance ceiling module.
type BalanceConfig struct {
	MaxBalance decimal.Decimal `json:"max_balance"`
}

// Validate rejects non-positive ceilings; a module with no ceiling should be
// disabled instead.
func (c BalanceConfig) Validate() error {
	if !c.MaxBalance.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "max balance must be positive")
	}
	return nil
}
