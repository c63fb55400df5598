package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds compliance evaluation defaults. Business rules live in the
// services; this package only centralizes the tunable numbers.
type Config struct {
	// SystemMaxAmount is the absolute per-transfer ceiling enforced before any
	// per-subject limit is consulted.
	SystemMaxAmount decimal.Decimal

	// Defaults seed the token-wide default restriction row when a token has no
	// explicit default configured.
	DefaultMaxTransferAmount  decimal.Decimal
	DefaultDailyVolumeLimit   decimal.Decimal
	DefaultMonthlyVolumeLimit decimal.Decimal
	DefaultDailyCountLimit    int
	DefaultMonthlyCountLimit  int
	DefaultTransferLock       time.Duration
}

// DefaultConfig returns production defaults. Tests construct their own Config
// when they need tighter numbers.
func DefaultConfig() *Config {
	return &Config{
		SystemMaxAmount:           decimal.New(1, 12), // 10^12
		DefaultMaxTransferAmount:  decimal.New(1, 6),
		DefaultDailyVolumeLimit:   decimal.New(5, 6),
		DefaultMonthlyVolumeLimit: decimal.New(5, 7),
		DefaultDailyCountLimit:    100,
		DefaultMonthlyCountLimit:  1000,
		DefaultTransferLock:       0,
	}
}
