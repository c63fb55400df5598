package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// EnableModuleRequest is the admin API payload for enabling a module.
type EnableModuleRequest struct {
	Type     string          `json:"type"`
	Priority int             `json:"priority"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// UpdateModuleConfigRequest is the admin API payload for a config update.
type UpdateModuleConfigRequest struct {
	Config json.RawMessage `json:"config"`
}

// UpsertRestrictionsRequest is the admin API payload for a (token, subject)
// restriction row. An empty subject targets the token-wide default row.
type UpsertRestrictionsRequest struct {
	Subject              string          `json:"subject,omitempty"`
	MaxTransferAmount    decimal.Decimal `json:"max_transfer_amount"`
	DailyVolumeLimit     decimal.Decimal `json:"daily_volume_limit"`
	MonthlyVolumeLimit   decimal.Decimal `json:"monthly_volume_limit"`
	DailyCountLimit      int             `json:"daily_count_limit"`
	MonthlyCountLimit    int             `json:"monthly_count_limit"`
	TransferLockSeconds  int             `json:"transfer_lock_seconds"`
}

// UpsertCountryRequest is the admin API payload for a unilateral country rule.
type UpsertCountryRequest struct {
	Country           string          `json:"country"`
	IsBlocked         bool            `json:"is_blocked"`
	IsWhitelisted     bool            `json:"is_whitelisted"`
	MaxTransferAmount decimal.Decimal `json:"max_transfer_amount"`
	DailyLimit        decimal.Decimal `json:"daily_limit"`
	MonthlyLimit      decimal.Decimal `json:"monthly_limit"`
	RequiresApproval  bool            `json:"requires_approval"`
	Reason            string          `json:"reason,omitempty"`
}

// UpsertBilateralRequest is the admin API payload for a (source, destination)
// pair rule.
type UpsertBilateralRequest struct {
	Source            string          `json:"source"`
	Destination       string          `json:"destination"`
	IsBlocked         bool            `json:"is_blocked"`
	MaxTransferAmount decimal.Decimal `json:"max_transfer_amount"`
	RequiresApproval  bool            `json:"requires_approval"`
}

// EvaluateTransferRequest is the payload for both dry-run evaluation and the
// evaluate-and-record transfer path.
type EvaluateTransferRequest struct {
	Token  string          `json:"token"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}
