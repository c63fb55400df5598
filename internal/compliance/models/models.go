package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "tokengate/pkg/domain"
	dErrors "tokengate/pkg/domain-errors"
)

// ModuleType identifies a pluggable compliance rule category that can be
// enabled per token with a priority and an opaque config blob.
type ModuleType string

const (
	ModuleTransferLimits      ModuleType = "transfer_limits"
	ModuleCountryRestrictions ModuleType = "country_restrictions"
	ModuleTradingHours        ModuleType = "trading_hours"
	ModuleInvestorType        ModuleType = "investor_type"
	ModuleAddressList         ModuleType = "address_list"
	ModuleBalanceLimits       ModuleType = "balance_limits"
)

// IsValid checks if the module type is one of the supported enum values.
func (m ModuleType) IsValid() bool {
	switch m {
	case ModuleTransferLimits, ModuleCountryRestrictions, ModuleTradingHours,
		ModuleInvestorType, ModuleAddressList, ModuleBalanceLimits:
		return true
	}
	return false
}

// String returns the string representation.
func (m ModuleType) String() string { return string(m) }

// ParseModuleType creates a ModuleType from a string, validating it.
func ParseModuleType(s string) (ModuleType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "module type cannot be empty")
	}
	m := ModuleType(s)
	if !m.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown module type: %s", s)
	}
	return m, nil
}

// ErrorKind names the rule a rejected transfer violated. Kinds are stable
// identifiers for audit trails; messages carry the human-readable detail.
type ErrorKind string

const (
	KindInvalidAmount          ErrorKind = "invalid_amount"
	KindOutsideTradingHours    ErrorKind = "outside_trading_hours"
	KindTransferLocked         ErrorKind = "transfer_locked"
	KindExceedsMaxAmount       ErrorKind = "exceeds_max_amount"
	KindDailyVolumeExceeded    ErrorKind = "daily_volume_exceeded"
	KindMonthlyVolumeExceeded  ErrorKind = "monthly_volume_exceeded"
	KindDailyCountExceeded     ErrorKind = "daily_count_exceeded"
	KindMonthlyCountExceeded   ErrorKind = "monthly_count_exceeded"
	KindSourceCountryBlocked   ErrorKind = "source_country_blocked"
	KindDestCountryBlocked     ErrorKind = "dest_country_blocked"
	KindBilateralBlocked       ErrorKind = "bilateral_blocked"
	KindExceedsBilateralLimit  ErrorKind = "exceeds_bilateral_limit"
	KindExceedsCountryLimit    ErrorKind = "exceeds_country_limit"
	KindUnknownModule          ErrorKind = "unknown_module"
	KindMissingIdentity        ErrorKind = "missing_identity"
	KindKYCLevelTooLow         ErrorKind = "kyc_level_too_low"
	KindInvestorTypeNotAllowed ErrorKind = "investor_type_not_allowed"
	KindNotWhitelisted         ErrorKind = "not_whitelisted"
	KindBlacklisted            ErrorKind = "blacklisted"
	KindExceedsBalanceLimit    ErrorKind = "exceeds_balance_limit"
)

// ModuleResult is one module's verdict for a proposed transfer. Limit and
// Observed carry the violated threshold and the value that breached it so
// rejections remain auditable.
type ModuleResult struct {
	Module   ModuleType       `json:"module"`
	Passed   bool             `json:"passed"`
	Kind     ErrorKind        `json:"error_kind,omitempty"`
	Message  string           `json:"error_message,omitempty"`
	Limit    *decimal.Decimal `json:"limit,omitempty"`
	Observed *decimal.Decimal `json:"observed,omitempty"`
}

// Pass builds a passing verdict for a module.
func Pass(module ModuleType) ModuleResult {
	return ModuleResult{Module: module, Passed: true}
}

// Fail builds a failing verdict for a module.
func Fail(module ModuleType, kind ErrorKind, message string) ModuleResult {
	return ModuleResult{Module: module, Passed: false, Kind: kind, Message: message}
}

// WithLimits attaches the violated threshold and observed value.
func (r ModuleResult) WithLimits(limit, observed decimal.Decimal) ModuleResult {
	r.Limit = &limit
	r.Observed = &observed
	return r
}

// ComprehensiveResult is the aggregate verdict for one proposed transfer.
// It is constructed fresh per evaluation call and never mutated afterwards.
type ComprehensiveResult struct {
	EvaluationID  string         `json:"evaluation_id"`
	Token         id.TokenID     `json:"token"`
	Passed        bool           `json:"passed"`
	FailingModule ModuleType     `json:"failing_module,omitempty"`
	ErrorKind     ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	ModuleResults []ModuleResult `json:"module_results"`
	EvaluatedAt   time.Time      `json:"evaluated_at"`
}

// NewComprehensiveResult seeds a passing result; the evaluator flips it on the
// first module failure.
func NewComprehensiveResult(token id.TokenID, now time.Time) *ComprehensiveResult {
	return &ComprehensiveResult{
		EvaluationID:  uuid.NewString(),
		Token:         token,
		Passed:        true,
		ModuleResults: []ModuleResult{},
		EvaluatedAt:   now,
	}
}

// CheckType selects which evaluation a caller is requesting.
type CheckType string

const (
	// CheckTransfer evaluates a proposed transfer between two subjects.
	CheckTransfer CheckType = "transfer"
)

// IsValid checks if the check type is supported.
func (c CheckType) IsValid() bool { return c == CheckTransfer }

// TransferCheck is the payload for a transfer evaluation. Now is supplied by
// the caller so dry runs and replays stay deterministic.
type TransferCheck struct {
	Token  id.TokenID
	From   id.Address
	To     id.Address
	Amount decimal.Decimal
	Now    time.Time
}

// Validate enforces payload invariants before evaluation dispatch.
func (c TransferCheck) Validate() error {
	if c.Token.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "token is required")
	}
	if c.From.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "from address is required")
	}
	if c.To.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "to address is required")
	}
	if c.Now.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "evaluation time is required")
	}
	return nil
}

// ComplianceModuleConfig is one enabled module for a token. Version increments
// on every config update; skipping the bump is an invariant violation.
type ComplianceModuleConfig struct {
	Token     id.TokenID      `json:"token"`
	Type      ModuleType      `json:"type"`
	Enabled   bool            `json:"enabled"`
	Priority  int             `json:"priority"`
	Config    json.RawMessage `json:"config"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewComplianceModuleConfig creates a module config with invariant validation.
func NewComplianceModuleConfig(token id.TokenID, moduleType ModuleType, priority int, config json.RawMessage) (*ComplianceModuleConfig, error) {
	if token.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token cannot be empty")
	}
	if !moduleType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid module type")
	}
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}
	return &ComplianceModuleConfig{
		Token:     token,
		Type:      moduleType,
		Enabled:   true,
		Priority:  priority,
		Config:    config,
		Version:   1,
		UpdatedAt: time.Now(),
	}, nil
}

// Rolling window lengths. Resets are lazy: applied the next time a record is
// touched after the window elapsed, never on a background timer.
const (
	DailyWindow   = 24 * time.Hour
	MonthlyWindow = 30 * 24 * time.Hour
)

// TransferRestrictions holds the static limits and mutable rolling state for
// one (token, subject) pair. A row with an empty Subject is the global default
// used when no per-subject row exists.
type TransferRestrictions struct {
	Token   id.TokenID `json:"token"`
	Subject id.Address `json:"subject"`

	MaxTransferAmount    decimal.Decimal `json:"max_transfer_amount"`
	DailyVolumeLimit     decimal.Decimal `json:"daily_volume_limit"`
	MonthlyVolumeLimit   decimal.Decimal `json:"monthly_volume_limit"`
	DailyCountLimit      int             `json:"daily_count_limit"`
	MonthlyCountLimit    int             `json:"monthly_count_limit"`
	TransferLockDuration time.Duration   `json:"transfer_lock_duration"`

	LastTransferTime  time.Time       `json:"last_transfer_time"`
	DailyVolumeUsed   decimal.Decimal `json:"daily_volume_used"`
	MonthlyVolumeUsed decimal.Decimal `json:"monthly_volume_used"`
	DailyCountUsed    int             `json:"daily_count_used"`
	MonthlyCountUsed  int             `json:"monthly_count_used"`
	LastDailyReset    time.Time       `json:"last_daily_reset"`
	LastMonthlyReset  time.Time       `json:"last_monthly_reset"`
}

// NewTransferRestrictions creates a restriction row with invariant validation.
// Pass an empty subject for the global default row.
func NewTransferRestrictions(token id.TokenID, subject id.Address, maxAmount, dailyVolume, monthlyVolume decimal.Decimal, dailyCount, monthlyCount int, lock time.Duration, now time.Time) (*TransferRestrictions, error) {
	if token.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token cannot be empty")
	}
	if maxAmount.IsNegative() || dailyVolume.IsNegative() || monthlyVolume.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "limits cannot be negative")
	}
	if dailyCount < 0 || monthlyCount < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "count limits cannot be negative")
	}
	if lock < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transfer lock duration cannot be negative")
	}
	return &TransferRestrictions{
		Token:                token,
		Subject:              subject,
		MaxTransferAmount:    maxAmount,
		DailyVolumeLimit:     dailyVolume,
		MonthlyVolumeLimit:   monthlyVolume,
		DailyCountLimit:      dailyCount,
		MonthlyCountLimit:    monthlyCount,
		TransferLockDuration: lock,
		DailyVolumeUsed:      decimal.Zero,
		MonthlyVolumeUsed:    decimal.Zero,
		LastDailyReset:       now,
		LastMonthlyReset:     now,
	}, nil
}

// IsGlobalDefault reports whether this row is the token-wide default.
func (r *TransferRestrictions) IsGlobalDefault() bool { return r.Subject.IsNil() }

// Clone returns a deep copy. Evaluation works on copies so dry runs never
// mutate stored counters.
func (r *TransferRestrictions) Clone() *TransferRestrictions {
	cp := *r
	return &cp
}

// DailyWindowElapsed reports whether the daily window has passed since the
// last daily reset.
func (r *TransferRestrictions) DailyWindowElapsed(now time.Time) bool {
	return now.Sub(r.LastDailyReset) >= DailyWindow
}

// MonthlyWindowElapsed reports whether the monthly window has passed since the
// last monthly reset.
func (r *TransferRestrictions) MonthlyWindowElapsed(now time.Time) bool {
	return now.Sub(r.LastMonthlyReset) >= MonthlyWindow
}

// ApplyLazyResets zeroes elapsed windows on the receiver. Evaluate calls this
// on a copy; Record calls it on the stored row before incrementing.
func (r *TransferRestrictions) ApplyLazyResets(now time.Time) {
	if r.DailyWindowElapsed(now) {
		r.DailyVolumeUsed = decimal.Zero
		r.DailyCountUsed = 0
		r.LastDailyReset = now
	}
	if r.MonthlyWindowElapsed(now) {
		r.MonthlyVolumeUsed = decimal.Zero
		r.MonthlyCountUsed = 0
		r.LastMonthlyReset = now
	}
}

// CountryRestriction is a unilateral per-country rule keyed by ISO-3166
// alpha-2 code. Blocked and whitelisted are advisory, not mutually exclusive;
// both may be false. A zero MaxTransferAmount means no per-transfer cap.
type CountryRestriction struct {
	Country           id.CountryCode  `json:"country"`
	IsBlocked         bool            `json:"is_blocked"`
	IsWhitelisted     bool            `json:"is_whitelisted"`
	MaxTransferAmount decimal.Decimal `json:"max_transfer_amount"`
	DailyLimit        decimal.Decimal `json:"daily_limit"`
	MonthlyLimit      decimal.Decimal `json:"monthly_limit"`
	RequiresApproval  bool            `json:"requires_approval"`
	Reason            string          `json:"reason,omitempty"`
}

// NewCountryRestriction creates a country rule with invariant validation.
// A blocked country must carry a reason for the audit trail.
func NewCountryRestriction(country id.CountryCode, blocked, whitelisted bool, maxAmount decimal.Decimal, reason string) (*CountryRestriction, error) {
	if country.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "country cannot be empty")
	}
	if blocked && reason == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "blocked country requires a reason")
	}
	if maxAmount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "max transfer amount cannot be negative")
	}
	return &CountryRestriction{
		Country:           country,
		IsBlocked:         blocked,
		IsWhitelisted:     whitelisted,
		MaxTransferAmount: maxAmount,
		Reason:            reason,
	}, nil
}

// HasMaxTransferAmount reports whether this rule caps single transfers.
func (c *CountryRestriction) HasMaxTransferAmount() bool {
	return c.MaxTransferAmount.IsPositive()
}

// BilateralRestriction is keyed by an ordered (source, destination) pair and
// is consulted in addition to, never instead of, the unilateral rules.
type BilateralRestriction struct {
	Source            id.CountryCode  `json:"source"`
	Destination       id.CountryCode  `json:"destination"`
	IsBlocked         bool            `json:"is_blocked"`
	MaxTransferAmount decimal.Decimal `json:"max_transfer_amount"`
	RequiresApproval  bool            `json:"requires_approval"`
}

// NewBilateralRestriction creates a bilateral rule with invariant validation.
func NewBilateralRestriction(source, destination id.CountryCode, blocked bool, maxAmount decimal.Decimal) (*BilateralRestriction, error) {
	if source.IsNil() || destination.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "source and destination cannot be empty")
	}
	if maxAmount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "max transfer amount cannot be negative")
	}
	return &BilateralRestriction{
		Source:            source,
		Destination:       destination,
		IsBlocked:         blocked,
		MaxTransferAmount: maxAmount,
	}, nil
}

// HasMaxTransferAmount reports whether this pair caps single transfers.
func (b *BilateralRestriction) HasMaxTransferAmount() bool {
	return b.MaxTransferAmount.IsPositive()
}
