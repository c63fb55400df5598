// Package ports defines shared interfaces for the compliance module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication.
package ports

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
	"tokengate/pkg/platform/audit"
)

// AuditPublisher emits audit events for compliance-relevant operations. Any
// audit.Store satisfies it.
type AuditPublisher interface {
	Append(ctx context.Context, event audit.Event) error
}

// RuleStateStore manages per-(token, subject) transfer restriction rows and
// the token-wide default row. Stores are pure I/O; all rolling-window
// arithmetic belongs to the transfer-rule service.
type RuleStateStore interface {
	// Get retrieves the restriction row for a subject. Returns nil when no
	// per-subject row exists.
	Get(ctx context.Context, token id.TokenID, subject id.Address) (*models.TransferRestrictions, error)

	// GetDefault retrieves the token-wide default row. Returns nil when the
	// token has no default configured.
	GetDefault(ctx context.Context, token id.TokenID) (*models.TransferRestrictions, error)

	// Upsert creates or replaces a restriction row.
	Upsert(ctx context.Context, row *models.TransferRestrictions) error

	// Delete removes a restriction row.
	Delete(ctx context.Context, token id.TokenID, subject id.Address) error

	// List returns all rows for a token, default row included, in insertion
	// order.
	List(ctx context.Context, token id.TokenID) ([]*models.TransferRestrictions, error)
}

// CountryStore manages unilateral country rules and bilateral pair rules.
type CountryStore interface {
	// GetCountry retrieves a unilateral rule. Returns nil when none exists.
	GetCountry(ctx context.Context, country id.CountryCode) (*models.CountryRestriction, error)

	// UpsertCountry creates or replaces a unilateral rule.
	UpsertCountry(ctx context.Context, rule *models.CountryRestriction) error

	// DeleteCountry removes a unilateral rule.
	DeleteCountry(ctx context.Context, country id.CountryCode) error

	// ListCountries returns all unilateral rules in insertion order.
	ListCountries(ctx context.Context) ([]*models.CountryRestriction, error)

	// GetBilateral retrieves the rule for an ordered (source, destination)
	// pair. Returns nil when none exists; the reverse pair is a distinct key.
	GetBilateral(ctx context.Context, source, destination id.CountryCode) (*models.BilateralRestriction, error)

	// UpsertBilateral creates or replaces a pair rule.
	UpsertBilateral(ctx context.Context, rule *models.BilateralRestriction) error

	// DeleteBilateral removes a pair rule.
	DeleteBilateral(ctx context.Context, source, destination id.CountryCode) error

	// ListBilateral returns all pair rules in insertion order.
	ListBilateral(ctx context.Context) ([]*models.BilateralRestriction, error)
}

// ModuleConfigStore manages per-(token, module-type) compliance module
// configuration with real ordered iteration.
type ModuleConfigStore interface {
	// Get retrieves one module config. Returns nil when the module is not
	// enabled for the token.
	Get(ctx context.Context, token id.TokenID, moduleType models.ModuleType) (*models.ComplianceModuleConfig, error)

	// Put creates or replaces a module config row.
	Put(ctx context.Context, cfg *models.ComplianceModuleConfig) error

	// Delete removes a module config row entirely (disable semantics: prior
	// config is discarded).
	Delete(ctx context.Context, token id.TokenID, moduleType models.ModuleType) error

	// ListByToken returns all module configs for a token in insertion order.
	ListByToken(ctx context.Context, token id.TokenID) ([]*models.ComplianceModuleConfig, error)
}

// AddressListStore manages per-token whitelist/blacklist membership.
type AddressListStore interface {
	IsWhitelisted(ctx context.Context, token id.TokenID, subject id.Address) (bool, error)
	IsBlacklisted(ctx context.Context, token id.TokenID, subject id.Address) (bool, error)
	AddToWhitelist(ctx context.Context, token id.TokenID, subject id.Address) error
	AddToBlacklist(ctx context.Context, token id.TokenID, subject id.Address) error
	RemoveFromWhitelist(ctx context.Context, token id.TokenID, subject id.Address) error
	RemoveFromBlacklist(ctx context.Context, token id.TokenID, subject id.Address) error
}

// IdentityProvider resolves already-authenticated identity attributes for an
// address. The compliance core never verifies claims itself.
type IdentityProvider interface {
	HasIdentity(ctx context.Context, subject id.Address) (bool, error)
	KYCLevel(ctx context.Context, subject id.Address) (uint8, error)
	InvestorType(ctx context.Context, subject id.Address) (uint8, error)
	CountryCode(ctx context.Context, subject id.Address) (id.CountryCode, error)
}

// BalanceProvider reports current token balances for the balance-limits
// module.
type BalanceProvider interface {
	BalanceOf(ctx context.Context, token id.TokenID, subject id.Address) (decimal.Decimal, error)
}

// AccessControl answers role queries for administrative operations.
type AccessControl interface {
	HasRole(ctx context.Context, actor id.Address, role string) (bool, error)
}

// LogAudit is a shared helper for logging audit events across compliance
// services. It logs to both the structured logger and the audit publisher if
// available.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	args := append(attrs, "event", event.Action, "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}
	if publisher == nil {
		return
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if err := publisher.Append(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
