// Package countryrule evaluates jurisdiction rules for a proposed transfer.
// Unilateral rules key on a single country; bilateral rules key on the ordered
// (source, destination) pair and apply in addition to the unilateral rules.
// The evaluator takes pre-resolved country codes; resolving an address to a
// country is the caller's job. It holds no rolling state, so evaluation is
// pure.
package countryrule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/ports"
	id "tokengate/pkg/domain"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/audit"
)

// Type aliases for shared interfaces.
type (
	Store          = ports.CountryStore
	AuditPublisher = ports.AuditPublisher
)

type Service struct {
	store          Store
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("country store is required")
	}

	svc := &Service{
		store: store,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Evaluate runs the jurisdiction checks for a (source, destination, amount)
// triple in a fixed order; the first violation wins. An empty country code
// means the caller could not resolve the party's jurisdiction. With
// enforcement disabled in the module config the transfer passes without
// touching the tables.
func (s *Service) Evaluate(ctx context.Context, moduleCfg models.CountryConfig, source, destination id.CountryCode, amount decimal.Decimal) (models.ModuleResult, error) {
	if !amount.IsPositive() {
		return models.Fail(models.ModuleCountryRestrictions, models.KindInvalidAmount,
			"transfer amount must be positive"), nil
	}

	if !moduleCfg.Enforced {
		return models.Pass(models.ModuleCountryRestrictions), nil
	}

	if source.IsNil() {
		return models.Fail(models.ModuleCountryRestrictions, models.KindMissingIdentity,
			"no country on record for the sender"), nil
	}
	if destination.IsNil() {
		return models.Fail(models.ModuleCountryRestrictions, models.KindMissingIdentity,
			"no country on record for the recipient"), nil
	}

	sourceRule, err := s.store.GetCountry(ctx, source)
	if err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load source country rule")
	}
	if sourceRule != nil && sourceRule.IsBlocked {
		return models.Fail(models.ModuleCountryRestrictions, models.KindSourceCountryBlocked,
			fmt.Sprintf("transfers from %s are blocked: %s", source, sourceRule.Reason)), nil
	}

	destRule, err := s.store.GetCountry(ctx, destination)
	if err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load destination country rule")
	}
	if destRule != nil && destRule.IsBlocked {
		return models.Fail(models.ModuleCountryRestrictions, models.KindDestCountryBlocked,
			fmt.Sprintf("transfers to %s are blocked: %s", destination, destRule.Reason)), nil
	}

	pair, err := s.store.GetBilateral(ctx, source, destination)
	if err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load bilateral rule")
	}
	if pair != nil {
		if pair.IsBlocked {
			return models.Fail(models.ModuleCountryRestrictions, models.KindBilateralBlocked,
				fmt.Sprintf("transfers from %s to %s are blocked", source, destination)), nil
		}
		if pair.HasMaxTransferAmount() && amount.GreaterThan(pair.MaxTransferAmount) {
			return models.Fail(models.ModuleCountryRestrictions, models.KindExceedsBilateralLimit,
				fmt.Sprintf("transfer amount exceeds the %s->%s corridor limit", source, destination)).
				WithLimits(pair.MaxTransferAmount, amount), nil
		}
	}

	if destRule != nil && destRule.HasMaxTransferAmount() && amount.GreaterThan(destRule.MaxTransferAmount) {
		return models.Fail(models.ModuleCountryRestrictions, models.KindExceedsCountryLimit,
			fmt.Sprintf("transfer amount exceeds the per-transfer limit for %s", destination)).
			WithLimits(destRule.MaxTransferAmount, amount), nil
	}

	return models.Pass(models.ModuleCountryRestrictions), nil
}

// ============================================================
// Admin surface
// ============================================================

// UpsertCountry creates or replaces a unilateral rule.
func (s *Service) UpsertCountry(ctx context.Context, req models.UpsertCountryRequest) (*models.CountryRestriction, error) {
	country, err := id.ParseCountryCode(req.Country)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid country code")
	}
	rule, err := models.NewCountryRestriction(country, req.IsBlocked, req.IsWhitelisted, req.MaxTransferAmount, req.Reason)
	if err != nil {
		return nil, err
	}
	rule.DailyLimit = req.DailyLimit
	rule.MonthlyLimit = req.MonthlyLimit
	rule.RequiresApproval = req.RequiresApproval

	if err := s.store.UpsertCountry(ctx, rule); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist country rule")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:  string(audit.EventCountryRuleChanged),
		Subject: country.String(),
		Reason:  req.Reason,
	},
		"country", country,
		"blocked", req.IsBlocked,
	)

	return rule, nil
}

// DeleteCountry removes a unilateral rule.
func (s *Service) DeleteCountry(ctx context.Context, country id.CountryCode) error {
	if err := s.store.DeleteCountry(ctx, country); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete country rule")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:   string(audit.EventCountryRuleChanged),
		Subject:  country.String(),
		Decision: "deleted",
	},
		"country", country,
	)

	return nil
}

// ListCountries returns all unilateral rules in insertion order.
func (s *Service) ListCountries(ctx context.Context) ([]*models.CountryRestriction, error) {
	rules, err := s.store.ListCountries(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list country rules")
	}
	return rules, nil
}

// UpsertBilateral creates or replaces a pair rule.
func (s *Service) UpsertBilateral(ctx context.Context, req models.UpsertBilateralRequest) (*models.BilateralRestriction, error) {
	source, err := id.ParseCountryCode(req.Source)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid source country")
	}
	destination, err := id.ParseCountryCode(req.Destination)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid destination country")
	}
	rule, err := models.NewBilateralRestriction(source, destination, req.IsBlocked, req.MaxTransferAmount)
	if err != nil {
		return nil, err
	}
	rule.RequiresApproval = req.RequiresApproval

	if err := s.store.UpsertBilateral(ctx, rule); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist bilateral rule")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:  string(audit.EventBilateralRuleChanged),
		Subject: models.PairKey(source, destination),
	},
		"source", source,
		"destination", destination,
		"blocked", req.IsBlocked,
	)

	return rule, nil
}

// DeleteBilateral removes a pair rule.
func (s *Service) DeleteBilateral(ctx context.Context, source, destination id.CountryCode) error {
	if err := s.store.DeleteBilateral(ctx, source, destination); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete bilateral rule")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:   string(audit.EventBilateralRuleChanged),
		Subject:  models.PairKey(source, destination),
		Decision: "deleted",
	},
		"source", source,
		"destination", destination,
	)

	return nil
}

// ListBilateral returns all pair rules in insertion order.
func (s *Service) ListBilateral(ctx context.Context) ([]*models.BilateralRestriction, error) {
	rules, err := s.store.ListBilateral(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list bilateral rules")
	}
	return rules, nil
}
