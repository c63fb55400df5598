// Package engine runs a proposed transfer through every module enabled for
// its token. Modules evaluate in descending priority with insertion order
// breaking ties; the first failing module short-circuits the rest. Evaluation
// never mutates rolling counters; ExecuteTransfer commits them only after a
// full pass, under the sender's lock.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tokengate/internal/compliance/metrics"
	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/ports"
	"tokengate/internal/compliance/service/countryrule"
	"tokengate/internal/compliance/service/tradinghours"
	"tokengate/internal/compliance/service/transferrule"
	id "tokengate/pkg/domain"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/audit"
)

type evaluatorFunc func(ctx context.Context, raw json.RawMessage, check models.TransferCheck) (models.ModuleResult, error)

type Engine struct {
	modules        ports.ModuleConfigStore
	transferRules  *transferrule.Service
	countryRules   *countryrule.Service
	identity       ports.IdentityProvider
	addresses      ports.AddressListStore
	balances       ports.BalanceProvider
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger

	dispatch map[models.ModuleType]evaluatorFunc
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(
	modules ports.ModuleConfigStore,
	transferRules *transferrule.Service,
	countryRules *countryrule.Service,
	identity ports.IdentityProvider,
	addresses ports.AddressListStore,
	balances ports.BalanceProvider,
	opts ...Option,
) (*Engine, error) {
	if modules == nil {
		return nil, fmt.Errorf("module config store is required")
	}
	if transferRules == nil {
		return nil, fmt.Errorf("transfer rule service is required")
	}
	if countryRules == nil {
		return nil, fmt.Errorf("country rule service is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address list store is required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance provider is required")
	}

	e := &Engine{
		modules:       modules,
		transferRules: transferRules,
		countryRules:  countryRules,
		identity:      identity,
		addresses:     addresses,
		balances:      balances,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.dispatch = map[models.ModuleType]evaluatorFunc{
		models.ModuleTransferLimits:      e.evalTransferLimits,
		models.ModuleCountryRestrictions: e.evalCountryRestrictions,
		models.ModuleTradingHours:        e.evalTradingHours,
		models.ModuleInvestorType:        e.evalInvestorType,
		models.ModuleAddressList:         e.evalAddressList,
		models.ModuleBalanceLimits:       e.evalBalanceLimits,
	}

	return e, nil
}

// EvaluateTransfer runs the full module chain without recording anything.
// Calling it any number of times with the same inputs yields the same verdict.
func (e *Engine) EvaluateTransfer(ctx context.Context, check models.TransferCheck) (*models.ComprehensiveResult, error) {
	start := time.Now()
	if err := check.Validate(); err != nil {
		return nil, err
	}

	configs, err := e.modules.ListByToken(ctx, check.Token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list module configs")
	}

	enabled := make([]*models.ComplianceModuleConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	// Stable sort: equal priorities keep store insertion order.
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority > enabled[j].Priority
	})

	result := models.NewComprehensiveResult(check.Token, check.Now)
	for _, cfg := range enabled {
		moduleResult, err := e.evaluateModule(ctx, cfg, check)
		if err != nil {
			return nil, err
		}
		result.ModuleResults = append(result.ModuleResults, moduleResult)
		if !moduleResult.Passed {
			result.Passed = false
			result.FailingModule = moduleResult.Module
			result.ErrorKind = moduleResult.Kind
			result.ErrorMessage = moduleResult.Message
			break
		}
	}

	e.observe(ctx, check, result, start)
	return result, nil
}

// ExecuteTransfer evaluates and, on a full pass, records the transfer against
// the sender's rolling counters. The pair runs under the sender's lock so a
// concurrent transfer for the same subject cannot slip between the read and
// the write.
func (e *Engine) ExecuteTransfer(ctx context.Context, check models.TransferCheck) (*models.ComprehensiveResult, error) {
	if err := check.Validate(); err != nil {
		return nil, err
	}

	var result *models.ComprehensiveResult
	err := e.transferRules.Atomically(check.Token, check.From, func() error {
		var evalErr error
		result, evalErr = e.EvaluateTransfer(ctx, check)
		if evalErr != nil {
			return evalErr
		}
		if !result.Passed {
			return nil
		}
		if recErr := e.transferRules.Record(ctx, check); recErr != nil {
			return recErr
		}
		if e.metrics != nil {
			e.metrics.IncrementTransferRecorded()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) evaluateModule(ctx context.Context, cfg *models.ComplianceModuleConfig, check models.TransferCheck) (models.ModuleResult, error) {
	eval, ok := e.dispatch[cfg.Type]
	if !ok {
		return models.Fail(cfg.Type, models.KindUnknownModule,
			fmt.Sprintf("no evaluator registered for module %s", cfg.Type)), nil
	}
	return eval(ctx, cfg.Config, check)
}

func (e *Engine) observe(ctx context.Context, check models.TransferCheck, result *models.ComprehensiveResult, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveEvaluation(start)
		if result.Passed {
			e.metrics.IncrementEvaluation("passed")
		} else {
			e.metrics.IncrementEvaluation("rejected")
			e.metrics.IncrementRejection(result.FailingModule.String(), string(result.ErrorKind))
		}
	}
	if !result.Passed {
		ports.LogAudit(ctx, e.logger, e.auditPublisher, audit.Event{
			Action:   string(audit.EventTransferRejected),
			Token:    check.Token,
			Subject:  check.From.String(),
			Module:   result.FailingModule.String(),
			Decision: string(result.ErrorKind),
			Reason:   result.ErrorMessage,
			Amount:   check.Amount.String(),
		},
			"token", check.Token,
			"from", check.From,
			"to", check.To,
			"module", result.FailingModule,
			"kind", result.ErrorKind,
		)
	}
}

// ============================================================
// Per-module evaluators
// ============================================================

func (e *Engine) evalTransferLimits(ctx context.Context, raw json.RawMessage, check models.TransferCheck) (models.ModuleResult, error) {
	var cfg models.TransferLimitsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed transfer limits config")
	}
	return e.transferRules.Evaluate(ctx, cfg, check)
}

// evalCountryRestrictions resolves both parties to country codes before
// handing off; the country evaluator itself only sees jurisdictions.
func (e *Engine) evalCountryRestrictions(ctx context.Context, raw json.RawMessage, check models.TransferCheck) (models.ModuleResult, error) {
	var cfg models.CountryConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed country config")
	}
	source, err := e.identity.CountryCode(ctx, check.From)
	if err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve sender country")
	}
	destination, err := e.identity.CountryCode(ctx, check.To)
	if err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve recipient country")
	}
	return e.countryRules.Evaluate(ctx, cfg, source, destination, check.Amount)
}

func (e *Engine) evalTradingHours(_ context.Context, raw json.RawMessage, check models.TransferCheck) (models.ModuleResult, error) {
	var cfg models.TradingHoursConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed trading hours config")
	}
	ok, err := tradinghours.Permitted(cfg, check.Now)
	if err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "invalid trading hours config")
	}
	if !ok {
		return models.Fail(models.ModuleTradingHours, models.KindOutsideTradingHours,
			"transfer attempted outside the permitted trading window"), nil
	}
	return models.Pass(models.ModuleTradingHours), nil
}

func (e *Engine) evalInvestorType(ctx context.Context, raw json.RawMessage, check models.TransferCheck) (models.ModuleResult, error) {
	var cfg models.InvestorTypeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed investor type config")
	}

	for _, subject := range []struct {
		addr id.Address
		role string
	}{{check.From, "sender"}, {check.To, "recipient"}} {
		has, err := e.identity.HasIdentity(ctx, subject.addr)
		if err != nil {
			return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check identity")
		}
		if !has {
			return models.Fail(models.ModuleInvestorType, models.KindMissingIdentity,
				fmt.Sprintf("no identity on record for %s %s", subject.role, subject.addr)), nil
		}
	}

	if cfg.MinKYCLevel > 0 {
		level, err := e.identity.KYCLevel(ctx, check.To)
		if err != nil {
			return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve KYC level")
		}
		if level < cfg.MinKYCLevel {
			return models.Fail(models.ModuleInvestorType, models.KindKYCLevelTooLow,
				fmt.Sprintf("recipient KYC level %d is below the required %d", level, cfg.MinKYCLevel)), nil
		}
	}

	if len(cfg.AllowedTypes) > 0 {
		investorType, err := e.identity.InvestorType(ctx, check.To)
		if err != nil {
			return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve investor type")
		}
		allowed := false
		for _, t := range cfg.AllowedTypes {
			if t == investorType {
				allowed = true
				break
			}
		}
		if !allowed {
			return models.Fail(models.ModuleInvestorType, models.KindInvestorTypeNotAllowed,
				fmt.Sprintf("investor type %d is not permitted for this token", investorType)), nil
		}
	}

	return models.Pass(models.ModuleInvestorType), nil
}

func (e *Engine) evalAddressList(ctx context.Context, raw json.RawMessage, check models.TransferCheck) (models.ModuleResult, error) {
	var cfg models.AddressListConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed address list config")
	}

	for _, subject := range []id.Address{check.From, check.To} {
		blocked, err := e.addresses.IsBlacklisted(ctx, check.Token, subject)
		if err != nil {
			return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check blacklist")
		}
		if blocked {
			return models.Fail(models.ModuleAddressList, models.KindBlacklisted,
				fmt.Sprintf("address %s is blacklisted", subject)), nil
		}
	}

	if cfg.RequireWhitelist {
		for _, subject := range []id.Address{check.From, check.To} {
			listed, err := e.addresses.IsWhitelisted(ctx, check.Token, subject)
			if err != nil {
				return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check whitelist")
			}
			if !listed {
				return models.Fail(models.ModuleAddressList, models.KindNotWhitelisted,
					fmt.Sprintf("address %s is not whitelisted", subject)), nil
			}
		}
	}

	return models.Pass(models.ModuleAddressList), nil
}

func (e *Engine) evalBalanceLimits(ctx context.Context, raw json.RawMessage, check models.TransferCheck) (models.ModuleResult, error) {
	var cfg models.BalanceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed balance config")
	}

	balance, err := e.balances.BalanceOf(ctx, check.Token, check.To)
	if err != nil {
		return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve recipient balance")
	}
	projected := balance.Add(check.Amount)
	if cfg.MaxBalance.IsPositive() && projected.GreaterThan(cfg.MaxBalance) {
		return models.Fail(models.ModuleBalanceLimits, models.KindExceedsBalanceLimit,
			"transfer would push the recipient balance above the ceiling").
			WithLimits(cfg.MaxBalance, projected), nil
	}

	return models.Pass(models.ModuleBalanceLimits), nil
}
