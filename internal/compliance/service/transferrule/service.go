// Package transferrule evaluates and records per-subject transfer limits:
// single-transfer caps, rolling daily/monthly volume and count windows, and
// the post-transfer lock. Evaluation is read-only; Record commits the counter
// updates. Callers that need an evaluate-then-record pair to be atomic wrap
// both in Atomically.
package transferrule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tokengate/internal/compliance/config"
	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/ports"
	"tokengate/internal/compliance/service/tradinghours"
	id "tokengate/pkg/domain"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/audit"
)

// Type aliases for shared interfaces.
type (
	Store          = ports.RuleStateStore
	AuditPublisher = ports.AuditPublisher
)

type Service struct {
	store          Store
	cfg            *config.Config
	auditPublisher AuditPublisher
	logger         *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
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

func New(store Store, cfg *config.Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rule state store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("compliance config is required")
	}

	svc := &Service{
		store: store,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Atomically runs fn while holding the mutex for one (token, subject) pair.
// An Evaluate followed by Record inside fn cannot interleave with another
// transfer for the same subject.
func (s *Service) Atomically(token id.TokenID, subject id.Address, fn func() error) error {
	lock := s.subjectLock(token, subject)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (s *Service) subjectLock(token id.TokenID, subject id.Address) *sync.Mutex {
	key := models.SubjectKey(token, subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

// Evaluate checks a proposed transfer against the sender's restriction row
// without mutating any stored state. Checks run in a fixed order and the
// first violation wins.
func (s *Service) Evaluate(ctx context.Context, moduleCfg models.TransferLimitsConfig, check models.TransferCheck) (models.ModuleResult, error) {
	if err := check.Validate(); err != nil {
		return models.ModuleResult{}, err
	}

	if !check.Amount.IsPositive() {
		return models.Fail(models.ModuleTransferLimits, models.KindInvalidAmount,
			"transfer amount must be positive"), nil
	}
	// The system ceiling is part of amount validity, not the per-subject
	// max-transfer check.
	if check.Amount.GreaterThan(s.cfg.SystemMaxAmount) {
		return models.Fail(models.ModuleTransferLimits, models.KindInvalidAmount,
			"transfer amount exceeds system ceiling").
			WithLimits(s.cfg.SystemMaxAmount, check.Amount), nil
	}

	if moduleCfg.TradingHours != nil {
		ok, err := tradinghours.Permitted(*moduleCfg.TradingHours, check.Now)
		if err != nil {
			return models.ModuleResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "invalid trading hours config")
		}
		if !ok {
			return models.Fail(models.ModuleTransferLimits, models.KindOutsideTradingHours,
				"transfer attempted outside the permitted trading window"), nil
		}
	}

	row, err := s.workingCopy(ctx, check.Token, check.From, check.Now)
	if err != nil {
		return models.ModuleResult{}, err
	}

	if row.TransferLockDuration > 0 && !row.LastTransferTime.IsZero() {
		unlockAt := row.LastTransferTime.Add(row.TransferLockDuration)
		if check.Now.Before(unlockAt) {
			return models.Fail(models.ModuleTransferLimits, models.KindTransferLocked,
				fmt.Sprintf("subject is locked until %s", unlockAt.UTC().Format(time.RFC3339))), nil
		}
	}

	if row.MaxTransferAmount.IsPositive() && check.Amount.GreaterThan(row.MaxTransferAmount) {
		return models.Fail(models.ModuleTransferLimits, models.KindExceedsMaxAmount,
			"transfer amount exceeds per-transfer limit").
			WithLimits(row.MaxTransferAmount, check.Amount), nil
	}

	if row.DailyVolumeLimit.IsPositive() {
		projected := row.DailyVolumeUsed.Add(check.Amount)
		if projected.GreaterThan(row.DailyVolumeLimit) {
			return models.Fail(models.ModuleTransferLimits, models.KindDailyVolumeExceeded,
				"transfer would exceed the rolling daily volume limit").
				WithLimits(row.DailyVolumeLimit, projected), nil
		}
	}

	if row.MonthlyVolumeLimit.IsPositive() {
		projected := row.MonthlyVolumeUsed.Add(check.Amount)
		if projected.GreaterThan(row.MonthlyVolumeLimit) {
			return models.Fail(models.ModuleTransferLimits, models.KindMonthlyVolumeExceeded,
				"transfer would exceed the rolling monthly volume limit").
				WithLimits(row.MonthlyVolumeLimit, projected), nil
		}
	}

	if row.DailyCountLimit > 0 && row.DailyCountUsed+1 > row.DailyCountLimit {
		return models.Fail(models.ModuleTransferLimits, models.KindDailyCountExceeded,
			"transfer would exceed the rolling daily transfer count").
			WithLimits(decimal.NewFromInt(int64(row.DailyCountLimit)), decimal.NewFromInt(int64(row.DailyCountUsed+1))), nil
	}

	if row.MonthlyCountLimit > 0 && row.MonthlyCountUsed+1 > row.MonthlyCountLimit {
		return models.Fail(models.ModuleTransferLimits, models.KindMonthlyCountExceeded,
			"transfer would exceed the rolling monthly transfer count").
			WithLimits(decimal.NewFromInt(int64(row.MonthlyCountLimit)), decimal.NewFromInt(int64(row.MonthlyCountUsed+1))), nil
	}

	return models.Pass(models.ModuleTransferLimits), nil
}

// Record commits a transfer against the sender's rolling counters. It applies
// elapsed-window resets on the stored row, adds the amount to both volume
// windows, increments both counts, and stamps the transfer lock. The
// per-subject row is created from the token default on first record.
func (s *Service) Record(ctx context.Context, check models.TransferCheck) error {
	if err := check.Validate(); err != nil {
		return err
	}
	if !check.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer amount must be positive")
	}

	row, err := s.store.Get(ctx, check.Token, check.From)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load restriction row")
	}
	if row == nil {
		row, err = s.freshRow(ctx, check.Token, check.From, check.Now)
		if err != nil {
			return err
		}
	}

	row.ApplyLazyResets(check.Now)
	row.DailyVolumeUsed = row.DailyVolumeUsed.Add(check.Amount)
	row.MonthlyVolumeUsed = row.MonthlyVolumeUsed.Add(check.Amount)
	row.DailyCountUsed++
	row.MonthlyCountUsed++
	row.LastTransferTime = check.Now

	if err := s.store.Upsert(ctx, row); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist restriction row")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    string(audit.EventTransferRecorded),
		Timestamp: check.Now,
		Token:     check.Token,
		Subject:   check.From.String(),
		Module:    models.ModuleTransferLimits.String(),
		Amount:    check.Amount.String(),
	},
		"token", check.Token,
		"from", check.From,
		"to", check.To,
		"amount", check.Amount,
	)

	return nil
}

// workingCopy resolves the row Evaluate reads: the per-subject row when one
// exists, otherwise a fresh row seeded from the token default. Lazy resets are
// applied to the copy only.
func (s *Service) workingCopy(ctx context.Context, token id.TokenID, subject id.Address, now time.Time) (*models.TransferRestrictions, error) {
	row, err := s.store.Get(ctx, token, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load restriction row")
	}
	if row == nil {
		return s.freshRow(ctx, token, subject, now)
	}
	row.ApplyLazyResets(now)
	return row, nil
}

// freshRow builds a zero-usage row for a subject from the token default, or
// from the service defaults when the token has no default row.
func (s *Service) freshRow(ctx context.Context, token id.TokenID, subject id.Address, now time.Time) (*models.TransferRestrictions, error) {
	def, err := s.store.GetDefault(ctx, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load default restriction row")
	}
	if def == nil {
		return models.NewTransferRestrictions(token, subject,
			s.cfg.DefaultMaxTransferAmount,
			s.cfg.DefaultDailyVolumeLimit,
			s.cfg.DefaultMonthlyVolumeLimit,
			s.cfg.DefaultDailyCountLimit,
			s.cfg.DefaultMonthlyCountLimit,
			s.cfg.DefaultTransferLock,
			now,
		)
	}
	return models.NewTransferRestrictions(token, subject,
		def.MaxTransferAmount,
		def.DailyVolumeLimit,
		def.MonthlyVolumeLimit,
		def.DailyCountLimit,
		def.MonthlyCountLimit,
		def.TransferLockDuration,
		now,
	)
}

// ============================================================
// Admin surface
// ============================================================

// UpsertRestrictions creates or updates the limits of one restriction row. An
// empty subject targets the token-wide default. Rolling usage state on an
// existing row survives a limit change.
func (s *Service) UpsertRestrictions(ctx context.Context, token id.TokenID, req models.UpsertRestrictionsRequest, now time.Time) (*models.TransferRestrictions, error) {
	subject := id.Address(req.Subject)
	row, err := models.NewTransferRestrictions(token, subject,
		req.MaxTransferAmount,
		req.DailyVolumeLimit,
		req.MonthlyVolumeLimit,
		req.DailyCountLimit,
		req.MonthlyCountLimit,
		time.Duration(req.TransferLockSeconds)*time.Second,
		now,
	)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, token, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load restriction row")
	}
	if existing != nil {
		row.LastTransferTime = existing.LastTransferTime
		row.DailyVolumeUsed = existing.DailyVolumeUsed
		row.MonthlyVolumeUsed = existing.MonthlyVolumeUsed
		row.DailyCountUsed = existing.DailyCountUsed
		row.MonthlyCountUsed = existing.MonthlyCountUsed
		row.LastDailyReset = existing.LastDailyReset
		row.LastMonthlyReset = existing.LastMonthlyReset
	}

	if err := s.store.Upsert(ctx, row); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist restriction row")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    string(audit.EventRestrictionsUpdated),
		Timestamp: now,
		Token:     token,
		Subject:   subject.String(),
	},
		"token", token,
		"subject", subject,
	)

	return row, nil
}

// GetRestrictions returns one row with lazy resets applied for display. The
// stored row is untouched.
func (s *Service) GetRestrictions(ctx context.Context, token id.TokenID, subject id.Address, now time.Time) (*models.TransferRestrictions, error) {
	row, err := s.store.Get(ctx, token, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load restriction row")
	}
	if row == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "restriction row not found")
	}
	row.ApplyLazyResets(now)
	return row, nil
}

// DeleteRestrictions removes one row. Deleting the default row reverts
// subjects without explicit rows to the service defaults.
func (s *Service) DeleteRestrictions(ctx context.Context, token id.TokenID, subject id.Address) error {
	if err := s.store.Delete(ctx, token, subject); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete restriction row")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    string(audit.EventRestrictionsUpdated),
		Timestamp: time.Now(),
		Token:     token,
		Subject:   subject.String(),
		Decision:  "deleted",
	},
		"token", token,
		"subject", subject,
	)

	return nil
}

// ListRestrictions returns all rows for a token in insertion order.
func (s *Service) ListRestrictions(ctx context.Context, token id.TokenID) ([]*models.TransferRestrictions, error) {
	rows, err := s.store.List(ctx, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list restriction rows")
	}
	return rows, nil
}
