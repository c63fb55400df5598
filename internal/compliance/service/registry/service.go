// Package registry owns the module lifecycle for a token: enable, disable,
// and config updates. Every mutation is gated by access control, validated
// against the catalog, and audited. Config updates always bump the version so
// downstream caches can detect staleness.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tokengate/internal/compliance/metrics"
	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/ports"
	"tokengate/internal/compliance/service/catalog"
	"tokengate/internal/platform/middleware"
	id "tokengate/pkg/domain"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/audit"
)

// RoleComplianceAdmin is required for every mutation on the registry. It is
// the same role the JWT middleware gates on, so the transport check and the
// service check can never drift apart.
const RoleComplianceAdmin = middleware.RoleComplianceAdmin

// Type aliases for shared interfaces.
type (
	Store          = ports.ModuleConfigStore
	AccessControl  = ports.AccessControl
	AuditPublisher = ports.AuditPublisher
)

type Service struct {
	store          Store
	catalog        *catalog.Catalog
	access         AccessControl
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source. Tests pin it for deterministic
// UpdatedAt assertions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, cat *catalog.Catalog, access AccessControl, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("module config store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if access == nil {
		return nil, fmt.Errorf("access control is required")
	}

	svc := &Service{
		store:   store,
		catalog: cat,
		access:  access,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Enable turns a module on for a token. Enabling an already-enabled module is
// a conflict; use UpdateConfig instead.
func (s *Service) Enable(ctx context.Context, actor id.Address, token id.TokenID, req models.EnableModuleRequest) (*models.ComplianceModuleConfig, error) {
	if err := s.authorize(ctx, actor, token, "enable"); err != nil {
		return nil, err
	}

	moduleType, err := models.ParseModuleType(req.Type)
	if err != nil {
		return nil, err
	}

	raw := req.Config
	if len(raw) == 0 {
		spec, err := s.catalog.Describe(moduleType)
		if err != nil {
			return nil, err
		}
		raw = spec.DefaultConfig
	}
	if err := s.catalog.ValidateConfig(moduleType, raw); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, token, moduleType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load module config")
	}
	if existing != nil {
		return nil, dErrors.Newf(dErrors.CodeConflict, "module %s is already enabled for token %s", moduleType, token)
	}

	cfg, err := models.NewComplianceModuleConfig(token, moduleType, req.Priority, raw)
	if err != nil {
		return nil, err
	}
	cfg.UpdatedAt = s.now()

	if err := s.store.Put(ctx, cfg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist module config")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:  string(audit.EventModuleEnabled),
		Token:   token,
		Module:  moduleType.String(),
		ActorID: actor.String(),
	},
		"token", token,
		"module", moduleType,
		"priority", req.Priority,
	)

	if s.metrics != nil {
		s.metrics.ModuleEnabled(token.String())
	}

	return cfg, nil
}

// Disable removes a module and discards its config. Re-enabling starts from
// scratch at version 1.
func (s *Service) Disable(ctx context.Context, actor id.Address, token id.TokenID, moduleType models.ModuleType) error {
	if err := s.authorize(ctx, actor, token, "disable"); err != nil {
		return err
	}

	existing, err := s.store.Get(ctx, token, moduleType)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load module config")
	}
	if existing == nil {
		return dErrors.Newf(dErrors.CodeNotFound, "module %s is not enabled for token %s", moduleType, token)
	}

	if err := s.store.Delete(ctx, token, moduleType); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete module config")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:  string(audit.EventModuleDisabled),
		Token:   token,
		Module:  moduleType.String(),
		ActorID: actor.String(),
	},
		"token", token,
		"module", moduleType,
	)

	if s.metrics != nil {
		s.metrics.ModuleDisabled(token.String())
	}

	return nil
}

// UpdateConfig replaces a module's config blob and bumps the version. The
// bump happens even when the new blob equals the old one.
func (s *Service) UpdateConfig(ctx context.Context, actor id.Address, token id.TokenID, moduleType models.ModuleType, raw json.RawMessage) (*models.ComplianceModuleConfig, error) {
	if err := s.authorize(ctx, actor, token, "update"); err != nil {
		return nil, err
	}

	if err := s.catalog.ValidateConfig(moduleType, raw); err != nil {
		return nil, err
	}

	cfg, err := s.store.Get(ctx, token, moduleType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load module config")
	}
	if cfg == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "module %s is not enabled for token %s", moduleType, token)
	}

	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	cfg.Config = raw
	cfg.Version++
	cfg.UpdatedAt = s.now()

	if err := s.store.Put(ctx, cfg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist module config")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:  string(audit.EventModuleConfigUpdated),
		Token:   token,
		Module:  moduleType.String(),
		ActorID: actor.String(),
	},
		"token", token,
		"module", moduleType,
		"version", cfg.Version,
	)

	return cfg, nil
}

// Get returns one module config.
func (s *Service) Get(ctx context.Context, token id.TokenID, moduleType models.ModuleType) (*models.ComplianceModuleConfig, error) {
	cfg, err := s.store.Get(ctx, token, moduleType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load module config")
	}
	if cfg == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "module %s is not enabled for token %s", moduleType, token)
	}
	return cfg, nil
}

// List returns all module configs for a token in insertion order.
func (s *Service) List(ctx context.Context, token id.TokenID) ([]*models.ComplianceModuleConfig, error) {
	configs, err := s.store.ListByToken(ctx, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list module configs")
	}
	return configs, nil
}

func (s *Service) authorize(ctx context.Context, actor id.Address, token id.TokenID, operation string) error {
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "actor is required")
	}
	ok, err := s.access.HasRole(ctx, actor, RoleComplianceAdmin)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check actor role")
	}
	if !ok {
		ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:  string(audit.EventAdminUnauthorized),
			Token:   token,
			ActorID: actor.String(),
			Reason:  operation,
		},
			"token", token,
			"actor", actor,
			"operation", operation,
		)
		return dErrors.Newf(dErrors.CodeForbidden, "actor %s lacks the %s role", actor, RoleComplianceAdmin)
	}
	return nil
}
