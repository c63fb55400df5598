// Package handler wires the compliance API: the evaluation surface for
// transfer checks and the admin surface for modules, restrictions, and
// country rules. Admin routes expect the RequireAdmin middleware in front of
// them; the registry additionally re-checks the actor's role.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tokengate/internal/compliance/models"
	"tokengate/internal/compliance/service/catalog"
	"tokengate/internal/compliance/service/countryrule"
	"tokengate/internal/compliance/service/engine"
	"tokengate/internal/compliance/service/registry"
	"tokengate/internal/compliance/service/transferrule"
	"tokengate/internal/platform/middleware"
	id "tokengate/pkg/domain"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/httputil"
)

// Handler wires compliance endpoints to the services.
type Handler struct {
	engine        *engine.Engine
	registry      *registry.Service
	transferRules *transferrule.Service
	countryRules  *countryrule.Service
	catalog       *catalog.Catalog
	logger        *slog.Logger
	now           func() time.Time
}

// New constructs a compliance handler with its dependencies.
func New(
	eng *engine.Engine,
	reg *registry.Service,
	transferRules *transferrule.Service,
	countryRules *countryrule.Service,
	cat *catalog.Catalog,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		engine:        eng,
		registry:      reg,
		transferRules: transferRules,
		countryRules:  countryRules,
		catalog:       cat,
		logger:        logger,
		now:           time.Now,
	}
}

// Register mounts the evaluation endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/evaluate", h.HandleEvaluate)
	r.Post("/compliance/transfers", h.HandleTransfer)
	r.Get("/compliance/catalog", h.HandleCatalog)
}

// RegisterAdmin mounts the admin endpoints. Callers wrap the router in
// RequireAdmin before mounting.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/tokens/{token}", func(r chi.Router) {
		r.Post("/modules", h.HandleEnableModule)
		r.Get("/modules", h.HandleListModules)
		r.Get("/modules/{type}", h.HandleGetModule)
		r.Put("/modules/{type}", h.HandleUpdateModule)
		r.Delete("/modules/{type}", h.HandleDisableModule)

		r.Put("/restrictions", h.HandleUpsertRestrictions)
		r.Get("/restrictions", h.HandleListRestrictions)
		r.Get("/restrictions/{subject}", h.HandleGetRestrictions)
		r.Delete("/restrictions/{subject}", h.HandleDeleteRestrictions)
	})

	r.Put("/countries", h.HandleUpsertCountry)
	r.Get("/countries", h.HandleListCountries)
	r.Delete("/countries/{code}", h.HandleDeleteCountry)

	r.Put("/corridors", h.HandleUpsertBilateral)
	r.Get("/corridors", h.HandleListBilateral)
	r.Delete("/corridors/{source}/{destination}", h.HandleDeleteBilateral)
}

// ============================================================
// Evaluation surface
// ============================================================

func (h *Handler) transferCheck(w http.ResponseWriter, r *http.Request) (models.TransferCheck, bool) {
	req, ok := httputil.Decode[models.EvaluateTransferRequest](w, r, h.logger)
	if !ok {
		return models.TransferCheck{}, false
	}
	check := models.TransferCheck{
		Token:  id.TokenID(req.Token),
		From:   id.Address(req.From),
		To:     id.Address(req.To),
		Amount: req.Amount,
		Now:    h.now().UTC(),
	}
	if err := check.Validate(); err != nil {
		httputil.WriteError(w, err)
		return models.TransferCheck{}, false
	}
	return check, true
}

// HandleEvaluate handles POST /compliance/evaluate: a dry run that never
// touches rolling counters.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	check, ok := h.transferCheck(w, r)
	if !ok {
		return
	}

	result, err := h.engine.EvaluateTransfer(ctx, check)
	if err != nil {
		h.logger.ErrorContext(ctx, "transfer evaluation failed",
			"request_id", middleware.GetRequestID(ctx),
			"token", check.Token,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleTransfer handles POST /compliance/transfers: evaluate and, on a full
// pass, commit the transfer against the sender's counters.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	check, ok := h.transferCheck(w, r)
	if !ok {
		return
	}

	result, err := h.engine.ExecuteTransfer(ctx, check)
	if err != nil {
		h.logger.ErrorContext(ctx, "transfer execution failed",
			"request_id", middleware.GetRequestID(ctx),
			"token", check.Token,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Passed {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, result)
}

// HandleCatalog handles GET /compliance/catalog.
func (h *Handler) HandleCatalog(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.catalog.List())
}

// ============================================================
// Module administration
// ============================================================

func (h *Handler) actor(r *http.Request) id.Address {
	return id.Address(middleware.GetActor(r.Context()))
}

func (h *Handler) token(r *http.Request) id.TokenID {
	return id.TokenID(chi.URLParam(r, "token"))
}

// HandleEnableModule handles POST /tokens/{token}/modules.
func (h *Handler) HandleEnableModule(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.EnableModuleRequest](w, r, h.logger)
	if !ok {
		return
	}

	cfg, err := h.registry.Enable(r.Context(), h.actor(r), h.token(r), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cfg)
}

// HandleListModules handles GET /tokens/{token}/modules.
func (h *Handler) HandleListModules(w http.ResponseWriter, r *http.Request) {
	token := h.token(r)
	configs, err := h.registry.List(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ModuleListResponse{
		Token:   token.String(),
		Modules: configs,
	})
}

func (h *Handler) moduleType(w http.ResponseWriter, r *http.Request) (models.ModuleType, bool) {
	moduleType, err := models.ParseModuleType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return moduleType, true
}

// HandleGetModule handles GET /tokens/{token}/modules/{type}.
func (h *Handler) HandleGetModule(w http.ResponseWriter, r *http.Request) {
	moduleType, ok := h.moduleType(w, r)
	if !ok {
		return
	}
	cfg, err := h.registry.Get(r.Context(), h.token(r), moduleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// HandleUpdateModule handles PUT /tokens/{token}/modules/{type}.
func (h *Handler) HandleUpdateModule(w http.ResponseWriter, r *http.Request) {
	moduleType, ok := h.moduleType(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[models.UpdateModuleConfigRequest](w, r, h.logger)
	if !ok {
		return
	}

	cfg, err := h.registry.UpdateConfig(r.Context(), h.actor(r), h.token(r), moduleType, req.Config)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// HandleDisableModule handles DELETE /tokens/{token}/modules/{type}.
func (h *Handler) HandleDisableModule(w http.ResponseWriter, r *http.Request) {
	moduleType, ok := h.moduleType(w, r)
	if !ok {
		return
	}
	if err := h.registry.Disable(r.Context(), h.actor(r), h.token(r), moduleType); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================
// Restriction administration
// ============================================================

// HandleUpsertRestrictions handles PUT /tokens/{token}/restrictions.
func (h *Handler) HandleUpsertRestrictions(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.UpsertRestrictionsRequest](w, r, h.logger)
	if !ok {
		return
	}

	row, err := h.transferRules.UpsertRestrictions(r.Context(), h.token(r), req, h.now().UTC())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, row)
}

// HandleListRestrictions handles GET /tokens/{token}/restrictions.
func (h *Handler) HandleListRestrictions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.transferRules.ListRestrictions(r.Context(), h.token(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

// HandleGetRestrictions handles GET /tokens/{token}/restrictions/{subject}.
func (h *Handler) HandleGetRestrictions(w http.ResponseWriter, r *http.Request) {
	subject := id.Address(chi.URLParam(r, "subject"))
	row, err := h.transferRules.GetRestrictions(r.Context(), h.token(r), subject, h.now().UTC())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, row)
}

// HandleDeleteRestrictions handles DELETE /tokens/{token}/restrictions/{subject}.
func (h *Handler) HandleDeleteRestrictions(w http.ResponseWriter, r *http.Request) {
	subject := id.Address(chi.URLParam(r, "subject"))
	if err := h.transferRules.DeleteRestrictions(r.Context(), h.token(r), subject); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================
// Country administration
// ============================================================

// HandleUpsertCountry handles PUT /countries.
func (h *Handler) HandleUpsertCountry(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.UpsertCountryRequest](w, r, h.logger)
	if !ok {
		return
	}

	rule, err := h.countryRules.UpsertCountry(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rule)
}

// HandleListCountries handles GET /countries.
func (h *Handler) HandleListCountries(w http.ResponseWriter, r *http.Request) {
	rules, err := h.countryRules.ListCountries(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

// HandleDeleteCountry handles DELETE /countries/{code}.
func (h *Handler) HandleDeleteCountry(w http.ResponseWriter, r *http.Request) {
	code, err := id.ParseCountryCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid country code"))
		return
	}
	if err := h.countryRules.DeleteCountry(r.Context(), code); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpsertBilateral handles PUT /corridors.
func (h *Handler) HandleUpsertBilateral(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.UpsertBilateralRequest](w, r, h.logger)
	if !ok {
		return
	}

	rule, err := h.countryRules.UpsertBilateral(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rule)
}

// HandleListBilateral handles GET /corridors.
func (h *Handler) HandleListBilateral(w http.ResponseWriter, r *http.Request) {
	rules, err := h.countryRules.ListBilateral(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

// HandleDeleteBilateral handles DELETE /corridors/{source}/{destination}.
func (h *Handler) HandleDeleteBilateral(w http.ResponseWriter, r *http.Request) {
	source, err := id.ParseCountryCode(chi.URLParam(r, "source"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid source country"))
		return
	}
	destination, err := id.ParseCountryCode(chi.URLParam(r, "destination"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid destination country"))
		return
	}
	if err := h.countryRules.DeleteBilateral(r.Context(), source, destination); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
