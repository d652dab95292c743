package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/health"
	"github.com/openplan-finance/compass/internal/quota"
	"github.com/openplan-finance/compass/internal/repository"
	"github.com/openplan-finance/compass/internal/rules"
	"github.com/openplan-finance/compass/internal/validate"
	"github.com/openplan-finance/compass/internal/worker"
)

// GlobalTenantID is used for policy rules that apply to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	pipeline  *worker.Pipeline
	rules     *rules.Engine
	processor *health.Processor
	quota     *quota.Tracker
	engineCfg domain.EngineConfig
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, pipeline *worker.Pipeline, rulesEngine *rules.Engine, processor *health.Processor, quotaTracker *quota.Tracker, engineCfg domain.EngineConfig, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		pipeline:  pipeline,
		rules:     rulesEngine,
		processor: processor,
		quota:     quotaTracker,
		engineCfg: engineCfg,
		version:   version,
	}
}

// CalculationResponse is the response for calculation endpoints.
type CalculationResponse struct {
	CalculationID string                     `json:"calculationId"`
	Kind          domain.CalculationKind     `json:"kind"`
	Result        json.RawMessage            `json:"result"`
	Metadata      domain.CalculationMetadata `json:"metadata"`
}

// CalculateMetrics handles POST /metrics.
func (h *Handler) CalculateMetrics(w http.ResponseWriter, r *http.Request) {
	var in domain.ScenarioInput
	if !decodeBody(w, r, &in) {
		return
	}
	h.respondCalculation(w, r, domain.KindMetrics, in, in.ProjectDuration)
}

// CalculateScenarios handles POST /scenarios.
func (h *Handler) CalculateScenarios(w http.ResponseWriter, r *http.Request) {
	var in worker.ScenariosInput
	if !decodeBody(w, r, &in) {
		return
	}
	h.respondCalculation(w, r, domain.KindScenarios, in, in.ProjectDuration)
}

// CalculateLoan handles POST /loans.
func (h *Handler) CalculateLoan(w http.ResponseWriter, r *http.Request) {
	var in domain.LoanInput
	if !decodeBody(w, r, &in) {
		return
	}
	h.respondCalculation(w, r, domain.KindLoan, in, 0)
}

// CalculateForecast handles POST /forecasts.
func (h *Handler) CalculateForecast(w http.ResponseWriter, r *http.Request) {
	var in domain.ForecastInput
	if !decodeBody(w, r, &in) {
		return
	}

	calc, err := h.runCalculation(r.Context(), domain.KindForecast, in, in.ForecastMonths)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publishDeficitAlert(r.Context(), calc)

	writeJSON(w, http.StatusOK, calcResponse(calc))
}

// CalculateBreakEven handles POST /breakeven.
func (h *Handler) CalculateBreakEven(w http.ResponseWriter, r *http.Request) {
	var in domain.BreakEvenInput
	if !decodeBody(w, r, &in) {
		return
	}
	h.respondCalculation(w, r, domain.KindBreakEven, in, 0)
}

// CalculateIndices handles POST /indices.
func (h *Handler) CalculateIndices(w http.ResponseWriter, r *http.Request) {
	var in domain.CompositeInputs
	if !decodeBody(w, r, &in) {
		return
	}
	h.respondCalculation(w, r, domain.KindComposite, in, 0)
}

// CalculateSensitivity handles POST /sensitivity.
func (h *Handler) CalculateSensitivity(w http.ResponseWriter, r *http.Request) {
	var in worker.SweepInput
	if !decodeBody(w, r, &in) {
		return
	}
	h.respondCalculation(w, r, domain.KindSensitivity, in, in.Base.ProjectDuration)
}

// respondCalculation runs a calculation and writes the response.
func (h *Handler) respondCalculation(w http.ResponseWriter, r *http.Request, kind domain.CalculationKind, input any, durationMonths int) {
	calc, err := h.runCalculation(r.Context(), kind, input, durationMonths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calcResponse(calc))
}

// runCalculation is the shared calculation path: quota check, result
// cache lookup, offload for long horizons, then the local pipeline.
func (h *Handler) runCalculation(ctx context.Context, kind domain.CalculationKind, input any, durationMonths int) (*domain.Calculation, error) {
	start := time.Now()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.quota != nil {
		if err := h.quota.Allow(ctx, tenantID); err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	hash := inputHash(kind, raw)

	if h.cache != nil {
		if cached, err := h.cache.GetResult(ctx, tenantID, hash); err == nil && cached != nil {
			return &domain.Calculation{
				ID:        cached.CalcID,
				TenantID:  tenantID,
				Kind:      kind,
				Input:     raw,
				Result:    cached.Result,
				CreatedAt: time.Unix(cached.ComputedAt, 0).UTC(),
				Metadata: domain.CalculationMetadata{
					TraceID:       traceID,
					ComputeMs:     time.Since(start).Milliseconds(),
					CacheHit:      true,
					EngineVersion: domain.EngineVersion,
				},
			}, nil
		}
	}

	calcID := uuid.New().String()

	if h.shouldOffload(durationMonths) {
		if calc, ok := h.offload(ctx, tenantID, traceID, calcID, kind, raw, start); ok {
			h.cacheResult(ctx, tenantID, hash, calc)
			return calc, nil
		}
		// Offload failed, fall through to the synchronous path.
	}

	result, err := h.pipeline.Run(ctx, kind, raw)
	if err != nil {
		return nil, err
	}

	calc := &domain.Calculation{
		ID:        calcID,
		TenantID:  tenantID,
		Kind:      kind,
		Input:     raw,
		Result:    result,
		CreatedAt: time.Now().UTC(),
		Metadata: domain.CalculationMetadata{
			TraceID:       traceID,
			ComputeMs:     time.Since(start).Milliseconds(),
			EngineVersion: domain.EngineVersion,
		},
	}

	if h.repo != nil {
		if err := h.repo.SaveCalculation(ctx, tenantID, calc); err != nil {
			slog.Error("failed to save calculation", "calc_id", calc.ID, "error", err)
		}
	}

	h.cacheResult(ctx, tenantID, hash, calc)

	return calc, nil
}

func (h *Handler) shouldOffload(durationMonths int) bool {
	return h.bus != nil &&
		h.engineCfg.OffloadThresholdMonths > 0 &&
		durationMonths >= h.engineCfg.OffloadThresholdMonths
}

// offload dispatches the calculation to the worker over the bus. Any
// failure, including a remote error, falls back to the local path so
// validation errors keep their typing.
func (h *Handler) offload(ctx context.Context, tenantID, traceID, calcID string, kind domain.CalculationKind, raw json.RawMessage, start time.Time) (*domain.Calculation, bool) {
	timeout := h.engineCfg.OffloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(worker.CalcRequest{
		CalcID:   calcID,
		TenantID: tenantID,
		TraceID:  traceID,
		Kind:     kind,
		Input:    raw,
	})
	if err != nil {
		return nil, false
	}

	data, err := h.bus.Request(reqCtx, tenantID, domain.TopicCalcRequested, payload)
	if err != nil {
		slog.Warn("offload failed, running synchronously",
			"calc_id", calcID,
			"kind", kind,
			"error", err,
		)
		return nil, false
	}

	var reply worker.CalcReply
	if err := json.Unmarshal(data, &reply); err != nil || reply.Error != "" || reply.Result == nil {
		return nil, false
	}

	return &domain.Calculation{
		ID:        reply.CalcID,
		TenantID:  tenantID,
		Kind:      kind,
		Input:     raw,
		Result:    reply.Result,
		CreatedAt: time.Now().UTC(),
		Metadata: domain.CalculationMetadata{
			TraceID:       traceID,
			ComputeMs:     time.Since(start).Milliseconds(),
			Offloaded:     true,
			EngineVersion: domain.EngineVersion,
		},
	}, true
}

func (h *Handler) cacheResult(ctx context.Context, tenantID, hash string, calc *domain.Calculation) {
	if h.cache == nil {
		return
	}
	ttl := h.engineCfg.ResultCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	err := h.cache.SetResult(ctx, tenantID, hash, &domain.CachedResult{
		Kind:       calc.Kind,
		Result:     calc.Result,
		CalcID:     calc.ID,
		ComputedAt: calc.CreatedAt.Unix(),
	}, ttl)
	if err != nil {
		slog.Warn("failed to cache result", "calc_id", calc.ID, "error", err)
	}
}

// publishDeficitAlert raises an alert for forecasts with deficit months.
func (h *Handler) publishDeficitAlert(ctx context.Context, calc *domain.Calculation) {
	if h.bus == nil || calc.Metadata.Offloaded || calc.Metadata.CacheHit {
		return
	}

	var fr domain.ForecastResult
	if err := json.Unmarshal(calc.Result, &fr); err != nil || len(fr.DeficitMonths) == 0 {
		return
	}

	alert, _ := json.Marshal(map[string]any{
		"calcId":             calc.ID,
		"deficitMonths":      fr.DeficitMonths,
		"lowestBalance":      fr.LowestBalance,
		"lowestBalanceMonth": fr.LowestBalanceMonth,
		"runwayMonths":       fr.RunwayMonths,
	})
	if err := h.bus.Publish(ctx, calc.TenantID, domain.TopicDeficitAlert, alert); err != nil {
		slog.Error("failed to publish deficit alert", "calc_id", calc.ID, "error", err)
	}
}

// AssessRequest is the request body for POST /assess.
type AssessRequest struct {
	Scenario domain.ScenarioInput `json:"scenario"`

	// Indices optionally adds composite index inputs to the policy run.
	Indices *domain.CompositeInputs `json:"indices,omitempty"`

	// Industry selects a stored benchmark template; Bands overrides it.
	Industry string                           `json:"industry,omitempty"`
	Bands    map[string]domain.BenchmarkRange `json:"bands,omitempty"`

	// ProfileID selects a stored health profile; empty uses defaults.
	ProfileID string `json:"profileId,omitempty"`
}

// Assess handles POST /assess: metrics, benchmark classification,
// policy rules, and the weighted health score in one pass.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req AssessRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if h.quota != nil {
		if err := h.quota.Allow(ctx, tenantID); err != nil {
			writeError(w, err)
			return
		}
	}

	m, err := h.pipeline.Metrics.Calculate(req.Scenario)
	if err != nil {
		writeError(w, err)
		return
	}

	var indices *domain.CompositeResult
	if req.Indices != nil {
		res, err := h.pipeline.Composite.Calculate(*req.Indices)
		if err != nil {
			writeError(w, err)
			return
		}
		indices = &res
	}

	bands := req.Bands
	if len(bands) == 0 && req.Industry != "" && h.repo != nil {
		tpl, err := h.repo.GetTemplate(ctx, req.Industry)
		if err != nil {
			writeError(w, err)
			return
		}
		bands = tpl.Bands
	}

	var profile *domain.HealthProfile
	if req.ProfileID != "" && h.repo != nil {
		profile, err = h.repo.GetHealthProfile(ctx, tenantID, req.ProfileID)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	calcID := uuid.New().String()

	var policyResults []domain.PolicyResult
	if h.rules != nil {
		policyResults, err = h.rules.EvaluateAll(ctx, &rules.EvaluateInput{
			TenantID: tenantID,
			CalcID:   calcID,
			Scenario: req.Scenario,
			Metrics:  m,
			Indices:  indices,
		})
		if err != nil {
			slog.Error("policy evaluation failed", "calc_id", calcID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "policy evaluation failed",
			})
			return
		}
	}

	assessment := h.processor.Process(ctx, &health.AssessmentInput{
		TenantID:      tenantID,
		TraceID:       traceID,
		Metrics:       m,
		Bands:         bands,
		Profile:       profile,
		PolicyResults: policyResults,
		StartTime:     start,
	})
	assessment.ID = calcID

	if h.repo != nil {
		rawInput, _ := json.Marshal(req)
		rawResult, _ := json.Marshal(assessment)
		calc := &domain.Calculation{
			ID:        calcID,
			TenantID:  tenantID,
			Kind:      domain.KindAssessment,
			Input:     rawInput,
			Result:    rawResult,
			CreatedAt: time.Now().UTC(),
			Metadata:  assessment.Metadata,
		}
		if err := h.repo.SaveCalculation(ctx, tenantID, calc); err != nil {
			slog.Error("failed to save assessment", "calc_id", calcID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

// GetCalculation retrieves a stored calculation by ID.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	calcID := chi.URLParam(r, "id")

	if calcID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "calculation id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	calc, err := h.repo.GetCalculation(ctx, tenantID, calcID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, calc)
}

// ListCalculations retrieves stored calculations, optionally filtered
// by kind and a since timestamp (RFC 3339).
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	kind := domain.CalculationKind(r.URL.Query().Get("kind"))

	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be an RFC 3339 timestamp",
			})
			return
		}
		since = parsed
	}

	calcs, err := h.repo.ListCalculations(ctx, tenantID, kind, since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"calculations": calcs,
		"count":        len(calcs),
	})
}

// ListTemplates returns all benchmark templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	templates, err := h.repo.ListTemplates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate retrieves a benchmark template by industry.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	industry := chi.URLParam(r, "industry")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tpl, err := h.repo.GetTemplate(r.Context(), industry)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tpl)
}

// PutTemplate creates or replaces a benchmark template. Templates are
// global; they seed inputs and bands for every tenant.
func (h *Handler) PutTemplate(w http.ResponseWriter, r *http.Request) {
	industry := chi.URLParam(r, "industry")

	var tpl domain.BenchmarkTemplate
	if !decodeBody(w, r, &tpl) {
		return
	}
	tpl.Industry = industry

	if tpl.Name == "" || len(tpl.Bands) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and bands are required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveTemplate(r.Context(), &tpl); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("template saved", "industry", tpl.Industry, "name", tpl.Name)
	writeJSON(w, http.StatusOK, tpl)
}

// GetProfile retrieves a health profile by ID.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	profileID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	profile, err := h.repo.GetHealthProfile(ctx, tenantID, profileID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// PutProfile creates or replaces a tenant health profile.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	profileID := chi.URLParam(r, "id")

	var profile domain.HealthProfile
	if !decodeBody(w, r, &profile) {
		return
	}
	profile.ID = profileID
	profile.TenantID = tenantID

	if len(profile.Weights) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one metric weight is required",
		})
		return
	}
	for _, mw := range profile.Weights {
		if mw.Weight < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "metric weights must be non-negative",
			})
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveHealthProfile(ctx, tenantID, &profile); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("health profile saved", "id", profile.ID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, profile)
}

// ListRules returns all loaded policy rules from the engine.
// Rules are loaded from the database at startup and can be reloaded
// via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.rules.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a policy rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.rules.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a policy rule.
type CreateRuleRequest struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Expression  string              `json:"expression"`
	Bands       []domain.PolicyBand `json:"bands"`
	Weight      float64             `json:"weight"`
	Enabled     bool                `json:"enabled"`
}

// CreateRule creates a new policy rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all
// tenants. After saving, call POST /rules/reload to apply.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	rule := &domain.PolicyRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression by attempting to load.
	if err := h.rules.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SavePolicyRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save policy rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("policy rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all policy rules from the database into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListPolicyRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.rules.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func calcResponse(calc *domain.Calculation) CalculationResponse {
	return CalculationResponse{
		CalculationID: calc.ID,
		Kind:          calc.Kind,
		Result:        calc.Result,
		Metadata:      calc.Metadata,
	}
}

// inputHash keys the result cache by kind plus canonical input JSON.
func inputHash(kind domain.CalculationKind, raw []byte) string {
	sum := sha256.New()
	sum.Write([]byte(kind))
	sum.Write([]byte{0})
	sum.Write(raw)
	return hex.EncodeToString(sum.Sum(nil))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return false
	}
	return true
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validate.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, quota.ErrQuotaExceeded):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
