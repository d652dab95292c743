// Package worker provides async calculation processing.
//
// Long-horizon requests are offloaded here over the event bus; the
// worker runs the same engine pipeline as the synchronous path,
// persists the result, and replies on the topic named in MetaReplyTo.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openplan-finance/compass/internal/amortize"
	"github.com/openplan-finance/compass/internal/composite"
	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/forecast"
	"github.com/openplan-finance/compass/internal/metrics"
	"github.com/openplan-finance/compass/internal/sensitivity"
)

// CalcRequest is the offload message payload.
type CalcRequest struct {
	CalcID   string                 `json:"calcId"`
	TenantID string                 `json:"tenantId"`
	TraceID  string                 `json:"traceId,omitempty"`
	Kind     domain.CalculationKind `json:"kind"`
	Input    json.RawMessage        `json:"input"`
}

// CalcReply is the offload response payload.
type CalcReply struct {
	CalcID string          `json:"calcId"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ScenariosInput is the payload for scenario-set calculations.
type ScenariosInput struct {
	domain.ScenarioInput
	BestMultiplier  float64 `json:"bestMultiplier,omitempty"`
	WorstMultiplier float64 `json:"worstMultiplier,omitempty"`
}

// SweepInput is the payload for sensitivity sweeps.
type SweepInput struct {
	Base       domain.ScenarioInput `json:"base"`
	Variables  []string             `json:"variables,omitempty"`
	Variations []float64            `json:"variations,omitempty"`
}

// Pipeline dispatches a calculation kind to its engine. The HTTP
// handlers use the same pipeline for the synchronous path so offloaded
// and inline results are identical.
type Pipeline struct {
	Metrics     *metrics.Engine
	Amortize    *amortize.Engine
	Forecast    *forecast.Engine
	Composite   *composite.Engine
	Sensitivity *sensitivity.Engine
}

// NewPipeline wires a pipeline from the given engines.
func NewPipeline(m *metrics.Engine, a *amortize.Engine, f *forecast.Engine, c *composite.Engine, s *sensitivity.Engine) *Pipeline {
	return &Pipeline{
		Metrics:     m,
		Amortize:    a,
		Forecast:    f,
		Composite:   c,
		Sensitivity: s,
	}
}

// Run executes one calculation and returns the JSON-encoded result.
func (p *Pipeline) Run(ctx context.Context, kind domain.CalculationKind, input json.RawMessage) (json.RawMessage, error) {
	switch kind {
	case domain.KindMetrics:
		var in domain.ScenarioInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
		res, err := p.Metrics.Calculate(in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	case domain.KindScenarios:
		var in ScenariosInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
		best := in.BestMultiplier
		if best == 0 {
			best = domain.DefaultBestMultiplier
		}
		worst := in.WorstMultiplier
		if worst == 0 {
			worst = domain.DefaultWorstMultiplier
		}
		res, err := p.Metrics.CalculateScenarios(in.ScenarioInput, best, worst)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	case domain.KindLoan:
		var in domain.LoanInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
		res, err := p.Amortize.Calculate(in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	case domain.KindForecast:
		var in domain.ForecastInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
		res, err := p.Forecast.Calculate(in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	case domain.KindBreakEven:
		var in domain.BreakEvenInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
		res, err := p.Metrics.BreakEven(in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	case domain.KindComposite:
		var in domain.CompositeInputs
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
		res, err := p.Composite.Calculate(in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	case domain.KindSensitivity:
		var in SweepInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
		res, err := p.Sensitivity.Sweep(in.Base, in.Variables, in.Variations)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	default:
		return nil, fmt.Errorf("unsupported calculation kind: %s", kind)
	}
}

// Worker processes calculation requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	pipeline *Pipeline

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global worker)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, pipeline *Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing calculation requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants.
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicCalcRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicCalcRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processCalculation(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicCalcRequested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processCalculation(ctx, msg.TenantID, msg)
}

// processCalculation runs one offloaded calculation end to end.
func (w *Worker) processCalculation(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req CalcRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse calculation request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if req.TenantID != "" {
		tenantID = req.TenantID
	}
	if req.CalcID == "" {
		req.CalcID = uuid.New().String()
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing calculation",
		"calc_id", req.CalcID,
		"tenant_id", tenantID,
		"kind", req.Kind,
		"trace_id", traceID,
	)

	result, err := w.pipeline.Run(ctx, req.Kind, req.Input)
	if err != nil {
		slog.Error("calculation failed",
			"calc_id", req.CalcID,
			"kind", req.Kind,
			"error", err,
		)
		w.reply(ctx, tenantID, msg, CalcReply{CalcID: req.CalcID, Error: err.Error()})
		return err
	}

	calc := &domain.Calculation{
		ID:        req.CalcID,
		TenantID:  tenantID,
		Kind:      req.Kind,
		Input:     req.Input,
		Result:    result,
		CreatedAt: time.Now().UTC(),
		Metadata: domain.CalculationMetadata{
			TraceID:       traceID,
			ComputeMs:     time.Since(start).Milliseconds(),
			Offloaded:     true,
			EngineVersion: domain.EngineVersion,
		},
	}

	if w.repo != nil {
		if err := w.repo.SaveCalculation(ctx, tenantID, calc); err != nil {
			slog.Error("failed to save calculation",
				"calc_id", req.CalcID,
				"error", err,
			)
		}
	}

	w.reply(ctx, tenantID, msg, CalcReply{CalcID: req.CalcID, Result: result})

	completedPayload, _ := json.Marshal(calc)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicCalcCompleted, completedPayload); err != nil {
		slog.Error("failed to publish completion",
			"calc_id", req.CalcID,
			"error", err,
		)
	}

	if req.Kind == domain.KindForecast {
		w.checkDeficit(ctx, tenantID, req.CalcID, result)
	}

	slog.Info("calculation processed",
		"calc_id", req.CalcID,
		"tenant_id", tenantID,
		"kind", req.Kind,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// reply publishes the response to the reply topic, when one was given.
func (w *Worker) reply(ctx context.Context, tenantID string, msg *domain.Message, rep CalcReply) {
	replyTo := msg.Metadata[domain.MetaReplyTo]
	if replyTo == "" {
		return
	}

	payload, err := json.Marshal(rep)
	if err != nil {
		return
	}
	if err := w.bus.Publish(ctx, tenantID, replyTo, payload); err != nil {
		slog.Error("failed to publish reply",
			"calc_id", rep.CalcID,
			"reply_to", replyTo,
			"error", err,
		)
	}
}

// checkDeficit publishes a deficit alert for unhealthy forecasts.
func (w *Worker) checkDeficit(ctx context.Context, tenantID, calcID string, result json.RawMessage) {
	var fr domain.ForecastResult
	if err := json.Unmarshal(result, &fr); err != nil {
		return
	}
	if len(fr.DeficitMonths) == 0 {
		return
	}

	alert, _ := json.Marshal(map[string]any{
		"calcId":             calcID,
		"deficitMonths":      fr.DeficitMonths,
		"lowestBalance":      fr.LowestBalance,
		"lowestBalanceMonth": fr.LowestBalanceMonth,
		"runwayMonths":       fr.RunwayMonths,
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicDeficitAlert, alert); err != nil {
		slog.Error("failed to publish deficit alert",
			"calc_id", calcID,
			"error", err,
		)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
