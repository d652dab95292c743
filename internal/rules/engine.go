// Package rules provides the CEL-Go based policy evaluation engine.
// Policies are tenant-configurable expressions over computed metrics,
// e.g. "npv < 0.0 || payback_months > 48.0".
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/openplan-finance/compass/internal/domain"
)

// Engine is the CEL-based policy evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.PolicyRule
	Program cel.Program
}

// NewEngine creates a new policy evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with the computed-metric variables.
	env, err := cel.NewEnv(
		cel.Variable("metrics", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("npv", cel.DoubleType),
		cel.Variable("roi", cel.DoubleType),
		cel.Variable("irr", cel.DoubleType),
		cel.Variable("irr_converged", cel.BoolType),
		cel.Variable("payback_months", cel.DoubleType),
		cel.Variable("project_duration", cel.IntType),
		cel.Variable("initial_investment", cel.DoubleType),
		// Composite indices, zero when not computed for this run.
		cel.Variable("ofi", cel.DoubleType),
		cel.Variable("tfdi", cel.DoubleType),
		cel.Variable("ser", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded set.
func (e *Engine) ValidateRule(cfg *domain.PolicyRule) error {
	if cfg == nil {
		return fmt.Errorf("policy rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.PolicyRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(configs []*domain.PolicyRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules swaps the loaded set atomically (hot reload).
func (e *Engine) ReloadRules(configs []*domain.PolicyRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.compiledRules = next
	return nil
}

// EvaluateInput holds the computed values a policy run sees.
type EvaluateInput struct {
	TenantID string
	CalcID   string

	Scenario domain.ScenarioInput
	Metrics  domain.Metrics

	// Indices is optional; missing indices evaluate as zero.
	Indices *domain.CompositeResult
}

// EvaluateAll evaluates every loaded rule in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.PolicyResult, error) {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		loaded = append(loaded, r)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil, nil
	}

	activation := e.activation(input)

	results := make([]domain.PolicyResult, len(loaded))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range loaded {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.evaluateRule(r, activation, input)
		}(i, rule)
	}
	wg.Wait()

	return results, nil
}

func (e *Engine) activation(input *EvaluateInput) map[string]any {
	m := input.Metrics

	var ofi, tfdi, ser float64
	if input.Indices != nil {
		if input.Indices.Friction != nil {
			ofi = input.Indices.Friction.Value
		}
		if input.Indices.TechDebt != nil {
			tfdi = input.Indices.TechDebt.Value
		}
		if input.Indices.Efficiency != nil {
			ser = input.Indices.Efficiency.Value
		}
	}

	return map[string]any{
		"metrics": map[string]any{
			"npv":            m.NPV,
			"roi":            m.ROI,
			"irr":            m.IRR,
			"payback_months": m.PaybackMonths,
		},
		"npv":                m.NPV,
		"roi":                m.ROI,
		"irr":                m.IRR,
		"irr_converged":      m.IRRConverged,
		"payback_months":     m.PaybackMonths,
		"project_duration":   int64(input.Scenario.ProjectDuration),
		"initial_investment": input.Scenario.InitialInvestment,
		"ofi":                ofi,
		"tfdi":               tfdi,
		"ser":                ser,
	}
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any, input *EvaluateInput) domain.PolicyResult {
	start := time.Now()

	result := domain.PolicyResult{
		RuleID:   rule.Config.ID,
		TenantID: input.TenantID,
		Weight:   rule.Config.Weight,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Verdict = domain.VerdictError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	score := toScore(out)
	result.Score = score
	result.Verdict, result.Reason = matchBand(score, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score. Lower bound inclusive,
// upper bound exclusive; a nil upper bound means unbounded.
func matchBand(score float64, bands []domain.PolicyBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit == nil || score < *band.UpperLimit {
			return band.Verdict, band.Reason
		}
	}

	// A boolean rule with no bands reads naturally: true flags.
	if len(bands) == 0 && score >= 1.0 {
		return domain.VerdictFlag, ""
	}
	return domain.VerdictPass, ""
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.PolicyRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.PolicyRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		out = append(out, compiled.Config)
	}
	return out
}

// Close clears the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.PolicyRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}
