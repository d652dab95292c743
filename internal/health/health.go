// Package health aggregates benchmark comparisons and policy verdicts
// into a weighted health assessment for a scenario.
package health

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/openplan-finance/compass/internal/benchmark"
	"github.com/openplan-finance/compass/internal/domain"
)

// Rating tier thresholds on the weighted 0-100 score.
const (
	ratingStrongMin = 85.0
	ratingSolidMin  = 70.0
	ratingWatchMin  = 50.0
)

// Processor builds assessments. The profile supplies per-metric
// weights; a nil profile falls back to the default table.
type Processor struct {
	// FlagCapScore caps the health score when any policy rule flags
	// the scenario. Zero disables the cap.
	FlagCapScore float64
}

// NewProcessor creates a processor with default settings.
func NewProcessor() *Processor {
	return &Processor{
		FlagCapScore: domain.ScoreBelowMedian,
	}
}

// AssessmentInput carries everything one assessment needs.
type AssessmentInput struct {
	TenantID string
	TraceID  string

	Metrics       domain.Metrics
	Bands         map[string]domain.BenchmarkRange
	Profile       *domain.HealthProfile
	PolicyResults []domain.PolicyResult

	StartTime time.Time
}

// Process classifies each weighted metric against its benchmark band,
// aggregates the weighted score, applies policy verdicts, and assigns
// the rating tier.
func (p *Processor) Process(ctx context.Context, input *AssessmentInput) *domain.Assessment {
	start := time.Now()

	profile := input.Profile
	if profile == nil {
		profile = benchmark.DefaultHealthProfile()
	}

	a := &domain.Assessment{
		ID:            uuid.New().String(),
		TenantID:      input.TenantID,
		Metrics:       input.Metrics,
		PolicyResults: input.PolicyResults,
		Timestamp:     time.Now().UTC(),
	}

	var totalWeight, weightedSum float64
	for _, w := range profile.Weights {
		value, ok := benchmark.MetricValue(input.Metrics, w.Metric)
		if !ok {
			continue
		}
		r, ok := input.Bands[w.Metric]
		if !ok {
			continue
		}

		cmp := benchmark.Compare(w.Metric, value, r, w.Direction)
		score := benchmark.Score(value, r, w.Direction)

		a.Comparisons = append(a.Comparisons, cmp)
		a.MetricScores = append(a.MetricScores, domain.MetricScore{
			Metric:       w.Metric,
			Value:        value,
			Bucket:       cmp.Bucket,
			Score:        score,
			Weight:       w.Weight,
			Contribution: score * w.Weight,
		})

		weightedSum += score * w.Weight
		totalWeight += w.Weight
	}

	if totalWeight > 0 {
		a.HealthScore = weightedSum / totalWeight
	}

	flagged := false
	for _, pr := range input.PolicyResults {
		switch pr.Verdict {
		case domain.VerdictFlag:
			flagged = true
			if pr.Reason != "" {
				a.Reasons = append(a.Reasons, pr.Reason)
			}
		case domain.VerdictWarn:
			if pr.Reason != "" {
				a.Reasons = append(a.Reasons, pr.Reason)
			}
		}
	}
	if flagged && p.FlagCapScore > 0 && a.HealthScore > p.FlagCapScore {
		a.HealthScore = p.FlagCapScore
	}

	a.Rating = rating(a.HealthScore)

	a.Metadata = domain.CalculationMetadata{
		TraceID:       input.TraceID,
		ComputeMs:     time.Since(start).Milliseconds(),
		EngineVersion: domain.EngineVersion,
	}
	if !input.StartTime.IsZero() {
		a.Metadata.ComputeMs = time.Since(input.StartTime).Milliseconds()
	}

	return a
}

func rating(score float64) string {
	switch {
	case score >= ratingStrongMin:
		return domain.RatingStrong
	case score >= ratingSolidMin:
		return domain.RatingSolid
	case score >= ratingWatchMin:
		return domain.RatingWatch
	default:
		return domain.RatingAtRisk
	}
}

// IsAtRisk reports whether an assessment landed in the lowest tier.
func IsAtRisk(a *domain.Assessment) bool {
	return a.Rating == domain.RatingAtRisk
}
