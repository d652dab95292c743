// Package benchmark classifies computed metrics against static
// industry percentile tables. Ranges are supplied externally and never
// mutated here.
package benchmark

import (
	"github.com/openplan-finance/compass/internal/domain"
)

// Compare buckets a value against its percentile bands. For
// higher-is-better metrics the bands read upward; for lower-is-better
// metrics (cost ratios, day counts) the comparisons invert.
func Compare(metric string, value float64, r domain.BenchmarkRange, dir domain.Direction) domain.Comparison {
	return domain.Comparison{
		Metric:    metric,
		Value:     value,
		Bucket:    bucket(value, r, dir),
		Direction: dir,
		Range:     r,
	}
}

func bucket(value float64, r domain.BenchmarkRange, dir domain.Direction) string {
	if dir == domain.LowerIsBetter {
		switch {
		case value <= r.P75:
			return domain.BucketTop25
		case value <= r.Median:
			return domain.BucketAboveMedian
		case value <= r.P25:
			return domain.BucketBelowMedian
		default:
			return domain.BucketBottom25
		}
	}

	switch {
	case value >= r.P75:
		return domain.BucketTop25
	case value >= r.Median:
		return domain.BucketAboveMedian
	case value >= r.P25:
		return domain.BucketBelowMedian
	default:
		return domain.BucketBottom25
	}
}

// Score maps a value onto the five-tier scale keyed on threshold
// crossings against optimal, p75, median, and p25.
func Score(value float64, r domain.BenchmarkRange, dir domain.Direction) float64 {
	if dir == domain.LowerIsBetter {
		switch {
		case value <= r.Optimal:
			return domain.ScoreOptimal
		case value <= r.P75:
			return domain.ScoreTop25
		case value <= r.Median:
			return domain.ScoreAboveMedian
		case value <= r.P25:
			return domain.ScoreBelowMedian
		default:
			return domain.ScoreBottom25
		}
	}

	switch {
	case value >= r.Optimal:
		return domain.ScoreOptimal
	case value >= r.P75:
		return domain.ScoreTop25
	case value >= r.Median:
		return domain.ScoreAboveMedian
	case value >= r.P25:
		return domain.ScoreBelowMedian
	default:
		return domain.ScoreBottom25
	}
}

// DefaultHealthProfile is the weight table used when a tenant has not
// configured one. Weights sum to 1.0.
func DefaultHealthProfile() *domain.HealthProfile {
	return &domain.HealthProfile{
		ID:      "profile-default",
		Name:    "Default investment health",
		Enabled: true,
		Weights: []domain.MetricWeight{
			{Metric: "npv", Weight: 0.30, Direction: domain.HigherIsBetter},
			{Metric: "roi", Weight: 0.25, Direction: domain.HigherIsBetter},
			{Metric: "irr", Weight: 0.20, Direction: domain.HigherIsBetter},
			{Metric: "paybackMonths", Weight: 0.25, Direction: domain.LowerIsBetter},
		},
	}
}

// MetricValue extracts a named metric from a computed result for
// comparison. Returns false for names the engine does not produce.
func MetricValue(m domain.Metrics, name string) (float64, bool) {
	switch name {
	case "npv":
		return m.NPV, true
	case "roi":
		return m.ROI, true
	case "irr":
		return m.IRR, true
	case "paybackMonths":
		return m.PaybackMonths, true
	}
	return 0, false
}
