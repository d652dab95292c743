package benchmark

import (
	"math"
	"testing"

	"github.com/openplan-finance/compass/internal/domain"
)

// roiRange reads upward: P25 < Median < P75 < Optimal.
var roiRange = domain.BenchmarkRange{P25: 5, Median: 12, P75: 25, Optimal: 40}

// paybackRange reads downward: fewer months is better, so the P75
// threshold is the smallest number.
var paybackRange = domain.BenchmarkRange{P25: 36, Median: 24, P75: 12, Optimal: 6}

func TestBucket(t *testing.T) {
	t.Run("HigherIsBetter", func(t *testing.T) {
		cases := []struct {
			value float64
			want  string
		}{
			{30, domain.BucketTop25},
			{25, domain.BucketTop25},
			{15, domain.BucketAboveMedian},
			{12, domain.BucketAboveMedian},
			{8, domain.BucketBelowMedian},
			{5, domain.BucketBelowMedian},
			{2, domain.BucketBottom25},
		}
		for _, tc := range cases {
			c := Compare("roi", tc.value, roiRange, domain.HigherIsBetter)
			if c.Bucket != tc.want {
				t.Errorf("bucket(%v) = %s, want %s", tc.value, c.Bucket, tc.want)
			}
		}
	})

	t.Run("LowerIsBetter", func(t *testing.T) {
		cases := []struct {
			value float64
			want  string
		}{
			{8, domain.BucketTop25},
			{12, domain.BucketTop25},
			{18, domain.BucketAboveMedian},
			{24, domain.BucketAboveMedian},
			{30, domain.BucketBelowMedian},
			{36, domain.BucketBelowMedian},
			{48, domain.BucketBottom25},
		}
		for _, tc := range cases {
			c := Compare("paybackMonths", tc.value, paybackRange, domain.LowerIsBetter)
			if c.Bucket != tc.want {
				t.Errorf("bucket(%v) = %s, want %s", tc.value, c.Bucket, tc.want)
			}
		}
	})

	t.Run("CarriesInputsThrough", func(t *testing.T) {
		c := Compare("roi", 15, roiRange, domain.HigherIsBetter)
		if c.Metric != "roi" || c.Value != 15 {
			t.Errorf("comparison did not carry metric/value: %+v", c)
		}
		if c.Direction != domain.HigherIsBetter {
			t.Errorf("direction = %v, want higherIsBetter", c.Direction)
		}
		if c.Range != roiRange {
			t.Errorf("range = %+v, want input range", c.Range)
		}
	})
}

func TestScore(t *testing.T) {
	t.Run("HigherIsBetterTiers", func(t *testing.T) {
		cases := []struct {
			value float64
			want  float64
		}{
			{45, domain.ScoreOptimal},
			{40, domain.ScoreOptimal},
			{30, domain.ScoreTop25},
			{15, domain.ScoreAboveMedian},
			{8, domain.ScoreBelowMedian},
			{2, domain.ScoreBottom25},
		}
		for _, tc := range cases {
			if got := Score(tc.value, roiRange, domain.HigherIsBetter); got != tc.want {
				t.Errorf("Score(%v) = %v, want %v", tc.value, got, tc.want)
			}
		}
	})

	t.Run("LowerIsBetterTiers", func(t *testing.T) {
		cases := []struct {
			value float64
			want  float64
		}{
			{4, domain.ScoreOptimal},
			{6, domain.ScoreOptimal},
			{10, domain.ScoreTop25},
			{20, domain.ScoreAboveMedian},
			{30, domain.ScoreBelowMedian},
			{48, domain.ScoreBottom25},
		}
		for _, tc := range cases {
			if got := Score(tc.value, paybackRange, domain.LowerIsBetter); got != tc.want {
				t.Errorf("Score(%v) = %v, want %v", tc.value, got, tc.want)
			}
		}
	})
}

func TestDefaultHealthProfile(t *testing.T) {
	p := DefaultHealthProfile()

	if !p.Enabled {
		t.Error("default profile should be enabled")
	}
	if len(p.Weights) != 4 {
		t.Fatalf("weights = %d, want 4", len(p.Weights))
	}

	var sum float64
	for _, w := range p.Weights {
		if w.Weight <= 0 {
			t.Errorf("weight for %s = %v, want positive", w.Metric, w.Weight)
		}
		sum += w.Weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("weights sum to %v, want 1.0", sum)
	}

	for _, w := range p.Weights {
		wantDir := domain.HigherIsBetter
		if w.Metric == "paybackMonths" {
			wantDir = domain.LowerIsBetter
		}
		if w.Direction != wantDir {
			t.Errorf("%s direction = %v, want %v", w.Metric, w.Direction, wantDir)
		}
	}
}

func TestMetricValue(t *testing.T) {
	m := domain.Metrics{NPV: 10000, ROI: 20, IRR: 41.3, PaybackMonths: 10}

	cases := map[string]float64{
		"npv":           10000,
		"roi":           20,
		"irr":           41.3,
		"paybackMonths": 10,
	}
	for name, want := range cases {
		got, ok := MetricValue(m, name)
		if !ok {
			t.Errorf("MetricValue(%s) not found", name)
			continue
		}
		if got != want {
			t.Errorf("MetricValue(%s) = %v, want %v", name, got, want)
		}
	}

	if _, ok := MetricValue(m, "ebitda"); ok {
		t.Error("unknown metric should not resolve")
	}
}
