package domain

// BenchmarkRange holds the industry percentile bands for one metric.
// Supplied by the template provider and never mutated by the engine.
type BenchmarkRange struct {
	P25     float64 `json:"p25"`
	Median  float64 `json:"median"`
	P75     float64 `json:"p75"`
	Optimal float64 `json:"optimal"`
}

// Direction states whether larger metric values are better.
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// Percentile buckets returned by the comparator.
const (
	BucketTop25       = "top25"
	BucketAboveMedian = "aboveMedian"
	BucketBelowMedian = "belowMedian"
	BucketBottom25    = "bottom25"
)

// Comparison is the classification of one metric against its bands.
type Comparison struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Bucket    string    `json:"bucket"`
	Direction Direction `json:"direction"`
	Range     BenchmarkRange `json:"range"`
}

// MetricWeight assigns a metric its share of the weighted health score.
type MetricWeight struct {
	Metric    string    `json:"metric"`
	Weight    float64   `json:"weight"`
	Direction Direction `json:"direction"`
}

// HealthProfile groups the metric weights used to aggregate a health
// score. Tenants may store their own profiles; DefaultHealthProfile is
// used when none is configured.
type HealthProfile struct {
	ID       string         `json:"id"`
	TenantID string         `json:"tenantId,omitempty"`
	Name     string         `json:"name"`
	Weights  []MetricWeight `json:"weights"`
	Enabled  bool           `json:"enabled"`
}

// Tier scores for threshold crossings against optimal/p75/median/p25.
const (
	ScoreOptimal     = 100.0
	ScoreTop25       = 85.0
	ScoreAboveMedian = 70.0
	ScoreBelowMedian = 50.0
	ScoreBottom25    = 30.0
)

// MetricScore is one metric's contribution to the health score.
type MetricScore struct {
	Metric       string  `json:"metric"`
	Value        float64 `json:"value"`
	Bucket       string  `json:"bucket"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// BenchmarkTemplate maps an industry to default scenario inputs and
// its benchmark bands. Treated as static read-only configuration.
type BenchmarkTemplate struct {
	Industry string                    `json:"industry"`
	Name     string                    `json:"name"`
	Defaults ScenarioInput             `json:"defaults"`
	Bands    map[string]BenchmarkRange `json:"bands"`
}
