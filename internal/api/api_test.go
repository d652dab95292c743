package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openplan-finance/compass/internal/amortize"
	"github.com/openplan-finance/compass/internal/bus"
	"github.com/openplan-finance/compass/internal/cache"
	"github.com/openplan-finance/compass/internal/composite"
	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/forecast"
	"github.com/openplan-finance/compass/internal/health"
	"github.com/openplan-finance/compass/internal/metrics"
	"github.com/openplan-finance/compass/internal/quota"
	"github.com/openplan-finance/compass/internal/repository"
	"github.com/openplan-finance/compass/internal/rules"
	"github.com/openplan-finance/compass/internal/sensitivity"
	"github.com/openplan-finance/compass/internal/worker"
)

func newTestServer(t *testing.T, monthlyQuota int) *Server {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "compass-api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(1000)
	t.Cleanup(func() { c.Close() })

	b := bus.NewChannelBus(100)
	t.Cleanup(func() { b.Close() })

	metricsEngine := metrics.NewEngine()
	pipeline := worker.NewPipeline(
		metricsEngine,
		amortize.NewEngine(),
		forecast.NewEngine(),
		composite.NewEngine(),
		sensitivity.NewEngine(metricsEngine, 4),
	)

	rulesEngine, err := rules.NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create rules engine: %v", err)
	}
	t.Cleanup(func() { rulesEngine.Close() })

	engineCfg := domain.EngineConfig{
		OffloadThresholdMonths: 0,
		SweepWorkers:           4,
		ResultCacheTTL:         time.Hour,
		MonthlyQuota:           monthlyQuota,
	}

	return NewServer(
		domain.ServerConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: 5, WriteTimeout: 5},
		repo, c, b, pipeline, rulesEngine, health.NewProcessor(),
		quota.NewTracker(c, monthlyQuota),
		engineCfg, "test",
	)
}

func doRequest(t *testing.T, srv *Server, method, path, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if tenantID != "" {
		req.Header.Set(TenantIDHeader, tenantID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %s: %v", rec.Body.String(), err)
	}
}

const flatScenarioBody = `{
	"initialInvestment": 50000,
	"discountRate": 0,
	"projectDuration": 12,
	"yearlyRevenue": 120000,
	"revenueGrowth": 0,
	"operatingCosts": 60000
}`

func TestTenantRequired(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := doRequest(t, srv, http.MethodPost, "/metrics", "", flatScenarioBody)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without tenant header", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "X-Tenant-ID") {
		t.Errorf("body = %s, want tenant header error", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("Health", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/health", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp map[string]string
		decodeJSON(t, rec, &resp)
		if resp["status"] != "healthy" {
			t.Errorf("status = %q, want healthy", resp["status"])
		}
		if resp["version"] != "test" {
			t.Errorf("version = %q, want test", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/ready", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}

func TestCalculateMetrics(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("FlatScenario", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/metrics", "t1", flatScenarioBody)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp CalculationResponse
		decodeJSON(t, rec, &resp)
		if resp.CalculationID == "" {
			t.Error("calculationId is empty")
		}
		if resp.Kind != domain.KindMetrics {
			t.Errorf("kind = %s, want %s", resp.Kind, domain.KindMetrics)
		}
		if resp.Metadata.CacheHit {
			t.Error("first calculation should not be a cache hit")
		}

		var m domain.Metrics
		if err := json.Unmarshal(resp.Result, &m); err != nil {
			t.Fatalf("failed to decode result: %v", err)
		}
		if m.NPV != 10000 {
			t.Errorf("npv = %v, want 10000", m.NPV)
		}
		if m.ROI != 20 {
			t.Errorf("roi = %v, want 20", m.ROI)
		}
	})

	t.Run("SecondCallHitsCache", func(t *testing.T) {
		first := doRequest(t, srv, http.MethodPost, "/metrics", "t2", flatScenarioBody)
		if first.Code != http.StatusOK {
			t.Fatalf("first status = %d", first.Code)
		}
		var firstResp CalculationResponse
		decodeJSON(t, first, &firstResp)

		second := doRequest(t, srv, http.MethodPost, "/metrics", "t2", flatScenarioBody)
		if second.Code != http.StatusOK {
			t.Fatalf("second status = %d", second.Code)
		}
		var secondResp CalculationResponse
		decodeJSON(t, second, &secondResp)

		if !secondResp.Metadata.CacheHit {
			t.Error("repeated identical calculation should be a cache hit")
		}
		if secondResp.CalculationID != firstResp.CalculationID {
			t.Errorf("cached calculationId = %s, want %s", secondResp.CalculationID, firstResp.CalculationID)
		}
	})

	t.Run("CacheIsTenantScoped", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/metrics", "t3", flatScenarioBody)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp CalculationResponse
		decodeJSON(t, rec, &resp)
		if resp.Metadata.CacheHit {
			t.Error("another tenant must not see a cached result")
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/metrics", "t1", `{"initialInvestment":-1,"projectDuration":12,"yearlyRevenue":100}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid input") {
			t.Errorf("body = %s, want validation error", rec.Body.String())
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/metrics", "t1", `{"initialInvestment":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid JSON request body") {
			t.Errorf("body = %s", rec.Body.String())
		}
	})
}

func TestCalculateBreakEven(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := doRequest(t, srv, http.MethodPost, "/breakeven", "t1", `{
		"fixedCosts": 50000,
		"pricePerUnit": 25,
		"variableCostPerUnit": 10
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CalculationResponse
	decodeJSON(t, rec, &resp)

	var be domain.BreakEvenResult
	if err := json.Unmarshal(resp.Result, &be); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if be.Units != 3334 {
		t.Errorf("units = %d, want 3334", be.Units)
	}
}

func TestCalculateLoan(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := doRequest(t, srv, http.MethodPost, "/loans", "t1", `{
		"principal": 100000,
		"annualRate": 8,
		"termMonths": 60
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CalculationResponse
	decodeJSON(t, rec, &resp)
	if resp.Kind != domain.KindLoan {
		t.Errorf("kind = %s, want %s", resp.Kind, domain.KindLoan)
	}
}

func TestCalculateForecast(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := doRequest(t, srv, http.MethodPost, "/forecasts", "t1", `{
		"startingCash": 100000,
		"monthlyRevenue": 50000,
		"monthlyExpenses": 30000
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CalculationResponse
	decodeJSON(t, rec, &resp)
	if resp.Kind != domain.KindForecast {
		t.Errorf("kind = %s, want %s", resp.Kind, domain.KindForecast)
	}
}

func TestGetCalculation(t *testing.T) {
	srv := newTestServer(t, 0)

	created := doRequest(t, srv, http.MethodPost, "/metrics", "t1", flatScenarioBody)
	if created.Code != http.StatusOK {
		t.Fatalf("create status = %d", created.Code)
	}
	var resp CalculationResponse
	decodeJSON(t, created, &resp)

	t.Run("Found", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/calculations/"+resp.CalculationID, "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var calc domain.Calculation
		decodeJSON(t, rec, &calc)
		if calc.ID != resp.CalculationID || calc.Kind != domain.KindMetrics {
			t.Errorf("got %+v", calc)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/calculations/no-such-id", "t1", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("OtherTenantCannotRead", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/calculations/"+resp.CalculationID, "t2", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404 across tenants", rec.Code)
		}
	})
}

func TestListCalculations(t *testing.T) {
	srv := newTestServer(t, 0)

	if rec := doRequest(t, srv, http.MethodPost, "/metrics", "t1", flatScenarioBody); rec.Code != http.StatusOK {
		t.Fatalf("seed metrics status = %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodPost, "/breakeven", "t1", `{"fixedCosts":1000,"pricePerUnit":10,"variableCostPerUnit":5}`); rec.Code != http.StatusOK {
		t.Fatalf("seed breakeven status = %d", rec.Code)
	}

	t.Run("All", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/calculations", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp struct {
			Calculations []domain.Calculation `json:"calculations"`
			Count        int                  `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 2 || len(resp.Calculations) != 2 {
			t.Errorf("count = %d, want 2", resp.Count)
		}
	})

	t.Run("FilterByKind", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/calculations?kind=metrics", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1 metrics calculation", resp.Count)
		}
	})

	t.Run("BadSince", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/calculations?since=yesterday", "t1", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 for invalid since", rec.Code)
		}
	})
}

func TestTemplates(t *testing.T) {
	srv := newTestServer(t, 0)

	templateBody := `{
		"name": "SaaS benchmarks",
		"defaults": {"initialInvestment": 100000, "projectDuration": 36, "yearlyRevenue": 500000},
		"bands": {"roi": {"p25": 5, "median": 12, "p75": 25, "optimal": 40}}
	}`

	t.Run("PutAndGet", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, "/templates/saas", "t1", templateBody)
		if rec.Code != http.StatusOK {
			t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
		}

		rec = doRequest(t, srv, http.MethodGet, "/templates/saas", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}

		var tpl domain.BenchmarkTemplate
		decodeJSON(t, rec, &tpl)
		if tpl.Industry != "saas" || tpl.Name != "SaaS benchmarks" {
			t.Errorf("got %+v", tpl)
		}
		if tpl.Bands["roi"].Optimal != 40 {
			t.Errorf("bands = %+v", tpl.Bands)
		}
	})

	t.Run("MissingNameRejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, "/templates/retail", "t1", `{"bands":{"roi":{"median":12}}}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 without name", rec.Code)
		}
	})

	t.Run("MissingBandsRejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, "/templates/retail", "t1", `{"name":"Retail"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 without bands", rec.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/templates/mining", "t1", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/templates", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestProfiles(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("PutAndGet", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, "/profiles/conservative", "t1", `{
			"name": "Conservative",
			"enabled": true,
			"weights": [
				{"metric": "npv", "weight": 0.6, "direction": "higher"},
				{"metric": "paybackMonths", "weight": 0.4, "direction": "lower"}
			]
		}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
		}

		rec = doRequest(t, srv, http.MethodGet, "/profiles/conservative", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}

		var profile domain.HealthProfile
		decodeJSON(t, rec, &profile)
		if profile.ID != "conservative" || len(profile.Weights) != 2 {
			t.Errorf("got %+v", profile)
		}
	})

	t.Run("NoWeightsRejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, "/profiles/empty", "t1", `{"name":"Empty","weights":[]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 without weights", rec.Code)
		}
	})

	t.Run("NegativeWeightRejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, "/profiles/bad", "t1", `{
			"name": "Bad",
			"weights": [{"metric": "npv", "weight": -1, "direction": "higher"}]
		}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 for negative weight", rec.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/profiles/nope", "t1", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestRules(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("Create", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/rules", "t1", `{
			"id": "negative-npv",
			"name": "Negative NPV",
			"expression": "npv < 0.0",
			"weight": 1.0,
			"enabled": true
		}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("MissingFieldsRejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/rules", "t1", `{"id":"x"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("InvalidExpressionRejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/rules", "t1", `{
			"id": "broken",
			"name": "Broken",
			"expression": "npv <<< 0"
		}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 for bad expression", rec.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/rules", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp struct {
			Count  int    `json:"count"`
			Source string `json:"source"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}
		if resp.Source != "database" {
			t.Errorf("source = %q, want database", resp.Source)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/rules/no-such-rule", "t1", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/rules/reload", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count != 1 {
			t.Errorf("reloaded count = %d, want 1", resp.Count)
		}
	})
}

func TestAssess(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("WithInlineBands", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/assess", "t1", `{
			"scenario": {
				"initialInvestment": 50000,
				"discountRate": 0,
				"projectDuration": 12,
				"yearlyRevenue": 120000,
				"operatingCosts": 60000
			},
			"bands": {
				"npv": {"p25": 1000, "median": 5000, "p75": 9000, "optimal": 20000},
				"roi": {"p25": 5, "median": 12, "p75": 18, "optimal": 40},
				"paybackMonths": {"p25": 12, "median": 11, "p75": 10, "optimal": 6}
			}
		}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var a domain.Assessment
		decodeJSON(t, rec, &a)
		if a.ID == "" {
			t.Error("assessment id is empty")
		}
		if a.Metrics.NPV != 10000 {
			t.Errorf("npv = %v, want 10000", a.Metrics.NPV)
		}
		if len(a.Comparisons) == 0 {
			t.Error("expected benchmark comparisons")
		}
		if a.HealthScore <= 0 {
			t.Errorf("health score = %v, want positive", a.HealthScore)
		}
		if a.Rating == "" {
			t.Error("rating is empty")
		}
	})

	t.Run("PersistedAsCalculation", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/calculations?kind=assessment", "t1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		decodeJSON(t, rec, &resp)
		if resp.Count < 1 {
			t.Error("assessment was not persisted")
		}
	})

	t.Run("InvalidScenario", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/assess", "t1", `{"scenario":{"initialInvestment":-5}}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestQuotaEnforced(t *testing.T) {
	srv := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/metrics", "t1", flatScenarioBody)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d status = %d", i+1, rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodPost, "/metrics", "t1", flatScenarioBody)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 over quota", rec.Code)
	}

	// Another tenant has its own counter.
	rec = doRequest(t, srv, http.MethodPost, "/metrics", "t2", flatScenarioBody)
	if rec.Code != http.StatusOK {
		t.Errorf("t2 status = %d, quota must be per tenant", rec.Code)
	}
}
