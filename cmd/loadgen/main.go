// Load generator for testing Compass with scenario datasets.
//
// Usage:
//   go run cmd/loadgen/main.go -csv /path/to/scenarios.csv -url http://localhost:8080
//
// This tool:
//  1. Reads scenario inputs from a CSV file
//  2. Sends each scenario to Compass for calculation
//  3. Reports throughput, latency percentiles, and cache hit rate
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ScenarioRow is one row of the scenario dataset.
type ScenarioRow struct {
	InitialInvestment float64
	DiscountRate      float64
	ProjectDuration   int
	YearlyRevenue     float64
	RevenueGrowth     float64
	OperatingCosts    float64
	MaintenanceCosts  float64
}

// MetricsRequest is the Compass API request format.
type MetricsRequest struct {
	InitialInvestment float64 `json:"initialInvestment"`
	DiscountRate      float64 `json:"discountRate"`
	ProjectDuration   int     `json:"projectDuration"`
	YearlyRevenue     float64 `json:"yearlyRevenue"`
	RevenueGrowth     float64 `json:"revenueGrowth"`
	OperatingCosts    float64 `json:"operatingCosts"`
	MaintenanceCosts  float64 `json:"maintenanceCosts"`
}

// MetricsResponse is the Compass API response format.
type MetricsResponse struct {
	CalculationID string          `json:"calculationId"`
	Result        json.RawMessage `json:"result"`
	Metadata      struct {
		ComputeMs int64 `json:"computeMs"`
		CacheHit  bool  `json:"cacheHit"`
		Offloaded bool  `json:"offloaded"`
	} `json:"metadata"`
}

// Stats tracks load generation results.
type Stats struct {
	TotalProcessed int64
	TotalErrors    int64
	CacheHits      int64
	Offloaded      int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *Stats) recordLatency(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func main() {
	csvPath := flag.String("csv", "", "Path to scenario CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Compass base URL")
	tenantID := flag.String("tenant", "loadgen-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum scenarios to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	repeat := flag.Int("repeat", 1, "Times to replay the dataset (exercises the result cache)")
	verbose := flag.Bool("verbose", false, "Print each scenario result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: loadgen -csv /path/to/scenarios.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           COMPASS LOADGEN - Scenario Replay                   ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Compass URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Repeat:      %d\n", *repeat)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Compass not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Compass is running:")
		fmt.Println("  go run cmd/compass/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Compass is healthy")

	fmt.Printf("\nReading scenarios from %s...\n", *csvPath)
	scenarios, err := readScenarioCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d scenarios\n", len(scenarios))

	fmt.Printf("\nRunning with %d workers...\n", *workers)
	startTime := time.Now()
	stats := run(scenarios, *baseURL, *tenantID, *workers, *repeat, *verbose)
	duration := time.Since(startTime)

	printResults(stats, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readScenarioCSV(path string, limit int) ([]ScenarioRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	col := func(record []string, name string) float64 {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return 0
		}
		v, _ := strconv.ParseFloat(record[idx], 64)
		return v
	}

	var scenarios []ScenarioRow

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		row := ScenarioRow{
			InitialInvestment: col(record, "initialinvestment"),
			DiscountRate:      col(record, "discountrate"),
			ProjectDuration:   int(col(record, "projectduration")),
			YearlyRevenue:     col(record, "yearlyrevenue"),
			RevenueGrowth:     col(record, "revenuegrowth"),
			OperatingCosts:    col(record, "operatingcosts"),
			MaintenanceCosts:  col(record, "maintenancecosts"),
		}

		scenarios = append(scenarios, row)

		if limit > 0 && len(scenarios) >= limit {
			break
		}
	}

	return scenarios, nil
}

func run(scenarios []ScenarioRow, baseURL, tenantID string, numWorkers, repeat int, verbose bool) *Stats {
	stats := &Stats{}

	work := make(chan ScenarioRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 60 * time.Second}

			for row := range work {
				start := time.Now()
				result, err := calculate(client, baseURL, tenantID, row)
				elapsed := time.Since(start)

				atomic.AddInt64(&stats.TotalProcessed, 1)
				stats.recordLatency(elapsed)

				if err != nil {
					atomic.AddInt64(&stats.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: investment %.2f -> %v\n", row.InitialInvestment, err)
					}
					continue
				}

				if result.Metadata.CacheHit {
					atomic.AddInt64(&stats.CacheHits, 1)
				}
				if result.Metadata.Offloaded {
					atomic.AddInt64(&stats.Offloaded, 1)
				}

				if verbose {
					fmt.Printf("✓ inv: $%12.2f | dur: %3d mo | %6.1fms | cache: %-5v | offloaded: %v\n",
						row.InitialInvestment,
						row.ProjectDuration,
						float64(elapsed.Microseconds())/1000,
						result.Metadata.CacheHit,
						result.Metadata.Offloaded,
					)
				}
			}
		}()
	}

	for r := 0; r < repeat; r++ {
		for _, row := range scenarios {
			work <- row
		}
	}
	close(work)

	wg.Wait()
	return stats
}

func calculate(client *http.Client, baseURL, tenantID string, row ScenarioRow) (*MetricsResponse, error) {
	req := MetricsRequest{
		InitialInvestment: row.InitialInvestment,
		DiscountRate:      row.DiscountRate,
		ProjectDuration:   row.ProjectDuration,
		YearlyRevenue:     row.YearlyRevenue,
		RevenueGrowth:     row.RevenueGrowth,
		OperatingCosts:    row.OperatingCosts,
		MaintenanceCosts:  row.MaintenanceCosts,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/metrics", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result MetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(stats *Stats, duration time.Duration) {
	sort.Slice(stats.latencies, func(i, j int) bool {
		return stats.latencies[i] < stats.latencies[j]
	})

	percentile := func(p float64) time.Duration {
		if len(stats.latencies) == 0 {
			return 0
		}
		idx := int(float64(len(stats.latencies)-1) * p)
		return stats.latencies[idx]
	}

	processed := atomic.LoadInt64(&stats.TotalProcessed)
	errors := atomic.LoadInt64(&stats.TotalErrors)
	cacheHits := atomic.LoadInt64(&stats.CacheHits)
	offloaded := atomic.LoadInt64(&stats.Offloaded)

	throughput := float64(processed) / duration.Seconds()

	fmt.Println()
	fmt.Println("═══════════════════════ RESULTS ═══════════════════════")
	fmt.Printf("Processed:   %d in %s (%.1f req/s)\n", processed, duration.Round(time.Millisecond), throughput)
	fmt.Printf("Errors:      %d\n", errors)
	if processed > 0 {
		fmt.Printf("Cache hits:  %d (%.1f%%)\n", cacheHits, 100*float64(cacheHits)/float64(processed))
		fmt.Printf("Offloaded:   %d (%.1f%%)\n", offloaded, 100*float64(offloaded)/float64(processed))
	}
	fmt.Println()
	fmt.Println("Latency:")
	fmt.Printf("  p50:  %s\n", percentile(0.50).Round(time.Microsecond))
	fmt.Printf("  p95:  %s\n", percentile(0.95).Round(time.Microsecond))
	fmt.Printf("  p99:  %s\n", percentile(0.99).Round(time.Microsecond))
	if len(stats.latencies) > 0 {
		fmt.Printf("  max:  %s\n", stats.latencies[len(stats.latencies)-1].Round(time.Microsecond))
	}
	fmt.Println()
}
