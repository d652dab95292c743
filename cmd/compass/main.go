// Compass - Financial calculations your whole team can trust.
// Copyright (c) 2025 openplan.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openplan-finance/compass/internal/amortize"
	"github.com/openplan-finance/compass/internal/api"
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

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("COMPASS_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting compass",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := loadConfig()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize calculation engines
	metricsEngine := metrics.NewEngine()
	pipeline := worker.NewPipeline(
		metricsEngine,
		amortize.NewEngine(),
		forecast.NewEngine(),
		composite.NewEngine(),
		sensitivity.NewEngine(metricsEngine, cfg.Engine.SweepWorkers),
	)
	slog.Info("calculation engines initialized", "sweep_workers", cfg.Engine.SweepWorkers)

	// Initialize Policy Rule Engine
	rulesEngine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, rulesEngine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", rulesEngine.RulesCount())

	// Initialize Health Processor
	processor := health.NewProcessor()
	slog.Info("health processor initialized", "flag_cap", processor.FlagCapScore)

	// Initialize Quota Tracker
	quotaTracker := quota.NewTracker(cacheImpl, cfg.Engine.MonthlyQuota)
	if cfg.Engine.MonthlyQuota > 0 {
		slog.Info("quota tracking enabled", "monthly_quota", cfg.Engine.MonthlyQuota)
	}

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("COMPASS_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, pipeline)

		var tenantIDs []string
		if envTenants := os.Getenv("COMPASS_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, pipeline, rulesEngine, processor, quotaTracker, cfg.Engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("compass is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("compass shutdown complete")
}

// loadConfig builds the configuration from tier presets plus
// environment overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()

	if os.Getenv("COMPASS_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if port := os.Getenv("COMPASS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("COMPASS_SQLITE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if host := os.Getenv("COMPASS_POSTGRES_HOST"); host != "" {
		cfg.Repository.PostgresHost = host
	}
	if user := os.Getenv("COMPASS_POSTGRES_USER"); user != "" {
		cfg.Repository.PostgresUser = user
	}
	if pass := os.Getenv("COMPASS_POSTGRES_PASSWORD"); pass != "" {
		cfg.Repository.PostgresPassword = pass
	}
	if addr := os.Getenv("COMPASS_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if url := os.Getenv("COMPASS_NATS_URL"); url != "" {
		cfg.EventBus.NATSUrl = url
	}
	if q := os.Getenv("COMPASS_MONTHLY_QUOTA"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			cfg.Engine.MonthlyQuota = n
		}
	}

	return cfg
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// loadRulesFromDatabase loads policy rules into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListPolicyRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🧭 COMPASS                  ║")
	fmt.Println("  ║      Financial Calculation Engine         ║")
	fmt.Println("  ║     Same inputs. Same answers.            ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /metrics             - ROI, NPV, IRR, payback")
	fmt.Println("    POST /scenarios           - Expected, best, and worst case")
	fmt.Println("    POST /loans               - Amortization schedule")
	fmt.Println("    POST /forecasts           - Cash flow projection")
	fmt.Println("    POST /breakeven           - Break-even point")
	fmt.Println("    POST /indices             - OFI, TFDI, SER indices")
	fmt.Println("    POST /sensitivity         - Sensitivity and tornado analysis")
	fmt.Println("    POST /assess              - Benchmark comparison and health score")
	fmt.Println("    GET  /calculations/{id}   - Get a stored calculation")
	fmt.Println("    GET  /templates           - List benchmark templates")
	fmt.Println("    GET  /rules               - List policy rules")
	fmt.Println("    POST /rules/reload        - Hot-reload rules from database")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
