package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/open-hospitality/kestrel/internal/alerts"
	"github.com/open-hospitality/kestrel/internal/api"
	"github.com/open-hospitality/kestrel/internal/baseline"
	"github.com/open-hospitality/kestrel/internal/bus"
	"github.com/open-hospitality/kestrel/internal/cache"
	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/engine"
	"github.com/open-hospitality/kestrel/internal/monitor"
	"github.com/open-hospitality/kestrel/internal/reporting"
	"github.com/open-hospitality/kestrel/internal/repository"
	"github.com/open-hospitality/kestrel/internal/rules"
	"github.com/open-hospitality/kestrel/internal/signals"
	"github.com/open-hospitality/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// dashboardMaxWorkers bounds concurrent evaluations per dashboard request.
const dashboardMaxWorkers = 4

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if err := cfg.Scoring.Validate(); err != nil {
		slog.Error("invalid scoring configuration", "error", err)
		os.Exit(1)
	}

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

	// Venues this instance serves (from environment or default)
	venueIDs := parseVenueIDs(os.Getenv("KESTREL_VENUES"))

	// Initialize Rule Engine
	ruleEngine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine, venueIDs); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized")

	// Initialize signal reader and alert generator
	reader := signals.NewReader(repo, cacheImpl)
	generator := alerts.NewGenerator(repo, busImpl)

	// Initialize Scoring Engine
	scoringEngine, err := engine.New(repo, reader, cfg.Scoring, generator, busImpl)
	if err != nil {
		slog.Error("failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring engine initialized")

	// Initialize real-time Monitor
	mon := monitor.New(repo, cacheImpl, ruleEngine, cfg.Scoring.Thresholds)
	slog.Info("monitor initialized")

	// Initialize Reporter
	reporter := reporting.NewReporter(repo, scoringEngine, dashboardMaxWorkers)

	// Initialize baseline recompute worker
	baselineWorker := baseline.NewWorker(repo, cacheImpl)
	for _, venueID := range venueIDs {
		baselineWorker.RegisterVenue(venueID)
	}
	go baselineWorker.Start(ctx)
	slog.Info("baseline worker started", "venue_count", len(venueIDs))

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, mon, generator)

		workerCfg := worker.Config{
			VenueIDs: venueIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "venue_count", len(venueIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, scoringEngine, mon, generator, reporter, ruleEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop background workers first
	baselineWorker.Stop()
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

	slog.Info("kestrel shutdown complete")
}

// parseVenueIDs splits the comma-separated KESTREL_VENUES value.
func parseVenueIDs(env string) []string {
	if env == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(env, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// loadRulesFromDatabase loads each venue's custom rules into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, eng *rules.Engine, venueIDs []string) error {
	total := 0
	for _, venueID := range venueIDs {
		configs, err := repo.ListRuleConfigs(ctx, venueID)
		if err != nil {
			slog.Warn("failed to list rules from database", "venue_id", venueID, "error", err)
			continue // Start with empty rules - they can be added via API
		}
		if len(configs) == 0 {
			continue
		}
		if err := eng.ReloadRules(venueID, configs); err != nil {
			return fmt.Errorf("load rules for venue %s: %w", venueID, err)
		}
		total += len(configs)
	}

	if total == 0 {
		slog.Info("no rules in database - configure via POST /rules API")
	} else {
		slog.Info("loaded rules from database", "count", total)
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 KESTREL                  ║")
	fmt.Println("  ║    Behavioral Risk Scoring for Venues     ║")
	fmt.Println("  ║       Watching every till, quietly.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints (X-Venue-ID header required):")
	fmt.Println("    POST /employees               - Register a roster entry")
	fmt.Println("    POST /evaluate                - Score an employee's fraud index")
	fmt.Println("    GET  /snapshots/{employeeID}  - Score history")
	fmt.Println("    POST /monitor/transaction     - Real-time transaction check")
	fmt.Println("    POST /monitor/shift           - End-of-shift review")
	fmt.Println("    POST /signals/{kind}          - Ingest a POS signal")
	fmt.Println("    GET  /alerts                  - List alerts")
	fmt.Println("    POST /alerts/{id}/ack         - Acknowledge an alert")
	fmt.Println("    GET  /dashboard               - Venue risk dashboard")
	fmt.Println("    GET  /report                  - Venue or employee report")
	fmt.Println("    GET  /rules                   - List custom rules")
	fmt.Println("    POST /rules                   - Create a custom rule")
	fmt.Println("    POST /rules/reload            - Hot-reload rules from database")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
