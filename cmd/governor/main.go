package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stratoshq/governor/internal/api"
	"github.com/stratoshq/governor/internal/config"
	"github.com/stratoshq/governor/internal/depchain"
	"github.com/stratoshq/governor/internal/engine"
	"github.com/stratoshq/governor/internal/events"
	"github.com/stratoshq/governor/internal/gate"
	"github.com/stratoshq/governor/internal/policy"
	"github.com/stratoshq/governor/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Event stream (optional)
	var eventsClient events.Client
	if cfg.Events.URL != "" {
		ec, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to event stream, running without events", "error", err)
		} else {
			eventsClient = ec
			defer ec.Close()
			logger.Info("connected to event stream")
		}
	}

	// Gate checks
	checks := gate.NewRegistry()
	checks.Register("tests-executed", gate.MetadataTrue("tests_executed"))
	checks.Register("coverage-threshold", gate.MetadataNumberAtLeast("coverage", 80))
	checks.Register("exec-checklist-complete", gate.ChecklistComplete(store.PhaseExec))
	checks.Register("verification-checklist-complete", gate.ChecklistComplete(store.PhasePlanVerification))
	checks.Register("progress-minimum", gate.ProgressAtLeast(85))

	gates := make(map[string][]gate.Rule, len(cfg.Gates))
	for gateID, gc := range cfg.Gates {
		rules := make([]gate.Rule, 0, len(gc.Rules))
		for _, rc := range gc.Rules {
			rules = append(rules, gate.Rule{Name: rc.Name, Weight: rc.Weight, Required: rc.Required})
		}
		gates[gateID] = rules
	}
	runner := gate.NewRunner(db, checks, gates, cfg.CheckTimeout(), logger)

	// Dependency resolver
	resolver := depchain.NewResolver(db, logger)

	// Policy advisor
	routing := make([]policy.RoutingRule, 0, len(cfg.Routing))
	for _, rc := range cfg.Routing {
		routing = append(routing, policy.RoutingRule{Keywords: rc.Keywords, Specialist: rc.Specialist})
	}
	advisor := policy.NewAdvisor(cfg.Policy.DeniedCategories, cfg.Policy.Profiles, routing, logger)

	// Engine
	eng := engine.New(db, eventsClient, runner, resolver, advisor, cfg, logger)
	logger.Info("engine ready", "gates", len(gates), "routing_rules", len(routing))

	// API server
	router := api.NewRouter(db, eng, cfg, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsRouter := api.NewMetricsRouter()
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
