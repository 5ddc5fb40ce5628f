// Brokerage - Rule and pricing engine for insurance offers and documents.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/opensource-finance/brokerage/internal/api"
	"github.com/opensource-finance/brokerage/internal/bus"
	"github.com/opensource-finance/brokerage/internal/cache"
	"github.com/opensource-finance/brokerage/internal/catalog"
	"github.com/opensource-finance/brokerage/internal/config"
	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/issuance"
	"github.com/opensource-finance/brokerage/internal/metrics"
	"github.com/opensource-finance/brokerage/internal/quote"
	"github.com/opensource-finance/brokerage/internal/repository"
	"github.com/opensource-finance/brokerage/internal/ruleset"
	"github.com/opensource-finance/brokerage/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting brokerage",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"service_name", cfg.Tracing.ServiceName,
	)

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
	slog.Info("cache initialized", "type", cfg.Cache.Type, "two_phase", cfg.Cache.EnableTwoPhase)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Notification worker
	notifier := worker.NewWorker(busImpl, worker.LogNotifier{Logger: logger}, m)
	if err := notifier.Start(); err != nil {
		slog.Error("failed to start notification worker", "error", err)
		os.Exit(1)
	}

	// Services
	cat := catalog.New(repo, cacheImpl, cfg.Cache.CatalogTTL)
	services := api.Services{
		Rules:     ruleset.NewService(repo, m),
		Quotes:    quote.NewService(repo, cat, m),
		Documents: issuance.NewService(repo, busImpl, m),
		Catalog:   cat,
	}

	srv := api.NewServer(cfg.Server, services, api.Options{
		Repository: repo,
		Cache:      cacheImpl,
		Bus:        busImpl,
		Metrics:    m,
		Gatherer:   reg,
		Version:    Version,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); serveFailed(err) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("brokerage is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop worker after the server has drained
	if err := notifier.Stop(); err != nil {
		slog.Error("failed to stop notification worker", "error", err)
	}

	slog.Info("brokerage shutdown complete")
}

// serveFailed reports whether Start returned for a reason other than
// Shutdown.
func serveFailed(err error) bool {
	return err != nil && !ierr.Is(err, http.ErrServerClosed)
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Brokerage rule and pricing engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Storage:  %s\n", cfg.Repository.Driver)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /plans, /companies         - Manage the catalog")
	fmt.Println("    GET  /rules                     - Grouped rule report")
	fmt.Println("    POST /rules/{health,life}       - Batch upsert rules")
	fmt.Println("    POST /rules/car                 - Upsert a car rule")
	fmt.Println("    POST /rules/{kind}/delete       - Atomic bulk delete")
	fmt.Println("    POST /offers/{health,life,car}  - Quote offers")
	fmt.Println("    POST /offers/family/health      - Family health offers")
	fmt.Println("    POST /documents/{kind}          - Issue a document")
	fmt.Println("    PUT  /documents/{id}            - Update a document")
	fmt.Println("    GET  /documents                 - List documents")
	fmt.Println("    POST /documents/renewals        - Request a renewal")
	fmt.Println("    POST /documents/refunds         - File a refund claim")
	fmt.Println("    GET  /metrics                   - Prometheus metrics")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println()
}
