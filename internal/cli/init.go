// Package cli provides common CLI initialization utilities.
// This package consolidates the initialization shared by cmd/budget and
// cmd/budget-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budget/internal/backend"
	"budget/internal/budget"
	"budget/internal/cache"
	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/rates"
	"budget/internal/services"
	"budget/internal/store"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = config.LoadEnvFile()
}

// SetupLogger initializes structured logging from the configuration and
// sets it as the default logger.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Component = component
	if cfg != nil {
		lc.Level = log.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// Logging is configured from cfg, so fall back to defaults here.
		SetupLogger(nil, log.ComponentApp).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend opens the configured store and event client.
// Exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config, requireEvents bool) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	bc.RequireEvents = requireEvents
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// NewRatesProvider returns the configured feed, or nil for "none".
func NewRatesProvider(cfg *config.Config) rates.Provider {
	switch cfg.RatesProvider {
	case "ecb":
		return rates.NewECBProvider(cfg.RatesURL, nil)
	case "openapi":
		return rates.NewOpenAPIProvider(cfg.RatesURL, nil)
	default:
		return nil
	}
}

// NewRatesRefresher wires the provider to Redis when REDIS_ADDR is set and
// to process memory otherwise. An unreachable Redis degrades to memory.
func NewRatesRefresher(ctx context.Context, logger *log.Logger, cfg *config.Config) (*rates.Refresher, func()) {
	var (
		st      rates.Store = rates.NewMemoryStore()
		cleanup             = func() {}
	)
	if cfg.RedisAddr != "" {
		rs, err := rates.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RatesTTL)
		if err != nil {
			logger.Warn("Redis unavailable, caching rates in memory", log.FieldError, err)
		} else {
			logger.Info("Sharing exchange rates through Redis", "addr", cfg.RedisAddr)
			st = rs
			cleanup = func() { _ = rs.Close() }
		}
	}
	return rates.NewRefresher(NewRatesProvider(cfg), st, logger), cleanup
}

// NewReportService builds the report service with an LRU report cache
// registered for periodic cleanup. Every stored rate table clears the cache.
func NewReportService(st store.Store, refresher *rates.Refresher, cfg *config.Config, manager *cache.Manager, logger *log.Logger) *services.ReportService {
	reports := cache.NewLRUCache[budget.MonthReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	if manager != nil {
		manager.Register(reports)
	}
	if refresher == nil {
		return services.NewReportService(st, nil, reports, cfg.DisplayCurrency, logger)
	}
	svc := services.NewReportService(st, refresher, reports, cfg.DisplayCurrency, logger)
	refresher.OnRefresh(svc.InvalidateAll)
	return svc
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
