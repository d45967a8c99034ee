package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/currency"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	logger.Info("Starting budget server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"display_currency", cfg.DisplayCurrency,
		"rates_provider", cfg.RatesProvider)

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg, false)

	refresher, closeRates := cli.NewRatesRefresher(ctx, logger, cfg)
	cacheManager := cache.NewManager(logger)
	reports := cli.NewReportService(be.Store, refresher, cfg, cacheManager, logger)
	cacheManager.StartCleanup(5 * time.Minute)

	opts := apphttp.Options{
		Budget:             services.NewBudgetService(be.Store, be.Publisher(), reports, logger),
		Reports:            reports,
		Reconciler:         services.NewReconciler(be.Store, logger),
		Store:              be.Store,
		Logger:             logger,
		Locale:             cfg.CurrencyLocale,
		Placement:          currency.Placement(cfg.CurrencyPlacement),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		RequestTimeout:     cfg.RequestTimeout,
	}
	if cfg.RatesProvider != "none" {
		opts.Rates = refresher
		if cfg.RatesRefreshCron != "" {
			if err := refresher.Start(cfg.RatesRefreshCron); err != nil {
				logger.Error("Failed to schedule rate refresh", log.FieldError, err)
				os.Exit(1)
			}
		}
	}

	srv, err := apphttp.NewServer(cfg.Addr(), opts)
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		refresher.Stop()
		cacheManager.Stop()
		closeRates()
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
