package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/currency"
	"budget/internal/log"
	"budget/internal/notify"
	"budget/internal/services"
	"budget/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting budget-worker",
		"backend", cfg.DataBackend,
		"queue", cfg.AMQPQueue,
		"reconcile_schedule", cfg.ReconcileCron)

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg, true)

	refresher, closeRates := cli.NewRatesRefresher(ctx, logger, cfg)
	cacheManager := cache.NewManager(logger)
	reports := cli.NewReportService(be.Store, refresher, cfg, cacheManager, logger)
	reconciler := services.NewReconciler(be.Store, logger)

	smtpCfg := notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.SMTPTo,
	}
	var notifier notify.Notifier
	if smtpCfg.Enabled() {
		notifier = notify.NewMailer(smtpCfg, logger)
		logger.Info("Budget alerts enabled", "recipients", len(smtpCfg.To))
	} else {
		logger.Info("Budget alerts disabled - no SMTP_HOST provided")
	}

	format := currency.DefaultFormat(cfg.DisplayCurrency).With(cfg.CurrencyLocale, currency.Placement(cfg.CurrencyPlacement))
	eventWorker := worker.NewEventWorker(reconciler, reports, notifier, format, logger)
	cacheManager.Register(eventWorker.Tiers())
	cacheManager.StartCleanup(time.Hour)

	scheduler := worker.NewScheduler(5*time.Minute, logger)
	if cfg.ReconcileCron != "" {
		if err := scheduler.Add("reconcile", cfg.ReconcileCron, worker.ReconcileJob(reconciler, logger)); err != nil {
			logger.Error("Failed to schedule reconciliation", log.FieldError, err)
			os.Exit(1)
		}
		// Catch drift left by events missed while the worker was down.
		_ = scheduler.RunNow(ctx, "reconcile")
	}
	if cfg.RatesProvider != "none" && cfg.RatesRefreshCron != "" {
		refresh := func(ctx context.Context) error {
			_, err := refresher.Refresh(ctx)
			return err
		}
		if err := scheduler.Add("rates", cfg.RatesRefreshCron, refresh); err != nil {
			logger.Error("Failed to schedule rate refresh", log.FieldError, err)
			os.Exit(1)
		}
		_ = scheduler.RunNow(ctx, "rates")
	}
	scheduler.Start()

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduled jobs still running at shutdown", log.FieldError, err)
		}
		cacheManager.Stop()
		closeRates()
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		err := be.Events.Consume(runCtx, eventWorker.Handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Budget-worker shutdown complete")
}
