package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"spending/internal/cli"
	applog "spending/internal/log"
	"spending/internal/services"
)

func main() {
	printReport := flag.Bool("report", false, "print a run summary table after each run")
	once := flag.Bool("once", false, "run a single aggregation and exit (overrides RUN_ONCE)")
	flag.Parse()

	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting spending-job")

	cfg := cli.LoadAndValidateConfig(logger)

	b := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	}()

	job := b.NewJob(services.AggregationConfig{
		ChunkSize:    cfg.ChunkSize,
		LookbackDays: cfg.LookbackDays,
	})

	onReport := func(report *services.RunReport, _ error) {
		if *printReport {
			cli.PrintReport(os.Stdout, report)
		}
	}

	if cfg.RunOnce || *once {
		ctx, _ := cli.GracefulShutdown(logger, 30*time.Second, nil)
		ctx = applog.WithRunID(ctx, applog.NewRunID())
		report, err := job.Run(ctx)
		onReport(report, err)
		if err != nil {
			logger.Error("Aggregation run failed", "error", err)
			b.Cleanup()
			os.Exit(1)
		}
		if report.Failed() > 0 {
			logger.Warn("Aggregation finished with failed accounts",
				"failed", report.Failed(),
				"account_ids", report.FailedAccountIDs())
		}
		return
	}

	// Periodically evict expired user lookups between runs
	b.Caches.StartCleanup(time.Hour)

	scheduler := services.NewScheduler(job, services.SchedulerConfig{
		Interval: cfg.RunInterval,
		// a run must finish before the next tick
		RunTimeout: cfg.RunInterval,
		OnReport:   onReport,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Scheduler stop failed", "error", err)
		}
	})

	logger.Info("Spending aggregation scheduled",
		"interval", cfg.RunInterval,
		"backend", cfg.StoreBackend,
		"chunk_size", cfg.ChunkSize,
		"lookback_days", cfg.LookbackDays)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("spending-job shutdown complete", "runs", scheduler.Runs())
}
