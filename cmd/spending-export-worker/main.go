package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spending/internal/amqp"
	"spending/internal/cli"
	"spending/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting spending-export-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" || cfg.GoogleSpreadsheetID == "" {
		logger.Error("Export worker needs AMQP_URL and GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	b := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		b.Cleanup()
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(b.Store, b.Accounts, b.Exporter)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close failed", "error", err)
		}
	})

	// Catch up on events published while the worker was down
	logger.Info("Performing startup resync...")
	if _, _, err := exportWorker.ResyncAll(ctx); err != nil {
		logger.Error("Startup resync failed", "error", err)
	}

	go func() {
		err := amqpClient.ConsumeSummariesWritten(ctx, func(msg *amqp.SummariesWrittenMessage) error {
			return exportWorker.HandleSummariesWritten(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	// Periodic resync covers events lost in the broker
	go func() {
		ticker := time.NewTicker(cfg.RunInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, _, err := exportWorker.ResyncAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Periodic resync failed", "error", err)
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("spending-export-worker shutdown complete")
}
