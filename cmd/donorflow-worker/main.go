package main

import (
	"context"
	"errors"
	"os"
	"time"

	"donorflow/internal/amqp"
	"donorflow/internal/analysis"
	"donorflow/internal/backend"
	"donorflow/internal/cache"
	"donorflow/internal/cli"
	"donorflow/internal/donorapi"
	"donorflow/internal/log"
	"donorflow/internal/report"
	greport "donorflow/internal/report/google"
	"donorflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting donorflow-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared persistence backend so refreshed results land in the same
	// cache the API server reads.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	result, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize persistence backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}
	}()

	apiClient := donorapi.NewClient(cfg.DonorAPIBaseURL, cfg.DonorAPITimeout)
	controller := analysis.NewController(ctx, apiClient, cache.NewResultCache(result.Store),
		logger.WithComponent(log.ComponentAnalysis).Logger)

	// Google Sheets refresh log (optional)
	var reporter report.Writer
	if cfg.ReportEnabled() {
		sheets, err := greport.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets refresh log", log.FieldError, err)
			os.Exit(1)
		}
		reporter = sheets
		logger.Info("Refresh log initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Refresh log disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	refreshWorker := worker.NewRefreshWorker(controller, reporter)

	// Consume refresh messages when AMQP is configured
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			err := amqpClient.ConsumeRefresh(ctx, func(msg *amqp.RefreshMessage) error {
				return refreshWorker.HandleRefreshMessage(ctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				cancel()
			}
		}()
		logger.Info("Consuming refresh messages", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - periodic refresh only")
	}

	// Periodic refresh keeps results warm even without refresh messages
	go func() {
		if err := refreshWorker.RunPeriodic(ctx, cfg.RefreshInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Periodic refresh stopped", log.FieldError, err)
			cancel()
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, cancel)

	select {
	case <-shutdownCtx.Done():
		cli.WaitForShutdown(shutdownCtx, done)
	case <-ctx.Done():
		logger.Info("Worker context cancelled")
	}
}
