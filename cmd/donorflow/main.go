package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"donorflow/internal/amqp"
	"donorflow/internal/analysis"
	"donorflow/internal/backend"
	"donorflow/internal/cache"
	"donorflow/internal/cli"
	"donorflow/internal/donorapi"
	apphttp "donorflow/internal/http"
	"donorflow/internal/log"
	"donorflow/internal/sources"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	// Persistence backend for the result cache and the upload registry
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
	logger.Info("Persistence backend initialized", "backend", backendCfg.Type)

	// Analytics backend client
	apiClient := donorapi.NewClient(cfg.DonorAPIBaseURL, cfg.DonorAPITimeout)

	// Analysis state, hydrated from the persisted cache
	resultCache := cache.NewResultCache(result.Store)
	controller := analysis.NewController(ctx, apiClient, resultCache,
		logger.WithComponent(log.ComponentAnalysis).Logger)

	// AMQP publisher for refresh notifications (optional)
	var publisher sources.RefreshPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	sourcesService := sources.NewService(apiClient, result.Store, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Controller: controller,
		Sources:    sourcesService,
		Profiles:   apiClient,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.DonorAPITimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting donorflow server", "port", cfg.Port, "backend", backendCfg.Type, "donor_api", cfg.DonorAPIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
