package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cache"
	"kakeibo/internal/cli"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info", "text")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg)

	m := metrics.New()
	views := cache.NewLRUCache[services.MonthView](64, 10*time.Minute)
	opts := []services.Option{
		services.WithMetrics(m),
		services.WithViewCache(views),
		services.WithLogger(logger.WithComponent(log.ComponentLedger)),
	}

	// Publishing is optional; without a broker the worker has nothing to do
	// and the ledger still works on its own.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(client))
		logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	svc := services.NewLedgerService(be.Store, cfg.Parties(), opts...)
	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{Metrics: m, Logger: logger})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		// closes the store and the publisher
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	})

	go cache.NewManager(views).Run(shutdownCtx, 5*time.Minute)

	logger.Info("Starting kakeibo server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"party_a", cfg.PartyA,
		"party_b", cfg.PartyB)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
