package main

import (
	"context"
	"os"

	"kakeibo/internal/cli"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

func main() {
	cli.LoadEnvFile()
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, os.Getenv("LOG_FORMAT")).WithComponent(log.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg)
	svc := services.NewLedgerService(be.Store, cfg.Parties(), services.WithLogger(logger))

	err := cli.NewRootCommand(svc).ExecuteContext(ctx)
	if cerr := svc.Close(); cerr != nil {
		logger.Error("Failed to close ledger", log.FieldError, cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
