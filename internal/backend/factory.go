package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kakeibo/internal/config"
	"kakeibo/internal/ledger"
	"kakeibo/internal/ledger/memory"
	"kakeibo/internal/storage"
	"kakeibo/internal/storage/csvfile"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	bt := BackendType(appConfig.DataBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:           bt,
		CSVPath:        appConfig.CSVPath,
		SQLiteDBPath:   appConfig.SQLiteDBPath,
		CategoriesFile: appConfig.CategoriesFile,
	}, nil
}

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	switch cfg.Type {
	case MemoryBackend:
		return f.createMemoryBackend(cfg)
	case CSVBackend:
		return f.createCSVBackend(ctx, cfg)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(cfg Config) (*BackendResult, error) {
	store := memory.NewFromFile(cfg.CategoriesFile)
	f.logger.Info("Initialized memory backend")
	return &BackendResult{Store: store}, nil
}

func (f *DefaultFactory) createCSVBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if cfg.CSVPath == "" {
		return nil, errors.New("CSV ledger path is required for csv backend")
	}
	store, err := memory.NewWithPersister(ctx, memory.SeedCategories(cfg.CategoriesFile), csvfile.New(cfg.CSVPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV ledger: %w", err)
	}
	entries, _ := store.Entries(ctx)
	f.logger.Info("Initialized CSV backend", "path", cfg.CSVPath, "entries", len(entries))
	return &BackendResult{Store: store}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if cfg.SQLiteDBPath == "" {
		return nil, errors.New("SQLite database path is required for sqlite backend")
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if cfg.CategoriesFile != "" {
		for _, c := range memory.SeedCategories(cfg.CategoriesFile) {
			if err := repo.AddCategory(ctx, c); err != nil && !errors.Is(err, ledger.ErrCategoryExists) {
				repo.Close()
				return nil, fmt.Errorf("seed categories: %w", err)
			}
		}
	}
	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	return &BackendResult{
		Store:     repo,
		SyncStore: repo,
		Cleanup:   repo.Close,
	}, nil
}
