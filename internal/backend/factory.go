package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fxledger/internal/rates"
	"fxledger/internal/storage"
	"fxledger/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if snaps, err := repo.Snapshots(ctx); err != nil {
		f.logger.Warn("Failed to list stored rate snapshots", "error", err)
	} else {
		f.logger.Info("Initialized SQLite backend",
			"db_path", config.SQLiteDBPath,
			"rate_snapshots", len(snaps))
	}

	return &BackendResult{
		Ledger:  repo,
		Rates:   repo.RateStore(),
		Cleanup: repo.Close,
		Ping:    repo.Ping,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	size := config.RateCacheSize
	if size <= 0 {
		size = defaultRateCacheSize
	}
	ttl := config.RateCacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	ledger := memory.New()
	f.logger.Info("Initialized memory backend", "rate_cache_size", size, "rate_cache_ttl", ttl)

	return &BackendResult{
		Ledger:  ledger,
		Rates:   rates.NewMemoryStore(size, ttl),
		Cleanup: ledger.Close,
	}, nil
}
