package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/database/gormstore"
	"github.com/kozaktomas/smart-attendance/internal/database/postgres"
	"github.com/kozaktomas/smart-attendance/internal/embedding"
)

// backend is a storage backend that also keeps the reference embedding graph.
type backend interface {
	database.Store
	database.ReferenceIndexer
}

// openStore opens the configured backend and registers it for the rest of the process.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (backend, error) {
	var (
		store backend
		err   error
	)

	switch cfg.Driver {
	case "postgres":
		store, err = postgres.Open(ctx, cfg)
	case gormstore.DriverSQLite, gormstore.DriverMySQL:
		store, err = gormstore.Open(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q (expected postgres, sqlite or mysql)", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	database.RegisterBackend(cfg.Driver, func() database.Store { return store })
	database.RegisterReferenceIndexer(store)
	return store, nil
}

// connect loads the configuration and opens the storage backend.
func connect(ctx context.Context) (*config.Config, backend, error) {
	cfg := config.Load()
	store, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// closeStore releases the backend. The registry is cleared so a later command in the same
// process starts from scratch.
func closeStore(store backend) {
	database.ResetBackend()
	_ = store.Close()
}

func newEmbeddingClient(cfg *config.Config) *embedding.Client {
	return embedding.NewClient(cfg.Embedding.URL,
		embedding.WithDim(cfg.Embedding.Dim),
		embedding.WithMaxImageSize(cfg.Embedding.MaxImageSize),
		embedding.WithRateLimit(cfg.Embedding.RPS),
	)
}

// loadClass returns the class with id or a not found error.
func loadClass(ctx context.Context, store database.ClassReader, id string) (*database.ClassSection, error) {
	class, err := store.GetClass(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load class: %w", err)
	}
	if class == nil {
		return nil, fmt.Errorf("class %s not found", id)
	}
	return class, nil
}

// loadSchool returns the school with id or a not found error.
func loadSchool(ctx context.Context, store database.SchoolReader, id string) (*database.School, error) {
	school, err := store.GetSchool(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load school: %w", err)
	}
	if school == nil {
		return nil, fmt.Errorf("school %s not found", id)
	}
	return school, nil
}
