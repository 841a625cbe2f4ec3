package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/database"
	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/health"
	"github.com/caddl-lab-desk/internal/repository"
	"github.com/caddl-lab-desk/internal/store"
)

// Storage is an opened backend plus the health checks that watch it.
type Storage struct {
	Store  domain.LabStore
	Checks []health.HealthCheck
}

// OpenStorage opens the backend selected by cfg. The relational backend
// migrates its schema before use.
func OpenStorage(ctx context.Context, cfg domain.StorageConfig, logger *logrus.Logger) (*Storage, error) {
	switch cfg.Backend {
	case domain.BackendMemory:
		blobs := store.NewMemoryStore()
		return collections(blobs, logger, health.NewStoreHealthCheck("memory", blobs)), nil

	case domain.BackendSQLite, "":
		blobs, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.WithField("path", blobs.Path()).Info("Using SQLite storage")
		return collections(blobs, logger, health.NewDatabaseHealthCheck("sqlite", blobs.DB())), nil

	case domain.BackendRedis:
		blobs, err := store.NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		logger.Info("Using Redis storage")
		return collections(blobs, logger, health.NewRedisHealthCheck(blobs.Client())), nil

	case domain.BackendPostgresKV:
		blobs, err := store.NewPostgresStoreFromURL(database.ConfigFromDomain(cfg.Database).URL())
		if err != nil {
			return nil, fmt.Errorf("opening postgres blob store: %w", err)
		}
		if err := blobs.EnsureSchema(ctx); err != nil {
			blobs.Close()
			return nil, err
		}
		logger.Info("Using PostgreSQL blob storage")
		return collections(blobs, logger, health.NewDatabaseHealthCheck("postgres", blobs.DB())), nil

	case domain.BackendPostgres:
		return openRelational(ctx, cfg.Database, logger)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func collections(blobs store.BlobStore, logger *logrus.Logger, check health.HealthCheck) *Storage {
	return &Storage{
		Store:  store.NewCollections(blobs, logger),
		Checks: []health.HealthCheck{check},
	}
}

func openRelational(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (*Storage, error) {
	dbCfg := database.ConfigFromDomain(cfg)
	if err := Migrate(ctx, cfg, logger, true); err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Using PostgreSQL relational storage")
	return &Storage{
		Store:  repository.NewReportRepository(db.Pool, logger),
		Checks: []health.HealthCheck{health.NewPoolHealthCheck(db.Pool)},
	}, nil
}

// Migrate applies (up) or rolls back (down) the relational schema.
func Migrate(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger, up bool) error {
	runner, err := database.NewMigrationRunner(database.ConfigFromDomain(cfg).URL(), cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	if up {
		return runner.Up(ctx)
	}
	return runner.Down(ctx)
}
