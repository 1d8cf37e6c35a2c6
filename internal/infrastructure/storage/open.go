package storage

import (
	"context"
	"fmt"

	"github.com/vitos/crypto_prices_etl/internal/config"
	"github.com/vitos/crypto_prices_etl/internal/domain"
	"go.uber.org/zap"
)

// Open returns the snapshot repository selected by cfg.Database.Driver.
// The caller owns the returned handle and must Close it on shutdown.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (domain.SnapshotRepository, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(ctx, PostgresOption{
			DSN:             cfg.DSN(),
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLife,
			Logger:          log,
		})
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.Database.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
