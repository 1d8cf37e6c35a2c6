package domain

import "context"

// MarketDataSource fetches one batch of market snapshots per call.
type MarketDataSource interface {
	Extract(ctx context.Context) ([]MarketSnapshot, error)
}

// SnapshotRepository defines storage operations for market snapshots.
type SnapshotRepository interface {
	// EnsureSchema creates the snapshot table if it does not exist.
	// It never alters an existing table.
	EnsureSchema(ctx context.Context) error
	// SaveSnapshot inserts one row in its own transaction and sets InternalID.
	SaveSnapshot(ctx context.Context, snap *MarketSnapshot) error

	ListRecent(ctx context.Context, limit int) ([]*MarketSnapshot, error)
	ListByCoin(ctx context.Context, coinID string, limit int) ([]*MarketSnapshot, error)
	Close() error
}
