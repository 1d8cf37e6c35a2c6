package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_prices_etl/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func ts(v time.Time) *time.Time {
	return &v
}

func sampleSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		CoinID:                   "bitcoin",
		Symbol:                   "btc",
		Name:                     "Bitcoin",
		ImageURL:                 "https://assets.coingecko.com/coins/images/1/large/bitcoin.png",
		CurrentPrice:             350000.0,
		MarketCap:                nil,
		MarketCapRank:            i64(1),
		TotalVolume:              f64(1.5e11),
		High24h:                  f64(351000.25),
		Low24h:                   f64(340000.5),
		PriceChange24h:           f64(-1200.75),
		PriceChangePercentage24h: f64(-0.34),
		ATH:                      f64(400000),
		ATHDate:                  ts(time.Date(2024, 3, 14, 7, 10, 36, 635000000, time.UTC)),
		ATL:                      f64(0.3),
		ATLDate:                  nil,
		LastUpdated:              ts(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
		ObservedAt:               time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_EnsureSchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot()))
	require.NoError(t, store.EnsureSchema(ctx))

	snaps, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1, "existing rows must survive a second EnsureSchema")
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := sampleSnapshot()
	require.NoError(t, store.SaveSnapshot(ctx, in))
	assert.NotZero(t, in.InternalID)

	snaps, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	out := snaps[0]

	assert.Equal(t, in.InternalID, out.InternalID)
	assert.Equal(t, in.CoinID, out.CoinID)
	assert.Equal(t, in.Symbol, out.Symbol)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.ImageURL, out.ImageURL)
	assert.InDelta(t, in.CurrentPrice, out.CurrentPrice, 1e-9)
	assert.Nil(t, out.MarketCap)
	require.NotNil(t, out.MarketCapRank)
	assert.Equal(t, int64(1), *out.MarketCapRank)
	assert.InDelta(t, *in.TotalVolume, *out.TotalVolume, 1e-3)
	assert.InDelta(t, *in.PriceChange24h, *out.PriceChange24h, 1e-9)
	assert.InDelta(t, *in.PriceChangePercentage24h, *out.PriceChangePercentage24h, 1e-12)
	require.NotNil(t, out.ATHDate)
	assert.True(t, in.ATHDate.Equal(*out.ATHDate), "ath_date: want %v got %v", in.ATHDate, out.ATHDate)
	assert.Nil(t, out.ATLDate)
	require.NotNil(t, out.LastUpdated)
	assert.True(t, in.LastUpdated.Equal(*out.LastUpdated))
	assert.True(t, in.ObservedAt.Equal(out.ObservedAt))
}

func TestSQLiteStore_DefaultTimeStamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := sampleSnapshot()
	snap.ObservedAt = time.Time{}
	before := time.Now().UTC().Add(-2 * time.Second)

	require.NoError(t, store.SaveSnapshot(ctx, snap))
	assert.False(t, snap.ObservedAt.IsZero(), "datastore must fill time_stamp")
	assert.True(t, snap.ObservedAt.After(before))
}

func TestSQLiteStore_NoIdempotence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, b := sampleSnapshot(), sampleSnapshot()
	require.NoError(t, store.SaveSnapshot(ctx, a))
	require.NoError(t, store.SaveSnapshot(ctx, b))
	assert.NotEqual(t, a.InternalID, b.InternalID)
	assert.Greater(t, b.InternalID, a.InternalID)

	snaps, err := store.ListByCoin(ctx, "bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, b.InternalID, snaps[0].InternalID)
}

func TestSQLiteStore_ListRecentOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"bitcoin", "ethereum", "solana"} {
		snap := sampleSnapshot()
		snap.CoinID = id
		require.NoError(t, store.SaveSnapshot(ctx, snap))
	}

	snaps, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "solana", snaps[0].CoinID)
	assert.Equal(t, "ethereum", snaps[1].CoinID)

	eth, err := store.ListByCoin(ctx, "ethereum", 10)
	require.NoError(t, err)
	assert.Len(t, eth, 1)
}

func TestSQLiteStore_SaveFailsWithoutTable(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer store.Close()

	snap := sampleSnapshot()
	err = store.SaveSnapshot(context.Background(), snap)

	var persistErr *domain.PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.Zero(t, snap.InternalID)
}

func TestSQLiteStore_EnsureSchemaLeavesExistingTable(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.db.ExecContext(ctx, `CREATE TABLE crypto_prices (internal_id INTEGER PRIMARY KEY, id TEXT)`)
	require.NoError(t, err)

	require.NoError(t, store.EnsureSchema(ctx))

	var indexes int
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = 'crypto_prices'`).Scan(&indexes))
	assert.Zero(t, indexes)

	var columns int
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('crypto_prices')`).Scan(&columns))
	assert.Equal(t, 2, columns)
}

func TestSQLiteStore_EnsureSchemaCreatesIndex(t *testing.T) {
	store := newTestStore(t)

	var name string
	err := store.db.QueryRowContext(context.Background(),
		`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'crypto_prices'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_crypto_prices_coin_time", name)
}
