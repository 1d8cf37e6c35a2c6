package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_prices_etl/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if !strings.Contains(dbPath, ":memory:") && !strings.Contains(dbPath, "?") {
		dsn = dbPath + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dbPath, ":memory:") {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS crypto_prices (
	internal_id INTEGER PRIMARY KEY AUTOINCREMENT,
	id VARCHAR(100) NOT NULL,
	symbol VARCHAR(100) NOT NULL,
	name VARCHAR(100) NOT NULL,
	image VARCHAR(200) NOT NULL,
	current_price REAL NOT NULL,
	market_cap REAL,
	market_cap_rank INTEGER,
	total_volume REAL,
	high_24h REAL,
	low_24h REAL,
	price_change_24h REAL,
	price_change_percentage_24h REAL,
	ath REAL,
	ath_date DATETIME,
	atl REAL,
	atl_date DATETIME,
	last_updated DATETIME,
	time_stamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// EnsureSchema creates crypto_prices and its index when the table is absent.
// An existing table is left untouched whatever its shape.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'crypto_prices'`).Scan(&n)
	if err != nil {
		return &domain.PersistenceError{Op: "ensure schema", Err: err}
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "ensure schema", Err: err}
	}
	defer tx.Rollback()

	queries := []string{
		sqliteSchema,
		`CREATE INDEX IF NOT EXISTS idx_crypto_prices_coin_time ON crypto_prices(id, time_stamp);`,
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return &domain.PersistenceError{Op: "ensure schema", Err: fmt.Errorf("failed to exec query %s: %w", q, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "ensure schema", Err: err}
	}
	return nil
}

// SnapshotRepository Implementation

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *domain.MarketSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	var observedAt any
	if !snap.ObservedAt.IsZero() {
		observedAt = snap.ObservedAt.UTC()
	}

	query := `INSERT INTO crypto_prices (id, symbol, name, image, current_price, market_cap, market_cap_rank, total_volume, high_24h, low_24h, price_change_24h, price_change_percentage_24h, ath, ath_date, atl, atl_date, last_updated, time_stamp)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))`
	res, err := tx.ExecContext(ctx, query,
		snap.CoinID, snap.Symbol, snap.Name, snap.ImageURL, snap.CurrentPrice,
		snap.MarketCap, snap.MarketCapRank, snap.TotalVolume, snap.High24h, snap.Low24h,
		snap.PriceChange24h, snap.PriceChangePercentage24h,
		snap.ATH, utcPtr(snap.ATHDate), snap.ATL, utcPtr(snap.ATLDate), utcPtr(snap.LastUpdated), observedAt)
	if err != nil {
		return &domain.PersistenceError{Op: "insert", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return &domain.PersistenceError{Op: "insert", Err: err}
	}

	var stamp time.Time
	if err := tx.QueryRowContext(ctx, `SELECT time_stamp FROM crypto_prices WHERE internal_id = ?`, id).Scan(&stamp); err != nil {
		return &domain.PersistenceError{Op: "insert", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "commit", Err: err}
	}

	snap.InternalID = id
	snap.ObservedAt = stamp.UTC()
	return nil
}

const sqliteSelect = `SELECT internal_id, id, symbol, name, image, current_price, market_cap, market_cap_rank, total_volume, high_24h, low_24h, price_change_24h, price_change_percentage_24h, ath, ath_date, atl, atl_date, last_updated, time_stamp FROM crypto_prices`

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*domain.MarketSnapshot, error) {
	return s.list(ctx, sqliteSelect+` ORDER BY internal_id DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) ListByCoin(ctx context.Context, coinID string, limit int) ([]*domain.MarketSnapshot, error) {
	return s.list(ctx, sqliteSelect+` WHERE id = ? ORDER BY internal_id DESC LIMIT ?`, coinID, limit)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]*domain.MarketSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query", Err: err}
	}
	defer rows.Close()

	var snaps []*domain.MarketSnapshot
	for rows.Next() {
		var (
			snap                      domain.MarketSnapshot
			marketCap, totalVolume    sql.NullFloat64
			high, low, change, pct    sql.NullFloat64
			ath, atl                  sql.NullFloat64
			rank                      sql.NullInt64
			athDate, atlDate, lastUpd sql.NullTime
		)
		if err := rows.Scan(&snap.InternalID, &snap.CoinID, &snap.Symbol, &snap.Name, &snap.ImageURL, &snap.CurrentPrice,
			&marketCap, &rank, &totalVolume, &high, &low, &change, &pct,
			&ath, &athDate, &atl, &atlDate, &lastUpd, &snap.ObservedAt); err != nil {
			return nil, &domain.PersistenceError{Op: "scan", Err: err}
		}
		snap.MarketCap = nullFloat(marketCap)
		snap.MarketCapRank = nullInt(rank)
		snap.TotalVolume = nullFloat(totalVolume)
		snap.High24h = nullFloat(high)
		snap.Low24h = nullFloat(low)
		snap.PriceChange24h = nullFloat(change)
		snap.PriceChangePercentage24h = nullFloat(pct)
		snap.ATH = nullFloat(ath)
		snap.ATHDate = nullTime(athDate)
		snap.ATL = nullFloat(atl)
		snap.ATLDate = nullTime(atlDate)
		snap.LastUpdated = nullTime(lastUpd)
		snap.ObservedAt = snap.ObservedAt.UTC()
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "scan", Err: err}
	}
	return snaps, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
