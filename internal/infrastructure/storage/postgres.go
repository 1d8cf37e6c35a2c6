package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/crypto_prices_etl/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// cryptoPrice is the gorm model of the crypto_prices table.
type cryptoPrice struct {
	InternalID int64  `gorm:"column:internal_id;primaryKey;autoIncrement"`
	CoinID     string `gorm:"column:id;type:varchar(100);not null;index:idx_crypto_prices_coin_time,priority:1"`
	Symbol     string `gorm:"column:symbol;type:varchar(100);not null"`
	Name       string `gorm:"column:name;type:varchar(100);not null"`
	Image      string `gorm:"column:image;type:varchar(200);not null"`

	CurrentPrice  float64  `gorm:"column:current_price;type:double precision;not null"`
	MarketCap     *float64 `gorm:"column:market_cap;type:double precision"`
	MarketCapRank *int64   `gorm:"column:market_cap_rank;type:integer"`
	TotalVolume   *float64 `gorm:"column:total_volume;type:double precision"`

	High24h                  *float64 `gorm:"column:high_24h;type:double precision"`
	Low24h                   *float64 `gorm:"column:low_24h;type:double precision"`
	PriceChange24h           *float64 `gorm:"column:price_change_24h;type:double precision"`
	PriceChangePercentage24h *float64 `gorm:"column:price_change_percentage_24h;type:double precision"`

	ATH     *float64   `gorm:"column:ath;type:double precision"`
	ATHDate *time.Time `gorm:"column:ath_date;type:timestamp"`
	ATL     *float64   `gorm:"column:atl;type:double precision"`
	ATLDate *time.Time `gorm:"column:atl_date;type:timestamp"`

	LastUpdated *time.Time `gorm:"column:last_updated;type:timestamp"`
	TimeStamp   time.Time  `gorm:"column:time_stamp;type:timestamp;not null;default:CURRENT_TIMESTAMP;index:idx_crypto_prices_coin_time,priority:2"`
}

func (cryptoPrice) TableName() string {
	return "crypto_prices"
}

func toRecord(s *domain.MarketSnapshot) cryptoPrice {
	rec := cryptoPrice{
		CoinID:                   s.CoinID,
		Symbol:                   s.Symbol,
		Name:                     s.Name,
		Image:                    s.ImageURL,
		CurrentPrice:             s.CurrentPrice,
		MarketCap:                s.MarketCap,
		MarketCapRank:            s.MarketCapRank,
		TotalVolume:              s.TotalVolume,
		High24h:                  s.High24h,
		Low24h:                   s.Low24h,
		PriceChange24h:           s.PriceChange24h,
		PriceChangePercentage24h: s.PriceChangePercentage24h,
		ATH:                      s.ATH,
		ATHDate:                  utcPtr(s.ATHDate),
		ATL:                      s.ATL,
		ATLDate:                  utcPtr(s.ATLDate),
		LastUpdated:              utcPtr(s.LastUpdated),
	}
	if !s.ObservedAt.IsZero() {
		rec.TimeStamp = s.ObservedAt.UTC()
	}
	return rec
}

func (r cryptoPrice) toDomain() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		InternalID:               r.InternalID,
		CoinID:                   r.CoinID,
		Symbol:                   r.Symbol,
		Name:                     r.Name,
		ImageURL:                 r.Image,
		CurrentPrice:             r.CurrentPrice,
		MarketCap:                r.MarketCap,
		MarketCapRank:            r.MarketCapRank,
		TotalVolume:              r.TotalVolume,
		High24h:                  r.High24h,
		Low24h:                   r.Low24h,
		PriceChange24h:           r.PriceChange24h,
		PriceChangePercentage24h: r.PriceChangePercentage24h,
		ATH:                      r.ATH,
		ATHDate:                  utcPtr(r.ATHDate),
		ATL:                      r.ATL,
		ATLDate:                  utcPtr(r.ATLDate),
		LastUpdated:              utcPtr(r.LastUpdated),
		ObservedAt:               r.TimeStamp.UTC(),
	}
}

// PostgresOption configures the connection pool of a PostgresStore.
type PostgresOption struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          *zap.Logger
}

type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(ctx context.Context, opt PostgresOption) (*PostgresStore, error) {
	config := &gorm.Config{
		Logger: newGormLogger(opt.Logger),
	}

	db, err := gorm.Open(postgres.Open(opt.DSN), config)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if opt.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opt.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opt.MaxOpenConns)
	}
	if opt.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates crypto_prices when it is absent. An existing table is
// left untouched, unlike AutoMigrate which would add missing columns.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	m := s.db.WithContext(ctx).Migrator()
	if m.HasTable(&cryptoPrice{}) {
		return nil
	}
	if err := m.CreateTable(&cryptoPrice{}); err != nil {
		return &domain.PersistenceError{Op: "ensure schema", Err: err}
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *domain.MarketSnapshot) error {
	rec := toRecord(snap)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rec).Error
	})
	if err != nil {
		return &domain.PersistenceError{Op: "insert", Err: err}
	}

	snap.InternalID = rec.InternalID
	snap.ObservedAt = rec.TimeStamp.UTC()
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*domain.MarketSnapshot, error) {
	var recs []cryptoPrice
	if err := s.db.WithContext(ctx).Order("internal_id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "query", Err: err}
	}
	return toDomainList(recs), nil
}

func (s *PostgresStore) ListByCoin(ctx context.Context, coinID string, limit int) ([]*domain.MarketSnapshot, error) {
	var recs []cryptoPrice
	err := s.db.WithContext(ctx).
		Where("id = ?", coinID).
		Order("internal_id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query", Err: err}
	}
	return toDomainList(recs), nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDomainList(recs []cryptoPrice) []*domain.MarketSnapshot {
	out := make([]*domain.MarketSnapshot, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out
}

// zapWriter adapts zap to gorm's logger.Writer.
type zapWriter struct {
	sugar *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.sugar.Warnf(format, args...)
}

func newGormLogger(log *zap.Logger) gormlogger.Interface {
	if log == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(zapWriter{sugar: log.Named("gorm").Sugar()}, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
