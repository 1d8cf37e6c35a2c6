package domain

import "time"

// MarketSnapshot is one coin's market data at one observation instant.
// Rows are append-only: many snapshots may share the same CoinID.
type MarketSnapshot struct {
	InternalID int64 `json:"internal_id"` // assigned by the datastore on insert

	CoinID   string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	ImageURL string `json:"image"`

	CurrentPrice  float64  `json:"current_price"`
	MarketCap     *float64 `json:"market_cap"`
	MarketCapRank *int64   `json:"market_cap_rank"`
	TotalVolume   *float64 `json:"total_volume"`

	High24h                  *float64 `json:"high_24h"`
	Low24h                   *float64 `json:"low_24h"`
	PriceChange24h           *float64 `json:"price_change_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`

	ATH     *float64   `json:"ath"`
	ATHDate *time.Time `json:"ath_date"`
	ATL     *float64   `json:"atl"`
	ATLDate *time.Time `json:"atl_date"`

	LastUpdated *time.Time `json:"last_updated"`
	ObservedAt  time.Time  `json:"time_stamp"` // set at extraction time, UTC
}
