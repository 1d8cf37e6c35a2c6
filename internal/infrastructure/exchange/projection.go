package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vitos/crypto_prices_etl/internal/domain"
)

// coinPayload is the subset of a /coins/markets element that is persisted.
// Fields are kept raw so that a value of the wrong JSON type becomes null
// for that column instead of failing the whole element.
type coinPayload struct {
	ID                       json.RawMessage `json:"id"`
	Symbol                   json.RawMessage `json:"symbol"`
	Name                     json.RawMessage `json:"name"`
	Image                    json.RawMessage `json:"image"`
	CurrentPrice             json.RawMessage `json:"current_price"`
	MarketCap                json.RawMessage `json:"market_cap"`
	MarketCapRank            json.RawMessage `json:"market_cap_rank"`
	TotalVolume              json.RawMessage `json:"total_volume"`
	High24h                  json.RawMessage `json:"high_24h"`
	Low24h                   json.RawMessage `json:"low_24h"`
	PriceChange24h           json.RawMessage `json:"price_change_24h"`
	PriceChangePercentage24h json.RawMessage `json:"price_change_percentage_24h"`
	ATH                      json.RawMessage `json:"ath"`
	ATHDate                  json.RawMessage `json:"ath_date"`
	ATL                      json.RawMessage `json:"atl"`
	ATLDate                  json.RawMessage `json:"atl_date"`
	LastUpdated              json.RawMessage `json:"last_updated"`
}

var errNotObject = errors.New("element is not a JSON object")

func projectCoin(raw json.RawMessage, observedAt time.Time) (domain.MarketSnapshot, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return domain.MarketSnapshot{}, errNotObject
	}

	var p coinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("decode coin: %w", err)
	}

	id := rawString(p.ID)
	symbol := rawString(p.Symbol)
	name := rawString(p.Name)
	image := rawString(p.Image)
	price := rawFloat(p.CurrentPrice)

	var missing []string
	if id == nil {
		missing = append(missing, "id")
	}
	if symbol == nil {
		missing = append(missing, "symbol")
	}
	if name == nil {
		missing = append(missing, "name")
	}
	if image == nil {
		missing = append(missing, "image")
	}
	if price == nil {
		missing = append(missing, "current_price")
	}
	if len(missing) > 0 {
		coin := ""
		if id != nil {
			coin = *id
		}
		return domain.MarketSnapshot{}, fmt.Errorf("coin %q missing required fields: %s", coin, strings.Join(missing, ", "))
	}

	return domain.MarketSnapshot{
		CoinID:                   *id,
		Symbol:                   *symbol,
		Name:                     *name,
		ImageURL:                 *image,
		CurrentPrice:             *price,
		MarketCap:                rawFloat(p.MarketCap),
		MarketCapRank:            toRank(rawFloat(p.MarketCapRank)),
		TotalVolume:              rawFloat(p.TotalVolume),
		High24h:                  rawFloat(p.High24h),
		Low24h:                   rawFloat(p.Low24h),
		PriceChange24h:           rawFloat(p.PriceChange24h),
		PriceChangePercentage24h: rawFloat(p.PriceChangePercentage24h),
		ATH:                      rawFloat(p.ATH),
		ATHDate:                  ParseTimestamp(rawString(p.ATHDate)),
		ATL:                      rawFloat(p.ATL),
		ATLDate:                  ParseTimestamp(rawString(p.ATLDate)),
		LastUpdated:              ParseTimestamp(rawString(p.LastUpdated)),
		ObservedAt:               observedAt,
	}, nil
}

// rawString returns nil for an absent, null or non-string value.
func rawString(raw json.RawMessage) *string {
	var v *string
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}

// rawFloat returns nil for an absent, null or non-numeric value.
func rawFloat(raw json.RawMessage) *float64 {
	var v *float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}

// toRank keeps whole ranks that fit the integer column.
func toRank(v *float64) *int64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v != math.Trunc(*v) {
		return nil
	}
	if *v < math.MinInt32 || *v > math.MaxInt32 {
		return nil
	}
	r := int64(*v)
	return &r
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp normalises an upstream date string to UTC.
// Empty or unparseable input yields nil.
func ParseTimestamp(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
