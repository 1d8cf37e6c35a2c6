package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/crypto_prices_etl/internal/domain"
	"go.uber.org/zap"
)

const (
	CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

	userAgent       = "crypto_prices_etl/1.0"
	maxErrorSnippet = 512
)

// MarketsQuery holds the fixed query parameters of /coins/markets.
type MarketsQuery struct {
	VsCurrency string
	Order      string
	PerPage    int
	Page       int
}

// DefaultMarketsQuery is the top 250 coins by market cap, priced in BRL.
func DefaultMarketsQuery() MarketsQuery {
	return MarketsQuery{
		VsCurrency: "brl",
		Order:      "market_cap_desc",
		PerPage:    250,
		Page:       1,
	}
}

func (q MarketsQuery) values() url.Values {
	v := url.Values{}
	v.Set("vs_currency", q.VsCurrency)
	v.Set("order", q.Order)
	v.Set("per_page", strconv.Itoa(q.PerPage))
	v.Set("page", strconv.Itoa(q.Page))
	return v
}

type CoinGeckoAdapter struct {
	baseURL string
	query   MarketsQuery
	client  *http.Client
	logger  *zap.Logger
	timeNow func() time.Time // For testing
}

func NewCoinGeckoAdapter(baseURL string, query MarketsQuery, timeout time.Duration, logger *zap.Logger) *CoinGeckoAdapter {
	if baseURL == "" {
		baseURL = CoinGeckoBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoinGeckoAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		query:   query,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		timeNow: time.Now,
	}
}

// MarketsURL is the full request URL used by Extract.
func (c *CoinGeckoAdapter) MarketsURL() string {
	return c.baseURL + "/coins/markets?" + c.query.values().Encode()
}

func (c *CoinGeckoAdapter) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.APIError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.APIError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		apiErr := &domain.APIError{StatusCode: resp.StatusCode}
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			apiErr.Err = errors.New(msg)
		}
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.APIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// Ping checks that the API is reachable.
func (c *CoinGeckoAdapter) Ping(ctx context.Context) error {
	_, err := c.get(ctx, c.baseURL+"/ping")
	return err
}

// Extract fetches one page of coin markets and projects every element to a
// MarketSnapshot. Elements missing a required field are dropped and logged;
// the rest of the batch is kept.
func (c *CoinGeckoAdapter) Extract(ctx context.Context) ([]domain.MarketSnapshot, error) {
	observedAt := c.timeNow().UTC()

	body, err := c.get(ctx, c.MarketsURL())
	if err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, &domain.ParseError{Err: fmt.Errorf("decode markets array: %w", err)}
	}

	snapshots := make([]domain.MarketSnapshot, 0, len(elements))
	for i, raw := range elements {
		snap, err := projectCoin(raw, observedAt)
		if err != nil {
			c.logger.Warn("Dropping coin from batch", zap.Int("index", i), zap.Error(err))
			continue
		}
		snapshots = append(snapshots, snap)
	}

	c.logger.Debug("Extracted markets",
		zap.Int("elements", len(elements)),
		zap.Int("rows", len(snapshots)),
		zap.Time("observed_at", observedAt))
	return snapshots, nil
}
