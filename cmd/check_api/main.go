package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vitos/crypto_prices_etl/internal/config"
	"github.com/vitos/crypto_prices_etl/internal/infrastructure/exchange"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	adapter := exchange.NewCoinGeckoAdapter(cfg.API.BaseURL, exchange.MarketsQuery{
		VsCurrency: cfg.API.VsCurrency,
		Order:      cfg.API.Order,
		PerPage:    cfg.API.PerPage,
		Page:       cfg.API.Page,
	}, cfg.API.Timeout, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Printf("Testing CoinGecko...\n")
	fmt.Printf("Endpoint: %s\n", adapter.MarketsURL())

	if err := adapter.Ping(ctx); err != nil {
		fmt.Printf("❌ Ping failed: %v\n", err)
	} else {
		fmt.Printf("✅ Ping OK\n")
	}

	rows, err := adapter.Extract(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to extract markets: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Extracted %d rows\n", len(rows))
	for i, r := range rows {
		if i == 10 {
			fmt.Printf("  ... %d more\n", len(rows)-10)
			break
		}
		rank := "-"
		if r.MarketCapRank != nil {
			rank = fmt.Sprintf("%d", *r.MarketCapRank)
		}
		fmt.Printf("  #%s %s (%s): %.2f %s\n", rank, r.Name, r.Symbol, r.CurrentPrice, cfg.API.VsCurrency)
	}
}
