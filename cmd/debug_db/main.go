package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vitos/crypto_prices_etl/internal/config"
	"github.com/vitos/crypto_prices_etl/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, cfg, nil)
	if err != nil {
		fmt.Printf("Failed to open %s: %v\n", cfg.Database.Driver, err)
		os.Exit(1)
	}
	defer store.Close()

	snaps, err := store.ListRecent(ctx, 20)
	if err != nil {
		fmt.Printf("Failed to list snapshots: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d recent rows:\n", len(snaps))
	for _, s := range snaps {
		fmt.Printf("- #%d %s (%s) price=%f observed=%s\n",
			s.InternalID, s.CoinID, s.Symbol, s.CurrentPrice, s.ObservedAt.Format(time.RFC3339))
		if s.MarketCap == nil {
			fmt.Printf("  ⚠️ market_cap is null\n")
		}
		if s.LastUpdated == nil {
			fmt.Printf("  ⚠️ last_updated is null\n")
		}
	}
}
