package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/crypto_prices_etl/internal/config"
	"github.com/vitos/crypto_prices_etl/internal/infrastructure/exchange"
	"github.com/vitos/crypto_prices_etl/internal/infrastructure/logger"
	"github.com/vitos/crypto_prices_etl/internal/infrastructure/storage"
	"github.com/vitos/crypto_prices_etl/internal/usecase"
	"github.com/vitos/crypto_prices_etl/internal/web"
	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("ETL_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load Config
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		return 1
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Init Storage
	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open datastore", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Error closing datastore", zap.Error(err))
		}
	}()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Error("Failed to create table", zap.Error(err))
		return 1
	}
	log.Info("Table created/verified", zap.String("driver", cfg.Database.Driver))

	// 4. Init Source (CoinGecko)
	source := exchange.NewCoinGeckoAdapter(cfg.API.BaseURL, exchange.MarketsQuery{
		VsCurrency: cfg.API.VsCurrency,
		Order:      cfg.API.Order,
		PerPage:    cfg.API.PerPage,
		Page:       cfg.API.Page,
	}, cfg.API.Timeout, log.Named("coingecko"))

	// 5. Init Pipeline
	pipeline := usecase.NewPipelineService(source, store, cfg.Polling.Interval, log.Named("pipeline"))

	// 6. Optional status server
	var server *web.Server
	if cfg.Server.Port != 0 {
		server = web.NewServer(cfg.Server.Port, store, pipeline, cfg.Server.DefaultLimit, log.Named("web"))
		go func() {
			if err := server.Start(); err != nil {
				log.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	// 7. Run until interrupted
	if err := pipeline.Run(ctx); err != nil {
		log.Error("Pipeline failed", zap.Error(err))
		return 1
	}

	log.Info("Shutting down...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Status server shutdown", zap.Error(err))
		}
	}
	return 0
}
