package main

import (
	"context"
	"log"
	"time"

	"starpay/internal/chain"
	"starpay/internal/config"
	"starpay/internal/db"
	"starpay/internal/gateway"
	"starpay/internal/ledger"
	"starpay/internal/logger"
	"starpay/internal/pricing"
	"starpay/internal/services"
	"starpay/internal/store"
	"starpay/internal/worker"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		zl.Fatal("db connect failed", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zl.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()

	rec := &services.Reconciler{
		Store:             store.New(pool),
		Ledger:            ledger.NewRedisLedger(rdb),
		Gateway:           gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.ClientID, cfg.Gateway.SecretKey),
		Chain:             chain.NewIndexerClient(cfg.Ton.IndexerURL, cfg.Ton.APIKey, cfg.Ton.WalletAddress),
		Pricing:           pricing.New(cfg.Pricing.FeedURL, cfg.Pricing.AssetID, cfg.Pricing.FiatID, cfg.Pricing.FallbackRateMinor, zl),
		Log:               zl,
		CallbackURL:       cfg.Gateway.CallbackURL,
		CommissionPercent: cfg.Gateway.CommissionPercent,
		MinAmountMinor:    cfg.Orders.MinAmountMinor,
		MaxAmountMinor:    cfg.Orders.MaxAmountMinor,
		TTL:               time.Duration(cfg.Orders.TTLMinutes) * time.Minute,
		ScanLimit:         cfg.Ton.ScanLimit,
	}

	w := &worker.Worker{
		Reconciler: rec,
		Interval:   time.Duration(cfg.Worker.IntervalSeconds) * time.Second,
		Log:        zl,
	}

	zl.Info("worker started",
		zap.String("indexer", cfg.Ton.IndexerURL),
		zap.Int64("interval_seconds", cfg.Worker.IntervalSeconds))
	w.Run(ctx)
}
