package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starpay/internal/chain"
	"starpay/internal/config"
	"starpay/internal/db"
	"starpay/internal/gateway"
	internalhttp "starpay/internal/http"
	"starpay/internal/ledger"
	"starpay/internal/logger"
	"starpay/internal/pricing"
	"starpay/internal/services"
	"starpay/internal/store"

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

	h := internalhttp.NewHandler(rec)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		zl.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
