package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Gateway struct {
		BaseURL           string  `yaml:"base_url"`
		ClientID          int64   `yaml:"client_id"`
		SecretKey         string  `yaml:"secret_key"`
		CallbackURL       string  `yaml:"callback_url"`
		CommissionPercent float64 `yaml:"commission_percent"`
	} `yaml:"gateway"`
	Ton struct {
		WalletAddress string `yaml:"wallet_address"`
		IndexerURL    string `yaml:"indexer_url"`
		APIKey        string `yaml:"api_key"`
		ScanLimit     int    `yaml:"scan_limit"`
	} `yaml:"ton"`
	Pricing struct {
		FeedURL           string `yaml:"feed_url"`
		AssetID           string `yaml:"asset_id"`
		FiatID            string `yaml:"fiat_id"`
		FallbackRateMinor int64  `yaml:"fallback_rate_minor"`
	} `yaml:"pricing"`
	Orders struct {
		MinAmountMinor int64 `yaml:"min_amount_minor"`
		MaxAmountMinor int64 `yaml:"max_amount_minor"`
		TTLMinutes     int   `yaml:"ttl_minutes"`
	} `yaml:"orders"`
	Worker struct {
		IntervalSeconds int64 `yaml:"interval_seconds"`
	} `yaml:"worker"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	if cfg.Gateway.BaseURL == "" || cfg.Gateway.SecretKey == "" {
		return nil, errors.New("gateway config is incomplete")
	}
	if cfg.Ton.WalletAddress == "" || cfg.Ton.IndexerURL == "" {
		return nil, errors.New("ton config is incomplete")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Ton.ScanLimit <= 0 {
		cfg.Ton.ScanLimit = 50
	}
	if cfg.Pricing.AssetID == "" {
		cfg.Pricing.AssetID = "the-open-network"
	}
	if cfg.Pricing.FiatID == "" {
		cfg.Pricing.FiatID = "rub"
	}
	if cfg.Pricing.FallbackRateMinor <= 0 {
		// 200 rubles per TON, in kopecks.
		cfg.Pricing.FallbackRateMinor = 20000
	}
	if cfg.Orders.TTLMinutes <= 0 {
		cfg.Orders.TTLMinutes = 30
	}
	if cfg.Worker.IntervalSeconds <= 0 {
		cfg.Worker.IntervalSeconds = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		cfg.Redis.DB = atoiOr(cfg.Redis.DB, v)
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_CLIENT_ID"); v != "" {
		cfg.Gateway.ClientID = atoi64Or(cfg.Gateway.ClientID, v)
	}
	if v := os.Getenv("GATEWAY_SECRET_KEY"); v != "" {
		cfg.Gateway.SecretKey = v
	}
	if v := os.Getenv("GATEWAY_CALLBACK_URL"); v != "" {
		cfg.Gateway.CallbackURL = v
	}
	if v := os.Getenv("TON_WALLET_ADDRESS"); v != "" {
		cfg.Ton.WalletAddress = v
	}
	if v := os.Getenv("TON_INDEXER_URL"); v != "" {
		cfg.Ton.IndexerURL = v
	}
	if v := os.Getenv("TON_API_KEY"); v != "" {
		cfg.Ton.APIKey = v
	}
	if v := os.Getenv("TON_SCAN_LIMIT"); v != "" {
		cfg.Ton.ScanLimit = atoiOr(cfg.Ton.ScanLimit, v)
	}
	if v := os.Getenv("PRICE_FEED_URL"); v != "" {
		cfg.Pricing.FeedURL = v
	}
	if v := os.Getenv("PRICE_FALLBACK_RATE_MINOR"); v != "" {
		cfg.Pricing.FallbackRateMinor = atoi64Or(cfg.Pricing.FallbackRateMinor, v)
	}
	if v := os.Getenv("MIN_AMOUNT_MINOR"); v != "" {
		cfg.Orders.MinAmountMinor = atoi64Or(cfg.Orders.MinAmountMinor, v)
	}
	if v := os.Getenv("MAX_AMOUNT_MINOR"); v != "" {
		cfg.Orders.MaxAmountMinor = atoi64Or(cfg.Orders.MaxAmountMinor, v)
	}
	if v := os.Getenv("ORDER_TTL_MINUTES"); v != "" {
		cfg.Orders.TTLMinutes = atoiOr(cfg.Orders.TTLMinutes, v)
	}
	if v := os.Getenv("WORKER_INTERVAL_SECONDS"); v != "" {
		cfg.Worker.IntervalSeconds = atoi64Or(cfg.Worker.IntervalSeconds, v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
