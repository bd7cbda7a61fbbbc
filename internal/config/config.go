package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	AppEnv      string
	DatabaseURL string

	JWTSecret        string
	EncryptionSecret string
	CORSOrigins      []string

	EthgasAPIURL       string
	EthgasTimeout      time.Duration
	TradingAccountType int

	SyncInterval    time.Duration
	SyncConcurrency int
	MarketCacheTTL  time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int

	MetricsUser     string
	MetricsPassword string
}

func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// Load читает .env (если есть), затем переменные окружения
func Load() (*Config, error) {
	// Отсутствие .env в проде это нормально
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "production"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		EncryptionSecret: os.Getenv("ENCRYPTION_SECRET"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGIN", "http://localhost:3000")),
		EthgasAPIURL:     getEnv("ETHGAS_API_URL", "https://hoodi.app.ethgas.com"),
		MetricsUser:      os.Getenv("METRICS_USER"),
		MetricsPassword:  os.Getenv("METRICS_PASSWORD"),
	}

	var errs []error
	var err error
	if cfg.EthgasTimeout, err = getDuration("ETHGAS_TIMEOUT", 30*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.SyncInterval, err = getDuration("SYNC_INTERVAL", time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.MarketCacheTTL, err = getDuration("MARKET_CACHE_TTL", 5*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.SyncConcurrency, err = getInt("SYNC_CONCURRENCY", 4); err != nil {
		errs = append(errs, err)
	}
	if cfg.TradingAccountType, err = getInt("ETHGAS_TRADING_ACCOUNT_TYPE", 2); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 50); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitPerSecond, err = getFloat("RATE_LIMIT_RPS", 20); err != nil {
		errs = append(errs, err)
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(cfg.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if cfg.EncryptionSecret == "" {
		errs = append(errs, errors.New("ENCRYPTION_SECRET is required"))
	}
	if cfg.EthgasTimeout <= 0 {
		errs = append(errs, errors.New("ETHGAS_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
