package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port    string
	DBDSN   string
	LogFile string

	PublicBaseURL string

	GatewayBaseURL     string
	GatewayAccessToken string
	GatewayTimeout     time.Duration

	// WebhookSecret enables HMAC verification of inbound notifications.
	// Empty disables the check (local/sandbox runs).
	WebhookSecret string

	// RedisAddr enables the shared webhook dedupe cache. Empty falls back
	// to the in-process cache.
	RedisAddr string

	QuoteTTL            time.Duration
	ExpireSweepInterval time.Duration
}

func Load() Config {
	cfg := Config{
		Port:                getenv("PORT", "8080"),
		DBDSN:               getenv("DB_DSN", "quotedesk.db"),
		LogFile:             getenv("LOG_FILE", "./quotedesk.log"),
		PublicBaseURL:       getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		GatewayBaseURL:      getenv("GATEWAY_BASE_URL", "https://api.mercadopago.com"),
		GatewayAccessToken:  os.Getenv("GATEWAY_ACCESS_TOKEN"),
		GatewayTimeout:      getdur("GATEWAY_TIMEOUT", 10*time.Second),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		QuoteTTL:            time.Duration(getint("QUOTE_TTL_DAYS", 7)) * 24 * time.Hour,
		ExpireSweepInterval: getdur("EXPIRE_SWEEP_INTERVAL", time.Hour),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s GATEWAY_BASE_URL=%s REDIS_ADDR=%q QUOTE_TTL=%s",
		cfg.Port, cfg.DBDSN, cfg.GatewayBaseURL, cfg.RedisAddr, cfg.QuoteTTL)
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
