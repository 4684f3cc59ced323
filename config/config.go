package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"storefront-payment-api/database"
	"storefront-payment-api/services/email"
	"storefront-payment-api/services/payment"
)

type Config struct {
	Database       database.DatabaseConfig
	SMTP           email.SMTPConfig
	Server         ServerConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Session        SessionConfig
	Gateway        GatewayConfig
	SettingsTTL    time.Duration
	Reconciliation ReconciliationConfig
	InternalSecret string
}

type ServerConfig struct {
	Port string
}

type RedisConfig struct {
	URL               string
	WorkerConcurrency int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type SessionConfig struct {
	Secret string
	Domain string
	MaxAge int
	// Insecure allows the session cookie over plain HTTP in development.
	Insecure bool
}

type GatewayConfig struct {
	CardLatency   time.Duration
	PayPalLatency time.Duration
	MobileLatency time.Duration
	Timeout       time.Duration
}

// Options turns the latencies into simulated gateway options. Sleeper, clock
// and soft-decline policy keep their defaults.
func (g GatewayConfig) Options() payment.GatewayOptions {
	return payment.GatewayOptions{
		CardLatency:   g.CardLatency,
		PayPalLatency: g.PayPalLatency,
		MobileLatency: g.MobileLatency,
	}
}

type ReconciliationConfig struct {
	Token string
}

const (
	minWorkerConcurrency = 1
	maxWorkerConcurrency = 8
)

// Load reads .env when present, then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}
	return FromEnv()
}

func FromEnv() *Config {
	cfg := &Config{
		Database: database.DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		SMTP: email.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Server: ServerConfig{
			Port: getString("SERVER_PORT", "8080"),
		},
		Redis: RedisConfig{
			URL:               getString("REDIS_URL", "redis://localhost:6379/0"),
			WorkerConcurrency: clamp(getInt("WORKER_CONCURRENCY", 2), minWorkerConcurrency, maxWorkerConcurrency),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: os.Getenv("JWT_ISSUER"),
		},
		Session: SessionConfig{
			Secret:   os.Getenv("SESSION_SECRET"),
			Domain:   os.Getenv("SESSION_DOMAIN"),
			MaxAge:   getInt("SESSION_MAX_AGE", 86400),
			Insecure: os.Getenv("SESSION_INSECURE") == "true",
		},
		Gateway: GatewayConfig{
			CardLatency:   getMillis("GATEWAY_CARD_LATENCY_MS", payment.DefaultCardLatency),
			PayPalLatency: getMillis("GATEWAY_PAYPAL_LATENCY_MS", payment.DefaultPayPalLatency),
			MobileLatency: getMillis("GATEWAY_MOBILE_LATENCY_MS", payment.DefaultMobileLatency),
			Timeout:       getMillis("GATEWAY_TIMEOUT_MS", 10*time.Second),
		},
		SettingsTTL: time.Duration(getInt("SETTINGS_CACHE_TTL_SECONDS", 60)) * time.Second,
		Reconciliation: ReconciliationConfig{
			Token: os.Getenv("RECONCILIATION_TOKEN"),
		},
		InternalSecret: os.Getenv("INTERNAL_API_SECRET"),
	}

	if cfg.JWT.Secret == "" {
		log.Printf("Warning: JWT_SECRET not set, authenticated endpoints will reject every token")
	}
	if cfg.Reconciliation.Token == "" {
		log.Printf("Warning: RECONCILIATION_TOKEN not set, reconciliation webhook is disabled")
	}

	log.Printf("Config loaded: port=%s redis=%s workers=%d db=%s@%s/%s",
		cfg.Server.Port, cfg.Redis.URL, cfg.Redis.WorkerConcurrency,
		cfg.Database.User, cfg.Database.Host, cfg.Database.DBName)

	return cfg
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("Warning: invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getMillis(key string, fallback time.Duration) time.Duration {
	return time.Duration(getInt(key, int(fallback.Milliseconds()))) * time.Millisecond
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
