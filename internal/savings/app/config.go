package app

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acornbank/acorn/internal/savings/service"
	"github.com/acornbank/acorn/pkg/jwtx"
)

type Config struct {
	Issuer        string // Issuer claim for tokens (default: acorn-savings)
	AccessSecret  string // Required: HMAC secret for access tokens
	RefreshSecret string // Required: HMAC secret for refresh tokens

	DatabaseFile string // Path to SQLite database file (default: ./savings.db)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 168h)

	CodeTTL          time.Duration   // One-time code lifetime (default: 10m)
	MaxLoginAttempts int             // Wrong passwords before lockout (default: 5)
	AttemptWindow    time.Duration   // Lockout counting window (default: 15m)
	PendingThreshold decimal.Decimal // Amount that triggers PIN confirmation (default: 1000.00)
	ConfirmWindow    time.Duration   // Pending confirmation deadline (default: 20m)
	SweepInterval    time.Duration   // Background cleanup cadence (default: 5m)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP probe port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Issuer:        getEnvOrDefault("SAVINGS_ISSUER", "acorn-savings"),
		AccessSecret:  os.Getenv("SAVINGS_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("SAVINGS_REFRESH_SECRET"),

		DatabaseFile: getEnvOrDefault("SAVINGS_DATABASE_FILE", "savings.db"),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),

		CodeTTL:          getEnvDurationOrDefault("CODE_TTL", service.DefaultCodeTTL),
		MaxLoginAttempts: getEnvIntOrDefault("MAX_LOGIN_ATTEMPTS", service.DefaultMaxLoginAttempts),
		AttemptWindow:    getEnvDurationOrDefault("ATTEMPT_WINDOW", service.DefaultAttemptWindow),
		PendingThreshold: getEnvDecimalOrDefault("PENDING_THRESHOLD", service.DefaultPendingThreshold),
		ConfirmWindow:    getEnvDurationOrDefault("CONFIRM_WINDOW", service.DefaultConfirmWindow),
		SweepInterval:    getEnvDurationOrDefault("SWEEP_INTERVAL", service.DefaultSweepInterval),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

func getEnvDecimalOrDefault(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := decimal.NewFromString(value); err == nil {
		return d
	}
	return defaultValue
}
