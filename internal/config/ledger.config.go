package config

import (
	"os"
	"strconv"
	"strings"

	"coin-ledger/internal/domain"
)

type AppConfig struct {
	HTTPAddr     string
	RedisAddr    string
	RedisPass    string
	KafkaBrokers []string
	KafkaTopic   string
	GeoIPPath    string // optional MaxMind database; empty disables geo resolution

	// Fraud analyzer thresholds
	VelocityHourly    int
	LargeAmount       int64
	HighRiskCountries []string

	// Emergency economy controls snapshot
	Economy domain.EconomyControls
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8041"),
		RedisAddr:    getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", []string{"kafka:9092"}),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "ledger_events"),
		GeoIPPath:    getEnv("GEOIP_DB_PATH", ""),

		VelocityHourly:    getEnvInt("FRAUD_VELOCITY_HOURLY", 20),
		LargeAmount:       getEnvInt64("FRAUD_LARGE_AMOUNT", 25_000),
		HighRiskCountries: getEnvSlice("FRAUD_HIGH_RISK_COUNTRIES", nil),

		Economy: domain.EconomyControls{
			Enabled:              getEnvBool("ECONOMY_CONTROLS_ENABLED", false),
			MaxTransactionAmount: getEnvInt64("ECONOMY_MAX_TX_AMOUNT", 0),
			FreezeGifting:        getEnvBool("ECONOMY_FREEZE_GIFTING", false),
			FreezeGaming:         getEnvBool("ECONOMY_FREEZE_GAMING", false),
			FreezeWithdrawals:    getEnvBool("ECONOMY_FREEZE_WITHDRAWALS", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
