package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	JWTSecret          string
	JWTAccessExpiry    time.Duration
	JWTRefreshExpiry   time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// Token vault
	TokenEncryptionSecret string

	// Extraction (OpenAI)
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIInputRateUSD  float64 // per token
	OpenAIOutputRateUSD float64 // per token

	// Scan pipeline
	ScanCostCapUSD  float64
	TimeWindowDays  int
	RetentionDays   int
	MaxScanMessages int

	// Entity resolver
	FuzzyMatchThreshold float64
	RecencyFreshDays    int
	RecencyRecentDays   int

	// Link snapshots
	LinkFetchTimeout  time.Duration
	LinkFetchMaxBytes int64

	// Retention purge
	PurgeInterval time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	accessExpiry := 15 * time.Minute
	if exp := os.Getenv("JWT_ACCESS_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			accessExpiry = parsed
		}
	}

	refreshExpiry := 168 * time.Hour // 7 days
	if exp := os.Getenv("JWT_REFRESH_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			refreshExpiry = parsed
		}
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:    accessExpiry,
		JWTRefreshExpiry:   refreshExpiry,
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/auth/google/callback"),

		TokenEncryptionSecret: getEnv("TOKEN_ENCRYPTION_SECRET", ""),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini-2024-07-18"),
		OpenAIInputRateUSD:  getEnvFloat("OPENAI_INPUT_RATE_USD", 0.15/1_000_000),
		OpenAIOutputRateUSD: getEnvFloat("OPENAI_OUTPUT_RATE_USD", 0.60/1_000_000),

		ScanCostCapUSD:  getEnvFloat("SCAN_COST_CAP_USD", 2.0),
		TimeWindowDays:  getEnvInt("SCAN_TIME_WINDOW_DAYS", 90),
		RetentionDays:   getEnvInt("SCAN_RETENTION_DAYS", 30),
		MaxScanMessages: getEnvInt("SCAN_MAX_MESSAGES", 200),

		FuzzyMatchThreshold: getEnvFloat("FUZZY_MATCH_THRESHOLD", 0.92),
		RecencyFreshDays:    getEnvInt("RECENCY_FRESH_DAYS", 7),
		RecencyRecentDays:   getEnvInt("RECENCY_RECENT_DAYS", 30),

		LinkFetchTimeout:  getEnvDuration("LINK_FETCH_TIMEOUT", 2*time.Second),
		LinkFetchMaxBytes: int64(getEnvInt("LINK_FETCH_MAX_BYTES", 256*1024)),

		PurgeInterval: getEnvDuration("PURGE_INTERVAL", time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
