package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the ingestion scheduler host.
type Config struct {
	Port string

	AuthToken string

	IngestBaseURL   string
	IngestAPIKey    string
	IngestTimeoutMS int

	MaxConcurrent  int
	PollIntervalMS int
	PollTimeoutMS  int

	UploadDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NotifyStream  string

	DatabaseURL string

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		IngestBaseURL:   getEnv("INGEST_BASE_URL", ""),
		IngestAPIKey:    getEnv("INGEST_API_KEY", ""),
		IngestTimeoutMS: getEnvInt("INGEST_TIMEOUT_MS", 15000),

		MaxConcurrent:  getEnvInt("MAX_CONCURRENT", 3),
		PollIntervalMS: getEnvInt("POLL_INTERVAL_MS", 5000),
		PollTimeoutMS:  getEnvInt("POLL_TIMEOUT_MS", 300000),

		UploadDir: getEnv("UPLOAD_DIR", "uploads"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		NotifyStream:  getEnv("NOTIFY_STREAM", "na_notifications"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
