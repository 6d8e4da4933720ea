package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API server.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	GeminiAPIKey       string
	GeminiBaseURL      string
	GeminiTimeoutMS    int
	GeminiMaxRetries   int
	GeminiModelDefault string

	SummaryCacheTTLSeconds int
	SummaryCacheMaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	EventHistoryCap        int
	StreamKeepaliveSeconds int
	MaxFileUploadBytes     int

	SeedDefaultWebhook bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeoutMS:    getEnvInt("GEMINI_TIMEOUT_MS", 30000),
		GeminiMaxRetries:   getEnvInt("GEMINI_MAX_RETRIES", 2),
		GeminiModelDefault: getEnv("GEMINI_MODEL_DEFAULT", "gemini-2.5-flash"),

		SummaryCacheTTLSeconds: getEnvInt("SUMMARY_CACHE_TTL_SECONDS", 900),
		SummaryCacheMaxEntries: getEnvInt("SUMMARY_CACHE_MAX_ENTRIES", 1000),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "*"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		EventHistoryCap:        getEnvInt("EVENT_HISTORY_CAP", 20),
		StreamKeepaliveSeconds: getEnvInt("STREAM_KEEPALIVE_SECONDS", 30),
		MaxFileUploadBytes:     getEnvInt("MAX_FILE_UPLOAD_BYTES", 10<<20),

		SeedDefaultWebhook: getEnvBool("SEED_DEFAULT_WEBHOOK", true),
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

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key, fallback string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
