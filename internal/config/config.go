package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr       string
	BaseURL    string
	CORSOrigin string
	// Redis - empty by default, single-node fan-out if not configured
	RedisURL string

	SessionCodeLength int
}

func Load() Config {
	return Config{
		Addr:              getenv("API_ADDR", ":5000"),
		BaseURL:           getenv("PULSE_BASE_URL", ""),
		CORSOrigin:        getenv("PULSE_CORS_ORIGIN", "*"),
		RedisURL:          getenv("REDIS_URL", ""),
		SessionCodeLength: getenvInt("PULSE_CODE_LENGTH", 8),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
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
