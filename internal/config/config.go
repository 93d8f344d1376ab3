package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// DatabaseURL selects the redemption store. Empty means in-memory.
	DatabaseURL string

	DefaultTokenTTL   time.Duration
	HeartbeatInterval time.Duration
	MaxConnections    int
	SendBufferSize    int
}

func Load() (*Config, error) {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}

	ttlSeconds, err := getEnvInt("TOKEN_TTL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	if ttlSeconds <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL_SECONDS must be positive, got %d", ttlSeconds)
	}
	cfg.DefaultTokenTTL = time.Duration(ttlSeconds) * time.Second

	heartbeatSeconds, err := getEnvInt("HEARTBEAT_SECONDS", 25)
	if err != nil {
		return nil, err
	}
	if heartbeatSeconds <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_SECONDS must be positive, got %d", heartbeatSeconds)
	}
	cfg.HeartbeatInterval = time.Duration(heartbeatSeconds) * time.Second

	cfg.MaxConnections, err = getEnvInt("MAX_CONNECTIONS", 1000)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConnections <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}

	cfg.SendBufferSize, err = getEnvInt("SEND_BUFFER_SIZE", 16)
	if err != nil {
		return nil, err
	}
	if cfg.SendBufferSize <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", cfg.SendBufferSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}
