package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the engine daemon configuration, loaded from environment
// variables with defaults suitable for local development.
type Config struct {
	Environment string
	LogLevel    slog.Level
	RedisURL    string
	ContentDir  string

	// Pipeline sizing
	Partitions     int
	BufferSize     int
	PublishTimeout time.Duration

	// Evaluation
	PoolSize      int
	EvalTimeout   time.Duration
	ExpensiveCost int

	// Cache TTLs
	CacheTier1TTL time.Duration
	CacheTier2TTL time.Duration

	// Persistence
	SnapshotInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		ContentDir:  getEnv("CONTENT_DIR", "./data"),
	}

	var err error
	if cfg.Partitions, err = getEnvInt("PIPELINE_PARTITIONS", 8); err != nil {
		return nil, err
	}
	if cfg.BufferSize, err = getEnvInt("PIPELINE_BUFFER_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.PublishTimeout, err = getEnvDuration("PIPELINE_PUBLISH_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.PoolSize, err = getEnvInt("EVAL_POOL_SIZE", 4); err != nil {
		return nil, err
	}
	if cfg.EvalTimeout, err = getEnvDuration("EVAL_TIMEOUT", time.Second); err != nil {
		return nil, err
	}
	if cfg.ExpensiveCost, err = getEnvInt("EVAL_EXPENSIVE_COST", 50); err != nil {
		return nil, err
	}
	if cfg.CacheTier1TTL, err = getEnvDuration("CACHE_TIER1_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTier2TTL, err = getEnvDuration("CACHE_TIER2_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SnapshotInterval, err = getEnvDuration("SNAPSHOT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
