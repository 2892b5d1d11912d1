package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env      string
	LogLevel string

	// DatabaseURL selects the postgres store when set; the in-memory
	// store is used otherwise.
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ReportCacheTTL time.Duration
	ReportLocation *time.Location
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}

	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}
	cfg.RedisDB = db

	ttl, err := strconv.Atoi(getEnv("REPORT_CACHE_TTL_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("parse REPORT_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.ReportCacheTTL = time.Duration(ttl) * time.Second

	loc, err := time.LoadLocation(getEnv("REPORT_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("load REPORT_TIMEZONE: %w", err)
	}
	cfg.ReportLocation = loc

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
