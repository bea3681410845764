package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppEnv   = "dev"
	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultCacheTTL = 30 * time.Minute
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv         string
	DBPath         string
	Port           string
	RedisAddr      string
	CacheTTL       time.Duration
	RateTablesPath string
	LogLevel       slog.Level
}

// IsDev reports whether the server runs in local development mode.
func (c Config) IsDev() bool {
	return c.AppEnv == "" || c.AppEnv == "dev" || c.AppEnv == "development"
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	return load(".env")
}

func load(dotenvPath string) Config {
	// Best-effort: a missing .env is fine, and real env vars always win.
	_ = godotenv.Load(dotenvPath)

	cfg := Config{
		AppEnv:         os.Getenv("APP_ENV"),
		DBPath:         os.Getenv("DB_PATH"),
		Port:           os.Getenv("PORT"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RateTablesPath: os.Getenv("RATE_TABLES_PATH"),
		CacheTTL:       defaultCacheTTL,
		LogLevel:       slog.LevelInfo,
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = defaultAppEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if raw := os.Getenv("CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl < 0 {
			slog.Warn("invalid CACHE_TTL, using default", "value", raw, "default", defaultCacheTTL)
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
			slog.Warn("invalid LOG_LEVEL, using info", "value", raw)
			cfg.LogLevel = slog.LevelInfo
		}
	}

	if cfg.RedisAddr == "" {
		slog.Info("REDIS_ADDR is not set, using in-memory cache")
	}

	return cfg
}

// NewLogger returns the process logger: text output in development, JSON otherwise.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
