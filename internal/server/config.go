package server

import (
	"os"
	"time"
)

// Config holds the sync server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	APIKey          string // static bearer key; empty disables auth (dev only)
	ShutdownTimeout time.Duration
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"
	LogFile         string // rotate-to file; empty logs to stderr
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8787",
		DBPath:          "./data/cardbox.db",
		ShutdownTimeout: 30 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
	}

	if v := os.Getenv("CARDBOX_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CARDBOX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CARDBOX_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("CARDBOX_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("CARDBOX_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CARDBOX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CARDBOX_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}
