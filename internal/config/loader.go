package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures environment driven settings for the embedded store.
type Config struct {
	// DatabasePath is the storage-engine file for the logical database.
	DatabasePath string `env:"STORE_DB_PATH" envDefault:"data/store.db"`

	// Credential is the opaque key handed through to the engine.
	Credential string `env:"STORE_DB_CREDENTIAL"`

	// BusyTimeout is how long the engine waits on database locks.
	BusyTimeout time.Duration `env:"STORE_DB_BUSY_TIMEOUT" envDefault:"5s"`

	// JournalMode is the engine journal mode. WAL for local filesystems,
	// DELETE where WAL is unsafe (network mounts).
	JournalMode string `env:"STORE_DB_JOURNAL_MODE" envDefault:"WAL"`

	// LogLevel selects the minimum level emitted (debug, info, warn, error).
	LogLevel string `env:"STORE_LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.BusyTimeout <= 0 {
		return Config{}, fmt.Errorf("STORE_DB_BUSY_TIMEOUT must be positive, got %s", cfg.BusyTimeout)
	}
	switch strings.ToUpper(cfg.JournalMode) {
	case "WAL", "DELETE":
	default:
		return Config{}, fmt.Errorf("STORE_DB_JOURNAL_MODE must be WAL or DELETE, got %q", cfg.JournalMode)
	}

	return cfg, nil
}

// SlogLevel maps the configured level name onto slog. Unknown names fall
// back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
