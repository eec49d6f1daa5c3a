package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures environment driven configuration values for the
// scheduling service.
type Config struct {
	HTTPPort          int           `env:"RAIDSCHED_HTTP_PORT" envDefault:"8080"`
	SQLiteDSN         string        `env:"RAIDSCHED_SQLITE_DSN" envDefault:"file:raidsched.db?_pragma=foreign_keys(1)"`
	DashboardCacheTTL time.Duration `env:"RAIDSCHED_DASHBOARD_CACHE_TTL" envDefault:"30s"`
	MaxWindowDays     int           `env:"RAIDSCHED_MAX_WINDOW_DAYS" envDefault:"90"`
}

// Load parses configuration values from the current process environment,
// applying defaults for unset fields and validating ranges.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return Config{}, fmt.Errorf("invalid RAIDSCHED_HTTP_PORT: %d", cfg.HTTPPort)
	}
	if cfg.SQLiteDSN == "" {
		return Config{}, fmt.Errorf("RAIDSCHED_SQLITE_DSN must not be empty")
	}
	if cfg.DashboardCacheTTL < 0 {
		return Config{}, fmt.Errorf("invalid RAIDSCHED_DASHBOARD_CACHE_TTL: %s", cfg.DashboardCacheTTL)
	}
	if cfg.MaxWindowDays < 1 {
		return Config{}, fmt.Errorf("invalid RAIDSCHED_MAX_WINDOW_DAYS: %d", cfg.MaxWindowDays)
	}

	return cfg, nil
}
