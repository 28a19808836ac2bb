/*
Package config loads runtime configuration for the TOIL engine.

Configuration is layered: built-in defaults, then an optional TOML
file, then environment variables (a .env file is honoured when
present). Environment wins so containers can override a baked-in
config file without editing it.

ENVIRONMENT VARIABLES:
  TOIL_PORT                HTTP listen port
  TOIL_DB_PATH             SQLite database path (":memory:" allowed)
  TOIL_LOG_LEVEL           logrus level (debug, info, warn, error)
  TOIL_STANDARD_WEEK_HOURS Contracted weekly hours
  TOIL_HOURS_PER_DAY       Hours in one leave day
  TOIL_EXPIRY_MONTHS       Retention window in months
  TOIL_SWEEP_ENABLED       In-process sweep scheduler on/off
  TOIL_SWEEP_INTERVAL      Scheduler interval (Go duration)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `toml:"port"`
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`

	StandardWeekHours float64 `toml:"standard_week_hours"`
	HoursPerDay       float64 `toml:"hours_per_day"`
	ExpiryMonths      int     `toml:"expiry_months"`

	SweepEnabled  bool     `toml:"sweep_enabled"`
	SweepInterval duration `toml:"sweep_interval"`
}

// duration lets TOML carry values like "30m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func Default() Config {
	return Config{
		Port:              8080,
		DBPath:            "toil.db",
		LogLevel:          "info",
		StandardWeekHours: 37.5,
		HoursPerDay:       7.5,
		ExpiryMonths:      6,
		SweepEnabled:      true,
		SweepInterval:     duration{1 * time.Hour},
	}
}

// Load builds the effective configuration. path may be empty, in which
// case only defaults and the environment apply. A missing file at a
// non-empty path is an error; a missing .env is not.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// .env is a development convenience, absence is fine.
	_ = godotenv.Load()

	applyEnv(&cfg)

	if cfg.StandardWeekHours <= 0 {
		return cfg, fmt.Errorf("standard_week_hours must be positive, got %v", cfg.StandardWeekHours)
	}
	if cfg.HoursPerDay <= 0 {
		return cfg, fmt.Errorf("hours_per_day must be positive, got %v", cfg.HoursPerDay)
	}
	if cfg.ExpiryMonths <= 0 {
		return cfg, fmt.Errorf("expiry_months must be positive, got %d", cfg.ExpiryMonths)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TOIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("TOIL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TOIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TOIL_STANDARD_WEEK_HOURS"); v != "" {
		if hours, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.StandardWeekHours = hours
		}
	}
	if v := os.Getenv("TOIL_HOURS_PER_DAY"); v != "" {
		if hours, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HoursPerDay = hours
		}
	}
	if v := os.Getenv("TOIL_EXPIRY_MONTHS"); v != "" {
		if months, err := strconv.Atoi(v); err == nil {
			cfg.ExpiryMonths = months
		}
	}
	if v := os.Getenv("TOIL_SWEEP_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.SweepEnabled = enabled
		}
	}
	if v := os.Getenv("TOIL_SWEEP_INTERVAL"); v != "" {
		if interval, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = duration{interval}
		}
	}
}

// SweepEvery returns the scheduler interval.
func (c Config) SweepEvery() time.Duration {
	if c.SweepInterval.Duration <= 0 {
		return 1 * time.Hour
	}
	return c.SweepInterval.Duration
}
