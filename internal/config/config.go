package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultDBPath = "./dev.db"
	defaultPort   = "8080"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env            string `mapstructure:"env"`
	Port           string `mapstructure:"port"`
	DBDriver       string `mapstructure:"db_driver"`
	DBPath         string `mapstructure:"db_path"`
	DatabaseURL    string `mapstructure:"database_url"`
	LogLevel       string `mapstructure:"log_level"`
	SeedCatalog    bool   `mapstructure:"seed_catalog"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// Load reads the environment, after a local .env file if there is one, and
// returns a populated Config.
func Load() (Config, error) {
	// Best-effort: production injects real environment variables.
	if err := loadDotEnv(".env"); err != nil {
		slog.Warn("failed to read .env file", "error", err)
	}

	v := viper.New()
	v.SetDefault("env", "dev")
	v.SetDefault("port", defaultPort)
	v.SetDefault("db_driver", DriverSQLite)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("seed_catalog", false)
	v.SetDefault("metrics_enabled", true)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)

	if cfg.DBDriver == DriverPostgres && cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set")
	}

	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the %s driver", c.DBDriver)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "dev" || c.Env == "development"
}

// SeedEnabled reports whether the starter catalog is loaded at startup. It
// always is in development.
func (c Config) SeedEnabled() bool {
	return c.SeedCatalog || c.IsDev()
}
