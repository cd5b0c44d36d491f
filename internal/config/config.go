package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	// Embedded zone data for minimal container images.
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the plantpal service.
// Environment variables are parsed with the PLANTPAL_ prefix.
type Config struct {
	// Build target selects the environment: local, cloud or test
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// auto derives the driver from BuildTarget
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Calendar days for streaks and analytics are evaluated in this zone
	TimeZone    string `envconfig:"TIME_ZONE" default:"UTC"`
	LevelPolicy string `envconfig:"LEVEL_POLICY" default:"reset"`
	Responder   string `envconfig:"RESPONDER" default:"canned"`

	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthCheckTimeoutSeconds int `envconfig:"HEALTH_CHECK_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`

	StoreRetryMaxAttempts int `envconfig:"STORE_RETRY_MAX_ATTEMPTS" default:"3"`
	StoreRetryBaseMillis  int `envconfig:"STORE_RETRY_BASE_MILLIS" default:"50"`

	EventBuffer int    `envconfig:"EVENT_BUFFER" default:"64"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver and SQLitePath
// when they are left as "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string
	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	case "test":
		defaultDB = "memory"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}
	allowedDB := map[string]bool{"sqlite": true, "postgres": true, "memory": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		c.SQLitePath = defaultSQLitePath()
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.LevelPolicy {
	case "", "reset", "carry":
	default:
		return fmt.Errorf("unsupported LEVEL_POLICY: %s", c.LevelPolicy)
	}
	switch c.Responder {
	case "", "canned", "unconfigured":
	default:
		return fmt.Errorf("unsupported RESPONDER: %s", c.Responder)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unsupported LOG_LEVEL: %s", c.LogLevel)
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("EVENT_BUFFER must be positive, got %d", c.EventBuffer)
	}
	return nil
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".plantpal", "plantpal.db")
	}
	return filepath.Join(home, ".plantpal", "plantpal.db")
}

// New creates a Config from PLANTPAL_* environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PLANTPAL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("sqlite_path", cfg.SQLitePath).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Int("port", cfg.HTTPPort).
		Str("time_zone", cfg.TimeZone).
		Str("level_policy", cfg.LevelPolicy).
		Str("responder", cfg.Responder).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting returns an in-memory configuration with short intervals.
func NewForTesting() *Config {
	return &Config{
		BuildTarget:               "test",
		DBDriver:                  "memory",
		HTTPPort:                  8080,
		TimeZone:                  "UTC",
		LevelPolicy:               "reset",
		Responder:                 "canned",
		HealthIntervalSeconds:     1,
		HealthCheckTimeoutSeconds: 1,
		BootstrapTimeoutSeconds:   1,
		StoreRetryMaxAttempts:     3,
		StoreRetryBaseMillis:      1,
		EventBuffer:               16,
		LogLevel:                  "debug",
	}
}

// Location loads TimeZone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unsupported TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
