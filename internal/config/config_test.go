package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var buildEnv = []string{
	"PLANTPAL_BUILD_TARGET",
	"PLANTPAL_DB_DRIVER",
	"PLANTPAL_SQLITE_PATH",
	"PLANTPAL_TIME_ZONE",
	"PLANTPAL_LEVEL_POLICY",
	"PLANTPAL_BOOTSTRAP_TIMEOUT_SECONDS",
}

func unsetBuildEnv() {
	for _, k := range buildEnv {
		_ = os.Unsetenv(k)
	}
}

func TestConfigLoad_Defaults(t *testing.T) {
	unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.BuildTarget != "local" || cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected defaults: %s %s", cfg.BuildTarget, cfg.DBDriver)
	}
	if filepath.Base(cfg.SQLitePath) != "plantpal.db" {
		t.Fatalf("unexpected sqlite path: %s", cfg.SQLitePath)
	}
	if cfg.BootstrapTimeoutSeconds != 5 || cfg.StoreRetryMaxAttempts != 3 || cfg.EventBuffer != 64 {
		t.Fatalf("unexpected numeric defaults: %+v", cfg)
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Fatalf("unexpected log level: %v", cfg.Level())
	}
}

func TestResolveDefaultsCloud(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("PLANTPAL_BUILD_TARGET", "cloud")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.SQLitePath != "" {
		t.Fatalf("unexpected mapping: %s %q", cfg.DBDriver, cfg.SQLitePath)
	}
}

func TestResolveDefaultsOverride(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("PLANTPAL_BUILD_TARGET", "cloud")
	_ = os.Setenv("PLANTPAL_DB_DRIVER", "sqlite")
	_ = os.Setenv("PLANTPAL_SQLITE_PATH", "/tmp/pp.db")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.SQLitePath != "/tmp/pp.db" {
		t.Fatalf("override failed, got %s %s", cfg.DBDriver, cfg.SQLitePath)
	}
}

func TestResolveDefaultsRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"build target": func(c *Config) { c.BuildTarget = "mars" },
		"driver":       func(c *Config) { c.DBDriver = "spanner" },
		"time zone":    func(c *Config) { c.TimeZone = "Nowhere/Land" },
		"level policy": func(c *Config) { c.LevelPolicy = "double" },
		"responder":    func(c *Config) { c.Responder = "gemini" },
		"log level":    func(c *Config) { c.LogLevel = "loud" },
		"event buffer": func(c *Config) { c.EventBuffer = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewForTesting()
			mutate(cfg)
			if err := cfg.ResolveDefaults(); err == nil {
				t.Fatalf("expected error for bad %s", name)
			}
		})
	}
}

func TestConfigLoad_TimeZoneOverride(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("PLANTPAL_TIME_ZONE", "Asia/Kolkata")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	if offset != 5*3600+30*60 {
		t.Fatalf("unexpected offset %d", offset)
	}
}

func TestNewForTestingResolves(t *testing.T) {
	cfg := NewForTesting()
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.DBDriver != "memory" || cfg.GetHTTPAddr() != ":8080" {
		t.Fatalf("unexpected test config: %+v", cfg)
	}
}
