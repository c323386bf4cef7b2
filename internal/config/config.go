// Package config loads crudsync settings from a YAML file, the environment
// and command-line overrides, in that order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/crudsync/internal/gateway"
	"github.com/roach88/crudsync/internal/strategy"
)

// Defaults.
const (
	DefaultDatabase = "crudsync.db"
	DefaultStrategy = strategy.KindManual
	DefaultTimeout  = 10 * time.Second
)

// Environment variables that override file settings.
const (
	EnvDatabase   = "CRUDSYNC_DATABASE"
	EnvCollection = "CRUDSYNC_COLLECTION"
	EnvStrategy   = "CRUDSYNC_STRATEGY"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Database is the SQLite file path. ":memory:" is allowed.
	Database string `yaml:"database"`

	// Collection is the document collection holding users.
	Collection string `yaml:"collection"`

	// Strategy names the synchronization strategy.
	Strategy strategy.Kind `yaml:"strategy"`

	// Timeout bounds each gateway call. Zero disables the bound.
	Timeout time.Duration `yaml:"timeout"`

	// GenerationGuard enables stale-rollback protection for the optimistic
	// strategy.
	GenerationGuard bool `yaml:"generation_guard"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:   DefaultDatabase,
		Collection: gateway.DefaultCollection,
		Strategy:   DefaultStrategy,
		Timeout:    DefaultTimeout,
		LogLevel:   "info",
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file. A missing file is an error only when
// required is true.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.decode(data); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without touching the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(EnvCollection); ok && v != "" {
		c.Collection = v
	}
	if v, ok := lookup(EnvStrategy); ok && v != "" {
		c.Strategy = strategy.Kind(v)
	}
}

// Validate checks the configuration and canonicalizes the strategy name.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	kind, err := strategy.ParseKind(string(c.Strategy))
	if err != nil {
		return err
	}
	c.Strategy = kind
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// StrategyOptions returns the strategy options this configuration implies.
func (c Config) StrategyOptions() []strategy.Option {
	var opts []strategy.Option
	if c.Timeout > 0 {
		opts = append(opts, strategy.WithTimeout(c.Timeout))
	}
	if c.GenerationGuard {
		opts = append(opts, strategy.WithGenerationGuard())
	}
	return opts
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
