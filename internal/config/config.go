// Package config loads listsync settings.
//
// Values come from, in order of precedence: command-line flags, environment
// variables (LISTSYNC_*), an optional YAML file, and built-in defaults. The
// file is read from --config, $LISTSYNC_CONFIG, or ~/.listsync/config.yaml
// when it exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the listsync configuration.
type Config struct {
	// DB is the SQLite database served by `listsync serve`.
	DB string `yaml:"db"`

	// Server is the base URL of the list API used by list, stats and browse.
	Server string `yaml:"server"`

	// User is sent as X-User-ID and selects "mine" scope.
	User string `yaml:"user"`

	// Token is an optional bearer token.
	Token string `yaml:"token"`

	// PageSize is the fixed page size of a list view.
	PageSize int `yaml:"page_size"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level"`

	// Serve configures the reference server.
	Serve ServeConfig `yaml:"serve"`
}

// ServeConfig configures `listsync serve`.
type ServeConfig struct {
	Addr string `yaml:"addr"`

	// Redis enables the stats cache when set (host:port or redis:// URL).
	Redis string `yaml:"redis"`

	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DB:       filepath.Join(home, ".listsync", "reports.db"),
		Server:   "http://localhost:8080",
		PageSize: 12,
		Timeout:  30 * time.Second,
		LogLevel: "warning",
		Serve: ServeConfig{
			Addr:     ":8080",
			CacheTTL: time.Minute,
		},
	}
}

// DefaultPath returns ~/.listsync/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".listsync", "config.yaml")
}

// Load reads the config file at path over the defaults and applies env
// overrides. An empty path falls back to $LISTSYNC_CONFIG and then
// DefaultPath; only an explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if path == "" {
		if env := os.Getenv("LISTSYNC_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath()
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LISTSYNC_DB":        &cfg.DB,
		"LISTSYNC_SERVER":    &cfg.Server,
		"LISTSYNC_USER":      &cfg.User,
		"LISTSYNC_TOKEN":     &cfg.Token,
		"LISTSYNC_LOG_LEVEL": &cfg.LogLevel,
		"LISTSYNC_ADDR":      &cfg.Serve.Addr,
		"LISTSYNC_REDIS":     &cfg.Serve.Redis,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("LISTSYNC_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LISTSYNC_PAGE_SIZE: %w", err)
		}
		cfg.PageSize = n
	}
	if v := os.Getenv("LISTSYNC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LISTSYNC_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.PageSize <= 0 || c.PageSize > 100 {
		return fmt.Errorf("page_size must be between 1 and 100, got %d", c.PageSize)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Serve.CacheTTL < 0 {
		return fmt.Errorf("serve.cache_ttl must not be negative")
	}
	return nil
}
