// Package config loads taskflow settings from a YAML file, an optional
// .env file and TASKFLOW_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds client settings.
type Config struct {
	// PrimaryURL is the task-management backend (CRUD, auth).
	PrimaryURL string `yaml:"primary_url"`
	// SecondaryURL is the filtering and analytics backend.
	SecondaryURL string `yaml:"secondary_url"`
	// DBPath is the local SQLite file holding the session and caches.
	DBPath string `yaml:"db_path"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	// RenewInterval is how often the credential expiry is checked.
	RenewInterval time.Duration `yaml:"renew_interval"`
	// RenewWindow renews the credential when it expires within this window.
	RenewWindow time.Duration `yaml:"renew_window"`

	MetricsNamespace string `yaml:"metrics_namespace"`
	// MetricsAddr serves /metrics while watching when set, e.g. ":9464".
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DefaultConfig returns the settings for backends running locally.
func DefaultConfig() *Config {
	return &Config{
		PrimaryURL:       "http://localhost:8000/api",
		SecondaryURL:     "http://localhost:5000/api",
		DBPath:           defaultDBPath(),
		RequestTimeout:   10 * time.Second,
		CacheTTL:         5 * time.Minute,
		PollInterval:     30 * time.Second,
		RenewInterval:    time.Minute,
		RenewWindow:      2 * time.Minute,
		MetricsNamespace: "taskflow",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".taskflow", "taskflow.db")
	}
	return filepath.Join(home, ".taskflow", "taskflow.db")
}

// DefaultPath returns ~/.taskflow/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".taskflow", "config.yaml")
	}
	return filepath.Join(home, ".taskflow", "config.yaml")
}

// Load reads path (missing is fine), then envFile (missing is fine), then
// applies TASKFLOW_* overrides. Variables already set in the environment
// win over the .env file.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.PrimaryURL = envOrDefault("TASKFLOW_PRIMARY_URL", c.PrimaryURL)
	c.SecondaryURL = envOrDefault("TASKFLOW_SECONDARY_URL", c.SecondaryURL)
	c.DBPath = envOrDefault("TASKFLOW_DB_PATH", c.DBPath)
	c.MetricsNamespace = envOrDefault("TASKFLOW_METRICS_NAMESPACE", c.MetricsNamespace)
	c.MetricsAddr = envOrDefault("TASKFLOW_METRICS_ADDR", c.MetricsAddr)

	var err error
	if c.RequestTimeout, err = durationFromEnv("TASKFLOW_REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.CacheTTL, err = durationFromEnv("TASKFLOW_CACHE_TTL", c.CacheTTL); err != nil {
		return err
	}
	if c.PollInterval, err = durationFromEnv("TASKFLOW_POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.RenewInterval, err = durationFromEnv("TASKFLOW_RENEW_INTERVAL", c.RenewInterval); err != nil {
		return err
	}
	if c.RenewWindow, err = durationFromEnv("TASKFLOW_RENEW_WINDOW", c.RenewWindow); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"primary_url": c.PrimaryURL, "secondary_url": c.SecondaryURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must be set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.RenewInterval <= 0 {
		return fmt.Errorf("renew_interval must be positive")
	}
	if c.RenewWindow < 0 {
		return fmt.Errorf("renew_window must not be negative")
	}
	return nil
}

// Save writes cfg to path, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
