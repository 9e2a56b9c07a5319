package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SyncConfig controls the background sync cadence and the request sizes
// used by each phase of a sync run.
type SyncConfig struct {
	// PollIntervalSec is how often (in seconds) a full sync runs.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// KeepaliveIntervalSec is how often the backend is pinged to keep a
	// free-tier instance warm. Zero disables the keepalive loop.
	KeepaliveIntervalSec int `mapstructure:"keepalive_interval_sec" yaml:"keepalive_interval_sec"`

	// IngestCount is how many new messages the backend ingests per run.
	IngestCount int `mapstructure:"ingest_count" yaml:"ingest_count"`

	// Classify asks the backend to run urgency classification on ingest.
	Classify bool `mapstructure:"classify" yaml:"classify"`

	// StatusLimit bounds the read/unread reconciliation pass.
	StatusLimit int `mapstructure:"status_limit" yaml:"status_limit"`

	// SentPerPage is the page size for the sent-mail list.
	SentPerPage int `mapstructure:"sent_per_page" yaml:"sent_per_page"`
}

// DisplayConfig holds rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIBaseURL is the root of the backend REST API.
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`

	// DBPath locates the local annotation database. Empty means the
	// default path next to the config file.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// DefaultPath returns the default configuration file location,
// ~/.config/triage/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "triage", "config.yaml")
}

// DefaultDBPath returns the default annotation database location.
func DefaultDBPath() string {
	return filepath.Join(filepath.Dir(DefaultPath()), "annotations.db")
}

func defaults() *Config {
	return &Config{
		APIBaseURL: "http://localhost:5000/api",
		Sync: SyncConfig{
			PollIntervalSec:      120,
			KeepaliveIntervalSec: 600,
			IngestCount:          50,
			Classify:             true,
			StatusLimit:          100,
			SentPerPage:          50,
		},
		Display: DisplayConfig{Theme: "dark"},
	}
}

// Load reads configuration from the given YAML file path using Viper.
// A missing file yields the default configuration. The TRIAGE_API_URL
// environment variable overrides the configured base URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api_base_url", "http://localhost:5000/api")
	v.SetDefault("sync.poll_interval_sec", 120)
	v.SetDefault("sync.keepalive_interval_sec", 600)
	v.SetDefault("sync.ingest_count", 50)
	v.SetDefault("sync.classify", true)
	v.SetDefault("sync.status_limit", 100)
	v.SetDefault("sync.sent_per_page", 50)
	v.SetDefault("display.theme", "dark")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return withEnvOverrides(defaults()), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return withEnvOverrides(defaults()), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return withEnvOverrides(cfg), nil
}

func withEnvOverrides(cfg *Config) *Config {
	if url := os.Getenv("TRIAGE_API_URL"); url != "" {
		cfg.APIBaseURL = url
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	return cfg
}

// Save writes the configuration to a YAML file at path, creating parent
// directories if needed. Used to persist the theme preference.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api_base_url", cfg.APIBaseURL)
	v.Set("db_path", cfg.DBPath)
	v.Set("sync", cfg.Sync)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
