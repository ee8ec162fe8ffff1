package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SourceConfig holds the static configuration for a single source.
// Runtime polling state lives in the Lifecycle row, not here.
type SourceConfig struct {
	// ID is the unique identifier for this source instance. It keys the
	// plugin registry, lifecycle rows, and stored items, so two instances
	// of the same type can run side by side.
	ID string `mapstructure:"id" yaml:"id"`

	// Type identifies the source kind ("jira", "bitbucket", "email",
	// or the file stem of an external plugin).
	Type string `mapstructure:"type" yaml:"type"`

	// Enabled controls whether this source is actively polled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PollIntervalSec is how often (in seconds) to poll this source.
	PollIntervalSec int64 `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// Settings holds source-specific non-secret configuration
	// (e.g., base URL, JQL override, VIP sender list). Credentials
	// are kept in the system keyring, never here.
	Settings map[string]string `mapstructure:"settings" yaml:"settings"`
}

// SchedulerConfig tunes the polling orchestrator.
type SchedulerConfig struct {
	// HeartbeatSec is how often the scheduler evaluates source
	// eligibility.
	HeartbeatSec int `mapstructure:"heartbeat_sec" yaml:"heartbeat_sec"`

	// ExecuteTimeoutSec bounds a single plugin invocation.
	ExecuteTimeoutSec int `mapstructure:"execute_timeout_sec" yaml:"execute_timeout_sec"`
}

// NotifyConfig tunes native notification dispatch.
type NotifyConfig struct {
	// RatePerMinute caps how many native notifications may be handed
	// to the OS dispatcher per minute.
	RatePerMinute int `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DatabasePath string          `mapstructure:"database_path" yaml:"database_path"`
	PluginsDir   string          `mapstructure:"plugins_dir" yaml:"plugins_dir"`
	Scheduler    SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Notify       NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Sources      []SourceConfig  `mapstructure:"sources" yaml:"sources"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/nexus/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "nexus", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".local", "share", "nexus")
	return &AppConfig{
		DatabasePath: filepath.Join(base, "nexus-hub.db"),
		PluginsDir:   filepath.Join(base, "plugins"),
		Scheduler: SchedulerConfig{
			HeartbeatSec:      30,
			ExecuteTimeoutSec: 15,
		},
		Notify: NotifyConfig{
			RatePerMinute: 10,
		},
		Sources: []SourceConfig{},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("database_path", defaults.DatabasePath)
	v.SetDefault("plugins_dir", defaults.PluginsDir)
	v.SetDefault("scheduler.heartbeat_sec", defaults.Scheduler.HeartbeatSec)
	v.SetDefault("scheduler.execute_timeout_sec", defaults.Scheduler.ExecuteTimeoutSec)
	v.SetDefault("notify.rate_per_minute", defaults.Notify.RatePerMinute)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply defaults for each source entry.
	for i := range cfg.Sources {
		if cfg.Sources[i].PollIntervalSec == 0 {
			cfg.Sources[i].PollIntervalSec = 600
		}
		if cfg.Sources[i].Type == "" {
			cfg.Sources[i].Type = cfg.Sources[i].ID
		}
		if !cfg.Sources[i].Enabled {
			// Viper unmarshals missing bools as false; treat unset as true.
			key := fmt.Sprintf("sources.%d.enabled", i)
			if !v.IsSet(key) {
				cfg.Sources[i].Enabled = true
			}
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database_path", cfg.DatabasePath)
	v.Set("plugins_dir", cfg.PluginsDir)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("notify", cfg.Notify)
	v.Set("sources", cfg.Sources)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
