package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CRAFTNOTIFY_SYNC_POLL_INTERVAL=2s.
const EnvPrefix = "CRAFTNOTIFY"

// MarketplaceConfig holds the remote API settings.
type MarketplaceConfig struct {
	// BaseURL is the root URL of the marketplace REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Account names the keyring entry holding the API token.
	Account string `mapstructure:"account" yaml:"account"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxRetries is how often a retryable request is repeated.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// SyncConfig controls the polling loop.
type SyncConfig struct {
	// PollInterval is the delay between full refetches.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// ReconcileDelay is how long after a mutation the reconciling
	// refetch runs.
	ReconcileDelay time.Duration `mapstructure:"reconcile_delay" yaml:"reconcile_delay"`

	// FetchTimeout bounds a single list call.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// JournalConfig holds the local sync journal settings. An empty Path
// disables the journal.
type JournalConfig struct {
	Path      string        `mapstructure:"path" yaml:"path"`
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Marketplace MarketplaceConfig `mapstructure:"marketplace" yaml:"marketplace"`
	Sync        SyncConfig        `mapstructure:"sync" yaml:"sync"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Journal     JournalConfig     `mapstructure:"journal" yaml:"journal"`
	Display     DisplayConfig     `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/craftnotify, or the working directory when
// the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "craftnotify")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/craftnotify/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("marketplace.base_url", "http://localhost:8080/api")
	v.SetDefault("marketplace.account", "default")
	v.SetDefault("marketplace.timeout", 30*time.Second)
	v.SetDefault("marketplace.max_retries", 3)

	v.SetDefault("sync.poll_interval", 30*time.Second)
	v.SetDefault("sync.reconcile_delay", 1500*time.Millisecond)
	v.SetDefault("sync.fetch_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", filepath.Join(ConfigDir(), "craftnotify.log"))

	v.SetDefault("journal.path", filepath.Join(ConfigDir(), "journal.db"))
	v.SetDefault("journal.retention", 7*24*time.Hour)

	v.SetDefault("display.theme", "default")
}

// NewViper returns a Viper instance with defaults and environment
// overrides registered. Callers may bind flags before LoadConfig reads it.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// after loading a .env file from the working directory if one exists. A
// missing config file yields the defaults.
func LoadConfig(v *viper.Viper, path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the sync loop cannot run with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Marketplace.BaseURL) == "" {
		return errors.New("marketplace.base_url is required")
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive, got %s", c.Sync.PollInterval)
	}
	if c.Sync.ReconcileDelay < 0 {
		return fmt.Errorf("sync.reconcile_delay must not be negative, got %s", c.Sync.ReconcileDelay)
	}
	if c.Marketplace.MaxRetries < 0 {
		return fmt.Errorf("marketplace.max_retries must not be negative, got %d", c.Marketplace.MaxRetries)
	}
	return nil
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

	v.Set("marketplace", map[string]any{
		"base_url":    cfg.Marketplace.BaseURL,
		"account":     cfg.Marketplace.Account,
		"timeout":     cfg.Marketplace.Timeout.String(),
		"max_retries": cfg.Marketplace.MaxRetries,
	})
	v.Set("sync", map[string]any{
		"poll_interval":   cfg.Sync.PollInterval.String(),
		"reconcile_delay": cfg.Sync.ReconcileDelay.String(),
		"fetch_timeout":   cfg.Sync.FetchTimeout.String(),
	})
	v.Set("log", cfg.Log)
	v.Set("journal", map[string]any{
		"path":      cfg.Journal.Path,
		"retention": cfg.Journal.Retention.String(),
	})
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
