package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the config file
const (
	EnvAPIURL     = "ERPDESK_API_URL"
	EnvReplicaURL = "ERPDESK_REPLICA_URL"
)

// Config represents erpdesk settings stored in the user's config directory
type Config struct {
	API     APIConfig     `toml:"api"`
	Table   TableConfig   `toml:"table"`
	Replica ReplicaConfig `toml:"replica"`
	Watch   WatchConfig   `toml:"watch"`
}

// APIConfig contains backend connection settings
type APIConfig struct {
	BaseURL        string `toml:"base_url" config:"api.base_url" default:"https://needha-erp-server.onrender.com" desc:"ERP backend URL"`
	TimeoutSeconds int    `toml:"timeout_seconds" config:"api.timeout_seconds" default:"30" min:"1" max:"600" desc:"Request timeout"`
}

// TableConfig contains defaults for department tables
type TableConfig struct {
	PageSize  int    `toml:"page_size" config:"table.page_size" default:"10" min:"1" max:"500" desc:"Rows per page"`
	DateField string `toml:"date_field" config:"table.date_field" desc:"Column used by --from/--to (empty = department default)"`
}

// ReplicaConfig contains the optional read replica
type ReplicaConfig struct {
	URL string `toml:"url" config:"replica.url" desc:"PostgreSQL replica URL used with --replica"`
}

// WatchConfig contains settings for the watch command
type WatchConfig struct {
	IntervalSeconds int `toml:"interval_seconds" config:"watch.interval_seconds" default:"30" min:"5" max:"3600" desc:"Refresh interval"`
}

// Default returns a new config with default values
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://needha-erp-server.onrender.com",
			TimeoutSeconds: 30,
		},
		Table: TableConfig{
			PageSize: 10,
		},
		Watch: WatchConfig{
			IntervalSeconds: 30,
		},
	}
}

// Path returns the path to the config file
// Follows XDG Base Directory spec on Linux, platform conventions elsewhere
func Path() string {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, "Library", "Application Support", "erpdesk")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "erpdesk")
	default: // Linux and others - follow XDG
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "erpdesk")
		} else {
			home, _ := os.UserHomeDir()
			configDir = filepath.Join(home, ".config", "erpdesk")
		}
	}

	return filepath.Join(configDir, "config.toml")
}

// LoadFrom reads a config file, falling back to defaults if it doesn't
// exist, then applies environment overrides
func LoadFrom(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvReplicaURL); v != "" {
		cfg.Replica.URL = v
	}

	return cfg, nil
}

// LoadFile reads a config file without environment overrides. This is what
// "erpdesk config" edits.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Apply defaults for any missing values
	defaults := Default()
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = defaults.API.TimeoutSeconds
	}
	if cfg.Table.PageSize == 0 {
		cfg.Table.PageSize = defaults.Table.PageSize
	}
	if cfg.Watch.IntervalSeconds == 0 {
		cfg.Watch.IntervalSeconds = defaults.Watch.IntervalSeconds
	}

	return cfg, nil
}

// SaveTo writes the config file at path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Timeout returns the API timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// WatchInterval returns the watch refresh interval as a duration
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalSeconds) * time.Second
}

// GetValue returns a config value by key (uses reflection)
func (c *Config) GetValue(key string) (string, bool) {
	return getFieldValue(c, key)
}

// SetValue sets a config value by key (uses reflection with validation)
func (c *Config) SetValue(key, value string) error {
	return setFieldValue(c, key, value)
}
