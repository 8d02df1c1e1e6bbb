package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// APIConfig holds the location of the remote classroom service.
type APIConfig struct {
	// BaseURL is the root URL of the REST API (e.g. https://class.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// LedgerConfig selects where delivered reminder ids are remembered.
type LedgerConfig struct {
	// Backend is one of "memory", "sqlite" or "redis".
	Backend    string `mapstructure:"backend" yaml:"backend"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db" yaml:"redis_db"`
	TTLHours   int    `mapstructure:"ttl_hours" yaml:"ttl_hours"`
}

// LogConfig controls the file logger. The terminal is owned by the UI.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// MetricsConfig enables the optional Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddr is empty to disable the endpoint.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// ClassroomConfig holds classroom preferences.
type ClassroomConfig struct {
	// DefaultID is the classroom opened in the attendance view at startup.
	DefaultID string `mapstructure:"default_id" yaml:"default_id"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Ledger    LedgerConfig    `mapstructure:"ledger" yaml:"ledger"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Classroom ClassroomConfig `mapstructure:"classroom" yaml:"classroom"`
}

// envPrefix is prepended to every environment override,
// e.g. CLASSROOM_API_BASE_URL.
const envPrefix = "CLASSROOM"

// ConfigDir returns ~/.config/classroom, falling back to the working
// directory when the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "classroom")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/classroom/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:5000/api",
			TimeoutSec: 30,
		},
		Ledger: LedgerConfig{
			Backend:    "memory",
			SQLitePath: filepath.Join(ConfigDir(), "ledger.db"),
			RedisAddr:  "localhost:6379",
			TTLHours:   24,
		},
		Log: LogConfig{
			Path:  filepath.Join(ConfigDir(), "classroom.log"),
			Level: "info",
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// setDefaults mirrors defaultAppConfig into v so that missing keys and
// environment overrides resolve against the same values.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("ledger.backend", d.Ledger.Backend)
	v.SetDefault("ledger.sqlite_path", d.Ledger.SQLitePath)
	v.SetDefault("ledger.redis_addr", d.Ledger.RedisAddr)
	v.SetDefault("ledger.redis_db", d.Ledger.RedisDB)
	v.SetDefault("ledger.ttl_hours", d.Ledger.TTLHours)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("classroom.default_id", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with CLASSROOM_ override file values.
// If the file does not exist, defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports configuration values the application cannot start with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Ledger.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("ledger.backend %q: want memory, sqlite or redis", c.Ledger.Backend)
	}
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = 30
	}
	if c.Ledger.TTLHours <= 0 {
		c.Ledger.TTLHours = 24
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

	v.Set("api", cfg.API)
	v.Set("ledger", cfg.Ledger)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)
	v.Set("display", cfg.Display)
	v.Set("classroom", cfg.Classroom)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
