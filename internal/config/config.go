// Package config resolves hooktail configuration with the priority
// environment variable, then persisted preference file, then default,
// clamping documented limits to their bounds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Bounds for the configurable limits.
const (
	DefaultMaxEvents = 10000
	MinMaxEvents     = 100
	MaxMaxEvents     = 100000

	DefaultDisplayLimit = 1000
	MinDisplayLimit     = 10
	MaxDisplayLimit     = 10000
)

// Config is the full hooktail configuration.
type Config struct {
	NATS      NATSConfig      `mapstructure:"nats" yaml:"nats"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`

	path string
}

// NATSConfig holds stream transport settings.
type NATSConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	Name           string        `mapstructure:"name" yaml:"name"`
	Subject        string        `mapstructure:"subject" yaml:"subject"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	Buffer         int           `mapstructure:"buffer" yaml:"buffer"`
}

// CacheConfig selects and configures the cache store backend.
type CacheConfig struct {
	// Backend is "sqlite" (default), "postgres" or "memory".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the SQLite database file.
	Path string `mapstructure:"path" yaml:"path"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// ServerConfig holds the HTTP API listen address.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RetentionConfig holds the memory and display limits. Both are clamped
// to their documented bounds on load.
type RetentionConfig struct {
	MaxEvents    int `mapstructure:"max_events" yaml:"max_events"`
	DisplayLimit int `mapstructure:"display_limit" yaml:"display_limit"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Dir returns the hooktail config directory: $HOOKTAIL_CONFIG_DIR, or
// ~/.hooktail.
func Dir() (string, error) {
	if dir := os.Getenv("HOOKTAIL_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".hooktail"), nil
}

// Load resolves the configuration. cfgFile overrides the default config
// file location when non-empty; a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "hooktail")
	v.SetDefault("nats.subject", "hooks.events")
	v.SetDefault("nats.connect_timeout", 5*time.Second)
	v.SetDefault("nats.buffer", 1024)
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8710)
	v.SetDefault("retention.max_events", DefaultMaxEvents)
	v.SetDefault("retention.display_limit", DefaultDisplayLimit)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "config.yaml")
	if cfgFile != "" {
		path = cfgFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("HOOKTAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// viper needs explicit bindings for nested keys
	_ = v.BindEnv("nats.url", "HOOKTAIL_NATS_URL")
	_ = v.BindEnv("nats.subject", "HOOKTAIL_NATS_SUBJECT")
	_ = v.BindEnv("cache.backend", "HOOKTAIL_CACHE_BACKEND")
	_ = v.BindEnv("cache.path", "HOOKTAIL_CACHE_PATH")
	_ = v.BindEnv("cache.database_url", "HOOKTAIL_CACHE_DATABASE_URL")
	_ = v.BindEnv("retention.max_events", "HOOKTAIL_MAX_EVENTS")
	_ = v.BindEnv("retention.display_limit", "HOOKTAIL_DISPLAY_LIMIT")
	_ = v.BindEnv("logging.level", "HOOKTAIL_LOG_LEVEL")

	// Ignore a missing config file - defaults and env still apply.
	_ = v.ReadInConfig()

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.clamp()
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(dir, "events.db")
	}
	return cfg, nil
}

// Path returns the resolved config file location.
func (c *Config) Path() string {
	return c.path
}

// SavePreferences persists the current limits (and the rest of the
// configuration) as the user preference file.
func (c *Config) SavePreferences() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// clamp forces the retention limits into their documented bounds.
func (c *Config) clamp() {
	c.Retention.MaxEvents = clampInt(c.Retention.MaxEvents, MinMaxEvents, MaxMaxEvents)
	c.Retention.DisplayLimit = clampInt(c.Retention.DisplayLimit, MinDisplayLimit, MaxDisplayLimit)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
