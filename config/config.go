// Package config loads AgentWorld configuration from a YAML file layered
// with AGENTWORLD_* environment variables, and turns it into the concrete
// pieces the façade needs: a store, model adapters and a logger.
package config

import (
	"fmt"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/viper"

	"agentworld/core"
	"agentworld/logging"
	"agentworld/model"
	"agentworld/model/anthropic"
	"agentworld/model/openai"
	"agentworld/storage"
	"agentworld/storage/sqlite"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "agentworld.yaml"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config models agentworld.yaml.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Limits    LimitsConfig    `mapstructure:"limits" yaml:"limits"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of memory, file or sqlite.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is the data directory (file) or database file (sqlite).
	Path string `mapstructure:"path" yaml:"path"`
}

// ProviderConfig holds the credentials and default model of one provider.
type ProviderConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// ProvidersConfig configures the model providers agents can name.
type ProvidersConfig struct {
	// Default is the provider used by CLI helpers when none is named.
	Default   string         `mapstructure:"default" yaml:"default"`
	OpenAI    ProviderConfig `mapstructure:"openai" yaml:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic" yaml:"anthropic"`
}

// LimitsConfig bounds per-world and per-agent behavior. Zero values keep the
// package defaults.
type LimitsConfig struct {
	// HistoryCapacity bounds each world's event history.
	HistoryCapacity int `mapstructure:"history_capacity" yaml:"history_capacity"`
	// MemoryWindow is how many remembered messages feed each prompt.
	MemoryWindow int `mapstructure:"memory_window" yaml:"memory_window"`
	// Retention caps agent memory length.
	Retention int `mapstructure:"retention" yaml:"retention"`
	// MaxTurns is the default consecutive-agent-turn limit for new worlds.
	MaxTurns int `mapstructure:"max_turns" yaml:"max_turns"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var defaults = map[string]any{
	"storage.backend":             BackendMemory,
	"storage.path":                "",
	"providers.default":           "",
	"providers.openai.api_key":    "",
	"providers.openai.model":      "",
	"providers.anthropic.api_key": "",
	"providers.anthropic.model":   "",
	"limits.history_capacity":     0,
	"limits.memory_window":        0,
	"limits.retention":            0,
	"limits.max_turns":            0,
	"log.level":                   "info",
	"log.format":                  "json",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("AGENTWORLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	return v
}

// Load reads the config file at path, layering environment variables over
// it. Returns an error if the file does not exist or cannot be parsed.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDefaults loads configuration from path. If the file does not
// exist, the defaults and environment variables alone apply.
func LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		v := newViper()
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return Load(path)
}

// Validate ensures the config meets the required structure.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.Limits.HistoryCapacity < 0 || c.Limits.MemoryWindow < 0 || c.Limits.Retention < 0 || c.Limits.MaxTurns < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}

// Store builds the persistence backend the config names.
func (c *Config) Store() (core.Store, error) {
	switch c.Storage.Backend {
	case "", BackendMemory:
		return storage.NewMemoryStore(), nil
	case BackendFile:
		return storage.NewFileStore(c.Storage.Path)
	case BackendSQLite:
		return sqlite.Open(c.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}

// Models builds the adapters for every configured provider. A provider is
// configured when its block sets a key or model, or when it is named as the
// default (the SDKs then pick credentials up from their own environment
// variables).
func (c *Config) Models() map[string]model.Model {
	out := map[string]model.Model{}
	if p := c.Providers.OpenAI; p.APIKey != "" || p.Model != "" || c.Providers.Default == "openai" {
		out["openai"] = openai.NewModel(func(o *openai.Options) {
			if p.Model != "" {
				o.Model = p.Model
			}
			o.APIKey = p.APIKey
		})
	}
	if p := c.Providers.Anthropic; p.APIKey != "" || p.Model != "" || c.Providers.Default == "anthropic" {
		out["anthropic"] = anthropic.NewModel(func(o *anthropic.Options) {
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
			o.APIKey = p.APIKey
		})
	}
	return out
}

// Logger builds the structured logger the config describes.
func (c *Config) Logger() logging.Logger {
	return logging.NewSlogLogger(logging.ParseLevel(c.Log.Level), c.Log.Format, false)
}
