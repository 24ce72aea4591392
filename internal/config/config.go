// Package config loads briefdesk configuration from
// .briefdesk/config.yaml with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all briefdesk configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Cache and learner configuration
	Memory MemoryConfig `yaml:"memory"`

	// Data sources to summarize
	Sources SourcesConfig `yaml:"sources"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// MemoryConfig configures the entity cache, the preference profile
// cache, and the SQLite store.
type MemoryConfig struct {
	CacheTTL      string `yaml:"cache_ttl"`      // entity cache freshness window
	CacheCapacity int    `yaml:"cache_capacity"` // max resident entries per pool
	ProfileTTL    string `yaml:"profile_ttl"`    // preference profile cache TTL
	DatabasePath  string `yaml:"database_path"`
}

// SourcesConfig lists the enabled data sources.
type SourcesConfig struct {
	Enabled []string `yaml:"enabled"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "briefdesk",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Memory: MemoryConfig{
			CacheTTL:      "5m",
			CacheCapacity: 100,
			ProfileTTL:    "5m",
			DatabasePath:  ".briefdesk/briefdesk.db",
		},

		Sources: SourcesConfig{
			Enabled: []string{"chat", "tickets", "time", "email"},
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (check in priority order)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("BRIEFDESK_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if model := os.Getenv("BRIEFDESK_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("BRIEFDESK_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if path := os.Getenv("BRIEFDESK_DB"); path != "" {
		c.Memory.DatabasePath = path
	}
	if os.Getenv("BRIEFDESK_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// CacheTTL returns the parsed entity cache TTL, defaulting to 5 minutes.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Memory.CacheTTL, 5*time.Minute)
}

// ProfileTTL returns the parsed preference profile TTL, defaulting to 5 minutes.
func (c *Config) ProfileTTL() time.Duration {
	return parseDuration(c.Memory.ProfileTTL, 5*time.Minute)
}

// LLMTimeout returns the parsed model call timeout, defaulting to 2 minutes.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 2*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// DefaultConfigPath returns the default path to .briefdesk/config.yaml.
func DefaultConfigPath() string {
	root, err := FindWorkspaceRoot()
	if err != nil {
		return ".briefdesk/config.yaml"
	}
	return filepath.Join(root, ".briefdesk", "config.yaml")
}

// FindWorkspaceRoot attempts to find the project root by looking for
// .briefdesk or go.mod. If not found, returns the current working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".briefdesk")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}
