// Package config loads and validates the gateway configuration.
//
// DESIGN: All configuration comes from a YAML file. Secrets are never
// written into the file directly; provider API keys reference
// environment variables through ${VAR:-default} expansion so the same
// config can ship across environments.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server  ServerConfig  `yaml:"server"`  // HTTP server settings
	Store   StoreConfig   `yaml:"store"`   // Chat history database
	Logging LoggingConfig `yaml:"logging"` // Structured logging
	Tokens  TokensConfig  `yaml:"tokens"`  // Token estimation settings
	Models  []ModelConfig `yaml:"models"`  // Available models
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig locates the chat history database.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file path, ":memory:" for ephemeral
}

// LoggingConfig configures the zerolog backend.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // "json" or "console"
	Output string `yaml:"output"` // "stderr", "stdout", or a file path
}

// TokensConfig configures token estimation.
type TokensConfig struct {
	// Exact enables tokenizer-backed estimation for usage fallbacks
	// when the model name maps to a known encoding. Prompt budgeting
	// always uses the cheap heuristic regardless.
	Exact bool `yaml:"exact"`
}

// ModelConfig describes one routable model.
type ModelConfig struct {
	ID         string         `yaml:"id"`       // UUID, stable across config edits
	Name       string         `yaml:"name"`     // Display name, e.g. "GPT-4o"
	ModelKey   string         `yaml:"model_key"` // Provider-side identifier
	Provider   ProviderConfig `yaml:"provider"`
	ConfigJSON string         `yaml:"config_json"` // Optional per-model JSON, e.g. {"maxOutputTokens":1024}
}

// ProviderConfig describes where a model's requests go.
type ProviderConfig struct {
	Name    string `yaml:"name"`     // Display name, e.g. "DeepSeek"
	Type    string `yaml:"type"`     // Free-text routing label, e.g. "OPENAI_COMPAT"
	BaseURL string `yaml:"base_url"` // Optional override, adapters fill vendor defaults
	APIKey  string `yaml:"api_key"`
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnv expands ${VAR} and ${VAR:-default} references.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, expanding
// ${VAR:-default} environment references first.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Adapter calls run inside the handler, so the write timeout
		// must cover a slow upstream completion.
		c.Server.WriteTimeout = 180 * time.Second
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if _, err := uuid.Parse(m.ID); err != nil {
			return fmt.Errorf("models[%d].id %q is not a valid UUID: %w", i, m.ID, err)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("models[%d].name is required", i)
		}
		if strings.TrimSpace(m.Provider.Type) == "" && strings.TrimSpace(m.Provider.Name) == "" {
			return fmt.Errorf("models[%d]: provider.type or provider.name is required", i)
		}
	}
	return nil
}
