package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
}

// NewLoader creates a new configuration loader
func NewLoader(precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
	}
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	sources := []struct {
		path string
		name string
	}{
		{l.precedence.UserConfig, "user"},
		{l.precedence.ProjectConfig, "project"},
		{l.precedence.LocalConfig, "local"},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}

		if cfg, err := l.loadFile(src.path); err == nil {
			config = l.mergeConfigs(config, cfg)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.name, src.path, err)
		}
	}

	if l.precedence.EnvironmentPrefix != "" {
		l.applyEnvironmentOverrides(config)
	}
	resolveCredentials(config)

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFile loads a single configuration file
func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &config, nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// mergeConfigs merges two configurations with the second taking precedence
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	// Merge Reply config
	if override.Reply.ActiveProvider != "" {
		result.Reply.ActiveProvider = override.Reply.ActiveProvider
	}
	if override.Reply.HistoryLimit != 0 {
		result.Reply.HistoryLimit = override.Reply.HistoryLimit
	}
	if override.Reply.PeerDelay.MaxMs != 0 {
		result.Reply.PeerDelay = override.Reply.PeerDelay
	}
	if override.Reply.AgentDelay.MaxMs != 0 {
		result.Reply.AgentDelay = override.Reply.AgentDelay
	}
	if override.Reply.ThrottledReply != "" {
		result.Reply.ThrottledReply = override.Reply.ThrottledReply
	}
	if override.Reply.FallbackReply != "" {
		result.Reply.FallbackReply = override.Reply.FallbackReply
	}
	if override.Reply.SystemReply != "" {
		result.Reply.SystemReply = override.Reply.SystemReply
	}

	// Merge Providers: overriding a name replaces the whole entry
	if len(override.Providers) > 0 {
		merged := make(map[string]ProviderConfig, len(result.Providers)+len(override.Providers))
		for k, v := range result.Providers {
			merged[k] = v
		}
		for k, v := range override.Providers {
			merged[k] = v
		}
		result.Providers = merged
	}

	// Personas: an override list replaces the defaults entirely
	if len(override.Personas) > 0 {
		result.Personas = override.Personas
	}

	if override.Server.Addr != "" {
		result.Server.Addr = override.Server.Addr
	}
	if override.Data.Directory != "" {
		result.Data.Directory = override.Data.Directory
	}
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvironmentOverrides applies environment variable overrides to config
func (l *Loader) applyEnvironmentOverrides(config *Config) {
	prefix := l.precedence.EnvironmentPrefix

	if provider := os.Getenv(prefix + "_PROVIDER"); provider != "" {
		config.Reply.ActiveProvider = provider
	}
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if dir := os.Getenv(prefix + "_DATA_DIR"); dir != "" {
		config.Data.Directory = dir
	}
	if level := os.Getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// resolveCredentials fills empty provider API keys from their configured
// environment variables.
func resolveCredentials(config *Config) {
	for name, pc := range config.Providers {
		if pc.APIKey == "" && pc.APIKeyEnvVar != "" {
			if key := os.Getenv(pc.APIKeyEnvVar); key != "" {
				pc.APIKey = key
				config.Providers[name] = pc
			}
		}
	}
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	userConfigPath := filepath.Join(xdg.ConfigHome, "autoreply", "config.json")

	return ConfigPrecedence{
		UserConfig:        userConfigPath,
		ProjectConfig:     filepath.Join(".autoreply", "config.json"),
		LocalConfig:       filepath.Join(".autoreply", "config.local.json"),
		EnvironmentPrefix: "AUTOREPLY",
	}
}

// DefaultDataDir returns the directory used for the sqlite database when no
// explicit data directory is configured.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "autoreply")
}
