package config

import (
	"time"

	"github.com/pawmate/autoreply/src/persona"
)

// Config represents the complete configuration for the autoreply service
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// Reply pipeline configuration
	Reply ReplyConfig `json:"reply"`

	// Providers configuration for text-generation backends, keyed by name
	Providers map[string]ProviderConfig `json:"providers,omitempty" validate:"omitempty,dive"`

	// Personas available to AI-agent conversations
	Personas []persona.Persona `json:"personas,omitempty"`

	// Server configuration for the HTTP/websocket API
	Server ServerConfig `json:"server"`

	// Data directory configuration
	Data DataConfig `json:"data,omitempty"`

	// Logging configuration
	Logging LoggingConfig `json:"logging,omitempty"`
}

// ReplyConfig tunes the auto-reply pipeline
type ReplyConfig struct {
	// ActiveProvider names the entry in Providers used for agent replies
	ActiveProvider string `json:"active_provider"`

	// HistoryLimit bounds the conversation window sent to the provider
	HistoryLimit int `json:"history_limit,omitempty" validate:"min=0"`

	// PeerDelay is the randomized delay before simulated foster replies
	PeerDelay DelayRangeConfig `json:"peer_delay"`

	// AgentDelay is the randomized delay before AI-agent replies
	AgentDelay DelayRangeConfig `json:"agent_delay"`

	// ThrottledReply is sent when the abuse guard denies generation
	ThrottledReply string `json:"throttled_reply,omitempty"`

	// FallbackReply is sent when the provider yields no text
	FallbackReply string `json:"fallback_reply,omitempty"`

	// SystemReply is the canned acknowledgement for system conversations
	SystemReply string `json:"system_reply,omitempty"`
}

// DelayRangeConfig is a half-open delay window in milliseconds
type DelayRangeConfig struct {
	MinMs int `json:"min_ms" validate:"min=0"`
	MaxMs int `json:"max_ms" validate:"min=0"`
}

// ProviderConfig defines configuration for one text-generation backend
type ProviderConfig struct {
	// Kind selects the wire dialect ("openaichat", "gemini", "dashscope")
	Kind string `json:"kind" validate:"provider_kind"`

	// APIKey for the provider (usually left empty in files)
	APIKey string `json:"api_key,omitempty"`

	// APIKeyEnvVar specifies the environment variable to read the API key from
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`

	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Model identifier sent on every request
	Model string `json:"model"`

	// Timeout for API requests
	Timeout time.Duration `json:"timeout,omitempty" validate:"min=0"`
}

// ServerConfig defines the HTTP API listener
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8787"
	Addr string `json:"addr,omitempty"`
}

// DataConfig defines data directory configuration
type DataConfig struct {
	// Directory where application data is stored
	Directory string `json:"directory,omitempty"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty"`

	// Format is the output format (text, json)
	Format string `json:"format,omitempty" validate:"omitempty,log_format"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return e.Message
}

// ConfigPrecedence defines the order of configuration loading
type ConfigPrecedence struct {
	// UserConfig path
	UserConfig string

	// ProjectConfig path
	ProjectConfig string

	// LocalConfig path
	LocalConfig string

	// EnvironmentPrefix for env var overrides
	EnvironmentPrefix string
}
