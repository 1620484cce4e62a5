// Package llm defines the provider-neutral contract for text generation backends.
package llm

import (
	"context"
	"time"
)

// Message roles as used in conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Metadata for message tracking
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// GenerateRequest is the uniform request shape handed to a provider.
// Each provider translates this into its own wire format.
type GenerateRequest struct {
	// SystemPrompt is the fully composed system instruction (persona prompt,
	// anti-spam directive, tone directive).
	SystemPrompt string `json:"system_prompt"`

	// History is the bounded conversation window, oldest first. Roles are
	// RoleUser and RoleAssistant; providers map these to their own vocabulary.
	History []Message `json:"history"`

	// UserMessage is the new message the reply should address.
	UserMessage string `json:"user_message"`

	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// GenerateResponse is the uniform response shape returned by a provider.
type GenerateResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is a single text generation backend. Implementations are
// responsible only for wire-format translation; policy (fallbacks, guard,
// persona resolution) lives above this interface.
type Provider interface {
	// Name returns the configured provider identifier.
	Name() string

	// Generate issues one completion request. A non-nil error covers
	// transport and API failures; an empty Text with a nil error means the
	// backend answered but produced no usable completion.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
