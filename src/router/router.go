// Package router selects the active text-generation provider and exposes a
// uniform never-fails reply contract to the orchestrator.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pawmate/autoreply/src/llm"
	"github.com/pawmate/autoreply/src/persona"
)

const (
	// defaultHistoryLimit bounds how many turns are forwarded to a provider.
	defaultHistoryLimit = 20

	// samplingTemperature is fixed across providers.
	samplingTemperature = 0.85

	// antiSpamInstruction is appended to every persona prompt so the model
	// deflects spam patterns on its own.
	antiSpamInstruction = "如果用户的消息是无意义的刷屏、辱骂或明显的滥用行为，" +
		"请用一句简短友好的话委婉拒绝，不要展开回答。"
)

// Router routes reply generation to the configured active provider.
type Router struct {
	providers    map[string]llm.Provider
	active       string
	personas     *persona.Registry
	historyLimit int
	logger       *slog.Logger
}

// Options configures a Router.
type Options struct {
	// Providers maps provider names to implementations.
	Providers map[string]llm.Provider

	// Active is the provider name selected by configuration.
	Active string

	// Personas resolves agent identifiers.
	Personas *persona.Registry

	// HistoryLimit overrides the default bounded history window.
	HistoryLimit int

	Logger *slog.Logger
}

// New creates a router. Selection is a pure configuration read; no per-call
// negotiation happens later.
func New(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Router{
		providers:    opts.Providers,
		active:       opts.Active,
		personas:     opts.Personas,
		historyLimit: limit,
		logger:       logger.With("component", "reply_router"),
	}
}

// GenerateAgentReply produces a reply from the active provider. Every
// expected failure mode (no provider, no credential, unknown persona,
// transport error, empty completion) collapses to ("", nil) so the caller
// can fall back uniformly. The error return is reserved for context
// cancellation, letting callers distinguish teardown from provider failure.
func (r *Router) GenerateAgentReply(ctx context.Context, agentType, userMessage string, history []llm.Message) (string, error) {
	logger := r.logger.With("agent_type", agentType, "provider", r.active)

	provider, ok := r.providers[r.active]
	if !ok {
		logger.Warn("no active provider configured")
		return "", nil
	}

	p, ok := r.personas.Lookup(agentType)
	if !ok {
		logger.Error("persona not registered", "error", llm.ErrUnknownPersona)
		return "", nil
	}

	if len(history) > r.historyLimit {
		history = history[len(history)-r.historyLimit:]
	}

	req := &llm.GenerateRequest{
		SystemPrompt: composeSystemPrompt(p),
		History:      history,
		UserMessage:  userMessage,
		MaxTokens:    p.MaxTokens,
		Temperature:  samplingTemperature,
	}

	resp, err := provider.Generate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		switch {
		case errors.Is(err, llm.ErrNoAPIKey):
			logger.Debug("provider has no credential, skipping generation")
		case errors.Is(err, llm.ErrEmptyResponse):
			logger.Warn("provider returned no usable text")
		default:
			logger.Warn("provider call failed", "error", err)
		}
		return "", nil
	}

	logger.Debug("reply generated", "model", resp.Model, "usage_total", resp.Usage.TotalTokens)
	return resp.Text, nil
}

// composeSystemPrompt builds the full system instruction: persona prompt,
// anti-spam deflection directive, then the tone directive.
func composeSystemPrompt(p persona.Persona) string {
	prompt := p.SystemPrompt + "\n\n" + antiSpamInstruction
	if p.Tone != "" {
		prompt += fmt.Sprintf("\n\n回复语气要求：%s。", p.Tone)
	}
	return prompt
}

// Snapshot describes the router's configuration for troubleshooting. It
// never contains the credential itself.
type Snapshot struct {
	ActiveProvider string   `json:"active_provider"`
	Registered     []string `json:"registered_providers"`
	HasCredential  bool     `json:"has_credential"`
	Personas       []string `json:"personas"`
	HistoryLimit   int      `json:"history_limit"`
}

// CredentialChecker is implemented by providers that can report whether a
// credential is configured without exposing it.
type CredentialChecker interface {
	HasCredential() bool
}

// DebugSnapshot reports which provider is active and whether it holds a
// credential, for operator troubleshooting after a string of fallbacks.
func (r *Router) DebugSnapshot() Snapshot {
	snap := Snapshot{
		ActiveProvider: r.active,
		HistoryLimit:   r.historyLimit,
		Personas:       r.personas.IDs(),
	}
	for name := range r.providers {
		snap.Registered = append(snap.Registered, name)
	}
	if p, ok := r.providers[r.active]; ok {
		if cc, ok := p.(CredentialChecker); ok {
			snap.HasCredential = cc.HasCredential()
		}
	}
	return snap
}
