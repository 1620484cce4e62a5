// Package app wires configuration, storage and the reply pipeline into one
// runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pawmate/autoreply/src/config"
	"github.com/pawmate/autoreply/src/keyword"
	"github.com/pawmate/autoreply/src/llm"
	"github.com/pawmate/autoreply/src/orchestrator"
	"github.com/pawmate/autoreply/src/persona"
	"github.com/pawmate/autoreply/src/provider/dashscope"
	"github.com/pawmate/autoreply/src/provider/gemini"
	"github.com/pawmate/autoreply/src/provider/openaichat"
	"github.com/pawmate/autoreply/src/router"
	"github.com/pawmate/autoreply/src/server"
	"github.com/pawmate/autoreply/src/storage"
)

// App holds all initialized services.
type App struct {
	Config       *config.Config
	DB           *storage.DB
	Store        *storage.Store
	Router       *router.Router
	Orchestrator *orchestrator.Orchestrator
	Server       *server.Server
	Logger       *slog.Logger
}

// New creates an App from configuration. ctx bounds the lifetime of
// background reply timers: cancelling it stops pending auto-replies.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	dataDir := cfg.Data.Directory
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := storage.Open(filepath.Join(dataDir, "autoreply.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := storage.NewStore(db)

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := persona.NewRegistry(cfg.Personas)
	replyRouter := router.New(router.Options{
		Providers:    providers,
		Active:       cfg.Reply.ActiveProvider,
		Personas:     registry,
		HistoryLimit: cfg.Reply.HistoryLimit,
		Logger:       logger,
	})

	hub := server.NewHub()

	activeModel := ""
	if pc, ok := cfg.Providers[cfg.Reply.ActiveProvider]; ok {
		activeModel = pc.Model
	}
	orch := orchestrator.New(orchestrator.Options{
		Store:       store,
		Matcher:     keyword.NewMatcher(keyword.DefaultGroups()),
		Router:      replyRouter,
		Notifier:    hub,
		Logger:      logger,
		BaseContext: ctx,
		Config: orchestrator.Config{
			PeerDelay:      delayRange(cfg.Reply.PeerDelay),
			AgentDelay:     delayRange(cfg.Reply.AgentDelay),
			HistoryLimit:   cfg.Reply.HistoryLimit,
			ThrottledReply: cfg.Reply.ThrottledReply,
			FallbackReply:  cfg.Reply.FallbackReply,
			SystemReply:    cfg.Reply.SystemReply,
			ProviderName:   cfg.Reply.ActiveProvider,
			Model:          activeModel,
		},
	})

	srv := server.New(server.Options{
		Store:        store,
		Orchestrator: orch,
		ReplyRouter:  replyRouter,
		Hub:          hub,
		Logger:       logger,
	})

	return &App{
		Config:       cfg,
		DB:           db,
		Store:        store,
		Router:       replyRouter,
		Orchestrator: orch,
		Server:       srv,
		Logger:       logger,
	}, nil
}

// buildProviders instantiates one client per configured provider entry,
// dispatched on the configured wire dialect.
func buildProviders(cfg *config.Config, logger *slog.Logger) (map[string]llm.Provider, error) {
	providers := make(map[string]llm.Provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		switch pc.Kind {
		case "openaichat":
			providers[name] = openaichat.NewClient(openaichat.Config{
				Name:    name,
				APIKey:  pc.APIKey,
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
				Timeout: pc.Timeout,
				Logger:  logger,
			})
		case "gemini":
			providers[name] = gemini.NewClient(gemini.Config{
				Name:    name,
				APIKey:  pc.APIKey,
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
				Timeout: pc.Timeout,
				Logger:  logger,
			})
		case "dashscope":
			providers[name] = dashscope.NewClient(dashscope.Config{
				Name:    name,
				APIKey:  pc.APIKey,
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
				Timeout: pc.Timeout,
				Logger:  logger,
			})
		default:
			return nil, fmt.Errorf("%w: %s (kind %q)", llm.ErrUnknownProvider, name, pc.Kind)
		}
	}
	return providers, nil
}

func delayRange(d config.DelayRangeConfig) orchestrator.DelayRange {
	return orchestrator.DelayRange{
		Min: time.Duration(d.MinMs) * time.Millisecond,
		Max: time.Duration(d.MaxMs) * time.Millisecond,
	}
}

// Close releases all resources held by the app after waiting for pending
// auto-replies to settle.
func (a *App) Close() error {
	a.Orchestrator.Wait()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
