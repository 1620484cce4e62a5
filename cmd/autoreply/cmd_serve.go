package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pawmate/autoreply/src/app"
)

// ServeCmd runs the HTTP API
type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)"`
	Log  string `help:"Where to log (stderr, file)" default:"stderr" enum:"stderr,file"`
}

// Run executes the serve command
func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	logger := createCLILogger(cli.LogLevel)
	if c.Log == "file" {
		logger = createServerLogger(cli.LogLevel, cfg.Data.Directory)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	logger.Info("starting autoreply server",
		"addr", cfg.Server.Addr,
		"provider", cfg.Reply.ActiveProvider)

	if err := application.Server.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
