package main

import (
	"fmt"
	"os"

	"github.com/pawmate/autoreply/src/config"
)

// loadConfig resolves the effective configuration for a command. An explicit
// --config path must exist; otherwise the standard locations are merged.
func loadConfig(cli *CLI) (*config.Config, error) {
	precedence := config.GetConfigPaths()

	if cli.Config != "" {
		if _, err := os.Stat(cli.Config); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cli.Config, err)
		}
		precedence = config.ConfigPrecedence{
			ProjectConfig:     cli.Config,
			EnvironmentPrefix: "AUTOREPLY",
		}
	}

	cfg, err := config.NewLoader(precedence).Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
