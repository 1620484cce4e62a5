package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `help:"Path to an explicit config file" type:"path"`
	LogLevel string `default:"info" help:"Log level"`

	Serve     ServeCmd     `cmd:"" help:"Run the autoreply HTTP API"`
	Chat      ChatCmd      `cmd:"" help:"Interactive chat against the reply pipeline"`
	Providers ProvidersCmd `cmd:"" help:"Show the active provider configuration"`
	Migrate   MigrateCmd   `cmd:"" help:"Database migrations"`
}

func main() {
	// Missing .env is fine; real deployments use environment variables.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("autoreply"),
		kong.Description("Auto-reply pipeline for the pet adoption chat"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
