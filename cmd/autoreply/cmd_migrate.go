package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pawmate/autoreply/src/config"
	"github.com/pawmate/autoreply/src/storage"
)

// MigrateCmd manages database migrations
type MigrateCmd struct {
	Up MigrateUpCmd `cmd:"" help:"Run pending migrations"`
}

// MigrateUpCmd runs pending migrations
type MigrateUpCmd struct {
	DBPath string `help:"Database path (defaults to config)"`
}

// Run executes the migrate up command
func (c *MigrateUpCmd) Run(cli *CLI) error {
	dbPath := c.DBPath
	if dbPath == "" {
		cfg, err := loadConfig(cli)
		if err != nil {
			return err
		}
		dataDir := cfg.Data.Directory
		if dataDir == "" {
			dataDir = config.DefaultDataDir()
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath = filepath.Join(dataDir, "autoreply.db")
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	fmt.Printf("Database opened: %s (migrations applied)\n", dbPath)
	return nil
}
