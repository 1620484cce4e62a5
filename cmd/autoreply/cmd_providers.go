package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pawmate/autoreply/src/config"
)

// ProvidersCmd shows the active provider configuration for troubleshooting.
// Credentials are reported as present/absent, never printed.
type ProvidersCmd struct {
	Format string `help:"Output format (table, json)" default:"table"`
}

type providerStatus struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Model         string `json:"model"`
	Active        bool   `json:"active"`
	HasCredential bool   `json:"has_credential"`
}

// Run executes the providers command
func (c *ProvidersCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	statuses := make([]providerStatus, 0, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		statuses = append(statuses, providerStatus{
			Name:          name,
			Kind:          pc.Kind,
			Model:         pc.Model,
			Active:        name == cfg.Reply.ActiveProvider,
			HasCredential: pc.APIKey != "",
		})
	}

	switch c.Format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	case "table":
		return printProvidersTable(cfg, statuses)
	default:
		return fmt.Errorf("invalid format: %s", c.Format)
	}
}

func printProvidersTable(cfg *config.Config, statuses []providerStatus) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tMODEL\tACTIVE\tCREDENTIAL")
	for _, s := range statuses {
		active := ""
		if s.Active {
			active = "*"
		}
		credential := "absent"
		if s.HasCredential {
			credential = "present"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Kind, s.Model, active, credential)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nactive provider: %s\n", cfg.Reply.ActiveProvider)
	return nil
}
