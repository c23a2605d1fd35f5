package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/errors"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the active configuration after merging defaults, the config file, environment variables and command-line flags. Secrets are masked.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "path", Usage: "Only print the config file path"},
			&cli.BoolFlag{Name: "save", Usage: "Write the active configuration to the config file"},
		},
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("path") {
				fmt.Println(config.ConfigPath())
				return nil
			}

			cfg := getConfigFromContext(ctx)

			if cmd.Bool("save") {
				if cfg == nil {
					return errors.NewConfigError("failed to load configuration", "")
				}

				if err := config.SaveConfig(cfg); err != nil {
					return err
				}

				fmt.Printf("Configuration saved to %s\n", config.ConfigPath())

				return nil
			}

			return RunConfigWithConfig(os.Stdout, cfg)
		}),
	}
}

// RunConfigWithConfig prints cfg with secrets masked
func RunConfigWithConfig(w io.Writer, cfg *config.Config) error {
	if cfg == nil {
		return errors.NewConfigError("failed to load configuration", "")
	}

	cfg = cfg.Redacted()

	fmt.Fprintln(w, "====================")
	fmt.Fprintln(w, "Active Configuration:")

	db := cfg.Database
	fmt.Fprintln(w, "\nDatabase:")
	fmt.Fprintf(w, "  Driver: %s\n", db.Driver)

	switch db.Driver {
	case "sqlite", "duckdb":
		fmt.Fprintf(w, "  Path: %s\n", db.Path)
	case "snowflake":
		fmt.Fprintf(w, "  Account: %s\n", db.Account)
		fmt.Fprintf(w, "  Warehouse: %s\n", orDash(db.Warehouse))
		fmt.Fprintf(w, "  Role: %s\n", orDash(db.Role))
		fmt.Fprintf(w, "  User: %s\n", db.User)
		fmt.Fprintf(w, "  Password: %s\n", orDash(db.Password))
	default:
		fmt.Fprintf(w, "  Host: %s\n", db.Host)
		fmt.Fprintf(w, "  Port: %d\n", db.Port)
		fmt.Fprintf(w, "  User: %s\n", db.User)
		fmt.Fprintf(w, "  Password: %s\n", orDash(db.Password))
	}

	fmt.Fprintf(w, "  Default Database: %s\n", orDash(db.DefaultDatabase))
	fmt.Fprintf(w, "  Max Rows: %d\n", db.MaxRows)
	fmt.Fprintf(w, "  Sample Size: %d\n", db.SampleSize)
	fmt.Fprintf(w, "  Connect Timeout: %s\n", db.ConnectTimeout)

	llm := cfg.LLM
	fmt.Fprintln(w, "\nModel:")
	fmt.Fprintf(w, "  Provider: %s\n", llm.Provider)
	fmt.Fprintf(w, "  Model: %s\n", orDash(llm.Model))
	fmt.Fprintf(w, "  API Key: %s\n", orDash(llm.APIKey))
	fmt.Fprintf(w, "  Available: %t\n", llm.HasModel())

	if llm.FallbackProvider != "" {
		fmt.Fprintf(w, "  Fallback Provider: %s\n", llm.FallbackProvider)
	}

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Fprintf(w, "  File: %s\n", cfg.Logging.File)
	}

	fmt.Fprintln(w, "\nServer:")
	fmt.Fprintf(w, "  Address: %s\n", cfg.Server.Addr)
	fmt.Fprintf(w, "  Request Timeout: %s\n", cfg.Server.RequestTimeout)

	fmt.Fprintln(w, "\nDebug:")
	fmt.Fprintf(w, "  Enabled: %t\n", cfg.Debug.Enabled)
	fmt.Fprintf(w, "  Verbose: %t\n", cfg.Debug.Verbose)

	if cfg.Debug.Enabled {
		fmt.Fprintln(w, "\nRaw Configuration (JSON):")
		fmt.Fprintln(w, "==========================")

		jsonData, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}

		fmt.Fprintln(w, string(jsonData))
	}

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
