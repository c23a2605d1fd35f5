package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
	// register every supported SQL dialect
	_ "github.com/kyleking/askdb/internal/store/dialects"
)

const appName = "askdb"

type contextKey string

const configKey contextKey = "config"

// Execute runs the CLI with the process arguments
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		if structErr, ok := errors.As(err); ok {
			for _, s := range structErr.Suggestions {
				fmt.Fprintf(os.Stderr, "  hint: %s\n", s)
			}
		}

		return err
	}

	return nil
}

// RootCommand builds the command tree
func RootCommand() *cli.Command {
	return &cli.Command{
		Name:  appName,
		Usage: "Answer natural-language questions from a SQL database",
		Description: `askdb discovers the databases and tables it can reach, picks the table that
best matches a question, writes a read-only SQL statement for it, runs it
(repairing it once if the database rejects it) and phrases the result.

Without a model API key every stage falls back to a deterministic default.`,
		Flags: globalFlags(),
		Commands: []*cli.Command{
			AskCommand(),
			DatabasesCommand(),
			TablesCommand(),
			DescribeCommand(),
			SampleCommand(),
			SQLCommand(),
			StepCommand(),
			ServeCommand(),
			DoctorCommand(),
			ConfigCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "Path to a YAML or JSON config file"},
		&cli.StringFlag{Name: "driver", Usage: "Database driver (postgres, mysql, sqlite, duckdb, snowflake)"},
		&cli.StringFlag{Name: "db-path", Usage: "Database file for sqlite and duckdb"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
		&cli.StringFlag{Name: "provider", Usage: "Model provider (gemini, openai, anthropic, ollama)"},
		&cli.StringFlag{Name: "model", Usage: "Model name"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Show every pipeline step"},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
	}
}

// withSetup loads configuration and logging before running action
func withSetup(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctx, err := setup(ctx, cmd)
		if err != nil {
			return err
		}

		return action(ctx, cmd)
	}
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", path); err != nil {
			return ctx, errors.Wrap(err, errors.ErrTypeConfig, "failed to set config path")
		}
	}

	overrides := map[string]any{}

	for _, name := range []string{"driver", "db-path", "log-level", "provider", "model"} {
		if cmd.IsSet(name) {
			overrides[name] = cmd.String(name)
		}
	}

	for _, name := range []string{"verbose", "debug"} {
		if cmd.IsSet(name) {
			overrides[name] = cmd.Bool(name)
		}
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		logging.SetupFallbackLogger()
		return ctx, err
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
		logging.WithError(err).Warn("Falling back to stderr logging")
	}

	return context.WithValue(ctx, configKey, cfg), nil
}

func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}

	return nil
}
