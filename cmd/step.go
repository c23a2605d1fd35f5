package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/pipeline"
)

func StepCommand() *cli.Command {
	return &cli.Command{
		Name:  "step",
		Usage: "Run a single pipeline step",
		Description: `Run one step by name or number (1-9) with a JSON request body and print
its envelope as JSON. Pass "-" as the body to read it from standard input.

Examples:
  askdb step discover_databases
  askdb step select_table '{"user_question": "users in Lyon", "database": "main", "tables": ["orders", "users"]}'
  askdb step 8 '{"database": "main", "sql_query": "SELECT COUNT(*) FROM users"}'`,
		ArgsUsage: " <action> [json]",
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() < 1 || args.Len() > 2 {
				return fmt.Errorf("expected 1 or 2 arguments, got %d", args.Len())
			}

			body := args.Get(1)
			if body == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read request body: %w", err)
				}

				body = string(data)
			}

			a, err := appFromContext(ctx, "json")
			if err != nil {
				return err
			}

			return runStep(ctx, a, args.First(), body)
		}),
	}
}

func runStep(ctx context.Context, a *app, name, body string) error {
	action, err := pipeline.ParseAction(name)
	if err != nil {
		return err
	}

	var req pipeline.StepRequest
	if strings.TrimSpace(body) != "" {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return errors.Wrap(err, errors.ErrTypeValidation, "invalid JSON request body")
		}
	}

	env, err := a.pipeline.Steps().Dispatch(ctx, action, req)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if _, err := fmt.Fprintln(a.out, string(data)); err != nil {
		return err
	}

	if !env.OK() {
		return errors.New(env.ErrorType, env.Message)
	}

	return nil
}
