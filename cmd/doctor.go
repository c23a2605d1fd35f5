package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/tools"
)

func DoctorCommand() *cli.Command {
	return &cli.Command{
		Name:        "doctor",
		Usage:       "Check the database connection and model configuration",
		Description: `List databases without fallbacks, peek at the first database's tables and report whether a model is configured.`,
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			a, err := appFromContext(ctx, cmd.String("format"))
			if err != nil {
				return err
			}

			return runDoctor(ctx, a)
		}),
	}
}

func runDoctor(ctx context.Context, a *app) error {
	report := a.pipeline.Steps().DebugConnection(ctx)

	if err := a.print(a.formatter.FormatReport(report, a.format)); err != nil {
		return err
	}

	if report.Status != tools.StatusOK {
		return errors.New(errors.ErrTypeConnectivity, "database connection check failed")
	}

	return nil
}
