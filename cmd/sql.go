package cmd

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/askdb/internal/errors"
)

func SQLCommand() *cli.Command {
	return &cli.Command{
		Name:  "sql",
		Usage: "Run a read-only SQL statement",
		Description: `Run a statement through the safety gate. Statements starting with ALTER,
CREATE, DELETE, DROP, INSERT, UPDATE, TRUNCATE, GRANT or REVOKE are rejected
before any connection is opened.`,
		ArgsUsage: " <statement>",
		Flags:     []cli.Flag{databaseFlag()},
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			a, err := appFromContext(ctx, cmd.String("format"))
			if err != nil {
				return err
			}

			return runSQL(ctx, a, cmd.String("database"), strings.Join(cmd.Args().Slice(), " "))
		}),
	}
}

func runSQL(ctx context.Context, a *app, database, statement string) error {
	if strings.TrimSpace(statement) == "" {
		return errors.New(errors.ErrTypeValidation, "statement is required")
	}

	results, err := a.toolbox.RunSQL(ctx, a.database(database), statement)
	if err != nil {
		return err
	}

	return a.print(a.formatter.FormatResults(results, a.format))
}
