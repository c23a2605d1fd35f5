package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func DatabasesCommand() *cli.Command {
	return &cli.Command{
		Name:        "databases",
		Usage:       "List the databases the connection can see",
		Description: `List candidate databases. When the catalog cannot be read the configured default database is listed alone.`,
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			a, err := appFromContext(ctx, cmd.String("format"))
			if err != nil {
				return err
			}

			return runDatabases(ctx, a)
		}),
	}
}

func runDatabases(ctx context.Context, a *app) error {
	return a.print(a.formatter.FormatList(a.toolbox.ListDatabases(ctx), a.format))
}

func TablesCommand() *cli.Command {
	return &cli.Command{
		Name:      "tables",
		Usage:     "List the tables of a database",
		ArgsUsage: " [database]",
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			a, err := appFromContext(ctx, cmd.String("format"))
			if err != nil {
				return err
			}

			return runTables(ctx, a, cmd.Args().First())
		}),
	}
}

func runTables(ctx context.Context, a *app, database string) error {
	return a.print(a.formatter.FormatList(a.toolbox.ListTables(ctx, a.database(database)), a.format))
}

func databaseFlag() cli.Flag {
	return &cli.StringFlag{Name: "database", Aliases: []string{"d"}, Usage: "Database holding the table (default: the configured one)"}
}

func DescribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Show the columns of a table",
		ArgsUsage: " <table>",
		Flags:     []cli.Flag{databaseFlag()},
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", args.Len())
			}

			a, err := appFromContext(ctx, cmd.String("format"))
			if err != nil {
				return err
			}

			return runDescribe(ctx, a, cmd.String("database"), args.First())
		}),
	}
}

func runDescribe(ctx context.Context, a *app, database, table string) error {
	return a.print(a.formatter.FormatSchema(a.toolbox.DescribeTable(ctx, a.database(database), table), a.format))
}

func SampleCommand() *cli.Command {
	return &cli.Command{
		Name:      "sample",
		Usage:     "Show a few rows of a table",
		ArgsUsage: " <table>",
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of rows (default: the configured sample size)"},
		},
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", args.Len())
			}

			a, err := appFromContext(ctx, cmd.String("format"))
			if err != nil {
				return err
			}

			return runSample(ctx, a, cmd.String("database"), args.First(), int(cmd.Int("limit")))
		}),
	}
}

func runSample(ctx context.Context, a *app, database, table string, limit int) error {
	if limit <= 0 {
		limit = a.toolbox.SampleSize()
	}

	return a.print(a.formatter.FormatRecords(a.toolbox.SampleData(ctx, a.database(database), table, limit), a.format))
}
