package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/server"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the catalog tools, the steps and the pipeline over HTTP",
		Description: `Start the HTTP server. The database must answer a ping at startup; a
missing model key only switches the stages to their deterministic fallbacks.

Routes:
  GET  /health
  GET  /debug/connection
  GET  /databases
  GET  /databases/{database}/tables
  GET  /databases/{database}/tables/{table}
  GET  /databases/{database}/tables/{table}/sample?limit=N
  POST /sql            {"database": "...", "query": "..."}
  POST /steps/{action} step request body
  POST /ask            {"question": "..."}`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default: the configured one)"},
		},
		Action: withSetup(func(ctx context.Context, cmd *cli.Command) error {
			a, err := appFromContext(ctx, "json")
			if err != nil {
				return err
			}

			addr := cmd.String("addr")
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			return runServe(ctx, a, addr)
		}),
	}
}

func runServe(ctx context.Context, a *app, addr string) error {
	if err := startupChecks(ctx, a); err != nil {
		return err
	}

	srv := server.New(a.pipeline, a.toolbox, config.Duration(a.cfg.Server.RequestTimeout, server.DefaultRequestTimeout))

	return srv.ListenAndServe(ctx, addr)
}

// startupChecks fails when the database is unreachable and warns when no
// model is configured
func startupChecks(ctx context.Context, a *app) error {
	return logging.LoggerMiddleware("startup_checks", func() error {
		return checkStartup(ctx, a)
	})
}

func checkStartup(ctx context.Context, a *app) error {
	pingCtx, cancel := context.WithTimeout(ctx, config.Duration(a.cfg.Database.ConnectTimeout, 10*time.Second))
	defer cancel()

	if err := a.connector.Ping(pingCtx); err != nil {
		return errors.Wrap(err, errors.ErrTypeConnectivity, "database is not reachable").
			WithSuggestion("Run 'askdb doctor' to inspect the connection settings")
	}

	log := logging.WithFields(map[string]any{
		"driver":   a.connector.Dialect().Name(),
		"database": a.connector.DefaultDatabase(),
	})

	if a.model == nil {
		log.Warn("No model configured: stages use deterministic fallbacks")
	} else {
		log.WithField("provider", a.cfg.LLM.Provider).Info("Model configured")
	}

	log.Info("Startup checks passed")

	return nil
}
