package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kyleking/askdb/internal/catalog"
	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/formatter"
	"github.com/kyleking/askdb/internal/llm"
	"github.com/kyleking/askdb/internal/pipeline"
	"github.com/kyleking/askdb/internal/query"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/tools"
)

// app is the object graph shared by the commands
type app struct {
	cfg       *config.Config
	connector *store.Connector
	toolbox   *tools.Toolbox
	model     llm.Service
	pipeline  *pipeline.Pipeline
	formatter *formatter.Formatter
	format    formatter.OutputFormat
	out       io.Writer
}

func newApp(cfg *config.Config, format formatter.OutputFormat, out io.Writer, opts ...pipeline.Option) (*app, error) {
	connector, err := store.NewConnector(cfg.Database)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model: %w", err)
	}

	executor := query.NewExecutor(connector, cfg.Database.MaxRows)
	toolbox := tools.New(catalog.New(connector, executor, cfg.Database.SampleSize), executor, model != nil)

	return &app{
		cfg:       cfg,
		connector: connector,
		toolbox:   toolbox,
		model:     model,
		pipeline:  pipeline.New(pipeline.NewSteps(toolbox, model), opts...),
		formatter: formatter.NewFormatter(),
		format:    format,
		out:       out,
	}, nil
}

// appFromContext builds the app from the config stored by setup
func appFromContext(ctx context.Context, format string, opts ...pipeline.Option) (*app, error) {
	cfg := getConfigFromContext(ctx)
	if cfg == nil {
		return nil, errors.NewConfigError("failed to load configuration", "")
	}

	return newApp(cfg, formatter.ParseFormat(format), os.Stdout, opts...)
}

func (a *app) database(name string) string {
	if name != "" {
		return name
	}

	return a.toolbox.DefaultDatabase()
}

func (a *app) print(s string, err error) error {
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(a.out, s)

	return err
}
