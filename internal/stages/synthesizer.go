package stages

import (
	"context"
	"fmt"

	"github.com/kyleking/askdb/internal/llm"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/query"
	"github.com/kyleking/askdb/internal/types"
)

// Row limits of the fallback statements
const (
	// DiscoveryLimit is used when there is no model at all
	DiscoveryLimit = 3
	// ExecutionLimit is used when the model failed to produce a statement
	ExecutionLimit = 10
)

// Dialect is the part of store.Dialect the stages need
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
}

// Synthesizer turns a question into a single read-only statement
type Synthesizer struct {
	model   llm.Service
	dialect Dialect
}

// NewSynthesizer creates a synthesizer writing SQL for dialect
func NewSynthesizer(model llm.Service, dialect Dialect) *Synthesizer {
	return &Synthesizer{model: model, dialect: dialect}
}

// Synthesize returns SQL for question against table. The statement is not
// checked against schema here; execution failures go to the Repairer.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	question, database, table string,
	schema types.Schema,
	sample []types.Record,
) string {
	if s.model == nil {
		return query.SelectAll(s.dialect, table, DiscoveryLimit)
	}

	prompt := fmt.Sprintf(sqlGenerationPrompt,
		dialectLabel(s.dialect.Name()),
		question,
		database,
		table,
		renderSchema(schema),
		renderSample(sample),
		caseInsensitiveHint(s.dialect.Name()),
		jsonHint(s.dialect.Name()),
	)

	resp, err := s.model.Complete(ctx, llm.CompletionRequest{System: systemPrompt, Prompt: prompt})
	if err != nil {
		logging.WithError(err).WithField("table", table).Warn("SQL generation failed; using fallback query")
		return query.SelectAll(s.dialect, table, ExecutionLimit)
	}

	sql := query.Clean(resp.Text)
	if sql == "" {
		logging.WithField("table", table).Warn("Model returned no SQL; using fallback query")
		return query.SelectAll(s.dialect, table, ExecutionLimit)
	}

	logging.WithField("sql", sql).Info("SQL generated")

	return sql
}
