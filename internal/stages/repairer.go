package stages

import (
	"context"
	"fmt"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/llm"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/query"
	"github.com/kyleking/askdb/internal/types"
)

// Repairer rewrites a statement that failed to execute. Callers invoke it
// at most once per failed statement.
type Repairer struct {
	model   llm.Service
	dialect Dialect
}

// NewRepairer creates a repairer writing SQL for dialect
func NewRepairer(model llm.Service, dialect Dialect) *Repairer {
	return &Repairer{model: model, dialect: dialect}
}

// Repair returns a corrected statement given the failed one and its error
func (r *Repairer) Repair(
	ctx context.Context,
	question, database, table string,
	schema types.Schema,
	sample []types.Record,
	failedSQL string,
	execErr error,
) string {
	fallback := query.SelectAll(r.dialect, table, ExecutionLimit)
	if r.model == nil {
		return fallback
	}

	prompt := fmt.Sprintf(repairPrompt,
		dialectLabel(r.dialect.Name()),
		question,
		database,
		table,
		failedSQL,
		errors.DetailOf(execErr),
		renderSchema(schema),
		renderSample(sample),
	)

	resp, err := r.model.Complete(ctx, llm.CompletionRequest{System: systemPrompt, Prompt: prompt})
	if err != nil {
		logging.WithError(err).WithField("table", table).Warn("SQL repair failed; using fallback query")
		return fallback
	}

	sql := query.Clean(resp.Text)
	if sql == "" {
		return fallback
	}

	logging.WithFields(map[string]any{
		"original":  failedSQL,
		"corrected": sql,
	}).Info("SQL corrected")

	return sql
}
