package pipeline

import (
	"context"
	"strconv"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/types"
)

// StepRequest is the wire form of a single step invocation. Each action
// reads only the fields it needs.
type StepRequest struct {
	Question   string           `json:"user_question"`
	Database   string           `json:"database"`
	Databases  []string         `json:"databases"`
	Table      string           `json:"table"`
	Tables     []string         `json:"tables"`
	Schema     types.Schema     `json:"schema"`
	SampleData []types.Record   `json:"sample_data"`
	SQLQuery   string           `json:"sql_query"`
	Results    *types.ResultSet `json:"results"`
}

// ParseAction resolves an action by name or 1-based step number
func ParseAction(name string) (Action, error) {
	for i, action := range Actions {
		if string(action) == name || strconv.Itoa(i+1) == name {
			return action, nil
		}
	}

	return "", errors.Newf(errors.ErrTypeNotFound, "unknown step %q", name).
		WithSuggestion("Use one of: discover_databases, select_database, discover_tables, select_table, " +
			"analyze_schema, get_sample, generate_sql, execute_query, format_response")
}

// Dispatch invokes action with the arguments in req
func (s *Steps) Dispatch(ctx context.Context, action Action, req StepRequest) (Envelope, error) {
	switch action {
	case ActionDiscoverDatabases:
		return s.DiscoverDatabases(ctx), nil
	case ActionSelectDatabase:
		return s.SelectDatabase(ctx, req.Question, req.Databases), nil
	case ActionDiscoverTables:
		return s.DiscoverTables(ctx, req.Database), nil
	case ActionSelectTable:
		return s.SelectTable(ctx, req.Question, req.Database, req.Tables), nil
	case ActionAnalyzeSchema:
		return s.AnalyzeSchema(ctx, req.Database, req.Table), nil
	case ActionGetSample:
		return s.GetSample(ctx, req.Database, req.Table), nil
	case ActionGenerateSQL:
		return s.GenerateSQL(ctx, req.Question, req.Database, req.Table, req.Schema, req.SampleData), nil
	case ActionExecuteQuery:
		return s.ExecuteQuery(ctx, ExecuteRequest{
			Database: req.Database,
			SQL:      req.SQLQuery,
			Question: req.Question,
			Table:    req.Table,
			Schema:   req.Schema,
			Sample:   req.SampleData,
		}), nil
	case ActionFormatResponse:
		return s.FormatResponse(ctx, req.Question, req.SQLQuery, req.Results), nil
	default:
		return Envelope{}, errors.Newf(errors.ErrTypeNotFound, "unknown step %q", action)
	}
}
