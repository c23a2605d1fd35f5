package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/llm"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/stages"
	"github.com/kyleking/askdb/internal/tools"
	"github.com/kyleking/askdb/internal/types"
)

// Steps exposes each pipeline stage as an independent operation returning
// an Envelope. No step returns an error or lets a panic escape.
type Steps struct {
	tools       *tools.Toolbox
	model       llm.Service
	selector    *stages.Selector
	synthesizer *stages.Synthesizer
	repairer    *stages.Repairer
	narrator    *stages.Narrator
}

// NewSteps wires the stages to toolbox; model may be nil
func NewSteps(toolbox *tools.Toolbox, model llm.Service) *Steps {
	dialect := toolbox.Dialect()

	return &Steps{
		tools:       toolbox,
		model:       model,
		selector:    stages.NewSelector(model, toolbox.DefaultDatabase()),
		synthesizer: stages.NewSynthesizer(model, dialect),
		repairer:    stages.NewRepairer(model, dialect),
		narrator:    stages.NewNarrator(model),
	}
}

// guard runs fn and converts a panic into an error envelope for action
func guard(action Action, fn func() Envelope) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf(errors.ErrTypeInternal, "panic: %v", r)
			logging.WithError(err).WithField("action", string(action)).Error("Step panicked")

			env = failed(newEnvelope(action), err)
		}
	}()

	return fn()
}

// DiscoverDatabases lists candidate databases
func (s *Steps) DiscoverDatabases(ctx context.Context) Envelope {
	return guard(ActionDiscoverDatabases, func() Envelope {
		env := newEnvelope(ActionDiscoverDatabases)
		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.Databases = s.tools.ListDatabases(ctx)
		env.Count = len(env.Databases)
		env.Message = fmt.Sprintf("%d database(s) found: %s", env.Count, strings.Join(env.Databases, ", "))

		return env
	})
}

// SelectDatabase picks the database that should answer question
func (s *Steps) SelectDatabase(ctx context.Context, question string, databases []string) Envelope {
	return guard(ActionSelectDatabase, func() Envelope {
		env := newEnvelope(ActionSelectDatabase)
		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.UserQuestion = question
		env.AvailableDatabases = databases
		env.SelectedDatabase = s.selector.Select(ctx, question, databases, stages.KindDatabase)
		env.Count = len(databases)
		env.Message = fmt.Sprintf("Selected database: '%s' for the question: '%s'", env.SelectedDatabase, question)

		return env
	})
}

// DiscoverTables lists the tables of database
func (s *Steps) DiscoverTables(ctx context.Context, database string) Envelope {
	return guard(ActionDiscoverTables, func() Envelope {
		env := newEnvelope(ActionDiscoverTables)
		env.Database = database

		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.Tables = s.tools.ListTables(ctx, database)
		env.Count = len(env.Tables)
		env.Message = fmt.Sprintf("%d table(s) found in '%s': %s", env.Count, database, strings.Join(env.Tables, ", "))

		return env
	})
}

// SelectTable picks the table of database that should answer question
func (s *Steps) SelectTable(ctx context.Context, question, database string, tables []string) Envelope {
	return guard(ActionSelectTable, func() Envelope {
		env := newEnvelope(ActionSelectTable)
		env.Database = database

		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.UserQuestion = question
		env.AvailableTables = tables
		env.SelectedTable = s.selector.SelectTable(ctx, question, database, tables)
		env.Count = len(tables)
		env.Message = fmt.Sprintf("Selected table: '%s' in '%s'", env.SelectedTable, database)

		return env
	})
}

// AnalyzeSchema describes table
func (s *Steps) AnalyzeSchema(ctx context.Context, database, table string) Envelope {
	return guard(ActionAnalyzeSchema, func() Envelope {
		env := newEnvelope(ActionAnalyzeSchema)
		env.Database = database
		env.Table = table

		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.Schema = s.tools.DescribeTable(ctx, database, table)
		env.Count = len(env.Schema)
		env.Message = fmt.Sprintf("Schema analyzed for '%s': %d columns", table, env.Count)

		return env
	})
}

// GetSample fetches a few rows of table
func (s *Steps) GetSample(ctx context.Context, database, table string) Envelope {
	return guard(ActionGetSample, func() Envelope {
		env := newEnvelope(ActionGetSample)
		env.Database = database
		env.Table = table

		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.SampleData = s.tools.SampleData(ctx, database, table, s.tools.SampleSize())
		env.Count = len(env.SampleData)
		env.Message = fmt.Sprintf("Sample retrieved: %d rows from '%s'", env.Count, table)

		return env
	})
}

// GenerateSQL writes the statement answering question
func (s *Steps) GenerateSQL(
	ctx context.Context,
	question, database, table string,
	schema types.Schema,
	sample []types.Record,
) Envelope {
	return guard(ActionGenerateSQL, func() Envelope {
		env := newEnvelope(ActionGenerateSQL)
		env.UserQuestion = question
		env.Database = database
		env.Table = table

		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.SQLQuery = s.synthesizer.Synthesize(ctx, question, database, table, schema, sample)
		env.Message = "SQL query generated: " + truncate(env.SQLQuery, 50)

		return env
	})
}

// ExecuteRequest carries what EXECUTE_QUERY needs. Question, Table, Schema
// and Sample are optional; without all of them no repair is attempted.
type ExecuteRequest struct {
	Database string
	SQL      string
	Question string
	Table    string
	Schema   types.Schema
	Sample   []types.Record
}

// ExecuteQuery runs the statement. An execution failure is repaired once
// when the model and the full context are available; the corrected
// statement is run once and its outcome is final.
func (s *Steps) ExecuteQuery(ctx context.Context, req ExecuteRequest) Envelope {
	return guard(ActionExecuteQuery, func() Envelope {
		env := newEnvelope(ActionExecuteQuery)
		env.Database = req.Database
		env.SQLQuery = req.SQL

		results, err := s.tools.RunSQL(ctx, req.Database, req.SQL)
		if err == nil {
			env.Results = results
			env.Count = results.Len()
			env.Message = fmt.Sprintf("Query executed successfully: %d result(s)", env.Count)

			return env
		}

		if !errors.IsType(err, errors.ErrTypeExecution) || !s.canRepair(req) {
			return failed(env, err)
		}

		logging.WithError(err).WithField("sql", req.SQL).Info("Attempting to correct the query")

		corrected := s.repairer.Repair(ctx, req.Question, req.Database, req.Table, req.Schema, req.Sample, req.SQL, err)
		env.OriginalSQL = req.SQL
		env.CorrectedSQL = corrected

		results, err = s.tools.RunSQL(ctx, req.Database, corrected)
		if err != nil {
			return failed(env, err)
		}

		env.Status = StatusSuccessAfterRetry
		env.SQLQuery = ""
		env.Results = results
		env.Count = results.Len()
		env.Message = fmt.Sprintf("Query corrected and executed: %d result(s)", env.Count)

		return env
	})
}

func (s *Steps) canRepair(req ExecuteRequest) bool {
	return s.model != nil &&
		req.Question != "" &&
		req.Table != "" &&
		len(req.Schema) > 0 &&
		len(req.Sample) > 0
}

// FormatResponse phrases results as an answer
func (s *Steps) FormatResponse(ctx context.Context, question, sql string, results *types.ResultSet) Envelope {
	return guard(ActionFormatResponse, func() Envelope {
		env := newEnvelope(ActionFormatResponse)
		env.UserQuestion = question
		env.SQLQuery = sql

		if err := ctx.Err(); err != nil {
			return failed(env, err)
		}

		env.NaturalResponse = s.narrator.Narrate(ctx, question, sql, results)
		env.Count = results.Len()
		env.Message = "Response formatted in natural language"

		return env
	})
}

// DebugConnection reports store and model reachability
func (s *Steps) DebugConnection(ctx context.Context) tools.ConnectionReport {
	return s.tools.DebugConnection(ctx)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "..."
}
