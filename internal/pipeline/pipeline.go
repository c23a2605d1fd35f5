// Package pipeline sequences the nine steps that turn a question into an
// answer: discover and select a database, discover and select a table,
// read its schema and a sample, write SQL, execute it (repairing once) and
// phrase the result.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/types"
)

// State accumulates the outputs of one run. Each field is set by exactly
// one step and never rewritten.
type State struct {
	RunID              uuid.UUID        `json:"run_id"`
	Question           string           `json:"question"`
	AvailableDatabases []string         `json:"available_databases"`
	SelectedDatabase   string           `json:"selected_database"`
	AvailableTables    []string         `json:"available_tables"`
	SelectedTable      string           `json:"selected_table"`
	Schema             types.Schema     `json:"schema"`
	Sample             []types.Record   `json:"sample"`
	SQLQuery           string           `json:"sql_query"`
	CorrectedSQL       string           `json:"corrected_sql,omitempty"`
	Results            *types.ResultSet `json:"results"`
	NaturalResponse    string           `json:"natural_response"`
}

// Result is the outcome of Run
type Result struct {
	State     *State     `json:"state"`
	Envelopes []Envelope `json:"steps"`
}

// Failed returns the error envelope that stopped the run, if any
func (r *Result) Failed() *Envelope {
	if len(r.Envelopes) == 0 {
		return nil
	}

	last := r.Envelopes[len(r.Envelopes)-1]
	if last.OK() {
		return nil
	}

	return &last
}

// Answer returns the natural-language response, or the failure message
func (r *Result) Answer() string {
	if failed := r.Failed(); failed != nil {
		return failed.Message
	}

	return r.State.NaturalResponse
}

// Pipeline runs all steps for a question
type Pipeline struct {
	steps    *Steps
	progress func(Envelope)
	starting func(Action)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithProgress registers a callback invoked after every step
func WithProgress(fn func(Envelope)) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// WithStepStart registers a callback invoked before every step
func WithStepStart(fn func(Action)) Option {
	return func(p *Pipeline) {
		p.starting = fn
	}
}

// New creates a pipeline over steps
func New(steps *Steps, opts ...Option) *Pipeline {
	p := &Pipeline{steps: steps}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Steps returns the underlying step operations
func (p *Pipeline) Steps() *Steps {
	return p.steps
}

// Run executes the steps in order and stops at the first error envelope.
// Runs share no state and may proceed concurrently.
func (p *Pipeline) Run(ctx context.Context, question string) *Result {
	state := &State{RunID: uuid.New(), Question: question}
	result := &Result{State: state}
	log := logging.WithField("run_id", state.RunID.String())
	start := time.Now()

	step := func(action Action, fn func() Envelope) bool {
		if p.starting != nil {
			p.starting(action)
		}

		env := fn()
		result.Envelopes = append(result.Envelopes, env)

		if p.progress != nil {
			p.progress(env)
		}

		entry := log.WithFields(map[string]any{
			"step":   env.Step,
			"action": string(env.Action),
			"status": string(env.Status),
		})

		if !env.OK() {
			entry.Warn(env.Message)
			return false
		}

		entry.Debugf("Step %d/%d: %s", env.Step, len(Actions), env.Message)

		return true
	}

	log.WithField("question", question).Info("Pipeline started")

	ok := step(ActionDiscoverDatabases, func() Envelope {
		env := p.steps.DiscoverDatabases(ctx)
		state.AvailableDatabases = env.Databases

		return env
	}) && step(ActionSelectDatabase, func() Envelope {
		env := p.steps.SelectDatabase(ctx, question, state.AvailableDatabases)
		state.SelectedDatabase = env.SelectedDatabase

		return env
	}) && step(ActionDiscoverTables, func() Envelope {
		env := p.steps.DiscoverTables(ctx, state.SelectedDatabase)
		state.AvailableTables = env.Tables

		return env
	}) && step(ActionSelectTable, func() Envelope {
		env := p.steps.SelectTable(ctx, question, state.SelectedDatabase, state.AvailableTables)
		state.SelectedTable = env.SelectedTable

		return env
	}) && step(ActionAnalyzeSchema, func() Envelope {
		env := p.steps.AnalyzeSchema(ctx, state.SelectedDatabase, state.SelectedTable)
		state.Schema = env.Schema

		return env
	}) && step(ActionGetSample, func() Envelope {
		env := p.steps.GetSample(ctx, state.SelectedDatabase, state.SelectedTable)
		state.Sample = env.SampleData

		return env
	}) && step(ActionGenerateSQL, func() Envelope {
		env := p.steps.GenerateSQL(ctx, question, state.SelectedDatabase, state.SelectedTable, state.Schema, state.Sample)
		state.SQLQuery = env.SQLQuery

		return env
	}) && step(ActionExecuteQuery, func() Envelope {
		env := p.steps.ExecuteQuery(ctx, ExecuteRequest{
			Database: state.SelectedDatabase,
			SQL:      state.SQLQuery,
			Question: question,
			Table:    state.SelectedTable,
			Schema:   state.Schema,
			Sample:   state.Sample,
		})
		state.CorrectedSQL = env.CorrectedSQL
		state.Results = env.Results

		return env
	}) && step(ActionFormatResponse, func() Envelope {
		env := p.steps.FormatResponse(ctx, question, state.ExecutedSQL(), state.Results)
		state.NaturalResponse = env.NaturalResponse

		return env
	})

	log.WithFields(map[string]any{
		"ok":       ok,
		"steps":    len(result.Envelopes),
		"duration": time.Since(start),
	}).Info("Pipeline finished")

	return result
}

// ExecutedSQL is the statement whose results were returned
func (s *State) ExecutedSQL() string {
	if s.CorrectedSQL != "" {
		return s.CorrectedSQL
	}

	return s.SQLQuery
}
