package pipeline

import (
	"fmt"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/types"
)

// Status is the machine-checkable outcome of a step
type Status string

const (
	StatusSuccess           Status = "success"
	StatusSuccessAfterRetry Status = "success_after_retry"
	StatusError             Status = "error"
)

// Action names a step
type Action string

const (
	ActionDiscoverDatabases Action = "discover_databases"
	ActionSelectDatabase    Action = "select_database"
	ActionDiscoverTables    Action = "discover_tables"
	ActionSelectTable       Action = "select_table"
	ActionAnalyzeSchema     Action = "analyze_schema"
	ActionGetSample         Action = "get_sample"
	ActionGenerateSQL       Action = "generate_sql"
	ActionExecuteQuery      Action = "execute_query"
	ActionFormatResponse    Action = "format_response"
)

// Actions lists the steps in execution order
var Actions = []Action{
	ActionDiscoverDatabases,
	ActionSelectDatabase,
	ActionDiscoverTables,
	ActionSelectTable,
	ActionAnalyzeSchema,
	ActionGetSample,
	ActionGenerateSQL,
	ActionExecuteQuery,
	ActionFormatResponse,
}

// Number returns the 1-based position of the action, or 0 if unknown
func (a Action) Number() int {
	for i, action := range Actions {
		if action == a {
			return i + 1
		}
	}

	return 0
}

var failureLabels = map[Action]string{
	ActionDiscoverDatabases: "database discovery",
	ActionSelectDatabase:    "database selection",
	ActionDiscoverTables:    "table discovery",
	ActionSelectTable:       "table selection",
	ActionAnalyzeSchema:     "schema analysis",
	ActionGetSample:         "sample retrieval",
	ActionGenerateSQL:       "SQL generation",
	ActionExecuteQuery:      "execution",
	ActionFormatResponse:    "formatting",
}

// Envelope is the uniform result of a step. Payload fields are set by the
// step that owns them and omitted otherwise.
type Envelope struct {
	Step   int    `json:"step"`
	Action Action `json:"action"`
	Status Status `json:"status"`

	UserQuestion       string           `json:"user_question,omitempty"`
	Database           string           `json:"database,omitempty"`
	Databases          []string         `json:"databases,omitempty"`
	SelectedDatabase   string           `json:"selected_database,omitempty"`
	AvailableDatabases []string         `json:"available_databases,omitempty"`
	Table              string           `json:"table,omitempty"`
	Tables             []string         `json:"tables,omitempty"`
	SelectedTable      string           `json:"selected_table,omitempty"`
	AvailableTables    []string         `json:"available_tables,omitempty"`
	Schema             types.Schema     `json:"schema,omitempty"`
	SampleData         []types.Record   `json:"sample_data,omitempty"`
	SQLQuery           string           `json:"sql_query,omitempty"`
	OriginalSQL        string           `json:"original_sql,omitempty"`
	CorrectedSQL       string           `json:"corrected_sql,omitempty"`
	Results            *types.ResultSet `json:"results,omitempty"`
	NaturalResponse    string           `json:"natural_response,omitempty"`
	// Count is the size of the step's main payload: databases, tables,
	// columns, sample rows or result rows.
	Count int `json:"count"`

	Error     string           `json:"error,omitempty"`
	ErrorType errors.ErrorType `json:"error_type,omitempty"`
	Message   string           `json:"message"`
}

// OK reports whether the step succeeded, with or without a retry
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess || e.Status == StatusSuccessAfterRetry
}

func newEnvelope(action Action) Envelope {
	return Envelope{Step: action.Number(), Action: action, Status: StatusSuccess}
}

// failed turns err into an error envelope, keeping the payload gathered so far
func failed(env Envelope, err error) Envelope {
	env.Status = StatusError
	env.Error = errors.DetailOf(err)
	env.ErrorType = errors.GetType(err)
	env.Message = fmt.Sprintf("Error during %s: %s", failureLabels[env.Action], env.Error)

	return env
}
