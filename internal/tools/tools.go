// Package tools is the operation surface exposed to callers: catalog
// lookups that degrade instead of failing, guarded SQL execution and a
// connection report.
package tools

import (
	"context"
	"time"

	"github.com/kyleking/askdb/internal/catalog"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/query"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// Toolbox wraps the introspector and executor with the degradation policy:
// discovery failures are logged and replaced by a safe default.
type Toolbox struct {
	catalog        *catalog.Introspector
	executor       *query.Executor
	modelAvailable bool
	now            func() time.Time
}

// New creates a toolbox
func New(introspector *catalog.Introspector, executor *query.Executor, modelAvailable bool) *Toolbox {
	return &Toolbox{
		catalog:        introspector,
		executor:       executor,
		modelAvailable: modelAvailable,
		now:            time.Now,
	}
}

// Dialect returns the SQL dialect of the store
func (t *Toolbox) Dialect() store.Dialect {
	return t.executor.Dialect()
}

// DefaultDatabase is the database reported when discovery fails
func (t *Toolbox) DefaultDatabase() string {
	return t.catalog.DefaultDatabase()
}

// ModelAvailable reports whether a model was configured
func (t *Toolbox) ModelAvailable() bool {
	return t.modelAvailable
}

// ListDatabases never fails: on error it returns the default database alone
func (t *Toolbox) ListDatabases(ctx context.Context) []string {
	databases, err := t.catalog.ListDatabases(ctx)
	if err != nil {
		logging.WithError(err).Error("Database listing failed; using default database")
		return []string{t.DefaultDatabase()}
	}

	logging.WithField("databases", databases).Info("Databases found")

	return databases
}

// ListTables returns an empty list when the catalog cannot be read
func (t *Toolbox) ListTables(ctx context.Context, database string) []string {
	tables, err := t.catalog.ListTables(ctx, database)
	if err != nil {
		logging.WithError(err).WithField("database", database).Error("Table listing failed")
		return []string{}
	}

	logging.WithFields(map[string]any{"database": database, "tables": tables}).Info("Tables found")

	return tables
}

// DescribeTable returns an empty schema when the catalog cannot be read
func (t *Toolbox) DescribeTable(ctx context.Context, database, table string) types.Schema {
	schema, err := t.catalog.DescribeTable(ctx, database, table)
	if err != nil {
		logging.WithError(err).WithFields(map[string]any{"database": database, "table": table}).
			Error("Table description failed")

		return types.Schema{}
	}

	logging.WithFields(map[string]any{"table": table, "columns": len(schema)}).Info("Schema described")

	return schema
}

// SampleData returns no rows when sampling fails
func (t *Toolbox) SampleData(ctx context.Context, database, table string, limit int) []types.Record {
	sample, err := t.catalog.Sample(ctx, database, table, limit)
	if err != nil {
		logging.WithError(err).WithFields(map[string]any{"database": database, "table": table}).
			Error("Sampling failed")

		return []types.Record{}
	}

	return sample
}

// SampleSize is the row count used by SampleData when limit <= 0
func (t *Toolbox) SampleSize() int {
	return t.catalog.SampleSize()
}

// RunSQL executes a guarded statement. Errors are returned: validation,
// connectivity and execution failures each mean something different to
// the caller.
func (t *Toolbox) RunSQL(ctx context.Context, database, sqlText string) (*types.ResultSet, error) {
	logging.WithFields(map[string]any{"database": database, "sql": sqlText}).Info("Executing SQL")
	return t.executor.Execute(ctx, database, sqlText, 0)
}

// ConnectionReport summarizes store and model reachability
type ConnectionReport struct {
	Status            string    `json:"status"`
	Driver            string    `json:"driver"`
	DatabasesCount    int       `json:"databases_count"`
	Databases         []string  `json:"databases,omitempty"`
	LLMAvailable      bool      `json:"llm_available"`
	SampleDatabase    string    `json:"sample_database,omitempty"`
	SampleTablesCount int       `json:"sample_tables_count"`
	SampleTables      []string  `json:"sample_tables,omitempty"`
	Error             string    `json:"error,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Report statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

const reportTableLimit = 5

// DebugConnection lists databases without degradation and peeks at the
// first database's tables.
func (t *Toolbox) DebugConnection(ctx context.Context) ConnectionReport {
	report := ConnectionReport{
		Driver:       t.Dialect().Name(),
		LLMAvailable: t.modelAvailable,
		Timestamp:    t.now(),
	}

	databases, err := t.catalog.ListDatabases(ctx)
	if err != nil {
		report.Status = StatusError
		report.Error = err.Error()

		return report
	}

	report.Status = StatusOK
	report.Databases = databases
	report.DatabasesCount = len(databases)

	if len(databases) == 0 {
		return report
	}

	report.SampleDatabase = databases[0]

	tables, err := t.catalog.ListTables(ctx, databases[0])
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.SampleTablesCount = len(tables)
	if len(tables) > reportTableLimit {
		tables = tables[:reportTableLimit]
	}

	report.SampleTables = tables

	return report
}
