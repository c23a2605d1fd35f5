package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// DefaultMaxRows caps results when the caller passes no limit
const DefaultMaxRows = 100

// Executor runs guarded, read-only statements in a fresh session per call
type Executor struct {
	connector *store.Connector
	maxRows   int
}

// NewExecutor creates an executor; maxRows <= 0 selects DefaultMaxRows
func NewExecutor(connector *store.Connector, maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	return &Executor{connector: connector, maxRows: maxRows}
}

// Execute checks sqlText against the safety gate, runs it on database and
// returns at most maxRows rows (the executor default when maxRows <= 0).
func (e *Executor) Execute(ctx context.Context, database, sqlText string, maxRows int) (*types.ResultSet, error) {
	if err := CheckStatement(sqlText); err != nil {
		logging.WithFields(map[string]any{
			"database": database,
			"sql":      sqlText,
		}).Warn("Rejected statement")

		return nil, err
	}

	if maxRows <= 0 {
		maxRows = e.maxRows
	}

	start := time.Now()
	result := &types.ResultSet{}

	err := e.connector.WithSession(ctx, database, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, sqlText)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeExecution, "query failed on %s", database)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return errors.Wrap(err, errors.ErrTypeExecution, "failed to read result columns")
		}

		if len(columns) == 0 {
			return nil
		}

		result.Columns = columns

		for len(result.Values) < maxRows && rows.Next() {
			values, err := scanRow(rows, len(columns))
			if err != nil {
				return errors.Wrap(err, errors.ErrTypeExecution, "failed to scan row")
			}

			result.Values = append(result.Values, values)
		}

		if err := rows.Err(); err != nil {
			return errors.Wrapf(err, errors.ErrTypeExecution, "query failed on %s", database)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithFields(map[string]any{
		"database": database,
		"rows":     result.Len(),
		"duration": time.Since(start),
	}).Debug("Query executed")

	return result, nil
}

// Sample returns up to limit rows of table as records, regardless of arity
func (e *Executor) Sample(ctx context.Context, database, table string, limit int) ([]types.Record, error) {
	if limit <= 0 {
		limit = 3
	}

	stmt := SelectAll(e.connector.Dialect(), table, limit)

	result, err := e.Execute(ctx, database, stmt, limit)
	if err != nil {
		return nil, err
	}

	return result.Records(), nil
}

// Dialect exposes the dialect used to quote identifiers
func (e *Executor) Dialect() store.Dialect {
	return e.connector.Dialect()
}

func scanRow(rows *sql.Rows, numCols int) ([]any, error) {
	values := make([]any, numCols)
	ptrs := make([]any, numCols)

	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	for i, v := range values {
		values[i] = types.NormalizeValue(v)
	}

	return values, nil
}
