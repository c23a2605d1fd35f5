// Package catalog answers what databases, tables and columns exist. Every
// call opens its own session; nothing is cached between calls.
package catalog

import (
	"context"
	"database/sql"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/query"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// DefaultSampleSize is the number of rows shown to the model per table
const DefaultSampleSize = 3

// Introspector reads the catalog of the configured store
type Introspector struct {
	connector  *store.Connector
	executor   *query.Executor
	sampleSize int
}

// New creates an introspector; sampleSize <= 0 selects DefaultSampleSize
func New(connector *store.Connector, executor *query.Executor, sampleSize int) *Introspector {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	return &Introspector{
		connector:  connector,
		executor:   executor,
		sampleSize: sampleSize,
	}
}

// DefaultDatabase is the database used for server-wide catalog queries and
// as the fallback when discovery fails.
func (i *Introspector) DefaultDatabase() string {
	return i.connector.DefaultDatabase()
}

// SampleSize returns the configured sample row count
func (i *Introspector) SampleSize() int {
	return i.sampleSize
}

// ListDatabases returns the user-visible databases ordered by name
func (i *Introspector) ListDatabases(ctx context.Context) ([]string, error) {
	var databases []string

	err := i.connector.WithSession(ctx, i.DefaultDatabase(), func(ctx context.Context, conn *sql.Conn) error {
		var err error

		databases, err = i.connector.Dialect().ListDatabases(ctx, conn)
		if err != nil {
			return errors.Wrap(err, errors.ErrTypeExecution, "failed to list databases")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithField("count", len(databases)).Debug("Databases listed")

	return databases, nil
}

// ListTables returns the base tables of database's application schema
func (i *Introspector) ListTables(ctx context.Context, database string) ([]string, error) {
	var tables []string

	err := i.connector.WithSession(ctx, database, func(ctx context.Context, conn *sql.Conn) error {
		var err error

		tables, err = i.connector.Dialect().ListTables(ctx, conn, database)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeExecution, "failed to list tables in %s", database)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithFields(map[string]any{"database": database, "count": len(tables)}).Debug("Tables listed")

	return tables, nil
}

// DescribeTable returns the columns of table in ordinal order. An unknown
// table yields an empty schema, not an error.
func (i *Introspector) DescribeTable(ctx context.Context, database, table string) (types.Schema, error) {
	var schema types.Schema

	err := i.connector.WithSession(ctx, database, func(ctx context.Context, conn *sql.Conn) error {
		var err error

		schema, err = i.connector.Dialect().DescribeTable(ctx, conn, database, table)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeExecution, "failed to describe %s.%s", database, table)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return schema, nil
}

// Sample returns up to limit rows of table; limit <= 0 uses the configured
// sample size.
func (i *Introspector) Sample(ctx context.Context, database, table string, limit int) ([]types.Record, error) {
	if limit <= 0 {
		limit = i.sampleSize
	}

	return i.executor.Sample(ctx, database, table, limit)
}
