package dialects

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// duckdbDialect opens a DuckDB file read-only; attached catalogs are the databases
type duckdbDialect struct{}

func (duckdbDialect) Name() string       { return "duckdb" }
func (duckdbDialect) DriverName() string { return "duckdb" }

// DefaultDatabase is the catalog DuckDB names after the file
func (duckdbDialect) DefaultDatabase(cfg config.DatabaseConfig) string {
	base := filepath.Base(cfg.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (duckdbDialect) QuoteIdent(name string) string { return store.QuoteDouble(name) }

func (duckdbDialect) DSN(cfg config.DatabaseConfig, _ string) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("duckdb needs a file path")
	}

	query := url.Values{}
	query.Set("access_mode", "read_only")

	for k, v := range cfg.Params {
		query.Set(k, v)
	}

	return cfg.Path + "?" + query.Encode(), nil
}

func (d duckdbDialect) SessionInit(database string) []string {
	if database == "" {
		return nil
	}

	return []string{"USE " + d.QuoteIdent(database)}
}

func (duckdbDialect) ListDatabases(ctx context.Context, q store.Querier) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT database_name
		FROM duckdb_databases()
		WHERE NOT internal
		ORDER BY database_name`)
}

func (duckdbDialect) ListTables(ctx context.Context, q store.Querier, database string) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = ?
		  AND table_schema = 'main'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`, database)
}

func (duckdbDialect) DescribeTable(ctx context.Context, q store.Querier, database, table string) (types.Schema, error) {
	return store.QueryColumns(ctx, q, `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_catalog = ?
		  AND table_schema = 'main'
		  AND table_name = ?
		ORDER BY ordinal_position`, database, table)
}

func init() {
	store.Register("duckdb", duckdbDialect{})
}
