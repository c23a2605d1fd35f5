package dialects

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// sqliteDialect reads a single SQLite file opened read-only. The file is
// exposed as the "main" database; other names map to the same file.
type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) DefaultDatabase(config.DatabaseConfig) string { return "main" }

func (sqliteDialect) QuoteIdent(name string) string { return store.QuoteDouble(name) }

func (sqliteDialect) DSN(cfg config.DatabaseConfig, _ string) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("sqlite needs a file path")
	}

	query := url.Values{}
	query.Set("mode", "ro")

	for k, v := range cfg.Params {
		query.Set(k, v)
	}

	return "file:" + cfg.Path + "?" + query.Encode(), nil
}

func (sqliteDialect) SessionInit(string) []string {
	return []string{"PRAGMA query_only = 1"}
}

func (sqliteDialect) ListDatabases(ctx context.Context, q store.Querier) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT name
		FROM pragma_database_list
		WHERE name <> 'temp'
		ORDER BY name`)
}

func (sqliteDialect) ListTables(ctx context.Context, q store.Querier, _ string) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
}

func (sqliteDialect) DescribeTable(ctx context.Context, q store.Querier, _, table string) (types.Schema, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, type, "notnull", dflt_value
		FROM pragma_table_info(?)
		ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schema := types.Schema{}

	for rows.Next() {
		var (
			name, ctype string
			notnull     int
			dflt        sql.NullString
		)

		if err := rows.Scan(&name, &ctype, &notnull, &dflt); err != nil {
			return nil, fmt.Errorf("scan column for %s: %w", table, err)
		}

		col := types.Column{
			Name:         name,
			DeclaredType: ctype,
			Nullable:     notnull == 0,
		}

		// An explicit DEFAULT NULL is the same as no default
		if dflt.Valid && !strings.EqualFold(dflt.String, "NULL") {
			col.Default = types.StringPtr(dflt.String)
		}

		schema = append(schema, col)
	}

	return schema, rows.Err()
}

func init() {
	store.Register("sqlite", sqliteDialect{})
	store.Register("sqlite3", sqliteDialect{})
}
