package dialects

import (
	"context"
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// postgresDialect reads the public schema of a PostgreSQL server
type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) DefaultDatabase(config.DatabaseConfig) string { return "postgres" }

func (postgresDialect) QuoteIdent(name string) string { return store.QuoteDouble(name) }

func (postgresDialect) DSN(cfg config.DatabaseConfig, database string) (string, error) {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	if database == "" {
		database = "postgres"
		if cfg.DefaultDatabase != "" {
			database = cfg.DefaultDatabase
		}
	}

	query := url.Values{}
	query.Set("sslmode", cfg.SSLMode)

	for k, v := range cfg.Params {
		query.Set(k, v)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + database,
		RawQuery: query.Encode(),
	}

	return u.String(), nil
}

func (postgresDialect) SessionInit(string) []string {
	return []string{"SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"}
}

func (postgresDialect) ListDatabases(ctx context.Context, q store.Querier) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT datname
		FROM pg_database
		WHERE datistemplate = false
		ORDER BY datname`)
}

func (postgresDialect) ListTables(ctx context.Context, q store.Querier, _ string) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

func (postgresDialect) DescribeTable(ctx context.Context, q store.Querier, _, table string) (types.Schema, error) {
	return store.QueryColumns(ctx, q, `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = 'public'
		  AND table_name = $1
		ORDER BY ordinal_position`, table)
}

func init() {
	store.Register("postgres", postgresDialect{})
}
