package dialects

import (
	"context"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// snowflakeDialect reads the PUBLIC schema of Snowflake databases. Snowflake
// has no read-only session mode; the safety gate is the only guard.
type snowflakeDialect struct{}

func (snowflakeDialect) Name() string       { return "snowflake" }
func (snowflakeDialect) DriverName() string { return "snowflake" }

func (snowflakeDialect) DefaultDatabase(config.DatabaseConfig) string { return "SNOWFLAKE" }

func (snowflakeDialect) QuoteIdent(name string) string { return store.QuoteDouble(name) }

func (snowflakeDialect) DSN(cfg config.DatabaseConfig, database string) (string, error) {
	if database == "" {
		database = cfg.DefaultDatabase
	}

	sc := &sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  database,
		Schema:    "PUBLIC",
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	}

	if len(cfg.Params) > 0 {
		sc.Params = make(map[string]*string, len(cfg.Params))
		for k, v := range cfg.Params {
			value := v
			sc.Params[k] = &value
		}
	}

	return sf.DSN(sc)
}

func (snowflakeDialect) SessionInit(string) []string { return nil }

func (snowflakeDialect) ListDatabases(ctx context.Context, q store.Querier) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT database_name
		FROM information_schema.databases
		ORDER BY database_name`)
}

func (snowflakeDialect) ListTables(ctx context.Context, q store.Querier, _ string) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'PUBLIC'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

func (snowflakeDialect) DescribeTable(ctx context.Context, q store.Querier, _, table string) (types.Schema, error) {
	return store.QueryColumns(ctx, q, `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = 'PUBLIC'
		  AND table_name = ?
		ORDER BY ordinal_position`, table)
}

func init() {
	store.Register("snowflake", snowflakeDialect{})
}
