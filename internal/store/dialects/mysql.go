package dialects

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

// mysqlDialect treats every non-system schema of a MySQL server as a database
type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DefaultDatabase(config.DatabaseConfig) string { return "mysql" }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) DSN(cfg config.DatabaseConfig, database string) (string, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = database
	mc.ParseTime = true

	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}

	if mc.User == "" {
		return "", fmt.Errorf("mysql needs a user")
	}

	return mc.FormatDSN(), nil
}

func (mysqlDialect) SessionInit(string) []string {
	return []string{"SET SESSION TRANSACTION READ ONLY"}
}

func (mysqlDialect) ListDatabases(ctx context.Context, q store.Querier) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY schema_name`)
}

func (mysqlDialect) ListTables(ctx context.Context, q store.Querier, _ string) ([]string, error) {
	return store.QueryStrings(ctx, q, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

func (mysqlDialect) DescribeTable(ctx context.Context, q store.Querier, _, table string) (types.Schema, error) {
	return store.QueryColumns(ctx, q, `
		SELECT column_name, column_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		ORDER BY ordinal_position`, table)
}

func init() {
	store.Register("mysql", mysqlDialect{})
}
