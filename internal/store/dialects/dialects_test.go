package dialects

import (
	"context"
	"database/sql"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/store"
	"github.com/kyleking/askdb/internal/types"
)

func TestRegisteredDialects(t *testing.T) {
	for _, name := range []string{"postgres", "postgresql", "mysql", "mariadb", "sqlite", "sqlite3", "duckdb", "snowflake"} {
		t.Run(name, func(t *testing.T) {
			d, err := store.Lookup(name)
			require.NoError(t, err)
			assert.NotEmpty(t, d.DriverName())
		})
	}

	_, err := store.Lookup("oracle")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestPostgresDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		User:     "analyst",
		Password: "p@ss word",
		SSLMode:  "require",
		Params:   map[string]string{"application_name": "askdb"},
	}

	dsn, err := postgresDialect{}.DSN(cfg, "main_db")
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/main_db", u.Path)
	assert.Equal(t, "analyst", u.User.Username())

	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "askdb", u.Query().Get("application_name"))

	dsn, err = postgresDialect{}.DSN(cfg, "")
	require.NoError(t, err)
	assert.Contains(t, dsn, "/postgres?")
}

func TestMySQLDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "localhost", User: "root", Password: "pw"}

	dsn, err := mysqlDialect{}.DSN(cfg, "shop")
	require.NoError(t, err)
	assert.Contains(t, dsn, "root:pw@tcp(localhost:3306)/shop")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestFileDialectDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Path: "/data/app.db"}

	dsn, err := sqliteDialect{}.DSN(cfg, "main")
	require.NoError(t, err)
	assert.Equal(t, "file:/data/app.db?mode=ro", dsn)

	dsn, err = duckdbDialect{}.DSN(config.DatabaseConfig{Path: "/data/warehouse.duckdb"}, "")
	require.NoError(t, err)
	assert.Equal(t, "/data/warehouse.duckdb?access_mode=read_only", dsn)

	assert.Equal(t, "warehouse", duckdbDialect{}.DefaultDatabase(config.DatabaseConfig{Path: "/data/warehouse.duckdb"}))

	_, err = sqliteDialect{}.DSN(config.DatabaseConfig{}, "main")
	assert.Error(t, err)
}

func TestSnowflakeDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Account:   "acme-xy12345",
		User:      "analyst",
		Password:  "secret",
		Warehouse: "COMPUTE_WH",
	}

	dsn, err := snowflakeDialect{}.DSN(cfg, "SALES")
	require.NoError(t, err)
	assert.Contains(t, dsn, "database=SALES")
	assert.Contains(t, dsn, "schema=PUBLIC")
	assert.Contains(t, dsn, "warehouse=COMPUTE_WH")
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, postgresDialect{}.QuoteIdent("users"))
	assert.Equal(t, `"odd""name"`, sqliteDialect{}.QuoteIdent(`odd"name`))
	assert.Equal(t, "`order`", mysqlDialect{}.QuoteIdent("order"))
}

func seedSQLite(t *testing.T, statements ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	defer db.Close()

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return path
}

// upperTypes folds declared types to upper case; SQLite reports them in the
// case the engine normalizes to, not necessarily as written.
func upperTypes(schema types.Schema) types.Schema {
	out := make(types.Schema, len(schema))
	for i, col := range schema {
		col.DeclaredType = strings.ToUpper(col.DeclaredType)
		out[i] = col
	}

	return out
}

func TestSQLiteCatalog(t *testing.T) {
	path := seedSQLite(t,
		`CREATE TABLE users (id int not null, name text NULL DEFAULT NULL)`,
		`CREATE TABLE orders (id integer primary key, total real default 0)`,
	)

	connector, err := store.NewConnector(config.DatabaseConfig{Driver: "sqlite", Path: path, ConnectTimeout: "5s"})
	require.NoError(t, err)

	d := connector.Dialect()
	ctx := context.Background()

	err = connector.WithSession(ctx, "main", func(ctx context.Context, conn *sql.Conn) error {
		databases, err := d.ListDatabases(ctx, conn)
		require.NoError(t, err)
		assert.Equal(t, []string{"main"}, databases)

		tables, err := d.ListTables(ctx, conn, "main")
		require.NoError(t, err)
		assert.Equal(t, []string{"orders", "users"}, tables)

		schema, err := d.DescribeTable(ctx, conn, "main", "users")
		require.NoError(t, err)
		assert.Equal(t, types.Schema{
			{Name: "id", DeclaredType: "INT", Nullable: false},
			{Name: "name", DeclaredType: "TEXT", Nullable: true},
		}, upperTypes(schema))
		assert.Nil(t, schema[1].Default)

		orders, err := d.DescribeTable(ctx, conn, "main", "orders")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		require.NotNil(t, orders[1].Default)
		assert.Equal(t, "0", *orders[1].Default)

		missing, err := d.DescribeTable(ctx, conn, "main", "nope")
		require.NoError(t, err)
		assert.Empty(t, missing)

		return nil
	})
	require.NoError(t, err)
}

func TestSQLiteSessionIsReadOnly(t *testing.T) {
	path := seedSQLite(t, `CREATE TABLE users (id int)`)

	connector, err := store.NewConnector(config.DatabaseConfig{Driver: "sqlite", Path: path, ConnectTimeout: "5s"})
	require.NoError(t, err)

	err = connector.WithSession(context.Background(), "main", func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `INSERT INTO users VALUES (1)`)
		return err
	})
	assert.Error(t, err)
}
