package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/store"
	// sqlite and the other dialects register themselves
	_ "github.com/kyleking/askdb/internal/store/dialects"
)

// UsersFixture is a small customer table with cities, used by scenario tests
var UsersFixture = []string{
	`CREATE TABLE users (id integer not null, name text, city text, age integer)`,
	`CREATE TABLE orders (id integer not null, user_id integer, total real default 0)`,
	`INSERT INTO users VALUES
		(1, 'Ada', 'Lyon', 36),
		(2, 'Linus', 'Paris', 54),
		(3, 'Grace', 'Lyon', 45),
		(4, 'Ken', 'Nice', 81)`,
	`INSERT INTO orders VALUES (1, 1, 12.5), (2, 3, 40), (3, 3, 7.25)`,
}

// SeedSQLite creates a SQLite file in a temp dir and runs statements on it
func SeedSQLite(t *testing.T, statements ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "main_db.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	defer db.Close()

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return path
}

// DatabaseConfig returns a read-only SQLite configuration for path
func DatabaseConfig(path string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:         "sqlite",
		Path:           path,
		MaxRows:        100,
		SampleSize:     3,
		ConnectTimeout: ShortTestTimeout.String(),
	}
}

// OpenCounter wraps sql.Open and counts the handles it opens
type OpenCounter struct {
	Opened int
}

// Open satisfies store.Opener
func (c *OpenCounter) Open(driverName, dsn string) (*sql.DB, error) {
	c.Opened++
	return sql.Open(driverName, dsn)
}

// NewConnector builds a SQLite connector for path
func NewConnector(t *testing.T, path string, opts ...store.Option) *store.Connector {
	t.Helper()

	connector, err := store.NewConnector(DatabaseConfig(path), opts...)
	require.NoError(t, err)

	return connector
}

// MissingDatabasePath returns a path whose parent directory does not exist
func MissingDatabasePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), fmt.Sprintf("absent-%s", t.Name()), "db.sqlite")
}
