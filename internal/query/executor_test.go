package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/store"
	_ "github.com/kyleking/askdb/internal/store/dialects"
	"github.com/kyleking/askdb/internal/types"
)

type countingOpener struct {
	opened atomic.Int32
}

func (c *countingOpener) open(driver, dsn string) (*sql.DB, error) {
	c.opened.Add(1)
	return sql.Open(driver, dsn)
}

func newTestExecutor(t *testing.T, statements ...string) (*Executor, *countingOpener) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "main_db.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	require.NoError(t, db.Close())

	opener := &countingOpener{}
	connector, err := store.NewConnector(
		config.DatabaseConfig{Driver: "sqlite", Path: path, ConnectTimeout: "5s"},
		store.WithOpener(opener.open),
	)
	require.NoError(t, err)

	return NewExecutor(connector, 0), opener
}

func TestExecuteRejectsWritesBeforeConnecting(t *testing.T) {
	executor, opener := newTestExecutor(t, `CREATE TABLE users (id int)`)

	result, err := executor.Execute(context.Background(), "main_db", "DROP TABLE users;", 0)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Equal(t, int32(0), opener.opened.Load())
}

func TestExecuteRecordsAndScalars(t *testing.T) {
	executor, opener := newTestExecutor(t,
		`CREATE TABLE users (id integer, name text, city text)`,
		`INSERT INTO users VALUES (1, 'Ada', 'Lyon'), (2, 'Linus', 'Paris'), (3, 'Grace', 'Lyon')`,
	)
	ctx := context.Background()

	result, err := executor.Execute(ctx, "main", "SELECT name, city FROM users WHERE city = 'Lyon' ORDER BY id", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, result.Columns)

	rows := result.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, types.RowRecord, rows[0].Kind)
	assert.Equal(t, types.Record{{Name: "name", Value: "Ada"}, {Name: "city", Value: "Lyon"}}, rows[0].Record)

	count, err := executor.Execute(ctx, "main", "SELECT COUNT(*) AS total FROM users", 0)
	require.NoError(t, err)

	rows = count.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, types.RowScalar, rows[0].Kind)
	assert.EqualValues(t, 3, rows[0].Scalar)

	assert.Equal(t, int32(2), opener.opened.Load(), "one session per call")
}

func TestExecuteSingleColumnKeepsColumnName(t *testing.T) {
	executor, _ := newTestExecutor(t,
		`CREATE TABLE users (id integer, name text, city text)`,
		`INSERT INTO users VALUES (1, 'Ada', 'Lyon'), (2, 'Linus', 'Paris'), (3, 'Grace', 'Lyon')`,
	)

	result, err := executor.Execute(context.Background(), "main", "SELECT name FROM users WHERE city = 'Lyon' ORDER BY id", 0)
	require.NoError(t, err)
	assert.False(t, result.IsScalar())

	rows := result.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, types.RowRecord, rows[1].Kind)
	assert.Equal(t, types.Record{{Name: "name", Value: "Grace"}}, rows[1].Record)
}

func TestExecuteCapsRows(t *testing.T) {
	statements := []string{`CREATE TABLE n (v integer)`}
	for i := 0; i < 150; i++ {
		statements = append(statements, fmt.Sprintf(`INSERT INTO n VALUES (%d)`, i))
	}

	executor, _ := newTestExecutor(t, statements...)
	ctx := context.Background()

	result, err := executor.Execute(ctx, "main", "SELECT v FROM n", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRows, result.Len())

	result, err = executor.Execute(ctx, "main", "SELECT v FROM n", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Len())
}

func TestExecuteEmptyResult(t *testing.T) {
	executor, _ := newTestExecutor(t, `CREATE TABLE users (id integer)`)

	result, err := executor.Execute(context.Background(), "main", "SELECT id FROM users", 0)
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, result.Rows())
}

func TestExecuteDatabaseErrorIsExecutionError(t *testing.T) {
	executor, _ := newTestExecutor(t, `CREATE TABLE users (id integer)`)

	_, err := executor.Execute(context.Background(), "main", "SELECT nme FROM users", 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeExecution))
	assert.Contains(t, errors.DetailOf(err), "nme")
}

func TestExecuteMissingFileIsConnectivityError(t *testing.T) {
	connector, err := store.NewConnector(config.DatabaseConfig{
		Driver:         "sqlite",
		Path:           filepath.Join(t.TempDir(), "missing", "nothing.db"),
		ConnectTimeout: "5s",
	})
	require.NoError(t, err)

	_, err = NewExecutor(connector, 0).Execute(context.Background(), "main", "SELECT 1", 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnectivity))
}

func TestSample(t *testing.T) {
	executor, _ := newTestExecutor(t,
		`CREATE TABLE tags (label text)`,
		`INSERT INTO tags VALUES ('a'), ('b'), ('c'), ('d')`,
	)

	sample, err := executor.Sample(context.Background(), "main", "tags", 3)
	require.NoError(t, err)
	require.Len(t, sample, 3)
	assert.Equal(t, types.Record{{Name: "label", Value: "a"}}, sample[0])
}
