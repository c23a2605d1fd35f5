// Package store opens short-lived, read-only sessions against the configured
// relational database and hosts the per-dialect catalog queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
	"github.com/kyleking/askdb/internal/types"
)

// Querier is the subset of *sql.Conn, *sql.DB and *sql.Tx used for reads
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect captures everything that differs between database engines:
// connection strings, identifier quoting, session setup and catalog queries.
type Dialect interface {
	// Name is the canonical driver key, e.g. "postgres"
	Name() string
	// DriverName is the database/sql driver to open
	DriverName() string
	// DSN builds the connection string scoped to database ("" for the default)
	DSN(cfg config.DatabaseConfig, database string) (string, error)
	// DefaultDatabase is used when none is configured or discovered
	DefaultDatabase(cfg config.DatabaseConfig) string
	QuoteIdent(name string) string
	// SessionInit returns statements run on every new session
	SessionInit(database string) []string

	ListDatabases(ctx context.Context, q Querier) ([]string, error)
	ListTables(ctx context.Context, q Querier, database string) ([]string, error)
	DescribeTable(ctx context.Context, q Querier, database, table string) (types.Schema, error)
}

var (
	dialects   = map[string]Dialect{}
	dialectsMu sync.RWMutex
)

// Register makes a Dialect available under name
func Register(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()

	dialects[strings.ToLower(name)] = d
}

// Lookup returns the dialect registered for driver
func Lookup(driver string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()

	d, ok := dialects[config.NormalizeDriver(driver)]
	if !ok {
		return nil, errors.NewConfigError(
			fmt.Sprintf("dialect not registered: %q (available: %v)", driver, registeredLocked()),
			"database.driver",
		)
	}

	return d, nil
}

// Registered returns the registered dialect keys, sorted
func Registered() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()

	return registeredLocked()
}

func registeredLocked() []string {
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Opener opens a *sql.DB; tests swap it to observe or fake connections
type Opener func(driverName, dsn string) (*sql.DB, error)

// Connector opens one session per call. Nothing is pooled across calls.
type Connector struct {
	cfg            config.DatabaseConfig
	dialect        Dialect
	open           Opener
	connectTimeout time.Duration
}

// Option configures a Connector
type Option func(*Connector)

// WithOpener replaces sql.Open
func WithOpener(open Opener) Option {
	return func(c *Connector) {
		c.open = open
	}
}

// WithDialect bypasses the registry
func WithDialect(d Dialect) Option {
	return func(c *Connector) {
		c.dialect = d
	}
}

// NewConnector creates a connector for the configured driver
func NewConnector(cfg config.DatabaseConfig, opts ...Option) (*Connector, error) {
	c := &Connector{
		cfg:            cfg,
		open:           sql.Open,
		connectTimeout: config.Duration(cfg.ConnectTimeout, 10*time.Second),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dialect == nil {
		d, err := Lookup(cfg.Driver)
		if err != nil {
			return nil, err
		}

		c.dialect = d
	}

	return c, nil
}

// Dialect returns the active dialect
func (c *Connector) Dialect() Dialect {
	return c.dialect
}

// DefaultDatabase returns the configured default database, or the dialect's
func (c *Connector) DefaultDatabase() string {
	if c.cfg.DefaultDatabase != "" {
		return c.cfg.DefaultDatabase
	}

	return c.dialect.DefaultDatabase(c.cfg)
}

// WithSession opens a single read-only connection scoped to database, runs
// fn on it and closes it on every exit path. Failures to establish the
// session are connectivity errors; errors from fn are returned untouched.
func (c *Connector) WithSession(ctx context.Context, database string, fn func(ctx context.Context, conn *sql.Conn) error) error {
	dsn, err := c.dialect.DSN(c.cfg, database)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "failed to build connection string")
	}

	db, err := c.open(c.dialect.DriverName(), dsn)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeConnectivity, "failed to open %s database %q", c.dialect.Name(), database)
	}

	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.WithError(cerr).Debug("closing database handle")
		}
	}()

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	connectCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, err := db.Conn(connectCtx)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeConnectivity, "failed to connect to %s database %q", c.dialect.Name(), database)
	}

	defer func() { _ = conn.Close() }()

	for _, stmt := range c.dialect.SessionInit(database) {
		if _, err := conn.ExecContext(connectCtx, stmt); err != nil {
			return errors.Wrapf(err, errors.ErrTypeConnectivity, "failed to initialize session on %q", database)
		}
	}

	return fn(ctx, conn)
}

// Ping checks that the default database accepts connections
func (c *Connector) Ping(ctx context.Context) error {
	return c.WithSession(ctx, c.DefaultDatabase(), func(ctx context.Context, conn *sql.Conn) error {
		if err := conn.PingContext(ctx); err != nil {
			return errors.Wrap(err, errors.ErrTypeConnectivity, "ping failed")
		}

		return nil
	})
}
