// Package db persists postbox collections, requests, environments and
// execution attempts in SQLite. Every operation is scoped to an owner and
// runs on an explicit Session.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultQueryTimeout bounds a single statement when the caller's context has no deadline.
const DefaultQueryTimeout = 30 * time.Second

// Client owns the connection pool.
type Client struct {
	db           *sql.DB
	driverName   string
	dataSource   string
	queryTimeout time.Duration
	now          func() time.Time
}

type Option func(*Client)

// WithClock overrides the clock used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient opens the database named by connectionString and migrates the schema.
func NewClient(connectionString string, opts ...Option) (*Client, error) {
	driver, dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, withPragmas(dsn))
	if err != nil {
		return nil, errdef.Wrap(errdef.KindStorage, err, "failed to open database")
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.KindStorage, err, "failed to connect to database")
	}

	c := &Client{
		db:           db,
		driverName:   driver,
		dataSource:   dsn,
		queryTimeout: DefaultQueryTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return c, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) DataSource() string {
	return c.dataSource
}

// Ping reports whether the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errdef.Wrap(errdef.KindStorage, err, "ping database")
	}
	return nil
}

// Session acquires a dedicated connection. The caller must Close it.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindStorage, err, "acquire session")
	}
	return &Session{conn: conn, q: conn, now: c.now, queryTimeout: c.queryTimeout}, nil
}

// WithSession runs fn on a fresh session and always releases it.
func (c *Client) WithSession(ctx context.Context, fn func(*Session) error) error {
	s, err := c.Session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (c *Client) migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return errdef.Wrap(errdef.KindStorage, err, "migrate schema")
	}
	return nil
}

// parseConnectionString parses a connection string into driver and DSN
// Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./test.db
func parseConnectionString(connStr string) (driver string, dsn string, err error) {
	connStr = strings.TrimSpace(connStr)

	// Handle sqlite:// and sqlite: prefixes
	if strings.HasPrefix(connStr, "sqlite://") {
		dsn = strings.TrimPrefix(connStr, "sqlite://")
	} else if strings.HasPrefix(connStr, "sqlite:") {
		dsn = strings.TrimPrefix(connStr, "sqlite:")
	} else {
		scheme, _, _ := strings.Cut(connStr, "://")
		return "", "", errdef.New(errdef.KindValidation, "unsupported database scheme: %s", scheme)
	}

	if dsn == "" {
		return "", "", errdef.New(errdef.KindValidation, "database path is required")
	}
	return "sqlite3", dsn, nil
}

// withPragmas enables foreign keys and WAL. Transactions take the write
// lock up front so concurrent writers wait on the busy timeout.
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", dsn, sep)
}
