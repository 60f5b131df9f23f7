package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is a unit of work bound to one connection. It is not safe for
// concurrent use.
type Session struct {
	conn         *sql.Conn
	q            queryer
	inTx         bool
	now          func() time.Time
	queryTimeout time.Duration
}

// Close releases the connection back to the pool.
func (s *Session) Close() error {
	if s.inTx {
		return nil
	}
	return s.conn.Close()
}

// Tx runs fn atomically. fn's session shares this session's connection;
// nested calls join the outer transaction.
func (s *Session) Tx(ctx context.Context, fn func(*Session) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errdef.Wrap(errdef.KindStorage, err, "begin transaction")
	}
	inner := &Session{conn: s.conn, q: tx, inTx: true, now: s.now, queryTimeout: s.queryTimeout}

	if err := fn(inner); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errdef.Wrap(errdef.KindStorage, err, "commit transaction")
	}
	return nil
}

func (s *Session) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Session) timestamp() time.Time {
	return s.now().UTC()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errdef.Wrap(errdef.KindStorage, err, "parse stored timestamp")
	}
	return t.UTC(), nil
}

func storageErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var classified *errdef.Error
	if errors.As(err, &classified) {
		return err
	}
	return errdef.Wrap(errdef.KindStorage, err, op)
}

func notFound(entity, id string) error {
	return errdef.New(errdef.KindNotFound, "%s %s not found", entity, id)
}

// authorize fails with an AuthorizationError unless owner owns the entity.
func authorize(entity, id, owner, actual string) error {
	if owner == "" || owner != actual {
		return errdef.New(errdef.KindAuthorization, "%s %s is not owned by the caller", entity, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
