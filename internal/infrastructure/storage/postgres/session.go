package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"txkit/internal/core/tx"
)

// Compile-time check that Session implements tx.Session interface.
var _ tx.Session = (*Session)(nil)

// ErrSessionClosed is returned by operations on a released session.
var ErrSessionClosed = errors.New("session is closed")

// Querier is the query surface of a session. It matches pgxscan.Querier so
// scany can scan straight from a session.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// target is the statement surface shared by connections and pgx.Tx.
type target interface {
	Querier
	batcher
}

// conn is what both *pgxpool.Conn and *pgx.Conn offer.
type conn interface {
	target
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Session is one connection held for the life of a transaction, with the
// native pgx transaction when the transaction is read-write.
//
// Queries go through the native transaction when one is active and straight
// to the connection otherwise, which is how read-only transactions run.
type Session struct {
	conn    conn
	release func(ctx context.Context) error
	tx      pgx.Tx
	closed  bool
}

func newSession(c conn, release func(ctx context.Context) error) *Session {
	return &Session{conn: c, release: release}
}

// Begin starts a read-committed read-write transaction. A positive timeout is
// applied as the statement timeout of the transaction.
func (s *Session) Begin(ctx context.Context, timeout time.Duration) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx != nil {
		return errors.New("transaction already begun")
	}

	pgxTx, err := s.conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Protect against runaway statements inside the boundary
	if timeout > 0 {
		_, err = pgxTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", timeout.Milliseconds()))
		if err != nil {
			_ = pgxTx.Rollback(context.WithoutCancel(ctx))
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	s.tx = pgxTx
	return nil
}

// Commit commits the native transaction.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("commit without transaction")
	}
	pgxTx := s.tx
	s.tx = nil
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls the native transaction back. Rolling back a session whose
// connection is already gone is a no-op.
func (s *Session) Rollback(ctx context.Context) error {
	if s.closed || s.tx == nil {
		return nil
	}
	pgxTx := s.tx
	s.tx = nil
	if err := pgxTx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// Close rolls back an unfinished transaction and releases the connection.
// Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	rbErr := s.Rollback(ctx)
	s.closed = true
	if err := s.release(ctx); err != nil {
		return errors.Join(rbErr, fmt.Errorf("release connection: %w", err))
	}
	return rbErr
}

// IsOpen reports whether the session still holds its connection.
func (s *Session) IsOpen() bool { return !s.closed }

// InTransaction reports whether a native transaction is active.
func (s *Session) InTransaction() bool { return s.tx != nil }

func (s *Session) querier() (target, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.conn, nil
}

// Exec executes sql on the session.
func (s *Session) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	q, err := s.querier()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return q.Exec(ctx, sql, arguments...)
}

// Query runs a query on the session.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q, err := s.querier()
	if err != nil {
		return nil, err
	}
	return q.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query on the session.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q, err := s.querier()
	if err != nil {
		return errRow{err}
	}
	return q.QueryRow(ctx, sql, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// AsQuerier extracts the query surface from a transaction session.
func AsQuerier(s tx.Session) (Querier, error) {
	q, ok := s.(Querier)
	if !ok {
		return nil, fmt.Errorf("session %T does not support queries", s)
	}
	return q, nil
}
