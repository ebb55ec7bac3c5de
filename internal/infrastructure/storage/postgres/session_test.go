package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txkit/internal/core/tx"
)

// mockTx records the statements and outcomes of a native transaction. Methods
// the session never calls are left to the nil embedded interface.
type mockTx struct {
	pgx.Tx

	execs     []string
	commits   int
	rollbacks int

	execErr     error
	commitErr   error
	rollbackErr error
}

func (m *mockTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, sql)
	return pgconn.NewCommandTag("SET"), m.execErr
}

func (m *mockTx) Commit(context.Context) error {
	m.commits++
	return m.commitErr
}

func (m *mockTx) Rollback(context.Context) error {
	m.rollbacks++
	return m.rollbackErr
}

// mockConn stands in for a pooled or dialed connection.
type mockConn struct {
	pgx.Tx

	tx       *mockTx
	beginErr error
	txOpts   pgx.TxOptions
	execs    []string
}

func (m *mockConn) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	m.txOpts = opts
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

func (m *mockConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, sql)
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func newMockSession(releaseErr error) (*Session, *mockConn, *int) {
	c := &mockConn{tx: &mockTx{}}
	released := 0
	s := newSession(c, func(context.Context) error {
		released++
		return releaseErr
	})
	return s, c, &released
}

func TestSession_BeginSetsStatementTimeout(t *testing.T) {
	s, c, _ := newMockSession(nil)

	require.NoError(t, s.Begin(context.Background(), 1500*time.Millisecond))

	assert.True(t, s.InTransaction())
	assert.Equal(t, pgx.ReadCommitted, c.txOpts.IsoLevel)
	assert.Equal(t, pgx.ReadWrite, c.txOpts.AccessMode)
	assert.Equal(t, []string{"SET LOCAL statement_timeout = '1500ms'"}, c.tx.execs)
}

func TestSession_BeginWithoutTimeout(t *testing.T) {
	s, c, _ := newMockSession(nil)

	require.NoError(t, s.Begin(context.Background(), 0))
	assert.Empty(t, c.tx.execs)
	assert.True(t, s.InTransaction())
}

func TestSession_BeginTimeoutFailureRollsBack(t *testing.T) {
	s, c, _ := newMockSession(nil)
	c.tx.execErr = errors.New("permission denied")

	err := s.Begin(context.Background(), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, c.tx.execErr)
	assert.Equal(t, 1, c.tx.rollbacks)
	assert.False(t, s.InTransaction())
}

func TestSession_BeginErrors(t *testing.T) {
	ctx := context.Background()

	s, c, _ := newMockSession(nil)
	c.beginErr = errors.New("conn busy")
	err := s.Begin(ctx, 0)
	assert.ErrorIs(t, err, c.beginErr)
	assert.False(t, s.InTransaction())

	s, _, _ = newMockSession(nil)
	require.NoError(t, s.Begin(ctx, 0))
	assert.Error(t, s.Begin(ctx, 0))

	s, _, _ = newMockSession(nil)
	require.NoError(t, s.Close(ctx))
	assert.ErrorIs(t, s.Begin(ctx, 0), ErrSessionClosed)
}

func TestSession_CommitFailureClearsTransaction(t *testing.T) {
	ctx := context.Background()
	s, c, released := newMockSession(nil)
	c.tx.commitErr = errors.New("serialization failure")

	require.NoError(t, s.Begin(ctx, 0))
	err := s.Commit(ctx)
	assert.ErrorIs(t, err, c.tx.commitErr)
	assert.False(t, s.InTransaction())

	// Nothing left to roll back on close.
	require.NoError(t, s.Close(ctx))
	assert.Zero(t, c.tx.rollbacks)
	assert.Equal(t, 1, *released)
}

func TestSession_CommitWithoutTransaction(t *testing.T) {
	s, _, _ := newMockSession(nil)
	assert.Error(t, s.Commit(context.Background()))
}

func TestSession_Rollback(t *testing.T) {
	ctx := context.Background()

	s, c, _ := newMockSession(nil)
	c.tx.rollbackErr = pgx.ErrTxClosed
	require.NoError(t, s.Begin(ctx, 0))
	assert.NoError(t, s.Rollback(ctx))
	assert.False(t, s.InTransaction())

	s, c, _ = newMockSession(nil)
	c.tx.rollbackErr = errors.New("connection reset")
	require.NoError(t, s.Begin(ctx, 0))
	assert.ErrorIs(t, s.Rollback(ctx), c.tx.rollbackErr)

	s, _, _ = newMockSession(nil)
	assert.NoError(t, s.Rollback(ctx))
}

func TestSession_CloseRollsBackAndJoinsReleaseError(t *testing.T) {
	ctx := context.Background()
	releaseErr := errors.New("release failed")
	s, c, released := newMockSession(releaseErr)
	c.tx.rollbackErr = errors.New("rollback failed")

	require.NoError(t, s.Begin(ctx, 0))
	err := s.Close(ctx)

	assert.ErrorIs(t, err, releaseErr)
	assert.ErrorIs(t, err, c.tx.rollbackErr)
	assert.Equal(t, 1, c.tx.rollbacks)
	assert.Equal(t, 1, *released)
	assert.False(t, s.IsOpen())

	assert.NoError(t, s.Close(ctx))
	assert.Equal(t, 1, *released)
}

func TestSession_StatementRouting(t *testing.T) {
	ctx := context.Background()
	s, c, _ := newMockSession(nil)

	_, err := s.Exec(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1"}, c.execs)

	require.NoError(t, s.Begin(ctx, 0))
	_, err = s.Exec(ctx, "UPDATE person SET age = 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"UPDATE person SET age = 1"}, c.tx.execs)
	assert.Len(t, c.execs, 1)
}

func TestSession_ClosedSessionRejectsStatements(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newMockSession(nil)
	require.NoError(t, s.Close(ctx))

	_, err := s.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = s.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrSessionClosed)

	var n int
	assert.ErrorIs(t, s.QueryRow(ctx, "SELECT 1").Scan(&n), ErrSessionClosed)

	_, err = s.ExecuteBatch(ctx, []BatchQuery{{SQL: "SELECT 1"}})
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = s.CopyFromSlice(ctx, "person", []string{"id"}, [][]any{{1}})
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.NoError(t, s.Rollback(ctx))
}

type bareSession struct{}

func (bareSession) Begin(context.Context, time.Duration) error { return nil }
func (bareSession) Commit(context.Context) error { return nil }
func (bareSession) Rollback(context.Context) error { return nil }
func (bareSession) Close(context.Context) error { return nil }

func TestAsQuerierAndBulk(t *testing.T) {
	s, _, _ := newMockSession(nil)

	_, err := AsQuerier(s)
	assert.NoError(t, err)
	_, err = AsBulk(s)
	assert.NoError(t, err)

	var other tx.Session = bareSession{}
	_, err = AsQuerier(other)
	assert.Error(t, err)
	_, err = AsBulk(other)
	assert.Error(t, err)
}
