package tx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txkit/internal/core/apperror"
)

func TestCreateTransaction_BeginsWithTimeout(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, txn, err := m.CreateTransaction(context.Background())
	require.NoError(t, err)

	s := engine.last()
	assert.Equal(t, 1, s.begins)
	assert.Equal(t, 5*time.Second, s.timeout)
	assert.False(t, txn.ReadOnly())
	assert.True(t, txn.IsUnused())
	assert.Same(t, txn, m.adapter.Current(ctx))

	got, err := m.ResourceManager(ctx)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.False(t, txn.IsUnused())
}

func TestCreateReadOnlyTransaction_NoNativeBoundary(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, txn, err := m.CreateReadOnlyTransaction(context.Background())
	require.NoError(t, err)
	assert.True(t, txn.ReadOnly())

	closed, err := txn.Close(ctx)
	require.NoError(t, err)
	assert.True(t, closed)

	s := engine.last()
	assert.Zero(t, s.begins)
	assert.Zero(t, s.commits)
	assert.Zero(t, s.rollbacks)
	assert.Equal(t, 1, s.closes)
}

func TestNestedTransaction_OnlyOutermostActs(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, outer, err := m.CreateTransaction(context.Background())
	require.NoError(t, err)

	innerCtx, inner, err := m.CreateTransaction(ctx)
	require.NoError(t, err)
	assert.Same(t, outer, inner)
	assert.Equal(t, 1, outer.NestingLevel())
	assert.Equal(t, 1, engine.opened())

	require.NoError(t, inner.Commit(innerCtx))
	require.NoError(t, inner.Rollback(innerCtx))

	closed, err := inner.Close(innerCtx)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.False(t, outer.Closed())
	assert.Zero(t, outer.NestingLevel())

	s := engine.last()
	assert.Zero(t, s.commits)
	assert.Zero(t, s.rollbacks)
	assert.Zero(t, s.closes)

	require.NoError(t, outer.Commit(ctx))
	assert.Equal(t, 1, s.commits)
	assert.Equal(t, 1, s.closes)
	assert.True(t, outer.Closed())
	assert.Nil(t, m.adapter.Current(ctx))
}

func TestNestedTransaction_OuterModeWins(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, outer, err := m.CreateReadOnlyTransaction(context.Background())
	require.NoError(t, err)

	_, inner, err := m.CreateTransaction(ctx)
	require.NoError(t, err)
	assert.Same(t, outer, inner)
	assert.True(t, inner.ReadOnly())

	// Nested commit is absorbed before the read-only check.
	require.NoError(t, inner.Commit(ctx))
}

func TestClose_NestingThenEviction(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, a, err := m.CreateTransaction(context.Background())
	require.NoError(t, err)
	_, again, err := m.CreateTransaction(ctx)
	require.NoError(t, err)
	require.Same(t, a, again)
	assert.Equal(t, 1, a.NestingLevel())

	closed, err := a.Close(ctx)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Same(t, a, m.adapter.Current(ctx))

	closed, err = a.Close(ctx)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Nil(t, m.adapter.Current(ctx))

	closed, err = a.Close(ctx)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Equal(t, 1, engine.last().closes)
}

func TestClosedTransaction_InvalidState(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, txn, err := m.CreateTransaction(context.Background())
	require.NoError(t, err)
	_, err = txn.Close(ctx)
	require.NoError(t, err)

	assert.True(t, apperror.IsInvalidState(txn.Commit(ctx)))
	assert.True(t, apperror.IsInvalidState(txn.Rollback(ctx)))

	_, err = txn.ResourceManager()
	assert.True(t, apperror.IsInvalidState(err))
}

func TestReadOnlyTransaction_CommitRollbackInvalidState(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, txn, err := m.CreateReadOnlyTransaction(context.Background())
	require.NoError(t, err)
	defer txn.Close(ctx)

	assert.True(t, apperror.IsInvalidState(txn.Commit(ctx)))
	assert.True(t, apperror.IsInvalidState(txn.Rollback(ctx)))
	assert.False(t, txn.Closed())
}

func TestCommitFailure_ClosesAndWraps(t *testing.T) {
	cause := errors.New("serialization failure")
	engine := &fakeEngine{newSession: func() *fakeSession {
		return &fakeSession{commitErr: cause}
	}}
	m := newTestManager(engine)

	ctx, txn, err := m.CreateTransaction(context.Background())
	require.NoError(t, err)

	err = txn.Commit(ctx)
	require.Error(t, err)
	assert.True(t, apperror.IsTransactionFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.True(t, txn.Closed())
	assert.Equal(t, 1, engine.last().closes)
	assert.Nil(t, m.adapter.Current(ctx))
}

func TestCloseFailure_ScopeStillEmptied(t *testing.T) {
	cause := errors.New("connection reset")
	engine := &fakeEngine{newSession: func() *fakeSession {
		return &fakeSession{closeErr: cause}
	}}
	m := newTestManager(engine)

	ctx, txn, err := m.CreateTransaction(context.Background())
	require.NoError(t, err)

	closed, err := txn.Close(ctx)
	assert.True(t, closed)
	assert.True(t, apperror.IsTransactionFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, m.adapter.Current(ctx))
}

func TestWithScope_SequentialTransactionsReuseSlot(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)
	ctx := WithScope(context.Background())

	_, first, err := m.CreateTransaction(ctx)
	require.NoError(t, err)
	assert.Same(t, first, m.adapter.Current(ctx))
	_, err = first.Close(ctx)
	require.NoError(t, err)
	assert.Nil(t, m.adapter.Current(ctx))

	_, second, err := m.CreateTransaction(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Same(t, second, m.adapter.Current(ctx))
	_, err = second.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, engine.opened())
}
