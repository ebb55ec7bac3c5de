package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txkit/internal/core/apperror"
)

func TestExecute_CommitsOnSuccess(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	res, err := m.Execute(context.Background(), func(ctx context.Context, s Session, args ...any) (any, error) {
		got, err := m.ResourceManager(ctx)
		require.NoError(t, err)
		assert.Same(t, s, got)
		return args[0].(int) + args[1].(int), nil
	}, 2, 3)

	require.NoError(t, err)
	assert.Equal(t, 5, res)

	s := engine.last()
	assert.Equal(t, 1, s.commits)
	assert.Zero(t, s.rollbacks)
	assert.Equal(t, 1, s.closes)
}

func TestExecute_UnitErrorRollsBack(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)
	cause := errors.New("x")

	res, err := m.Execute(context.Background(), func(context.Context, Session, ...any) (any, error) {
		return "ignored", cause
	})

	assert.Nil(t, res)
	assert.True(t, apperror.IsTransactionFailure(err))
	assert.ErrorIs(t, err, cause)

	s := engine.last()
	assert.Zero(t, s.commits)
	assert.Equal(t, 1, s.rollbacks)
	assert.Equal(t, 1, s.closes)
}

func TestExecute_FailureNotWrappedTwice(t *testing.T) {
	m := newTestManager(&fakeEngine{})
	inner := apperror.NewTransactionFailure("commit", errors.New("boom"))

	_, err := m.Execute(context.Background(), func(context.Context, Session, ...any) (any, error) {
		return nil, inner
	})
	assert.Same(t, inner, err)
}

func TestExecute_CommitFailure(t *testing.T) {
	cause := errors.New("commit refused")
	engine := &fakeEngine{newSession: func() *fakeSession {
		return &fakeSession{commitErr: cause}
	}}
	m := newTestManager(engine)

	_, err := m.Execute(context.Background(), func(context.Context, Session, ...any) (any, error) {
		return nil, nil
	})
	assert.True(t, apperror.IsTransactionFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, engine.last().closes)
}

func TestExecute_CreateFailure(t *testing.T) {
	cause := errors.New("no connection")
	m := newTestManager(&fakeEngine{openErr: cause})

	called := false
	_, err := m.Execute(context.Background(), func(context.Context, Session, ...any) (any, error) {
		called = true
		return nil, nil
	})
	assert.False(t, called)
	assert.True(t, apperror.IsTransactionFailure(err))
	assert.ErrorIs(t, err, cause)
}

func TestExecute_PanicRollsBackAndPropagates(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)
	ctx := WithScope(context.Background())

	assert.PanicsWithValue(t, "unit exploded", func() {
		_, _ = m.Execute(ctx, func(context.Context, Session, ...any) (any, error) {
			panic("unit exploded")
		})
	})

	s := engine.last()
	assert.Equal(t, 1, s.rollbacks)
	assert.Equal(t, 1, s.closes)
	assert.Nil(t, m.adapter.Current(ctx))
}

func TestExecute_JoinsEnclosingTransaction(t *testing.T) {
	engine := &fakeEngine{}
	m := newTestManager(engine)

	ctx, outer, err := m.CreateTransaction(context.Background())
	require.NoError(t, err)

	_, err = m.Execute(ctx, func(ctx context.Context, _ Session, _ ...any) (any, error) {
		assert.Same(t, outer, m.adapter.Current(ctx))
		assert.Equal(t, 1, outer.NestingLevel())
		return nil, nil
	})
	require.NoError(t, err)

	s := engine.last()
	assert.Zero(t, s.commits)
	assert.Zero(t, s.closes)
	assert.False(t, outer.Closed())
	assert.Zero(t, outer.NestingLevel())

	require.NoError(t, outer.Commit(ctx))
	assert.Equal(t, 1, s.commits)
	assert.Equal(t, 1, engine.opened())
}

func TestExec_Typed(t *testing.T) {
	m := newTestManager(&fakeEngine{})

	n, err := Exec(context.Background(), m, func(_ context.Context, _ Session, args ...any) (int, error) {
		return len(args), nil
	}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
