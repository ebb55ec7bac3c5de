package tx

import (
	"context"

	"txkit/internal/core/apperror"
	"txkit/pkg/logger"
)

// WorkUnit is a caller-supplied operation executed once inside a managed
// transaction. ctx carries the transaction scope.
type WorkUnit func(ctx context.Context, s Session, args ...any) (any, error)

// Creator opens transactions. Implemented by *Manager.
type Creator interface {
	CreateTransaction(ctx context.Context) (context.Context, *Transaction, error)
	CreateReadOnlyTransaction(ctx context.Context) (context.Context, *Transaction, error)
}

// Compile-time check that Manager implements the public contracts.
var (
	_ Creator       = (*Manager)(nil)
	_ SessionSource = (*Manager)(nil)
	_ SessionSource = (*Adapter)(nil)
)

// Manager is the public entry point for transaction demarcation.
//
// Execute is the safe usage pattern. Callers driving CreateTransaction,
// Commit, Rollback and Close by hand must always Close, typically deferred.
type Manager struct {
	adapter *Adapter
}

// NewManager creates a manager over adapter.
func NewManager(adapter *Adapter) *Manager {
	return &Manager{adapter: adapter}
}

// CreateTransaction opens (or joins) a read-write transaction.
func (m *Manager) CreateTransaction(ctx context.Context) (context.Context, *Transaction, error) {
	return m.adapter.CreateTransaction(ctx, false)
}

// CreateReadOnlyTransaction opens (or joins) a read-only transaction.
func (m *Manager) CreateReadOnlyTransaction(ctx context.Context) (context.Context, *Transaction, error) {
	return m.adapter.CreateTransaction(ctx, true)
}

// ResourceManager returns the session of the transaction bound to ctx.
func (m *Manager) ResourceManager(ctx context.Context) (Session, error) {
	return m.adapter.ResourceManager(ctx)
}

// Destroy releases the engine. Call once at shutdown.
func (m *Manager) Destroy() error {
	return m.adapter.Destroy()
}

// Execute runs unit inside a read-write transaction: commit on success,
// rollback on failure, close always. Any failure, from unit or from the
// engine, is returned as a single transaction-failure error wrapping the cause.
func (m *Manager) Execute(ctx context.Context, unit WorkUnit, args ...any) (any, error) {
	return Exec[any](ctx, m, unit, args...)
}

// Exec is the typed form of Manager.Execute.
func Exec[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, s Session, args ...any) (T, error), args ...any) (result T, err error) {
	var zero T

	txCtx, t, err := m.CreateTransaction(ctx)
	if err != nil {
		return zero, asFailure("create", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollbackQuietly(txCtx, t, nil)
			closeQuietly(txCtx, t)
			panic(p)
		}
		if _, closeErr := t.Close(txCtx); closeErr != nil && err == nil {
			result, err = zero, asFailure("close", closeErr)
		}
	}()

	s, err := t.ResourceManager()
	if err != nil {
		return zero, asFailure("session", err)
	}

	result, err = fn(txCtx, s, args...)
	if err != nil {
		rollbackQuietly(txCtx, t, err)
		return zero, asFailure("unit of work", err)
	}

	if err := t.Commit(txCtx); err != nil {
		return zero, asFailure("commit", err)
	}
	return result, nil
}

// rollbackQuietly rolls t back after a primary failure. A rollback failure is
// logged; the primary failure is what the caller sees.
func rollbackQuietly(ctx context.Context, t *Transaction, cause error) {
	if t.Closed() || t.ReadOnly() {
		return
	}
	if err := t.Rollback(ctx); err != nil {
		logger.Error(ctx, "rollback failed", "error", err, "original_error", cause)
	}
}

func closeQuietly(ctx context.Context, t *Transaction) {
	if _, err := t.Close(ctx); err != nil {
		logger.Error(ctx, "close failed", "error", err)
	}
}

// asFailure wraps err as a transaction failure unless it already is one.
func asFailure(op string, err error) error {
	if apperror.IsTransactionFailure(err) {
		return err
	}
	return apperror.NewTransactionFailure(op, err)
}
