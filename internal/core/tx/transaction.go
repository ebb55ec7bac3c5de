package tx

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"txkit/internal/core/apperror"
	"txkit/internal/core/id"
	"txkit/pkg/logger"
)

// Transaction is one logical unit of work. It exclusively owns its Session
// while open and is only ever driven by the goroutine that owns its scope.
//
// Once closed, every operation except Close fails with an invalid-state error.
// A read-only transaction never begins, commits or rolls back a native
// boundary; it relies on the connection's default isolation.
type Transaction struct {
	adapter  *Adapter
	scope    *scope
	session  Session
	span     trace.Span
	id       id.ID
	readOnly bool

	// nesting counts reentrant CreateTransaction calls beyond the first.
	nesting int
	unused  bool
	closed  bool
}

// ID returns the transaction id used in logs and spans.
func (t *Transaction) ID() id.ID { return t.id }

// ReadOnly reports whether the transaction was created read-only.
func (t *Transaction) ReadOnly() bool { return t.readOnly }

// NestingLevel returns the number of open nested entries.
func (t *Transaction) NestingLevel() int { return t.nesting }

// Closed reports whether the transaction reached its terminal state.
func (t *Transaction) Closed() bool { return t.closed }

// IsUnused reports whether the session was never requested.
func (t *Transaction) IsUnused() bool { return t.unused }

// ResourceManager returns the underlying session and marks the transaction used.
func (t *Transaction) ResourceManager() (Session, error) {
	if t.closed {
		return nil, t.invalidState("closed transaction has no session")
	}
	t.unused = false
	return t.session, nil
}

// Commit commits the native boundary and closes the transaction.
// Nested calls are absorbed; the outermost owner holds commit authority.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.closed {
		return t.invalidState("closed transaction does not allow commit")
	}
	if t.nesting > 0 {
		return nil
	}
	if t.readOnly {
		return t.invalidState("read-only transaction does not allow commit")
	}
	return t.finish(ctx, "commit", t.session.Commit)
}

// Rollback discards the native boundary and closes the transaction.
// Nested calls are absorbed.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.closed {
		return t.invalidState("closed transaction does not allow rollback")
	}
	if t.nesting > 0 {
		return nil
	}
	if t.readOnly {
		return t.invalidState("read-only transaction does not allow rollback")
	}
	return t.finish(context.WithoutCancel(ctx), "rollback", t.session.Rollback)
}

// finish runs the terminal operation and closes whatever its outcome.
func (t *Transaction) finish(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	if opErr := fn(ctx); opErr != nil {
		t.span.RecordError(opErr)
		err = apperror.NewTransactionFailure(op, opErr).WithDetail("tx_id", t.id.String())
	}

	if _, closeErr := t.Close(ctx); closeErr != nil {
		if err == nil {
			return closeErr
		}
		logger.Error(ctx, "close after failed "+op, "error", closeErr, "original_error", err)
	}
	return err
}

// Close ends one level of nesting. It returns true once the transaction is
// fully closed: the session is released and the scope emptied. Releasing the
// session may fail, but the scope is emptied regardless.
func (t *Transaction) Close(ctx context.Context) (bool, error) {
	if t.closed {
		return true, nil
	}
	if t.nesting > 0 {
		t.nesting--
		return false, nil
	}
	t.closed = true

	defer t.adapter.destroyTransaction(ctx, t)

	if err := t.session.Close(context.WithoutCancel(ctx)); err != nil {
		t.span.RecordError(err)
		return true, apperror.NewTransactionFailure("close", err).WithDetail("tx_id", t.id.String())
	}
	return true, nil
}

func (t *Transaction) invalidState(msg string) error {
	return apperror.NewInvalidState(msg).WithDetail("tx_id", t.id.String())
}
