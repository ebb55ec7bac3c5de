package tx

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"txkit/internal/core/apperror"
	appctx "txkit/internal/core/context"
	"txkit/internal/core/id"
	"txkit/pkg/logger"
)

var tracer = otel.Tracer("txkit/tx")

// Adapter owns the engine and binds transactions to context scopes.
//
// At most one transaction is associated with a scope at any time. A scope
// belongs to a single goroutine, so transactions and their sessions are never
// shared between goroutines; only the engine's pool is.
type Adapter struct {
	mu      sync.Mutex
	engine  Engine
	timeout time.Duration
}

// NewAdapter creates an adapter over engine. cfg supplies the native
// transaction timeout; pool sizing was already applied when engine was built.
// A nil engine yields an unconfigured adapter.
func NewAdapter(engine Engine, cfg Config) *Adapter {
	return &Adapter{
		engine:  engine,
		timeout: cfg.TransactionTimeout,
	}
}

// CreateTransaction returns the transaction bound to ctx's scope, bumping its
// nesting level, or opens a new one.
//
// The mode of a nested call is not checked against the existing transaction:
// the outer transaction's mode wins.
//
// The returned context carries the scope and must be used for everything
// that should run inside the transaction.
func (a *Adapter) CreateTransaction(ctx context.Context, readOnly bool) (context.Context, *Transaction, error) {
	s := scopeFrom(ctx)
	if s != nil {
		if t := s.get(); t != nil {
			t.nesting++
			return ctx, t, nil
		}
	}

	engine, err := a.getEngine()
	if err != nil {
		return ctx, nil, err
	}

	if s == nil {
		s = &scope{}
		ctx = context.WithValue(ctx, scopeKey{}, s)
	}

	ctx, t, err := a.openTransaction(ctx, engine, s, readOnly)
	if err != nil {
		return ctx, nil, err
	}
	s.set(t)
	return ctx, t, nil
}

// openTransaction opens a session and, unless read-only, begins the native
// boundary. A session opened before a begin failure is released.
func (a *Adapter) openTransaction(ctx context.Context, engine Engine, s *scope, readOnly bool) (context.Context, *Transaction, error) {
	txID := id.New()
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.id", txID.String()),
			attribute.Bool("tx.read_only", readOnly),
		))

	session, err := engine.OpenSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.End()
		return ctx, nil, apperror.NewTransactionFailure("open", err)
	}

	if !readOnly {
		if err := session.Begin(ctx, a.timeout); err != nil {
			if closeErr := session.Close(context.WithoutCancel(ctx)); closeErr != nil {
				logger.Error(ctx, "release session after failed begin", "error", closeErr, "original_error", err)
			}
			span.RecordError(err)
			span.End()
			return ctx, nil, apperror.NewTransactionFailure("begin", err)
		}
	}

	ctx = appctx.WithTransactionID(ctx, txID.String())
	logger.Debug(ctx, "transaction opened", "read_only", readOnly)

	return ctx, &Transaction{
		adapter:  a,
		scope:    s,
		session:  session,
		span:     span,
		id:       txID,
		readOnly: readOnly,
		unused:   true,
	}, nil
}

// destroyTransaction empties the scope of t. Called only from
// Transaction.Close at full closure.
func (a *Adapter) destroyTransaction(ctx context.Context, t *Transaction) {
	t.scope.set(nil)
	t.span.End()
	logger.Debug(ctx, "transaction closed", "unused", t.unused)
}

// Current returns the transaction bound to ctx, or nil.
func (a *Adapter) Current(ctx context.Context) *Transaction {
	if s := scopeFrom(ctx); s != nil {
		return s.get()
	}
	return nil
}

// ResourceManager returns the session of the transaction bound to ctx.
// A missing-transaction error means persistence was used outside any
// transaction boundary.
func (a *Adapter) ResourceManager(ctx context.Context) (Session, error) {
	t := a.Current(ctx)
	if t == nil {
		return nil, apperror.NewMissingTransaction()
	}
	return t.ResourceManager()
}

// Destroy closes the engine and every pooled connection. Call once at
// shutdown.
func (a *Adapter) Destroy() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		return apperror.NewConfiguration("transaction adapter is not configured")
	}
	a.engine.Close()
	a.engine = nil
	return nil
}

func (a *Adapter) getEngine() (Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		return nil, apperror.NewConfiguration("transaction adapter is not configured")
	}
	return a.engine, nil
}
