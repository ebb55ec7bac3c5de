// Package proxy brackets every data-access method call with a transaction.
//
// Go has no dynamic proxies, so each DAO interface gets a small hand-written
// decorator whose methods delegate through Call or Proxy.Do. Read-only versus
// read-write is decided by a per-method table resolved once from Rules
// declared for the interface and, optionally, by the implementation.
package proxy

import (
	"context"

	"txkit/internal/core/apperror"
	"txkit/internal/core/tx"
	"txkit/pkg/logger"
)

// Marker forces a method's mutability.
type Marker uint8

const (
	Unmarked Marker = iota
	Immutable
	Mutable
)

// Rules declares mutability for a DAO. Immutable is the class-level default;
// Methods holds per-method overrides.
type Rules struct {
	Immutable bool
	Methods   map[string]Marker
}

// Annotated is implemented by DAO implementations that declare their own rules.
type Annotated interface {
	TransactionRules() Rules
}

// Proxy holds the resolved mutability table of one wrapped DAO instance.
type Proxy struct {
	creator        tx.Creator
	immutableClass bool
	immutable      map[string]bool
}

// New resolves the mutability table for target. iface are the rules declared
// for the DAO interface; target may add its own through Annotated.
//
// Precedence per method: an explicit Mutable marker, then an explicit
// Immutable marker, then the class default. The class default is immutable
// when either the interface or the implementation says so.
func New(creator tx.Creator, target any, iface Rules) *Proxy {
	var impl Rules
	if a, ok := target.(Annotated); ok {
		impl = a.TransactionRules()
	}

	p := &Proxy{
		creator:        creator,
		immutableClass: iface.Immutable || impl.Immutable,
		immutable:      make(map[string]bool),
	}

	names := make(map[string]struct{}, len(iface.Methods)+len(impl.Methods))
	for name := range iface.Methods {
		names[name] = struct{}{}
	}
	for name := range impl.Methods {
		names[name] = struct{}{}
	}

	for name := range names {
		immutable := p.immutableClass
		if iface.Methods[name] == Immutable || impl.Methods[name] == Immutable {
			immutable = true
		}
		if iface.Methods[name] == Mutable || impl.Methods[name] == Mutable {
			immutable = false
		}
		p.immutable[name] = immutable
	}

	return p
}

// Immutable reports whether method runs in a read-only transaction.
func (p *Proxy) Immutable(method string) bool {
	if immutable, ok := p.immutable[method]; ok {
		return immutable
	}
	return p.immutableClass
}

// Do runs fn as method inside a transaction.
func (p *Proxy) Do(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, p, method, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn as method inside a transaction and returns its result.
//
// The session is placed in the context handed to fn, where Ambient finds it.
// Mutable methods commit on success and roll back on failure; immutable ones
// do neither. The transaction is always closed. fn's error is returned
// unchanged.
func Call[T any](ctx context.Context, p *Proxy, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	immutable := p.Immutable(method)

	var (
		txCtx context.Context
		t     *tx.Transaction
		err   error
	)
	if immutable {
		txCtx, t, err = p.creator.CreateReadOnlyTransaction(ctx)
	} else {
		txCtx, t, err = p.creator.CreateTransaction(ctx)
	}
	if err != nil {
		return zero, err
	}

	defer func() {
		if r := recover(); r != nil {
			if !immutable {
				rollback(txCtx, t, method, nil)
			}
			closeTransaction(txCtx, t, method)
			panic(r)
		}
		closeTransaction(txCtx, t, method)
	}()

	s, err := t.ResourceManager()
	if err != nil {
		return zero, err
	}

	value, err := fn(withSession(txCtx, s))
	if err != nil {
		if !immutable {
			rollback(txCtx, t, method, err)
		}
		return zero, err
	}

	if !immutable {
		if err := t.Commit(txCtx); err != nil {
			return zero, err
		}
	}
	return value, nil
}

func rollback(ctx context.Context, t *tx.Transaction, method string, cause error) {
	if t.Closed() {
		return
	}
	if err := t.Rollback(ctx); err != nil {
		logger.Error(ctx, "rollback failed", "method", method, "error", err, "original_error", cause)
	}
}

func closeTransaction(ctx context.Context, t *tx.Transaction, method string) {
	if _, err := t.Close(ctx); err != nil {
		logger.Error(ctx, "close failed", "method", method, "error", err)
	}
}

type sessionKey struct{}

func withSession(ctx context.Context, s tx.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// Ambient is the context a DAO implementation receives at construction. It
// resolves "my current session" from the context of the proxied call.
type Ambient struct{}

var _ tx.SessionSource = Ambient{}

// ResourceManager returns the session of the enclosing proxied call.
func (Ambient) ResourceManager(ctx context.Context) (tx.Session, error) {
	if s, ok := ctx.Value(sessionKey{}).(tx.Session); ok && s != nil {
		return s, nil
	}
	return nil, apperror.NewMissingTransaction()
}
