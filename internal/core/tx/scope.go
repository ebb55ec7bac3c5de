package tx

import (
	"context"
	"sync"
)

// scope holds at most one active transaction. It is the explicit replacement
// for a per-thread slot: it travels inside context.Context and is emptied when
// its transaction is fully closed.
type scope struct {
	mu sync.Mutex
	tx *Transaction
}

type scopeKey struct{}

// WithScope pushes an empty transaction scope onto ctx. Transactions created
// from the returned context (or contexts derived from it) share the scope, so
// sequential units of work on one goroutine see each other's transaction.
// A scope must not be shared between goroutines.
func WithScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, &scope{})
}

func scopeFrom(ctx context.Context) *scope {
	if s, ok := ctx.Value(scopeKey{}).(*scope); ok {
		return s
	}
	return nil
}

func (s *scope) get() *Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx
}

func (s *scope) set(t *Transaction) {
	s.mu.Lock()
	s.tx = t
	s.mu.Unlock()
}
