// Package tx provides transaction demarcation over a pooled persistence engine.
//
// A Transaction owns one Session (the engine's unit-of-work handle) and is bound
// to the caller's context scope. Creating a transaction in a scope that already
// holds one reuses it and bumps its nesting level; only the outermost
// commit/rollback/close acts on the engine.
//
// This package knows nothing about the concrete engine. The PostgreSQL
// implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
	"time"
)

// Session is the engine's per-transaction handle: a connection taken from the
// pool plus an optional native transaction boundary.
type Session interface {
	// Begin starts the native transaction boundary. A positive timeout bounds
	// every statement executed inside it.
	Begin(ctx context.Context, timeout time.Duration) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Close rolls back an unfinished boundary and returns the connection.
	Close(ctx context.Context) error
}

// Engine opens sessions. It is the process-wide connection pool.
type Engine interface {
	OpenSession(ctx context.Context) (Session, error)
	Close()
}

// SessionSource resolves the session active in ctx. Implemented by Adapter,
// Manager and proxy.Ambient.
type SessionSource interface {
	ResourceManager(ctx context.Context) (Session, error)
}
