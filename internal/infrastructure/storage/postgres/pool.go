// Package postgres provides the PostgreSQL engine behind the transaction layer.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"txkit/internal/core/tx"
	"txkit/pkg/logger"
)

// ApplicationName is reported to the server for every connection.
const ApplicationName = "txkit"

// Compile-time check that both engines implement tx.Engine.
var (
	_ tx.Engine = (*Pool)(nil)
	_ tx.Engine = (*DirectEngine)(nil)
)

// Open builds the engine described by cfg: a connection pool, or a
// non-pooling engine when cfg.TestSession is set.
func Open(ctx context.Context, cfg tx.Config) (tx.Engine, error) {
	if cfg.TestSession {
		return NewDirectEngine(ctx, cfg)
	}
	return NewPool(ctx, cfg)
}

// Pool opens one session per pooled connection. The pgxpool itself stays
// unexported so every statement goes through a transaction.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool creates a connection pool sized from cfg and verifies connectivity.
func NewPool(ctx context.Context, cfg tx.Config) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	applyConnConfig(poolConfig.ConnConfig, cfg)

	if cfg.MaxSize > 0 {
		poolConfig.MaxConns = cfg.MaxSize
	}
	if cfg.MinSize > 0 {
		poolConfig.MinConns = cfg.MinSize
	}
	if cfg.IdleTestPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.IdleTestPeriod
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET application_name = '"+ApplicationName+"'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(ctx, "database pool opened",
		"max_conns", poolConfig.MaxConns,
		"min_conns", poolConfig.MinConns,
		"statement_cache", poolConfig.ConnConfig.StatementCacheCapacity,
	)

	return &Pool{pool: pool}, nil
}

// OpenSession acquires a pooled connection. It blocks while the pool is exhausted.
func (p *Pool) OpenSession(ctx context.Context) (tx.Session, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return newSession(c, func(context.Context) error {
		c.Release()
		return nil
	}), nil
}

// Close closes all connections in the pool.
func (p *Pool) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// DirectEngine dials a dedicated connection for every session and closes it
// with the session. Used for in-process test runs where pooled connections
// would outlive the test that opened them.
type DirectEngine struct {
	connConfig *pgx.ConnConfig
}

// NewDirectEngine validates cfg and verifies connectivity once.
func NewDirectEngine(ctx context.Context, cfg tx.Config) (*DirectEngine, error) {
	connConfig, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	applyConnConfig(connConfig, cfg)

	e := &DirectEngine{connConfig: connConfig}
	s, err := e.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Close(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenSession dials a new connection.
func (e *DirectEngine) OpenSession(ctx context.Context) (tx.Session, error) {
	c, err := pgx.ConnectConfig(ctx, e.connConfig.Copy())
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return newSession(c, c.Close), nil
}

// Close is a no-op: every connection is closed with its session.
func (e *DirectEngine) Close() {}

// applyConnConfig copies credentials, statement cache size and passthrough
// properties onto a connection config.
func applyConnConfig(cc *pgx.ConnConfig, cfg tx.Config) {
	if cfg.Username != "" {
		cc.User = cfg.Username
	}
	if cfg.Password != "" {
		cc.Password = cfg.Password
	}
	if cfg.MaxStatements > 0 {
		cc.StatementCacheCapacity = int(cfg.MaxStatements)
	}
	if cc.RuntimeParams == nil {
		cc.RuntimeParams = make(map[string]string, len(cfg.Properties))
	}
	for k, v := range cfg.Properties {
		cc.RuntimeParams[k] = v
	}
}

// PoolStats returns current pool statistics for metrics.
type PoolStats struct {
	TotalConns      int32         `json:"total_conns"`
	AcquiredConns   int32         `json:"acquired_conns"`
	IdleConns       int32         `json:"idle_conns"`
	MaxConns        int32         `json:"max_conns"`
	AcquireCount    int64         `json:"acquire_count"`
	AcquireDuration time.Duration `json:"acquire_duration"`
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	return GetPoolStats(p.pool)
}

// GetPoolStats extracts statistics from pool.
func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		AcquiredConns:   stat.AcquiredConns(),
		IdleConns:       stat.IdleConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration(),
	}
}

// LogPoolStats logs pool statistics.
func LogPoolStats(ctx context.Context, p *Pool) {
	stats := p.Stats()
	logger.Info(ctx, "database pool stats",
		"total", stats.TotalConns,
		"acquired", stats.AcquiredConns,
		"idle", stats.IdleConns,
		"max", stats.MaxConns,
	)
}
