// Package main is the entry point for the txkit person API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txkit/internal/core/tx"
	v1 "txkit/internal/infrastructure/http/v1"
	"txkit/internal/infrastructure/storage/postgres"
	"txkit/internal/infrastructure/storage/postgres/person_repo"
	"txkit/pkg/logger"
)

func main() {
	development := getEnv("APP_ENV", "development") == "development"

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer stop()

	statsDone := make(chan struct{})
	log.Info("starting txkit server")

	// --- Transaction layer ---
	cfg, err := tx.ParseConfig(loadProperties())
	if err != nil {
		log.Fatalw("invalid database configuration", "error", err)
	}

	engine, err := postgres.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open database engine", "error", err)
	}

	manager := tx.NewManager(tx.NewAdapter(engine, cfg))
	defer func() {
		// Stop background stats before the pool closes
		stop()
		<-statsDone
		if err := manager.Destroy(); err != nil {
			log.Errorw("failed to release database engine", "error", err)
		}
	}()

	log.Infow("transaction manager initialized",
		"max_size", cfg.MaxSize,
		"min_size", cfg.MinSize,
		"max_statements", cfg.MaxStatements,
		"tx_timeout", cfg.TransactionTimeout,
		"test_session", cfg.TestSession,
	)

	_, err = manager.Execute(ctx, func(ctx context.Context, _ tx.Session, _ ...any) (any, error) {
		return nil, person_repo.EnsureSchema(ctx, manager)
	})
	if err != nil {
		log.Fatalw("failed to prepare schema", "error", err)
	}

	pool, _ := engine.(*postgres.Pool)
	go func() {
		defer close(statsDone)
		reportPoolStats(ctx, pool, getEnvDuration("DB_STATS_INTERVAL", 5*time.Minute))
	}()

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Manager: manager,
		Engine:  engine,
		Persons: person_repo.New(manager),
		Logger:  log,
		Debug:   development,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func reportPoolStats(ctx context.Context, pool *postgres.Pool, every time.Duration) {
	if pool == nil || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			postgres.LogPoolStats(ctx, pool)
		}
	}
}
