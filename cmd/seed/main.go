// Package main provides a CLI tool for seeding the database with demo persons.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"txkit/internal/core/tx"
	"txkit/internal/domain/person"
	"txkit/internal/infrastructure/storage/postgres"
	"txkit/internal/infrastructure/storage/postgres/person_repo"
	"txkit/internal/infrastructure/storage/postgres/sessionmgr"
	"txkit/pkg/logger"
)

var demoPersons = []struct {
	name   string
	age    int
	salary string
}{
	{"Ada Lovelace", 36, "5200.00"},
	{"Alan Turing", 41, "6100.50"},
	{"Grace Hopper", 85, "7300.00"},
	{"Edsger Dijkstra", 72, "6800.25"},
	{"Barbara Liskov", 29, "4950.00"},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	cfg, err := tx.ParseConfig(map[string]string{
		tx.PropURL:     dbURL,
		tx.PropMaxSize: "2",
	})
	if err != nil {
		log.Fatalw("invalid database configuration", "error", err)
	}

	engine, err := postgres.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	manager := tx.NewManager(tx.NewAdapter(engine, cfg))
	defer func() {
		if err := manager.Destroy(); err != nil {
			log.Errorw("failed to release database engine", "error", err)
		}
	}()

	log.Info("connected to database")

	n, err := tx.Exec(ctx, manager, func(ctx context.Context, _ tx.Session, _ ...any) (int, error) {
		return seedPersons(ctx, manager)
	})
	if err != nil {
		log.Fatalw("failed to seed persons", "error", err)
	}

	log.Infow("seeding completed", "inserted", n)
}

// seedPersons creates the schema and inserts the demo persons that do not
// exist yet, all within the transaction bound to ctx.
func seedPersons(ctx context.Context, manager *tx.Manager) (int, error) {
	if err := person_repo.EnsureSchema(ctx, manager); err != nil {
		return 0, fmt.Errorf("ensure schema: %w", err)
	}

	sm := sessionmgr.New(manager)
	var fresh []*person.Person
	for _, d := range demoPersons {
		exists, err := sm.Exists(ctx, "person WHERE name = ?", d.name)
		if err != nil {
			return 0, err
		}
		if exists {
			logger.Info(ctx, "person already exists, skipping", "name", d.name)
			continue
		}
		fresh = append(fresh, person.New(d.name, d.age, decimal.RequireFromString(d.salary)))
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := sessionmgr.SaveAll(ctx, sm, person.Table, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}
