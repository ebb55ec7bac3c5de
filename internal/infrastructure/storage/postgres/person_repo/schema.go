package person_repo

import (
	"context"

	"txkit/internal/core/tx"
	"txkit/internal/infrastructure/storage/postgres/sessionmgr"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS person (
	id     uuid PRIMARY KEY,
	name   text NOT NULL,
	age    integer NOT NULL DEFAULT 0 CHECK (age >= 0),
	salary numeric(14, 2) NOT NULL DEFAULT 0
)`

const indexDDL = `CREATE INDEX IF NOT EXISTS person_name_idx ON person (name, id)`

// EnsureSchema creates the person table when missing. It must run inside a
// read-write transaction whose session source is source.
func EnsureSchema(ctx context.Context, source tx.SessionSource) error {
	sm := sessionmgr.New(source)
	for _, ddl := range []string{schemaDDL, indexDDL} {
		if _, err := sm.SQL(ddl).Update(ctx); err != nil {
			return err
		}
	}
	return nil
}
