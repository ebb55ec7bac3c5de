package person

import (
	"context"

	"txkit/internal/core/id"
	"txkit/internal/core/tx/proxy"
)

// DAO defines the interface for Person persistence.
//
// Implementations find their session through the context of the call, so
// they must be used behind a transactional decorator.
type DAO interface {
	// Save inserts or updates p.
	Save(ctx context.Context, p *Person) error

	// Get retrieves a person by id.
	Get(ctx context.Context, personID id.ID) (*Person, error)

	// List returns persons ordered by name, paged.
	List(ctx context.Context, offset, limit int) ([]Person, error)

	// NamesByID maps every person id to its name.
	NamesByID(ctx context.Context) (map[id.ID]string, error)

	// CountOlderThan counts persons strictly older than age.
	CountOlderThan(ctx context.Context, age int) (int64, error)

	// Import bulk-loads new persons and returns the number of rows written.
	// An id that already exists fails the whole import.
	Import(ctx context.Context, persons []Person) (int64, error)

	// Delete removes a person; deleting a missing person is a not-found error.
	Delete(ctx context.Context, personID id.ID) error
}

// DAORules are the transaction rules of DAO: mutable by default, queries
// read-only.
var DAORules = proxy.Rules{
	Methods: map[string]proxy.Marker{
		"Get":            proxy.Immutable,
		"List":           proxy.Immutable,
		"NamesByID":      proxy.Immutable,
		"CountOlderThan": proxy.Immutable,
	},
}
