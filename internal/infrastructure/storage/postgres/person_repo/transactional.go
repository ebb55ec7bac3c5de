package person_repo

import (
	"context"

	"txkit/internal/core/id"
	"txkit/internal/core/tx"
	"txkit/internal/core/tx/proxy"
	"txkit/internal/domain/person"
)

// transactionalDAO runs every person.DAO call inside its own transaction,
// read-only for the methods person.DAORules marks immutable.
type transactionalDAO struct {
	proxy  *proxy.Proxy
	target person.DAO
}

// NewTransactional wraps target so that each call is bracketed by a
// transaction created through creator.
func NewTransactional(creator tx.Creator, target person.DAO) person.DAO {
	return &transactionalDAO{
		proxy:  proxy.New(creator, target, person.DAORules),
		target: target,
	}
}

// New builds the repository and its decorator in one step.
func New(creator tx.Creator) person.DAO {
	return NewTransactional(creator, NewPersonRepo(proxy.Ambient{}))
}

func (d *transactionalDAO) Save(ctx context.Context, p *person.Person) error {
	return d.proxy.Do(ctx, "Save", func(ctx context.Context) error {
		return d.target.Save(ctx, p)
	})
}

func (d *transactionalDAO) Get(ctx context.Context, personID id.ID) (*person.Person, error) {
	return proxy.Call(ctx, d.proxy, "Get", func(ctx context.Context) (*person.Person, error) {
		return d.target.Get(ctx, personID)
	})
}

func (d *transactionalDAO) List(ctx context.Context, offset, limit int) ([]person.Person, error) {
	return proxy.Call(ctx, d.proxy, "List", func(ctx context.Context) ([]person.Person, error) {
		return d.target.List(ctx, offset, limit)
	})
}

func (d *transactionalDAO) NamesByID(ctx context.Context) (map[id.ID]string, error) {
	return proxy.Call(ctx, d.proxy, "NamesByID", func(ctx context.Context) (map[id.ID]string, error) {
		return d.target.NamesByID(ctx)
	})
}

func (d *transactionalDAO) CountOlderThan(ctx context.Context, age int) (int64, error) {
	return proxy.Call(ctx, d.proxy, "CountOlderThan", func(ctx context.Context) (int64, error) {
		return d.target.CountOlderThan(ctx, age)
	})
}

func (d *transactionalDAO) Import(ctx context.Context, persons []person.Person) (int64, error) {
	return proxy.Call(ctx, d.proxy, "Import", func(ctx context.Context) (int64, error) {
		return d.target.Import(ctx, persons)
	})
}

func (d *transactionalDAO) Delete(ctx context.Context, personID id.ID) error {
	return d.proxy.Do(ctx, "Delete", func(ctx context.Context) error {
		return d.target.Delete(ctx, personID)
	})
}
