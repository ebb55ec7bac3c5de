// Package person_repo provides the PostgreSQL implementation of person.DAO and
// its transactional decorator.
package person_repo

import (
	"context"

	"txkit/internal/core/apperror"
	"txkit/internal/core/id"
	"txkit/internal/core/tx"
	"txkit/internal/domain/person"
	"txkit/internal/infrastructure/storage/postgres/sessionmgr"
)

var importColumns = []string{"id", "name", "age", "salary"}

// PersonRepo implements person.DAO. It holds no session; every call resolves
// the session of the enclosing transaction through sm.
type PersonRepo struct {
	sm *sessionmgr.Manager
}

// Compile-time check that PersonRepo implements person.DAO interface.
var _ person.DAO = (*PersonRepo)(nil)

// NewPersonRepo creates a repository resolving sessions through source,
// normally proxy.Ambient.
func NewPersonRepo(source tx.SessionSource) *PersonRepo {
	return &PersonRepo{sm: sessionmgr.New(source)}
}

func (r *PersonRepo) Save(ctx context.Context, p *person.Person) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	return r.sm.Save(ctx, person.Table, p)
}

func (r *PersonRepo) Get(ctx context.Context, personID id.ID) (*person.Person, error) {
	p, err := sessionmgr.Get[person.Person](ctx, r.sm, person.Table, personID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PersonRepo) List(ctx context.Context, offset, limit int) ([]person.Person, error) {
	q := r.sm.SQL("SELECT id, name, age, salary FROM person ORDER BY name, id").Page(offset, limit)
	return sessionmgr.List[person.Person](ctx, q)
}

func (r *PersonRepo) NamesByID(ctx context.Context) (map[id.ID]string, error) {
	return sessionmgr.Map[id.ID, string](ctx, r.sm.SQL("SELECT id, name FROM person"))
}

func (r *PersonRepo) CountOlderThan(ctx context.Context, age int) (int64, error) {
	q := r.sm.SQL("SELECT count(*) FROM person WHERE age > :age").Param("age", age)
	return sessionmgr.ObjectOr[int64](ctx, q, 0)
}

func (r *PersonRepo) Import(ctx context.Context, persons []person.Person) (int64, error) {
	if len(persons) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(persons))
	for i := range persons {
		p := &persons[i]
		if id.IsNil(p.ID) {
			p.ID = id.New()
		}
		rows[i] = []any{p.ID, p.Name, p.Age, p.Salary}
	}
	return r.sm.Copy(ctx, person.Table, importColumns, rows)
}

func (r *PersonRepo) Delete(ctx context.Context, personID id.ID) error {
	found, err := r.sm.Delete(ctx, person.Table, personID)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NewNotFound(person.Table, personID.String())
	}
	return nil
}
