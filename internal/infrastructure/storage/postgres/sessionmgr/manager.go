// Package sessionmgr is the query façade DAOs use inside a transaction.
//
// A Manager never holds a session. Every call resolves "the current session"
// from the context through a tx.SessionSource, so the same Manager serves any
// number of goroutines, each inside its own transaction. Table and column
// names are trusted input; only values are bound as parameters.
package sessionmgr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"txkit/internal/core/apperror"
	"txkit/internal/core/tx"
	"txkit/internal/infrastructure/storage/postgres"
)

// Manager resolves sessions and builds statements against them.
type Manager struct {
	source tx.SessionSource
}

// New creates a Manager over source: a *tx.Manager for code running inside
// Execute or a manual transaction, or proxy.Ambient for DAOs behind a
// transactional decorator.
func New(source tx.SessionSource) *Manager {
	return &Manager{source: source}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (m *Manager) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the query surface of the session active in ctx.
func (m *Manager) Querier(ctx context.Context) (postgres.Querier, error) {
	s, err := m.source.ResourceManager(ctx)
	if err != nil {
		return nil, err
	}
	return postgres.AsQuerier(s)
}

// SQL starts a query; params bind the "?" placeholders in order.
func (m *Manager) SQL(sql string, params ...any) *Query {
	return &Query{m: m, sql: sql, positional: params}
}

// Save inserts entity into table, updating the existing row when the "id"
// column conflicts. Columns come from the entity's "db" tags.
func (m *Manager) Save(ctx context.Context, table string, entity any) error {
	q, err := m.saveStatement(table, entity)
	if err != nil {
		return err
	}
	return m.exec(ctx, "save "+table, q.SQL, q.Args)
}

// SaveAll saves every entity in a single batch round-trip, stopping at the
// first failure.
func SaveAll[T any](ctx context.Context, m *Manager, table string, entities []T) error {
	queries := make([]postgres.BatchQuery, 0, len(entities))
	for _, e := range entities {
		q, err := m.saveStatement(table, e)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}

	bulk, err := m.bulk(ctx)
	if err != nil {
		return err
	}
	if _, err := bulk.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

// Copy bulk-loads rows into table with the COPY protocol. Every row holds
// values for columns, in order.
func (m *Manager) Copy(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	bulk, err := m.bulk(ctx)
	if err != nil {
		return 0, err
	}
	n, err := bulk.CopyFromSlice(ctx, table, columns, rows)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func (m *Manager) saveStatement(table string, entity any) (postgres.BatchQuery, error) {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return postgres.BatchQuery{}, fmt.Errorf("no db tags found in entity %T", entity)
	}

	q := m.Builder().Insert(table).SetMap(data)
	if _, ok := data["id"]; ok {
		q = q.Suffix(upsertClause(data))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return postgres.BatchQuery{}, fmt.Errorf("build insert: %w", err)
	}
	return postgres.BatchQuery{SQL: sql, Args: args}, nil
}

func (m *Manager) bulk(ctx context.Context) (postgres.Bulk, error) {
	s, err := m.source.ResourceManager(ctx)
	if err != nil {
		return nil, err
	}
	return postgres.AsBulk(s)
}

func upsertClause(data map[string]any) string {
	cols := make([]string, 0, len(data))
	for col := range data {
		if col != "id" {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return "ON CONFLICT (id) DO NOTHING"
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = EXCLUDED." + col
	}
	return "ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
}

// Get loads the row of table with the given id into T, selecting the columns
// declared by T's "db" tags.
func Get[T any](ctx context.Context, m *Manager, table string, id any) (T, error) {
	var dst T

	sql, args, err := m.Builder().
		Select(postgres.ExtractDBColumns[T]()...).
		From(table).
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return dst, fmt.Errorf("build query: %w", err)
	}

	querier, err := m.Querier(ctx)
	if err != nil {
		return dst, err
	}
	if err := pgxscan.Get(ctx, querier, &dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return dst, apperror.NewNotFound(table, id)
		}
		return dst, fmt.Errorf("get by id: %w", err)
	}
	return dst, nil
}

// Delete removes the row of table with the given id and reports whether it
// existed.
func (m *Manager) Delete(ctx context.Context, table string, id any) (bool, error) {
	n, err := m.deleteWhere(ctx, table, squirrel.Eq{"id": id})
	return n > 0, err
}

// DeleteIDs removes every row of table whose id is in ids. An empty ids is a
// no-op.
func DeleteIDs[ID any](ctx context.Context, m *Manager, table string, ids []ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return m.deleteWhere(ctx, table, squirrel.Eq{"id": ids})
}

func (m *Manager) deleteWhere(ctx context.Context, table string, pred squirrel.Eq) (int64, error) {
	sql, args, err := m.Builder().Delete(table).Where(pred).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	querier, err := m.Querier(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Exists reports whether "SELECT 1 FROM <clause>" yields a row. clause is a
// FROM/WHERE fragment with "?" placeholders, for example
// `person WHERE name = ?`.
func (m *Manager) Exists(ctx context.Context, clause string, params ...any) (bool, error) {
	return Object[bool](ctx, m.SQL("SELECT EXISTS (SELECT 1 FROM "+clause+")", params...))
}

func (m *Manager) exec(ctx context.Context, op, sql string, args []any) error {
	querier, err := m.Querier(ctx)
	if err != nil {
		return err
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
