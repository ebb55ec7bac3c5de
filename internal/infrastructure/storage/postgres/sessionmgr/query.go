package sessionmgr

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"txkit/internal/core/apperror"
	"txkit/internal/infrastructure/storage/postgres"
)

// Query is a parameter-binding wrapper around a raw SQL statement.
//
// Positional parameters use "?" and are bound in order from the arguments
// given to Manager.SQL. Named parameters use ":name" and are bound with Param;
// a slice value expands to a comma separated list for IN clauses. Postgres
// "::" casts and "??" are left alone. Binding errors are deferred to the
// terminal call.
type Query struct {
	m          *Manager
	sql        string
	positional []any
	named      map[string]any
	offset     int
	rows       int
	err        error
}

// Param binds a named parameter. value must not be nil.
func (q *Query) Param(name string, value any) *Query {
	if value == nil {
		q.fail(apperror.NewValidation("named parameter value is nil").WithDetail("param", name))
		return q
	}
	if q.named == nil {
		q.named = make(map[string]any)
	}
	q.named[name] = value
	return q
}

// Limit sets the maximum number of rows returned.
func (q *Query) Limit(rows int) *Query {
	if rows <= 0 {
		q.fail(apperror.NewValidation("maximum rows count must be positive").WithDetail("rows", rows))
		return q
	}
	q.rows = rows
	return q
}

// Page sets the first row offset (from 0) and the maximum number of rows.
func (q *Query) Page(offset, rows int) *Query {
	if offset < 0 {
		q.fail(apperror.NewValidation("first record offset must not be negative").WithDetail("offset", offset))
		return q
	}
	q.offset = offset
	return q.Limit(rows)
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// ToSQL returns the statement with "$n" placeholders and its arguments in
// placeholder order.
func (q *Query) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	sql, args, err := bind(q.sql, q.positional, q.named)
	if err != nil {
		return "", nil, err
	}
	if q.rows > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.rows)
	}
	if q.offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", q.offset)
	}

	sql, err = squirrel.Dollar.ReplacePlaceholders(sql)
	if err != nil {
		return "", nil, fmt.Errorf("replace placeholders: %w", err)
	}
	return sql, args, nil
}

// Object scans the single row returned by q into T: a struct with "db" tags
// or a scalar for a one-column result. No row yields a not-found error.
func Object[T any](ctx context.Context, q *Query) (T, error) {
	var dst T
	querier, sql, args, err := q.prepare(ctx)
	if err != nil {
		return dst, err
	}
	if err := pgxscan.Get(ctx, querier, &dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return dst, apperror.NewNotFound("row", q.sql)
		}
		return dst, fmt.Errorf("query object: %w", err)
	}
	return dst, nil
}

// ObjectOr is Object returning def when q yields no row or, for scalar T,
// a NULL value.
func ObjectOr[T any](ctx context.Context, q *Query, def T) (T, error) {
	if reflect.TypeFor[T]().Kind() == reflect.Struct {
		v, err := Object[T](ctx, q)
		if apperror.IsNotFound(err) {
			return def, nil
		}
		return v, err
	}

	var dst *T
	querier, sql, args, err := q.prepare(ctx)
	if err != nil {
		return def, err
	}
	if err := pgxscan.Get(ctx, querier, &dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return def, nil
		}
		return def, fmt.Errorf("query object: %w", err)
	}
	if dst == nil {
		return def, nil
	}
	return *dst, nil
}

// List scans every row returned by q into a slice of T.
func List[T any](ctx context.Context, q *Query) ([]T, error) {
	var dst []T
	querier, sql, args, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.Select(ctx, querier, &dst, sql, args...); err != nil {
		return nil, fmt.Errorf("query list: %w", err)
	}
	return dst, nil
}

// Map reads a two-column result: the first column is the key, the second the
// value. Later rows overwrite earlier ones with the same key.
func Map[K comparable, V any](ctx context.Context, q *Query) (map[K]V, error) {
	querier, sql, args, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query map: %w", err)
	}

	var (
		key   K
		value V
	)
	res := make(map[K]V)
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		res[key] = value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan map: %w", err)
	}
	return res, nil
}

// Update executes q and returns the number of affected rows.
func (q *Query) Update(ctx context.Context) (int64, error) {
	querier, sql, args, err := q.prepare(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("execute update: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete is Update for delete statements.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	return q.Update(ctx)
}

func (q *Query) prepare(ctx context.Context) (postgres.Querier, string, []any, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, "", nil, err
	}
	querier, err := q.m.Querier(ctx)
	if err != nil {
		return nil, "", nil, err
	}
	return querier, sql, args, nil
}

// bind replaces every ":name" with "?" placeholders and returns the arguments
// in textual order. Quoted literals and identifiers, comments and
// dollar-quoted bodies are copied verbatim; a "?" inside them is escaped so
// the placeholder rewrite keeps it literal.
func bind(sql string, positional []any, named map[string]any) (string, []any, error) {
	var (
		out  strings.Builder
		args = make([]any, 0, len(positional)+len(named))
		next int
	)
	out.Grow(len(sql))

	for i := 0; i < len(sql); i++ {
		if end := verbatimEnd(sql, i); end >= 0 {
			out.WriteString(strings.ReplaceAll(sql[i:end], "?", "??"))
			i = end - 1
			continue
		}

		c := sql[i]
		switch {
		case c == '?' && i+1 < len(sql) && sql[i+1] == '?':
			out.WriteString("??")
			i++

		case c == '?':
			if next >= len(positional) {
				return "", nil, apperror.NewValidation("not enough positional parameters").WithDetail("sql", sql)
			}
			args = append(args, positional[next])
			next++
			out.WriteByte('?')

		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			out.WriteString("::")
			i++

		case c == ':' && i+1 < len(sql) && isIdentStart(sql[i+1]):
			j := i + 1
			for j < len(sql) && isIdentPart(sql[j]) {
				j++
			}
			name := sql[i+1 : j]
			value, ok := named[name]
			if !ok {
				return "", nil, apperror.NewValidation("unbound named parameter").WithDetail("param", name)
			}
			expanded, err := expand(name, value)
			if err != nil {
				return "", nil, err
			}
			out.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(expanded)), ", "))
			args = append(args, expanded...)
			i = j - 1

		default:
			out.WriteByte(c)
		}
	}

	if next != len(positional) {
		return "", nil, apperror.NewValidation("too many positional parameters").
			WithDetail("expected", next).
			WithDetail("given", len(positional))
	}
	return out.String(), args, nil
}

// verbatimEnd returns the end (exclusive) of the quoted literal, quoted
// identifier, comment or dollar-quoted body starting at sql[i], or -1 when
// none starts there. An unterminated segment runs to the end of sql.
func verbatimEnd(sql string, i int) int {
	rest := sql[i:]
	closeAt := func(from int, term string) int {
		if n := strings.Index(rest[from:], term); n >= 0 {
			return i + from + n + len(term)
		}
		return len(sql)
	}

	switch {
	case rest[0] == '\'' || rest[0] == '"':
		return closeAt(1, rest[:1])
	case strings.HasPrefix(rest, "--"):
		return closeAt(2, "\n")
	case strings.HasPrefix(rest, "/*"):
		return closeAt(2, "*/")
	case rest[0] == '$':
		if tag := dollarTag(rest); tag != "" {
			return closeAt(len(tag), tag)
		}
	}
	return -1
}

// dollarTag returns the opening "$tag$" (or "$$") at the start of s.
func dollarTag(s string) string {
	j := 1
	for j < len(s) && isIdentPart(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '$' && (j == 1 || isIdentStart(s[1])) {
		return s[:j+1]
	}
	return ""
}

// expand turns a slice or array value into its elements. Byte slices are
// scalar values.
func expand(name string, value any) ([]any, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}, nil
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return []any{value}, nil
	}
	if rv.Len() == 0 {
		return nil, apperror.NewValidation("empty list for named parameter").WithDetail("param", name)
	}
	res := make([]any, rv.Len())
	for i := range res {
		res[i] = rv.Index(i).Interface()
	}
	return res, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
