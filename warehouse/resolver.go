package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// resolveChunk bounds the number of values per lookup query.
const resolveChunk = 500

// Resolution maps a business value's key (see valueKey) to the
// referenced table's key value.
type Resolution map[string]any

// ForeignKeyResolver translates business values into references held by
// an already-loaded table.
type ForeignKeyResolver interface {
	Resolve(ctx context.Context, ref Reference, values []any) (Resolution, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLResolver looks references up with SELECT ... WHERE column IN (...).
type SQLResolver struct {
	q       Querier
	dialect Dialect
}

// NewSQLResolver creates a resolver over q. Pass the load transaction so
// lookups see the same snapshot the insert will commit against.
func NewSQLResolver(q Querier, dialect Dialect) *SQLResolver {
	return &SQLResolver{q: q, dialect: dialect}
}

// Resolve returns the matches for values. Values without a match are
// absent from the result.
func (r *SQLResolver) Resolve(ctx context.Context, ref Reference, values []any) (Resolution, error) {
	out := make(Resolution, len(values))
	for start := 0; start < len(values); start += resolveChunk {
		end := min(start+resolveChunk, len(values))
		if err := r.resolveChunk(ctx, ref, values[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *SQLResolver) resolveChunk(ctx context.Context, ref Reference, values []any, out Resolution) error {
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
		quoteIdent(ref.Column),
		quoteIdent(ref.KeyColumn()),
		quoteIdent(ref.Table),
		quoteIdent(ref.Column),
		r.dialect.Placeholders(1, len(values)),
	)

	rows, err := r.q.QueryContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ref, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var business, key any
		if err := rows.Scan(&business, &key); err != nil {
			return fmt.Errorf("resolve %s: scan: %w", ref, err)
		}
		out[valueKey(business)] = key
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("resolve %s: %w", ref, err)
	}
	return nil
}
