package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/justapithecus/crease/log"
	"github.com/justapithecus/crease/types"
)

// LoadResult summarizes one committed table load.
type LoadResult struct {
	Table string `json:"table"`
	Kind  Kind   `json:"kind"`
	// RowsIn is the artifact row count before deduplication.
	RowsIn int `json:"rows_in"`
	// Duplicates were dropped because a later row had the same identity.
	Duplicates int `json:"duplicates"`
	// Inserted counts rows written, including overwrites under ConflictUpdate.
	Inserted int64 `json:"inserted"`
	// Skipped counts rows whose identity already existed under ConflictSkip.
	Skipped  int64         `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Loader loads one table artifact in a single transaction.
type Loader interface {
	Load(ctx context.Context, spec *TableSpec, data *types.Table) (*LoadResult, error)
}

// DimensionLoader upserts reference tables. It resolves no references.
type DimensionLoader struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// NewDimensionLoader creates a DimensionLoader. logger may be nil.
func NewDimensionLoader(db *sql.DB, dialect Dialect, logger *log.Logger) *DimensionLoader {
	return &DimensionLoader{db: db, dialect: dialect, logger: log.OrNop(logger)}
}

// Load upserts data into spec's table. Any failure rolls the whole table
// back and is returned as a *LoadError.
func (l *DimensionLoader) Load(ctx context.Context, spec *TableSpec, data *types.Table) (*LoadResult, error) {
	if spec.Kind != Dimension {
		return nil, &LoadError{Table: spec.Name, Op: "validate", Err: fmt.Errorf("%w: kind %q is not %q", ErrInvalidSpec, spec.Kind, Dimension)}
	}
	return runLoad(ctx, l.db, l.dialect, l.logger, spec, data, nil)
}

// FactLoader upserts event tables after resolving their merge columns
// against tables already committed.
type FactLoader struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// NewFactLoader creates a FactLoader. logger may be nil.
func NewFactLoader(db *sql.DB, dialect Dialect, logger *log.Logger) *FactLoader {
	return &FactLoader{db: db, dialect: dialect, logger: log.OrNop(logger)}
}

// Load resolves references with a SQLResolver bound to the load
// transaction, then inserts.
func (l *FactLoader) Load(ctx context.Context, spec *TableSpec, data *types.Table) (*LoadResult, error) {
	return l.LoadWith(ctx, spec, data, nil)
}

// LoadWith loads using resolver for reference lookups. A nil resolver
// uses a SQLResolver bound to the load transaction.
func (l *FactLoader) LoadWith(ctx context.Context, spec *TableSpec, data *types.Table, resolver ForeignKeyResolver) (*LoadResult, error) {
	if spec.Kind != Fact {
		return nil, &LoadError{Table: spec.Name, Op: "validate", Err: fmt.Errorf("%w: kind %q is not %q", ErrInvalidSpec, spec.Kind, Fact)}
	}
	return runLoad(ctx, l.db, l.dialect, l.logger, spec, data, func(tx *sql.Tx) ForeignKeyResolver {
		if resolver != nil {
			return resolver
		}
		return NewSQLResolver(tx, l.dialect)
	})
}

// runLoad is the shared transaction body. resolverFor is nil for
// dimension loads.
func runLoad(
	ctx context.Context,
	db *sql.DB,
	dialect Dialect,
	logger *log.Logger,
	spec *TableSpec,
	data *types.Table,
	resolverFor func(*sql.Tx) ForeignKeyResolver,
) (*LoadResult, error) {
	start := time.Now()
	if err := spec.Validate(); err != nil {
		return nil, &LoadError{Table: spec.Name, Op: "validate", Err: err}
	}

	b, err := prepare(spec, data)
	if err != nil {
		return nil, &LoadError{Table: spec.Name, Op: "prepare", Err: err}
	}
	result := &LoadResult{
		Table:      spec.Name,
		Kind:       spec.Kind,
		RowsIn:     data.Len(),
		Duplicates: b.duplicates,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &LoadError{Table: spec.Name, Op: "begin", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if resolverFor != nil {
		if err := substituteReferences(ctx, resolverFor(tx), spec, b.rows); err != nil {
			return nil, err
		}
	}

	inserted, skipped, err := insertRows(ctx, tx, dialect, spec, b.rows)
	if err != nil {
		return nil, &LoadError{Table: spec.Name, Op: "insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &LoadError{Table: spec.Name, Op: "commit", Err: err}
	}
	committed = true

	result.Inserted = inserted
	result.Skipped = skipped
	result.Duration = time.Since(start)

	logger.Info("table loaded", map[string]any{
		"table":       spec.Name,
		"kind":        string(spec.Kind),
		"rows_in":     result.RowsIn,
		"duplicates":  result.Duplicates,
		"inserted":    result.Inserted,
		"skipped":     result.Skipped,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

// substituteReferences replaces every non-null merge column value with its
// resolved key. Any unmatched value fails the whole load.
func substituteReferences(ctx context.Context, resolver ForeignKeyResolver, spec *TableSpec, rows [][]any) error {
	for _, local := range spec.MergeColumns() {
		ref := spec.MergeCols[local]
		col := slices.Index(spec.Columns, local)

		var distinct []any
		seen := make(map[string]bool)
		for _, row := range rows {
			v := row[col]
			if v == nil || seen[valueKey(v)] {
				continue
			}
			seen[valueKey(v)] = true
			distinct = append(distinct, v)
		}
		if len(distinct) == 0 {
			continue
		}

		resolved, err := resolver.Resolve(ctx, ref, distinct)
		if err != nil {
			return &LoadError{Table: spec.Name, Op: "resolve " + local, Err: err}
		}

		var unresolved []any
		for _, v := range distinct {
			if _, ok := resolved[valueKey(v)]; !ok {
				unresolved = append(unresolved, v)
			}
		}
		if len(unresolved) > 0 {
			return &UnresolvedReferenceError{
				Table:     spec.Name,
				Column:    local,
				RefTable:  ref.Table,
				RefColumn: ref.Column,
				Values:    unresolved,
			}
		}

		for _, row := range rows {
			if row[col] != nil {
				row[col] = resolved[valueKey(row[col])]
			}
		}
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, dialect Dialect, spec *TableSpec, rows [][]any) (inserted, skipped int64, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, dialect.upsertSQL(spec))
	if err != nil {
		return 0, 0, fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, 0, fmt.Errorf("row %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, fmt.Errorf("row %d: rows affected: %w", i, err)
		}
		if n > 0 {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}
