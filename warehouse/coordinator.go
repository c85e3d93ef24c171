package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/justapithecus/crease/artifact"
	"github.com/justapithecus/crease/log"
	"github.com/justapithecus/crease/metrics"
)

// Coordinator drives an ordered list of specs through the dimension and
// fact loaders. It is the only place that knows cross-table load order.
type Coordinator struct {
	source    artifact.Reader
	dims      Loader
	facts     Loader
	logger    *log.Logger
	collector *metrics.Collector
}

// NewCoordinator creates a Coordinator that reads cleaned tables from
// source and loads them into db. logger and collector may be nil.
func NewCoordinator(db *sql.DB, dialect Dialect, source artifact.Reader, logger *log.Logger, collector *metrics.Collector) *Coordinator {
	logger = log.OrNop(logger)
	return &Coordinator{
		source:    source,
		dims:      NewDimensionLoader(db, dialect, logger),
		facts:     NewFactLoader(db, dialect, logger),
		logger:    logger,
		collector: collector,
	}
}

// Run checks the declared order of specs, then loads each spec in that
// order. Loading stops at the first failure; tables committed before it
// stay committed. Results are returned for every committed table.
func (c *Coordinator) Run(ctx context.Context, specs []TableSpec) ([]LoadResult, error) {
	if err := CheckOrder(specs); err != nil {
		return nil, err
	}

	results := make([]LoadResult, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := c.load(ctx, spec)
		if err != nil {
			c.collector.IncTableFailed()
			c.logger.Error("table load failed", map[string]any{
				"table": spec.Name,
				"error": err.Error(),
			})
			return results, err
		}
		c.collector.RecordTableLoad(spec.Name, res.Inserted, res.Skipped, int64(res.Duplicates))
		results = append(results, *res)
	}
	return results, nil
}

func (c *Coordinator) load(ctx context.Context, spec *TableSpec) (*LoadResult, error) {
	data, err := artifact.ReadTable(ctx, c.source, spec.Artifact)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", spec.Name, err)
	}

	switch spec.Kind {
	case Dimension:
		return c.dims.Load(ctx, spec, data)
	case Fact:
		return c.facts.Load(ctx, spec, data)
	default:
		return nil, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidSpec, spec.Name, spec.Kind)
	}
}
