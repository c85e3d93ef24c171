package reader

import (
	"context"
	"fmt"
	"slices"

	"github.com/justapithecus/crease/artifact"
	"github.com/justapithecus/crease/dag"
	"github.com/justapithecus/crease/nhl"
	"github.com/justapithecus/crease/warehouse"
)

// Reader answers status and table queries for one season's pipeline.
type Reader struct {
	store    artifact.Store
	pipeline *nhl.Pipeline
}

// New creates a Reader over store. The store is only checked for
// completed artifacts.
func New(store artifact.Store, pipeline *nhl.Pipeline) *Reader {
	return &Reader{store: store, pipeline: pipeline}
}

// Status plans the tasks behind tables (all tables when empty) and reports
// each task's state without running anything.
func (r *Reader) Status(ctx context.Context, tables ...string) (*StatusView, error) {
	targets, specs, err := r.pipeline.Targets(tables...)
	if err != nil {
		return nil, err
	}

	plan, err := dag.NewScheduler(r.store, nil, nil).Plan(ctx, targets...)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	view := &StatusView{
		Season: r.pipeline.Season(),
		Tables: specNames(specs),
		Tasks:  make([]TaskStatus, 0, len(plan.Steps)),
	}
	for _, step := range plan.Steps {
		requires := make([]string, len(step.Requires))
		for i, id := range step.Requires {
			requires[i] = id.String()
		}
		view.Tasks = append(view.Tasks, TaskStatus{
			Task:     step.Task.ID().String(),
			State:    string(step.State),
			Output:   step.Task.Output(),
			Requires: requires,
		})

		switch step.State {
		case dag.StateComplete:
			view.Summary.Complete++
		case dag.StatePending:
			view.Summary.Pending++
		case dag.StateNotRequired:
			view.Summary.NotRequired++
		}
	}
	view.Summary.Total = len(plan.Steps)
	return view, nil
}

// Tables lists the specs behind tables (all tables when empty) in load order.
func (r *Reader) Tables(tables ...string) ([]TableView, error) {
	_, specs, err := r.pipeline.Targets(tables...)
	if err != nil {
		return nil, err
	}

	views := make([]TableView, len(specs))
	for i := range specs {
		s := &specs[i]
		views[i] = TableView{
			Order:      i + 1,
			Name:       s.Name,
			Kind:       string(s.Kind),
			Conflict:   string(s.ConflictPolicy()),
			IDCols:     slices.Clone(s.IDCols),
			DateCols:   nonNil(s.DateCols),
			References: nonNil(s.References()),
			Artifact:   s.Artifact,
		}
	}
	return views, nil
}

func specNames(specs []warehouse.TableSpec) []string {
	names := make([]string, len(specs))
	for i := range specs {
		names[i] = specs[i].Name
	}
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
