package dag

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/justapithecus/crease/artifact"
	"github.com/justapithecus/crease/log"
	"github.com/justapithecus/crease/metrics"
)

// State is a task's disposition in a plan.
type State string

const (
	// StateComplete means the output artifact is already published.
	StateComplete State = "complete"
	// StatePending means the task must run.
	StatePending State = "pending"
	// StateNotRequired means the task is incomplete but every task that
	// needs it is already complete.
	StateNotRequired State = "not_required"
)

// Step is one task in a plan.
type Step struct {
	Task     Task
	State    State
	Requires []ID
}

// Plan is the ordered set of steps for a set of targets.
type Plan struct {
	Steps []Step
}

// Pending returns the IDs of tasks that must run, in execution order.
func (p *Plan) Pending() []ID {
	return pendingIDs(p.Steps)
}

// Report summarizes a Run.
type Report struct {
	Executed     []ID
	Skipped      []ID
	NotRequired  []ID
	Failed       *ID
	NotAttempted []ID
	Duration     time.Duration
}

// Scheduler runs task graphs sequentially against an artifact store.
type Scheduler struct {
	store     artifact.Store
	logger    *log.Logger
	collector *metrics.Collector
}

// NewScheduler creates a Scheduler. logger and collector may be nil.
func NewScheduler(store artifact.Store, logger *log.Logger, collector *metrics.Collector) *Scheduler {
	return &Scheduler{
		store:     store,
		logger:    log.OrNop(logger),
		collector: collector,
	}
}

// Plan builds the graph for targets and decides, without executing
// anything, which tasks must run.
//
// Completeness is checked once per task. A complete task satisfies its
// consumers, so its own upstream tasks are needed only if some incomplete
// task also depends on them.
func (s *Scheduler) Plan(ctx context.Context, targets ...Task) (*Plan, error) {
	g, err := Build(targets...)
	if err != nil {
		return nil, err
	}

	tasks := g.Tasks()
	complete := make(map[ID]bool, len(tasks))
	for _, t := range tasks {
		ok, err := s.store.Exists(ctx, t.Output())
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", t.ID(), err)
		}
		complete[t.ID()] = ok
	}

	needed := make(map[ID]bool, len(tasks))
	for _, t := range targets {
		needed[t.ID()] = true
	}
	// Consumers precede producers in reverse topological order.
	for i := len(tasks) - 1; i >= 0; i-- {
		id := tasks[i].ID()
		if needed[id] && !complete[id] {
			for _, dep := range g.Requires(id) {
				needed[dep] = true
			}
		}
	}

	plan := &Plan{Steps: make([]Step, len(tasks))}
	for i, t := range tasks {
		id := t.ID()
		state := StateNotRequired
		switch {
		case complete[id]:
			state = StateComplete
		case needed[id]:
			state = StatePending
		}
		plan.Steps[i] = Step{Task: t, State: state, Requires: g.Requires(id)}
	}
	return plan, nil
}

// Run executes every pending task of the plan for targets in order. The
// first failure aborts the run; its artifact stays absent and no later task
// is attempted.
func (s *Scheduler) Run(ctx context.Context, targets ...Task) (*Report, error) {
	start := time.Now()
	report := &Report{}

	plan, err := s.Plan(ctx, targets...)
	if err != nil {
		return report, err
	}
	s.logger.Info("task plan built", map[string]any{
		"tasks":   len(plan.Steps),
		"pending": len(plan.Pending()),
	})

	for i, step := range plan.Steps {
		id := step.Task.ID()

		switch step.State {
		case StateComplete:
			report.Skipped = append(report.Skipped, id)
			s.collector.IncTaskSkipped()
			s.logger.Debug("task complete, skipping", map[string]any{
				"task":   id.String(),
				"output": step.Task.Output(),
			})
			continue
		case StateNotRequired:
			report.NotRequired = append(report.NotRequired, id)
			s.collector.IncTaskNotRequired()
			s.logger.Debug("task not required", map[string]any{"task": id.String()})
			continue
		}

		if err := s.execute(ctx, step.Task); err != nil {
			report.Failed = &id
			report.NotAttempted = pendingIDs(plan.Steps[i+1:])
			report.Duration = time.Since(start)
			return report, &TaskError{Task: id, Err: err}
		}
		report.Executed = append(report.Executed, id)
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (s *Scheduler) execute(ctx context.Context, t Task) error {
	id := t.ID().String()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("task started", map[string]any{"task": id, "output": t.Output()})
	start := time.Now()

	err := s.store.Write(ctx, t.Output(), func(w io.Writer) error {
		return t.Produce(ctx, s.store, w)
	})
	if err != nil {
		s.collector.IncTaskFailed()
		s.collector.IncArtifactWriteFailure()
		s.logger.Error("task failed", map[string]any{
			"task":  id,
			"error": err.Error(),
		})
		return err
	}

	s.collector.IncTaskExecuted()
	s.collector.IncArtifactWriteSuccess()
	s.logger.Info("task finished", map[string]any{
		"task":        id,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func pendingIDs(steps []Step) []ID {
	var ids []ID
	for _, s := range steps {
		if s.State == StatePending {
			ids = append(ids, s.Task.ID())
		}
	}
	return ids
}
