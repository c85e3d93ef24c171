// Package runtime orchestrates a single pipeline run: the task graph, the
// warehouse load, metrics export and the completion notification.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/crease/adapter"
	"github.com/justapithecus/crease/artifact"
	"github.com/justapithecus/crease/dag"
	"github.com/justapithecus/crease/log"
	"github.com/justapithecus/crease/metrics"
	"github.com/justapithecus/crease/types"
	"github.com/justapithecus/crease/warehouse"
)

// notifyTimeout bounds metrics export and adapter publish after the run.
const notifyTimeout = 30 * time.Second

// RunConfig configures a single run.
type RunConfig struct {
	// RunMeta is the run identity and lineage metadata.
	RunMeta *types.RunMeta
	// Targets are the terminal tasks of the graph.
	Targets []dag.Task
	// Specs are the tables to load, in load order.
	Specs []warehouse.TableSpec
	// Store holds task artifacts.
	Store artifact.Store
	// DB is the warehouse connection. Required unless SkipLoad is set.
	DB *sql.DB
	// Dialect matches DB.
	Dialect warehouse.Dialect
	// CreateSchema creates missing warehouse tables before loading.
	CreateSchema bool
	// SkipLoad stops the run after the task graph.
	SkipLoad bool
	// Adapter receives the run completed event. Optional.
	Adapter adapter.Adapter
	// Collector records run metrics. If nil, no metrics are recorded.
	Collector *metrics.Collector
	// MetricsTextfile is the Prometheus textfile path. Optional.
	MetricsTextfile string
	// Logger overrides the run logger. If nil, one is built from RunMeta.
	Logger *log.Logger
}

// RunResult represents the result of a run.
type RunResult struct {
	// RunMeta is the run identity and lineage.
	RunMeta *types.RunMeta
	// Outcome is the run outcome.
	Outcome *types.RunOutcome
	// Phase is the phase the run ended in.
	Phase Phase
	// Err is the error that ended the run, if any.
	Err error
	// Tasks summarizes the task graph. Nil if the graph never ran.
	Tasks *dag.Report
	// Loads has one entry per committed table.
	Loads []warehouse.LoadResult
	// Duration is the total run duration.
	Duration time.Duration
}

// RowsInserted sums inserted rows over every committed table.
func (r *RunResult) RowsInserted() int64 {
	var n int64
	for _, l := range r.Loads {
		n += l.Inserted
	}
	return n
}

// RunOrchestrator orchestrates a single run.
type RunOrchestrator struct {
	config    *RunConfig
	logger    *log.Logger
	startTime time.Time
}

// NewRunOrchestrator creates a new run orchestrator.
// Returns an error wrapping ErrConfig if the configuration is unusable.
func NewRunOrchestrator(config *RunConfig) (*RunOrchestrator, error) {
	if config.RunMeta == nil {
		return nil, fmt.Errorf("%w: run metadata is required", ErrConfig)
	}
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid run metadata: %w", ErrConfig, err)
	}
	if config.Store == nil {
		return nil, fmt.Errorf("%w: artifact store is required", ErrConfig)
	}
	if len(config.Targets) == 0 {
		return nil, fmt.Errorf("%w: no target tasks", ErrConfig)
	}
	if !config.SkipLoad && config.DB == nil {
		return nil, fmt.Errorf("%w: warehouse connection is required unless loading is skipped", ErrConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.RunMeta)
	}

	return &RunOrchestrator{
		config: config,
		logger: logger,
	}, nil
}

// Execute runs the pipeline end-to-end. Failures are reported in the
// result's outcome, never as a returned error.
//
// Execution flow:
//  1. Check table order and optionally create the schema
//  2. Run the task graph
//  3. Load the cleaned tables
//  4. Export metrics and publish the completion event (best effort)
func (r *RunOrchestrator) Execute(ctx context.Context) *RunResult {
	r.startTime = time.Now()
	r.config.Collector.IncRunStarted()

	r.logger.Info("starting run", map[string]any{
		"targets":   len(r.config.Targets),
		"tables":    len(r.config.Specs),
		"skip_load": r.config.SkipLoad,
	})

	result := &RunResult{RunMeta: r.config.RunMeta}
	result.Phase, result.Err = r.execute(ctx, result)

	status := Classify(result.Err, result.Phase)
	result.Outcome = &types.RunOutcome{Status: status, Message: outcomeMessage(status, result.Err)}
	result.Duration = time.Since(r.startTime)

	if status == types.OutcomeSuccess {
		r.config.Collector.IncRunCompleted()
		r.logger.Info("run completed", map[string]any{
			"outcome":       status,
			"duration":      result.Duration.String(),
			"rows_inserted": result.RowsInserted(),
		})
	} else {
		r.config.Collector.IncRunFailed()
		r.logger.Error("run failed", map[string]any{
			"outcome":  status,
			"phase":    result.Phase,
			"error":    result.Err.Error(),
			"duration": result.Duration.String(),
		})
	}

	// Use WithoutCancel so a canceled run still reports how it ended.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	r.exportMetrics()
	r.publish(notifyCtx, result)

	return result
}

func (r *RunOrchestrator) execute(ctx context.Context, result *RunResult) (Phase, error) {
	cfg := r.config

	if !cfg.SkipLoad {
		if err := warehouse.CheckOrder(cfg.Specs); err != nil {
			return PhaseSetup, err
		}
		if cfg.CreateSchema {
			if err := warehouse.CreateSchema(ctx, cfg.DB, cfg.Specs); err != nil {
				return PhaseSetup, err
			}
			r.logger.Info("warehouse schema ready", map[string]any{"tables": len(cfg.Specs)})
		}
	}

	scheduler := dag.NewScheduler(cfg.Store, r.logger, cfg.Collector)
	report, err := scheduler.Run(ctx, cfg.Targets...)
	result.Tasks = report
	if err != nil {
		return PhaseTasks, err
	}
	r.logger.Info("task graph finished", map[string]any{
		"executed":     len(report.Executed),
		"skipped":      len(report.Skipped),
		"not_required": len(report.NotRequired),
		"duration":     report.Duration.String(),
	})

	if cfg.SkipLoad {
		return PhaseTasks, nil
	}

	coord := warehouse.NewCoordinator(cfg.DB, cfg.Dialect, cfg.Store, r.logger, cfg.Collector)
	loads, err := coord.Run(ctx, cfg.Specs)
	result.Loads = loads
	return PhaseLoad, err
}

func (r *RunOrchestrator) exportMetrics() {
	if r.config.MetricsTextfile == "" || r.config.Collector == nil {
		return
	}
	if err := metrics.WriteTextfile(r.config.MetricsTextfile, r.config.Collector.Snapshot()); err != nil {
		r.logger.Warn("metrics textfile write failed", map[string]any{
			"path":  r.config.MetricsTextfile,
			"error": err.Error(),
		})
	}
}

func (r *RunOrchestrator) publish(ctx context.Context, result *RunResult) {
	if r.config.Adapter == nil {
		return
	}
	event := BuildEvent(result, r.config.Specs)
	if err := r.config.Adapter.Publish(ctx, event); err != nil {
		r.logger.Warn("run completed event not published", map[string]any{
			"error": err.Error(),
		})
		return
	}
	r.logger.Debug("run completed event published", nil)
}

// BuildEvent composes the completion event for a run result.
func BuildEvent(result *RunResult, specs []warehouse.TableSpec) *adapter.RunCompletedEvent {
	tables := make([]string, len(specs))
	for i := range specs {
		tables[i] = specs[i].Name
	}

	event := &adapter.RunCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       adapter.EventTypeRunCompleted,
		RunID:           result.RunMeta.RunID,
		Season:          result.RunMeta.Season,
		Outcome:         string(result.Outcome.Status),
		Tables:          tables,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Attempt:         result.RunMeta.Attempt,
		TablesLoaded:    len(result.Loads),
		RowsInserted:    result.RowsInserted(),
		DurationMs:      result.Duration.Milliseconds(),
	}
	if result.Outcome.Status != types.OutcomeSuccess {
		event.Message = result.Outcome.Message
	}
	if result.Tasks != nil {
		event.TasksExecuted = len(result.Tasks.Executed)
		event.TasksSkipped = len(result.Tasks.Skipped)
	}
	return event
}

func outcomeMessage(status types.OutcomeStatus, err error) string {
	switch status {
	case types.OutcomeSuccess:
		return "run completed successfully"
	case types.OutcomeCanceled:
		return "run canceled"
	}
	var taskErr *dag.TaskError
	if errors.As(err, &taskErr) {
		return fmt.Sprintf("task %s failed: %v", taskErr.Task, taskErr.Err)
	}
	return err.Error()
}
