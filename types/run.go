// Package types defines core domain types shared across crease packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// RunMeta identifies a single pipeline invocation.
type RunMeta struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string
	// Season scopes extraction queries, e.g. "20202021".
	Season string
	// ParentRunID links retry runs to their predecessor. Nil for initial runs.
	ParentRunID *string
	// Attempt is the attempt number. Starts at 1 for initial runs.
	Attempt int
}

// Validate checks run identity and lineage:
//   - run_id and season are non-empty
//   - attempt >= 1
//   - attempt == 1 => parent_run_id must be nil (initial run)
//   - attempt > 1 => parent_run_id must be present (retry run)
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.Season == "" {
		return errors.New("season must be non-empty")
	}

	if r.Attempt < 1 {
		return fmt.Errorf("attempt must be >= 1, got %d", r.Attempt)
	}

	if r.Attempt == 1 && r.ParentRunID != nil {
		return errors.New("initial run (attempt=1) must not have parent_run_id")
	}

	if r.Attempt > 1 && r.ParentRunID == nil {
		return fmt.Errorf("retry run (attempt=%d) must have parent_run_id", r.Attempt)
	}

	return nil
}

// OutcomeStatus represents the final status of a run.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates every requested task ran and every table loaded.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeTaskFailure indicates an extraction or cleaning task failed.
	OutcomeTaskFailure OutcomeStatus = "task_failure"
	// OutcomeConfigError indicates a structural defect: a cycle, an ordering
	// violation, an invalid table spec or bad configuration.
	OutcomeConfigError OutcomeStatus = "config_error"
	// OutcomeLoadFailure indicates a warehouse load failed and was rolled back.
	OutcomeLoadFailure OutcomeStatus = "load_failure"
	// OutcomeCanceled indicates the run context was canceled.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// RunOutcome represents the final outcome of a run.
type RunOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus
	// Message is a human-readable description.
	Message string
}
