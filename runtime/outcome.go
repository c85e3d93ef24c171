package runtime

import (
	"context"
	"errors"

	"github.com/justapithecus/crease/dag"
	"github.com/justapithecus/crease/types"
	"github.com/justapithecus/crease/warehouse"
)

// Process exit codes for each outcome.
const (
	ExitCodeSuccess     = 0 // every task ran and every table loaded
	ExitCodeTaskFailure = 1 // an extraction or cleaning task failed
	ExitCodeConfigError = 2 // cycle, ordering violation, invalid spec or bad config
	ExitCodeLoadFailure = 3 // a table load was rolled back
	ExitCodeCanceled    = 130
)

// ErrConfig marks configuration errors detected before a run starts.
var ErrConfig = errors.New("invalid configuration")

// Phase is the stage of a run an error surfaced in.
type Phase string

const (
	// PhaseSetup covers validation and schema creation.
	PhaseSetup Phase = "setup"
	// PhaseTasks covers the extraction and cleaning task graph.
	PhaseTasks Phase = "tasks"
	// PhaseLoad covers the warehouse load.
	PhaseLoad Phase = "load"
)

// Classify maps a run error to an outcome status. Cancellation and
// structural defects are recognized in any phase. A TaskError, or any
// other error during PhaseTasks, is a task failure. Everything else
// (LoadError, UnresolvedReferenceError, a missing cleaned artifact, a
// schema failure) is a load failure.
func Classify(err error, phase Phase) types.OutcomeStatus {
	switch {
	case err == nil:
		return types.OutcomeSuccess
	case errors.Is(err, context.Canceled):
		return types.OutcomeCanceled
	case errors.Is(err, ErrConfig),
		errors.Is(err, dag.ErrCycle),
		errors.Is(err, dag.ErrInvalidGraph),
		errors.Is(err, warehouse.ErrOrdering),
		errors.Is(err, warehouse.ErrInvalidSpec):
		return types.OutcomeConfigError
	}

	var taskErr *dag.TaskError
	if errors.As(err, &taskErr) || phase == PhaseTasks {
		return types.OutcomeTaskFailure
	}
	return types.OutcomeLoadFailure
}

// ExitCode returns the process exit code for an outcome status.
func ExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeTaskFailure:
		return ExitCodeTaskFailure
	case types.OutcomeConfigError:
		return ExitCodeConfigError
	case types.OutcomeLoadFailure:
		return ExitCodeLoadFailure
	case types.OutcomeCanceled:
		return ExitCodeCanceled
	default:
		return ExitCodeTaskFailure
	}
}
