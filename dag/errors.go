package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle matches any CyclicGraphError.
	ErrCycle = errors.New("cyclic task graph")

	// ErrInvalidGraph is returned for structural defects other than cycles:
	// a task without an output, one ID with two outputs, or one output
	// claimed by two tasks.
	ErrInvalidGraph = errors.New("invalid task graph")
)

// CyclicGraphError reports a dependency cycle. Cycle starts and ends with
// the same task.
type CyclicGraphError struct {
	Cycle []ID
}

func (e *CyclicGraphError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		names[i] = id.String()
	}
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(names, " -> "))
}

// Is reports whether target is ErrCycle.
func (e *CyclicGraphError) Is(target error) bool {
	return target == ErrCycle
}

// TaskError wraps a produce failure with the failing task.
type TaskError struct {
	Task ID
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
