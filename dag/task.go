// Package dag builds dependency graphs of tasks and runs them in order,
// skipping tasks whose output artifact is already published.
//
// Tasks exchange data only through the artifact store: a task reads its
// upstream outputs by name and writes exactly one artifact of its own.
package dag

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/justapithecus/crease/artifact"
)

// Params are a task's parameters. Their canonical form is part of the
// task's identity.
type Params map[string]string

// String renders params as sorted "k=v" pairs joined by commas.
func (p Params) String() string {
	keys := slices.Sorted(maps.Keys(p))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + p[k]
	}
	return strings.Join(parts, ",")
}

// ID identifies a task. Two tasks with equal IDs are the same graph node.
type ID struct {
	Name   string
	Params string
}

// NewID returns the identity for name with params.
func NewID(name string, params Params) ID {
	return ID{Name: name, Params: params.String()}
}

func (id ID) String() string {
	if id.Params == "" {
		return id.Name
	}
	return id.Name + "(" + id.Params + ")"
}

// Task is a unit of work with declared upstream dependencies.
type Task interface {
	// ID returns the task identity.
	ID() ID
	// Requires returns upstream tasks in declaration order.
	Requires() []Task
	// Output returns the name of the single artifact the task produces.
	Output() string
	// Produce writes the task's artifact to w. Upstream outputs are read
	// from in by name.
	Produce(ctx context.Context, in artifact.Reader, w io.Writer) error
}

// ProduceFunc is the body of a FuncTask.
type ProduceFunc func(ctx context.Context, in artifact.Reader, w io.Writer) error

// FuncTask is a Task assembled from a name, parameters, an output name
// and a produce function.
type FuncTask struct {
	id       ID
	output   string
	requires []Task
	produce  ProduceFunc
}

// NewTask builds a FuncTask.
func NewTask(name string, params Params, output string, produce ProduceFunc, requires ...Task) *FuncTask {
	return &FuncTask{
		id:       NewID(name, params),
		output:   output,
		requires: requires,
		produce:  produce,
	}
}

// ID returns the task identity.
func (t *FuncTask) ID() ID { return t.id }

// Requires returns upstream tasks.
func (t *FuncTask) Requires() []Task { return t.requires }

// Output returns the artifact name.
func (t *FuncTask) Output() string { return t.output }

// Produce invokes the produce function.
func (t *FuncTask) Produce(ctx context.Context, in artifact.Reader, w io.Writer) error {
	return t.produce(ctx, in, w)
}
