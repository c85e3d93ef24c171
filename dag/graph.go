package dag

import (
	"fmt"

	"github.com/justapithecus/crease/artifact"
)

// Graph is a deduplicated task graph in topological order.
type Graph struct {
	order []Task
	deps  map[ID][]ID
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

type builder struct {
	state  map[ID]visitState
	tasks  map[ID]Task
	owners map[string]ID
	deps   map[ID][]ID
	order  []Task
	path   []ID
}

// Build walks targets and their requirements depth-first. Dependencies are
// visited in declaration order and a task is appended after all of its
// dependencies, so ties in the resulting order follow declaration order.
func Build(targets ...Task) (*Graph, error) {
	b := &builder{
		state:  make(map[ID]visitState),
		tasks:  make(map[ID]Task),
		owners: make(map[string]ID),
		deps:   make(map[ID][]ID),
	}
	for _, t := range targets {
		if err := b.visit(t); err != nil {
			return nil, err
		}
	}
	return &Graph{order: b.order, deps: b.deps}, nil
}

func (b *builder) visit(t Task) error {
	id := t.ID()

	switch b.state[id] {
	case visited:
		if prev := b.tasks[id]; prev.Output() != t.Output() {
			return fmt.Errorf("%w: task %s declares outputs %q and %q",
				ErrInvalidGraph, id, prev.Output(), t.Output())
		}
		return nil
	case visiting:
		return &CyclicGraphError{Cycle: b.cycleTo(id)}
	}

	if err := artifact.ValidateName(t.Output()); err != nil {
		return fmt.Errorf("%w: task %s: %v", ErrInvalidGraph, id, err)
	}
	if owner, ok := b.owners[t.Output()]; ok && owner != id {
		return fmt.Errorf("%w: tasks %s and %s both produce %q",
			ErrInvalidGraph, owner, id, t.Output())
	}

	b.state[id] = visiting
	b.tasks[id] = t
	b.owners[t.Output()] = id
	b.path = append(b.path, id)

	var deps []ID
	for _, dep := range t.Requires() {
		if err := b.visit(dep); err != nil {
			return err
		}
		if !containsID(deps, dep.ID()) {
			deps = append(deps, dep.ID())
		}
	}

	b.path = b.path[:len(b.path)-1]
	b.state[id] = visited
	b.deps[id] = deps
	b.order = append(b.order, t)
	return nil
}

func (b *builder) cycleTo(id ID) []ID {
	for i, p := range b.path {
		if p == id {
			cycle := append([]ID{}, b.path[i:]...)
			return append(cycle, id)
		}
	}
	return []ID{id, id}
}

func containsID(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Tasks returns the tasks in topological order.
func (g *Graph) Tasks() []Task {
	return g.order
}

// Requires returns the deduplicated upstream IDs of id.
func (g *Graph) Requires(id ID) []ID {
	return g.deps[id]
}

// Len returns the number of distinct tasks.
func (g *Graph) Len() int {
	return len(g.order)
}
