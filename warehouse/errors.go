package warehouse

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrdering matches any OrderingError.
	ErrOrdering = errors.New("table load ordering violation")

	// ErrUnresolvedReference matches any UnresolvedReferenceError.
	ErrUnresolvedReference = errors.New("unresolved foreign key reference")

	// ErrLoad matches any LoadError.
	ErrLoad = errors.New("table load failed")
)

// OrderingError reports a table listed before a table it references, or a
// reference to a table outside the load set.
type OrderingError struct {
	Table      string
	References string
	Reason     string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("%v: %s references %s: %s", ErrOrdering, e.Table, e.References, e.Reason)
}

// Is reports whether target is ErrOrdering.
func (e *OrderingError) Is(target error) bool {
	return target == ErrOrdering
}

// UnresolvedReferenceError lists the values of a fact column that have no
// match in the referenced table.
type UnresolvedReferenceError struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
	Values    []any
}

func (e *UnresolvedReferenceError) Error() string {
	vals := make([]string, len(e.Values))
	for i, v := range e.Values {
		vals[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%v: %s.%s -> %s.%s: %s",
		ErrUnresolvedReference, e.Table, e.Column, e.RefTable, e.RefColumn, strings.Join(vals, ", "))
}

// Is reports whether target is ErrUnresolvedReference.
func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

// LoadError wraps a failure while preparing or writing a table's rows.
// The table's transaction has been rolled back.
type LoadError struct {
	Table string
	Op    string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s: %v", e.Table, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}
