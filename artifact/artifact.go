// Package artifact stores the named, immutable intermediate results that
// tasks produce and consume.
//
// An artifact is complete iff it has been published. Writers stage the
// payload privately and publish it in a single step, so a reader never
// observes a partially written artifact.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when reading an artifact that is absent or
	// was never completely published.
	ErrNotFound = errors.New("artifact not found")

	// ErrAlreadyExists is returned when writing an artifact that is already
	// published. Published artifacts are immutable.
	ErrAlreadyExists = errors.New("artifact already exists")

	// ErrInvalidName is returned for names that are empty, absolute, or
	// escape the store root.
	ErrInvalidName = errors.New("invalid artifact name")
)

// NotFoundError identifies the missing artifact.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %q not found", e.Name)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Producer writes an artifact payload. A non-nil error discards everything
// written so far.
type Producer func(w io.Writer) error

// Reader is the read side of a store. Tasks receive only a Reader, so
// upstream outputs are reachable by name and nothing else.
type Reader interface {
	// Exists reports whether a complete artifact is published under name.
	Exists(ctx context.Context, name string) (bool, error)
	// Open returns the published payload. Absent artifacts yield a
	// *NotFoundError.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Store is a durable artifact cache with atomic publish.
type Store interface {
	Reader
	// Write invokes produce against a private staging location and, if it
	// succeeds, publishes the payload under name. On failure the staged
	// payload is discarded and name stays absent.
	Write(ctx context.Context, name string, produce Producer) error
}

// ValidateName checks that name is a clean, relative, slash-separated path.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidName, name)
	}
	if path.Clean(name) != name {
		return fmt.Errorf("%w: %q is not clean", ErrInvalidName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %q escapes the store root", ErrInvalidName, name)
		}
		if strings.HasPrefix(part, stagingPrefix) || part == commitMarker {
			return fmt.Errorf("%w: %q uses a reserved segment", ErrInvalidName, name)
		}
	}
	return nil
}

// Reserved path segments used for staging and commit bookkeeping.
const (
	stagingPrefix = ".staging-"
	commitMarker  = "_COMMITTED"
)
