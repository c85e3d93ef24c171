// Package adapter defines the boundary for run completion notifications.
//
// Adapters publish a RunCompletedEvent to a downstream system after every
// run. The runtime owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventTypeRunCompleted is the only event type published.
const EventTypeRunCompleted = "run_completed"

// DefaultBackoff is the delay before the first retry. It doubles on each
// subsequent retry.
const DefaultBackoff = 500 * time.Millisecond

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	ContractVersion string   `json:"contract_version"`
	EventType       string   `json:"event_type"`
	RunID           string   `json:"run_id"`
	Season          string   `json:"season"`
	Outcome         string   `json:"outcome"`
	Message         string   `json:"message,omitempty"`
	Tables          []string `json:"tables"`
	Timestamp       string   `json:"timestamp"` // RFC 3339
	Attempt         int      `json:"attempt"`
	TasksExecuted   int      `json:"tasks_executed"`
	TasksSkipped    int      `json:"tasks_skipped"`
	TablesLoaded    int      `json:"tables_loaded"`
	RowsInserted    int64    `json:"rows_inserted"`
	DurationMs      int64    `json:"duration_ms"`
}

// Adapter publishes run completion events to a downstream system.
type Adapter interface {
	// Publish sends a run completion event. Must respect context
	// cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early on success, on a Permanent error, or when ctx
// is done. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	attempts := 1 + retries
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: non-retriable error: %w", name, perm.err)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
