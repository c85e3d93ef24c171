// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies; the scheduler, loaders and
// orchestrator all record into the same Collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64

	// Tasks
	TasksExecuted    int64
	TasksSkipped     int64
	TasksNotRequired int64
	TasksFailed      int64

	// Artifact store
	ArtifactWriteSuccess int64
	ArtifactWriteFailure int64

	// Warehouse
	TablesLoaded     int64
	TablesFailed     int64
	RowsInserted     int64
	RowsSkipped      int64
	RowsDeduplicated int64
	RowsByTable      map[string]int64

	// Dimensions (informational, set at construction)
	Season         string
	StorageBackend string
	Warehouse      string
	RunID          string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(season, storageBackend, warehouse, runID string) *Collector {
	return &Collector{s: Snapshot{
		RowsByTable:    make(map[string]int64),
		Season:         season,
		StorageBackend: storageBackend,
		Warehouse:      warehouse,
		RunID:          runID,
	}}
}

func (c *Collector) update(fn func(s *Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	fn(&c.s)
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() { c.update(func(s *Snapshot) { s.RunsStarted++ }) }

// IncRunCompleted records a successful run.
func (c *Collector) IncRunCompleted() { c.update(func(s *Snapshot) { s.RunsCompleted++ }) }

// IncRunFailed records a run that ended in any non-success outcome.
func (c *Collector) IncRunFailed() { c.update(func(s *Snapshot) { s.RunsFailed++ }) }

// --- Tasks ---

// IncTaskExecuted records a task whose produce step ran and published.
func (c *Collector) IncTaskExecuted() { c.update(func(s *Snapshot) { s.TasksExecuted++ }) }

// IncTaskSkipped records a task whose artifact already existed.
func (c *Collector) IncTaskSkipped() { c.update(func(s *Snapshot) { s.TasksSkipped++ }) }

// IncTaskNotRequired records an incomplete task pruned because everything
// downstream of it was already complete.
func (c *Collector) IncTaskNotRequired() { c.update(func(s *Snapshot) { s.TasksNotRequired++ }) }

// IncTaskFailed records a task whose produce step failed.
func (c *Collector) IncTaskFailed() { c.update(func(s *Snapshot) { s.TasksFailed++ }) }

// --- Artifact store ---

// IncArtifactWriteSuccess records a published artifact.
func (c *Collector) IncArtifactWriteSuccess() {
	c.update(func(s *Snapshot) { s.ArtifactWriteSuccess++ })
}

// IncArtifactWriteFailure records a failed or discarded artifact write.
func (c *Collector) IncArtifactWriteFailure() {
	c.update(func(s *Snapshot) { s.ArtifactWriteFailure++ })
}

// --- Warehouse ---

// RecordTableLoad records a committed table load.
func (c *Collector) RecordTableLoad(table string, inserted, skipped, deduplicated int64) {
	c.update(func(s *Snapshot) {
		s.TablesLoaded++
		s.RowsInserted += inserted
		s.RowsSkipped += skipped
		s.RowsDeduplicated += deduplicated
		s.RowsByTable[table] += inserted
	})
}

// IncTableFailed records a table load that rolled back.
func (c *Collector) IncTableFailed() { c.update(func(s *Snapshot) { s.TablesFailed++ }) }

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.s
	out.RowsByTable = make(map[string]int64, len(c.s.RowsByTable))
	for k, v := range c.s.RowsByTable {
		out.RowsByTable[k] = v
	}
	return out
}
