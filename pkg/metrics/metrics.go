// Package metrics collects per-run counters cheap enough to update from
// every worker.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Collector accumulates counters for one run. All methods are safe for
// concurrent use.
type Collector struct {
	runID   string
	started time.Time

	filesCopied   atomic.Int64
	filesUpdated  atomic.Int64
	filesDeleted  atomic.Int64
	filesSkipped  atomic.Int64
	conflictsSeen atomic.Int64
	conflictsAuto atomic.Int64
	failures      atomic.Int64

	bytesTransferred atomic.Int64
	bytesDeleted     atomic.Int64
}

// NewCollector creates a collector with a fresh run ID
func NewCollector() *Collector {
	return &Collector{
		runID:   uuid.New().String(),
		started: time.Now(),
	}
}

// RunID returns the unique identifier of this run
func (c *Collector) RunID() string {
	return c.runID
}

func (c *Collector) AddCopied(bytes int64) {
	c.filesCopied.Add(1)
	c.bytesTransferred.Add(bytes)
}

func (c *Collector) AddUpdated(bytes int64) {
	c.filesUpdated.Add(1)
	c.bytesTransferred.Add(bytes)
}

func (c *Collector) AddDeleted(bytes int64) {
	c.filesDeleted.Add(1)
	c.bytesDeleted.Add(bytes)
}

func (c *Collector) AddSkipped() {
	c.filesSkipped.Add(1)
}

// AddConflict records one conflict; auto marks it as resolved without
// user involvement
func (c *Collector) AddConflict(auto bool) {
	c.conflictsSeen.Add(1)
	if auto {
		c.conflictsAuto.Add(1)
	}
}

func (c *Collector) AddFailure() {
	c.failures.Add(1)
}

// Snapshot is a point-in-time copy of all counters
type Snapshot struct {
	RunID   string        `json:"run_id"`
	Elapsed time.Duration `json:"elapsed"`

	FilesCopied   int64 `json:"files_copied"`
	FilesUpdated  int64 `json:"files_updated"`
	FilesDeleted  int64 `json:"files_deleted"`
	FilesSkipped  int64 `json:"files_skipped"`
	ConflictsSeen int64 `json:"conflicts_seen"`
	ConflictsAuto int64 `json:"conflicts_auto_resolved"`
	Failures      int64 `json:"failures"`

	BytesTransferred int64 `json:"bytes_transferred"`
	BytesDeleted     int64 `json:"bytes_deleted"`

	// Throughput in bytes per second over the whole run
	Throughput int64 `json:"throughput"`
}

// Snapshot returns the current counter values
func (c *Collector) Snapshot() Snapshot {
	elapsed := time.Since(c.started)
	s := Snapshot{
		RunID:   c.runID,
		Elapsed: elapsed,

		FilesCopied:   c.filesCopied.Load(),
		FilesUpdated:  c.filesUpdated.Load(),
		FilesDeleted:  c.filesDeleted.Load(),
		FilesSkipped:  c.filesSkipped.Load(),
		ConflictsSeen: c.conflictsSeen.Load(),
		ConflictsAuto: c.conflictsAuto.Load(),
		Failures:      c.failures.Load(),

		BytesTransferred: c.bytesTransferred.Load(),
		BytesDeleted:     c.bytesDeleted.Load(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.Throughput = int64(float64(s.BytesTransferred) / secs)
	}
	return s
}
