// Package progress streams run events to interested listeners without
// ever blocking the sync itself.
package progress

import (
	"sync"
	"time"

	"github.com/sdejongh/foldersync/pkg/models"
)

// EventKind identifies what happened
type EventKind string

const (
	// ScanStarted fires once per side when its scan begins
	ScanStarted EventKind = "scan_started"
	// ScanFinished fires once per side with the entry count
	ScanFinished EventKind = "scan_finished"
	// PlanReady fires when the plan has been built
	PlanReady EventKind = "plan_ready"
	// ActionStarted fires when a worker picks up an action
	ActionStarted EventKind = "action_started"
	// ActionCompleted fires when an action finishes successfully
	ActionCompleted EventKind = "action_completed"
	// ActionFailed fires when an action returns an error
	ActionFailed EventKind = "action_failed"
	// RunFinished fires once at the end of the run
	RunFinished EventKind = "run_finished"
)

// Event is one progress notification
type Event struct {
	Kind   EventKind         `json:"kind"`
	Time   time.Time         `json:"time"`
	Side   string            `json:"side,omitempty"`
	Path   string            `json:"path,omitempty"`
	Action models.ActionKind `json:"action,omitempty"`
	Bytes  int64             `json:"bytes,omitempty"`
	Count  int               `json:"count,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Emitter fans events out to a single consumer over a buffered channel.
// Emit never blocks: when the consumer falls behind, events are dropped
// rather than stalling workers.
type Emitter struct {
	ch chan Event

	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewEmitter creates an emitter with the given buffer size
func NewEmitter(buffer int) *Emitter {
	if buffer < 1 {
		buffer = 256
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Events returns the channel consumers receive from. It is closed by
// Close once no more events will be sent.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Emit sends an event if there is room, stamping it with the current
// time when unset
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
		e.dropped++
	}
}

// Dropped returns how many events were discarded because the consumer
// fell behind
func (e *Emitter) Dropped() int64 {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Close stops the stream. Safe to call more than once; Emit after Close
// is a no-op.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
