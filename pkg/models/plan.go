package models

import (
	"time"
)

// Summary aggregates a plan by action kind. The counts always equal the
// number of actions of each kind in the plan they were computed from.
type Summary struct {
	Copies    int `json:"copies"`
	Updates   int `json:"updates"`
	Deletes   int `json:"deletes"`
	Conflicts int `json:"conflicts"`
	Skips     int `json:"skips"`

	// Unchanged counts paths compared equal; they carry no action
	Unchanged int `json:"unchanged"`

	BytesToTransfer int64 `json:"bytes_to_transfer"`
	BytesToDelete   int64 `json:"bytes_to_delete"`

	TotalActions int `json:"total_actions"`
}

// SyncPlan is the ordered set of actions a run will execute. Actions are
// ordered so that every parent directory precedes its children and
// deletes run deepest-first; executing the plan top to bottom is always
// safe.
type SyncPlan struct {
	RunID      string       `json:"run_id"`
	SourcePath string       `json:"source_path"`
	DestPath   string       `json:"dest_path"`
	Mode       SyncMode     `json:"mode"`
	CreatedAt  time.Time    `json:"created_at"`
	Actions    []SyncAction `json:"actions"`
	Summary    Summary      `json:"summary"`
}

// Summarize recomputes the summary from the action list
func (p *SyncPlan) Summarize(unchanged int) {
	s := Summary{Unchanged: unchanged}
	for i := range p.Actions {
		a := &p.Actions[i]
		switch a.Kind {
		case ActionCopy:
			s.Copies++
			s.BytesToTransfer += a.Bytes()
		case ActionUpdate:
			s.Updates++
			s.BytesToTransfer += a.Bytes()
		case ActionDelete:
			s.Deletes++
			s.BytesToDelete += a.Bytes()
		case ActionConflict:
			s.Conflicts++
		case ActionSkip:
			s.Skips++
		}
	}
	s.TotalActions = len(p.Actions)
	p.Summary = s
}

// HasMutations reports whether executing the plan would change anything
func (p *SyncPlan) HasMutations() bool {
	for i := range p.Actions {
		if p.Actions[i].IsMutation() {
			return true
		}
	}
	return false
}

// SyncStatus represents the overall result of a run
type SyncStatus string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess SyncStatus = "success"
	// StatusPartial indicates some operations failed
	StatusPartial SyncStatus = "partial"
	// StatusFailed indicates the run failed
	StatusFailed SyncStatus = "failed"
	// StatusCancelled indicates the run was cancelled
	StatusCancelled SyncStatus = "cancelled"
)

// ExitCode returns the process exit code for the status
func (s SyncStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}

// SyncError records one failed action
type SyncError struct {
	Path      string     `json:"path"`
	Action    ActionKind `json:"action"`
	Error     string     `json:"error"`
	Timestamp time.Time  `json:"timestamp"`
}

// SyncReport is the outcome of executing a plan
type SyncReport struct {
	RunID      string   `json:"run_id"`
	SourcePath string   `json:"source_path"`
	DestPath   string   `json:"dest_path"`
	Mode       SyncMode `json:"mode"`
	DryRun     bool     `json:"dry_run"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Planned  Summary `json:"planned"`
	Executed Summary `json:"executed"`

	// Unresolved conflicts left for the user
	Conflicts []Conflict `json:"conflicts,omitempty"`

	Errors []SyncError `json:"errors,omitempty"`

	BytesTransferred int64 `json:"bytes_transferred"`
	BytesDeleted     int64 `json:"bytes_deleted"`

	Status SyncStatus `json:"status"`
}
