package models

// ActionKind is the operation the executor should perform for one path
type ActionKind string

const (
	// ActionCopy creates the destination object from the source.
	// For directory entries this means creating the directory.
	ActionCopy ActionKind = "copy"
	// ActionUpdate overwrites an existing destination object
	ActionUpdate ActionKind = "update"
	// ActionDelete removes a destination object with no source counterpart
	ActionDelete ActionKind = "delete"
	// ActionConflict marks a divergence that needs a resolution before
	// the plan can be executed
	ActionConflict ActionKind = "conflict"
	// ActionSkip records a path deliberately left untouched
	ActionSkip ActionKind = "skip"
)

// SkipReason explains why a path was skipped
type SkipReason string

const (
	SkipTooLarge      SkipReason = "too_large"
	SkipTooSmall      SkipReason = "too_small"
	SkipSymlinkPolicy SkipReason = "symlink_policy"
	SkipByStrategy    SkipReason = "conflict_strategy"
	SkipExisting      SkipReason = "exists"
)

// Direction indicates which way data flows for one action in
// bidirectional mode. Mirror-mode actions always flow forward.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// SyncAction is one planned operation. Exactly one action exists per
// relative path in a plan.
type SyncAction struct {
	// Kind is the operation to perform
	Kind ActionKind `json:"kind"`

	// Path is the relative path the action applies to
	Path string `json:"path"`

	// Source is the source-side entry, nil for deletes
	Source *Entry `json:"source,omitempty"`

	// Dest is the destination-side entry, nil for copies
	Dest *Entry `json:"dest,omitempty"`

	// Conflict carries divergence details for ActionConflict
	Conflict *Conflict `json:"conflict,omitempty"`

	// Resolution is the strategy's decision for ActionConflict. A nil
	// or manual resolution leaves the conflict unresolved.
	Resolution *Resolution `json:"resolution,omitempty"`

	// SkipReason is set for ActionSkip
	SkipReason SkipReason `json:"skip_reason,omitempty"`

	// Direction of data flow, meaningful in bidirectional mode
	Direction Direction `json:"direction,omitempty"`

	// Reason is a short human-readable explanation of why the action
	// was planned ("size differs", "missing in destination", ...)
	Reason string `json:"reason,omitempty"`
}

// Bytes returns the number of bytes the action will transfer or remove.
// Reverse actions read from the destination side and mutate the source.
func (a *SyncAction) Bytes() int64 {
	switch a.Kind {
	case ActionCopy, ActionUpdate:
		e := a.Source
		if a.Direction == DirectionReverse {
			e = a.Dest
		}
		if e != nil && e.Kind == KindFile {
			return e.Size
		}
	case ActionDelete:
		e := a.Dest
		if a.Direction == DirectionReverse {
			e = a.Source
		}
		if e != nil && e.Kind == KindFile {
			return e.Size
		}
	}
	return 0
}

// IsMutation reports whether the action modifies the filesystem
func (a *SyncAction) IsMutation() bool {
	switch a.Kind {
	case ActionCopy, ActionUpdate, ActionDelete:
		return true
	}
	return false
}
