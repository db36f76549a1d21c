package models

import "fmt"

// ConflictType classifies how the two sides diverged
type ConflictType string

const (
	// ConflictContent means both sides exist with differing content
	// or metadata
	ConflictContent ConflictType = "content"
	// ConflictKind means the path is a different kind of object on
	// each side (file vs directory, file vs symlink, ...)
	ConflictKind ConflictType = "kind"
	// ConflictDelete means one side deleted the path while the other
	// modified it since the last sync
	ConflictDelete ConflictType = "delete"
)

// Conflict describes a divergence the diff engine could not decide on
// its own
type Conflict struct {
	Type   ConflictType `json:"type"`
	Path   string       `json:"path"`
	Source *Entry       `json:"source,omitempty"`
	Dest   *Entry       `json:"dest,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

// ConflictStrategy selects how conflicts are resolved without user
// interaction
type ConflictStrategy string

const (
	StrategyPreferSource      ConflictStrategy = "prefer_source"
	StrategyPreferDestination ConflictStrategy = "prefer_destination"
	StrategyPreferNewer       ConflictStrategy = "prefer_newer"
	StrategyPreferOlder       ConflictStrategy = "prefer_older"
	StrategyPreferLarger      ConflictStrategy = "prefer_larger"
	StrategyPreferSmaller     ConflictStrategy = "prefer_smaller"
	StrategySkip              ConflictStrategy = "skip"
	StrategyBackupSource      ConflictStrategy = "backup_and_use_source"
	StrategyBackupDestination ConflictStrategy = "backup_and_keep_destination"
	StrategyManual            ConflictStrategy = "manual"
	StrategyFail              ConflictStrategy = "fail"
)

// ParseConflictStrategy validates a strategy name from config or flags
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch ConflictStrategy(s) {
	case StrategyPreferSource, StrategyPreferDestination,
		StrategyPreferNewer, StrategyPreferOlder,
		StrategyPreferLarger, StrategyPreferSmaller,
		StrategySkip, StrategyBackupSource, StrategyBackupDestination,
		StrategyManual, StrategyFail:
		return ConflictStrategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy: %q", s)
}

// ResolutionKind is the outcome of resolving one conflict
type ResolutionKind string

const (
	// ResolveUseSource propagates the source version
	ResolveUseSource ResolutionKind = "use_source"
	// ResolveUseDestination keeps or propagates the destination version
	ResolveUseDestination ResolutionKind = "use_destination"
	// ResolveSkip leaves both sides untouched
	ResolveSkip ResolutionKind = "skip"
	// ResolveManual defers the decision; the run reports the conflict
	// as unresolved
	ResolveManual ResolutionKind = "manual"
	// ResolveFail aborts planning with an error
	ResolveFail ResolutionKind = "fail"
)

// Resolution is the decision made for one conflict
type Resolution struct {
	Kind ResolutionKind `json:"kind"`

	// Backup requests that the losing version be preserved before the
	// winning one is applied
	Backup bool `json:"backup,omitempty"`

	// BackupPath is filled in by the executor once the losing version
	// has been preserved
	BackupPath string `json:"backup_path,omitempty"`

	// Rationale explains the decision ("source is newer by 3s", ...)
	Rationale string `json:"rationale,omitempty"`
}
