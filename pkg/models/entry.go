package models

import (
	"io/fs"
	"time"
)

// EntryKind identifies the type of filesystem object an Entry describes
type EntryKind string

const (
	// KindFile is a regular file
	KindFile EntryKind = "file"
	// KindDirectory is a directory
	KindDirectory EntryKind = "directory"
	// KindSymlink is a symbolic link that was not followed during the scan
	KindSymlink EntryKind = "symlink"
)

// Entry represents one filesystem object observed during a scan.
// Entries are immutable once constructed; content digests are kept in a
// per-run cache owned by the comparator, never on the entry itself.
type Entry struct {
	// RelativePath is the path relative to the scan root, slash-separated.
	// Unique key within one scan.
	RelativePath string `json:"relative_path"`

	// AbsolutePath is the full path on the filesystem
	AbsolutePath string `json:"absolute_path,omitempty"`

	// Kind is the object type
	Kind EntryKind `json:"kind"`

	// Size in bytes (0 for directories)
	Size int64 `json:"size"`

	// ModTime is the last modification time
	ModTime time.Time `json:"mod_time"`

	// Mode holds the permission bits
	Mode fs.FileMode `json:"mode"`

	// LinkTarget is the symlink target, set only for KindSymlink entries
	LinkTarget string `json:"link_target,omitempty"`
}

// IsDir reports whether the entry is a directory
func (e *Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Depth returns the number of path separators in the relative path,
// used for bottom-up delete ordering
func (e *Entry) Depth() int {
	depth := 0
	for _, c := range e.RelativePath {
		if c == '/' {
			depth++
		}
	}
	return depth
}

// BaselineEntry records the state of one path at the end of the previous
// sync run. Used in bidirectional mode to distinguish "created on one side"
// from "deleted on the other side".
type BaselineEntry struct {
	RelativePath   string    `json:"relative_path"`
	Size           int64     `json:"size"`
	ModTime        time.Time `json:"mod_time"`
	Kind           EntryKind `json:"kind"`
	ExistsInSource bool      `json:"exists_in_source"`
	ExistsInDest   bool      `json:"exists_in_dest"`
}

// Baseline is the recorded state of a sync pair after its last successful
// run. A missing baseline means first sync: no delete propagation, every
// divergence is a create/create conflict.
type Baseline struct {
	Version      int                       `json:"version"`
	SourcePath   string                    `json:"source_path"`
	DestPath     string                    `json:"dest_path"`
	LastSyncTime time.Time                 `json:"last_sync_time"`
	Files        map[string]*BaselineEntry `json:"files"`
}

// NewBaseline creates an empty baseline for a sync pair
func NewBaseline(sourcePath, destPath string) *Baseline {
	return &Baseline{
		Version:    1,
		SourcePath: sourcePath,
		DestPath:   destPath,
		Files:      make(map[string]*BaselineEntry),
	}
}

// Get returns the recorded state for a path, or nil if not tracked
func (b *Baseline) Get(relativePath string) *BaselineEntry {
	if b == nil {
		return nil
	}
	return b.Files[relativePath]
}

// Record stores the state of a path after a successful operation
func (b *Baseline) Record(entry *Entry, existsInSource, existsInDest bool) {
	if !existsInSource && !existsInDest {
		delete(b.Files, entry.RelativePath)
		return
	}
	b.Files[entry.RelativePath] = &BaselineEntry{
		RelativePath:   entry.RelativePath,
		Size:           entry.Size,
		ModTime:        entry.ModTime,
		Kind:           entry.Kind,
		ExistsInSource: existsInSource,
		ExistsInDest:   existsInDest,
	}
}

// Forget removes a path from the baseline
func (b *Baseline) Forget(relativePath string) {
	delete(b.Files, relativePath)
}

// IsFirstSync returns true if no previous run was recorded
func (b *Baseline) IsFirstSync() bool {
	return b == nil || b.LastSyncTime.IsZero()
}
