package storage

import (
	"context"
	"io"

	"github.com/sdejongh/foldersync/pkg/models"
)

// ScanOptions controls a recursive scan of a backend root
type ScanOptions struct {
	// Excluded prunes the tree: entries it reports true for are dropped,
	// and excluded directories are never descended into. Nil excludes
	// nothing.
	Excluded func(relativePath string, isDir bool) bool

	// IncludeHidden controls whether dotfiles are scanned
	IncludeHidden bool

	// MaxDepth limits traversal depth below the root (0 = unlimited).
	// Entries directly under the root have depth 1.
	MaxDepth int

	// Symlinks selects how symbolic links are represented
	Symlinks models.SymlinkPolicy

	// ContinueOnError records unreadable entries as warnings and keeps
	// walking instead of aborting the scan on the first failure
	ContinueOnError bool
}

// ScanWarning records one entry a scan could not read
type ScanWarning struct {
	Path string
	Err  error
}

// ScanStats counts what a scan saw, including what it pruned
type ScanStats struct {
	Files    int
	Dirs     int
	Symlinks int
	Excluded int
	Bytes    int64
	Warnings []ScanWarning
}

// WriteOptions controls metadata preservation on writes
type WriteOptions struct {
	PreserveTimes       bool
	PreservePermissions bool
}

// Backend defines the interface for storage operations on one sync side.
// Implementations include the local filesystem; remote protocols can be
// added behind the same interface.
type Backend interface {
	// Root returns the absolute root path of the backend
	Root() string

	// Scan walks the tree under the root and returns entries sorted by
	// relative path, parents before children
	Scan(ctx context.Context, opts ScanOptions) ([]*models.Entry, *ScanStats, error)

	// Read opens a file for reading
	Read(ctx context.Context, relativePath string) (io.ReadCloser, error)

	// WriteFile creates or overwrites a file. The content is written to
	// a temporary sibling first and renamed into place, so a partially
	// written file is never observable at the final path.
	WriteFile(ctx context.Context, relativePath string, reader io.Reader, size int64, meta *models.Entry, opts WriteOptions) error

	// Mkdir creates a directory and any missing parents
	Mkdir(ctx context.Context, relativePath string, meta *models.Entry) error

	// Symlink creates or replaces a symbolic link
	Symlink(ctx context.Context, relativePath, target string) error

	// Remove deletes a file, symlink, or directory tree
	Remove(ctx context.Context, relativePath string) error

	// Rename moves an object within the backend, creating parent
	// directories of the new path as needed
	Rename(ctx context.Context, oldPath, newPath string) error

	// Stat returns the entry for a single path
	Stat(ctx context.Context, relativePath string) (*models.Entry, error)

	// Close releases any resources held by the backend
	Close() error
}
