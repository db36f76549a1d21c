package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sdejongh/foldersync/pkg/models"
)

// Local is a filesystem-based storage backend rooted at one directory
type Local struct {
	rootPath string
}

// NewLocal creates a local backend. The root must exist and be a
// directory.
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return &Local{rootPath: absPath}, nil
}

// NewLocalCreate is like NewLocal but creates the root if missing.
// Used for destination roots on first sync.
func NewLocalCreate(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root: %w", err)
	}
	return NewLocal(absPath)
}

// Root returns the absolute root path
func (l *Local) Root() string {
	return l.rootPath
}

// resolve maps a relative path to an absolute path inside the root,
// rejecting anything that would escape it
func (l *Local) resolve(relativePath string) (string, error) {
	if relativePath == "" || relativePath == "." {
		return l.rootPath, nil
	}
	clean := path.Clean(relativePath)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path escapes root: %q", relativePath)
	}
	return filepath.Join(l.rootPath, filepath.FromSlash(clean)), nil
}

// Scan walks the tree and returns entries in pre-order, so every parent
// directory precedes its children. Children of one directory are
// visited in name order, making the result deterministic.
func (l *Local) Scan(ctx context.Context, opts ScanOptions) ([]*models.Entry, *ScanStats, error) {
	var entries []*models.Entry
	stats := &ScanStats{}

	// Tracks resolved directories when following links, to break cycles
	var visited map[string]bool
	if opts.Symlinks == models.SymlinkFollow {
		visited = make(map[string]bool)
		if real, err := filepath.EvalSymlinks(l.rootPath); err == nil {
			visited[real] = true
		}
	}

	var walk func(dir, relPrefix string, depth int) error
	walk = func(dir, relPrefix string, depth int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		children, err := os.ReadDir(dir)
		if err != nil {
			if opts.ContinueOnError {
				stats.Warnings = append(stats.Warnings, ScanWarning{Path: relPrefix, Err: err})
				return nil
			}
			return fmt.Errorf("failed to read directory %q: %w", dir, err)
		}

		for _, child := range children {
			name := child.Name()
			rel := name
			if relPrefix != "" {
				rel = relPrefix + "/" + name
			}

			if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
				stats.Excluded++
				continue
			}
			if opts.Excluded != nil && opts.Excluded(rel, child.IsDir()) {
				stats.Excluded++
				continue
			}

			abs := filepath.Join(dir, name)
			entry, descend, err := l.observe(abs, rel, child, opts, visited)
			if err != nil {
				if opts.ContinueOnError {
					stats.Warnings = append(stats.Warnings, ScanWarning{Path: rel, Err: err})
					continue
				}
				return err
			}
			if entry == nil {
				continue
			}

			entries = append(entries, entry)
			switch entry.Kind {
			case models.KindFile:
				stats.Files++
				stats.Bytes += entry.Size
			case models.KindDirectory:
				stats.Dirs++
			case models.KindSymlink:
				stats.Symlinks++
			}

			if descend && (opts.MaxDepth == 0 || depth < opts.MaxDepth) {
				if err := walk(abs, rel, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(l.rootPath, "", 1); err != nil {
		return nil, nil, err
	}
	return entries, stats, nil
}

// observe builds the entry for one directory child and reports whether
// the walk should descend into it
func (l *Local) observe(abs, rel string, child fs.DirEntry, opts ScanOptions, visited map[string]bool) (*models.Entry, bool, error) {
	if child.Type()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(abs)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read link %q: %w", abs, err)
		}

		if opts.Symlinks == models.SymlinkFollow {
			info, err := os.Stat(abs)
			if err != nil {
				// Broken link: surface it as a link so the caller can
				// report it instead of failing the whole scan
				return symlinkEntry(abs, rel, target), false, nil
			}
			if info.IsDir() {
				real, err := filepath.EvalSymlinks(abs)
				if err != nil || visited[real] {
					return nil, false, nil
				}
				visited[real] = true
				return entryFromInfo(abs, rel, info), true, nil
			}
			return entryFromInfo(abs, rel, info), false, nil
		}

		// preserve and skip both record the link itself; the planner
		// decides what to do with it
		return symlinkEntry(abs, rel, target), false, nil
	}

	info, err := child.Info()
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat %q: %w", abs, err)
	}
	return entryFromInfo(abs, rel, info), info.IsDir(), nil
}

func entryFromInfo(abs, rel string, info fs.FileInfo) *models.Entry {
	kind := models.KindFile
	size := info.Size()
	if info.IsDir() {
		kind = models.KindDirectory
		size = 0
	}
	return &models.Entry{
		RelativePath: rel,
		AbsolutePath: abs,
		Kind:         kind,
		Size:         size,
		ModTime:      info.ModTime(),
		Mode:         info.Mode(),
	}
}

func symlinkEntry(abs, rel, target string) *models.Entry {
	info, _ := os.Lstat(abs)
	entry := &models.Entry{
		RelativePath: rel,
		AbsolutePath: abs,
		Kind:         models.KindSymlink,
		LinkTarget:   target,
	}
	if info != nil {
		entry.ModTime = info.ModTime()
		entry.Mode = info.Mode()
	}
	return entry
}

// Read opens a file for reading
func (l *Local) Read(ctx context.Context, relativePath string) (io.ReadCloser, error) {
	fullPath, err := l.resolve(relativePath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// WriteFile writes content to a temporary file in the target directory
// and renames it into place
func (l *Local) WriteFile(ctx context.Context, relativePath string, reader io.Reader, size int64, meta *models.Entry, opts WriteOptions) error {
	fullPath, err := l.resolve(relativePath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	written, err := io.Copy(tmp, reader)
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if size >= 0 && written != size {
		cleanup()
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", size, written)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if meta != nil && opts.PreservePermissions && meta.Mode != 0 {
		if err := os.Chmod(tmpPath, meta.Mode.Perm()); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize file: %w", err)
	}

	// Timestamps go last: the rename itself does not disturb them, and
	// setting them on the final path survives filesystems that reset
	// times on rename
	if meta != nil && opts.PreserveTimes && !meta.ModTime.IsZero() {
		if err := os.Chtimes(fullPath, meta.ModTime, meta.ModTime); err != nil {
			return fmt.Errorf("failed to set modification time: %w", err)
		}
	}

	return nil
}

// Mkdir creates a directory and any missing parents
func (l *Local) Mkdir(ctx context.Context, relativePath string, meta *models.Entry) error {
	fullPath, err := l.resolve(relativePath)
	if err != nil {
		return err
	}

	mode := os.FileMode(0755)
	if meta != nil && meta.Mode.Perm() != 0 {
		mode = meta.Mode.Perm()
	}
	if err := os.MkdirAll(fullPath, mode); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	// MkdirAll ignores the mode for directories that already exist
	if meta != nil && meta.Mode.Perm() != 0 {
		if err := os.Chmod(fullPath, meta.Mode.Perm()); err != nil {
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}
	return nil
}

// Symlink creates or replaces a symbolic link
func (l *Local) Symlink(ctx context.Context, relativePath, target string) error {
	fullPath, err := l.resolve(relativePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if _, err := os.Lstat(fullPath); err == nil {
		if err := os.Remove(fullPath); err != nil {
			return fmt.Errorf("failed to replace link: %w", err)
		}
	}
	if err := os.Symlink(target, fullPath); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// Remove deletes a file, symlink, or directory tree
func (l *Local) Remove(ctx context.Context, relativePath string) error {
	fullPath, err := l.resolve(relativePath)
	if err != nil {
		return err
	}
	if fullPath == l.rootPath {
		return fmt.Errorf("refusing to remove backend root")
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// Rename moves an object within the backend
func (l *Local) Rename(ctx context.Context, oldPath, newPath string) error {
	oldFull, err := l.resolve(oldPath)
	if err != nil {
		return err
	}
	newFull, err := l.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}

// Stat returns the entry for a single path without following links
func (l *Local) Stat(ctx context.Context, relativePath string) (*models.Entry, error) {
	fullPath, err := l.resolve(relativePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read link: %w", err)
		}
		return symlinkEntry(fullPath, path.Clean(relativePath), target), nil
	}
	return entryFromInfo(fullPath, path.Clean(relativePath), info), nil
}

// Close releases resources (no-op for the local filesystem)
func (l *Local) Close() error {
	return nil
}
