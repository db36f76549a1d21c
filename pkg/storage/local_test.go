package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/foldersync/pkg/models"
)

func newTestLocal(t *testing.T) (*Local, string) {
	t.Helper()
	tempDir := t.TempDir()
	local, err := NewLocal(tempDir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	return local, tempDir
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(fullPath, content, 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

// TestNewLocal tests the Local backend constructor
func TestNewLocal(t *testing.T) {
	t.Run("ValidDirectory", func(t *testing.T) {
		local, _ := newTestLocal(t)
		defer local.Close()
		if local.Root() == "" {
			t.Error("Root() should return the absolute root path")
		}
	})

	t.Run("NonExistentPath", func(t *testing.T) {
		_, err := NewLocal("/nonexistent/path/that/does/not/exist")
		if err == nil {
			t.Error("NewLocal() should fail for non-existent path")
		}
	})

	t.Run("FileNotDirectory", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "plain")
		if err := os.WriteFile(tempFile, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to create temp file: %v", err)
		}

		if _, err := NewLocal(tempFile); err == nil {
			t.Error("NewLocal() should fail for file path (not directory)")
		}
	})

	t.Run("CreateMissingRoot", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "brand", "new")
		local, err := NewLocalCreate(path)
		if err != nil {
			t.Fatalf("NewLocalCreate() error = %v", err)
		}
		defer local.Close()

		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Error("NewLocalCreate() should create the root directory")
		}
	})
}

// TestResolve tests the root escape guard
func TestResolve(t *testing.T) {
	local, _ := newTestLocal(t)
	defer local.Close()

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"", false},
		{".", false},
		{"file.txt", false},
		{"sub/dir/file.txt", false},
		{"sub/../file.txt", false},
		{"..", true},
		{"../outside.txt", true},
		{"sub/../../outside.txt", true},
		{"/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := local.resolve(tt.path)
			if tt.wantErr && err == nil {
				t.Errorf("resolve(%q) should reject escaping path", tt.path)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("resolve(%q) error = %v", tt.path, err)
			}
		})
	}
}

// TestLocalScan tests the recursive scanner
func TestLocalScan(t *testing.T) {
	ctx := context.Background()

	t.Run("PreOrderDeterministic", func(t *testing.T) {
		local, tempDir := newTestLocal(t)
		defer local.Close()

		writeTree(t, tempDir, map[string][]byte{
			"b.txt":        []byte("b"),
			"a/one.txt":    []byte("1"),
			"a/two.txt":    []byte("2"),
			"a/sub/deep.x": []byte("d"),
			"c.txt":        []byte("c"),
		})

		entries, stats, err := local.Scan(ctx, ScanOptions{})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}

		var paths []string
		for _, e := range entries {
			paths = append(paths, e.RelativePath)
		}
		want := []string{"a", "a/one.txt", "a/sub", "a/sub/deep.x", "a/two.txt", "b.txt", "c.txt"}
		if len(paths) != len(want) {
			t.Fatalf("Scan() returned %v, want %v", paths, want)
		}
		for i := range want {
			if paths[i] != want[i] {
				t.Errorf("entry[%d] = %s, want %s", i, paths[i], want[i])
			}
		}

		if stats.Files != 4 || stats.Dirs != 2 {
			t.Errorf("stats = %d files / %d dirs, want 4 / 2", stats.Files, stats.Dirs)
		}
		if stats.Bytes != 4 {
			t.Errorf("stats.Bytes = %d, want 4", stats.Bytes)
		}
	})

	t.Run("HiddenFilesExcluded", func(t *testing.T) {
		local, tempDir := newTestLocal(t)
		defer local.Close()

		writeTree(t, tempDir, map[string][]byte{
			"visible.txt":    []byte("v"),
			".hidden":        []byte("h"),
			".hiddendir/a.x": []byte("a"),
		})

		entries, stats, err := local.Scan(ctx, ScanOptions{})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(entries) != 1 || entries[0].RelativePath != "visible.txt" {
			t.Errorf("Scan() should only see visible.txt, got %d entries", len(entries))
		}
		if stats.Excluded != 2 {
			t.Errorf("stats.Excluded = %d, want 2", stats.Excluded)
		}

		entries, _, err = local.Scan(ctx, ScanOptions{IncludeHidden: true})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(entries) != 4 {
			t.Errorf("Scan(IncludeHidden) returned %d entries, want 4", len(entries))
		}
	})

	t.Run("ExcludeCallbackPrunes", func(t *testing.T) {
		local, tempDir := newTestLocal(t)
		defer local.Close()

		writeTree(t, tempDir, map[string][]byte{
			"keep.txt":        []byte("k"),
			"skipdir/a.txt":   []byte("a"),
			"skipdir/b/c.txt": []byte("c"),
		})

		entries, stats, err := local.Scan(ctx, ScanOptions{
			Excluded: func(rel string, isDir bool) bool {
				return rel == "skipdir"
			},
		})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(entries) != 1 || entries[0].RelativePath != "keep.txt" {
			t.Errorf("pruned scan should only see keep.txt, got %d entries", len(entries))
		}
		if stats.Excluded != 1 {
			t.Errorf("stats.Excluded = %d, want 1 (subtree pruned, not enumerated)", stats.Excluded)
		}
	})

	t.Run("MaxDepth", func(t *testing.T) {
		local, tempDir := newTestLocal(t)
		defer local.Close()

		writeTree(t, tempDir, map[string][]byte{
			"top.txt":        []byte("t"),
			"l1/mid.txt":     []byte("m"),
			"l1/l2/deep.txt": []byte("d"),
		})

		entries, _, err := local.Scan(ctx, ScanOptions{MaxDepth: 2})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		for _, e := range entries {
			if e.RelativePath == "l1/l2/deep.txt" {
				t.Error("MaxDepth 2 should not reach l1/l2/deep.txt")
			}
		}
	})

	t.Run("SymlinkPreserve", func(t *testing.T) {
		local, tempDir := newTestLocal(t)
		defer local.Close()

		writeTree(t, tempDir, map[string][]byte{"target.txt": []byte("t")})
		if err := os.Symlink("target.txt", filepath.Join(tempDir, "link")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}

		entries, stats, err := local.Scan(ctx, ScanOptions{Symlinks: models.SymlinkPreserve})
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}

		var link *models.Entry
		for _, e := range entries {
			if e.RelativePath == "link" {
				link = e
			}
		}
		if link == nil {
			t.Fatal("scan should record the symlink entry")
		}
		if link.Kind != models.KindSymlink || link.LinkTarget != "target.txt" {
			t.Errorf("link entry = %s -> %s, want symlink -> target.txt", link.Kind, link.LinkTarget)
		}
		if stats.Symlinks != 1 {
			t.Errorf("stats.Symlinks = %d, want 1", stats.Symlinks)
		}
	})

	t.Run("SymlinkFollow", func(t *testing.T) {
		local, tempDir := newTestLocal(t)
		defer local.Close()

		writeTree(t, tempDir, map[string][]byte{"real/file.txt": []byte("f")})
		if err := os.Symlink("real", filepath.Join(tempDir, "alias")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
		// cycle back to the root
		if err := os.Symlink(tempDir, filepath.Join(tempDir, "loop")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}

		entries, _, err := local.Scan(ctx, ScanOptions{Symlinks: models.SymlinkFollow})
		if err != nil {
			t.Fatalf("Scan() error = %v (cycle should be broken, not fatal)", err)
		}

		found := map[string]models.EntryKind{}
		for _, e := range entries {
			found[e.RelativePath] = e.Kind
		}
		if found["alias"] != models.KindDirectory {
			t.Errorf("followed dir link should appear as directory, got %s", found["alias"])
		}
		if found["alias/file.txt"] != models.KindFile {
			t.Error("scan should descend through followed directory links")
		}
		if _, ok := found["loop"]; ok {
			t.Error("cyclic link back to the root should be dropped")
		}
	})

	t.Run("UnreadableSubdirectory", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("directory permissions are not enforced for root")
		}
		local, tempDir := newTestLocal(t)
		defer local.Close()

		writeTree(t, tempDir, map[string][]byte{
			"ok.txt":        []byte("o"),
			"locked/secret": []byte("s"),
		})
		locked := filepath.Join(tempDir, "locked")
		if err := os.Chmod(locked, 0); err != nil {
			t.Fatalf("failed to chmod: %v", err)
		}
		t.Cleanup(func() { os.Chmod(locked, 0755) })

		if _, _, err := local.Scan(ctx, ScanOptions{}); err == nil {
			t.Error("Scan() should abort on an unreadable directory by default")
		}

		entries, stats, err := local.Scan(ctx, ScanOptions{ContinueOnError: true})
		if err != nil {
			t.Fatalf("Scan(ContinueOnError) error = %v", err)
		}
		found := map[string]bool{}
		for _, e := range entries {
			found[e.RelativePath] = true
		}
		if !found["ok.txt"] || !found["locked"] {
			t.Errorf("readable entries should survive the failure, got %v", found)
		}
		if len(stats.Warnings) != 1 || stats.Warnings[0].Path != "locked" {
			t.Errorf("Warnings = %+v, want exactly one for locked", stats.Warnings)
		}
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		local, tempDir := newTestLocal(t)
		defer local.Close()
		writeTree(t, tempDir, map[string][]byte{"a.txt": []byte("a")})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, _, err := local.Scan(ctx, ScanOptions{}); err == nil {
			t.Error("Scan() should return error on cancelled context")
		}
	})
}

// TestLocalRead tests the Read method
func TestLocalRead(t *testing.T) {
	local, tempDir := newTestLocal(t)
	defer local.Close()

	writeTree(t, tempDir, map[string][]byte{"file.txt": []byte("hello world")})
	ctx := context.Background()

	t.Run("ExistingFile", func(t *testing.T) {
		rc, err := local.Read(ctx, "file.txt")
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("failed to read content: %v", err)
		}
		if !bytes.Equal(content, []byte("hello world")) {
			t.Errorf("content = %q, want 'hello world'", content)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := local.Read(ctx, "missing.txt"); err == nil {
			t.Error("Read() should fail for missing file")
		}
	})

	t.Run("EscapingPath", func(t *testing.T) {
		if _, err := local.Read(ctx, "../outside.txt"); err == nil {
			t.Error("Read() should reject escaping path")
		}
	})
}

// TestLocalWriteFile tests atomic writes
func TestLocalWriteFile(t *testing.T) {
	local, tempDir := newTestLocal(t)
	defer local.Close()
	ctx := context.Background()

	t.Run("BasicWrite", func(t *testing.T) {
		content := []byte("written content")
		err := local.WriteFile(ctx, "out.txt", bytes.NewReader(content), int64(len(content)), nil, WriteOptions{})
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		got, err := os.ReadFile(filepath.Join(tempDir, "out.txt"))
		if err != nil {
			t.Fatalf("failed to read back: %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("content = %q, want %q", got, content)
		}
	})

	t.Run("CreatesParentDirs", func(t *testing.T) {
		content := []byte("nested")
		err := local.WriteFile(ctx, "deep/nested/out.txt", bytes.NewReader(content), int64(len(content)), nil, WriteOptions{})
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(tempDir, "deep", "nested", "out.txt")); err != nil {
			t.Error("WriteFile() should create missing parent directories")
		}
	})

	t.Run("SizeMismatchAborts", func(t *testing.T) {
		err := local.WriteFile(ctx, "short.txt", strings.NewReader("abc"), 10, nil, WriteOptions{})
		if err == nil {
			t.Fatal("WriteFile() should fail when fewer bytes arrive than promised")
		}
		if _, statErr := os.Stat(filepath.Join(tempDir, "short.txt")); statErr == nil {
			t.Error("failed write must not leave the target file behind")
		}
	})

	t.Run("NoTempFilesLeftBehind", func(t *testing.T) {
		local.WriteFile(ctx, "aborted.txt", strings.NewReader("x"), 99, nil, WriteOptions{})

		children, err := os.ReadDir(tempDir)
		if err != nil {
			t.Fatalf("failed to list dir: %v", err)
		}
		for _, c := range children {
			if strings.Contains(c.Name(), ".tmp-") {
				t.Errorf("temporary file %s left behind after failed write", c.Name())
			}
		}
	})

	t.Run("PreservesModTime", func(t *testing.T) {
		modTime := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)
		meta := &models.Entry{ModTime: modTime, Mode: 0644}
		content := []byte("timed")

		err := local.WriteFile(ctx, "timed.txt", bytes.NewReader(content), int64(len(content)), meta, WriteOptions{PreserveTimes: true})
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		info, err := os.Stat(filepath.Join(tempDir, "timed.txt"))
		if err != nil {
			t.Fatalf("failed to stat: %v", err)
		}
		if !info.ModTime().Equal(modTime) {
			t.Errorf("mod time = %v, want %v", info.ModTime(), modTime)
		}
	})

	t.Run("PreservesPermissions", func(t *testing.T) {
		meta := &models.Entry{Mode: 0600, ModTime: time.Now()}
		content := []byte("private")

		err := local.WriteFile(ctx, "private.txt", bytes.NewReader(content), int64(len(content)), meta, WriteOptions{PreservePermissions: true})
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		info, err := os.Stat(filepath.Join(tempDir, "private.txt"))
		if err != nil {
			t.Fatalf("failed to stat: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
		}
	})

	t.Run("OverwritesExisting", func(t *testing.T) {
		writeTree(t, tempDir, map[string][]byte{"replace.txt": []byte("old")})

		content := []byte("new content")
		err := local.WriteFile(ctx, "replace.txt", bytes.NewReader(content), int64(len(content)), nil, WriteOptions{})
		if err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		got, _ := os.ReadFile(filepath.Join(tempDir, "replace.txt"))
		if !bytes.Equal(got, content) {
			t.Errorf("content = %q, want %q", got, content)
		}
	})
}

// TestLocalMkdir tests directory creation
func TestLocalMkdir(t *testing.T) {
	local, tempDir := newTestLocal(t)
	defer local.Close()
	ctx := context.Background()

	t.Run("NestedPath", func(t *testing.T) {
		if err := local.Mkdir(ctx, "a/b/c", nil); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}
		info, err := os.Stat(filepath.Join(tempDir, "a", "b", "c"))
		if err != nil || !info.IsDir() {
			t.Error("Mkdir() should create the full path")
		}
	})

	t.Run("ExistingDirIsNoop", func(t *testing.T) {
		if err := local.Mkdir(ctx, "a/b/c", nil); err != nil {
			t.Errorf("Mkdir() on existing dir error = %v", err)
		}
	})

	t.Run("AppliesMetaPermissions", func(t *testing.T) {
		meta := &models.Entry{Mode: os.ModeDir | 0700}
		if err := local.Mkdir(ctx, "restricted", meta); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}
		info, err := os.Stat(filepath.Join(tempDir, "restricted"))
		if err != nil {
			t.Fatalf("failed to stat: %v", err)
		}
		if info.Mode().Perm() != 0700 {
			t.Errorf("permissions = %o, want 0700", info.Mode().Perm())
		}
	})
}

// TestLocalSymlink tests link creation
func TestLocalSymlink(t *testing.T) {
	local, tempDir := newTestLocal(t)
	defer local.Close()
	ctx := context.Background()

	if err := local.Symlink(ctx, "link", "target.txt"); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	target, err := os.Readlink(filepath.Join(tempDir, "link"))
	if err != nil || target != "target.txt" {
		t.Errorf("link target = %q, want target.txt", target)
	}

	t.Run("ReplacesExisting", func(t *testing.T) {
		if err := local.Symlink(ctx, "link", "other.txt"); err != nil {
			t.Fatalf("Symlink() error = %v", err)
		}
		target, _ := os.Readlink(filepath.Join(tempDir, "link"))
		if target != "other.txt" {
			t.Errorf("link target = %q, want other.txt", target)
		}
	})
}

// TestLocalRemove tests deletion
func TestLocalRemove(t *testing.T) {
	local, tempDir := newTestLocal(t)
	defer local.Close()
	ctx := context.Background()

	writeTree(t, tempDir, map[string][]byte{
		"file.txt":     []byte("f"),
		"dir/a.txt":    []byte("a"),
		"dir/sub/b.tx": []byte("b"),
	})

	t.Run("File", func(t *testing.T) {
		if err := local.Remove(ctx, "file.txt"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(tempDir, "file.txt")); !os.IsNotExist(err) {
			t.Error("file should be gone")
		}
	})

	t.Run("DirectoryTree", func(t *testing.T) {
		if err := local.Remove(ctx, "dir"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(tempDir, "dir")); !os.IsNotExist(err) {
			t.Error("directory tree should be gone")
		}
	})

	t.Run("MissingPathIsNoop", func(t *testing.T) {
		if err := local.Remove(ctx, "never-existed"); err != nil {
			t.Errorf("Remove() on missing path error = %v", err)
		}
	})

	t.Run("RefusesRoot", func(t *testing.T) {
		if err := local.Remove(ctx, "."); err == nil {
			t.Error("Remove() must refuse to delete the backend root")
		}
	})
}

// TestLocalStat tests single-path inspection
func TestLocalStat(t *testing.T) {
	local, tempDir := newTestLocal(t)
	defer local.Close()
	ctx := context.Background()

	writeTree(t, tempDir, map[string][]byte{"file.txt": []byte("12345")})
	if err := os.Mkdir(filepath.Join(tempDir, "dir"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	t.Run("File", func(t *testing.T) {
		entry, err := local.Stat(ctx, "file.txt")
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if entry.Kind != models.KindFile || entry.Size != 5 {
			t.Errorf("entry = %s size %d, want file size 5", entry.Kind, entry.Size)
		}
		if entry.RelativePath != "file.txt" {
			t.Errorf("RelativePath = %s, want file.txt", entry.RelativePath)
		}
	})

	t.Run("Directory", func(t *testing.T) {
		entry, err := local.Stat(ctx, "dir")
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if entry.Kind != models.KindDirectory {
			t.Errorf("Kind = %s, want directory", entry.Kind)
		}
	})

	t.Run("SymlinkNotFollowed", func(t *testing.T) {
		if err := os.Symlink("file.txt", filepath.Join(tempDir, "ln")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
		entry, err := local.Stat(ctx, "ln")
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if entry.Kind != models.KindSymlink || entry.LinkTarget != "file.txt" {
			t.Errorf("entry = %s -> %s, want symlink -> file.txt", entry.Kind, entry.LinkTarget)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := local.Stat(ctx, "missing"); err == nil {
			t.Error("Stat() should fail for missing path")
		}
	})
}

// TestBackendInterface verifies Local satisfies Backend
func TestBackendInterface(t *testing.T) {
	local, _ := newTestLocal(t)
	defer local.Close()
	var _ Backend = local
}
