package diff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sdejongh/foldersync/pkg/compare"
	"github.com/sdejongh/foldersync/pkg/conflict"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func mkfile(path string, size int64, modTime time.Time) *models.Entry {
	return &models.Entry{
		RelativePath: path,
		Kind:         models.KindFile,
		Size:         size,
		ModTime:      modTime,
		Mode:         0644,
	}
}

func mkdirEntry(path string, modTime time.Time) *models.Entry {
	return &models.Entry{
		RelativePath: path,
		Kind:         models.KindDirectory,
		ModTime:      modTime,
		Mode:         0755,
	}
}

func mklink(path, target string) *models.Entry {
	return &models.Entry{
		RelativePath: path,
		Kind:         models.KindSymlink,
		LinkTarget:   target,
		ModTime:      baseTime,
	}
}

type planTester struct {
	t       *testing.T
	planner *Planner
	source  storage.Backend
	dest    storage.Backend
}

func newPlanTester(t *testing.T, mutate func(*models.SyncOptions)) *planTester {
	t.Helper()

	opts := models.DefaultOptions()
	opts.Comparison = models.CompareSizeTime
	if mutate != nil {
		mutate(&opts)
	}

	comparator, err := compare.New(opts, nil)
	if err != nil {
		t.Fatalf("compare.New() error = %v", err)
	}
	resolver, err := conflict.NewResolver(opts)
	if err != nil {
		t.Fatalf("conflict.NewResolver() error = %v", err)
	}

	source, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	dest, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	return &planTester{
		t:       t,
		planner: NewPlanner(opts, comparator, resolver, nil),
		source:  source,
		dest:    dest,
	}
}

func (pt *planTester) build(src, dst []*models.Entry, baseline *models.Baseline) *models.SyncPlan {
	pt.t.Helper()
	plan, err := pt.planner.Build(context.Background(), pt.source, pt.dest, src, dst, baseline)
	if err != nil {
		pt.t.Fatalf("Build() error = %v", err)
	}
	return plan
}

func findAction(plan *models.SyncPlan, path string) *models.SyncAction {
	for i := range plan.Actions {
		if plan.Actions[i].Path == path {
			return &plan.Actions[i]
		}
	}
	return nil
}

// TestMirrorClassification covers the basic per-path decisions
func TestMirrorClassification(t *testing.T) {
	t.Run("MissingInDestination", func(t *testing.T) {
		pt := newPlanTester(t, nil)
		plan := pt.build(
			[]*models.Entry{mkfile("new.txt", 10, baseTime)},
			nil, nil,
		)

		a := findAction(plan, "new.txt")
		if a == nil || a.Kind != models.ActionCopy {
			t.Fatalf("expected a copy for new.txt, got %+v", a)
		}
		if a.Direction != models.DirectionForward {
			t.Errorf("Direction = %s, want forward", a.Direction)
		}
	})

	t.Run("ExtraneousKeptByDefault", func(t *testing.T) {
		pt := newPlanTester(t, nil)
		plan := pt.build(nil, []*models.Entry{mkfile("extra.txt", 10, baseTime)}, nil)

		a := findAction(plan, "extra.txt")
		if a == nil || a.Kind != models.ActionSkip {
			t.Fatalf("expected a skip for extra.txt, got %+v", a)
		}
		if a.SkipReason != models.SkipExisting {
			t.Errorf("SkipReason = %s, want %s", a.SkipReason, models.SkipExisting)
		}
	})

	t.Run("ExtraneousDeletedWhenRequested", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.DeleteExtraneous = true })
		plan := pt.build(nil, []*models.Entry{mkfile("extra.txt", 10, baseTime)}, nil)

		a := findAction(plan, "extra.txt")
		if a == nil || a.Kind != models.ActionDelete {
			t.Fatalf("expected a delete for extra.txt, got %+v", a)
		}
	})

	t.Run("EqualEntriesProduceNoAction", func(t *testing.T) {
		pt := newPlanTester(t, nil)
		plan := pt.build(
			[]*models.Entry{mkfile("same.txt", 10, baseTime)},
			[]*models.Entry{mkfile("same.txt", 10, baseTime)},
			nil,
		)

		if len(plan.Actions) != 0 {
			t.Fatalf("expected empty plan, got %d actions", len(plan.Actions))
		}
		if plan.Summary.Unchanged != 1 {
			t.Errorf("Unchanged = %d, want 1", plan.Summary.Unchanged)
		}
	})

	t.Run("NewerSourceUpdates", func(t *testing.T) {
		pt := newPlanTester(t, nil)
		plan := pt.build(
			[]*models.Entry{mkfile("doc.txt", 20, baseTime)},
			[]*models.Entry{mkfile("doc.txt", 10, baseTime.Add(-time.Hour))},
			nil,
		)

		a := findAction(plan, "doc.txt")
		if a == nil || a.Kind != models.ActionUpdate {
			t.Fatalf("expected an update for doc.txt, got %+v", a)
		}
	})

	t.Run("NewerDestinationBecomesConflict", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.Strategy = models.StrategyManual })
		plan := pt.build(
			[]*models.Entry{mkfile("doc.txt", 10, baseTime.Add(-time.Hour))},
			[]*models.Entry{mkfile("doc.txt", 20, baseTime)},
			nil,
		)

		a := findAction(plan, "doc.txt")
		if a == nil || a.Kind != models.ActionConflict {
			t.Fatalf("expected a conflict for doc.txt, got %+v", a)
		}
		if a.Conflict.Type != models.ConflictContent {
			t.Errorf("Conflict.Type = %s, want content", a.Conflict.Type)
		}
		if a.Resolution.Kind != models.ResolveManual {
			t.Errorf("Resolution.Kind = %s, want manual", a.Resolution.Kind)
		}
	})

	t.Run("SkipStrategyMarksTheAction", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.Strategy = models.StrategySkip })
		plan := pt.build(
			[]*models.Entry{mkfile("doc.txt", 10, baseTime.Add(-time.Hour))},
			[]*models.Entry{mkfile("doc.txt", 20, baseTime)},
			nil,
		)

		a := findAction(plan, "doc.txt")
		if a == nil || a.Kind != models.ActionConflict {
			t.Fatalf("expected a conflict for doc.txt, got %+v", a)
		}
		if a.Resolution.Kind != models.ResolveSkip {
			t.Fatalf("Resolution.Kind = %s, want skip", a.Resolution.Kind)
		}
		if a.SkipReason != models.SkipByStrategy {
			t.Errorf("SkipReason = %s, want %s", a.SkipReason, models.SkipByStrategy)
		}
	})

	t.Run("KindMismatchBecomesConflict", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.Strategy = models.StrategyPreferSource })
		plan := pt.build(
			[]*models.Entry{mkfile("thing", 10, baseTime)},
			[]*models.Entry{mkdirEntry("thing", baseTime)},
			nil,
		)

		a := findAction(plan, "thing")
		if a == nil || a.Kind != models.ActionConflict {
			t.Fatalf("expected a conflict for thing, got %+v", a)
		}
		if a.Conflict.Type != models.ConflictKind {
			t.Errorf("Conflict.Type = %s, want kind", a.Conflict.Type)
		}
		if a.Resolution.Kind != models.ResolveUseSource {
			t.Errorf("Resolution.Kind = %s, want use_source", a.Resolution.Kind)
		}
	})

	t.Run("SymlinkTargetChange", func(t *testing.T) {
		pt := newPlanTester(t, nil)
		plan := pt.build(
			[]*models.Entry{mklink("ln", "new-target")},
			[]*models.Entry{mklink("ln", "old-target")},
			nil,
		)

		a := findAction(plan, "ln")
		if a == nil || a.Kind != models.ActionUpdate {
			t.Fatalf("expected an update for changed link target, got %+v", a)
		}
	})
}

// TestSizeAndPolicySkips covers entries ruled out by the options
func TestSizeAndPolicySkips(t *testing.T) {
	t.Run("TooLarge", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.MaxFileSize = 100 })
		plan := pt.build([]*models.Entry{mkfile("big.bin", 1000, baseTime)}, nil, nil)

		a := findAction(plan, "big.bin")
		if a == nil || a.Kind != models.ActionSkip || a.SkipReason != models.SkipTooLarge {
			t.Fatalf("expected too_large skip, got %+v", a)
		}
	})

	t.Run("TooSmall", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.MinFileSize = 100 })
		plan := pt.build([]*models.Entry{mkfile("tiny.bin", 10, baseTime)}, nil, nil)

		a := findAction(plan, "tiny.bin")
		if a == nil || a.Kind != models.ActionSkip || a.SkipReason != models.SkipTooSmall {
			t.Fatalf("expected too_small skip, got %+v", a)
		}
	})

	t.Run("SymlinkPolicySkip", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.Symlinks = models.SymlinkSkip })
		plan := pt.build([]*models.Entry{mklink("ln", "target")}, nil, nil)

		a := findAction(plan, "ln")
		if a == nil || a.Kind != models.ActionSkip || a.SkipReason != models.SkipSymlinkPolicy {
			t.Fatalf("expected symlink policy skip, got %+v", a)
		}
	})
}

// TestPlanOrdering verifies parents-first creations and deepest-first
// deletes
func TestPlanOrdering(t *testing.T) {
	pt := newPlanTester(t, func(o *models.SyncOptions) { o.DeleteExtraneous = true })

	src := []*models.Entry{
		mkdirEntry("newdir", baseTime),
		mkfile("newdir/child.txt", 5, baseTime),
		mkdirEntry("newdir/sub", baseTime),
		mkfile("newdir/sub/deep.txt", 5, baseTime),
	}
	dst := []*models.Entry{
		mkdirEntry("olddir", baseTime),
		mkfile("olddir/a.txt", 5, baseTime),
		mkdirEntry("olddir/sub", baseTime),
		mkfile("olddir/sub/b.txt", 5, baseTime),
	}

	plan := pt.build(src, dst, nil)

	position := map[string]int{}
	for i, a := range plan.Actions {
		position[a.Path] = i
	}

	// creations: parent before child
	if position["newdir"] > position["newdir/child.txt"] {
		t.Error("directory must be created before its children")
	}
	if position["newdir/sub"] > position["newdir/sub/deep.txt"] {
		t.Error("nested directory must be created before its children")
	}

	// deletes: children before parent, all after creations
	if position["olddir/sub/b.txt"] > position["olddir/sub"] {
		t.Error("files must be deleted before their directory")
	}
	if position["olddir/sub"] > position["olddir"] {
		t.Error("subdirectory must be deleted before its parent")
	}
	if position["olddir"] < position["newdir/sub/deep.txt"] {
		t.Error("deletes must run after creations")
	}
}

// TestKindConflictSubtrees verifies subtree suppression under a
// kind-conflicted path
func TestKindConflictSubtrees(t *testing.T) {
	t.Run("SourceDirWinsKeepsItsChildren", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) { o.Strategy = models.StrategyPreferSource })

		src := []*models.Entry{
			mkdirEntry("x", baseTime),
			mkfile("x/inner.txt", 5, baseTime),
		}
		dst := []*models.Entry{
			mkfile("x", 3, baseTime),
		}

		plan := pt.build(src, dst, nil)

		root := findAction(plan, "x")
		if root == nil || root.Kind != models.ActionConflict {
			t.Fatalf("expected kind conflict at x, got %+v", root)
		}
		inner := findAction(plan, "x/inner.txt")
		if inner == nil || inner.Kind != models.ActionCopy {
			t.Fatalf("source children must still be copied after the dir wins, got %+v", inner)
		}
	})

	t.Run("SourceFileWinsConsumesDestSubtree", func(t *testing.T) {
		pt := newPlanTester(t, func(o *models.SyncOptions) {
			o.Strategy = models.StrategyPreferSource
			o.DeleteExtraneous = true
		})

		src := []*models.Entry{
			mkfile("x", 3, baseTime),
		}
		dst := []*models.Entry{
			mkdirEntry("x", baseTime),
			mkfile("x/victim.txt", 5, baseTime),
			mkdirEntry("x/sub", baseTime),
		}

		plan := pt.build(src, dst, nil)

		root := findAction(plan, "x")
		if root == nil || root.Kind != models.ActionConflict {
			t.Fatalf("expected kind conflict at x, got %+v", root)
		}
		if a := findAction(plan, "x/victim.txt"); a != nil {
			t.Errorf("dest subtree under the conflict must produce no actions, got %+v", a)
		}
		if a := findAction(plan, "x/sub"); a != nil {
			t.Errorf("dest subtree under the conflict must produce no actions, got %+v", a)
		}
	})
}

// TestFailStrategyAbortsPlanning verifies the fail strategy surfaces
func TestFailStrategyAbortsPlanning(t *testing.T) {
	pt := newPlanTester(t, func(o *models.SyncOptions) { o.Strategy = models.StrategyFail })

	_, err := pt.planner.Build(context.Background(), pt.source, pt.dest,
		[]*models.Entry{mkfile("thing", 10, baseTime)},
		[]*models.Entry{mkdirEntry("thing", baseTime)},
		nil,
	)
	if err == nil {
		t.Fatal("Build() should fail under the fail strategy")
	}
	if !errors.Is(err, models.ErrConflictFail) {
		t.Errorf("error should wrap ErrConflictFail, got %v", err)
	}
}

// TestJoin verifies the merge of two sorted scans
func TestJoin(t *testing.T) {
	t.Run("Pairing", func(t *testing.T) {
		src := []*models.Entry{
			mkfile("a.txt", 1, baseTime),
			mkfile("both.txt", 1, baseTime),
		}
		dst := []*models.Entry{
			mkfile("both.txt", 1, baseTime),
			mkfile("z.txt", 1, baseTime),
		}

		pairs, err := join(src, dst)
		if err != nil {
			t.Fatalf("join() error = %v", err)
		}
		if len(pairs) != 3 {
			t.Fatalf("len(pairs) = %d, want 3", len(pairs))
		}
		if pairs[0].path != "a.txt" || pairs[0].dst != nil {
			t.Errorf("pairs[0] = %+v, want source-only a.txt", pairs[0])
		}
		if pairs[1].path != "both.txt" || pairs[1].src == nil || pairs[1].dst == nil {
			t.Errorf("pairs[1] = %+v, want both sides", pairs[1])
		}
		if pairs[2].path != "z.txt" || pairs[2].src != nil {
			t.Errorf("pairs[2] = %+v, want dest-only z.txt", pairs[2])
		}
	})

	t.Run("DuplicatePathRejected", func(t *testing.T) {
		src := []*models.Entry{
			mkfile("dup.txt", 1, baseTime),
			mkfile("dup.txt", 2, baseTime),
		}

		_, err := join(src, nil)
		var diffErr *models.DiffError
		if !errors.As(err, &diffErr) {
			t.Fatalf("join() error = %v, want DiffError", err)
		}
		if diffErr.Path != "dup.txt" {
			t.Errorf("DiffError.Path = %s, want dup.txt", diffErr.Path)
		}
	})
}

// TestCmpPath verifies component-wise ordering matches scan pre-order
func TestCmpPath(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "a", 0},
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a/x", -1},
		{"a/x", "a", 1},
		{"a/x", "a/y", -1},
		// "a" the component sorts before "a-b" even though '-' < '/'
		{"a/x", "a-b", -1},
		{"a-b", "a/x", 1},
		{"a/b/c", "a/b/c", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := cmpPath(tt.a, tt.b); got != tt.want {
				t.Errorf("cmpPath(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestSummaryConsistency verifies counts match the action list
func TestSummaryConsistency(t *testing.T) {
	pt := newPlanTester(t, func(o *models.SyncOptions) {
		o.DeleteExtraneous = true
		o.Strategy = models.StrategyManual
	})

	src := []*models.Entry{
		mkfile("conflicted", 10, baseTime),
		mkfile("new.txt", 30, baseTime),
		mkfile("same.txt", 5, baseTime),
		mkfile("update.txt", 20, baseTime),
	}
	dst := []*models.Entry{
		mkdirEntry("conflicted", baseTime),
		mkfile("gone.txt", 40, baseTime),
		mkfile("same.txt", 5, baseTime),
		mkfile("update.txt", 10, baseTime.Add(-time.Hour)),
	}

	plan := pt.build(src, dst, nil)
	s := plan.Summary

	if s.Copies != 1 || s.Updates != 1 || s.Deletes != 1 || s.Conflicts != 1 {
		t.Errorf("summary = %+v, want 1 copy / 1 update / 1 delete / 1 conflict", s)
	}
	if s.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", s.Unchanged)
	}
	if s.TotalActions != len(plan.Actions) {
		t.Errorf("TotalActions = %d, want %d", s.TotalActions, len(plan.Actions))
	}
	if s.BytesToTransfer != 30+20 {
		t.Errorf("BytesToTransfer = %d, want 50", s.BytesToTransfer)
	}
	if s.BytesToDelete != 40 {
		t.Errorf("BytesToDelete = %d, want 40", s.BytesToDelete)
	}
}
