package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseConflictStrategy(t *testing.T) {
	valid := []string{
		"prefer_source", "prefer_destination",
		"prefer_newer", "prefer_older",
		"prefer_larger", "prefer_smaller",
		"skip", "backup_and_use_source", "backup_and_keep_destination",
		"manual", "fail",
	}
	for _, s := range valid {
		t.Run(s, func(t *testing.T) {
			got, err := ParseConflictStrategy(s)
			if err != nil {
				t.Errorf("ParseConflictStrategy(%q) error = %v", s, err)
			}
			if string(got) != s {
				t.Errorf("ParseConflictStrategy(%q) = %q", s, got)
			}
		})
	}

	for _, s := range []string{"", "both", "PREFER_NEWER", "ask"} {
		t.Run("invalid_"+s, func(t *testing.T) {
			if _, err := ParseConflictStrategy(s); err == nil {
				t.Errorf("ParseConflictStrategy(%q) should fail", s)
			}
		})
	}
}

func TestSyncOptionsValidate(t *testing.T) {
	base := func() SyncOptions {
		o := DefaultOptions()
		o.SourcePath = "/source"
		o.DestPath = "/dest"
		return o
	}

	t.Run("ValidDefaults", func(t *testing.T) {
		o := base()
		if err := o.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	tests := []struct {
		name      string
		mutate    func(*SyncOptions)
		wantField string
	}{
		{"EmptySourcePath", func(o *SyncOptions) { o.SourcePath = "" }, "SourcePath"},
		{"EmptyDestPath", func(o *SyncOptions) { o.DestPath = "" }, "DestPath"},
		{"UnknownMode", func(o *SyncOptions) { o.Mode = "oneway" }, "Mode"},
		{"UnknownComparison", func(o *SyncOptions) { o.Comparison = "checksum" }, "Comparison"},
		{"UnknownHash", func(o *SyncOptions) { o.Hash = "crc32" }, "Hash"},
		{"UnknownStrategy", func(o *SyncOptions) { o.Strategy = "ask" }, "Strategy"},
		{"UnknownSymlinkPolicy", func(o *SyncOptions) { o.Symlinks = "dereference" }, "Symlinks"},
		{"ZeroWorkers", func(o *SyncOptions) { o.MaxWorkers = 0 }, "MaxWorkers"},
		{"TinyBuffer", func(o *SyncOptions) { o.BufferSize = 512 }, "BufferSize"},
		{"MinAboveMax", func(o *SyncOptions) { o.MinFileSize = 2048; o.MaxFileSize = 1024 }, "MinFileSize"},
		{"NegativeTolerance", func(o *SyncOptions) { o.TimestampTolerance = -time.Second }, "TimestampTolerance"},
		{"NegativeBandwidth", func(o *SyncOptions) { o.BandwidthLimit = -1 }, "BandwidthLimit"},
		{
			"BidirectionalWithDeleteExtraneous",
			func(o *SyncOptions) { o.Mode = ModeBidirectional; o.DeleteExtraneous = true },
			"DeleteExtraneous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base()
			tt.mutate(&o)

			err := o.Validate()
			if err == nil {
				t.Fatal("Validate() should have failed")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error should be a ValidationError, got %T", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "MaxWorkers", Message: "must be at least 1"}
	if got := err.Error(); got != "MaxWorkers: must be at least 1" {
		t.Errorf("Error() = %q", got)
	}
}

func TestActionBytes(t *testing.T) {
	file := func(size int64) *Entry {
		return &Entry{RelativePath: "f", Kind: KindFile, Size: size}
	}
	dir := &Entry{RelativePath: "d", Kind: KindDirectory}

	tests := []struct {
		name   string
		action SyncAction
		want   int64
	}{
		{"ForwardCopy", SyncAction{Kind: ActionCopy, Source: file(100)}, 100},
		{"ReverseCopy", SyncAction{Kind: ActionCopy, Direction: DirectionReverse, Source: file(100), Dest: file(250)}, 250},
		{"ForwardUpdate", SyncAction{Kind: ActionUpdate, Source: file(77), Dest: file(10)}, 77},
		{"ForwardDelete", SyncAction{Kind: ActionDelete, Dest: file(40)}, 40},
		{"ReverseDelete", SyncAction{Kind: ActionDelete, Direction: DirectionReverse, Source: file(60)}, 60},
		{"DirectoryCopy", SyncAction{Kind: ActionCopy, Source: dir}, 0},
		{"Skip", SyncAction{Kind: ActionSkip, Source: file(100)}, 0},
		{"Conflict", SyncAction{Kind: ActionConflict, Source: file(100), Dest: file(200)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.Bytes(); got != tt.want {
				t.Errorf("Bytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestActionIsMutation(t *testing.T) {
	tests := []struct {
		kind ActionKind
		want bool
	}{
		{ActionCopy, true},
		{ActionUpdate, true},
		{ActionDelete, true},
		{ActionSkip, false},
		{ActionConflict, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			a := SyncAction{Kind: tt.kind}
			if got := a.IsMutation(); got != tt.want {
				t.Errorf("IsMutation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanSummarize(t *testing.T) {
	file := func(path string, size int64) *Entry {
		return &Entry{RelativePath: path, Kind: KindFile, Size: size}
	}

	plan := &SyncPlan{
		Actions: []SyncAction{
			{Kind: ActionCopy, Path: "a", Source: file("a", 100)},
			{Kind: ActionUpdate, Path: "b", Source: file("b", 50), Dest: file("b", 10)},
			{Kind: ActionDelete, Path: "c", Dest: file("c", 30)},
			{Kind: ActionConflict, Path: "d"},
			{Kind: ActionSkip, Path: "e", SkipReason: SkipTooLarge},
		},
	}
	plan.Summarize(7)

	s := plan.Summary
	if s.Copies != 1 || s.Updates != 1 || s.Deletes != 1 || s.Conflicts != 1 || s.Skips != 1 {
		t.Errorf("Summary counts = %+v", s)
	}
	if s.Unchanged != 7 {
		t.Errorf("Unchanged = %d, want 7", s.Unchanged)
	}
	if s.BytesToTransfer != 150 {
		t.Errorf("BytesToTransfer = %d, want 150", s.BytesToTransfer)
	}
	if s.BytesToDelete != 30 {
		t.Errorf("BytesToDelete = %d, want 30", s.BytesToDelete)
	}
	if s.TotalActions != 5 {
		t.Errorf("TotalActions = %d, want 5", s.TotalActions)
	}
}

func TestPlanHasMutations(t *testing.T) {
	quiet := &SyncPlan{Actions: []SyncAction{
		{Kind: ActionSkip},
		{Kind: ActionConflict},
	}}
	if quiet.HasMutations() {
		t.Error("HasMutations() should be false for skips and conflicts")
	}

	busy := &SyncPlan{Actions: []SyncAction{
		{Kind: ActionSkip},
		{Kind: ActionDelete},
	}}
	if !busy.HasMutations() {
		t.Error("HasMutations() should be true when a delete is planned")
	}
}

func TestSyncStatusExitCode(t *testing.T) {
	tests := []struct {
		status SyncStatus
		want   int
	}{
		{StatusSuccess, 0},
		{StatusPartial, 1},
		{StatusFailed, 2},
		{StatusCancelled, 3},
		{SyncStatus("bogus"), 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEntryDepth(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"file.txt", 0},
		{"a/file.txt", 1},
		{"a/b/c/file.txt", 3},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := &Entry{RelativePath: tt.path}
			if got := e.Depth(); got != tt.want {
				t.Errorf("Depth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEntryIsDir(t *testing.T) {
	if (&Entry{Kind: KindFile}).IsDir() {
		t.Error("file entry should not be a directory")
	}
	if !(&Entry{Kind: KindDirectory}).IsDir() {
		t.Error("directory entry should be a directory")
	}
	if (&Entry{Kind: KindSymlink}).IsDir() {
		t.Error("symlink entry should not be a directory")
	}
}

func TestBaselineFirstSync(t *testing.T) {
	var nilBaseline *Baseline
	if !nilBaseline.IsFirstSync() {
		t.Error("nil baseline is a first sync")
	}

	b := NewBaseline("/src", "/dst")
	if !b.IsFirstSync() {
		t.Error("baseline without a recorded run is a first sync")
	}

	b.LastSyncTime = time.Now()
	if b.IsFirstSync() {
		t.Error("baseline with a recorded run is not a first sync")
	}
}

func TestDiffError(t *testing.T) {
	err := &DiffError{Path: "a/b", Reason: "duplicate relative path"}
	want := `diff error at "a/b": duplicate relative path`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestActionError(t *testing.T) {
	inner := errors.New("permission denied")
	err := &ActionError{Path: "docs/x.txt", Action: ActionCopy, Err: inner}

	want := `copy "docs/x.txt": permission denied`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, inner) {
		t.Error("ActionError should unwrap to the inner error")
	}
}
