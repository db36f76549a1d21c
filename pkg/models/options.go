package models

import (
	"time"
)

// SyncMode defines the synchronization direction
type SyncMode string

const (
	// ModeMirror makes the destination match the source
	ModeMirror SyncMode = "mirror"
	// ModeBidirectional propagates changes in both directions using the
	// recorded baseline from the previous run
	ModeBidirectional SyncMode = "bidirectional"
)

// ComparisonMethod defines how two entries are judged equal
type ComparisonMethod string

const (
	// CompareSize compares by size only
	CompareSize ComparisonMethod = "size"
	// CompareSizeTime compares by size and modification time
	CompareSizeTime ComparisonMethod = "sizetime"
	// CompareHash compares content digests
	CompareHash ComparisonMethod = "hash"
	// CompareBinary compares byte-by-byte with early exit
	CompareBinary ComparisonMethod = "binary"
	// CompareComprehensive compares size and time first, hashing only
	// when metadata matches
	CompareComprehensive ComparisonMethod = "comprehensive"
)

// HashAlgorithm selects the digest used by hash-based comparison
type HashAlgorithm string

const (
	HashXXH64  HashAlgorithm = "xxh64"
	HashSHA256 HashAlgorithm = "sha256"
	HashMD5    HashAlgorithm = "md5"
)

// SymlinkPolicy controls how symbolic links are handled during the scan
type SymlinkPolicy string

const (
	// SymlinkFollow resolves links and syncs their targets
	SymlinkFollow SymlinkPolicy = "follow"
	// SymlinkPreserve copies links as links
	SymlinkPreserve SymlinkPolicy = "preserve"
	// SymlinkSkip leaves links out of the sync entirely
	SymlinkSkip SymlinkPolicy = "skip"
)

// SyncOptions is the full configuration for one sync run
type SyncOptions struct {
	SourcePath string
	DestPath   string

	Mode               SyncMode
	Comparison         ComparisonMethod
	Hash               HashAlgorithm
	TimestampTolerance time.Duration

	Strategy ConflictStrategy
	// StrategyByPattern overrides Strategy for paths matching a glob,
	// first match wins
	StrategyByPattern map[string]ConflictStrategy
	// SkewThreshold is the minimum modification time difference for
	// bidirectional mode to auto-resolve in favor of the newer side
	SkewThreshold time.Duration
	// BackupDirectory receives preserved versions for backup strategies.
	// Empty means timestamped sibling files next to the original.
	BackupDirectory string

	IncludePatterns []string
	ExcludePatterns []string
	CaseSensitive   bool
	IncludeHidden   bool
	MaxFileSize     int64 // bytes, 0 = unlimited
	MinFileSize     int64 // bytes
	MaxDepth        int   // 0 = unlimited
	Symlinks        SymlinkPolicy

	MaxWorkers     int
	BufferSize     int
	BandwidthLimit int64 // bytes per second, 0 = unlimited

	DryRun           bool
	DeleteExtraneous bool
	ContinueOnError  bool

	PreserveTimes       bool
	PreservePermissions bool
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() SyncOptions {
	return SyncOptions{
		Mode:               ModeMirror,
		Comparison:         CompareSizeTime,
		Hash:               HashXXH64,
		TimestampTolerance: 2 * time.Second,
		Strategy:           StrategyPreferNewer,
		SkewThreshold:      2 * time.Second,
		CaseSensitive:      true,
		Symlinks:           SymlinkPreserve,
		MaxWorkers:         4,
		BufferSize:         256 * 1024,
		PreserveTimes:      true,
	}
}

// Validate checks the options for internal consistency
func (o *SyncOptions) Validate() error {
	if o.SourcePath == "" {
		return &ValidationError{Field: "SourcePath", Message: "source path is required"}
	}
	if o.DestPath == "" {
		return &ValidationError{Field: "DestPath", Message: "destination path is required"}
	}
	switch o.Mode {
	case ModeMirror, ModeBidirectional:
	default:
		return &ValidationError{Field: "Mode", Message: "mode must be mirror or bidirectional"}
	}
	switch o.Comparison {
	case CompareSize, CompareSizeTime, CompareHash, CompareBinary, CompareComprehensive:
	default:
		return &ValidationError{Field: "Comparison", Message: "unknown comparison method"}
	}
	switch o.Hash {
	case HashXXH64, HashSHA256, HashMD5:
	default:
		return &ValidationError{Field: "Hash", Message: "unknown hash algorithm"}
	}
	if _, err := ParseConflictStrategy(string(o.Strategy)); err != nil {
		return &ValidationError{Field: "Strategy", Message: err.Error()}
	}
	switch o.Symlinks {
	case SymlinkFollow, SymlinkPreserve, SymlinkSkip:
	default:
		return &ValidationError{Field: "Symlinks", Message: "symlink policy must be follow, preserve or skip"}
	}
	if o.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	if o.BufferSize < 1024 {
		return &ValidationError{Field: "BufferSize", Message: "buffer size must be at least 1024 bytes"}
	}
	if o.MaxFileSize > 0 && o.MinFileSize > o.MaxFileSize {
		return &ValidationError{Field: "MinFileSize", Message: "min file size exceeds max file size"}
	}
	if o.TimestampTolerance < 0 {
		return &ValidationError{Field: "TimestampTolerance", Message: "timestamp tolerance must not be negative"}
	}
	if o.BandwidthLimit < 0 {
		return &ValidationError{Field: "BandwidthLimit", Message: "bandwidth limit must not be negative"}
	}
	if o.Mode == ModeBidirectional && o.DeleteExtraneous {
		return &ValidationError{Field: "DeleteExtraneous", Message: "delete propagation in bidirectional mode is baseline-driven"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
