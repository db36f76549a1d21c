package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdejongh/foldersync/internal/platform"
	"github.com/sdejongh/foldersync/pkg/config"
	"github.com/sdejongh/foldersync/pkg/logging"
	"github.com/sdejongh/foldersync/pkg/models"
)

// SyncFlags holds the flags shared by the sync and plan commands
type SyncFlags struct {
	Source     string
	Dest       string
	Mode       string
	Comparison string
	Hash       string
	Tolerance  time.Duration

	Conflict      string
	ConflictFor   map[string]string
	BackupDir     string
	SkewThreshold time.Duration

	Include       []string
	Exclude       []string
	IncludeHidden bool
	IgnoreCase    bool
	MaxSize       string
	MinSize       string
	MaxDepth      int
	Symlinks      string

	Parallel  int
	Bandwidth string

	DryRun          bool
	Delete          bool
	ContinueOnError bool
	ResetState      bool

	Output string

	LogFile   string
	LogFormat string
	LogLevel  string
}

// addSyncFlags registers the shared flag set on a command
func addSyncFlags(cmd *cobra.Command, flags *SyncFlags) {
	cmd.Flags().StringVarP(&flags.Source, "source", "s", "", "source directory path (required)")
	cmd.Flags().StringVarP(&flags.Dest, "dest", "d", "", "destination directory path (required)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("dest")

	cmd.Flags().StringVarP(&flags.Mode, "mode", "m", "", "sync mode: mirror, bidirectional")
	cmd.Flags().StringVar(&flags.Comparison, "comparison", "", "comparison method: size, sizetime, hash, binary, comprehensive")
	cmd.Flags().StringVar(&flags.Hash, "hash", "", "hash algorithm: xxh64, sha256, md5")
	cmd.Flags().DurationVar(&flags.Tolerance, "tolerance", -1, "timestamp tolerance for equality (e.g. 2s)")

	cmd.Flags().StringVar(&flags.Conflict, "conflict", "", "conflict strategy: prefer_source, prefer_destination, prefer_newer, prefer_older, prefer_larger, prefer_smaller, skip, backup_and_use_source, backup_and_keep_destination, manual, fail")
	cmd.Flags().StringToStringVar(&flags.ConflictFor, "conflict-for", nil, "per-pattern strategy overrides (pattern=strategy)")
	cmd.Flags().StringVar(&flags.BackupDir, "backup-dir", "", "directory receiving preserved conflict versions")
	cmd.Flags().DurationVar(&flags.SkewThreshold, "skew-threshold", -1, "modification time gap taken as decisive on first bidirectional sync")

	cmd.Flags().StringSliceVar(&flags.Include, "include", nil, "glob patterns to include (allowlist)")
	cmd.Flags().StringSliceVar(&flags.Exclude, "exclude", nil, "glob patterns to exclude")
	cmd.Flags().BoolVar(&flags.IncludeHidden, "hidden", false, "include hidden files and directories")
	cmd.Flags().BoolVar(&flags.IgnoreCase, "ignore-case", false, "case-insensitive pattern matching")
	cmd.Flags().StringVar(&flags.MaxSize, "max-size", "", "skip files larger than this (e.g. \"100M\")")
	cmd.Flags().StringVar(&flags.MinSize, "min-size", "", "skip files smaller than this")
	cmd.Flags().IntVar(&flags.MaxDepth, "max-depth", 0, "maximum traversal depth (0 = unlimited)")
	cmd.Flags().StringVar(&flags.Symlinks, "symlinks", "", "symlink policy: follow, preserve, skip")

	cmd.Flags().IntVarP(&flags.Parallel, "parallel", "p", 0, "number of parallel workers")
	cmd.Flags().StringVarP(&flags.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g. \"10M\", \"1G\")")

	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "plan only, don't change anything")
	cmd.Flags().BoolVar(&flags.Delete, "delete", false, "delete destination files missing from source (mirror mode)")
	cmd.Flags().BoolVar(&flags.ContinueOnError, "continue-on-error", false, "keep going after individual action failures")
	cmd.Flags().BoolVar(&flags.ResetState, "reset-state", false, "discard the recorded baseline before syncing")

	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "output format: human, json")

	cmd.Flags().StringVar(&flags.LogFile, "log-file", "", "write logs to file (default "+platform.DefaultLogPath()+")")
	cmd.Flags().StringVar(&flags.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// buildOptions layers flags over the configuration. Only flags the user
// actually set override the config file.
func buildOptions(cmd *cobra.Command, flags *SyncFlags, cfg *config.Config) (models.SyncOptions, error) {
	opts := cfg.Options(flags.Source, flags.Dest)

	if flags.Mode != "" {
		opts.Mode = models.SyncMode(flags.Mode)
	}
	if flags.Comparison != "" {
		opts.Comparison = models.ComparisonMethod(flags.Comparison)
	}
	if flags.Hash != "" {
		opts.Hash = models.HashAlgorithm(flags.Hash)
	}
	if flags.Tolerance >= 0 {
		opts.TimestampTolerance = flags.Tolerance
	}

	if flags.Conflict != "" {
		strategy, err := models.ParseConflictStrategy(flags.Conflict)
		if err != nil {
			return opts, err
		}
		opts.Strategy = strategy
	}
	if len(flags.ConflictFor) > 0 {
		if opts.StrategyByPattern == nil {
			opts.StrategyByPattern = make(map[string]models.ConflictStrategy, len(flags.ConflictFor))
		}
		for pattern, name := range flags.ConflictFor {
			strategy, err := models.ParseConflictStrategy(name)
			if err != nil {
				return opts, fmt.Errorf("--conflict-for %s: %w", pattern, err)
			}
			opts.StrategyByPattern[pattern] = strategy
		}
	}
	if flags.BackupDir != "" {
		opts.BackupDirectory = flags.BackupDir
	}
	if flags.SkewThreshold >= 0 {
		opts.SkewThreshold = flags.SkewThreshold
	}

	if len(flags.Include) > 0 {
		opts.IncludePatterns = append(opts.IncludePatterns, flags.Include...)
	}
	if len(flags.Exclude) > 0 {
		opts.ExcludePatterns = append(opts.ExcludePatterns, flags.Exclude...)
	}
	if cmd.Flags().Changed("hidden") {
		opts.IncludeHidden = flags.IncludeHidden
	}
	if flags.IgnoreCase {
		opts.CaseSensitive = false
	}
	if flags.MaxSize != "" {
		size, err := parseByteSize(flags.MaxSize)
		if err != nil {
			return opts, err
		}
		opts.MaxFileSize = size
	}
	if flags.MinSize != "" {
		size, err := parseByteSize(flags.MinSize)
		if err != nil {
			return opts, err
		}
		opts.MinFileSize = size
	}
	if cmd.Flags().Changed("max-depth") {
		opts.MaxDepth = flags.MaxDepth
	}
	if flags.Symlinks != "" {
		opts.Symlinks = models.SymlinkPolicy(flags.Symlinks)
	}

	if flags.Parallel > 0 {
		opts.MaxWorkers = flags.Parallel
	}
	if flags.Bandwidth != "" {
		limit, err := parseByteSize(flags.Bandwidth)
		if err != nil {
			return opts, err
		}
		opts.BandwidthLimit = limit
	}

	opts.DryRun = flags.DryRun
	if cmd.Flags().Changed("delete") {
		opts.DeleteExtraneous = flags.Delete
	}
	if cmd.Flags().Changed("continue-on-error") {
		opts.ContinueOnError = flags.ContinueOnError
	}

	return opts, nil
}

// buildLogger assembles the logger from flags and config: a file logger
// when one is configured, the console when --verbose is set, nothing
// otherwise
func buildLogger(flags *SyncFlags, cfg *config.Config) (logging.Logger, error) {
	path := flags.LogFile
	if path == "" && cfg.Logging.Enabled && cfg.Logging.File != "" {
		path = cfg.Logging.File
	}

	level := cfg.Logging.Level
	if flags.LogLevel != "" {
		level = flags.LogLevel
	}
	format := cfg.Logging.Format
	if flags.LogFormat != "" {
		format = flags.LogFormat
	}

	if path != "" {
		return logging.NewFileLogger(logging.FileOptions{
			Path:       path,
			Format:     logging.Format(format),
			Level:      logging.ParseLevel(level),
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 5,
		})
	}
	if globalFlags.Verbose {
		return logging.NewConsoleLogger(logging.ParseLevel(level)), nil
	}
	return logging.NewNullLogger(), nil
}

// outputFormat picks the output format from flag or config
func outputFormat(flags *SyncFlags, cfg *config.Config) string {
	if flags.Output != "" {
		return flags.Output
	}
	return cfg.Output.Format
}
