package config

import (
	"time"

	"github.com/sdejongh/foldersync/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Sync        SyncConfig        `yaml:"sync"`
	Conflicts   ConflictConfig    `yaml:"conflicts"`
	Filter      FilterConfig      `yaml:"filter"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SyncConfig holds sync-related settings
type SyncConfig struct {
	Mode               models.SyncMode         `yaml:"mode"`
	Comparison         models.ComparisonMethod `yaml:"comparison"`
	Hash               models.HashAlgorithm    `yaml:"hash"`
	TimestampTolerance time.Duration           `yaml:"timestamp_tolerance"`
	DeleteExtraneous   bool                    `yaml:"delete_extraneous"`
	PreserveTimes      bool                    `yaml:"preserve_times"`
	PreservePerms      bool                    `yaml:"preserve_permissions"`
	Symlinks           models.SymlinkPolicy    `yaml:"symlinks"`
}

// ConflictConfig holds conflict resolution settings
type ConflictConfig struct {
	Strategy models.ConflictStrategy `yaml:"strategy"`
	// ByPattern maps glob patterns to strategy overrides
	ByPattern map[string]models.ConflictStrategy `yaml:"by_pattern"`
	// SkewThreshold is the modification time gap taken as decisive on a
	// first bidirectional sync
	SkewThreshold   time.Duration `yaml:"skew_threshold"`
	BackupDirectory string        `yaml:"backup_directory"`
}

// FilterConfig holds entry selection settings
type FilterConfig struct {
	Include       []string `yaml:"include"`
	Exclude       []string `yaml:"exclude"`
	CaseSensitive bool     `yaml:"case_sensitive"`
	IncludeHidden bool     `yaml:"include_hidden"`
	MaxFileSize   int64    `yaml:"max_file_size"`
	MinFileSize   int64    `yaml:"min_file_size"`
	MaxDepth      int      `yaml:"max_depth"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers     int   `yaml:"max_workers"`
	BufferSize     int   `yaml:"buffer_size"`
	BandwidthLimit int64 `yaml:"bandwidth_limit"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bar
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // "json" or "text"
	Level   string `yaml:"level"`  // "debug", "info", "warn", "error"
	File    string `yaml:"file"`   // Log file path (empty = default location)
}

// Default returns the default configuration
func Default() *Config {
	base := models.DefaultOptions()
	return &Config{
		Sync: SyncConfig{
			Mode:               base.Mode,
			Comparison:         base.Comparison,
			Hash:               base.Hash,
			TimestampTolerance: base.TimestampTolerance,
			PreserveTimes:      true,
			Symlinks:           base.Symlinks,
		},
		Conflicts: ConflictConfig{
			Strategy:      base.Strategy,
			SkewThreshold: base.SkewThreshold,
		},
		Filter: FilterConfig{
			CaseSensitive: true,
			Exclude: []string{
				"*.tmp",
				".git/",
				"node_modules/",
			},
		},
		Performance: PerformanceConfig{
			MaxWorkers: base.MaxWorkers,
			BufferSize: base.BufferSize,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Format:  "text",
			Level:   "info",
		},
	}
}

// Options translates the configuration into run options for one pair
func (c *Config) Options(sourcePath, destPath string) models.SyncOptions {
	return models.SyncOptions{
		SourcePath: sourcePath,
		DestPath:   destPath,

		Mode:               c.Sync.Mode,
		Comparison:         c.Sync.Comparison,
		Hash:               c.Sync.Hash,
		TimestampTolerance: c.Sync.TimestampTolerance,
		DeleteExtraneous:   c.Sync.DeleteExtraneous,
		PreserveTimes:      c.Sync.PreserveTimes,
		PreservePermissions: c.Sync.PreservePerms,
		Symlinks:           c.Sync.Symlinks,

		Strategy:          c.Conflicts.Strategy,
		StrategyByPattern: c.Conflicts.ByPattern,
		SkewThreshold:     c.Conflicts.SkewThreshold,
		BackupDirectory:   c.Conflicts.BackupDirectory,

		IncludePatterns: c.Filter.Include,
		ExcludePatterns: c.Filter.Exclude,
		CaseSensitive:   c.Filter.CaseSensitive,
		IncludeHidden:   c.Filter.IncludeHidden,
		MaxFileSize:     c.Filter.MaxFileSize,
		MinFileSize:     c.Filter.MinFileSize,
		MaxDepth:        c.Filter.MaxDepth,

		MaxWorkers:     c.Performance.MaxWorkers,
		BufferSize:     c.Performance.BufferSize,
		BandwidthLimit: c.Performance.BandwidthLimit,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Performance.MaxWorkers < 1 {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must be at least 1",
		}
	}
	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if _, err := models.ParseConflictStrategy(string(c.Conflicts.Strategy)); err != nil {
		return &models.ValidationError{
			Field:   "conflicts.strategy",
			Message: err.Error(),
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}
