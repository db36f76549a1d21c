// Package sync orchestrates a full run: scanning both sides, building
// the plan, executing it, and recording the baseline for the next run.
package sync

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/foldersync/pkg/compare"
	"github.com/sdejongh/foldersync/pkg/conflict"
	"github.com/sdejongh/foldersync/pkg/diff"
	"github.com/sdejongh/foldersync/pkg/filter"
	"github.com/sdejongh/foldersync/pkg/logging"
	"github.com/sdejongh/foldersync/pkg/metrics"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/progress"
	"github.com/sdejongh/foldersync/pkg/ratelimit"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// Engine ties the stages of one sync run together
type Engine struct {
	opts      models.SyncOptions
	logger    logging.Logger
	emitter   *progress.Emitter
	collector *metrics.Collector
	limiter   *ratelimit.Limiter

	// OnPlan, when set, is called with the finished plan before any
	// action executes
	OnPlan func(*models.SyncPlan)
}

// New validates the options and builds an engine. Logger and emitter
// may be nil.
func New(opts models.SyncOptions, logger logging.Logger, emitter *progress.Emitter) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := checkRoots(opts.SourcePath, opts.DestPath); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Engine{
		opts:      opts,
		logger:    logger,
		emitter:   emitter,
		collector: metrics.NewCollector(),
		limiter:   ratelimit.NewLimiter(opts.BandwidthLimit),
	}, nil
}

// RunID returns the unique identifier of this run
func (e *Engine) RunID() string {
	return e.collector.RunID()
}

// Metrics returns a snapshot of the run counters
func (e *Engine) Metrics() metrics.Snapshot {
	return e.collector.Snapshot()
}

// checkRoots rejects nested source and destination roots, which would
// make the sync feed on its own output
func checkRoots(sourcePath, destPath string) error {
	src, err := filepath.Abs(sourcePath)
	if err != nil {
		return err
	}
	dst, err := filepath.Abs(destPath)
	if err != nil {
		return err
	}
	if src == dst {
		return &models.ValidationError{Field: "DestPath", Message: "source and destination are the same directory"}
	}
	sep := string(filepath.Separator)
	if strings.HasPrefix(dst+sep, src+sep) || strings.HasPrefix(src+sep, dst+sep) {
		return &models.ValidationError{Field: "DestPath", Message: "source and destination must not be nested"}
	}
	return nil
}

// Plan scans both sides and builds the plan without touching anything
func (e *Engine) Plan(ctx context.Context) (*models.SyncPlan, error) {
	source, dest, _, plan, err := e.prepare(ctx)
	if source != nil {
		defer source.Close()
	}
	if dest != nil {
		defer dest.Close()
	}
	return plan, err
}

// prepare opens both backends, scans them concurrently, and builds the
// plan. Callers own closing the returned backends.
func (e *Engine) prepare(ctx context.Context) (storage.Backend, storage.Backend, *models.Baseline, *models.SyncPlan, error) {
	fl, err := filter.New(e.opts)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	source, err := storage.NewLocal(e.opts.SourcePath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("source: %w", err)
	}
	dest, err := storage.NewLocalCreate(e.opts.DestPath)
	if err != nil {
		source.Close()
		return nil, nil, nil, nil, fmt.Errorf("destination: %w", err)
	}

	scanOpts := storage.ScanOptions{
		Excluded:        fl.Excluded,
		IncludeHidden:   e.opts.IncludeHidden,
		MaxDepth:        e.opts.MaxDepth,
		Symlinks:        e.opts.Symlinks,
		ContinueOnError: e.opts.ContinueOnError,
	}

	var srcEntries, dstEntries []*models.Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.emitter.Emit(progress.Event{Kind: progress.ScanStarted, Side: "source"})
		entries, stats, err := source.Scan(gctx, scanOpts)
		if err != nil {
			return fmt.Errorf("source scan: %w", err)
		}
		srcEntries = entries
		e.emitter.Emit(progress.Event{Kind: progress.ScanFinished, Side: "source", Count: len(entries), Bytes: stats.Bytes})
		e.logScan(gctx, "source", stats)
		return nil
	})
	g.Go(func() error {
		e.emitter.Emit(progress.Event{Kind: progress.ScanStarted, Side: "destination"})
		entries, stats, err := dest.Scan(gctx, scanOpts)
		if err != nil {
			return fmt.Errorf("destination scan: %w", err)
		}
		dstEntries = entries
		e.emitter.Emit(progress.Event{Kind: progress.ScanFinished, Side: "destination", Count: len(entries), Bytes: stats.Bytes})
		e.logScan(gctx, "destination", stats)
		return nil
	})
	if err := g.Wait(); err != nil {
		source.Close()
		dest.Close()
		return nil, nil, nil, nil, err
	}

	var baseline *models.Baseline
	if e.opts.Mode == models.ModeBidirectional {
		baseline, err = LoadBaseline(source.Root(), dest.Root())
		if err != nil {
			source.Close()
			dest.Close()
			return nil, nil, nil, nil, err
		}
	}

	wrap := func(r io.Reader) io.Reader {
		return ratelimit.NewReader(ctx, r, e.limiter)
	}
	comparator, err := compare.New(e.opts, wrap)
	if err != nil {
		source.Close()
		dest.Close()
		return nil, nil, nil, nil, err
	}
	resolver, err := conflict.NewResolver(e.opts)
	if err != nil {
		source.Close()
		dest.Close()
		return nil, nil, nil, nil, err
	}

	planner := diff.NewPlanner(e.opts, comparator, resolver, e.logger)
	plan, err := planner.Build(ctx, source, dest, srcEntries, dstEntries, baseline)
	if err != nil {
		source.Close()
		dest.Close()
		return nil, nil, nil, nil, err
	}
	plan.RunID = e.collector.RunID()

	e.emitter.Emit(progress.Event{Kind: progress.PlanReady, Count: plan.Summary.TotalActions})
	if e.OnPlan != nil {
		e.OnPlan(plan)
	}
	return source, dest, baseline, plan, nil
}

// logScan reports the outcome of one side's scan, surfacing every
// entry the scan had to skip over
func (e *Engine) logScan(ctx context.Context, side string, stats *storage.ScanStats) {
	e.logger.Info(ctx, side+" scan finished", logging.Fields{
		"files": stats.Files, "dirs": stats.Dirs, "symlinks": stats.Symlinks,
		"excluded": stats.Excluded, "bytes": stats.Bytes, "warnings": len(stats.Warnings),
	})
	for _, w := range stats.Warnings {
		e.logger.Warn(ctx, side+" scan warning", logging.Fields{
			"path":  w.Path,
			"error": w.Err.Error(),
		})
	}
}

// Run executes a full sync and returns the report
func (e *Engine) Run(ctx context.Context) (*models.SyncReport, error) {
	start := time.Now()

	source, dest, _, plan, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer source.Close()
	defer dest.Close()

	report := &models.SyncReport{
		RunID:      plan.RunID,
		SourcePath: source.Root(),
		DestPath:   dest.Root(),
		Mode:       e.opts.Mode,
		DryRun:     e.opts.DryRun,
		StartTime:  start,
		Planned:    plan.Summary,
	}

	if e.opts.DryRun {
		for i := range plan.Actions {
			a := &plan.Actions[i]
			if a.Kind == models.ActionConflict && a.Conflict != nil &&
				(a.Resolution == nil || a.Resolution.Kind == models.ResolveManual) {
				report.Conflicts = append(report.Conflicts, *a.Conflict)
			}
		}
		report.Status = models.StatusSuccess
		e.finish(ctx, report, start)
		return report, nil
	}

	var backup storage.Backend
	if e.opts.BackupDirectory != "" {
		backup, err = storage.NewLocalCreate(e.opts.BackupDirectory)
		if err != nil {
			return nil, fmt.Errorf("backup directory: %w", err)
		}
		defer backup.Close()
	}

	executor := NewExecutor(source, dest, backup, e.opts, e.limiter, e.collector, e.emitter, e.logger)
	result, err := executor.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	report.Executed = result.Executed
	report.Errors = result.Errors
	report.Conflicts = result.Unresolved
	report.BytesTransferred = result.BytesTransferred
	report.BytesDeleted = result.BytesDeleted
	report.Status = runStatus(result)

	if e.opts.Mode == models.ModeBidirectional && !result.Cancelled {
		if err := e.saveBaseline(ctx, source, dest); err != nil {
			e.logger.Warn(ctx, "failed to save baseline", logging.Fields{"error": err.Error()})
		}
	}

	e.finish(ctx, report, start)
	return report, nil
}

func runStatus(result *Result) models.SyncStatus {
	switch {
	case result.Cancelled:
		return models.StatusCancelled
	case len(result.Errors) > 0 &&
		result.Executed.Copies+result.Executed.Updates+result.Executed.Deletes+result.Executed.Conflicts+result.Executed.Skips == 0:
		return models.StatusFailed
	case len(result.Errors) > 0 || len(result.Unresolved) > 0:
		return models.StatusPartial
	default:
		return models.StatusSuccess
	}
}

// saveBaseline rescans both sides after execution and records the union
// as the next run's baseline. Rescanning observes what actually
// happened, including actions that failed halfway.
func (e *Engine) saveBaseline(ctx context.Context, source, dest storage.Backend) error {
	fl, err := filter.New(e.opts)
	if err != nil {
		return err
	}
	scanOpts := storage.ScanOptions{
		Excluded:        fl.Excluded,
		IncludeHidden:   e.opts.IncludeHidden,
		MaxDepth:        e.opts.MaxDepth,
		Symlinks:        e.opts.Symlinks,
		ContinueOnError: e.opts.ContinueOnError,
	}

	srcEntries, _, err := source.Scan(ctx, scanOpts)
	if err != nil {
		return err
	}
	dstEntries, _, err := dest.Scan(ctx, scanOpts)
	if err != nil {
		return err
	}

	baseline := models.NewBaseline(source.Root(), dest.Root())
	inSource := make(map[string]*models.Entry, len(srcEntries))
	for _, entry := range srcEntries {
		inSource[entry.RelativePath] = entry
	}
	for _, entry := range dstEntries {
		baseline.Record(entry, inSource[entry.RelativePath] != nil, true)
	}
	inDest := make(map[string]bool, len(dstEntries))
	for _, entry := range dstEntries {
		inDest[entry.RelativePath] = true
	}
	for _, entry := range srcEntries {
		if !inDest[entry.RelativePath] {
			baseline.Record(entry, true, false)
		}
	}
	baseline.LastSyncTime = time.Now()
	return SaveBaseline(baseline)
}

func (e *Engine) finish(ctx context.Context, report *models.SyncReport, start time.Time) {
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(start)
	e.emitter.Emit(progress.Event{Kind: progress.RunFinished, Count: report.Executed.TotalActions})
	e.logger.Info(ctx, "run finished", logging.Fields{
		"run_id":   report.RunID,
		"status":   string(report.Status),
		"duration": report.Duration.String(),
		"copied":   report.Executed.Copies,
		"updated":  report.Executed.Updates,
		"deleted":  report.Executed.Deletes,
		"errors":   len(report.Errors),
	})
}
