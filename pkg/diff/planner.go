// Package diff builds the execution plan for one sync run: it joins the
// scans of both sides, classifies every path, and resolves conflicts
// through the configured strategy.
package diff

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sdejongh/foldersync/pkg/compare"
	"github.com/sdejongh/foldersync/pkg/conflict"
	"github.com/sdejongh/foldersync/pkg/logging"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// Planner builds a SyncPlan from two scans
type Planner struct {
	opts       models.SyncOptions
	comparator compare.Comparator
	resolver   *conflict.Resolver
	logger     logging.Logger
}

// NewPlanner creates a planner. A nil logger disables planner logging.
func NewPlanner(opts models.SyncOptions, comparator compare.Comparator, resolver *conflict.Resolver, logger logging.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Planner{
		opts:       opts,
		comparator: comparator,
		resolver:   resolver,
		logger:     logger,
	}
}

// joined pairs the two sides of one relative path; either side may be nil
type joined struct {
	path string
	src  *models.Entry
	dst  *models.Entry
}

// Build joins the scans and produces an ordered plan. Actions come out
// with every parent directory before its children and deletes ordered
// deepest-first, so executing top to bottom is always safe.
func (p *Planner) Build(ctx context.Context, source, dest storage.Backend, srcEntries, dstEntries []*models.Entry, baseline *models.Baseline) (*models.SyncPlan, error) {
	pairs, err := join(srcEntries, dstEntries)
	if err != nil {
		return nil, err
	}

	plan := &models.SyncPlan{
		SourcePath: source.Root(),
		DestPath:   dest.Root(),
		Mode:       p.opts.Mode,
		CreatedAt:  time.Now(),
	}

	var deletes []models.SyncAction
	unchanged := 0

	// Kind-conflicted paths swallow part of their subtree: the conflict
	// action replaces the destination subtree atomically, so dest-only
	// entries under it need no actions of their own. When the winning
	// source side is not a directory, source entries underneath are
	// consumed as well.
	var consumedAll, consumedDest []string

	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if underAny(pair.path, consumedAll) {
			continue
		}
		if pair.src == nil && underAny(pair.path, consumedDest) {
			continue
		}

		var action *models.SyncAction
		if p.opts.Mode == models.ModeBidirectional {
			action, err = p.classifyBidirectional(ctx, source, dest, pair, baseline)
		} else {
			action, err = p.classifyMirror(ctx, source, dest, pair)
		}
		if err != nil {
			return nil, err
		}
		if action == nil {
			unchanged++
			continue
		}

		if action.Kind == models.ActionConflict && action.Conflict.Type == models.ConflictKind {
			if action.Resolution != nil &&
				action.Resolution.Kind == models.ResolveUseSource &&
				pair.src != nil && pair.src.Kind == models.KindDirectory {
				consumedDest = append(consumedDest, pair.path)
			} else {
				consumedAll = append(consumedAll, pair.path)
			}
		}

		if action.Kind == models.ActionDelete {
			deletes = append(deletes, *action)
			continue
		}
		plan.Actions = append(plan.Actions, *action)
	}

	// A delete takes its whole subtree with it, so one with pending work
	// still beneath it (a conflicted or surviving child) is dropped; the
	// per-child deletes already cover everything that really should go
	if len(deletes) > 0 && len(plan.Actions) > 0 {
		kept := deletes[:0]
		for _, d := range deletes {
			if hasActionUnder(plan.Actions, d.Path) {
				continue
			}
			kept = append(kept, d)
		}
		deletes = kept
	}

	// Deletes run strictly after creations and deepest-first, so a
	// directory is always emptied before its own delete
	sort.SliceStable(deletes, func(i, j int) bool {
		di, dj := pathDepth(deletes[i].Path), pathDepth(deletes[j].Path)
		if di != dj {
			return di > dj
		}
		return deletes[i].Path > deletes[j].Path
	})
	plan.Actions = append(plan.Actions, deletes...)

	plan.Summarize(unchanged)
	p.logger.Debug(ctx, "plan built", logging.Fields{
		"actions":   plan.Summary.TotalActions,
		"copies":    plan.Summary.Copies,
		"updates":   plan.Summary.Updates,
		"deletes":   plan.Summary.Deletes,
		"conflicts": plan.Summary.Conflicts,
		"skips":     plan.Summary.Skips,
		"unchanged": plan.Summary.Unchanged,
	})
	return plan, nil
}

// classifyMirror decides the action for one path in mirror mode: the
// destination is made to match the source, except that a destination
// modified more recently than the source is treated as a conflict so
// local changes are never silently destroyed.
func (p *Planner) classifyMirror(ctx context.Context, source, dest storage.Backend, pair joined) (*models.SyncAction, error) {
	switch {
	case pair.dst == nil:
		if skip := p.skipSourceEntry(pair.src); skip != nil {
			return skip, nil
		}
		return &models.SyncAction{
			Kind:      models.ActionCopy,
			Path:      pair.path,
			Source:    pair.src,
			Direction: models.DirectionForward,
			Reason:    "missing in destination",
		}, nil

	case pair.src == nil:
		if !p.opts.DeleteExtraneous {
			return &models.SyncAction{
				Kind:       models.ActionSkip,
				Path:       pair.path,
				Dest:       pair.dst,
				SkipReason: models.SkipExisting,
				Reason:     "extraneous in destination",
			}, nil
		}
		return &models.SyncAction{
			Kind:      models.ActionDelete,
			Path:      pair.path,
			Dest:      pair.dst,
			Direction: models.DirectionForward,
			Reason:    "missing in source",
		}, nil

	default:
		if pair.src.Kind != pair.dst.Kind {
			return p.resolveConflict(&models.Conflict{
				Type:   models.ConflictKind,
				Path:   pair.path,
				Source: pair.src,
				Dest:   pair.dst,
				Detail: string(pair.src.Kind) + " in source, " + string(pair.dst.Kind) + " in destination",
			}, pair)
		}
		if skip := p.skipSourceEntry(pair.src); skip != nil {
			skip.Dest = pair.dst
			return skip, nil
		}

		outcome, err := p.comparator.Compare(ctx, source, dest, pair.src, pair.dst)
		if err != nil {
			return nil, err
		}
		if outcome.Equal {
			return nil, nil
		}

		// A destination newer than the source holds changes a plain
		// overwrite would destroy
		if pair.src.Kind == models.KindFile &&
			pair.dst.ModTime.Sub(pair.src.ModTime) > p.opts.TimestampTolerance {
			return p.resolveConflict(&models.Conflict{
				Type:   models.ConflictContent,
				Path:   pair.path,
				Source: pair.src,
				Dest:   pair.dst,
				Detail: "destination modified after source: " + outcome.Reason,
			}, pair)
		}

		return &models.SyncAction{
			Kind:      models.ActionUpdate,
			Path:      pair.path,
			Source:    pair.src,
			Dest:      pair.dst,
			Direction: models.DirectionForward,
			Reason:    outcome.Reason,
		}, nil
	}
}

// skipSourceEntry returns a skip action when options rule the source
// entry out of the transfer, nil otherwise
func (p *Planner) skipSourceEntry(src *models.Entry) *models.SyncAction {
	if src.Kind == models.KindSymlink && p.opts.Symlinks == models.SymlinkSkip {
		return &models.SyncAction{
			Kind:       models.ActionSkip,
			Path:       src.RelativePath,
			Source:     src,
			SkipReason: models.SkipSymlinkPolicy,
			Reason:     "symbolic links are skipped",
		}
	}
	if src.Kind != models.KindFile {
		return nil
	}
	if p.opts.MaxFileSize > 0 && src.Size > p.opts.MaxFileSize {
		return &models.SyncAction{
			Kind:       models.ActionSkip,
			Path:       src.RelativePath,
			Source:     src,
			SkipReason: models.SkipTooLarge,
			Reason:     "file exceeds the size limit",
		}
	}
	if p.opts.MinFileSize > 0 && src.Size < p.opts.MinFileSize {
		return &models.SyncAction{
			Kind:       models.ActionSkip,
			Path:       src.RelativePath,
			Source:     src,
			SkipReason: models.SkipTooSmall,
			Reason:     "file is below the size limit",
		}
	}
	return nil
}

// resolveConflict runs the strategy and attaches the outcome to a
// conflict action
func (p *Planner) resolveConflict(c *models.Conflict, pair joined) (*models.SyncAction, error) {
	resolution, err := p.resolver.Resolve(c)
	if err != nil {
		return nil, err
	}
	direction := models.DirectionForward
	if resolution.Kind == models.ResolveUseDestination {
		direction = models.DirectionReverse
	}
	action := &models.SyncAction{
		Kind:       models.ActionConflict,
		Path:       c.Path,
		Source:     pair.src,
		Dest:       pair.dst,
		Conflict:   c,
		Resolution: resolution,
		Direction:  direction,
		Reason:     resolution.Rationale,
	}
	if resolution.Kind == models.ResolveSkip {
		action.SkipReason = models.SkipByStrategy
	}
	return action, nil
}

// join merges two scans sorted in pre-order into per-path pairs. A
// duplicate relative path within one side means the scan is corrupt.
func join(src, dst []*models.Entry) ([]joined, error) {
	pairs := make([]joined, 0, len(src)+len(dst))
	i, j := 0, 0
	for i < len(src) || j < len(dst) {
		switch {
		case j >= len(dst):
			pairs = append(pairs, joined{path: src[i].RelativePath, src: src[i]})
			i++
		case i >= len(src):
			pairs = append(pairs, joined{path: dst[j].RelativePath, dst: dst[j]})
			j++
		default:
			switch cmpPath(src[i].RelativePath, dst[j].RelativePath) {
			case -1:
				pairs = append(pairs, joined{path: src[i].RelativePath, src: src[i]})
				i++
			case 1:
				pairs = append(pairs, joined{path: dst[j].RelativePath, dst: dst[j]})
				j++
			default:
				pairs = append(pairs, joined{path: src[i].RelativePath, src: src[i], dst: dst[j]})
				i++
				j++
			}
		}
	}

	for k := 1; k < len(pairs); k++ {
		if pairs[k].path == pairs[k-1].path {
			return nil, &models.DiffError{Path: pairs[k].path, Reason: "duplicate relative path in scan"}
		}
	}
	return pairs, nil
}

// cmpPath orders slash-separated paths component-wise, matching the
// pre-order produced by a scan ("a" sorts before "a-b" because the
// component "a" is shorter, even though '/' > '-')
func cmpPath(a, b string) int {
	for {
		ai := strings.IndexByte(a, '/')
		bi := strings.IndexByte(b, '/')
		aSeg, bSeg := a, b
		if ai >= 0 {
			aSeg = a[:ai]
		}
		if bi >= 0 {
			bSeg = b[:bi]
		}
		if aSeg != bSeg {
			if aSeg < bSeg {
				return -1
			}
			return 1
		}
		if ai < 0 && bi < 0 {
			return 0
		}
		if ai < 0 {
			return -1
		}
		if bi < 0 {
			return 1
		}
		a, b = a[ai+1:], b[bi+1:]
	}
}

func pathDepth(p string) int {
	return strings.Count(p, "/")
}

func hasActionUnder(actions []models.SyncAction, path string) bool {
	prefix := path + "/"
	for i := range actions {
		if strings.HasPrefix(actions[i].Path, prefix) {
			return true
		}
	}
	return false
}

func underAny(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
