package diff

import (
	"context"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// classifyBidirectional decides the action for one path when changes
// propagate both ways. The baseline from the previous run is what lets
// a missing path be read as "deleted on one side" instead of "new on
// the other"; without it every one-sided path is treated as new.
func (p *Planner) classifyBidirectional(ctx context.Context, source, dest storage.Backend, pair joined, baseline *models.Baseline) (*models.SyncAction, error) {
	recorded := baseline.Get(pair.path)

	switch {
	case pair.dst == nil:
		if skip := p.skipSourceEntry(pair.src); skip != nil {
			return skip, nil
		}
		if recorded == nil || !recorded.ExistsInDest {
			return &models.SyncAction{
				Kind:      models.ActionCopy,
				Path:      pair.path,
				Source:    pair.src,
				Direction: models.DirectionForward,
				Reason:    "new in source",
			}, nil
		}
		// Known path gone from the destination: propagate the delete
		// back unless the source copy changed in the meantime
		if !p.changedSince(pair.src, recorded) {
			return &models.SyncAction{
				Kind:      models.ActionDelete,
				Path:      pair.path,
				Source:    pair.src,
				Direction: models.DirectionReverse,
				Reason:    "deleted in destination",
			}, nil
		}
		return p.resolveConflict(&models.Conflict{
			Type:   models.ConflictDelete,
			Path:   pair.path,
			Source: pair.src,
			Detail: "deleted in destination but modified in source",
		}, pair)

	case pair.src == nil:
		if skip := p.skipReverseEntry(pair.dst); skip != nil {
			return skip, nil
		}
		if recorded == nil || !recorded.ExistsInSource {
			return &models.SyncAction{
				Kind:      models.ActionCopy,
				Path:      pair.path,
				Dest:      pair.dst,
				Direction: models.DirectionReverse,
				Reason:    "new in destination",
			}, nil
		}
		if !p.changedSince(pair.dst, recorded) {
			return &models.SyncAction{
				Kind:      models.ActionDelete,
				Path:      pair.path,
				Dest:      pair.dst,
				Direction: models.DirectionForward,
				Reason:    "deleted in source",
			}, nil
		}
		return p.resolveConflict(&models.Conflict{
			Type:   models.ConflictDelete,
			Path:   pair.path,
			Dest:   pair.dst,
			Detail: "deleted in source but modified in destination",
		}, pair)

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

		if recorded == nil {
			return p.classifyFirstSync(pair, outcome.Reason)
		}

		srcChanged := p.changedSince(pair.src, recorded)
		dstChanged := p.changedSince(pair.dst, recorded)
		switch {
		case srcChanged && !dstChanged:
			return &models.SyncAction{
				Kind:      models.ActionUpdate,
				Path:      pair.path,
				Source:    pair.src,
				Dest:      pair.dst,
				Direction: models.DirectionForward,
				Reason:    "modified in source",
			}, nil
		case dstChanged && !srcChanged:
			return &models.SyncAction{
				Kind:      models.ActionUpdate,
				Path:      pair.path,
				Source:    pair.src,
				Dest:      pair.dst,
				Direction: models.DirectionReverse,
				Reason:    "modified in destination",
			}, nil
		default:
			return p.resolveConflict(&models.Conflict{
				Type:   models.ConflictContent,
				Path:   pair.path,
				Source: pair.src,
				Dest:   pair.dst,
				Detail: "modified on both sides: " + outcome.Reason,
			}, pair)
		}
	}
}

// classifyFirstSync handles a both-sides divergence with no baseline to
// consult. A modification time gap beyond the skew threshold is taken
// as decisive; anything closer goes to the conflict strategy.
func (p *Planner) classifyFirstSync(pair joined, reason string) (*models.SyncAction, error) {
	delta := pair.src.ModTime.Sub(pair.dst.ModTime)
	switch {
	case delta > p.opts.SkewThreshold:
		return &models.SyncAction{
			Kind:      models.ActionUpdate,
			Path:      pair.path,
			Source:    pair.src,
			Dest:      pair.dst,
			Direction: models.DirectionForward,
			Reason:    "source is clearly newer",
		}, nil
	case -delta > p.opts.SkewThreshold:
		return &models.SyncAction{
			Kind:      models.ActionUpdate,
			Path:      pair.path,
			Source:    pair.src,
			Dest:      pair.dst,
			Direction: models.DirectionReverse,
			Reason:    "destination is clearly newer",
		}, nil
	default:
		return p.resolveConflict(&models.Conflict{
			Type:   models.ConflictContent,
			Path:   pair.path,
			Source: pair.src,
			Dest:   pair.dst,
			Detail: "diverged with no sync history: " + reason,
		}, pair)
	}
}

// changedSince reports whether an entry differs from its baseline record
func (p *Planner) changedSince(e *models.Entry, recorded *models.BaselineEntry) bool {
	if e.Kind != recorded.Kind {
		return true
	}
	if e.Kind == models.KindFile && e.Size != recorded.Size {
		return true
	}
	delta := e.ModTime.Sub(recorded.ModTime)
	if delta < 0 {
		delta = -delta
	}
	return delta > p.opts.TimestampTolerance
}

// skipReverseEntry mirrors skipSourceEntry for entries flowing from the
// destination side
func (p *Planner) skipReverseEntry(dst *models.Entry) *models.SyncAction {
	skip := p.skipSourceEntry(dst)
	if skip == nil {
		return nil
	}
	skip.Source = nil
	skip.Dest = dst
	return skip
}
