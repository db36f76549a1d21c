package sync

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/ratelimit"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// apply performs one action against the filesystem
func (e *Executor) apply(ctx context.Context, action *models.SyncAction) error {
	var err error
	switch action.Kind {
	case models.ActionCopy, models.ActionUpdate:
		err = e.transfer(ctx, action)
	case models.ActionDelete:
		err = e.delete(ctx, action)
	case models.ActionConflict:
		err = e.resolve(ctx, action)
	default:
		err = fmt.Errorf("unexpected action kind %q", action.Kind)
	}
	if err != nil {
		return &models.ActionError{Path: action.Path, Action: action.Kind, Err: err}
	}
	return nil
}

// sides returns the reading and writing backends plus the entry being
// propagated, honoring the action's direction
func (e *Executor) sides(action *models.SyncAction) (from, to storage.Backend, entry *models.Entry) {
	if action.Direction == models.DirectionReverse {
		return e.dest, e.source, action.Dest
	}
	return e.source, e.dest, action.Source
}

// transfer materializes one entry on the receiving side
func (e *Executor) transfer(ctx context.Context, action *models.SyncAction) error {
	from, to, entry := e.sides(action)
	return e.place(ctx, from, to, entry, action.Path)
}

// place writes one entry (file, directory, or link) onto a backend.
// Content is read from the entry's own path on the from side and
// written at toPath.
func (e *Executor) place(ctx context.Context, from, to storage.Backend, entry *models.Entry, toPath string) error {
	switch entry.Kind {
	case models.KindDirectory:
		return to.Mkdir(ctx, toPath, entry)

	case models.KindSymlink:
		return to.Symlink(ctx, toPath, entry.LinkTarget)

	default:
		rc, err := from.Read(ctx, entry.RelativePath)
		if err != nil {
			return err
		}
		defer rc.Close()

		var reader io.Reader = rc
		if e.limiter != nil {
			reader = ratelimit.NewReader(ctx, reader, e.limiter)
		}
		return to.WriteFile(ctx, toPath, reader, entry.Size, entry, storage.WriteOptions{
			PreserveTimes:       e.opts.PreserveTimes,
			PreservePermissions: e.opts.PreservePermissions,
		})
	}
}

// delete removes one entry from the receiving side
func (e *Executor) delete(ctx context.Context, action *models.SyncAction) error {
	target := e.dest
	if action.Direction == models.DirectionReverse {
		target = e.source
	}
	return target.Remove(ctx, action.Path)
}

// resolve carries out a decided conflict as one atomic unit of work:
// any backup first, then removal and placement in order, all within the
// action's single scheduling slot
func (e *Executor) resolve(ctx context.Context, action *models.SyncAction) error {
	c := action.Conflict
	r := action.Resolution

	switch r.Kind {
	case models.ResolveSkip:
		return nil

	case models.ResolveUseSource:
		if r.Backup && c.Dest != nil {
			if err := e.preserve(ctx, e.dest, c.Dest, action, true); err != nil {
				return fmt.Errorf("backup failed, destination untouched: %w", err)
			}
		}
		if c.Source == nil {
			// Source side deleted the path; propagate the delete
			return e.dest.Remove(ctx, action.Path)
		}
		if c.Dest != nil && c.Dest.Kind != c.Source.Kind {
			// A kind change cannot overwrite in place
			if err := e.dest.Remove(ctx, action.Path); err != nil {
				return err
			}
		}
		return e.place(ctx, e.source, e.dest, c.Source, action.Path)

	case models.ResolveUseDestination:
		if r.Backup && c.Source != nil {
			replaced := e.opts.Mode == models.ModeBidirectional
			if err := e.preserve(ctx, e.source, c.Source, action, replaced); err != nil {
				return fmt.Errorf("backup failed, source untouched: %w", err)
			}
		}
		if e.opts.Mode != models.ModeBidirectional {
			// Mirror mode never mutates the source; keeping the
			// destination needs no work beyond the backup
			return nil
		}
		if c.Dest == nil {
			return e.source.Remove(ctx, action.Path)
		}
		if c.Source != nil && c.Source.Kind != c.Dest.Kind {
			if err := e.source.Remove(ctx, action.Path); err != nil {
				return err
			}
		}
		return e.place(ctx, e.dest, e.source, c.Dest, action.Path)

	default:
		return fmt.Errorf("unexpected resolution %q", r.Kind)
	}
}

// preserve keeps the losing version of a conflict before the winner
// lands. It goes to the backup backend when one is configured;
// otherwise it stays next to the original with a timestamp suffix,
// renamed aside when the original is replaced anyway and copied when
// it survives. A rename cannot cross backends, so the backup backend
// always receives a copy.
func (e *Executor) preserve(ctx context.Context, side storage.Backend, entry *models.Entry, action *models.SyncAction, replaced bool) error {
	if entry.Kind == models.KindDirectory {
		// Directory trees are not snapshotted; their contents carry
		// their own conflicts
		return nil
	}

	if e.backup != nil {
		if err := e.place(ctx, side, e.backup, entry, action.Path); err != nil {
			return err
		}
		action.Resolution.BackupPath = e.backup.Root() + "/" + action.Path
		return nil
	}

	backupPath := action.Path + ".bak-" + time.Now().Format("20060102-150405")
	if replaced {
		if err := side.Rename(ctx, action.Path, backupPath); err != nil {
			return err
		}
	} else if err := e.place(ctx, side, side, entry, backupPath); err != nil {
		return err
	}
	action.Resolution.BackupPath = side.Root() + "/" + backupPath
	return nil
}
