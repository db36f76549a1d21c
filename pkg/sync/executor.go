package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sdejongh/foldersync/pkg/logging"
	"github.com/sdejongh/foldersync/pkg/metrics"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/progress"
	"github.com/sdejongh/foldersync/pkg/ratelimit"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// Executor runs a plan's actions concurrently. Parallelism is bounded
// by a weighted semaphore; ordering between dependent actions (parent
// directories before children, everything beneath a delete before the
// delete itself) is enforced with per-action done channels, so
// independent subtrees proceed at full width.
type Executor struct {
	source  storage.Backend
	dest    storage.Backend
	backup  storage.Backend
	opts    models.SyncOptions
	limiter *ratelimit.Limiter
	metrics *metrics.Collector
	emitter *progress.Emitter
	logger  logging.Logger
}

// NewExecutor creates an executor. The backup backend receives
// preserved conflict versions and may be nil, in which case backups
// land next to the file they preserve. Emitter and logger may be nil.
func NewExecutor(source, dest, backup storage.Backend, opts models.SyncOptions, limiter *ratelimit.Limiter, collector *metrics.Collector, emitter *progress.Emitter, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Executor{
		source:  source,
		dest:    dest,
		backup:  backup,
		opts:    opts,
		limiter: limiter,
		metrics: collector,
		emitter: emitter,
		logger:  logger,
	}
}

// node is one schedulable action. done is closed when the action has
// finished, successfully or not; err is only read after done is closed.
type node struct {
	action *models.SyncAction
	deps   []*node
	done   chan struct{}
	err    error
}

// Result is the outcome of executing one plan
type Result struct {
	Executed         models.Summary
	Errors           []models.SyncError
	Unresolved       []models.Conflict
	BytesTransferred int64
	BytesDeleted     int64
	Cancelled        bool
}

// Execute runs every executable action in the plan and returns what
// actually happened. Skips and unresolved conflicts are accounted for
// but never scheduled.
func (e *Executor) Execute(ctx context.Context, plan *models.SyncPlan) (*Result, error) {
	result := &Result{}
	var mu gosync.Mutex

	nodes := make([]*node, 0, len(plan.Actions))
	byPath := make(map[string]*node, len(plan.Actions))

	for i := range plan.Actions {
		action := &plan.Actions[i]

		switch {
		case action.Kind == models.ActionSkip:
			result.Executed.Skips++
			if e.metrics != nil {
				e.metrics.AddSkipped()
			}
			e.emitter.Emit(progress.Event{
				Kind:   progress.ActionCompleted,
				Path:   action.Path,
				Action: action.Kind,
			})
			continue

		case action.Kind == models.ActionConflict && !executable(action.Resolution):
			result.Unresolved = append(result.Unresolved, *action.Conflict)
			if e.metrics != nil {
				e.metrics.AddConflict(false)
			}
			continue
		}

		n := &node{action: action, done: make(chan struct{})}
		nodes = append(nodes, n)
		byPath[action.Path] = n
	}

	// Wire dependencies by path. Creations wait for their parent
	// directory's action; a delete removes its whole subtree, so it
	// waits for everything still pending beneath it.
	for _, n := range nodes {
		parent := parentPath(n.action.Path)
		if parent == "" {
			continue
		}
		if p, ok := byPath[parent]; ok &&
			n.action.Kind != models.ActionDelete && p.action.Kind != models.ActionDelete {
			n.deps = append(n.deps, p)
		}
		for anc := parent; anc != ""; anc = parentPath(anc) {
			if d, ok := byPath[anc]; ok && d.action.Kind == models.ActionDelete {
				d.deps = append(d.deps, n)
			}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(e.opts.MaxWorkers))
	g, gctx := errgroup.WithContext(runCtx)

	for _, n := range nodes {
		n := n
		g.Go(func() error {
			defer close(n.done)

			for _, dep := range n.deps {
				select {
				case <-dep.done:
				case <-gctx.Done():
					n.err = gctx.Err()
				}
				if n.err == nil && dep.err != nil {
					n.err = fmt.Errorf("dependent action at %q failed", dep.action.Path)
				}
				if n.err != nil {
					break
				}
			}

			// The slot is only taken once the action is actually
			// runnable, so waiting actions never starve running ones
			if n.err == nil {
				if err := sem.Acquire(gctx, 1); err != nil {
					n.err = err
				} else {
					defer sem.Release(1)
					e.emitter.Emit(progress.Event{
						Kind:   progress.ActionStarted,
						Path:   n.action.Path,
						Action: n.action.Kind,
						Bytes:  n.action.Bytes(),
					})
					n.err = e.apply(gctx, n.action)
				}
			}

			mu.Lock()
			e.record(gctx, result, n)
			mu.Unlock()

			if n.err != nil && !e.opts.ContinueOnError {
				cancel()
			}
			return nil
		})
	}

	g.Wait()
	result.Cancelled = ctx.Err() != nil
	result.Executed.TotalActions = result.Executed.Copies + result.Executed.Updates +
		result.Executed.Deletes + result.Executed.Conflicts + result.Executed.Skips
	return result, nil
}

// executable reports whether a resolution can be acted on without the
// user
func executable(r *models.Resolution) bool {
	return r != nil && r.Kind != models.ResolveManual && r.Kind != models.ResolveFail
}

// record books the outcome of one finished node. Caller holds the
// result mutex.
func (e *Executor) record(ctx context.Context, result *Result, n *node) {
	action := n.action

	if n.err != nil {
		result.Errors = append(result.Errors, models.SyncError{
			Path:      action.Path,
			Action:    action.Kind,
			Error:     n.err.Error(),
			Timestamp: time.Now(),
		})
		if e.metrics != nil {
			e.metrics.AddFailure()
		}
		e.emitter.Emit(progress.Event{
			Kind:   progress.ActionFailed,
			Path:   action.Path,
			Action: action.Kind,
			Error:  n.err.Error(),
		})
		e.logger.Error(ctx, "action failed", n.err, logging.Fields{
			"path":   action.Path,
			"action": string(action.Kind),
		})
		return
	}

	bytes := action.Bytes()
	switch action.Kind {
	case models.ActionCopy:
		result.Executed.Copies++
		result.BytesTransferred += bytes
		if e.metrics != nil {
			e.metrics.AddCopied(bytes)
		}
	case models.ActionUpdate:
		result.Executed.Updates++
		result.BytesTransferred += bytes
		if e.metrics != nil {
			e.metrics.AddUpdated(bytes)
		}
	case models.ActionDelete:
		result.Executed.Deletes++
		result.BytesDeleted += bytes
		if e.metrics != nil {
			e.metrics.AddDeleted(bytes)
		}
	case models.ActionConflict:
		result.Executed.Conflicts++
		if action.Resolution.Kind == models.ResolveSkip {
			result.Executed.Skips++
		}
		if e.metrics != nil {
			e.metrics.AddConflict(true)
		}
	}

	e.emitter.Emit(progress.Event{
		Kind:   progress.ActionCompleted,
		Path:   action.Path,
		Action: action.Kind,
		Bytes:  bytes,
	})
	e.logger.Debug(ctx, "action completed", logging.Fields{
		"path":   action.Path,
		"action": string(action.Kind),
	})
}

func parentPath(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}
