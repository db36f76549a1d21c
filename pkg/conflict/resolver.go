// Package conflict turns divergences detected by the planner into
// resolutions according to the configured strategy.
package conflict

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"

	"github.com/sdejongh/foldersync/pkg/models"
)

type override struct {
	glob     string
	strategy models.ConflictStrategy
}

// Resolver applies a conflict strategy, with optional per-pattern
// overrides. The first matching override wins; non-matching paths fall
// back to the default strategy.
type Resolver struct {
	strategy  models.ConflictStrategy
	overrides []override
}

// NewResolver validates the strategy configuration and builds a resolver
func NewResolver(opts models.SyncOptions) (*Resolver, error) {
	if _, err := models.ParseConflictStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}

	r := &Resolver{strategy: opts.Strategy}
	for glob, strategy := range opts.StrategyByPattern {
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("invalid strategy pattern %q", glob)
		}
		if _, err := models.ParseConflictStrategy(string(strategy)); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", glob, err)
		}
		r.overrides = append(r.overrides, override{glob: glob, strategy: strategy})
	}
	return r, nil
}

// StrategyFor returns the strategy that applies to one path
func (r *Resolver) StrategyFor(path string) models.ConflictStrategy {
	for _, o := range r.overrides {
		if ok, _ := doublestar.Match(o.glob, path); ok {
			return o.strategy
		}
	}
	return r.strategy
}

// Resolve decides the outcome of one conflict. Every strategy yields a
// resolution except fail, which aborts the run on the first conflict it
// sees.
func (r *Resolver) Resolve(c *models.Conflict) (*models.Resolution, error) {
	strategy := r.StrategyFor(c.Path)

	switch strategy {
	case models.StrategyPreferSource:
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Rationale: "source always wins",
		}, nil

	case models.StrategyPreferDestination:
		return &models.Resolution{
			Kind:      models.ResolveUseDestination,
			Rationale: "destination always wins",
		}, nil

	case models.StrategySkip:
		return &models.Resolution{
			Kind:      models.ResolveSkip,
			Rationale: "conflicts are skipped",
		}, nil

	case models.StrategyBackupSource:
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Backup:    true,
			Rationale: "source wins, destination version preserved",
		}, nil

	case models.StrategyBackupDestination:
		return &models.Resolution{
			Kind:      models.ResolveUseDestination,
			Backup:    true,
			Rationale: "destination kept, source version preserved",
		}, nil

	case models.StrategyManual:
		return &models.Resolution{
			Kind:      models.ResolveManual,
			Rationale: "deferred to the user",
		}, nil

	case models.StrategyFail:
		return nil, fmt.Errorf("%w: %s", models.ErrConflictFail, c.Path)

	case models.StrategyPreferNewer, models.StrategyPreferOlder,
		models.StrategyPreferLarger, models.StrategyPreferSmaller:
		return resolveComparative(strategy, c), nil

	default:
		return nil, fmt.Errorf("unknown conflict strategy: %q", strategy)
	}
}

// resolveComparative handles the strategies that need both versions to
// compare. A one-sided delete keeps whichever version still exists, and
// a kind change offers nothing comparable, so the source side wins.
func resolveComparative(strategy models.ConflictStrategy, c *models.Conflict) *models.Resolution {
	if c.Source == nil {
		return &models.Resolution{
			Kind:      models.ResolveUseDestination,
			Rationale: fmt.Sprintf("%s keeps the surviving destination version", strategy),
		}
	}
	if c.Dest == nil {
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Rationale: fmt.Sprintf("%s keeps the surviving source version", strategy),
		}
	}
	if c.Type != models.ConflictContent {
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Rationale: fmt.Sprintf("%s has nothing to compare across a %s conflict, source wins", strategy, c.Type),
		}
	}

	switch strategy {
	case models.StrategyPreferNewer:
		if c.Dest.ModTime.After(c.Source.ModTime) {
			return &models.Resolution{
				Kind:      models.ResolveUseDestination,
				Rationale: fmt.Sprintf("destination is newer by %s", c.Dest.ModTime.Sub(c.Source.ModTime)),
			}
		}
		// Equal timestamps fall to the source side so the strategy
		// always yields a deterministic winner
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Rationale: fmt.Sprintf("source is newer or equal (delta %s)", c.Source.ModTime.Sub(c.Dest.ModTime)),
		}

	case models.StrategyPreferOlder:
		if c.Dest.ModTime.Before(c.Source.ModTime) {
			return &models.Resolution{
				Kind:      models.ResolveUseDestination,
				Rationale: fmt.Sprintf("destination is older by %s", c.Source.ModTime.Sub(c.Dest.ModTime)),
			}
		}
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Rationale: fmt.Sprintf("source is older or equal (delta %s)", c.Dest.ModTime.Sub(c.Source.ModTime)),
		}

	case models.StrategyPreferLarger:
		if c.Dest.Size > c.Source.Size {
			return &models.Resolution{
				Kind:      models.ResolveUseDestination,
				Rationale: fmt.Sprintf("destination is larger (%s vs %s)", humanize.Bytes(uint64(c.Dest.Size)), humanize.Bytes(uint64(c.Source.Size))),
			}
		}
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Rationale: fmt.Sprintf("source is larger or equal (%s vs %s)", humanize.Bytes(uint64(c.Source.Size)), humanize.Bytes(uint64(c.Dest.Size))),
		}

	default: // StrategyPreferSmaller
		if c.Dest.Size < c.Source.Size {
			return &models.Resolution{
				Kind:      models.ResolveUseDestination,
				Rationale: fmt.Sprintf("destination is smaller (%s vs %s)", humanize.Bytes(uint64(c.Dest.Size)), humanize.Bytes(uint64(c.Source.Size))),
			}
		}
		return &models.Resolution{
			Kind:      models.ResolveUseSource,
			Rationale: fmt.Sprintf("source is smaller or equal (%s vs %s)", humanize.Bytes(uint64(c.Source.Size)), humanize.Bytes(uint64(c.Dest.Size))),
		}
	}
}
