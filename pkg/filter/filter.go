// Package filter decides which scanned entries take part in a sync.
//
// Pattern matching follows common sync-tool conventions:
//   - Patterns containing a slash match against the full relative path
//     (build/*, docs/**/*.md)
//   - Patterns without a slash match against the basename at any depth
//     (*.tmp, Thumbs.db)
//   - Patterns ending in a slash match directories and everything under
//     them (.git/, node_modules/)
//   - ** matches any number of path components
package filter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sdejongh/foldersync/pkg/models"
)

type pattern struct {
	glob    string
	dirOnly bool
}

// Filter holds compiled include and exclude rules for one run
type Filter struct {
	includes      []pattern
	excludes      []pattern
	caseSensitive bool
}

// New compiles the pattern lists from the options. Invalid patterns are
// rejected up front so a typo fails the run before any scan happens.
func New(opts models.SyncOptions) (*Filter, error) {
	f := &Filter{caseSensitive: opts.CaseSensitive}

	var err error
	if f.excludes, err = compile(opts.ExcludePatterns, opts.CaseSensitive); err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	if f.includes, err = compile(opts.IncludePatterns, opts.CaseSensitive); err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	return f, nil
}

func compile(raw []string, caseSensitive bool) ([]pattern, error) {
	patterns := make([]pattern, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		p := pattern{glob: strings.ReplaceAll(r, "\\", "/")}
		if strings.HasSuffix(p.glob, "/") {
			p.dirOnly = true
			p.glob = strings.TrimSuffix(p.glob, "/")
		}
		if !caseSensitive {
			p.glob = strings.ToLower(p.glob)
		}
		if !doublestar.ValidatePattern(p.glob) {
			return nil, fmt.Errorf("%q is not a valid glob", r)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Excluded reports whether a path should be pruned from the scan.
// Directories are only pruned by explicit exclude matches; include
// patterns never prune a directory, because files matching an include
// may live anywhere below it.
func (f *Filter) Excluded(relativePath string, isDir bool) bool {
	rel := relativePath
	if !f.caseSensitive {
		rel = strings.ToLower(rel)
	}

	for _, p := range f.excludes {
		if p.matches(rel, isDir) {
			return true
		}
	}

	if len(f.includes) > 0 && !isDir {
		for _, p := range f.includes {
			if p.matches(rel, isDir) {
				return false
			}
		}
		return true
	}

	return false
}

func (p pattern) matches(rel string, isDir bool) bool {
	if p.dirOnly {
		// Match the directory itself or any directory on the path to rel
		if isDir && p.matchOne(rel) {
			return true
		}
		for i := 0; i < len(rel); i++ {
			if rel[i] == '/' && p.matchOne(rel[:i]) {
				return true
			}
		}
		return false
	}
	return p.matchOne(rel)
}

// matchOne applies the glob to one path: full-path match when the glob
// contains a slash, basename match otherwise
func (p pattern) matchOne(rel string) bool {
	if strings.Contains(p.glob, "/") {
		ok, _ := doublestar.Match(p.glob, rel)
		return ok
	}
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	ok, _ := doublestar.Match(p.glob, base)
	return ok
}
