package compare

import (
	"context"
	"fmt"
	"io"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// Outcome is the result of comparing the two sides of one path
type Outcome struct {
	Equal  bool
	Reason string
}

// ReaderWrapper wraps content readers, e.g. for bandwidth limiting
type ReaderWrapper func(io.Reader) io.Reader

// Comparator decides whether two entries at the same relative path hold
// the same content. Both entries are non-nil and of the same kind; kind
// mismatches are classified by the planner before comparison.
type Comparator interface {
	// Compare judges equality of one path across both sides
	Compare(ctx context.Context, source, dest storage.Backend, src, dst *models.Entry) (*Outcome, error)

	// Name returns the name of the comparison method
	Name() string
}

// New builds the comparator for the configured method
func New(opts models.SyncOptions, wrap ReaderWrapper) (Comparator, error) {
	switch opts.Comparison {
	case models.CompareSize:
		return &SizeComparator{}, nil
	case models.CompareSizeTime:
		return &SizeTimeComparator{Tolerance: opts.TimestampTolerance}, nil
	case models.CompareHash:
		h, err := NewHashComparator(opts.Hash, opts.BufferSize, wrap)
		if err != nil {
			return nil, err
		}
		return h, nil
	case models.CompareBinary:
		return NewBinaryComparator(opts.BufferSize, wrap), nil
	case models.CompareComprehensive:
		h, err := NewHashComparator(opts.Hash, opts.BufferSize, wrap)
		if err != nil {
			return nil, err
		}
		return &ComprehensiveComparator{
			Tolerance: opts.TimestampTolerance,
			Hash:      h,
		}, nil
	default:
		return nil, fmt.Errorf("unknown comparison method: %q", opts.Comparison)
	}
}

// shortcut compares directories and symlinks, which never need content
// reads. Returns nil for regular files.
func shortcut(src, dst *models.Entry) *Outcome {
	switch src.Kind {
	case models.KindDirectory:
		return &Outcome{Equal: true, Reason: "directories"}
	case models.KindSymlink:
		if src.LinkTarget == dst.LinkTarget {
			return &Outcome{Equal: true, Reason: "link targets match"}
		}
		return &Outcome{
			Equal:  false,
			Reason: fmt.Sprintf("link targets differ: %q vs %q", src.LinkTarget, dst.LinkTarget),
		}
	}
	return nil
}
