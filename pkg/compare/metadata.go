package compare

import (
	"context"
	"fmt"
	"time"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// SizeComparator judges files equal when their sizes match. Fastest
// method, blind to same-size edits.
type SizeComparator struct{}

// Compare judges equality by size alone
func (c *SizeComparator) Compare(ctx context.Context, source, dest storage.Backend, src, dst *models.Entry) (*Outcome, error) {
	if out := shortcut(src, dst); out != nil {
		return out, nil
	}
	if src.Size != dst.Size {
		return &Outcome{
			Equal:  false,
			Reason: fmt.Sprintf("size mismatch: source=%d, dest=%d", src.Size, dst.Size),
		}, nil
	}
	return &Outcome{Equal: true, Reason: "sizes match"}, nil
}

// Name returns the comparator name
func (c *SizeComparator) Name() string {
	return "size"
}

// SizeTimeComparator judges files equal when sizes match and
// modification times agree within a tolerance. The tolerance absorbs
// coarse-grained filesystem timestamps (FAT stores 2-second resolution).
type SizeTimeComparator struct {
	Tolerance time.Duration
}

// Compare judges equality by size and modification time
func (c *SizeTimeComparator) Compare(ctx context.Context, source, dest storage.Backend, src, dst *models.Entry) (*Outcome, error) {
	if out := shortcut(src, dst); out != nil {
		return out, nil
	}
	if src.Size != dst.Size {
		return &Outcome{
			Equal:  false,
			Reason: fmt.Sprintf("size mismatch: source=%d, dest=%d", src.Size, dst.Size),
		}, nil
	}
	delta := src.ModTime.Sub(dst.ModTime)
	if delta < 0 {
		delta = -delta
	}
	if delta > c.Tolerance {
		return &Outcome{
			Equal:  false,
			Reason: fmt.Sprintf("modification times differ by %s", delta),
		}, nil
	}
	return &Outcome{Equal: true, Reason: "size and modification time match"}, nil
}

// Name returns the comparator name
func (c *SizeTimeComparator) Name() string {
	return "sizetime"
}
