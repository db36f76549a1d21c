package compare

import (
	"context"
	"fmt"
	"time"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// ComprehensiveComparator layers the cheap checks in front of the
// expensive one: a size mismatch is decisive, agreeing timestamps are
// decisive, and only the ambiguous remainder (same size, differing
// times) pays for a content digest. Catches touched-but-unchanged files
// without hashing everything.
type ComprehensiveComparator struct {
	Tolerance time.Duration
	Hash      *HashComparator
}

// Compare judges equality by metadata first, digests on disagreement
func (c *ComprehensiveComparator) Compare(ctx context.Context, source, dest storage.Backend, src, dst *models.Entry) (*Outcome, error) {
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
	if delta <= c.Tolerance {
		return &Outcome{Equal: true, Reason: "size and modification time match"}, nil
	}

	return c.Hash.Compare(ctx, source, dest, src, dst)
}

// Name returns the comparator name
func (c *ComprehensiveComparator) Name() string {
	return "comprehensive"
}
