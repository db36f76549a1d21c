package compare

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/storage"
)

// Partial hashing configuration
const (
	// Minimum file size to enable partial hashing (1MB)
	partialHashThreshold = 1 * 1024 * 1024
	// Size of partial hash to compute (256KB)
	partialHashSize = 256 * 1024
)

// HashComparator compares files by content digest. Full digests are
// cached per side and relative path for the lifetime of the comparator,
// so a path compared twice in one run reads its content once.
type HashComparator struct {
	algorithm  models.HashAlgorithm
	bufferSize int
	bufferPool *sync.Pool
	wrap       ReaderWrapper

	mu    sync.Mutex
	cache map[string]string
}

// NewHashComparator creates a digest-based comparator
func NewHashComparator(algorithm models.HashAlgorithm, bufferSize int, wrap ReaderWrapper) (*HashComparator, error) {
	switch algorithm {
	case models.HashXXH64, models.HashSHA256, models.HashMD5:
	default:
		return nil, fmt.Errorf("unknown hash algorithm: %q", algorithm)
	}
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &HashComparator{
		algorithm:  algorithm,
		bufferSize: bufferSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
		wrap:  wrap,
		cache: make(map[string]string),
	}, nil
}

func (c *HashComparator) newHasher() hash.Hash {
	switch c.algorithm {
	case models.HashSHA256:
		return sha256.New()
	case models.HashMD5:
		return md5.New()
	default:
		return xxhash.New()
	}
}

// Compare judges equality by content digest, with a partial-digest
// quick rejection for large files
func (c *HashComparator) Compare(ctx context.Context, source, dest storage.Backend, src, dst *models.Entry) (*Outcome, error) {
	if out := shortcut(src, dst); out != nil {
		return out, nil
	}

	if src.Size != dst.Size {
		return &Outcome{
			Equal:  false,
			Reason: fmt.Sprintf("size mismatch: source=%d, dest=%d", src.Size, dst.Size),
		}, nil
	}

	// Large equal-size files: digest the head of each first. Differing
	// heads reject the pair without reading either file fully.
	if src.Size >= partialHashThreshold {
		srcHead, dstHead, err := c.pairDigests(ctx, source, dest, src, dst, partialHashSize, nil)
		if err == nil && srcHead != dstHead {
			return &Outcome{Equal: false, Reason: "partial digests differ"}, nil
		}
		// A failed partial read falls through to the full digest
	}

	srcSum, dstSum, err := c.pairDigests(ctx, source, dest, src, dst, 0, c.cacheKeys(source, dest, src.RelativePath))
	if err != nil {
		return nil, err
	}

	if srcSum != dstSum {
		return &Outcome{Equal: false, Reason: "content digests differ"}, nil
	}
	return &Outcome{Equal: true, Reason: "content digests match"}, nil
}

func (c *HashComparator) cacheKeys(source, dest storage.Backend, rel string) []string {
	return []string{
		source.Root() + "\x00" + rel,
		dest.Root() + "\x00" + rel,
	}
}

// pairDigests computes the digests of both sides concurrently. limit=0
// digests the whole file; keys, when given, enable the full-digest cache.
func (c *HashComparator) pairDigests(ctx context.Context, source, dest storage.Backend, src, dst *models.Entry, limit int64, keys []string) (string, string, error) {
	var srcSum, dstSum string
	var srcErr, dstErr error
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		key := ""
		if keys != nil {
			key = keys[0]
		}
		srcSum, srcErr = c.digest(ctx, source, src.RelativePath, limit, key)
	}()
	go func() {
		defer wg.Done()
		key := ""
		if keys != nil {
			key = keys[1]
		}
		dstSum, dstErr = c.digest(ctx, dest, dst.RelativePath, limit, key)
	}()
	wg.Wait()

	if srcErr != nil {
		return "", "", fmt.Errorf("failed to digest source %q: %w", src.RelativePath, srcErr)
	}
	if dstErr != nil {
		return "", "", fmt.Errorf("failed to digest destination %q: %w", dst.RelativePath, dstErr)
	}
	return srcSum, dstSum, nil
}

// digest streams a file through the hasher, reading at most limit bytes
// when limit > 0
func (c *HashComparator) digest(ctx context.Context, backend storage.Backend, rel string, limit int64, key string) (string, error) {
	if key != "" {
		c.mu.Lock()
		cached, ok := c.cache[key]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}
	}

	rc, err := backend.Read(ctx, rel)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var reader io.Reader = rc
	if c.wrap != nil {
		reader = c.wrap(reader)
	}
	if limit > 0 {
		reader = io.LimitReader(reader, limit)
	}

	hasher := c.newHasher()

	bufPtr := c.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer c.bufferPool.Put(bufPtr)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := reader.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	sum := fmt.Sprintf("%x", hasher.Sum(nil))
	if key != "" {
		c.mu.Lock()
		c.cache[key] = sum
		c.mu.Unlock()
	}
	return sum, nil
}

// Name returns the comparator name
func (c *HashComparator) Name() string {
	return "hash"
}
