// Package ratelimit bounds aggregate transfer bandwidth with a shared
// token bucket.
package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"
)

// Limiter is a token bucket shared by every reader of one run, so the
// configured rate caps the total across all workers rather than each
// stream individually.
type Limiter struct {
	bytesPerSecond int64
	bucketSize     int64

	mu         sync.Mutex
	tokens     int64
	lastRefill time.Time
}

// NewLimiter creates a limiter. A rate of zero or less returns nil,
// which every consumer treats as unlimited.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	// One second of burst, with a floor that keeps small rates from
	// degenerating into byte-at-a-time reads
	bucketSize := bytesPerSecond
	if bucketSize < 64*1024 {
		bucketSize = 64 * 1024
	}

	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		bucketSize:     bucketSize,
		tokens:         bucketSize,
		lastRefill:     time.Now(),
	}
}

// take blocks until n tokens are available or the context is cancelled,
// then consumes them
func (l *Limiter) take(ctx context.Context, n int64) error {
	if n > l.bucketSize {
		n = l.bucketSize
	}
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= n {
			l.tokens -= n
			l.mu.Unlock()
			return nil
		}
		deficit := n - l.tokens
		l.mu.Unlock()

		wait := time.Duration(float64(deficit) / float64(l.bytesPerSecond) * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill credits tokens for the elapsed time. Caller holds the mutex.
func (l *Limiter) refill() {
	now := time.Now()
	credit := int64(now.Sub(l.lastRefill).Seconds() * float64(l.bytesPerSecond))
	if credit <= 0 {
		return
	}
	l.tokens += credit
	if l.tokens > l.bucketSize {
		l.tokens = l.bucketSize
	}
	l.lastRefill = now
}

// reader throttles one stream against the shared limiter
type reader struct {
	inner   io.Reader
	limiter *Limiter
	ctx     context.Context
}

// NewReader wraps a reader with the limiter. A nil limiter returns the
// reader unchanged.
func NewReader(ctx context.Context, inner io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return inner
	}
	return &reader{inner: inner, limiter: limiter, ctx: ctx}
}

// Read acquires tokens before reading, returning any unused ones when
// the read comes up short
func (r *reader) Read(p []byte) (int, error) {
	want := int64(len(p))
	if want > r.limiter.bucketSize {
		want = r.limiter.bucketSize
	}
	if err := r.limiter.take(r.ctx, want); err != nil {
		return 0, err
	}

	n, err := r.inner.Read(p[:want])
	if int64(n) < want {
		r.limiter.mu.Lock()
		r.limiter.tokens += want - int64(n)
		if r.limiter.tokens > r.limiter.bucketSize {
			r.limiter.tokens = r.limiter.bucketSize
		}
		r.limiter.mu.Unlock()
	}
	return n, err
}
