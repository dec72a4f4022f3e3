package core

// import_limiter.go bounds concurrent import parsing.
//
// File parsing is the only CPU-bound step in the pipeline, so it runs under a
// weighted semaphore rather than on the unbounded request path. When all
// slots are occupied, callers wait up to maxWait before failing with
// ErrTooManyImports.

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentImports is the default limit for parallel import parses.
const DefaultMaxConcurrentImports = 4

// DefaultImportMaxWait is how long to wait for a slot before rejecting.
const DefaultImportMaxWait = 15 * time.Second

// ImportLimiter restricts parallel import parsing to a configurable maximum.
type ImportLimiter struct {
	sem     *semaphore.Weighted
	maxWait time.Duration
}

// NewImportLimiter creates a limiter allowing at most maxConcurrent parses.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportMaxWait
	}
	return &ImportLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		maxWait: maxWait,
	}
}

// Acquire obtains a parse slot, waiting up to the configured maximum.
// The caller must Release the slot when done (use defer).
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return ErrTooManyImports
		}
		return err
	}
	return nil
}

// Release returns a parse slot.
func (l *ImportLimiter) Release() {
	l.sem.Release(1)
}
