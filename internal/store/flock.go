package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long a writer waits for a lock.
const DefaultLockTimeout = 5 * time.Second

const lockRetryDelay = 100 * time.Millisecond

// WithLock runs fn while holding an exclusive lock on path.lock.
func WithLock(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	return withLock(ctx, path, timeout, false, fn)
}

// WithReadLock runs fn while holding a shared lock on path.lock.
func WithReadLock(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	return withLock(ctx, path, timeout, true, fn)
}

func withLock(ctx context.Context, path string, timeout time.Duration, shared bool, fn func() error) error {
	l := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	try, kind := l.TryLockContext, "lock"
	if shared {
		try, kind = l.TryRLockContext, "read lock"
	}
	ok, err := try(ctx, lockRetryDelay)
	switch {
	case err != nil:
		return fmt.Errorf("acquiring %s on %s: %w", kind, l.Path(), err)
	case !ok:
		return fmt.Errorf("timed out acquiring %s on %s", kind, l.Path())
	}
	defer l.Unlock()
	return fn()
}
