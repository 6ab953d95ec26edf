package port

import (
	"context"
	"time"
)

// Locker is a TTL-leased, ownership-token mutual exclusion primitive. The
// coordination backend is swappable; the Redis implementation lives in
// internal/adapter/lock.
type Locker interface {
	// WithLock runs fn while holding the named lock. If the lock is already
	// held it returns domain.ErrLockBusy without running fn. The lease
	// expires on its own after ttl; release only succeeds if this caller
	// still owns the lease.
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}
