package device

import (
	"context"
	"sync"
	"time"
)

// DefaultLockTimeout bounds use-lock acquisition.
const DefaultLockTimeout = 30 * time.Second

// UseLock is the per-device exclusive lock. A connection doing work
// for a device holds it from identity resolution until the connection
// ends. Release is idempotent by owner identity: unlocking when not
// the owner is a no-op, so every exit path may unlock unconditionally.
type UseLock struct {
	sem chan struct{}

	mu    sync.Mutex
	owner string
}

// NewUseLock creates an unlocked use-lock.
func NewUseLock() *UseLock {
	return &UseLock{sem: make(chan struct{}, 1)}
}

// TryLock acquires the lock for owner, waiting up to timeout (the
// 30 s default when timeout is zero) or until ctx is cancelled.
func (l *UseLock) TryLock(ctx context.Context, owner string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.owner = owner
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockTimeout
	}
}

// Unlock releases the lock if owner holds it.
func (l *UseLock) Unlock(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner == "" || l.owner != owner {
		return
	}
	l.owner = ""
	<-l.sem
}

// Owner returns the current owner, or "" when unlocked.
func (l *UseLock) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}
