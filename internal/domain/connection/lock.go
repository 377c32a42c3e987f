package connection

import (
	"context"
	"fmt"
	"time"
)

// StaleLockAge is how long a held sync lock is trusted. A lock older
// than this belongs to a crashed or wedged worker and is force-acquired.
const StaleLockAge = 5 * time.Minute

// LockGuard provides per-connection mutual exclusion for sync attempts.
// The lock is advisory state on the connection row; acquisition is a
// storage-level compare-and-swap so two processes cannot both win.
type LockGuard struct {
	repo Repository
	now  func() time.Time
}

// NewLockGuard creates a lock guard over the connection repository.
func NewLockGuard(repo Repository) *LockGuard {
	return &LockGuard{repo: repo, now: time.Now}
}

// TryAcquire attempts to take the sync lock for a connection. It returns
// ErrSyncInProgress when another sync holds a fresh lock.
func (g *LockGuard) TryAcquire(ctx context.Context, connectionID string) error {
	staleBefore := g.now().Add(-StaleLockAge)
	acquired, err := g.repo.TryAcquireSyncLock(ctx, connectionID, staleBefore)
	if err != nil {
		return fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		return ErrSyncInProgress
	}
	return nil
}

// Release clears the lock unconditionally. Callers defer this so the
// lock is never left held on an error path.
func (g *LockGuard) Release(ctx context.Context, connectionID string) error {
	if err := g.repo.ReleaseSyncLock(ctx, connectionID); err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}
