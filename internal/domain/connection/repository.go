package connection

import (
	"context"
	"time"
)

// Repository defines persistence operations for connections. The sync
// lock lives on the connection row itself; TryAcquireSyncLock must be
// atomic at the storage layer (compare-and-swap, not read-then-write).
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Connection, error)
	// GetByID returns (nil, nil) when no connection exists.
	GetByID(ctx context.Context, id string) (*Connection, error)
	// GetByProviderItemID returns (nil, nil) when no connection exists.
	GetByProviderItemID(ctx context.Context, providerItemID string) (*Connection, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Connection, error)
	// ListSyncCandidates returns connections whose last successful
	// update is older than the given cutoff (for scheduled refresh).
	ListSyncCandidates(ctx context.Context, olderThan time.Time) ([]*Connection, error)

	// UpdateCursor persists the resumable sync cursor.
	UpdateCursor(ctx context.Context, id string, cursor string) error
	// SetStatus persists a mapped status plus normalized error fields.
	SetStatus(ctx context.Context, id string, status Status, errorCode, errorMessage string) error
	// MarkSyncSuccess sets status=good, stamps lastSuccessfulUpdate and
	// clears the error fields in one write.
	MarkSyncSuccess(ctx context.Context, id string) error
	// TouchLastSuccessfulUpdate stamps lastSuccessfulUpdate without
	// touching status (holdings webhooks, swallowed webhook sync errors).
	TouchLastSuccessfulUpdate(ctx context.Context, id string) error
	UpdateConsentExpiry(ctx context.Context, id string, expiresAt *time.Time) error
	Delete(ctx context.Context, id string) error

	// TryAcquireSyncLock atomically sets is_syncing=true and stamps
	// sync_started_at, succeeding when the lock is free or was acquired
	// before staleBefore. Returns false when the lock is held and fresh.
	TryAcquireSyncLock(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	// ReleaseSyncLock unconditionally clears is_syncing/sync_started_at.
	ReleaseSyncLock(ctx context.Context, id string) error
}
