package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"soldo/internal/domain/connection"
	"soldo/internal/domain/sync"
)

// ConnectionSyncJob implements the Job interface for refreshing one
// connection's data through the sync engine.
type ConnectionSyncJob struct {
	connectionID   string
	providerItemID string
	syncService    *sync.Service
}

// NewConnectionSyncJob creates a new sync job for a connection
func NewConnectionSyncJob(conn *connection.Connection, syncService *sync.Service) *ConnectionSyncJob {
	return &ConnectionSyncJob{
		connectionID:   conn.ID,
		providerItemID: conn.ProviderItemID,
		syncService:    syncService,
	}
}

// Execute runs the sync. Scheduled refreshes are best-effort like
// webhook deliveries: a sync already in flight is a silent skip, not a
// failure.
func (j *ConnectionSyncJob) Execute(ctx context.Context) error {
	result, err := j.syncService.SyncByItemID(ctx, j.providerItemID)
	if err != nil {
		if errors.Is(err, connection.ErrSyncInProgress) {
			log.Printf("Scheduled sync for connection %s skipped: already running", j.connectionID)
			return nil
		}
		if errors.Is(err, connection.ErrConnectionNotFound) {
			log.Printf("Scheduled sync for connection %s skipped: connection gone", j.connectionID)
			return nil
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if len(result.Errors) > 0 {
		log.Printf("Scheduled sync for connection %s completed with errors: Created=%d, Modified=%d, Removed=%d, Errors=%d",
			j.connectionID, result.Created, result.Modified, result.Removed, len(result.Errors))
		return fmt.Errorf("sync completed with %d errors", len(result.Errors))
	}

	log.Printf("Scheduled sync for connection %s completed: Created=%d, Modified=%d, Removed=%d, Skipped=%d",
		j.connectionID, result.Created, result.Modified, result.Removed, result.Skipped)

	return nil
}

// ConnectionID returns the connection this job refreshes
func (j *ConnectionSyncJob) ConnectionID() string {
	return j.connectionID
}

// Description returns a human-readable description of the job
func (j *ConnectionSyncJob) Description() string {
	return fmt.Sprintf("Connection sync for %s", j.connectionID)
}
