package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soldo/internal/domain/connection"
)

// ConnectionRepository implements the connection.Repository interface for PostgreSQL
type ConnectionRepository struct {
	db *DB
}

// NewConnectionRepository creates a new PostgreSQL connection repository
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, provider_item_id, institution_id, institution_name,
	access_token_encrypted, status, error_code, error_message, consent_expires_at,
	last_successful_update, sync_cursor, is_syncing, sync_started_at, created_at, updated_at`

// Create inserts a new connection in status good.
func (r *ConnectionRepository) Create(ctx context.Context, params connection.CreateParams) (*connection.Connection, error) {
	query := `
		INSERT INTO connections (id, user_id, provider_item_id, institution_id, institution_name,
			access_token_encrypted, status, consent_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + connectionColumns

	row := r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), params.UserID, params.ProviderItemID, params.InstitutionID,
		params.InstitutionName, params.AccessTokenEncrypted, connection.StatusGood, params.ConsentExpiresAt,
	)

	conn, err := scanConnection(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	return conn, nil
}

// GetByID retrieves a connection by its ID
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// GetByProviderItemID retrieves a connection by the provider's item id
func (r *ConnectionRepository) GetByProviderItemID(ctx context.Context, providerItemID string) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE provider_item_id = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, providerItemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection by item id: %w", err)
	}
	return conn, nil
}

// ListByUserID retrieves all connections belonging to a user
func (r *ConnectionRepository) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// ListSyncCandidates retrieves healthy connections whose last successful
// update is missing or older than the cutoff.
func (r *ConnectionRepository) ListSyncCandidates(ctx context.Context, olderThan time.Time) ([]*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE status = $1
		  AND (last_successful_update IS NULL OR last_successful_update < $2)
		ORDER BY last_successful_update NULLS FIRST`

	rows, err := r.db.QueryContext(ctx, query, connection.StatusGood, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync candidates: %w", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// UpdateCursor persists the resumable sync cursor
func (r *ConnectionRepository) UpdateCursor(ctx context.Context, id string, cursor string) error {
	query := `UPDATE connections SET sync_cursor = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, cursor, id); err != nil {
		return fmt.Errorf("failed to update cursor: %w", err)
	}
	return nil
}

// SetStatus persists a mapped status plus normalized error fields
func (r *ConnectionRepository) SetStatus(ctx context.Context, id string, status connection.Status, errorCode, errorMessage string) error {
	query := `
		UPDATE connections
		SET status = $1, error_code = $2, error_message = $3, updated_at = NOW()
		WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, status, nullString(errorCode), nullString(errorMessage), id); err != nil {
		return fmt.Errorf("failed to set connection status: %w", err)
	}
	return nil
}

// MarkSyncSuccess stamps a successful sync and clears error state in one write
func (r *ConnectionRepository) MarkSyncSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE connections
		SET status = $1, error_code = NULL, error_message = NULL,
		    last_successful_update = NOW(), updated_at = NOW()
		WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, connection.StatusGood, id); err != nil {
		return fmt.Errorf("failed to mark sync success: %w", err)
	}
	return nil
}

// TouchLastSuccessfulUpdate stamps freshness without touching status
func (r *ConnectionRepository) TouchLastSuccessfulUpdate(ctx context.Context, id string) error {
	query := `UPDATE connections SET last_successful_update = NOW(), updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to touch last successful update: %w", err)
	}
	return nil
}

// UpdateConsentExpiry persists the provider's consent expiration timestamp
func (r *ConnectionRepository) UpdateConsentExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	query := `UPDATE connections SET consent_expires_at = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, expiresAt, id); err != nil {
		return fmt.Errorf("failed to update consent expiry: %w", err)
	}
	return nil
}

// Delete removes a connection
func (r *ConnectionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}

// TryAcquireSyncLock takes the per-connection sync lock with a single
// compare-and-swap statement. The predicate admits a free lock or one
// stamped before staleBefore, so a crashed worker's lock is
// force-acquired after the staleness window.
func (r *ConnectionRepository) TryAcquireSyncLock(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE connections
		SET is_syncing = TRUE, sync_started_at = NOW(), updated_at = NOW()
		WHERE id = $1
		  AND (is_syncing = FALSE OR sync_started_at IS NULL OR sync_started_at <= $2)`

	result, err := r.db.ExecContext(ctx, query, id, staleBefore)
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock result: %w", err)
	}
	return affected == 1, nil
}

// ReleaseSyncLock unconditionally clears the sync lock
func (r *ConnectionRepository) ReleaseSyncLock(ctx context.Context, id string) error {
	query := `UPDATE connections SET is_syncing = FALSE, sync_started_at = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (*connection.Connection, error) {
	var conn connection.Connection
	var errorCode, errorMessage, syncCursor sql.NullString
	var consentExpiresAt, lastSuccessfulUpdate, syncStartedAt sql.NullTime

	err := row.Scan(
		&conn.ID, &conn.UserID, &conn.ProviderItemID, &conn.InstitutionID, &conn.InstitutionName,
		&conn.AccessTokenEncrypted, &conn.Status, &errorCode, &errorMessage, &consentExpiresAt,
		&lastSuccessfulUpdate, &syncCursor, &conn.IsSyncing, &syncStartedAt,
		&conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorCode.Valid {
		conn.ErrorCode = errorCode.String
	}
	if errorMessage.Valid {
		conn.ErrorMessage = errorMessage.String
	}
	if syncCursor.Valid {
		conn.SyncCursor = &syncCursor.String
	}
	if consentExpiresAt.Valid {
		conn.ConsentExpiresAt = &consentExpiresAt.Time
	}
	if lastSuccessfulUpdate.Valid {
		conn.LastSuccessfulUpdate = &lastSuccessfulUpdate.Time
	}
	if syncStartedAt.Valid {
		conn.SyncStartedAt = &syncStartedAt.Time
	}

	return &conn, nil
}

func collectConnections(rows *sql.Rows) ([]*connection.Connection, error) {
	var connections []*connection.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return connections, nil
}
