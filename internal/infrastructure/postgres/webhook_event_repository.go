package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"soldo/internal/domain/webhook"
)

// WebhookEventRepository implements the webhook.Repository interface for PostgreSQL
type WebhookEventRepository struct {
	db *DB
}

// NewWebhookEventRepository creates a new PostgreSQL webhook event repository
func NewWebhookEventRepository(db *DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// GetByEventID retrieves a processed-event record by its derived id
func (r *WebhookEventRepository) GetByEventID(ctx context.Context, eventID string) (*webhook.Event, error) {
	query := `
		SELECT event_id, event_type, event_code, outcome, error_message, metadata, processed_at
		FROM webhook_events
		WHERE event_id = $1
	`

	var event webhook.Event
	var errorMessage, metadata sql.NullString

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.EventID, &event.EventType, &event.EventCode, &event.Outcome,
		&errorMessage, &metadata, &event.ProcessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	if errorMessage.Valid {
		event.ErrorMessage = errorMessage.String
	}
	if metadata.Valid {
		event.Metadata = metadata.String
	}

	return &event, nil
}

// Record upserts the outcome for an event. The unique constraint on
// event_id is the point that stops two concurrent deliveries of the
// same event from both fully executing; the later writer overwrites the
// outcome rather than failing.
func (r *WebhookEventRepository) Record(ctx context.Context, event *webhook.Event) error {
	query := `
		INSERT INTO webhook_events (event_id, event_type, event_code, outcome, error_message, metadata, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata,
			processed_at = EXCLUDED.processed_at
	`
	_, err := r.db.ExecContext(ctx, query,
		event.EventID, event.EventType, event.EventCode, event.Outcome,
		nullString(event.ErrorMessage), nullString(event.Metadata), event.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}
