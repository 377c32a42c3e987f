package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"soldo/internal/domain/account"
)

// LinkRepository implements the account.LinkRepository interface for PostgreSQL
type LinkRepository struct {
	db *DB
}

// NewLinkRepository creates a new PostgreSQL link repository
func NewLinkRepository(db *DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create creates a new connection/account join record
func (r *LinkRepository) Create(ctx context.Context, params account.CreateLinkParams) (*account.Link, error) {
	query := `
		INSERT INTO connection_accounts (connection_id, provider_account_id, account_id, mask, verification_status, connected, sync_enabled)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING id, connection_id, provider_account_id, account_id, mask, verification_status, connected, sync_enabled, created_at, updated_at
	`

	link, err := scanLink(r.db.QueryRowContext(
		ctx, query,
		params.ConnectionID, params.ProviderAccountID, params.AccountID,
		nullString(params.Mask), nullString(params.VerificationStatus), params.SyncEnabled,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account link: %w", err)
	}
	return link, nil
}

// GetByProviderAccountID retrieves a link by its provider account id
// under a connection
func (r *LinkRepository) GetByProviderAccountID(ctx context.Context, connectionID, providerAccountID string) (*account.Link, error) {
	query := `
		SELECT id, connection_id, provider_account_id, account_id, mask, verification_status, connected, sync_enabled, created_at, updated_at
		FROM connection_accounts
		WHERE connection_id = $1 AND provider_account_id = $2
	`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, connectionID, providerAccountID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account link: %w", err)
	}
	return link, nil
}

// ListByConnectionID retrieves all links under a connection
func (r *LinkRepository) ListByConnectionID(ctx context.Context, connectionID string) ([]*account.Link, error) {
	query := `
		SELECT id, connection_id, provider_account_id, account_id, mask, verification_status, connected, sync_enabled, created_at, updated_at
		FROM connection_accounts
		WHERE connection_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account links: %w", err)
	}
	defer rows.Close()

	var links []*account.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account links: %w", err)
	}

	return links, nil
}

// UpdateMetadata refreshes link metadata after a reconciliation pass
func (r *LinkRepository) UpdateMetadata(ctx context.Context, linkID int64, params account.UpdateLinkParams) error {
	query := `
		UPDATE connection_accounts
		SET mask = $1, verification_status = $2, connected = $3, updated_at = NOW()
		WHERE id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, nullString(params.Mask), nullString(params.VerificationStatus), params.Connected, linkID); err != nil {
		return fmt.Errorf("failed to update account link: %w", err)
	}
	return nil
}

// MarkDisconnected flips connected=false on every link under a connection
func (r *LinkRepository) MarkDisconnected(ctx context.Context, connectionID string) error {
	query := `UPDATE connection_accounts SET connected = FALSE, updated_at = NOW() WHERE connection_id = $1`
	if _, err := r.db.ExecContext(ctx, query, connectionID); err != nil {
		return fmt.Errorf("failed to mark links disconnected: %w", err)
	}
	return nil
}

func scanLink(row rowScanner) (*account.Link, error) {
	var link account.Link
	var mask, verificationStatus sql.NullString

	err := row.Scan(
		&link.ID, &link.ConnectionID, &link.ProviderAccountID, &link.AccountID,
		&mask, &verificationStatus, &link.Connected, &link.SyncEnabled,
		&link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mask.Valid {
		link.Mask = mask.String
	}
	if verificationStatus.Valid {
		link.VerificationStatus = verificationStatus.String
	}

	return &link, nil
}
