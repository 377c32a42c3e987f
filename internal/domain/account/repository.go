package account

import "context"

// Repository defines persistence operations for accounts.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Account, error)
	UpdateBalances(ctx context.Context, id string, current, available *float64) error
	Delete(ctx context.Context, id string) error
}

// LinkRepository defines persistence operations for the
// connection/account join records.
type LinkRepository interface {
	Create(ctx context.Context, params CreateLinkParams) (*Link, error)
	// GetByProviderAccountID returns (nil, nil) when no link exists.
	GetByProviderAccountID(ctx context.Context, connectionID, providerAccountID string) (*Link, error)
	ListByConnectionID(ctx context.Context, connectionID string) ([]*Link, error)
	UpdateMetadata(ctx context.Context, linkID int64, params UpdateLinkParams) error
	// MarkDisconnected flips connected=false on every link under the
	// connection, leaving the accounts themselves in place.
	MarkDisconnected(ctx context.Context, connectionID string) error
}
