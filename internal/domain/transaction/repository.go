package transaction

import "context"

// Repository defines persistence operations for transactions.
type Repository interface {
	// Create inserts a transaction. A unique-constraint violation on the
	// provider transaction id is reported as ErrDuplicateProviderID.
	Create(ctx context.Context, params CreateParams) (*Transaction, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	// GetByProviderTransactionID returns (nil, nil) when no transaction
	// carries the given provider id.
	GetByProviderTransactionID(ctx context.Context, providerTxID string) (*Transaction, error)
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)
	Update(ctx context.Context, id string, params UpdateParams) error
	Delete(ctx context.Context, id string) error
}
