package user

import "context"

// Repository defines the interface for user data access
type Repository interface {
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	// GetByID returns (nil, nil) when no user exists.
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByEmail returns (nil, nil) when no user exists.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
