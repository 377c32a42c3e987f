package account

import (
	"context"
	"errors"
)

// Service contains the business logic for account operations.
type Service struct {
	repo  Repository
	links LinkRepository
}

// NewService creates a new account service.
func NewService(repo Repository, links LinkRepository) *Service {
	return &Service{repo: repo, links: links}
}

// CreateAccount creates a new account with validation.
func (s *Service) CreateAccount(ctx context.Context, params CreateParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, params)
}

// GetAccount retrieves an account by ID and verifies user ownership.
func (s *Service) GetAccount(ctx context.Context, accountID string, userID int64) (*Account, error) {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}

	// Business rule: verify ownership
	if acc.UserID != userID {
		return nil, ErrForbidden
	}

	return acc, nil
}

// ListAccountsByUserID retrieves all accounts for a specific user.
func (s *Service) ListAccountsByUserID(ctx context.Context, userID int64) ([]*Account, error) {
	if userID <= 0 {
		return nil, errors.New("valid user ID is required")
	}
	return s.repo.ListByUserID(ctx, userID)
}
