package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"soldo/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	query := `
		INSERT INTO accounts (id, user_id, name, account_type, currency, balance_current, balance_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, name, account_type, currency, balance_current, balance_available, created_at, updated_at
	`

	acc, err := scanAccount(r.db.QueryRowContext(
		ctx, query,
		params.ID, params.UserID, params.Name, params.AccountType, params.Currency,
		params.BalanceCurrent, params.BalanceAvailable,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `
		SELECT id, user_id, name, account_type, currency, balance_current, balance_available, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// ListByUserID retrieves all accounts belonging to a user
func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `
		SELECT id, user_id, name, account_type, currency, balance_current, balance_available, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// UpdateBalances refreshes the balance snapshot for an account
func (r *AccountRepository) UpdateBalances(ctx context.Context, id string, current, available *float64) error {
	query := `
		UPDATE accounts
		SET balance_current = $1, balance_available = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, current, available, id); err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}
	return nil
}

// Delete removes an account and, via cascade, its transactions
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var acc account.Account
	var balanceCurrent, balanceAvailable sql.NullFloat64

	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.Name, &acc.AccountType, &acc.Currency,
		&balanceCurrent, &balanceAvailable, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if balanceCurrent.Valid {
		acc.BalanceCurrent = &balanceCurrent.Float64
	}
	if balanceAvailable.Valid {
		acc.BalanceAvailable = &balanceAvailable.Float64
	}

	return &acc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
