package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"soldo/internal/domain/transaction"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, account_id, transaction_date, type, amount, description_encrypted,
	description_search, provider_transaction_id, pending, currency, created_at, updated_at`

// Create inserts a transaction. A unique-constraint violation on the
// provider transaction id maps to transaction.ErrDuplicateProviderID so
// callers can treat the race as an idempotent skip.
func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions (id, account_id, transaction_date, type, amount, description_encrypted,
			description_search, provider_transaction_id, pending, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRowContext(
		ctx, query,
		params.ID, params.AccountID, params.Date, params.Type, params.Amount,
		params.DescriptionEncrypted, params.DescriptionSearch, params.ProviderTransactionID,
		params.Pending, params.Currency,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, transaction.ErrDuplicateProviderID
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// GetByProviderTransactionID retrieves a transaction by the provider's id
func (r *TransactionRepository) GetByProviderTransactionID(ctx context.Context, providerTxID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE provider_transaction_id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, providerTxID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by provider id: %w", err)
	}
	return tx, nil
}

// ListByAccountID retrieves transactions for an account, newest first
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

// Update modifies the mutable fields of a transaction in place
func (r *TransactionRepository) Update(ctx context.Context, id string, params transaction.UpdateParams) error {
	query := `
		UPDATE transactions
		SET transaction_date = $1, type = $2, amount = $3, description_encrypted = $4,
		    description_search = $5, pending = $6, updated_at = NOW()
		WHERE id = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		params.Date, params.Type, params.Amount, params.DescriptionEncrypted,
		params.DescriptionSearch, params.Pending, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

// Delete removes a transaction
func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var providerTxID, currency sql.NullString

	err := row.Scan(
		&tx.ID, &tx.AccountID, &tx.Date, &tx.Type, &tx.Amount,
		&tx.DescriptionEncrypted, &tx.DescriptionSearch, &providerTxID,
		&tx.Pending, &currency, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if providerTxID.Valid {
		tx.ProviderTransactionID = &providerTxID.String
	}
	if currency.Valid {
		tx.Currency = currency.String
	}

	return &tx, nil
}
