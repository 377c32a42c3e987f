package transaction

import (
	"errors"
	"time"
)

// Type encodes the direction of a transaction. Amounts are stored as
// absolute values; direction lives here.
type Type string

const (
	TypeIncome   Type = "income"
	TypeExpense  Type = "expense"
	TypeTransfer Type = "transfer"
)

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateProviderID is returned by Create when another row
	// already holds the same provider transaction id (unique-constraint
	// race with a concurrent writer).
	ErrDuplicateProviderID = errors.New("duplicate provider transaction id")
)

// Transaction represents a local ledger entry. Descriptions are stored
// encrypted with a normalized plaintext key alongside for search.
type Transaction struct {
	ID                    string    `json:"id"`
	AccountID             string    `json:"accountId"`
	Date                  time.Time `json:"date"`
	Type                  Type      `json:"type"`
	Amount                float64   `json:"amount"` // always >= 0
	DescriptionEncrypted  string    `json:"-"`
	DescriptionSearch     string    `json:"descriptionSearch"`
	ProviderTransactionID *string   `json:"providerTransactionId"`
	Pending               bool      `json:"pending"`
	Currency              string    `json:"currency"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// CreateParams contains parameters for inserting a transaction.
type CreateParams struct {
	ID                    string
	AccountID             string
	Date                  time.Time
	Type                  Type
	Amount                float64
	DescriptionEncrypted  string
	DescriptionSearch     string
	ProviderTransactionID *string
	Pending               bool
	Currency              string
}

// UpdateParams contains the fields reconciliation may modify on an
// existing transaction. User-owned fields (tags, category assignments)
// are deliberately absent.
type UpdateParams struct {
	Date                 time.Time
	Type                 Type
	Amount               float64
	DescriptionEncrypted string
	DescriptionSearch    string
	Pending              bool
}
