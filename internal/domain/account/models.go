package account

import (
	"errors"
	"time"
)

// Type classifies a local account.
type Type string

const (
	TypeChecking   Type = "checking"
	TypeSavings    Type = "savings"
	TypeCredit     Type = "credit"
	TypeInvestment Type = "investment"
	TypeCash       Type = "cash"
	TypeOther      Type = "other"
)

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrForbidden       = errors.New("access forbidden")
	ErrInvalidInput    = errors.New("invalid input")
)

// Account represents a local financial account. It may be owned by a
// bank connection (via a Link) or be a manual account.
type Account struct {
	ID               string    `json:"id"`
	UserID           int64     `json:"userId"`
	Name             string    `json:"name"`
	AccountType      Type      `json:"accountType"`
	Currency         string    `json:"currency"`
	BalanceCurrent   *float64  `json:"balanceCurrent"`
	BalanceAvailable *float64  `json:"balanceAvailable"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Link is the join record binding a provider account under a Connection
// to a local Account. The provider account id is unique per connection.
type Link struct {
	ID                 int64     `json:"id"`
	ConnectionID       string    `json:"connectionId"`
	ProviderAccountID  string    `json:"providerAccountId"`
	AccountID          string    `json:"accountId"`
	Mask               string    `json:"mask"`
	VerificationStatus string    `json:"verificationStatus"`
	Connected          bool      `json:"connected"`
	SyncEnabled        bool      `json:"syncEnabled"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// LinkedAccount pairs an account with its link metadata (for API responses).
type LinkedAccount struct {
	Account
	Link *Link `json:"link,omitempty"`
}

// CreateParams contains parameters for creating a new account.
type CreateParams struct {
	ID               string
	UserID           int64
	Name             string
	AccountType      Type
	Currency         string
	BalanceCurrent   *float64
	BalanceAvailable *float64
}

// Validate checks create parameters.
func (p *CreateParams) Validate() error {
	if p.UserID <= 0 {
		return ErrInvalidInput
	}
	if p.Name == "" {
		return ErrInvalidInput
	}
	switch p.AccountType {
	case TypeChecking, TypeSavings, TypeCredit, TypeInvestment, TypeCash, TypeOther:
	default:
		return ErrInvalidInput
	}
	return nil
}

// CreateLinkParams contains parameters for creating a link record.
type CreateLinkParams struct {
	ConnectionID       string
	ProviderAccountID  string
	AccountID          string
	Mask               string
	VerificationStatus string
	SyncEnabled        bool
}

// UpdateLinkParams contains the link metadata refreshed on every
// reconciliation. Ledger and ownership fields of the account itself are
// never touched through this path.
type UpdateLinkParams struct {
	Mask               string
	VerificationStatus string
	Connected          bool
}
