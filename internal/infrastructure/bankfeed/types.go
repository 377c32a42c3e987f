package bankfeed

import (
	"fmt"
	"time"
)

// LinkTokenResponse is returned when creating a link token for the
// client-side institution picker.
type LinkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

// ExchangeResponse is returned when exchanging a public token for a
// long-lived access token.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// Item identifies one institution connection on the provider side.
type Item struct {
	ItemID                string  `json:"item_id"`
	InstitutionID         string  `json:"institution_id"`
	InstitutionName       string  `json:"institution_name"`
	ConsentExpirationTime *string `json:"consent_expiration_time"` // RFC 3339, nullable
}

// GetConsentExpiration parses the consent expiration timestamp if present.
func (i *Item) GetConsentExpiration() (*time.Time, error) {
	if i.ConsentExpirationTime == nil || *i.ConsentExpirationTime == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *i.ConsentExpirationTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse consent_expiration_time '%s': %w", *i.ConsentExpirationTime, err)
	}
	return &t, nil
}

// AccountsResponse is the provider's account listing for one item.
type AccountsResponse struct {
	Accounts  []Account `json:"accounts"`
	Item      Item      `json:"item"`
	RequestID string    `json:"request_id"`
}

// Account is a provider-reported financial account.
type Account struct {
	AccountID          string   `json:"account_id"`
	Name               string   `json:"name"`
	OfficialName       *string  `json:"official_name"`
	Mask               string   `json:"mask"`
	Type               string   `json:"type"`    // depository, credit, investment, loan, ...
	Subtype            string   `json:"subtype"` // checking, savings, credit card, ...
	VerificationStatus string   `json:"verification_status"`
	Balances           Balances `json:"balances"`
}

// Balances is the provider-reported balance snapshot for an account.
type Balances struct {
	Current         *float64 `json:"current"`
	Available       *float64 `json:"available"`
	Limit           *float64 `json:"limit"`
	IsoCurrencyCode string   `json:"iso_currency_code"`
}

// SyncRequest parameterizes one page fetch of the transactions delta feed.
type SyncRequest struct {
	AccessToken string
	Cursor      string
	StartDate   string // YYYY-MM-DD, only honored on the first page of a fresh feed
	AccountIDs  []string
	Count       int
}

// SyncResponse is one page of the cursor-driven transactions delta feed.
type SyncResponse struct {
	Added      []Transaction        `json:"added"`
	Modified   []Transaction        `json:"modified"`
	Removed    []RemovedTransaction `json:"removed"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
	RequestID  string               `json:"request_id"`
}

// Transaction is a provider-reported transaction delta. The amount sign
// follows the provider convention: positive is an outflow, negative an
// inflow.
type Transaction struct {
	TransactionID   string  `json:"transaction_id"`
	AccountID       string  `json:"account_id"`
	Amount          float64 `json:"amount"`
	DateString      string  `json:"date"` // YYYY-MM-DD
	Name            string  `json:"name"`
	MerchantName    *string `json:"merchant_name"`
	Pending         bool    `json:"pending"`
	IsoCurrencyCode string  `json:"iso_currency_code"`
}

// GetDate parses the transaction date.
func (t *Transaction) GetDate() (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", t.DateString)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", t.DateString, err)
	}
	return parsed, nil
}

// RemovedTransaction identifies a transaction the provider has withdrawn.
type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
}

// VerificationKey is a JWK published by the provider for webhook
// signature verification.
type VerificationKey struct {
	Alg       string `json:"alg"`
	Crv       string `json:"crv"`
	Kid       string `json:"kid"`
	Kty       string `json:"kty"`
	Use       string `json:"use"`
	X         string `json:"x"`
	Y         string `json:"y"`
	CreatedAt int64  `json:"created_at"`
	ExpiredAt *int64 `json:"expired_at"`
}
