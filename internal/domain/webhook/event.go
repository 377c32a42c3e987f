// Package webhook verifies, deduplicates and routes inbound provider
// event notifications.
package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Provider webhook types.
const (
	TypeTransactions = "TRANSACTIONS"
	TypeItem         = "ITEM"
	TypeHoldings     = "HOLDINGS"
)

// Provider webhook codes this dispatcher reacts to.
const (
	CodeSyncUpdatesAvailable  = "SYNC_UPDATES_AVAILABLE"
	CodeInitialUpdate         = "INITIAL_UPDATE"
	CodeHistoricalUpdate      = "HISTORICAL_UPDATE"
	CodeDefaultUpdate         = "DEFAULT_UPDATE"
	CodeTransactionsRemoved   = "TRANSACTIONS_REMOVED"
	CodeItemError             = "ERROR"
	CodePendingExpiration     = "PENDING_EXPIRATION"
	CodeUserPermissionRevoked = "USER_PERMISSION_REVOKED"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Payload is the verified body of a provider webhook delivery.
type Payload struct {
	WebhookType         string        `json:"webhook_type"`
	WebhookCode         string        `json:"webhook_code"`
	ItemID              string        `json:"item_id"`
	Environment         string        `json:"environment"`
	NewTransactions     int           `json:"new_transactions"`
	RemovedTransactions []string      `json:"removed_transactions"`
	AccountIDs          []string      `json:"account_ids"`
	Error               *PayloadError `json:"error"`
}

// PayloadError is the error object embedded in item-category events.
type PayloadError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Validate checks the structural requirements every event must meet.
func (p *Payload) Validate() error {
	if strings.TrimSpace(p.WebhookType) == "" {
		return fmt.Errorf("%w: missing webhook_type", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.WebhookCode) == "" {
		return fmt.Errorf("%w: missing webhook_code", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.ItemID) == "" {
		return fmt.Errorf("%w: missing item_id", ErrInvalidPayload)
	}
	return nil
}

// DeriveEventID computes the deterministic idempotency id for a
// delivery. The calendar day of receipt (UTC) is part of the key, so
// bursts of identical re-deliveries within one day collapse into a
// single unit of work while the same logical event can still be
// reprocessed on a later day.
func DeriveEventID(p *Payload, receivedAt time.Time) string {
	removed := append([]string(nil), p.RemovedTransactions...)
	sort.Strings(removed)
	accounts := append([]string(nil), p.AccountIDs...)
	sort.Strings(accounts)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%s|%s",
		p.WebhookType,
		p.WebhookCode,
		p.ItemID,
		receivedAt.UTC().Format("2006-01-02"),
		p.NewTransactions,
		strings.Join(removed, ","),
		strings.Join(accounts, ","),
	)
	return hex.EncodeToString(h.Sum(nil))
}
