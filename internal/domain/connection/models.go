// Package connection holds the Connection aggregate: one persisted
// grant of access to an external institution's data, identified by a
// provider-assigned item id.
package connection

import (
	"errors"
	"time"
)

// Status is the closed vocabulary for connection health. Provider
// status strings never enter domain state unmapped.
type Status string

const (
	StatusGood                  Status = "good"
	StatusItemLoginRequired     Status = "item_login_required"
	StatusError                 Status = "error"
	StatusPendingExpiration     Status = "pending_expiration"
	StatusPendingMetadataUpdate Status = "pending_metadata_update"
)

// Domain errors
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrForbidden          = errors.New("access forbidden")
	// ErrSyncInProgress is returned when a fresh sync lock is already
	// held for the connection.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrMissingCredential is returned when a connection has no stored
	// access token; no partial work is possible.
	ErrMissingCredential = errors.New("connection has no stored access credential")
)

// Connection represents a linked institution access grant.
type Connection struct {
	ID                   string     `json:"id"`
	UserID               int64      `json:"userId"`
	ProviderItemID       string     `json:"providerItemId"`
	InstitutionID        string     `json:"institutionId"`
	InstitutionName      string     `json:"institutionName"`
	AccessTokenEncrypted string     `json:"-"`
	Status               Status     `json:"status"`
	ErrorCode            string     `json:"errorCode,omitempty"`
	ErrorMessage         string     `json:"errorMessage,omitempty"`
	ConsentExpiresAt     *time.Time `json:"consentExpiresAt"`
	LastSuccessfulUpdate *time.Time `json:"lastSuccessfulUpdate"`
	SyncCursor           *string    `json:"-"`
	IsSyncing            bool       `json:"isSyncing"`
	SyncStartedAt        *time.Time `json:"syncStartedAt"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Cursor returns the stored sync cursor, or "" for a connection that has
// never completed a page.
func (c *Connection) Cursor() string {
	if c.SyncCursor == nil {
		return ""
	}
	return *c.SyncCursor
}

// CreateParams contains parameters for creating a connection after a
// successful credential exchange.
type CreateParams struct {
	UserID               int64
	ProviderItemID       string
	InstitutionID        string
	InstitutionName      string
	AccessTokenEncrypted string
	ConsentExpiresAt     *time.Time
}
