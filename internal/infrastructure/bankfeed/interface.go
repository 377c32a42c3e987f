package bankfeed

import (
	"context"
)

// ClientInterface defines the methods required from the provider API client.
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, clientUserID string, institutionID string) (*LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error)
	SyncTransactions(ctx context.Context, req SyncRequest) (*SyncResponse, error)
	RemoveItem(ctx context.Context, accessToken string) error
	GetWebhookVerificationKey(ctx context.Context, keyID string) (*VerificationKey, error)
}
