// Package bankfeed implements the HTTP client for the account
// aggregation provider: link-token issuance, token exchange, account
// listings, the cursor-driven transactions delta feed, and webhook
// verification key retrieval.
package bankfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTimeout = 60 * time.Second

	linkTokenPath       = "/link/token/create"
	exchangePath        = "/item/public_token/exchange"
	accountsPath        = "/accounts/get"
	transactionsPath    = "/transactions/sync"
	itemRemovePath      = "/item/remove"
	verificationKeyPath = "/webhook_verification_key/get"
)

// Client handles communication with the aggregation provider API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	webhookURL string

	// verification keys are immutable per key id, so cache them forever
	keyMu   sync.RWMutex
	keyByID map[string]*VerificationKey
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new provider API client.
func NewClient(baseURL, clientID, secret, webhookURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		clientID:   clientID,
		secret:     secret,
		webhookURL: webhookURL,
		keyByID:    make(map[string]*VerificationKey),
	}
}

// CreateLinkToken requests a short-lived link token used by the client
// application to open the institution picker.
func (c *Client) CreateLinkToken(ctx context.Context, clientUserID string, institutionID string) (*LinkTokenResponse, error) {
	body := map[string]any{
		"user":          map[string]string{"client_user_id": clientUserID},
		"products":      []string{"transactions"},
		"webhook":       c.webhookURL,
		"language":      "en",
		"country_codes": []string{"US", "BR"},
	}
	if institutionID != "" {
		body["institution_id"] = institutionID
	}

	var resp LinkTokenResponse
	if err := c.post(ctx, linkTokenPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangePublicToken trades the single-use public token produced by the
// link flow for a long-lived access token and item id.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	body := map[string]any{"public_token": publicToken}

	var resp ExchangeResponse
	if err := c.post(ctx, exchangePath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAccounts fetches all accounts under the item.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error) {
	body := map[string]any{"access_token": accessToken}

	var resp AccountsResponse
	if err := c.post(ctx, accountsPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncTransactions fetches one page of the transactions delta feed.
func (c *Client) SyncTransactions(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	body := map[string]any{
		"access_token": req.AccessToken,
	}
	if req.Cursor != "" {
		body["cursor"] = req.Cursor
	}
	if req.StartDate != "" {
		body["start_date"] = req.StartDate
	}
	if len(req.AccountIDs) > 0 {
		body["account_ids"] = req.AccountIDs
	}
	if req.Count > 0 {
		body["count"] = req.Count
	}

	var resp SyncResponse
	if err := c.post(ctx, transactionsPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveItem revokes the access token upstream.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	body := map[string]any{"access_token": accessToken}
	return c.post(ctx, itemRemovePath, body, &struct{}{})
}

// GetWebhookVerificationKey fetches (and caches) the JWK for a webhook
// signature key id.
func (c *Client) GetWebhookVerificationKey(ctx context.Context, keyID string) (*VerificationKey, error) {
	c.keyMu.RLock()
	if key, ok := c.keyByID[keyID]; ok {
		c.keyMu.RUnlock()
		return key, nil
	}
	c.keyMu.RUnlock()

	body := map[string]any{"key_id": keyID}

	var resp struct {
		Key       VerificationKey `json:"key"`
		RequestID string          `json:"request_id"`
	}
	if err := c.post(ctx, verificationKeyPath, body, &resp); err != nil {
		return nil, err
	}

	c.keyMu.Lock()
	c.keyByID[keyID] = &resp.Key
	c.keyMu.Unlock()

	return &resp.Key, nil
}

// post sends an authenticated JSON request and decodes the response.
// Non-200 responses are returned as *APIError so callers can branch on
// the provider error code.
func (c *Client) post(ctx context.Context, path string, reqBody map[string]any, out any) error {
	reqBody["client_id"] = c.clientID
	reqBody["secret"] = c.secret

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			return fmt.Errorf("provider request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
