package sync

import (
	"context"
	"testing"
	"time"

	"soldo/internal/domain/account"
	"soldo/internal/domain/connection"
	"soldo/internal/domain/transaction"
	"soldo/internal/infrastructure/bankfeed"
	"soldo/internal/infrastructure/crypto"
)

// MockClient implements bankfeed.ClientInterface
type MockClient struct {
	CreateLinkTokenFunc           func(ctx context.Context, clientUserID, institutionID string) (*bankfeed.LinkTokenResponse, error)
	ExchangePublicTokenFunc       func(ctx context.Context, publicToken string) (*bankfeed.ExchangeResponse, error)
	GetAccountsFunc               func(ctx context.Context, accessToken string) (*bankfeed.AccountsResponse, error)
	SyncTransactionsFunc          func(ctx context.Context, req bankfeed.SyncRequest) (*bankfeed.SyncResponse, error)
	RemoveItemFunc                func(ctx context.Context, accessToken string) error
	GetWebhookVerificationKeyFunc func(ctx context.Context, keyID string) (*bankfeed.VerificationKey, error)
}

func (m *MockClient) CreateLinkToken(ctx context.Context, clientUserID, institutionID string) (*bankfeed.LinkTokenResponse, error) {
	if m.CreateLinkTokenFunc != nil {
		return m.CreateLinkTokenFunc(ctx, clientUserID, institutionID)
	}
	return &bankfeed.LinkTokenResponse{LinkToken: "link-token"}, nil
}
func (m *MockClient) ExchangePublicToken(ctx context.Context, publicToken string) (*bankfeed.ExchangeResponse, error) {
	if m.ExchangePublicTokenFunc != nil {
		return m.ExchangePublicTokenFunc(ctx, publicToken)
	}
	return &bankfeed.ExchangeResponse{AccessToken: "access-token", ItemID: "item-1"}, nil
}
func (m *MockClient) GetAccounts(ctx context.Context, accessToken string) (*bankfeed.AccountsResponse, error) {
	if m.GetAccountsFunc != nil {
		return m.GetAccountsFunc(ctx, accessToken)
	}
	return &bankfeed.AccountsResponse{}, nil
}
func (m *MockClient) SyncTransactions(ctx context.Context, req bankfeed.SyncRequest) (*bankfeed.SyncResponse, error) {
	if m.SyncTransactionsFunc != nil {
		return m.SyncTransactionsFunc(ctx, req)
	}
	return &bankfeed.SyncResponse{HasMore: false}, nil
}
func (m *MockClient) RemoveItem(ctx context.Context, accessToken string) error {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, accessToken)
	}
	return nil
}
func (m *MockClient) GetWebhookVerificationKey(ctx context.Context, keyID string) (*bankfeed.VerificationKey, error) {
	if m.GetWebhookVerificationKeyFunc != nil {
		return m.GetWebhookVerificationKeyFunc(ctx, keyID)
	}
	return nil, nil
}

// MockConnectionRepo implements connection.Repository
type MockConnectionRepo struct {
	CreateFunc                    func(ctx context.Context, params connection.CreateParams) (*connection.Connection, error)
	GetByIDFunc                   func(ctx context.Context, id string) (*connection.Connection, error)
	GetByProviderItemIDFunc       func(ctx context.Context, providerItemID string) (*connection.Connection, error)
	ListByUserIDFunc              func(ctx context.Context, userID int64) ([]*connection.Connection, error)
	UpdateCursorFunc              func(ctx context.Context, id, cursor string) error
	SetStatusFunc                 func(ctx context.Context, id string, status connection.Status, errorCode, errorMessage string) error
	MarkSyncSuccessFunc           func(ctx context.Context, id string) error
	TouchLastSuccessfulUpdateFunc func(ctx context.Context, id string) error
	UpdateConsentExpiryFunc       func(ctx context.Context, id string, expiresAt *time.Time) error
	DeleteFunc                    func(ctx context.Context, id string) error
	TryAcquireSyncLockFunc        func(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	ReleaseSyncLockFunc           func(ctx context.Context, id string) error
}

func (m *MockConnectionRepo) Create(ctx context.Context, params connection.CreateParams) (*connection.Connection, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &connection.Connection{ID: "conn-1", UserID: params.UserID, ProviderItemID: params.ProviderItemID}, nil
}
func (m *MockConnectionRepo) GetByID(ctx context.Context, id string) (*connection.Connection, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockConnectionRepo) GetByProviderItemID(ctx context.Context, providerItemID string) (*connection.Connection, error) {
	if m.GetByProviderItemIDFunc != nil {
		return m.GetByProviderItemIDFunc(ctx, providerItemID)
	}
	return nil, nil
}
func (m *MockConnectionRepo) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}
func (m *MockConnectionRepo) ListSyncCandidates(ctx context.Context, olderThan time.Time) ([]*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) UpdateCursor(ctx context.Context, id, cursor string) error {
	if m.UpdateCursorFunc != nil {
		return m.UpdateCursorFunc(ctx, id, cursor)
	}
	return nil
}
func (m *MockConnectionRepo) SetStatus(ctx context.Context, id string, status connection.Status, errorCode, errorMessage string) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, id, status, errorCode, errorMessage)
	}
	return nil
}
func (m *MockConnectionRepo) MarkSyncSuccess(ctx context.Context, id string) error {
	if m.MarkSyncSuccessFunc != nil {
		return m.MarkSyncSuccessFunc(ctx, id)
	}
	return nil
}
func (m *MockConnectionRepo) TouchLastSuccessfulUpdate(ctx context.Context, id string) error {
	if m.TouchLastSuccessfulUpdateFunc != nil {
		return m.TouchLastSuccessfulUpdateFunc(ctx, id)
	}
	return nil
}
func (m *MockConnectionRepo) UpdateConsentExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	if m.UpdateConsentExpiryFunc != nil {
		return m.UpdateConsentExpiryFunc(ctx, id, expiresAt)
	}
	return nil
}
func (m *MockConnectionRepo) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}
func (m *MockConnectionRepo) TryAcquireSyncLock(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	if m.TryAcquireSyncLockFunc != nil {
		return m.TryAcquireSyncLockFunc(ctx, id, staleBefore)
	}
	return true, nil
}
func (m *MockConnectionRepo) ReleaseSyncLock(ctx context.Context, id string) error {
	if m.ReleaseSyncLockFunc != nil {
		return m.ReleaseSyncLockFunc(ctx, id)
	}
	return nil
}

// MockTransactionRepo implements transaction.Repository
type MockTransactionRepo struct {
	CreateFunc                     func(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
	GetByProviderTransactionIDFunc func(ctx context.Context, providerTxID string) (*transaction.Transaction, error)
	UpdateFunc                     func(ctx context.Context, id string, params transaction.UpdateParams) error
	DeleteFunc                     func(ctx context.Context, id string) error
}

func (m *MockTransactionRepo) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &transaction.Transaction{ID: params.ID}, nil
}
func (m *MockTransactionRepo) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return nil, nil
}
func (m *MockTransactionRepo) GetByProviderTransactionID(ctx context.Context, providerTxID string) (*transaction.Transaction, error) {
	if m.GetByProviderTransactionIDFunc != nil {
		return m.GetByProviderTransactionIDFunc(ctx, providerTxID)
	}
	return nil, nil
}
func (m *MockTransactionRepo) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	return nil, nil
}
func (m *MockTransactionRepo) Update(ctx context.Context, id string, params transaction.UpdateParams) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, params)
	}
	return nil
}
func (m *MockTransactionRepo) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockAccountRepo implements account.Repository
type MockAccountRepo struct {
	CreateFunc         func(ctx context.Context, params account.CreateParams) (*account.Account, error)
	UpdateBalancesFunc func(ctx context.Context, id string, current, available *float64) error
}

func (m *MockAccountRepo) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &account.Account{ID: params.ID, UserID: params.UserID}, nil
}
func (m *MockAccountRepo) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) UpdateBalances(ctx context.Context, id string, current, available *float64) error {
	if m.UpdateBalancesFunc != nil {
		return m.UpdateBalancesFunc(ctx, id, current, available)
	}
	return nil
}
func (m *MockAccountRepo) Delete(ctx context.Context, id string) error { return nil }

// MockLinkRepo implements account.LinkRepository
type MockLinkRepo struct {
	CreateFunc                 func(ctx context.Context, params account.CreateLinkParams) (*account.Link, error)
	GetByProviderAccountIDFunc func(ctx context.Context, connectionID, providerAccountID string) (*account.Link, error)
	ListByConnectionIDFunc     func(ctx context.Context, connectionID string) ([]*account.Link, error)
	UpdateMetadataFunc         func(ctx context.Context, linkID int64, params account.UpdateLinkParams) error
	MarkDisconnectedFunc       func(ctx context.Context, connectionID string) error
}

func (m *MockLinkRepo) Create(ctx context.Context, params account.CreateLinkParams) (*account.Link, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &account.Link{ID: 1, ConnectionID: params.ConnectionID, ProviderAccountID: params.ProviderAccountID, AccountID: params.AccountID}, nil
}
func (m *MockLinkRepo) GetByProviderAccountID(ctx context.Context, connectionID, providerAccountID string) (*account.Link, error) {
	if m.GetByProviderAccountIDFunc != nil {
		return m.GetByProviderAccountIDFunc(ctx, connectionID, providerAccountID)
	}
	return nil, nil
}
func (m *MockLinkRepo) ListByConnectionID(ctx context.Context, connectionID string) ([]*account.Link, error) {
	if m.ListByConnectionIDFunc != nil {
		return m.ListByConnectionIDFunc(ctx, connectionID)
	}
	return nil, nil
}
func (m *MockLinkRepo) UpdateMetadata(ctx context.Context, linkID int64, params account.UpdateLinkParams) error {
	if m.UpdateMetadataFunc != nil {
		return m.UpdateMetadataFunc(ctx, linkID, params)
	}
	return nil
}
func (m *MockLinkRepo) MarkDisconnected(ctx context.Context, connectionID string) error {
	if m.MarkDisconnectedFunc != nil {
		return m.MarkDisconnectedFunc(ctx, connectionID)
	}
	return nil
}

func newTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	enc, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewEncryptor() error: %v", err)
	}
	return enc
}

func encryptToken(t *testing.T, enc *crypto.Encryptor, token string) string {
	t.Helper()
	ciphertext, err := enc.Encrypt(token)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	return ciphertext
}
