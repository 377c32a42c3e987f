package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"soldo/internal/domain/connection"
	"soldo/internal/domain/sync"
)

// MockVerifier implements SignatureVerifier
type MockVerifier struct {
	VerifyFunc func(ctx context.Context, signatureJWT string, body []byte) error
}

func (m *MockVerifier) Verify(ctx context.Context, signatureJWT string, body []byte) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, signatureJWT, body)
	}
	return nil
}

// MockSyncer implements Syncer
type MockSyncer struct {
	SyncByItemIDFunc func(ctx context.Context, providerItemID string) (*sync.Outcome, error)
}

func (m *MockSyncer) SyncByItemID(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
	if m.SyncByItemIDFunc != nil {
		return m.SyncByItemIDFunc(ctx, providerItemID)
	}
	return &sync.Outcome{}, nil
}

// MockConnectionRepo implements connection.Repository
type MockConnectionRepo struct {
	GetByProviderItemIDFunc       func(ctx context.Context, providerItemID string) (*connection.Connection, error)
	SetStatusFunc                 func(ctx context.Context, id string, status connection.Status, errorCode, errorMessage string) error
	TouchLastSuccessfulUpdateFunc func(ctx context.Context, id string) error
}

func (m *MockConnectionRepo) Create(ctx context.Context, params connection.CreateParams) (*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) GetByID(ctx context.Context, id string) (*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) GetByProviderItemID(ctx context.Context, providerItemID string) (*connection.Connection, error) {
	if m.GetByProviderItemIDFunc != nil {
		return m.GetByProviderItemIDFunc(ctx, providerItemID)
	}
	return nil, nil
}
func (m *MockConnectionRepo) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) ListSyncCandidates(ctx context.Context, olderThan time.Time) ([]*connection.Connection, error) {
	return nil, nil
}
func (m *MockConnectionRepo) UpdateCursor(ctx context.Context, id, cursor string) error { return nil }
func (m *MockConnectionRepo) SetStatus(ctx context.Context, id string, status connection.Status, errorCode, errorMessage string) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, id, status, errorCode, errorMessage)
	}
	return nil
}
func (m *MockConnectionRepo) MarkSyncSuccess(ctx context.Context, id string) error { return nil }
func (m *MockConnectionRepo) TouchLastSuccessfulUpdate(ctx context.Context, id string) error {
	if m.TouchLastSuccessfulUpdateFunc != nil {
		return m.TouchLastSuccessfulUpdateFunc(ctx, id)
	}
	return nil
}
func (m *MockConnectionRepo) UpdateConsentExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return nil
}
func (m *MockConnectionRepo) Delete(ctx context.Context, id string) error { return nil }
func (m *MockConnectionRepo) TryAcquireSyncLock(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	return true, nil
}
func (m *MockConnectionRepo) ReleaseSyncLock(ctx context.Context, id string) error { return nil }

func newTestDispatcher(verifier *MockVerifier, events *MockEventRepo, syncer *MockSyncer, connections *MockConnectionRepo) *Dispatcher {
	if verifier == nil {
		verifier = &MockVerifier{}
	}
	if events == nil {
		events = &MockEventRepo{}
	}
	if syncer == nil {
		syncer = &MockSyncer{}
	}
	if connections == nil {
		connections = &MockConnectionRepo{}
	}
	return NewDispatcher(verifier, NewLedger(events), syncer, connections)
}

func TestDispatcher_Handle_VerificationFailureBlocksEverything(t *testing.T) {
	events := &MockEventRepo{
		RecordFunc: func(ctx context.Context, event *Event) error {
			t.Error("no ledger write expected for a rejected delivery")
			return nil
		},
	}
	syncer := &MockSyncer{
		SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
			t.Error("no sync expected for a rejected delivery")
			return nil, nil
		},
	}
	d := newTestDispatcher(&MockVerifier{
		VerifyFunc: func(ctx context.Context, signatureJWT string, body []byte) error {
			return ErrVerificationFailed
		},
	}, events, syncer, nil)

	err := d.Handle(context.Background(), []byte(`{}`), "bad-signature")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("Handle() error = %v, want ErrVerificationFailed", err)
	}
}

func TestDispatcher_Handle_MalformedBody(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)
	err := d.Handle(context.Background(), []byte(`not json`), "sig")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Handle() error = %v, want ErrInvalidPayload", err)
	}
}

func TestDispatcher_Handle_MissingRequiredFields(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)
	err := d.Handle(context.Background(), []byte(`{"webhook_type":"TRANSACTIONS"}`), "sig")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Handle() error = %v, want ErrInvalidPayload", err)
	}
}

func TestDispatcher_Handle_SyncCodesTriggerSync(t *testing.T) {
	codes := []string{CodeSyncUpdatesAvailable, CodeInitialUpdate, CodeHistoricalUpdate, CodeDefaultUpdate}
	for _, code := range codes {
		t.Run(code, func(t *testing.T) {
			syncedItem := ""
			syncer := &MockSyncer{
				SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
					syncedItem = providerItemID
					return &sync.Outcome{ConnectionID: "conn-1", Created: 2}, nil
				},
			}
			var recorded *Event
			events := &MockEventRepo{
				RecordFunc: func(ctx context.Context, event *Event) error {
					recorded = event
					return nil
				},
			}
			d := newTestDispatcher(nil, events, syncer, nil)

			body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"` + code + `","item_id":"item-1"}`)
			if err := d.Handle(context.Background(), body, "sig"); err != nil {
				t.Fatalf("Handle() error: %v", err)
			}
			if syncedItem != "item-1" {
				t.Errorf("synced item = %q, want item-1", syncedItem)
			}
			if recorded == nil || recorded.Outcome != OutcomeSuccess {
				t.Errorf("recorded = %+v, want a success outcome", recorded)
			}
		})
	}
}

func TestDispatcher_Handle_SyncInProgressIsAcknowledged(t *testing.T) {
	syncer := &MockSyncer{
		SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
			return nil, connection.ErrSyncInProgress
		},
	}
	var recorded *Event
	events := &MockEventRepo{
		RecordFunc: func(ctx context.Context, event *Event) error {
			recorded = event
			return nil
		},
	}
	d := newTestDispatcher(nil, events, syncer, nil)

	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if recorded == nil || recorded.Outcome != OutcomeSuccess {
		t.Errorf("recorded = %+v, want success for a concurrent-sync delivery", recorded)
	}
}

func TestDispatcher_Handle_UnknownItemIsAcknowledged(t *testing.T) {
	syncer := &MockSyncer{
		SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
			return nil, connection.ErrConnectionNotFound
		},
	}
	var recorded *Event
	events := &MockEventRepo{
		RecordFunc: func(ctx context.Context, event *Event) error {
			recorded = event
			return nil
		},
	}
	d := newTestDispatcher(nil, events, syncer, nil)

	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-gone"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if recorded == nil || recorded.Outcome != OutcomeSuccess {
		t.Errorf("recorded = %+v, want success for an unknown item", recorded)
	}
}

func TestDispatcher_Handle_SyncFailureRecordsErrorAndTouches(t *testing.T) {
	syncer := &MockSyncer{
		SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
			return nil, errors.New("provider timeout")
		},
	}
	touched := ""
	connections := &MockConnectionRepo{
		GetByProviderItemIDFunc: func(ctx context.Context, providerItemID string) (*connection.Connection, error) {
			return &connection.Connection{ID: "conn-1", ProviderItemID: providerItemID}, nil
		},
		TouchLastSuccessfulUpdateFunc: func(ctx context.Context, id string) error {
			touched = id
			return nil
		},
	}
	var recorded *Event
	events := &MockEventRepo{
		RecordFunc: func(ctx context.Context, event *Event) error {
			recorded = event
			return nil
		},
	}
	d := newTestDispatcher(nil, events, syncer, connections)

	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if recorded == nil || recorded.Outcome != OutcomeError {
		t.Fatalf("recorded = %+v, want an error outcome", recorded)
	}
	if recorded.ErrorMessage == "" {
		t.Error("expected the failure message to be recorded")
	}
	if touched != "conn-1" {
		t.Errorf("touched connection = %q, want conn-1", touched)
	}
}

func TestDispatcher_Handle_TransactionsRemovedRetainsRecords(t *testing.T) {
	syncer := &MockSyncer{
		SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
			t.Error("no sync expected for a removal notification")
			return nil, nil
		},
	}
	var recorded *Event
	events := &MockEventRepo{
		RecordFunc: func(ctx context.Context, event *Event) error {
			recorded = event
			return nil
		},
	}
	d := newTestDispatcher(nil, events, syncer, nil)

	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"TRANSACTIONS_REMOVED","item_id":"item-1","removed_transactions":["tx-1","tx-2"]}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if recorded == nil || recorded.Outcome != OutcomeSuccess {
		t.Errorf("recorded = %+v, want success", recorded)
	}
}

func TestDispatcher_Handle_ItemErrorUpdatesConnectionStatus(t *testing.T) {
	var gotStatus connection.Status
	var gotCode, gotMessage string
	connections := &MockConnectionRepo{
		GetByProviderItemIDFunc: func(ctx context.Context, providerItemID string) (*connection.Connection, error) {
			return &connection.Connection{ID: "conn-1", ProviderItemID: providerItemID}, nil
		},
		SetStatusFunc: func(ctx context.Context, id string, status connection.Status, errorCode, errorMessage string) error {
			gotStatus = status
			gotCode = errorCode
			gotMessage = errorMessage
			return nil
		},
	}
	d := newTestDispatcher(nil, nil, nil, connections)

	body := []byte(`{"webhook_type":"ITEM","webhook_code":"ERROR","item_id":"item-1","error":{"error_code":"ITEM_LOGIN_REQUIRED","error_message":"the login details changed"}}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if gotStatus != connection.StatusItemLoginRequired {
		t.Errorf("status = %q, want %q", gotStatus, connection.StatusItemLoginRequired)
	}
	if gotCode != "ITEM_LOGIN_REQUIRED" || gotMessage != "the login details changed" {
		t.Errorf("persisted code/message = %q/%q", gotCode, gotMessage)
	}
}

func TestDispatcher_Handle_PendingExpirationUsesWebhookCode(t *testing.T) {
	var gotStatus connection.Status
	connections := &MockConnectionRepo{
		GetByProviderItemIDFunc: func(ctx context.Context, providerItemID string) (*connection.Connection, error) {
			return &connection.Connection{ID: "conn-1"}, nil
		},
		SetStatusFunc: func(ctx context.Context, id string, status connection.Status, errorCode, errorMessage string) error {
			gotStatus = status
			return nil
		},
	}
	d := newTestDispatcher(nil, nil, nil, connections)

	body := []byte(`{"webhook_type":"ITEM","webhook_code":"PENDING_EXPIRATION","item_id":"item-1"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if gotStatus != connection.StatusPendingExpiration {
		t.Errorf("status = %q, want %q", gotStatus, connection.StatusPendingExpiration)
	}
}

func TestDispatcher_Handle_HoldingsTouchesFreshness(t *testing.T) {
	touched := ""
	connections := &MockConnectionRepo{
		GetByProviderItemIDFunc: func(ctx context.Context, providerItemID string) (*connection.Connection, error) {
			return &connection.Connection{ID: "conn-1"}, nil
		},
		TouchLastSuccessfulUpdateFunc: func(ctx context.Context, id string) error {
			touched = id
			return nil
		},
	}
	d := newTestDispatcher(nil, nil, nil, connections)

	body := []byte(`{"webhook_type":"HOLDINGS","webhook_code":"DEFAULT_UPDATE","item_id":"item-1"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if touched != "conn-1" {
		t.Errorf("touched connection = %q, want conn-1", touched)
	}
}

func TestDispatcher_Handle_UnknownTypeIsAcknowledged(t *testing.T) {
	var recorded *Event
	events := &MockEventRepo{
		RecordFunc: func(ctx context.Context, event *Event) error {
			recorded = event
			return nil
		},
	}
	d := newTestDispatcher(nil, events, nil, nil)

	body := []byte(`{"webhook_type":"INCOME","webhook_code":"SOMETHING_NEW","item_id":"item-1"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if recorded == nil || recorded.Outcome != OutcomeSuccess {
		t.Errorf("recorded = %+v, want success for an unknown type", recorded)
	}
}

func TestDispatcher_Handle_DuplicateDeliveryIsSkipped(t *testing.T) {
	events := &MockEventRepo{
		GetByEventIDFunc: func(ctx context.Context, eventID string) (*Event, error) {
			return &Event{EventID: eventID, Outcome: OutcomeSuccess}, nil
		},
		RecordFunc: func(ctx context.Context, event *Event) error {
			t.Error("no ledger write expected for a skipped duplicate")
			return nil
		},
	}
	syncer := &MockSyncer{
		SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
			t.Error("no sync expected for a skipped duplicate")
			return nil, nil
		},
	}
	d := newTestDispatcher(nil, events, syncer, nil)

	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
}

func TestDispatcher_Handle_PriorErrorIsReprocessed(t *testing.T) {
	events := &MockEventRepo{
		GetByEventIDFunc: func(ctx context.Context, eventID string) (*Event, error) {
			return &Event{EventID: eventID, Outcome: OutcomeError}, nil
		},
	}
	synced := false
	syncer := &MockSyncer{
		SyncByItemIDFunc: func(ctx context.Context, providerItemID string) (*sync.Outcome, error) {
			synced = true
			return &sync.Outcome{}, nil
		},
	}
	d := newTestDispatcher(nil, events, syncer, nil)

	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`)
	if err := d.Handle(context.Background(), body, "sig"); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !synced {
		t.Error("expected a previously failed event to be reprocessed")
	}
}
