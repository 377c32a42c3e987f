package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"soldo/internal/domain/connection"
	"soldo/internal/domain/sync"
)

// Syncer runs a webhook-triggered sync for the connection behind a
// provider item id.
type Syncer interface {
	SyncByItemID(ctx context.Context, providerItemID string) (*sync.Outcome, error)
}

// SignatureVerifier checks delivery authenticity against the raw body.
type SignatureVerifier interface {
	Verify(ctx context.Context, signatureJWT string, body []byte) error
}

// Dispatcher verifies inbound events, deduplicates them through the
// ledger and routes them to the sync engine or to direct status updates.
type Dispatcher struct {
	verifier    SignatureVerifier
	ledger      *Ledger
	syncer      Syncer
	connections connection.Repository
	now         func() time.Time
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(verifier SignatureVerifier, ledger *Ledger, syncer Syncer, connections connection.Repository) *Dispatcher {
	return &Dispatcher{
		verifier:    verifier,
		ledger:      ledger,
		syncer:      syncer,
		connections: connections,
		now:         time.Now,
	}
}

// Handle processes one raw webhook delivery. It returns an error only
// when the delivery must not be acknowledged: verification failures
// (ErrVerificationFailed), malformed payloads (ErrInvalidPayload) and
// ledger write failures. Handling failures inside a valid event are
// logged and recorded, never surfaced.
func (d *Dispatcher) Handle(ctx context.Context, rawBody []byte, signatureJWT string) error {
	if err := d.verifier.Verify(ctx, signatureJWT, rawBody); err != nil {
		return err
	}

	var payload Payload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	eventID := DeriveEventID(&payload, d.now())
	process, err := d.ledger.ShouldProcess(ctx, eventID)
	if err != nil {
		return err
	}
	if !process {
		log.Printf("Webhook %s/%s for item %s already processed, skipping", payload.WebhookType, payload.WebhookCode, payload.ItemID)
		return nil
	}

	outcome, handleErr := d.route(ctx, &payload)

	errMessage := ""
	if handleErr != nil {
		errMessage = handleErr.Error()
	}
	return d.ledger.RecordOutcome(ctx, eventID, &payload, outcome, errMessage)
}

// route dispatches a verified, deduplicated event by category.
func (d *Dispatcher) route(ctx context.Context, p *Payload) (Outcome, error) {
	switch p.WebhookType {
	case TypeTransactions:
		return d.handleTransactions(ctx, p)
	case TypeItem:
		return d.handleItem(ctx, p)
	case TypeHoldings:
		return d.handleHoldings(ctx, p)
	default:
		// Unknown future event types must not break ingestion.
		log.Printf("Webhook: ignoring unrecognized type %s/%s for item %s", p.WebhookType, p.WebhookCode, p.ItemID)
		return OutcomeSuccess, nil
	}
}

func (d *Dispatcher) handleTransactions(ctx context.Context, p *Payload) (Outcome, error) {
	switch p.WebhookCode {
	case CodeSyncUpdatesAvailable, CodeInitialUpdate, CodeHistoricalUpdate, CodeDefaultUpdate:
		result, err := d.syncer.SyncByItemID(ctx, p.ItemID)
		if err != nil {
			if errors.Is(err, connection.ErrSyncInProgress) {
				// Redundant delivery; the in-flight sync covers it.
				log.Printf("Webhook: sync already running for item %s, skipping", p.ItemID)
				return OutcomeSuccess, nil
			}
			if errors.Is(err, connection.ErrConnectionNotFound) {
				log.Printf("Webhook: no connection for item %s, ignoring", p.ItemID)
				return OutcomeSuccess, nil
			}
			log.Printf("Webhook: sync failed for item %s: %v", p.ItemID, err)
			// Touch the freshness stamp so the connection is not retried
			// in a tight loop; the ledger outcome stays error so a later
			// delivery reprocesses it.
			d.touchByItemID(ctx, p.ItemID)
			return OutcomeError, err
		}
		log.Printf("Webhook: sync for item %s - created=%d modified=%d removed=%d skipped=%d",
			p.ItemID, result.Created, result.Modified, result.Removed, result.Skipped)
		return OutcomeSuccess, nil

	case CodeTransactionsRemoved:
		// Historical data is retained on this notification channel; only
		// the feed's own removed deltas delete rows.
		log.Printf("Webhook: provider removed %d transaction(s) for item %s, retaining local records",
			len(p.RemovedTransactions), p.ItemID)
		return OutcomeSuccess, nil

	default:
		log.Printf("Webhook: ignoring unrecognized transactions code %s for item %s", p.WebhookCode, p.ItemID)
		return OutcomeSuccess, nil
	}
}

// handleItem persists connection state changes the provider reports
// directly. No sync is triggered for these.
func (d *Dispatcher) handleItem(ctx context.Context, p *Payload) (Outcome, error) {
	switch p.WebhookCode {
	case CodeItemError, CodePendingExpiration, CodeUserPermissionRevoked:
		conn, err := d.connections.GetByProviderItemID(ctx, p.ItemID)
		if err != nil {
			return OutcomeError, fmt.Errorf("failed to look up connection: %w", err)
		}
		if conn == nil {
			log.Printf("Webhook: no connection for item %s, ignoring", p.ItemID)
			return OutcomeSuccess, nil
		}

		code := p.WebhookCode
		message := ""
		if p.Error != nil && p.Error.ErrorCode != "" {
			code = p.Error.ErrorCode
			message = p.Error.ErrorMessage
		}
		status := connection.MapErrorCode(code)
		if err := d.connections.SetStatus(ctx, conn.ID, status, connection.NormalizeErrorCode(code), message); err != nil {
			return OutcomeError, fmt.Errorf("failed to persist connection status: %w", err)
		}
		log.Printf("Webhook: connection %s status set to %s (%s)", conn.ID, status, code)
		return OutcomeSuccess, nil

	default:
		log.Printf("Webhook: ignoring unrecognized item code %s for item %s", p.WebhookCode, p.ItemID)
		return OutcomeSuccess, nil
	}
}

// handleHoldings stamps freshness only; holdings ingestion itself is
// another component's job.
func (d *Dispatcher) handleHoldings(ctx context.Context, p *Payload) (Outcome, error) {
	d.touchByItemID(ctx, p.ItemID)
	return OutcomeSuccess, nil
}

func (d *Dispatcher) touchByItemID(ctx context.Context, itemID string) {
	conn, err := d.connections.GetByProviderItemID(ctx, itemID)
	if err != nil || conn == nil {
		return
	}
	if err := d.connections.TouchLastSuccessfulUpdate(ctx, conn.ID); err != nil {
		log.Printf("Webhook: failed to touch connection %s: %v", conn.ID, err)
	}
}
