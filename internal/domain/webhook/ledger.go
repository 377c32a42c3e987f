package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is the recorded result of processing one webhook event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Event is one processed-webhook record in the idempotency ledger.
type Event struct {
	EventID      string    `json:"eventId"`
	EventType    string    `json:"eventType"`
	EventCode    string    `json:"eventCode"`
	Outcome      Outcome   `json:"outcome"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Metadata     string    `json:"metadata,omitempty"`
	ProcessedAt  time.Time `json:"processedAt"`
}

// Repository defines persistence for the idempotency ledger. Record must
// upsert on event id: the unique constraint there is what stops two
// concurrent deliveries of the same event from both fully executing.
type Repository interface {
	// GetByEventID returns (nil, nil) when the event was never recorded.
	GetByEventID(ctx context.Context, eventID string) (*Event, error)
	Record(ctx context.Context, event *Event) error
}

// Ledger deduplicates webhook deliveries by derived event id.
type Ledger struct {
	repo Repository
}

// NewLedger creates a ledger over the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// ShouldProcess reports whether an event with this id needs handling. A
// prior success means skip; a prior error is not trusted and the event
// is reprocessed.
func (l *Ledger) ShouldProcess(ctx context.Context, eventID string) (bool, error) {
	prior, err := l.repo.GetByEventID(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check event ledger: %w", err)
	}
	if prior != nil && prior.Outcome == OutcomeSuccess {
		return false, nil
	}
	return true, nil
}

// RecordOutcome writes the final outcome for an event.
func (l *Ledger) RecordOutcome(ctx context.Context, eventID string, p *Payload, outcome Outcome, errMessage string) error {
	event := &Event{
		EventID:      eventID,
		EventType:    p.WebhookType,
		EventCode:    p.WebhookCode,
		Outcome:      outcome,
		ErrorMessage: errMessage,
		Metadata:     eventMetadata(p),
		ProcessedAt:  time.Now(),
	}
	if err := l.repo.Record(ctx, event); err != nil {
		return fmt.Errorf("failed to record event outcome: %w", err)
	}
	return nil
}

// eventMetadata summarizes the delivery for the ledger row, so a stored
// event can be traced back to its item and transaction counts without
// retaining the raw body.
func eventMetadata(p *Payload) string {
	meta := struct {
		ItemID              string `json:"item_id"`
		Environment         string `json:"environment,omitempty"`
		NewTransactions     int    `json:"new_transactions"`
		RemovedTransactions int    `json:"removed_transactions"`
		AccountIDs          int    `json:"account_ids"`
	}{
		ItemID:              p.ItemID,
		Environment:         p.Environment,
		NewTransactions:     p.NewTransactions,
		RemovedTransactions: len(p.RemovedTransactions),
		AccountIDs:          len(p.AccountIDs),
	}

	b, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(b)
}
