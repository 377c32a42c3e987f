package http

import (
	"errors"
	"io"
	"log"
	"net/http"

	"soldo/internal/domain/webhook"
)

// maxWebhookBody caps the raw body read for a single delivery.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	dispatcher *webhook.Dispatcher
}

func NewWebhookHandler(dispatcher *webhook.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// HandleBankfeed receives provider event notifications. The raw body is
// read before any parsing because the signature covers the exact bytes
// on the wire.
func (h *WebhookHandler) HandleBankfeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	err = h.dispatcher.Handle(r.Context(), body, r.Header.Get("Bankfeed-Verification"))
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrVerificationFailed):
			log.Printf("Webhook rejected: %v", err)
			http.Error(w, "Verification failed", http.StatusUnauthorized)
		case errors.Is(err, webhook.ErrInvalidPayload):
			log.Printf("Webhook rejected: %v", err)
			http.Error(w, "Invalid payload", http.StatusBadRequest)
		default:
			log.Printf("Webhook processing error: %v", err)
			http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}
