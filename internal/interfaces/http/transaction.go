package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"soldo/internal/domain/account"
	"soldo/internal/domain/transaction"
	"soldo/internal/shared/middleware"
)

const defaultTransactionPageSize = 50

type TransactionHandler struct {
	accountService *account.Service
	transactions   transaction.Repository
}

func NewTransactionHandler(accountService *account.Service, transactions transaction.Repository) *TransactionHandler {
	return &TransactionHandler{accountService: accountService, transactions: transactions}
}

type TransactionResponse struct {
	ID        string  `json:"id"`
	AccountID string  `json:"accountId"`
	Date      string  `json:"date"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Pending   bool    `json:"pending"`
	Currency  string  `json:"currency"`
}

func toTransactionResponse(t *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        t.ID,
		AccountID: t.AccountID,
		Date:      t.Date.Format(time.DateOnly),
		Type:      string(t.Type),
		Amount:    t.Amount,
		Pending:   t.Pending,
		Currency:  t.Currency,
	}
}

// HandleAccountTransactions lists transactions for an account the user
// owns, newest first.
func (h *TransactionHandler) HandleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accountID := r.PathValue("id")
	// Ownership check before touching the ledger.
	if _, err := h.accountService.GetAccount(r.Context(), accountID, userID); err != nil {
		switch {
		case errors.Is(err, account.ErrAccountNotFound):
			http.Error(w, "Account not found", http.StatusNotFound)
		case errors.Is(err, account.ErrForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			log.Printf("Error checking account %s for user %d: %v", accountID, userID, err)
			http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		}
		return
	}

	limit := defaultTransactionPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	transactions, err := h.transactions.ListByAccountID(r.Context(), accountID, limit, offset)
	if err != nil {
		log.Printf("Error listing transactions for account %s: %v", accountID, err)
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	response := make([]TransactionResponse, 0, len(transactions))
	for _, t := range transactions {
		response = append(response, toTransactionResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
