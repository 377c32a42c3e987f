package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"soldo/internal/domain/account"
	"soldo/internal/shared/middleware"
)

type AccountHandler struct {
	accountService *account.Service
}

func NewAccountHandler(accountService *account.Service) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

type AccountResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	AccountType      string   `json:"accountType"`
	Currency         string   `json:"currency"`
	BalanceCurrent   *float64 `json:"balanceCurrent"`
	BalanceAvailable *float64 `json:"balanceAvailable"`
}

func toAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:               a.ID,
		Name:             a.Name,
		AccountType:      string(a.AccountType),
		Currency:         a.Currency,
		BalanceCurrent:   a.BalanceCurrent,
		BalanceAvailable: a.BalanceAvailable,
	}
}

// HandleAccounts lists the authenticated user's accounts
func (h *AccountHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accounts, err := h.accountService.ListAccountsByUserID(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing accounts for user %d: %v", userID, err)
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, toAccountResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleAccountByID returns a single account the user owns
func (h *AccountHandler) HandleAccountByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	acc, err := h.accountService.GetAccount(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrAccountNotFound):
			http.Error(w, "Account not found", http.StatusNotFound)
		case errors.Is(err, account.ErrForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			log.Printf("Error getting account for user %d: %v", userID, err)
			http.Error(w, "Failed to get account", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(acc))
}
