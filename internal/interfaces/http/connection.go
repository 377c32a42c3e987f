package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"soldo/internal/domain/connection"
	"soldo/internal/domain/sync"
	"soldo/internal/shared/middleware"
)

type ConnectionHandler struct {
	syncService *sync.Service
}

func NewConnectionHandler(syncService *sync.Service) *ConnectionHandler {
	return &ConnectionHandler{syncService: syncService}
}

// Request/Response DTOs

type CreateLinkTokenRequest struct {
	InstitutionID string `json:"institutionId"`
}

type LinkTokenResponse struct {
	LinkToken string `json:"linkToken"`
}

type ExchangeRequest struct {
	PublicToken string `json:"publicToken"`
}

type ConnectionResponse struct {
	ID                   string  `json:"id"`
	InstitutionID        string  `json:"institutionId"`
	InstitutionName      string  `json:"institutionName"`
	Status               string  `json:"status"`
	ErrorCode            string  `json:"errorCode,omitempty"`
	ConsentExpiresAt     *string `json:"consentExpiresAt,omitempty"`
	LastSuccessfulUpdate *string `json:"lastSuccessfulUpdate,omitempty"`
}

type SyncResultResponse struct {
	Created  int `json:"created"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
	Skipped  int `json:"skipped"`
	Accounts struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	} `json:"accounts"`
	Errors []string `json:"errors"`
}

func toConnectionResponse(c *connection.Connection) ConnectionResponse {
	resp := ConnectionResponse{
		ID:              c.ID,
		InstitutionID:   c.InstitutionID,
		InstitutionName: c.InstitutionName,
		Status:          string(c.Status),
		ErrorCode:       c.ErrorCode,
	}
	if c.ConsentExpiresAt != nil {
		s := c.ConsentExpiresAt.Format(time.RFC3339)
		resp.ConsentExpiresAt = &s
	}
	if c.LastSuccessfulUpdate != nil {
		s := c.LastSuccessfulUpdate.Format(time.RFC3339)
		resp.LastSuccessfulUpdate = &s
	}
	return resp
}

func toSyncResultResponse(o *sync.Outcome) SyncResultResponse {
	resp := SyncResultResponse{
		Created:  o.Created,
		Modified: o.Modified,
		Removed:  o.Removed,
		Skipped:  o.Skipped,
		Errors:   o.Errors,
	}
	resp.Accounts.Created = o.AccountsCreated
	resp.Accounts.Updated = o.AccountsUpdated
	return resp
}

// HandleLinkToken starts the institution linking flow
func (h *ConnectionHandler) HandleLinkToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateLinkTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.syncService.CreateLinkToken(r.Context(), userID, req.InstitutionID)
	if err != nil {
		log.Printf("Error creating link token for user %d: %v", userID, err)
		http.Error(w, "Failed to create link token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LinkTokenResponse{LinkToken: resp.LinkToken})
}

// HandleExchange completes the linking flow with the public token
func (h *ConnectionHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PublicToken == "" {
		http.Error(w, "publicToken is required", http.StatusBadRequest)
		return
	}

	conn, err := h.syncService.CompleteConnection(r.Context(), userID, req.PublicToken)
	if err != nil {
		log.Printf("Error completing connection for user %d: %v", userID, err)
		http.Error(w, "Failed to complete connection", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toConnectionResponse(conn))
}

// HandleConnections lists the user's connections
func (h *ConnectionHandler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conns, err := h.syncService.ListConnections(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing connections for user %d: %v", userID, err)
		http.Error(w, "Failed to list connections", http.StatusInternalServerError)
		return
	}

	response := make([]ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		response = append(response, toConnectionResponse(c))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleConnectionByID routes requests for a specific connection
func (h *ConnectionHandler) HandleConnectionByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGetConnection(w, r)
	case http.MethodDelete:
		h.handleDisconnect(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConnectionHandler) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.syncService.GetConnection(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeConnectionError(w, err, "Failed to get connection")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toConnectionResponse(conn))
}

func (h *ConnectionHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.syncService.Disconnect(r.Context(), userID, r.PathValue("id")); err != nil {
		writeConnectionError(w, err, "Failed to disconnect")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSync triggers a user-requested sync for a connection
func (h *ConnectionHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connectionID := r.PathValue("id")
	result, err := h.syncService.TriggerSync(r.Context(), userID, connectionID)
	if err != nil {
		if errors.Is(err, connection.ErrSyncInProgress) {
			http.Error(w, "Sync already in progress", http.StatusConflict)
			return
		}
		log.Printf("Error syncing connection %s for user %d: %v", connectionID, userID, err)
		writeConnectionError(w, err, "Sync failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSyncResultResponse(result))
}

func writeConnectionError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, connection.ErrConnectionNotFound):
		http.Error(w, "Connection not found", http.StatusNotFound)
	case errors.Is(err, connection.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
