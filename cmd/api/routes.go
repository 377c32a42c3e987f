package main

import (
	"log"
	"net/http"

	httphandlers "soldo/internal/interfaces/http"
	"soldo/internal/shared/config"
	"soldo/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Public auth routes
	mux.HandleFunc("/api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", deps.AuthHandler.HandleLogin)
	mux.HandleFunc("/api/auth/logout", deps.AuthHandler.HandleLogout)

	// Provider webhook (authenticated by signature, not session)
	mux.HandleFunc("/webhooks/bankfeed", deps.WebhookHandler.HandleBankfeed)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/connections/link-token", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleLinkToken)))
	mux.Handle("/api/connections/exchange", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleExchange)))
	mux.Handle("/api/connections/", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleConnections)))
	mux.Handle("/api/connections/{id}", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleConnectionByID)))
	mux.Handle("/api/connections/{id}/sync", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleSync)))
	mux.Handle("/api/accounts/", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleAccounts)))
	mux.Handle("/api/accounts/{id}", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleAccountByID)))
	mux.Handle("/api/accounts/{id}/transactions", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleAccountTransactions)))

	// Apply global middleware
	handler := middleware.Telemetry(middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(mux)))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
