package main

import (
	"log"

	"soldo/internal/domain/account"
	"soldo/internal/domain/connection"
	"soldo/internal/domain/sync"
	"soldo/internal/domain/webhook"
	"soldo/internal/infrastructure/bankfeed"
	"soldo/internal/infrastructure/crypto"
	"soldo/internal/infrastructure/postgres"
	httphandlers "soldo/internal/interfaces/http"
	"soldo/internal/shared/auth"
	"soldo/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	AuthHandler        *httphandlers.AuthHandler
	AccountHandler     *httphandlers.AccountHandler
	TransactionHandler *httphandlers.TransactionHandler
	ConnectionHandler  *httphandlers.ConnectionHandler
	WebhookHandler     *httphandlers.WebhookHandler

	// Auth
	JWT *auth.JWT

	// Sync service (for the scheduler job provider)
	SyncService *sync.Service

	// Repositories (for the scheduler job provider)
	ConnectionRepo *postgres.ConnectionRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize encryptor
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	connectionRepo := postgres.NewConnectionRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	linkRepo := postgres.NewLinkRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	webhookEventRepo := postgres.NewWebhookEventRepository(db)

	// Initialize provider client
	providerClient := bankfeed.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.ClientID,
		cfg.Provider.Secret,
		cfg.Provider.WebhookURL,
	)

	// Initialize domain services
	accountService := account.NewService(accountRepo, linkRepo)
	reconciler := sync.NewReconciler(accountRepo, linkRepo)
	lockGuard := connection.NewLockGuard(connectionRepo)
	engine := sync.NewEngine(providerClient, connectionRepo, lockGuard, reconciler, transactionRepo, encryptor, cfg.Provider.SyncLookbackDays)
	syncService := sync.NewService(providerClient, connectionRepo, linkRepo, engine, encryptor)

	// Initialize webhook pipeline
	verifier := webhook.NewVerifier(providerClient)
	ledger := webhook.NewLedger(webhookEventRepo)
	dispatcher := webhook.NewDispatcher(verifier, ledger, syncService, connectionRepo)

	// Initialize auth components
	jwt := auth.NewJWT(cfg.JWT.Secret)

	// Initialize handlers
	authHandler := httphandlers.NewAuthHandler(userRepo, jwt)
	accountHandler := httphandlers.NewAccountHandler(accountService)
	transactionHandler := httphandlers.NewTransactionHandler(accountService, transactionRepo)
	connectionHandler := httphandlers.NewConnectionHandler(syncService)
	webhookHandler := httphandlers.NewWebhookHandler(dispatcher)

	return &Dependencies{
		DB:                 db,
		AuthHandler:        authHandler,
		AccountHandler:     accountHandler,
		TransactionHandler: transactionHandler,
		ConnectionHandler:  connectionHandler,
		WebhookHandler:     webhookHandler,
		JWT:                jwt,
		SyncService:        syncService,
		ConnectionRepo:     connectionRepo,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
