package sync

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"soldo/internal/domain/account"
	"soldo/internal/domain/connection"
	"soldo/internal/infrastructure/bankfeed"
	"soldo/internal/infrastructure/crypto"
)

// Service manages the connection lifecycle: linking an institution,
// running syncs on demand and tearing connections down.
type Service struct {
	client      bankfeed.ClientInterface
	connections connection.Repository
	links       account.LinkRepository
	engine      *Engine
	encryptor   *crypto.Encryptor
}

// NewService creates a new connection lifecycle service.
func NewService(
	client bankfeed.ClientInterface,
	connections connection.Repository,
	links account.LinkRepository,
	engine *Engine,
	encryptor *crypto.Encryptor,
) *Service {
	return &Service{
		client:      client,
		connections: connections,
		links:       links,
		engine:      engine,
		encryptor:   encryptor,
	}
}

// CreateLinkToken starts the linking flow for a user.
func (s *Service) CreateLinkToken(ctx context.Context, userID int64, institutionID string) (*bankfeed.LinkTokenResponse, error) {
	resp, err := s.client.CreateLinkToken(ctx, strconv.FormatInt(userID, 10), institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}
	return resp, nil
}

// CompleteConnection exchanges the short-lived public token produced by
// the linking flow, stores the resulting credential encrypted at rest
// and runs the connection's first sync.
func (s *Service) CompleteConnection(ctx context.Context, userID int64, publicToken string) (*connection.Connection, error) {
	exchange, err := s.client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	encrypted, err := s.encryptor.Encrypt(exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	// Institution identity and consent expiry come from the accounts
	// endpoint, which also warms the provider-side item.
	accountsResp, err := s.client.GetAccounts(ctx, exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts after exchange: %w", err)
	}
	consentExpiry, err := accountsResp.Item.GetConsentExpiration()
	if err != nil {
		log.Printf("Item %s: ignoring unparseable consent expiry: %v", exchange.ItemID, err)
		consentExpiry = nil
	}

	conn, err := s.connections.Create(ctx, connection.CreateParams{
		UserID:               userID,
		ProviderItemID:       exchange.ItemID,
		InstitutionID:        accountsResp.Item.InstitutionID,
		InstitutionName:      accountsResp.Item.InstitutionName,
		AccessTokenEncrypted: encrypted,
		ConsentExpiresAt:     consentExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	if _, err := s.engine.Sync(ctx, conn); err != nil {
		// The connection exists and webhooks will retry; the initial
		// sync failing is not fatal to linking.
		log.Printf("Connection %s: initial sync failed: %v", conn.ID, err)
	}

	return conn, nil
}

// TriggerSync runs a user-requested sync for a connection the user owns.
// A concurrent sync surfaces as connection.ErrSyncInProgress.
func (s *Service) TriggerSync(ctx context.Context, userID int64, connectionID string) (*Outcome, error) {
	conn, err := s.ownedConnection(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	return s.engine.Sync(ctx, conn)
}

// SyncByItemID runs a sync for the connection behind a provider item id.
// Webhook handling resolves connections this way.
func (s *Service) SyncByItemID(ctx context.Context, providerItemID string) (*Outcome, error) {
	conn, err := s.connections.GetByProviderItemID(ctx, providerItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up connection: %w", err)
	}
	if conn == nil {
		return nil, connection.ErrConnectionNotFound
	}
	return s.engine.Sync(ctx, conn)
}

// GetConnection returns a connection the user owns.
func (s *Service) GetConnection(ctx context.Context, userID int64, connectionID string) (*connection.Connection, error) {
	return s.ownedConnection(ctx, userID, connectionID)
}

// ListConnections returns all of the user's connections.
func (s *Service) ListConnections(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	conns, err := s.connections.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

// Disconnect revokes provider access for a connection and removes it.
// Local accounts and their transactions survive as a disconnected
// historical record; only the link rows are flagged.
func (s *Service) Disconnect(ctx context.Context, userID int64, connectionID string) error {
	conn, err := s.ownedConnection(ctx, userID, connectionID)
	if err != nil {
		return err
	}

	if conn.AccessTokenEncrypted != "" {
		accessToken, err := s.encryptor.Decrypt(conn.AccessTokenEncrypted)
		if err != nil {
			log.Printf("Connection %s: cannot decrypt token for revocation: %v", conn.ID, err)
		} else if err := s.client.RemoveItem(ctx, accessToken); err != nil {
			// Best effort; consent also lapses provider-side.
			log.Printf("Connection %s: provider item removal failed: %v", conn.ID, err)
		}
	}

	if err := s.links.MarkDisconnected(ctx, conn.ID); err != nil {
		return fmt.Errorf("failed to disconnect account links: %w", err)
	}

	if err := s.connections.Delete(ctx, conn.ID); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	log.Printf("Connection %s: disconnected for user %d", conn.ID, userID)
	return nil
}

// ownedConnection loads a connection and enforces ownership.
func (s *Service) ownedConnection(ctx context.Context, userID int64, connectionID string) (*connection.Connection, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, connection.ErrConnectionNotFound
	}
	if conn.UserID != userID {
		return nil, connection.ErrForbidden
	}
	return conn, nil
}
