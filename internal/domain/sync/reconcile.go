// Package sync implements the bank-data synchronization engine: account
// reconciliation and the cursor-driven transaction delta feed walker.
package sync

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"soldo/internal/domain/account"
	"soldo/internal/domain/connection"
	"soldo/internal/infrastructure/bankfeed"
)

// ReconcileResult contains the results of reconciling provider accounts
// against local accounts for one connection.
type ReconcileResult struct {
	ConnectionID string
	Created      int
	Updated      int
	// AccountIDByProvider maps provider account ids to local account ids
	// for every account successfully reconciled in this pass.
	AccountIDByProvider map[string]string
	Errors              []string
}

// Reconciler maps provider accounts to local accounts, creating or
// updating as needed. One failing account never aborts the batch.
type Reconciler struct {
	accounts account.Repository
	links    account.LinkRepository
}

// NewReconciler creates a new account reconciler.
func NewReconciler(accounts account.Repository, links account.LinkRepository) *Reconciler {
	return &Reconciler{accounts: accounts, links: links}
}

// Reconcile processes every provider account under the connection.
func (r *Reconciler) Reconcile(ctx context.Context, conn *connection.Connection, providerAccounts []bankfeed.Account) *ReconcileResult {
	result := &ReconcileResult{
		ConnectionID:        conn.ID,
		AccountIDByProvider: make(map[string]string, len(providerAccounts)),
		Errors:              []string{},
	}

	for _, apiAccount := range providerAccounts {
		if err := r.reconcileAccount(ctx, conn, apiAccount, result); err != nil {
			errMsg := fmt.Sprintf("failed to reconcile account %s: %v", apiAccount.AccountID, err)
			result.Errors = append(result.Errors, errMsg)
			log.Printf("Connection %s: %s", conn.ID, errMsg)
		}
	}

	log.Printf("Connection %s: account reconciliation complete - Created: %d, Updated: %d, Errors: %d",
		conn.ID, result.Created, result.Updated, len(result.Errors))

	return result
}

// reconcileAccount reconciles a single provider account.
func (r *Reconciler) reconcileAccount(ctx context.Context, conn *connection.Connection, apiAccount bankfeed.Account, result *ReconcileResult) error {
	link, err := r.links.GetByProviderAccountID(ctx, conn.ID, apiAccount.AccountID)
	if err != nil {
		return fmt.Errorf("failed to look up link: %w", err)
	}

	if link != nil {
		// Known account: refresh link metadata and the balance snapshot
		// in place. Ledger and ownership fields are never touched here.
		err := r.links.UpdateMetadata(ctx, link.ID, account.UpdateLinkParams{
			Mask:               apiAccount.Mask,
			VerificationStatus: apiAccount.VerificationStatus,
			Connected:          true,
		})
		if err != nil {
			return fmt.Errorf("failed to update link metadata: %w", err)
		}
		if err := r.accounts.UpdateBalances(ctx, link.AccountID, apiAccount.Balances.Current, apiAccount.Balances.Available); err != nil {
			return fmt.Errorf("failed to update balances: %w", err)
		}

		result.Updated++
		result.AccountIDByProvider[apiAccount.AccountID] = link.AccountID
		return nil
	}

	// New account: create it under the connection's user. Investment
	// accounts start with no balance since those are holdings-based.
	accountType := connection.MapAccountType(apiAccount.Type, apiAccount.Subtype)
	var balanceCurrent, balanceAvailable *float64
	if accountType != account.TypeInvestment {
		balanceCurrent = apiAccount.Balances.Current
		balanceAvailable = apiAccount.Balances.Available
	}

	created, err := r.accounts.Create(ctx, account.CreateParams{
		ID:               uuid.NewString(),
		UserID:           conn.UserID,
		Name:             apiAccount.Name,
		AccountType:      accountType,
		Currency:         apiAccount.Balances.IsoCurrencyCode,
		BalanceCurrent:   balanceCurrent,
		BalanceAvailable: balanceAvailable,
	})
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	if _, err := r.links.Create(ctx, account.CreateLinkParams{
		ConnectionID:       conn.ID,
		ProviderAccountID:  apiAccount.AccountID,
		AccountID:          created.ID,
		Mask:               apiAccount.Mask,
		VerificationStatus: apiAccount.VerificationStatus,
		SyncEnabled:        true,
	}); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	result.Created++
	result.AccountIDByProvider[apiAccount.AccountID] = created.ID
	log.Printf("Connection %s: created account %s for provider account %s", conn.ID, created.ID, apiAccount.AccountID)

	return nil
}
