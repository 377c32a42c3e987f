package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"soldo/internal/domain/connection"
	"soldo/internal/domain/transaction"
	"soldo/internal/infrastructure/bankfeed"
	"soldo/internal/infrastructure/crypto"
)

var (
	syncTracer            = otel.Tracer("soldo/sync")
	syncMeter             = otel.Meter("soldo/sync")
	syncDuration, _       = syncMeter.Float64Histogram("sync.duration", metric.WithDescription("Sync attempt duration in seconds"), metric.WithUnit("s"))
	syncTotal, _          = syncMeter.Int64Counter("sync.total", metric.WithDescription("Total sync attempts by status"))
	syncPagesTotal, _     = syncMeter.Int64Counter("sync.pages.total", metric.WithDescription("Total delta feed pages applied"))
	syncLockContention, _ = syncMeter.Int64Counter("sync.lock_contention", metric.WithDescription("Sync attempts rejected because a fresh lock was already held"))
)

// mutationRetryLimit bounds restarts after the provider reports that the
// underlying data changed mid-pagination.
const mutationRetryLimit = 3

// Outcome contains the results of one sync attempt for a connection.
type Outcome struct {
	ConnectionID    string
	Created         int
	Modified        int
	Removed         int
	Skipped         int // idempotent re-deliveries and dedup races
	Pages           int
	AccountsCreated int
	AccountsUpdated int
	Errors          []string
}

// Engine walks the provider's paginated change feed for a connection and
// applies added/modified/removed deltas to local storage, persisting
// resumable cursor state after every applied page.
type Engine struct {
	client       bankfeed.ClientInterface
	connections  connection.Repository
	lock         *connection.LockGuard
	reconciler   *Reconciler
	transactions transaction.Repository
	encryptor    *crypto.Encryptor
	lookbackDays int
}

// NewEngine creates a new sync engine.
func NewEngine(
	client bankfeed.ClientInterface,
	connections connection.Repository,
	lock *connection.LockGuard,
	reconciler *Reconciler,
	transactions transaction.Repository,
	encryptor *crypto.Encryptor,
	lookbackDays int,
) *Engine {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Engine{
		client:       client,
		connections:  connections,
		lock:         lock,
		reconciler:   reconciler,
		transactions: transactions,
		encryptor:    encryptor,
		lookbackDays: lookbackDays,
	}
}

// Sync performs one full sync attempt for the connection. It returns
// connection.ErrSyncInProgress when a fresh lock is already held;
// callers decide whether that surfaces (user-triggered) or is a silent
// no-op (webhook-triggered). The lock is always released, whatever path
// the attempt takes.
func (e *Engine) Sync(ctx context.Context, conn *connection.Connection) (result *Outcome, err error) {
	// The span opens before lock acquisition so contention rejections are
	// visible in traces, not just the runs that won the lock.
	ctx, span := syncTracer.Start(ctx, "sync.run",
		trace.WithAttributes(attribute.String("connection.id", conn.ID)),
	)
	defer span.End()

	if err := e.lock.TryAcquire(ctx, conn.ID); err != nil {
		if errors.Is(err, connection.ErrSyncInProgress) {
			span.SetAttributes(attribute.Bool("sync.lock_contention", true))
			syncLockContention.Add(ctx, 1)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer func() {
		if releaseErr := e.lock.Release(ctx, conn.ID); releaseErr != nil {
			log.Printf("Connection %s: failed to release sync lock: %v", conn.ID, releaseErr)
		}
	}()

	start := time.Now()
	result, err = e.run(ctx, conn)
	syncDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		e.persistFailure(ctx, conn, err)
		return result, err
	}

	syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	return result, nil
}

// run executes the sync inside the held lock.
func (e *Engine) run(ctx context.Context, conn *connection.Connection) (*Outcome, error) {
	result := &Outcome{ConnectionID: conn.ID, Errors: []string{}}

	if conn.AccessTokenEncrypted == "" {
		return result, connection.ErrMissingCredential
	}
	accessToken, err := e.encryptor.Decrypt(conn.AccessTokenEncrypted)
	if err != nil {
		return result, fmt.Errorf("failed to decrypt access credential: %w", err)
	}

	// Reconcile provider accounts first so every delta can be matched to
	// a local account.
	accountsResp, err := e.client.GetAccounts(ctx, accessToken)
	if err != nil {
		return result, fmt.Errorf("failed to fetch provider accounts: %w", err)
	}
	reconciled := e.reconciler.Reconcile(ctx, conn, accountsResp.Accounts)
	result.AccountsCreated = reconciled.Created
	result.AccountsUpdated = reconciled.Updated
	result.Errors = append(result.Errors, reconciled.Errors...)

	if expiry, err := accountsResp.Item.GetConsentExpiration(); err == nil && expiry != nil {
		if err := e.connections.UpdateConsentExpiry(ctx, conn.ID, expiry); err != nil {
			log.Printf("Connection %s: failed to update consent expiry: %v", conn.ID, err)
		}
	}

	// The very first sync of a connection is bounded by a date window;
	// every later sync is purely cursor-driven.
	startDate := ""
	if conn.Cursor() == "" && conn.LastSuccessfulUpdate == nil {
		startDate = time.Now().AddDate(0, 0, -e.lookbackDays).Format("2006-01-02")
	}

	accountIDs := make([]string, 0, len(reconciled.AccountIDByProvider))
	for providerAccountID := range reconciled.AccountIDByProvider {
		accountIDs = append(accountIDs, providerAccountID)
	}

	if err := e.pageLoop(ctx, conn, accessToken, startDate, accountIDs, reconciled.AccountIDByProvider, result); err != nil {
		return result, err
	}

	if err := e.connections.MarkSyncSuccess(ctx, conn.ID); err != nil {
		return result, fmt.Errorf("failed to record sync success: %w", err)
	}

	log.Printf("Connection %s: sync completed - created=%d modified=%d removed=%d skipped=%d pages=%d errors=%d",
		conn.ID, result.Created, result.Modified, result.Removed, result.Skipped, result.Pages, len(result.Errors))

	return result, nil
}

// pageLoop walks the delta feed until the provider reports no more
// pages. The cursor is persisted only after a page's deltas are fully
// applied, so a persisted cursor never points past unapplied data.
func (e *Engine) pageLoop(
	ctx context.Context,
	conn *connection.Connection,
	accessToken, startDate string,
	accountIDs []string,
	accountIDByProvider map[string]string,
	result *Outcome,
) error {
	cursor := conn.Cursor()
	// prevCursor is the cursor that produced the last applied page. When
	// the provider reports a mutation mid-pagination, the restart begins
	// there, not at the cursor that triggered the error.
	prevCursor := cursor
	mutationRetries := 0

	for {
		resp, err := e.client.SyncTransactions(ctx, bankfeed.SyncRequest{
			AccessToken: accessToken,
			Cursor:      cursor,
			StartDate:   startDate,
			AccountIDs:  accountIDs,
		})
		if err != nil {
			if bankfeed.IsMutationDuringPagination(err) && mutationRetries < mutationRetryLimit {
				mutationRetries++
				log.Printf("Connection %s: feed mutated during pagination, restarting from cursor %q (retry %d)",
					conn.ID, prevCursor, mutationRetries)
				cursor = prevCursor
				continue
			}
			return fmt.Errorf("failed to fetch delta page: %w", err)
		}

		e.applyAdded(ctx, conn, resp.Added, accountIDByProvider, result)
		e.applyModified(ctx, conn, resp.Modified, accountIDByProvider, result)
		e.applyRemoved(ctx, conn, resp.Removed, result)

		if err := e.connections.UpdateCursor(ctx, conn.ID, resp.NextCursor); err != nil {
			return fmt.Errorf("failed to persist cursor: %w", err)
		}

		result.Pages++
		syncPagesTotal.Add(ctx, 1)

		prevCursor = cursor
		cursor = resp.NextCursor

		if !resp.HasMore {
			return nil
		}
	}
}

// applyAdded inserts new transactions, skipping anything already present
// under the same provider transaction id. A unique-constraint race with
// a concurrent writer also counts as a skip, not an error.
func (e *Engine) applyAdded(ctx context.Context, conn *connection.Connection, added []bankfeed.Transaction, accountIDByProvider map[string]string, result *Outcome) {
	for _, delta := range added {
		if err := e.insertTransaction(ctx, delta, accountIDByProvider, result); err != nil {
			errMsg := fmt.Sprintf("failed to apply added transaction %s: %v", delta.TransactionID, err)
			result.Errors = append(result.Errors, errMsg)
			log.Printf("Connection %s: %s", conn.ID, errMsg)
		}
	}
}

// applyModified updates mutable fields in place. A modification for a
// transaction this system never saw is applied as an insert; the
// provider's view wins.
func (e *Engine) applyModified(ctx context.Context, conn *connection.Connection, modified []bankfeed.Transaction, accountIDByProvider map[string]string, result *Outcome) {
	for _, delta := range modified {
		if err := e.modifyTransaction(ctx, delta, accountIDByProvider, result); err != nil {
			errMsg := fmt.Sprintf("failed to apply modified transaction %s: %v", delta.TransactionID, err)
			result.Errors = append(result.Errors, errMsg)
			log.Printf("Connection %s: %s", conn.ID, errMsg)
		}
	}
}

// applyRemoved hard-deletes withdrawn transactions. Unknown ids are a
// no-op.
func (e *Engine) applyRemoved(ctx context.Context, conn *connection.Connection, removed []bankfeed.RemovedTransaction, result *Outcome) {
	for _, delta := range removed {
		existing, err := e.transactions.GetByProviderTransactionID(ctx, delta.TransactionID)
		if err != nil {
			errMsg := fmt.Sprintf("failed to look up removed transaction %s: %v", delta.TransactionID, err)
			result.Errors = append(result.Errors, errMsg)
			log.Printf("Connection %s: %s", conn.ID, errMsg)
			continue
		}
		if existing == nil {
			continue
		}
		if err := e.transactions.Delete(ctx, existing.ID); err != nil {
			errMsg := fmt.Sprintf("failed to delete transaction %s: %v", existing.ID, err)
			result.Errors = append(result.Errors, errMsg)
			log.Printf("Connection %s: %s", conn.ID, errMsg)
			continue
		}
		result.Removed++
	}
}

func (e *Engine) insertTransaction(ctx context.Context, delta bankfeed.Transaction, accountIDByProvider map[string]string, result *Outcome) error {
	existing, err := e.transactions.GetByProviderTransactionID(ctx, delta.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to check for existing transaction: %w", err)
	}
	if existing != nil {
		result.Skipped++
		return nil
	}

	params, err := e.toCreateParams(delta, accountIDByProvider)
	if err != nil {
		return err
	}

	if _, err := e.transactions.Create(ctx, params); err != nil {
		if errors.Is(err, transaction.ErrDuplicateProviderID) {
			// Lost a race with a concurrent writer; the row exists.
			result.Skipped++
			return nil
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	result.Created++
	return nil
}

func (e *Engine) modifyTransaction(ctx context.Context, delta bankfeed.Transaction, accountIDByProvider map[string]string, result *Outcome) error {
	existing, err := e.transactions.GetByProviderTransactionID(ctx, delta.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to look up transaction: %w", err)
	}
	if existing == nil {
		return e.insertTransaction(ctx, delta, accountIDByProvider, result)
	}

	date, err := delta.GetDate()
	if err != nil {
		return err
	}
	txType, amount := normalizeAmount(delta.Amount)
	encrypted, err := e.encryptor.Encrypt(delta.Name)
	if err != nil {
		return fmt.Errorf("failed to encrypt description: %w", err)
	}

	err = e.transactions.Update(ctx, existing.ID, transaction.UpdateParams{
		Date:                 date,
		Type:                 txType,
		Amount:               amount,
		DescriptionEncrypted: encrypted,
		DescriptionSearch:    crypto.Normalize(delta.Name),
		Pending:              delta.Pending,
	})
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	result.Modified++
	return nil
}

func (e *Engine) toCreateParams(delta bankfeed.Transaction, accountIDByProvider map[string]string) (transaction.CreateParams, error) {
	accountID, ok := accountIDByProvider[delta.AccountID]
	if !ok {
		return transaction.CreateParams{}, fmt.Errorf("no local account for provider account %s", delta.AccountID)
	}

	date, err := delta.GetDate()
	if err != nil {
		return transaction.CreateParams{}, err
	}

	txType, amount := normalizeAmount(delta.Amount)

	encrypted, err := e.encryptor.Encrypt(delta.Name)
	if err != nil {
		return transaction.CreateParams{}, fmt.Errorf("failed to encrypt description: %w", err)
	}

	providerTxID := delta.TransactionID
	return transaction.CreateParams{
		ID:                    uuid.NewString(),
		AccountID:             accountID,
		Date:                  date,
		Type:                  txType,
		Amount:                amount,
		DescriptionEncrypted:  encrypted,
		DescriptionSearch:     crypto.Normalize(delta.Name),
		ProviderTransactionID: &providerTxID,
		Pending:               delta.Pending,
		Currency:              delta.IsoCurrencyCode,
	}, nil
}

// normalizeAmount converts the provider sign convention (positive =
// outflow, negative = inflow) into a non-negative amount plus direction.
func normalizeAmount(providerAmount float64) (transaction.Type, float64) {
	if providerAmount < 0 {
		return transaction.TypeIncome, -providerAmount
	}
	return transaction.TypeExpense, providerAmount
}

// persistFailure maps a provider error onto the connection before the
// error propagates to the caller.
func (e *Engine) persistFailure(ctx context.Context, conn *connection.Connection, syncErr error) {
	code := bankfeed.ErrorCodeOf(syncErr)
	if code == "" {
		return
	}

	status := connection.MapErrorCode(code)
	normalized := connection.NormalizeErrorCode(code)
	if err := e.connections.SetStatus(ctx, conn.ID, status, normalized, syncErr.Error()); err != nil {
		log.Printf("Connection %s: failed to persist error status: %v", conn.ID, err)
	}
}
