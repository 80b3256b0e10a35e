// Package checkout drives the purchase flow: pending transaction, hosted
// provider session, webhook-driven completion.
package checkout

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/bytebazaar/storefront/internal/app/domain/purchase"
	"github.com/bytebazaar/storefront/internal/app/domain/transaction"
	"github.com/bytebazaar/storefront/internal/app/storage"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/logging"
	"github.com/bytebazaar/storefront/internal/metrics"
	"github.com/bytebazaar/storefront/internal/payments"
)

// Stores bundles the persistence the checkout flow touches.
type Stores struct {
	Products     storage.ProductStore
	Users        storage.UserStore
	Purchases    storage.PurchaseStore
	Transactions storage.TransactionStore
}

// URLs are where the provider sends the buyer after checkout.
type URLs struct {
	Success string
	Cancel  string
}

// Service coordinates transactions with the payment provider.
type Service struct {
	stores   Stores
	provider payments.Provider
	urls     URLs
	metrics  *metrics.Metrics
	log      *logging.Logger
}

// New creates the checkout service.
func New(stores Stores, provider payments.Provider, urls URLs, m *metrics.Metrics, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("checkout")
	}
	return &Service{stores: stores, provider: provider, urls: urls, metrics: m, log: log}
}

// BeginResult is returned to the caller for the redirect.
type BeginResult struct {
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	CheckoutURL   string `json:"checkout_url"`
}

// Begin creates a pending transaction and a provider session for the product.
func (s *Service) Begin(ctx context.Context, userID, productID string) (BeginResult, error) {
	p, err := s.stores.Products.GetProduct(ctx, productID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return BeginResult{}, errors.NotFound("product not found")
		}
		return BeginResult{}, errors.Internal("get product", err)
	}
	if !p.Published {
		return BeginResult{}, errors.NotFound("product not found")
	}

	u, err := s.stores.Users.GetUser(ctx, userID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return BeginResult{}, errors.Unauthorized("unknown user")
		}
		return BeginResult{}, errors.Internal("get user", err)
	}

	tx, err := s.stores.Transactions.CreateTransaction(ctx, transaction.Transaction{
		UserID:      u.ID,
		ProductID:   p.ID,
		Status:      transaction.StatusPending,
		AmountCents: p.PriceCents,
		Currency:    p.Currency,
		// Session id arrives after the provider call; keep the row unique in
		// the meantime.
		ProviderSessionID: "pending:" + p.ID + ":" + u.ID + ":" + time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return BeginResult{}, errors.Internal("create transaction", err)
	}

	sess, err := s.provider.CreateSession(ctx, payments.CheckoutRequest{
		ProductTitle:  p.Title,
		AmountCents:   p.PriceCents,
		Currency:      p.Currency,
		CustomerEmail: u.Email,
		Reference:     tx.ID,
		SuccessURL:    s.urls.Success,
		CancelURL:     s.urls.Cancel,
	})
	if err != nil {
		tx.Status = transaction.StatusFailed
		tx.FailureReason = "provider session creation failed"
		if _, uerr := s.stores.Transactions.UpdateTransaction(ctx, tx); uerr != nil {
			s.log.WithContext(ctx).WithError(uerr).Warn("mark transaction failed")
		}
		if s.metrics != nil {
			s.metrics.RecordCheckout(string(transaction.StatusFailed))
		}
		return BeginResult{}, errors.Internal("create checkout session", err)
	}

	tx.ProviderSessionID = sess.ID
	if _, err := s.stores.Transactions.UpdateTransaction(ctx, tx); err != nil {
		return BeginResult{}, errors.Internal("record session id", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"transaction_id": tx.ID,
		"session_id":     sess.ID,
		"amount_cents":   tx.AmountCents,
	}).Info("checkout session created")

	return BeginResult{TransactionID: tx.ID, SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// Complete marks the session's transaction completed and creates the
// purchase. Replayed webhook deliveries return the existing purchase.
func (s *Service) Complete(ctx context.Context, sessionID string) (purchase.Purchase, error) {
	tx, err := s.stores.Transactions.GetTransactionBySessionID(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return purchase.Purchase{}, errors.NotFound("unknown checkout session")
		}
		return purchase.Purchase{}, errors.Internal("get transaction", err)
	}

	if tx.Status == transaction.StatusCompleted {
		return s.stores.Purchases.GetPurchase(ctx, tx.PurchaseID)
	}
	if tx.Terminal() {
		return purchase.Purchase{}, errors.Conflict("transaction already settled").
			WithDetails("status", string(tx.Status))
	}

	p, err := s.stores.Products.GetProduct(ctx, tx.ProductID)
	if err != nil {
		return purchase.Purchase{}, errors.Internal("get product", err)
	}

	// A prior delivery may have created the purchase and then failed to flip
	// the transaction. Reuse it instead of granting the asset twice.
	pur, err := s.stores.Purchases.GetPurchaseByTransaction(ctx, tx.ID)
	if stderrors.Is(err, sql.ErrNoRows) {
		pur, err = s.stores.Purchases.CreatePurchase(ctx, purchase.Purchase{
			UserID:        tx.UserID,
			ProductID:     p.ID,
			AssetID:       p.AssetID,
			TransactionID: tx.ID,
		})
		if err != nil {
			return purchase.Purchase{}, errors.Internal("create purchase", err)
		}
	} else if err != nil {
		return purchase.Purchase{}, errors.Internal("get purchase", err)
	}

	tx.Status = transaction.StatusCompleted
	tx.PurchaseID = pur.ID
	if _, err := s.stores.Transactions.UpdateTransaction(ctx, tx); err != nil {
		return purchase.Purchase{}, errors.Internal("complete transaction", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCheckout(string(transaction.StatusCompleted))
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"transaction_id": tx.ID,
		"purchase_id":    pur.ID,
	}).Info("checkout completed")
	return pur, nil
}

// Fail marks the session's transaction failed or expired. Already settled
// transactions are left alone.
func (s *Service) Fail(ctx context.Context, sessionID string, status transaction.Status, reason string) error {
	if status != transaction.StatusFailed && status != transaction.StatusExpired {
		return errors.InvalidInput("status must be failed or expired")
	}

	tx, err := s.stores.Transactions.GetTransactionBySessionID(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("unknown checkout session")
		}
		return errors.Internal("get transaction", err)
	}
	if tx.Terminal() {
		return nil
	}

	tx.Status = status
	tx.FailureReason = reason
	if _, err := s.stores.Transactions.UpdateTransaction(ctx, tx); err != nil {
		return errors.Internal("update transaction", err)
	}
	if s.metrics != nil {
		s.metrics.RecordCheckout(string(status))
	}
	return nil
}

// HandleEvent applies a provider webhook event.
func (s *Service) HandleEvent(ctx context.Context, ev payments.Event) error {
	switch ev.Kind {
	case payments.EventCompleted:
		_, err := s.Complete(ctx, ev.SessionID)
		return err
	case payments.EventExpired:
		return s.Fail(ctx, ev.SessionID, transaction.StatusExpired, "checkout session expired")
	case payments.EventIgnored:
		return nil
	default:
		return errors.InvalidInput("unsupported event kind")
	}
}

// Purchases returns the user's purchases, newest last.
func (s *Service) Purchases(ctx context.Context, userID string) ([]purchase.Purchase, error) {
	list, err := s.stores.Purchases.ListPurchases(ctx, userID)
	if err != nil {
		return nil, errors.Internal("list purchases", err)
	}
	return list, nil
}

// Transaction fetches a transaction by id.
func (s *Service) Transaction(ctx context.Context, id string) (transaction.Transaction, error) {
	tx, err := s.stores.Transactions.GetTransaction(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return transaction.Transaction{}, errors.NotFound("transaction not found")
		}
		return transaction.Transaction{}, errors.Internal("get transaction", err)
	}
	return tx, nil
}

// History returns the user's transactions, newest last.
func (s *Service) History(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	list, err := s.stores.Transactions.ListTransactions(ctx, userID)
	if err != nil {
		return nil, errors.Internal("list transactions", err)
	}
	return list, nil
}

// AllTransactions returns every transaction. Admin only; enforced at the
// HTTP layer.
func (s *Service) AllTransactions(ctx context.Context) ([]transaction.Transaction, error) {
	list, err := s.stores.Transactions.ListAllTransactions(ctx)
	if err != nil {
		return nil, errors.Internal("list transactions", err)
	}
	return list, nil
}

// ExpireStale marks pending transactions older than maxAge as expired and
// returns how many were flipped.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	stale, err := s.stores.Transactions.ListStaleTransactions(ctx, cutoff)
	if err != nil {
		return 0, errors.Internal("list stale transactions", err)
	}

	expired := 0
	for _, tx := range stale {
		tx.Status = transaction.StatusExpired
		tx.FailureReason = "abandoned checkout"
		if _, err := s.stores.Transactions.UpdateTransaction(ctx, tx); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("transaction_id", tx.ID).Warn("expire transaction")
			continue
		}
		expired++
		if s.metrics != nil {
			s.metrics.RecordCheckout(string(transaction.StatusExpired))
		}
	}
	return expired, nil
}
