package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bytebazaar/storefront/internal/app/domain/asset"
	"github.com/bytebazaar/storefront/internal/app/domain/product"
	"github.com/bytebazaar/storefront/internal/app/domain/purchase"
	"github.com/bytebazaar/storefront/internal/app/domain/transaction"
	"github.com/bytebazaar/storefront/internal/app/domain/user"
	"github.com/bytebazaar/storefront/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
// Missing rows are reported as sql.ErrNoRows so callers treat both backends
// uniformly.
type Store struct {
	mu            sync.RWMutex
	users         map[string]user.User
	usersByEmail  map[string]string
	assets        map[string]asset.Asset
	products      map[string]product.Product
	purchases     map[string]purchase.Purchase
	purchaseByTx  map[string]string
	transactions  map[string]transaction.Transaction
	txBySessionID map[string]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.PurchaseStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		usersByEmail:  make(map[string]string),
		assets:        make(map[string]asset.Asset),
		products:      make(map[string]product.Product),
		purchases:     make(map[string]purchase.Purchase),
		purchaseByTx:  make(map[string]string),
		transactions:  make(map[string]transaction.Transaction),
		txBySessionID: make(map[string]string),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := s.usersByEmail[email]; exists {
		return user.User{}, storage.ErrDuplicateEmail
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	if !strings.EqualFold(original.Email, u.Email) {
		delete(s.usersByEmail, strings.ToLower(original.Email))
		s.usersByEmail[strings.ToLower(u.Email)] = u.ID
	}

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sortByCreated(result, func(u user.User) time.Time { return u.CreatedAt })
	return result, nil
}

// AssetStore implementation ---------------------------------------------------

func (s *Store) CreateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.assets[a.ID]
	if !ok {
		return asset.Asset{}, sql.ErrNoRows
	}

	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, sql.ErrNoRows
	}
	return a, nil
}

func (s *Store) ListAssets(_ context.Context) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]asset.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		result = append(result, a)
	}
	sortByCreated(result, func(a asset.Asset) time.Time { return a.CreatedAt })
	return result, nil
}

func (s *Store) DeleteAsset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.assets, id)
	return nil
}

// ProductStore implementation -------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.products[p.ID]
	if !ok {
		return product.Product{}, sql.ErrNoRows
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, publishedOnly bool) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		if publishedOnly && !p.Published {
			continue
		}
		result = append(result, p)
	}
	sortByCreated(result, func(p product.Product) time.Time { return p.CreatedAt })
	return result, nil
}

func (s *Store) ListProductsByAsset(_ context.Context, assetID string) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []product.Product
	for _, p := range s.products {
		if p.AssetID == assetID {
			result = append(result, p)
		}
	}
	sortByCreated(result, func(p product.Product) time.Time { return p.CreatedAt })
	return result, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.products, id)
	return nil
}

// PurchaseStore implementation ------------------------------------------------

func (s *Store) CreatePurchase(_ context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = time.Now().UTC()
	}

	s.purchases[p.ID] = p
	if p.TransactionID != "" {
		s.purchaseByTx[p.TransactionID] = p.ID
	}
	return p, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok {
		return purchase.Purchase{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) GetPurchaseByTransaction(_ context.Context, transactionID string) (purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.purchaseByTx[transactionID]
	if !ok {
		return purchase.Purchase{}, sql.ErrNoRows
	}
	return s.purchases[id], nil
}

func (s *Store) ListPurchases(_ context.Context, userID string) ([]purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []purchase.Purchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	sortByCreated(result, func(p purchase.Purchase) time.Time { return p.PurchasedAt })
	return result, nil
}

// TransactionStore implementation ----------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	if tx.ProviderSessionID != "" {
		s.txBySessionID[tx.ProviderSessionID] = tx.ID
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[tx.ID]
	if !ok {
		return transaction.Transaction{}, sql.ErrNoRows
	}

	tx.CreatedAt = original.CreatedAt
	tx.UpdatedAt = time.Now().UTC()

	if original.ProviderSessionID != tx.ProviderSessionID {
		delete(s.txBySessionID, original.ProviderSessionID)
		if tx.ProviderSessionID != "" {
			s.txBySessionID[tx.ProviderSessionID] = tx.ID
		}
	}

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return transaction.Transaction{}, sql.ErrNoRows
	}
	return tx, nil
}

func (s *Store) GetTransactionBySessionID(_ context.Context, sessionID string) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.txBySessionID[sessionID]
	if !ok {
		return transaction.Transaction{}, sql.ErrNoRows
	}
	return s.transactions[id], nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []transaction.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			result = append(result, tx)
		}
	}
	sortByCreated(result, func(tx transaction.Transaction) time.Time { return tx.CreatedAt })
	return result, nil
}

func (s *Store) ListAllTransactions(_ context.Context) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]transaction.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		result = append(result, tx)
	}
	sortByCreated(result, func(tx transaction.Transaction) time.Time { return tx.CreatedAt })
	return result, nil
}

func (s *Store) ListStaleTransactions(_ context.Context, cutoff time.Time) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []transaction.Transaction
	for _, tx := range s.transactions {
		if tx.Status == transaction.StatusPending && tx.CreatedAt.Before(cutoff) {
			result = append(result, tx)
		}
	}
	sortByCreated(result, func(tx transaction.Transaction) time.Time { return tx.CreatedAt })
	return result, nil
}

func sortByCreated[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).Before(created(items[j]))
	})
}
