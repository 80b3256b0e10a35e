package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bytebazaar/storefront/internal/app/domain/asset"
	"github.com/bytebazaar/storefront/internal/app/domain/product"
	"github.com/bytebazaar/storefront/internal/app/domain/purchase"
	"github.com/bytebazaar/storefront/internal/app/domain/transaction"
	"github.com/bytebazaar/storefront/internal/app/domain/user"
	"github.com/bytebazaar/storefront/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.PurchaseStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = strings.ToLower(u.Email)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrDuplicateEmail
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	u.Email = strings.ToLower(u.Email)

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, name = $3, password_hash = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrDuplicateEmail
		}
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

const userColumns = `id, email, name, password_hash, role, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, strings.ToLower(email)))
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- AssetStore ----------------------------------------------------------------

const assetColumns = `id, name, description, filename, content_type, size_bytes, storage_key, checksum, price_cents, created_at, updated_at`

func scanAsset(row interface{ Scan(...interface{}) error }) (asset.Asset, error) {
	var a asset.Asset
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Filename, &a.ContentType,
		&a.SizeBytes, &a.StorageKey, &a.Checksum, &a.PriceCents, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Store) CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, name, description, filename, content_type, size_bytes, storage_key, checksum, price_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.Name, a.Description, a.Filename, a.ContentType, a.SizeBytes,
		a.StorageKey, a.Checksum, a.PriceCents, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

func (s *Store) UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	a.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET name = $2, description = $3, price_cents = $4, updated_at = $5
		WHERE id = $1
	`, a.ID, a.Name, a.Description, a.PriceCents, a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return asset.Asset{}, sql.ErrNoRows
	}
	return s.GetAsset(ctx, a.ID)
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, error) {
	return scanAsset(s.db.QueryRowContext(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE id = $1
	`, id))
}

func (s *Store) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- ProductStore ---------------------------------------------------------------

const productColumns = `id, asset_id, title, description, price_cents, currency, published, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.AssetID, &p.Title, &p.Description, &p.PriceCents,
		&p.Currency, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, asset_id, title, description, price_cents, currency, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.AssetID, p.Title, p.Description, p.PriceCents, p.Currency, p.Published, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET title = $2, description = $3, price_cents = $4, currency = $5, published = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.PriceCents, p.Currency, p.Published, p.UpdatedAt)
	if err != nil {
		return product.Product{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return product.Product{}, sql.ErrNoRows
	}
	return s.GetProduct(ctx, p.ID)
}

func (s *Store) GetProduct(ctx context.Context, id string) (product.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
}

func (s *Store) ListProducts(ctx context.Context, publishedOnly bool) ([]product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at`
	if publishedOnly {
		query = `SELECT ` + productColumns + ` FROM products WHERE published ORDER BY created_at`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) ListProductsByAsset(ctx context.Context, assetID string) ([]product.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE asset_id = $1 ORDER BY created_at
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- PurchaseStore ---------------------------------------------------------------

func (s *Store) CreatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, user_id, product_id, asset_id, transaction_id, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.UserID, p.ProductID, p.AssetID, p.TransactionID, p.PurchasedAt)
	if err != nil {
		return purchase.Purchase{}, err
	}
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (purchase.Purchase, error) {
	var p purchase.Purchase
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, product_id, asset_id, transaction_id, purchased_at
		FROM purchases WHERE id = $1
	`, id).Scan(&p.ID, &p.UserID, &p.ProductID, &p.AssetID, &p.TransactionID, &p.PurchasedAt)
	return p, err
}

func (s *Store) GetPurchaseByTransaction(ctx context.Context, transactionID string) (purchase.Purchase, error) {
	var p purchase.Purchase
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, product_id, asset_id, transaction_id, purchased_at
		FROM purchases WHERE transaction_id = $1
	`, transactionID).Scan(&p.ID, &p.UserID, &p.ProductID, &p.AssetID, &p.TransactionID, &p.PurchasedAt)
	return p, err
}

func (s *Store) ListPurchases(ctx context.Context, userID string) ([]purchase.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, asset_id, transaction_id, purchased_at
		FROM purchases WHERE user_id = $1 ORDER BY purchased_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []purchase.Purchase
	for rows.Next() {
		var p purchase.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProductID, &p.AssetID, &p.TransactionID, &p.PurchasedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- TransactionStore ---------------------------------------------------------------

const txColumns = `id, purchase_id, user_id, product_id, provider_session_id, status, amount_cents, currency, failure_reason, created_at, updated_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (transaction.Transaction, error) {
	var (
		tx         transaction.Transaction
		purchaseID sql.NullString
		reason     sql.NullString
	)
	err := row.Scan(&tx.ID, &purchaseID, &tx.UserID, &tx.ProductID, &tx.ProviderSessionID,
		&tx.Status, &tx.AmountCents, &tx.Currency, &reason, &tx.CreatedAt, &tx.UpdatedAt)
	tx.PurchaseID = purchaseID.String
	tx.FailureReason = reason.String
	return tx, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, purchase_id, user_id, product_id, provider_session_id, status, amount_cents, currency, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, tx.ID, nullable(tx.PurchaseID), tx.UserID, tx.ProductID, tx.ProviderSessionID,
		tx.Status, tx.AmountCents, tx.Currency, nullable(tx.FailureReason), tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	tx.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET purchase_id = $2, provider_session_id = $3, status = $4, failure_reason = $5, updated_at = $6
		WHERE id = $1
	`, tx.ID, nullable(tx.PurchaseID), tx.ProviderSessionID, tx.Status, nullable(tx.FailureReason), tx.UpdatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return transaction.Transaction{}, sql.ErrNoRows
	}
	return s.GetTransaction(ctx, tx.ID)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (transaction.Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE id = $1
	`, id))
}

func (s *Store) GetTransactionBySessionID(ctx context.Context, sessionID string) (transaction.Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE provider_session_id = $1
	`, sessionID))
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	return s.listTransactions(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at
	`, userID)
}

func (s *Store) ListAllTransactions(ctx context.Context) ([]transaction.Transaction, error) {
	return s.listTransactions(ctx, `
		SELECT `+txColumns+` FROM transactions ORDER BY created_at
	`)
}

func (s *Store) ListStaleTransactions(ctx context.Context, cutoff time.Time) ([]transaction.Transaction, error) {
	return s.listTransactions(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE status = 'pending' AND created_at < $1 ORDER BY created_at
	`, cutoff)
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...interface{}) ([]transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}
