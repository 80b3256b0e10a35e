package storage

import (
	"context"
	"time"

	"github.com/bytebazaar/storefront/internal/app/domain/asset"
	"github.com/bytebazaar/storefront/internal/app/domain/product"
	"github.com/bytebazaar/storefront/internal/app/domain/purchase"
	"github.com/bytebazaar/storefront/internal/app/domain/transaction"
	"github.com/bytebazaar/storefront/internal/app/domain/user"
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// AssetStore persists uploaded file metadata.
type AssetStore interface {
	CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	GetAsset(ctx context.Context, id string) (asset.Asset, error)
	ListAssets(ctx context.Context) ([]asset.Asset, error)
	DeleteAsset(ctx context.Context, id string) error
}

// ProductStore persists product listings.
type ProductStore interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
	ListProducts(ctx context.Context, publishedOnly bool) ([]product.Product, error)
	ListProductsByAsset(ctx context.Context, assetID string) ([]product.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// PurchaseStore persists completed purchases.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error)
	GetPurchase(ctx context.Context, id string) (purchase.Purchase, error)
	GetPurchaseByTransaction(ctx context.Context, transactionID string) (purchase.Purchase, error)
	ListPurchases(ctx context.Context, userID string) ([]purchase.Purchase, error)
}

// TransactionStore persists payment transactions.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	UpdateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	GetTransaction(ctx context.Context, id string) (transaction.Transaction, error)
	GetTransactionBySessionID(ctx context.Context, sessionID string) (transaction.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]transaction.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]transaction.Transaction, error)
	ListStaleTransactions(ctx context.Context, cutoff time.Time) ([]transaction.Transaction, error)
}
