// Package app wires the storefront services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/bytebazaar/storefront/internal/app/services/assets"
	checkoutsvc "github.com/bytebazaar/storefront/internal/app/services/checkout"
	downloadsvc "github.com/bytebazaar/storefront/internal/app/services/downloads"
	productsvc "github.com/bytebazaar/storefront/internal/app/services/products"
	usersvc "github.com/bytebazaar/storefront/internal/app/services/users"
	"github.com/bytebazaar/storefront/internal/app/storage"
	"github.com/bytebazaar/storefront/internal/app/storage/memory"
	"github.com/bytebazaar/storefront/internal/app/system"
	"github.com/bytebazaar/storefront/internal/auth"
	"github.com/bytebazaar/storefront/internal/blobstore"
	"github.com/bytebazaar/storefront/internal/config"
	"github.com/bytebazaar/storefront/internal/logging"
	"github.com/bytebazaar/storefront/internal/metrics"
	"github.com/bytebazaar/storefront/internal/payments"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users        storage.UserStore
	Assets       storage.AssetStore
	Products     storage.ProductStore
	Purchases    storage.PurchaseStore
	Transactions storage.TransactionStore
}

// Deps carries the external dependencies the application composes. Nil
// fields get local defaults suitable for tests: an in-memory token store and
// the fake payment provider. Blobs has no safe default and is required.
type Deps struct {
	Blobs    blobstore.Store
	Provider payments.Provider
	Tokens   downloadsvc.TokenStore
	Metrics  *metrics.Metrics
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	// Signer verifies the session tokens the users service mints; the HTTP
	// auth middleware shares it.
	Signer *auth.Signer

	Users     *usersvc.Service
	Assets    *assets.Service
	Products  *productsvc.Service
	Checkout  *checkoutsvc.Service
	Downloads *downloadsvc.Service
}

// New builds a fully initialised application.
func New(cfg *config.Config, stores Stores, deps Deps, log *logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewDefault("app")
	}
	if deps.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Assets == nil {
		stores.Assets = mem
	}
	if stores.Products == nil {
		stores.Products = mem
	}
	if stores.Purchases == nil {
		stores.Purchases = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}

	if deps.Provider == nil {
		deps.Provider = payments.NewFake()
	}

	signer, err := auth.NewSigner(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	manager := system.NewManager()

	userService := usersvc.New(stores.Users, signer, cfg.Auth.TokenTTL, log)
	assetService := assets.New(stores.Assets, stores.Products, deps.Blobs,
		cfg.Uploads.MaxSizeBytes, cfg.Uploads.AllowedExtensions, deps.Metrics, log)
	productService := productsvc.New(stores.Products, stores.Assets, log)
	checkoutService := checkoutsvc.New(checkoutsvc.Stores{
		Products:     stores.Products,
		Users:        stores.Users,
		Purchases:    stores.Purchases,
		Transactions: stores.Transactions,
	}, deps.Provider, checkoutsvc.URLs{
		Success: cfg.Payments.SuccessURL,
		Cancel:  cfg.Payments.CancelURL,
	}, deps.Metrics, log)

	tokens := deps.Tokens
	if tokens == nil {
		memTokens := downloadsvc.NewMemoryTokenStore()
		tokens = memTokens
		if err := manager.Register(downloadsvc.NewSweeper(memTokens, 0, log)); err != nil {
			return nil, err
		}
	}

	downloadService := downloadsvc.New(stores.Purchases, stores.Assets, deps.Blobs,
		signer, tokens, cfg.Downloads.LinkTTL, cfg.Server.BaseURL, deps.Metrics, log)

	janitor := checkoutsvc.NewJanitor(checkoutService, cfg.Payments.PendingMaxAge, "", log)
	if err := manager.Register(janitor); err != nil {
		return nil, err
	}

	return &Application{
		manager:   manager,
		log:       log,
		Signer:    signer,
		Users:     userService,
		Assets:    assetService,
		Products:  productService,
		Checkout:  checkoutService,
		Downloads: downloadService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all background services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
