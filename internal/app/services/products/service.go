// Package products manages the purchasable listings over uploaded assets.
package products

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/bytebazaar/storefront/internal/app/domain/product"
	"github.com/bytebazaar/storefront/internal/app/storage"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/logging"
)

// Update carries optional field changes for a product.
type Update struct {
	Title       *string
	Description *string
	PriceCents  *int64
	Currency    *string
}

// Service manages product listings.
type Service struct {
	store  storage.ProductStore
	assets storage.AssetStore
	log    *logging.Logger
}

// New creates the products service.
func New(store storage.ProductStore, assets storage.AssetStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("products")
	}
	return &Service{store: store, assets: assets, log: log}
}

// Create adds an unpublished listing for an existing asset. A zero price
// inherits the asset's price.
func (s *Service) Create(ctx context.Context, assetID, title, description string, priceCents int64, currency string) (product.Product, error) {
	if strings.TrimSpace(title) == "" {
		return product.Product{}, errors.InvalidInput("title is required")
	}
	if priceCents < 0 {
		return product.Product{}, errors.InvalidInput("price must not be negative")
	}

	a, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return product.Product{}, errors.NotFound("asset not found")
		}
		return product.Product{}, errors.Internal("get asset", err)
	}

	if priceCents == 0 {
		priceCents = a.PriceCents
	}
	if currency == "" {
		currency = "usd"
	}

	created, err := s.store.CreateProduct(ctx, product.Product{
		AssetID:     a.ID,
		Title:       strings.TrimSpace(title),
		Description: description,
		PriceCents:  priceCents,
		Currency:    strings.ToLower(currency),
	})
	if err != nil {
		return product.Product{}, errors.Internal("create product", err)
	}

	s.log.WithContext(ctx).WithField("product_id", created.ID).Info("product created")
	return created, nil
}

// Get fetches a product by id.
func (s *Service) Get(ctx context.Context, id string) (product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return product.Product{}, errors.NotFound("product not found")
		}
		return product.Product{}, errors.Internal("get product", err)
	}
	return p, nil
}

// GetPublished fetches a product visible to customers.
func (s *Service) GetPublished(ctx context.Context, id string) (product.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	if !p.Published {
		return product.Product{}, errors.NotFound("product not found")
	}
	return p, nil
}

// List returns listings; publishedOnly restricts to the public catalog.
func (s *Service) List(ctx context.Context, publishedOnly bool) ([]product.Product, error) {
	list, err := s.store.ListProducts(ctx, publishedOnly)
	if err != nil {
		return nil, errors.Internal("list products", err)
	}
	return list, nil
}

// Update applies the provided field changes.
func (s *Service) Update(ctx context.Context, id string, upd Update) (product.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return product.Product{}, err
	}

	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return product.Product{}, errors.InvalidInput("title must not be empty")
		}
		p.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.PriceCents != nil {
		if *upd.PriceCents <= 0 {
			return product.Product{}, errors.InvalidInput("price must be positive")
		}
		p.PriceCents = *upd.PriceCents
	}
	if upd.Currency != nil {
		p.Currency = strings.ToLower(*upd.Currency)
	}

	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return product.Product{}, errors.Internal("update product", err)
	}
	return updated, nil
}

// SetPublished toggles catalog visibility.
func (s *Service) SetPublished(ctx context.Context, id string, published bool) (product.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	if published && p.PriceCents <= 0 {
		return product.Product{}, errors.Conflict("cannot publish a product without a price")
	}
	p.Published = published

	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return product.Product{}, errors.Internal("update product", err)
	}
	return updated, nil
}

// Delete removes a listing.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("product not found")
		}
		return errors.Internal("delete product", err)
	}
	return nil
}
