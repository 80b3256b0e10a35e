package product

import "time"

// Product is a purchasable listing backed by an asset. Only published
// products are visible to customers.
type Product struct {
	ID          string    `json:"id"`
	AssetID     string    `json:"asset_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
