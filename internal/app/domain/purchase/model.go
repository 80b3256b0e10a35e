package purchase

import "time"

// Purchase records that a user owns an asset. Purchases are created only
// when a checkout transaction completes, and each transaction yields at most
// one purchase.
type Purchase struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ProductID     string    `json:"product_id"`
	AssetID       string    `json:"asset_id"`
	TransactionID string    `json:"transaction_id"`
	PurchasedAt   time.Time `json:"purchased_at"`
}
