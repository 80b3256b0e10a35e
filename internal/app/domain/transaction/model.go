package transaction

import "time"

// Status of a payment transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Transaction tracks one checkout session with the payment provider.
// PurchaseID is set when the provider confirms payment.
type Transaction struct {
	ID                string    `json:"id"`
	PurchaseID        string    `json:"purchase_id,omitempty"`
	UserID            string    `json:"user_id"`
	ProductID         string    `json:"product_id"`
	ProviderSessionID string    `json:"provider_session_id"`
	Status            Status    `json:"status"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Terminal reports whether the transaction reached a final status.
func (t Transaction) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed || t.Status == StatusExpired
}
