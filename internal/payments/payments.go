// Package payments defines the contract between the checkout service and
// payment providers. The hosted-session model: the provider returns a URL the
// buyer is redirected to, and later reports the outcome on a webhook.
package payments

import (
	"context"
	"net/http"
)

// CheckoutRequest describes one hosted checkout session to create.
type CheckoutRequest struct {
	ProductTitle  string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	// Reference is the storefront transaction id, echoed back on webhooks.
	Reference  string
	SuccessURL string
	CancelURL  string
}

// Session is the provider's handle for a created checkout.
type Session struct {
	ID  string
	URL string
}

// Provider creates hosted checkout sessions.
type Provider interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (Session, error)
}

// Event outcomes reported by provider webhooks.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventExpired   EventKind = "expired"
	EventIgnored   EventKind = "ignored"
)

// Event is a provider webhook notification normalized for the checkout
// service.
type Event struct {
	Kind      EventKind
	SessionID string
}

// WebhookParser verifies and decodes provider webhook deliveries. The parser
// picks the signature header it needs out of the delivery's headers, so the
// HTTP layer stays provider-neutral.
type WebhookParser interface {
	ParseWebhook(payload []byte, header http.Header) (Event, error)
}
