// Package stripe implements the payments.Provider contract on Stripe hosted
// Checkout Sessions.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/bytebazaar/storefront/internal/payments"
)

// Provider creates Stripe Checkout Sessions and verifies Stripe webhooks.
type Provider struct {
	webhookSecret string
}

var _ payments.Provider = (*Provider)(nil)
var _ payments.WebhookParser = (*Provider)(nil)

// New configures the global Stripe client key and returns a provider.
func New(secretKey, webhookSecret string) *Provider {
	stripeapi.Key = secretKey
	return &Provider{webhookSecret: webhookSecret}
}

// CreateSession creates a single-item payment-mode Checkout Session.
func (p *Provider) CreateSession(ctx context.Context, req payments.CheckoutRequest) (payments.Session, error) {
	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(req.SuccessURL),
		CancelURL:         stripeapi.String(req.CancelURL),
		ClientReferenceID: stripeapi.String(req.Reference),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{{
			Quantity: stripeapi.Int64(1),
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripeapi.String(req.Currency),
				UnitAmount: stripeapi.Int64(req.AmountCents),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(req.ProductTitle),
				},
			},
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("transaction_id", req.Reference)

	s, err := session.New(params)
	if err != nil {
		return payments.Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return payments.Session{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and maps the event to the
// checkout service's vocabulary. Events the storefront does not care about
// come back as EventIgnored.
func (p *Provider) ParseWebhook(payload []byte, header http.Header) (payments.Event, error) {
	event, err := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), p.webhookSecret)
	if err != nil {
		return payments.Event{}, fmt.Errorf("verify webhook: %w", err)
	}

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.expired":
		var sess struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return payments.Event{}, fmt.Errorf("decode session: %w", err)
		}
		kind := payments.EventCompleted
		if string(event.Type) == "checkout.session.expired" {
			kind = payments.EventExpired
		}
		return payments.Event{Kind: kind, SessionID: sess.ID}, nil
	default:
		return payments.Event{Kind: payments.EventIgnored}, nil
	}
}
