package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Fake is an in-process provider for tests and local development. Sessions
// complete when the test calls the webhook path with the session id.
type Fake struct {
	mu       sync.Mutex
	sessions map[string]CheckoutRequest
	// FailNext forces the next CreateSession call to fail.
	FailNext bool
}

var (
	_ Provider      = (*Fake)(nil)
	_ WebhookParser = (*Fake)(nil)
)

// NewFake creates an empty fake provider.
func NewFake() *Fake {
	return &Fake{sessions: make(map[string]CheckoutRequest)}
}

func (f *Fake) CreateSession(_ context.Context, req CheckoutRequest) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNext {
		f.FailNext = false
		return Session{}, fmt.Errorf("provider unavailable")
	}

	id := "fake_" + uuid.NewString()
	f.sessions[id] = req
	return Session{ID: id, URL: "https://pay.example.test/session/" + id}, nil
}

// ParseWebhook decodes the fake's webhook payload. Deliveries are not
// signed; the fake exists for tests and local development only.
func (f *Fake) ParseWebhook(payload []byte, _ http.Header) (Event, error) {
	var body struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Event{}, fmt.Errorf("decode webhook payload: %w", err)
	}

	switch body.Type {
	case "checkout.completed":
		return Event{Kind: EventCompleted, SessionID: body.SessionID}, nil
	case "checkout.expired":
		return Event{Kind: EventExpired, SessionID: body.SessionID}, nil
	default:
		return Event{Kind: EventIgnored}, nil
	}
}

// Sessions returns a copy of the sessions created so far.
func (f *Fake) Sessions() map[string]CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]CheckoutRequest, len(f.sessions))
	for k, v := range f.sessions {
		out[k] = v
	}
	return out
}
