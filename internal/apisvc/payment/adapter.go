package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Intent is the provider-side payment request created before funds move.
// Production adapters return status "pending" and settle through the webhook;
// callers must never assume synchronous settlement.
type Intent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
}

// WebhookEvent is the typed result of parsing a provider callback. EventID is
// the deduplication key; providers retry deliveries on timeout.
type WebhookEvent struct {
	EventID     string
	EventType   string
	PaymentID   int64
	ProviderRef string
	Status      string // "succeeded" or "failed"
}

// Adapter abstracts a payment provider. Concrete adapters are interchangeable
// without changing callers.
type Adapter interface {
	Name() string
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	// VerifyWebhookSignature must compare in constant time. A failed
	// verification rejects the webhook with no side effects.
	VerifyWebhookSignature(rawBody []byte, signature string) bool
	ParseWebhook(rawBody []byte) (*WebhookEvent, error)
	// Refund initiates a provider-side refund, returning the provider ref and
	// the refund status ("pending" until the provider confirms, "succeeded"
	// when settled synchronously).
	Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (string, string, error)
}

// Registry holds the adapters a deployment has configured, keyed by name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", name)
	}
	return a, nil
}
