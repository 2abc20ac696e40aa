package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ProviderPaymob = "paymob"

// Paymob satisfies the adapter interface for the Paymob gateway. Intent
// creation is a stub (no live gateway call); signature verification and
// webhook parsing are real so the settlement pipeline can be exercised
// end to end.
type Paymob struct {
	hmacSecret  []byte
	redirectURL string
}

func NewPaymob(hmacSecret, redirectURL string) *Paymob {
	return &Paymob{hmacSecret: []byte(hmacSecret), redirectURL: redirectURL}
}

func (p *Paymob) Name() string { return ProviderPaymob }

func (p *Paymob) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	id := "pmb_" + uuid.NewString()
	return &Intent{
		ID:          id,
		Status:      "pending",
		RedirectURL: fmt.Sprintf("%s?ref=%s&amount=%s&currency=%s", p.redirectURL, id, amount.StringFixed(2), currency),
	}, nil
}

// VerifyWebhookSignature checks an HMAC-SHA256 hex digest of the raw body.
// hmac.Equal keeps the comparison constant time.
func (p *Paymob) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if len(p.hmacSecret) == 0 || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, p.hmacSecret)
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), provided)
}

// paymobWebhookBody is the typed subset of the provider callback the engine
// needs. merchant_order_id carries the provider ref we set at intent time.
type paymobWebhookBody struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Obj     struct {
		ID              int64  `json:"id"`
		Success         bool   `json:"success"`
		Pending         bool   `json:"pending"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"obj"`
}

func (p *Paymob) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var body paymobWebhookBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("malformed paymob webhook: %w", err)
	}
	if body.Type != "TRANSACTION" {
		return nil, fmt.Errorf("unsupported paymob webhook type %q", body.Type)
	}
	if body.Obj.MerchantOrderID == "" {
		return nil, fmt.Errorf("paymob webhook missing merchant_order_id")
	}
	if body.Obj.Pending {
		return nil, fmt.Errorf("paymob webhook still pending, nothing to settle")
	}

	eventID := body.EventID
	if eventID == "" {
		// Paymob does not always carry a delivery id; the transaction id is
		// stable across retries and works as the dedup key.
		eventID = fmt.Sprintf("paymob_txn_%d", body.Obj.ID)
	}

	status := "failed"
	if body.Obj.Success {
		status = "succeeded"
	}
	return &WebhookEvent{
		EventID:     eventID,
		EventType:   "payment." + status,
		ProviderRef: body.Obj.MerchantOrderID,
		Status:      status,
	}, nil
}

func (p *Paymob) Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (string, string, error) {
	// Real refunds settle asynchronously; callers hold the refund in pending
	// until the provider confirms.
	return "pmb_rf_" + uuid.NewString(), "pending", nil
}
