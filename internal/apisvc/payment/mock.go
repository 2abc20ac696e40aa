package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ProviderMock = "mock"

// Mock settles intents synchronously and accepts every signature. Development
// only; the webhook route skips signature verification for it.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string { return ProviderMock }

func (m *Mock) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	id := "mock_" + uuid.NewString()
	return &Intent{
		ID:           id,
		Status:       "succeeded",
		ClientSecret: "secret_" + uuid.NewString(),
	}, nil
}

func (m *Mock) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return true
}

type mockWebhookBody struct {
	EventID     string `json:"eventId"`
	PaymentID   int64  `json:"paymentId"`
	Status      string `json:"status"`
	ProviderRef string `json:"providerRef"`
}

func (m *Mock) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var body mockWebhookBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("malformed mock webhook: %w", err)
	}
	if body.EventID == "" {
		return nil, fmt.Errorf("mock webhook missing eventId")
	}
	if body.Status != "succeeded" && body.Status != "failed" {
		return nil, fmt.Errorf("mock webhook has unknown status %q", body.Status)
	}
	return &WebhookEvent{
		EventID:     body.EventID,
		EventType:   "payment." + body.Status,
		PaymentID:   body.PaymentID,
		ProviderRef: body.ProviderRef,
		Status:      body.Status,
	}, nil
}

func (m *Mock) Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (string, string, error) {
	return "mock_rf_" + uuid.NewString(), "succeeded", nil
}
