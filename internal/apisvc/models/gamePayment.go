package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// GamePayment is created at intent time and mutated only by webhook
// confirmation (or the expiry sweep for stale pending intents). The
// idempotency key is unique: at most one live payment per client attempt.
type GamePayment struct {
	ID             int64           `json:"id"`          // Primary key
	GameID         int64           `json:"game_id"`     // FK to games(id)
	UserID         int64           `json:"user_id"`     // FK to users(user_id)
	AmountPkr      decimal.Decimal `json:"amount_pkr"`
	Provider       string          `json:"provider"`     // "mock", "paymob"
	ProviderRef    string          `json:"provider_ref"` // provider-side intent id
	IdempotencyKey string          `json:"idempotency_key"`
	Status         string          `json:"status"`
	RedirectURL    string          `json:"redirect_url"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
