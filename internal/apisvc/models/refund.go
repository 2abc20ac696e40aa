package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RefundStatusPending   = "pending"
	RefundStatusSucceeded = "succeeded"
)

// Refund always references exactly one payment. The mock adapter settles
// refunds synchronously; provider adapters leave them pending until the
// provider confirms through its own webhook.
type Refund struct {
	ID            int64           `json:"id"`              // Primary key
	GamePaymentID int64           `json:"game_payment_id"` // FK to game_payments(id)
	AmountPkr     decimal.Decimal `json:"amount_pkr"`
	Reason        string          `json:"reason"`
	Status        string          `json:"status"`
	ProviderRef   string          `json:"provider_ref"`
	CreatedAt     time.Time       `json:"created_at"`
}
