package models

import "time"

// PaymentEvent is the durable webhook receipt log. EventID is unique per
// provider delivery; a second insert with the same id is the duplicate
// signal for idempotent webhook replay. Rows are purged after a retention
// window by the sweep.
type PaymentEvent struct {
	ID        int64     `json:"id"`       // Primary key
	EventID   string    `json:"event_id"` // provider delivery id, unique
	Provider  string    `json:"provider"`
	EventType string    `json:"event_type"`
	Payload   []byte    `json:"payload"` // raw webhook body
	CreatedAt time.Time `json:"created_at"`
}
