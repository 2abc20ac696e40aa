package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game status values. Transitions only move forward except to cancelled,
// which is reachable from open/confirmed only.
const (
	GameStatusOpen      = "open"
	GameStatusConfirmed = "confirmed"
	GameStatusFilled    = "filled"
	GameStatusCancelled = "cancelled"
	GameStatusCompleted = "completed"
)

type Game struct {
	ID                int64           `json:"id"`                   // Primary key
	HostID            int64           `json:"host_id"`              // FK to users, game creator
	FieldID           int64           `json:"field_id"`             // FK to fields (venue reference)
	Sport             string          `json:"sport"`                // e.g. "futsal", "cricket"
	SkillLevel        string          `json:"skill_level"`          // free-form: "beginner", "intermediate", ...
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	MinPlayers        int             `json:"min_players"`
	MaxPlayers        int             `json:"max_players"`
	PricePerPlayerPkr decimal.Decimal `json:"price_per_player_pkr"`
	CurrentPlayers    int             `json:"current_players"`
	WaitlistCount     int             `json:"waitlist_count"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Cancellable reports whether a game may still transition to cancelled.
// Filled and completed games are never cancelled.
func (g *Game) Cancellable() bool {
	return g.Status == GameStatusOpen || g.Status == GameStatusConfirmed
}
