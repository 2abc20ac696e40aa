package models

import "time"

type GamePlayer struct {
	ID       int64     `json:"id"`        // Primary key
	GameID   int64     `json:"game_id"`   // FK to games(id)
	UserID   int64     `json:"user_id"`   // FK to users(user_id)
	IsHost   bool      `json:"is_host"`   // true for the auto-enrolled creator
	JoinedAt time.Time `json:"joined_at"` // Timestamp
}
