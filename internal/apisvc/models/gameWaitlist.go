package models

import "time"

// GameWaitlist is a FIFO queue entry for a full game. TokenID holds the jti
// of the most recently issued promotion token; a promotion consumes the entry
// only when the presented token carries the same jti.
type GameWaitlist struct {
	ID       int64     `json:"id"`       // Primary key
	GameID   int64     `json:"game_id"`  // FK to games(id)
	UserID   int64     `json:"user_id"`  // FK to users(user_id)
	TokenID  string    `json:"-"`        // jti of the issued join token, empty until notified
	JoinedAt time.Time `json:"joined_at"`
}
