package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Templates are pure functions from domain values to notifications, kept free
// of side effects so they can be unit tested directly.

func PlayerJoined(sport string, current, max int) Notification {
	return Notification{
		Title: "New player joined",
		Body:  fmt.Sprintf("A player joined your %s game (%d/%d spots taken)", sport, current, max),
		Data: map[string]string{
			"type":            "player_joined",
			"current_players": strconv.Itoa(current),
		},
	}
}

func GameFilled(sport string, startTime time.Time) Notification {
	return Notification{
		Title: "Game on!",
		Body:  fmt.Sprintf("Your %s game on %s is full. See you on the field!", sport, startTime.Format("Mon Jan 2, 3:04 PM")),
		Data: map[string]string{
			"type": "game_filled",
		},
	}
}

func GameCancelled(sport, reason string) Notification {
	return Notification{
		Title: "Game cancelled",
		Body:  fmt.Sprintf("Your %s game was cancelled: %s", sport, reason),
		Data: map[string]string{
			"type":   "game_cancelled",
			"reason": reason,
		},
	}
}

func RefundIssued(sport string, amountPkr decimal.Decimal) Notification {
	return Notification{
		Title: "Refund issued",
		Body:  fmt.Sprintf("PKR %s for your %s game is on its way back to you", amountPkr.StringFixed(2), sport),
		Data: map[string]string{
			"type":       "refund_issued",
			"amount_pkr": amountPkr.StringFixed(2),
		},
	}
}

// WaitlistSpotOpen carries the single-use join token; the client presents it
// on the join-from-waitlist call.
func WaitlistSpotOpen(sport string, gameID int64, token string) Notification {
	return Notification{
		Title: "A spot opened up!",
		Body:  fmt.Sprintf("A spot opened in the %s game you waitlisted. Grab it before someone else does.", sport),
		Data: map[string]string{
			"type":       "waitlist_spot_open",
			"game_id":    strconv.FormatInt(gameID, 10),
			"join_token": token,
		},
	}
}
