package store

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
)

// Sentinel errors translated from constraint violations / missing rows at the
// store boundary. Callers match with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrGameFull      = errors.New("game is full")
	ErrGameCancelled = errors.New("game is cancelled")
	ErrAlreadyJoined = errors.New("user already joined game")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrTokenMismatch = errors.New("waitlist token mismatch")
)

// Store is the single persistence surface for the marketplace. Implementations
// must make AddPlayer, RemovePlayer and PromoteFromWaitlist atomic with respect
// to the game's player counter and status so that racing join confirmations
// cannot push current_players past max_players.
type Store interface {
	// Games. CreateGame inserts the game and the host's player row in one
	// unit, with current_players = 1.
	CreateGame(ctx context.Context, g *models.Game) (*models.Game, error)
	GetGameByID(ctx context.Context, gameID int64) (*models.Game, error)
	// SearchOpenGames lists open games matching the optional sport and skill
	// filters, excluding games hosted by users the caller has blocked.
	SearchOpenGames(ctx context.Context, callerID int64, sport, skillLevel string) ([]*models.Game, error)
	ListGamesStartingBetween(ctx context.Context, from, to time.Time, statuses []string) ([]*models.Game, error)
	// UpdateGameStatus transitions status to the target only when the current
	// status is one of from; returns ErrNotFound when no row matched.
	UpdateGameStatus(ctx context.Context, gameID int64, from []string, to string) (*models.Game, error)

	// Players.
	GetPlayersByGameID(ctx context.Context, gameID int64) ([]*models.GamePlayer, error)
	// AddPlayer inserts the membership row, increments current_players and
	// re-evaluates status (open -> confirmed at min_players, -> filled at
	// max_players) in one atomic step. Fails with ErrGameFull, ErrGameCancelled
	// or ErrAlreadyJoined.
	AddPlayer(ctx context.Context, gameID, userID int64) (*models.Game, error)
	// RemovePlayer deletes the membership row and decrements current_players.
	// Status is left unchanged: it never regresses except to cancelled.
	RemovePlayer(ctx context.Context, gameID, userID int64) (*models.Game, error)

	// Payments. CreatePayment fails with ErrDuplicateKey when the idempotency
	// key already exists.
	CreatePayment(ctx context.Context, p *models.GamePayment) (*models.GamePayment, error)
	GetPaymentByID(ctx context.Context, id int64) (*models.GamePayment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, key string) (*models.GamePayment, error)
	GetPaymentByProviderRef(ctx context.Context, providerRef string) (*models.GamePayment, error)
	GetPaymentForUser(ctx context.Context, gameID, userID int64) (*models.GamePayment, error)
	// UpdatePaymentStatus transitions only when the current status is one of
	// from; returns ErrNotFound when no row matched.
	UpdatePaymentStatus(ctx context.Context, id int64, from []string, to string) (*models.GamePayment, error)
	ListPaymentsByGameAndStatus(ctx context.Context, gameID int64, status string) ([]*models.GamePayment, error)
	// ExpirePendingPayments marks pending payments created before cutoff as
	// failed and returns how many were expired.
	ExpirePendingPayments(ctx context.Context, cutoff time.Time) (int64, error)

	// Refunds.
	CreateRefund(ctx context.Context, r *models.Refund) (*models.Refund, error)
	ListRefundsByPaymentID(ctx context.Context, gamePaymentID int64) ([]*models.Refund, error)

	// Waitlist, FIFO by joined_at. EnqueueWaitlist increments waitlist_count
	// in lockstep; RemoveFromWaitlist decrements it.
	EnqueueWaitlist(ctx context.Context, gameID, userID int64) (*models.GameWaitlist, error)
	RemoveFromWaitlist(ctx context.Context, gameID, userID int64) error
	// PeekWaitlist returns the earliest entry, ErrNotFound when empty.
	PeekWaitlist(ctx context.Context, gameID int64) (*models.GameWaitlist, error)
	SetWaitlistToken(ctx context.Context, gameID, userID int64, tokenID string) error
	// PromoteFromWaitlist atomically verifies tokenID against the stored jti,
	// removes the waitlist entry, inserts the player row and adjusts both
	// counters plus status. Fails with ErrTokenMismatch, ErrGameFull,
	// ErrGameCancelled or ErrNotFound.
	PromoteFromWaitlist(ctx context.Context, gameID, userID int64, tokenID string) (*models.Game, error)

	// Webhook receipt log. RecordPaymentEvent returns created=false when the
	// event id was already recorded (duplicate delivery).
	RecordPaymentEvent(ctx context.Context, e *models.PaymentEvent) (bool, error)
	PurgePaymentEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Block list.
	BlockUser(ctx context.Context, userID, blockedUserID int64) error
	ListBlockedUsers(ctx context.Context, userID int64) ([]int64, error)
}
