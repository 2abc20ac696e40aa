package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/avvvet/pickup-services/internal/apisvc/notify"
	"github.com/avvvet/pickup-services/internal/apisvc/payment"
	"github.com/avvvet/pickup-services/internal/apisvc/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const currencyPKR = "PKR"

// GameService is the game lifecycle engine: roster fill, payment settlement
// and cancellation flows. All counter and status mutations happen inside the
// store's atomic operations; the engine holds IDs, never long-lived records.
type GameService struct {
	store           store.Store
	registry        *payment.Registry
	defaultProvider string
	gateway         notify.Gateway
	tokens          *TokenIssuer
	archive         Archiver
}

func NewGameService(st store.Store, registry *payment.Registry, defaultProvider string,
	gateway notify.Gateway, tokens *TokenIssuer) *GameService {
	return &GameService{
		store:           st,
		registry:        registry,
		defaultProvider: defaultProvider,
		gateway:         gateway,
		tokens:          tokens,
	}
}

type CreateGameSpec struct {
	HostID            int64           `json:"host_id"`
	FieldID           int64           `json:"field_id"`
	Sport             string          `json:"sport"`
	SkillLevel        string          `json:"skill_level"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	MinPlayers        int             `json:"min_players"`
	MaxPlayers        int             `json:"max_players"`
	PricePerPlayerPkr decimal.Decimal `json:"price_per_player_pkr"`
}

// CreateGame validates the request and creates the game with the host
// enrolled as its first player. The host pays nothing.
func (s *GameService) CreateGame(ctx context.Context, spec CreateGameSpec) (*models.Game, error) {
	if spec.Sport == "" {
		return nil, fmt.Errorf("%w: sport is required", ErrValidation)
	}
	if spec.MinPlayers < 2 {
		return nil, fmt.Errorf("%w: min players must be at least 2", ErrValidation)
	}
	if spec.MaxPlayers < spec.MinPlayers {
		return nil, fmt.Errorf("%w: max players must be >= min players", ErrValidation)
	}
	if !spec.PricePerPlayerPkr.IsPositive() {
		return nil, fmt.Errorf("%w: price per player must be positive", ErrValidation)
	}
	if !spec.EndTime.After(spec.StartTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}

	return s.store.CreateGame(ctx, &models.Game{
		HostID:            spec.HostID,
		FieldID:           spec.FieldID,
		Sport:             spec.Sport,
		SkillLevel:        spec.SkillLevel,
		StartTime:         spec.StartTime,
		EndTime:           spec.EndTime,
		MinPlayers:        spec.MinPlayers,
		MaxPlayers:        spec.MaxPlayers,
		PricePerPlayerPkr: spec.PricePerPlayerPkr,
	})
}

func (s *GameService) GetGameDetail(ctx context.Context, gameID int64) (*models.Game, []*models.GamePlayer, error) {
	game, err := s.store.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	players, err := s.store.GetPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	return game, players, nil
}

func (s *GameService) SearchGames(ctx context.Context, callerID int64, sport, skillLevel string) ([]*models.Game, error) {
	return s.store.SearchOpenGames(ctx, callerID, sport, skillLevel)
}

// RequestJoinIntent creates a pending payment for one spot. A repeated call
// with the same idempotency key returns the original payment unchanged and
// skips every capacity check: pure replay.
func (s *GameService) RequestJoinIntent(ctx context.Context, gameID, userID int64, provider, idempotencyKey string) (*models.GamePayment, error) {
	if idempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrValidation)
	}

	existing, err := s.store.GetPaymentByIdempotencyKey(ctx, idempotencyKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	game, err := s.store.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", gameID, err)
	}
	if game.Status == models.GameStatusCancelled || game.Status == models.GameStatusCompleted {
		return nil, store.ErrGameCancelled
	}
	if game.CurrentPlayers >= game.MaxPlayers {
		return nil, store.ErrGameFull
	}

	if provider == "" {
		provider = s.defaultProvider
	}
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	p := &models.GamePayment{
		GameID:         gameID,
		UserID:         userID,
		AmountPkr:      game.PricePerPlayerPkr,
		Provider:       adapter.Name(),
		IdempotencyKey: idempotencyKey,
	}

	intent, err := adapter.CreateIntent(ctx, game.PricePerPlayerPkr, currencyPKR, map[string]string{
		"game_id": fmt.Sprintf("%d", gameID),
		"user_id": fmt.Sprintf("%d", userID),
	})
	if err != nil {
		// Provider failures surface as a failed payment row, not an engine
		// error; the player retries with a new idempotency key.
		log.Errorf("create intent for game %d user %d: %v", gameID, userID, err)
		p.Status = models.PaymentStatusFailed
	} else {
		p.ProviderRef = intent.ID
		p.RedirectURL = intent.RedirectURL
		p.Status = models.PaymentStatusPending
		if intent.Status == "succeeded" {
			p.Status = models.PaymentStatusSucceeded
		}
	}

	created, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Lost a race against an identical retry; the stored row wins.
			return s.store.GetPaymentByIdempotencyKey(ctx, idempotencyKey)
		}
		return nil, err
	}
	return created, nil
}

// ConfirmPayment applies a verified, deduplicated webhook event. On success it
// seats the player, advances the game status and fires notifications; on
// failure it only marks the payment failed.
func (s *GameService) ConfirmPayment(ctx context.Context, evt *payment.WebhookEvent) error {
	p, err := s.lookupPayment(ctx, evt)
	if err != nil {
		return err
	}

	if evt.Status != models.PaymentStatusSucceeded {
		_, err := s.store.UpdatePaymentStatus(ctx, p.ID,
			[]string{models.PaymentStatusPending}, models.PaymentStatusFailed)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	}

	if p.Status == models.PaymentStatusRefunded || p.Status == models.PaymentStatusFailed {
		log.Warnf("webhook %s confirms payment %d already in status %s, ignoring", evt.EventID, p.ID, p.Status)
		return nil
	}
	if _, err := s.store.UpdatePaymentStatus(ctx, p.ID,
		[]string{models.PaymentStatusPending}, models.PaymentStatusSucceeded); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	game, err := s.store.AddPlayer(ctx, p.GameID, p.UserID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyJoined):
			return nil
		case errors.Is(err, store.ErrGameFull):
			return s.refundSettledPayment(ctx, p, "game filled before payment settled")
		case errors.Is(err, store.ErrGameCancelled):
			return s.refundSettledPayment(ctx, p, "game cancelled before payment settled")
		default:
			return err
		}
	}

	s.notifyRosterChange(ctx, game)
	return nil
}

func (s *GameService) lookupPayment(ctx context.Context, evt *payment.WebhookEvent) (*models.GamePayment, error) {
	if evt.PaymentID != 0 {
		p, err := s.store.GetPaymentByID(ctx, evt.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", evt.PaymentID, err)
		}
		return p, nil
	}
	if evt.ProviderRef != "" {
		p, err := s.store.GetPaymentByProviderRef(ctx, evt.ProviderRef)
		if err != nil {
			return nil, fmt.Errorf("payment ref %s: %w", evt.ProviderRef, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: webhook carries neither payment id nor provider ref", ErrValidation)
}

// refundSettledPayment handles a payment that settled after its spot was gone.
func (s *GameService) refundSettledPayment(ctx context.Context, p *models.GamePayment, reason string) error {
	if _, err := s.issueRefund(ctx, p, reason); err != nil {
		return err
	}
	game, err := s.store.GetGameByID(ctx, p.GameID)
	if err == nil {
		s.gateway.SendToUser(p.UserID, notify.RefundIssued(game.Sport, p.AmountPkr))
	}
	return nil
}

// notifyRosterChange tells the host about a new joiner, or everyone when the
// game just filled.
func (s *GameService) notifyRosterChange(ctx context.Context, game *models.Game) {
	if game.Status == models.GameStatusFilled {
		players, err := s.store.GetPlayersByGameID(ctx, game.ID)
		if err != nil {
			log.Errorf("load roster for filled game %d: %v", game.ID, err)
			return
		}
		s.gateway.SendToMultipleUsers(userIDs(players), notify.GameFilled(game.Sport, game.StartTime))
		return
	}
	s.gateway.SendToUser(game.HostID, notify.PlayerJoined(game.Sport, game.CurrentPlayers, game.MaxPlayers))
}

// CancelPlayerSpot removes the caller from the roster, refunds a settled
// payment and offers the freed spot to the waitlist head.
func (s *GameService) CancelPlayerSpot(ctx context.Context, gameID, userID int64) error {
	p, err := s.store.GetPaymentForUser(ctx, gameID, userID)
	if err != nil {
		return fmt.Errorf("payment for user %d in game %d: %w", userID, gameID, err)
	}

	game, err := s.store.GetGameByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("game %d: %w", gameID, err)
	}

	if _, err := s.store.RemovePlayer(ctx, gameID, userID); err != nil {
		return fmt.Errorf("remove player %d from game %d: %w", userID, gameID, err)
	}

	if p.Status == models.PaymentStatusSucceeded {
		if _, err := s.issueRefund(ctx, p, "player cancelled spot"); err != nil {
			return err
		}
		s.gateway.SendToUser(userID, notify.RefundIssued(game.Sport, p.AmountPkr))
	}

	s.offerSpotToWaitlist(ctx, game)
	return nil
}

// offerSpotToWaitlist notifies the head of the queue with a fresh single-use
// join token. Failures are logged only; the cancellation already happened.
func (s *GameService) offerSpotToWaitlist(ctx context.Context, game *models.Game) {
	head, err := s.store.PeekWaitlist(ctx, game.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Errorf("peek waitlist for game %d: %v", game.ID, err)
		}
		return
	}

	token, jti, err := s.tokens.Issue(game.ID, head.UserID)
	if err != nil {
		log.Errorf("issue waitlist token for game %d user %d: %v", game.ID, head.UserID, err)
		return
	}
	if err := s.store.SetWaitlistToken(ctx, game.ID, head.UserID, jti); err != nil {
		log.Errorf("store waitlist token for game %d user %d: %v", game.ID, head.UserID, err)
		return
	}
	s.gateway.SendToUser(head.UserID, notify.WaitlistSpotOpen(game.Sport, game.ID, token))
}

// JoinFromWaitlist seats a notified waitlist user. The token must verify, be
// bound to this (game, user) pair and match the stored jti; the store consumes
// it atomically with the promotion. The spot was already paid-for-eligible, so
// the payment row is written succeeded with no provider round trip.
func (s *GameService) JoinFromWaitlist(ctx context.Context, gameID, userID int64, token string) (*models.GamePayment, error) {
	tokGameID, tokUserID, jti, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if tokGameID != gameID || tokUserID != userID {
		return nil, ErrInvalidToken
	}

	game, err := s.store.PromoteFromWaitlist(ctx, gameID, userID, jti)
	if err != nil {
		return nil, err
	}

	p, err := s.store.CreatePayment(ctx, &models.GamePayment{
		GameID:         gameID,
		UserID:         userID,
		AmountPkr:      game.PricePerPlayerPkr,
		Provider:       s.defaultProvider,
		ProviderRef:    "wl_" + uuid.NewString(),
		IdempotencyKey: "wl_" + uuid.NewString(),
		Status:         models.PaymentStatusSucceeded,
	})
	if err != nil {
		return nil, err
	}

	s.notifyRosterChange(ctx, game)
	return p, nil
}

// RequestWaitlist enqueues the user behind everyone already waiting. Only full
// games take waitlist entries; an open spot should be joined directly.
func (s *GameService) RequestWaitlist(ctx context.Context, gameID, userID int64) (*models.GameWaitlist, error) {
	game, err := s.store.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", gameID, err)
	}
	if game.Status == models.GameStatusCancelled || game.Status == models.GameStatusCompleted {
		return nil, store.ErrGameCancelled
	}
	if game.CurrentPlayers < game.MaxPlayers {
		return nil, fmt.Errorf("%w: game still has open spots", ErrValidation)
	}
	return s.store.EnqueueWaitlist(ctx, gameID, userID)
}

func (s *GameService) LeaveWaitlist(ctx context.Context, gameID, userID int64) error {
	return s.store.RemoveFromWaitlist(ctx, gameID, userID)
}

// CancelGame is the explicit host cancellation.
func (s *GameService) CancelGame(ctx context.Context, gameID, hostID int64, reason string) error {
	game, err := s.store.GetGameByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("game %d: %w", gameID, err)
	}
	if game.HostID != hostID {
		return fmt.Errorf("%w: only the host can cancel the game", ErrForbidden)
	}
	if !game.Cancellable() {
		return ErrNotCancellable
	}
	if reason == "" {
		reason = "cancelled by host"
	}
	return s.CancelGameForReason(ctx, gameID, reason)
}

// CancelGameForReason transitions the game to cancelled, refunds every
// settled payment and notifies all participants. The sweep and the host
// cancellation share this path. Cancellation is only reachable from
// open/confirmed; a filled or completed game rejects with ErrNotCancellable.
func (s *GameService) CancelGameForReason(ctx context.Context, gameID int64, reason string) error {
	game, err := s.store.UpdateGameStatus(ctx, gameID,
		[]string{models.GameStatusOpen, models.GameStatusConfirmed}, models.GameStatusCancelled)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotCancellable
		}
		return err
	}

	settled, err := s.store.ListPaymentsByGameAndStatus(ctx, gameID, models.PaymentStatusSucceeded)
	if err != nil {
		return fmt.Errorf("list settled payments for game %d: %w", gameID, err)
	}
	for _, p := range settled {
		if _, err := s.issueRefund(ctx, p, reason); err != nil {
			return fmt.Errorf("refund payment %d: %w", p.ID, err)
		}
		s.gateway.SendToUser(p.UserID, notify.RefundIssued(game.Sport, p.AmountPkr))
	}

	players, err := s.store.GetPlayersByGameID(ctx, gameID)
	if err != nil {
		log.Errorf("load roster for cancelled game %d: %v", gameID, err)
		return nil
	}
	s.gateway.SendToMultipleUsers(userIDs(players), notify.GameCancelled(game.Sport, reason))
	return nil
}

// issueRefund records the refund and marks the payment refunded. The adapter
// decides whether the refund settles synchronously (mock) or stays pending
// until the provider confirms.
func (s *GameService) issueRefund(ctx context.Context, p *models.GamePayment, reason string) (*models.Refund, error) {
	status := models.RefundStatusPending
	providerRef := ""

	adapter, err := s.registry.Get(p.Provider)
	if err != nil {
		log.Errorf("refund payment %d: %v, recording pending refund", p.ID, err)
	} else {
		ref, st, err := adapter.Refund(ctx, p.ProviderRef, p.AmountPkr)
		if err != nil {
			log.Errorf("provider refund for payment %d failed: %v, recording pending refund", p.ID, err)
		} else {
			providerRef = ref
			status = st
		}
	}

	refund, err := s.store.CreateRefund(ctx, &models.Refund{
		GamePaymentID: p.ID,
		AmountPkr:     p.AmountPkr,
		Reason:        reason,
		Status:        status,
		ProviderRef:   providerRef,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.UpdatePaymentStatus(ctx, p.ID,
		[]string{models.PaymentStatusPending, models.PaymentStatusSucceeded},
		models.PaymentStatusRefunded); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return refund, nil
}

func userIDs(players []*models.GamePlayer) []int64 {
	ids := make([]int64, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.UserID)
	}
	return ids
}
