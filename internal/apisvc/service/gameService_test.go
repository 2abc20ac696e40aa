package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/avvvet/pickup-services/internal/apisvc/notify"
	"github.com/avvvet/pickup-services/internal/apisvc/payment"
	"github.com/avvvet/pickup-services/internal/apisvc/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingGateway captures notifications for assertions.
type recordingGateway struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	UserIDs []int64
	Note    notify.Notification
}

func (g *recordingGateway) SendToUser(userID int64, n notify.Notification) {
	g.SendToMultipleUsers([]int64{userID}, n)
}

func (g *recordingGateway) SendToMultipleUsers(userIDs []int64, n notify.Notification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentNotification{UserIDs: userIDs, Note: n})
}

func (g *recordingGateway) byType(t string) []sentNotification {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentNotification
	for _, s := range g.sent {
		if s.Note.Data["type"] == t {
			out = append(out, s)
		}
	}
	return out
}

func newTestService(t *testing.T) (*GameService, *store.Memory, *recordingGateway) {
	t.Helper()
	mem := store.NewMemory()
	gw := &recordingGateway{}
	registry := payment.NewRegistry(payment.NewMock())
	tokens := NewTokenIssuer("test-secret", 15*time.Minute)
	svc := NewGameService(mem, registry, payment.ProviderMock, gw, tokens)
	return svc, mem, gw
}

func validSpec(hostID int64) CreateGameSpec {
	start := time.Now().Add(2 * time.Hour)
	return CreateGameSpec{
		HostID:            hostID,
		FieldID:           7,
		Sport:             "futsal",
		SkillLevel:        "intermediate",
		StartTime:         start,
		EndTime:           start.Add(time.Hour),
		MinPlayers:        2,
		MaxPlayers:        4,
		PricePerPlayerPkr: decimal.NewFromInt(500),
	}
}

// joinAndConfirm runs the full intent + webhook settlement for one user.
func joinAndConfirm(t *testing.T, svc *GameService, gameID, userID int64) *models.GamePayment {
	t.Helper()
	ctx := context.Background()

	p, err := svc.RequestJoinIntent(ctx, gameID, userID, "", fmt.Sprintf("key-%d-%d", gameID, userID))
	require.NoError(t, err)

	evt := &payment.WebhookEvent{
		EventID:   fmt.Sprintf("evt-%d-%d", gameID, userID),
		EventType: "payment.succeeded",
		PaymentID: p.ID,
		Status:    models.PaymentStatusSucceeded,
	}
	dup, err := svc.HandleWebhook(ctx, payment.ProviderMock, []byte("{}"), evt)
	require.NoError(t, err)
	require.False(t, dup)
	return p
}

func TestCreateGameValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateGameSpec)
	}{
		{"min players below two", func(s *CreateGameSpec) { s.MinPlayers = 1 }},
		{"max below min", func(s *CreateGameSpec) { s.MaxPlayers = 1 }},
		{"zero price", func(s *CreateGameSpec) { s.PricePerPlayerPkr = decimal.Zero }},
		{"negative price", func(s *CreateGameSpec) { s.PricePerPlayerPkr = decimal.NewFromInt(-10) }},
		{"missing sport", func(s *CreateGameSpec) { s.Sport = "" }},
		{"end before start", func(s *CreateGameSpec) { s.EndTime = s.StartTime.Add(-time.Hour) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSpec(1)
			tc.mutate(&spec)
			_, err := svc.CreateGame(ctx, spec)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateGameEnrollsHost(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	assert.Equal(t, models.GameStatusOpen, game.Status)
	assert.Equal(t, 1, game.CurrentPlayers)

	players, err := mem.GetPlayersByGameID(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, int64(1), players[0].UserID)
	assert.True(t, players[0].IsHost)

	// host pays nothing
	_, err = mem.GetPaymentForUser(ctx, game.ID, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRequestJoinIntentIdempotentReplay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	first, err := svc.RequestJoinIntent(ctx, game.ID, 2, "", "idem-1")
	require.NoError(t, err)

	second, err := svc.RequestJoinIntent(ctx, game.ID, 2, "", "idem-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ProviderRef, second.ProviderRef)
}

func TestRequestJoinIntentErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	_, err = svc.RequestJoinIntent(ctx, game.ID, 2, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RequestJoinIntent(ctx, 9999, 2, "", "k1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.CancelGameForReason(ctx, game.ID, "host changed plans"))
	_, err = svc.RequestJoinIntent(ctx, game.ID, 2, "", "k2")
	assert.ErrorIs(t, err, store.ErrGameCancelled)
}

func TestJoinFlowStatusTransitions(t *testing.T) {
	svc, mem, gw := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	// second player confirms: min reached, open -> confirmed
	joinAndConfirm(t, svc, game.ID, 2)
	g, err := mem.GetGameByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusConfirmed, g.Status)
	assert.Equal(t, 2, g.CurrentPlayers)

	joinAndConfirm(t, svc, game.ID, 3)
	g, _ = mem.GetGameByID(ctx, game.ID)
	assert.Equal(t, models.GameStatusConfirmed, g.Status)

	// fourth player fills the game
	joinAndConfirm(t, svc, game.ID, 4)
	g, _ = mem.GetGameByID(ctx, game.ID)
	assert.Equal(t, models.GameStatusFilled, g.Status)
	assert.Equal(t, 4, g.CurrentPlayers)

	// everyone hears about the fill
	filled := gw.byType("game_filled")
	require.Len(t, filled, 1)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, filled[0].UserIDs)

	// a fifth join attempt bounces
	_, err = svc.RequestJoinIntent(ctx, game.ID, 5, "", "late-key")
	assert.ErrorIs(t, err, store.ErrGameFull)
}

func TestConfirmPaymentNotifiesHost(t *testing.T) {
	svc, _, gw := newTestService(t)

	game, err := svc.CreateGame(context.Background(), validSpec(1))
	require.NoError(t, err)

	joinAndConfirm(t, svc, game.ID, 2)

	joined := gw.byType("player_joined")
	require.Len(t, joined, 1)
	assert.Equal(t, []int64{1}, joined[0].UserIDs)
}

func TestWebhookDedup(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	p, err := svc.RequestJoinIntent(ctx, game.ID, 2, "", "dedup-key")
	require.NoError(t, err)

	evt := &payment.WebhookEvent{
		EventID:   "evt_1",
		EventType: "payment.succeeded",
		PaymentID: p.ID,
		Status:    models.PaymentStatusSucceeded,
	}

	dup, err := svc.HandleWebhook(ctx, payment.ProviderMock, []byte("{}"), evt)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = svc.HandleWebhook(ctx, payment.ProviderMock, []byte("{}"), evt)
	require.NoError(t, err)
	assert.True(t, dup)

	g, err := mem.GetGameByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, g.CurrentPlayers, "replayed delivery must not double-seat")
}

func TestConfirmPaymentFailedLeavesRoster(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	p, err := svc.RequestJoinIntent(ctx, game.ID, 2, "", "fail-key")
	require.NoError(t, err)

	evt := &payment.WebhookEvent{
		EventID:   "evt_fail",
		EventType: "payment.failed",
		PaymentID: p.ID,
		Status:    models.PaymentStatusFailed,
	}
	_, err = svc.HandleWebhook(ctx, payment.ProviderMock, []byte("{}"), evt)
	require.NoError(t, err)

	g, err := mem.GetGameByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, g.CurrentPlayers)

	players, _ := mem.GetPlayersByGameID(ctx, game.ID)
	assert.Len(t, players, 1)
}

func TestCancelPlayerSpotWithoutPayment(t *testing.T) {
	svc, _, _ := newTestService(t)

	game, err := svc.CreateGame(context.Background(), validSpec(1))
	require.NoError(t, err)

	err = svc.CancelPlayerSpot(context.Background(), game.ID, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelPlayerSpotRefundsAndOffersWaitlist(t *testing.T) {
	svc, mem, gw := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	// fill the game: players 2, 3, 4
	p2 := joinAndConfirm(t, svc, game.ID, 2)
	joinAndConfirm(t, svc, game.ID, 3)
	joinAndConfirm(t, svc, game.ID, 4)

	// user 5 waits
	_, err = svc.RequestWaitlist(ctx, game.ID, 5)
	require.NoError(t, err)

	require.NoError(t, svc.CancelPlayerSpot(ctx, game.ID, 2))

	g, err := mem.GetGameByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, g.CurrentPlayers)

	refunds, err := mem.ListRefundsByPaymentID(ctx, p2.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, models.RefundStatusSucceeded, refunds[0].Status, "mock adapter settles refunds synchronously")
	assert.True(t, refunds[0].AmountPkr.Equal(decimal.NewFromInt(500)))

	updated, err := mem.GetPaymentByID(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, updated.Status)

	// the waitlist head got a join token
	offers := gw.byType("waitlist_spot_open")
	require.Len(t, offers, 1)
	assert.Equal(t, []int64{5}, offers[0].UserIDs)
	assert.NotEmpty(t, offers[0].Note.Data["join_token"])
}

func TestJoinFromWaitlistConsumesToken(t *testing.T) {
	svc, mem, gw := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)
	joinAndConfirm(t, svc, game.ID, 2)
	joinAndConfirm(t, svc, game.ID, 3)
	joinAndConfirm(t, svc, game.ID, 4)

	_, err = svc.RequestWaitlist(ctx, game.ID, 5)
	require.NoError(t, err)

	require.NoError(t, svc.CancelPlayerSpot(ctx, game.ID, 3))

	offers := gw.byType("waitlist_spot_open")
	require.Len(t, offers, 1)
	token := offers[0].Note.Data["join_token"]

	p, err := svc.JoinFromWaitlist(ctx, game.ID, 5, token)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, p.Status)

	g, err := mem.GetGameByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, g.CurrentPlayers)
	assert.Equal(t, 0, g.WaitlistCount)
	assert.Equal(t, models.GameStatusFilled, g.Status)

	// the token is single use
	_, err = svc.JoinFromWaitlist(ctx, game.ID, 5, token)
	assert.Error(t, err)
}

func TestJoinFromWaitlistRejectsForeignToken(t *testing.T) {
	svc, _, gw := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)
	joinAndConfirm(t, svc, game.ID, 2)
	joinAndConfirm(t, svc, game.ID, 3)
	joinAndConfirm(t, svc, game.ID, 4)

	_, err = svc.RequestWaitlist(ctx, game.ID, 5)
	require.NoError(t, err)
	require.NoError(t, svc.CancelPlayerSpot(ctx, game.ID, 2))

	offers := gw.byType("waitlist_spot_open")
	require.Len(t, offers, 1)
	token := offers[0].Note.Data["join_token"]

	// user 6 cannot ride on user 5's token
	_, err = svc.JoinFromWaitlist(ctx, game.ID, 6, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.JoinFromWaitlist(ctx, game.ID, 5, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequestWaitlistRequiresFullGame(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	_, err = svc.RequestWaitlist(ctx, game.ID, 5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelGameOnlyHost(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	err = svc.CancelGame(ctx, game.ID, 99, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelGameRefundsEverySettledPayment(t *testing.T) {
	svc, mem, gw := newTestService(t)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)

	p2 := joinAndConfirm(t, svc, game.ID, 2)
	p3 := joinAndConfirm(t, svc, game.ID, 3)

	require.NoError(t, svc.CancelGame(ctx, game.ID, 1, "rain"))

	g, err := mem.GetGameByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCancelled, g.Status)

	for _, pid := range []int64{p2.ID, p3.ID} {
		refunds, err := mem.ListRefundsByPaymentID(ctx, pid)
		require.NoError(t, err)
		assert.Len(t, refunds, 1)
	}

	cancelled := gw.byType("game_cancelled")
	require.Len(t, cancelled, 1)
	assert.ElementsMatch(t, []int64{1, 2, 3}, cancelled[0].UserIDs)

	// a filled game is never cancelled
	game2, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)
	joinAndConfirm(t, svc, game2.ID, 2)
	joinAndConfirm(t, svc, game2.ID, 3)
	joinAndConfirm(t, svc, game2.ID, 4)
	err = svc.CancelGame(ctx, game2.ID, 1, "")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestSearchGamesExcludesBlockedHosts(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateGame(ctx, validSpec(1))
	require.NoError(t, err)
	spec := validSpec(2)
	spec.Sport = "cricket"
	_, err = svc.CreateGame(ctx, spec)
	require.NoError(t, err)

	require.NoError(t, mem.BlockUser(ctx, 10, 2))

	games, err := svc.SearchGames(ctx, 10, "", "")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, int64(1), games[0].HostID)

	games, err = svc.SearchGames(ctx, 11, "cricket", "")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "cricket", games[0].Sport)
}
