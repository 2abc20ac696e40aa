package sweep

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/avvvet/pickup-services/internal/apisvc/notify"
	"github.com/avvvet/pickup-services/internal/apisvc/payment"
	"github.com/avvvet/pickup-services/internal/apisvc/service"
	"github.com/avvvet/pickup-services/internal/apisvc/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, st store.Store, cfg Config) (*Runner, *service.GameService) {
	t.Helper()
	registry := payment.NewRegistry(payment.NewMock())
	tokens := service.NewTokenIssuer("test-secret", 15*time.Minute)
	engine := service.NewGameService(st, registry, payment.ProviderMock, notify.NewLogGateway(), tokens)
	return NewRunner(st, engine, nil, cfg), engine
}

func createGame(t *testing.T, mem *store.Memory, hostID int64, startIn time.Duration, min, max int) *models.Game {
	t.Helper()
	start := time.Now().Add(startIn)
	g, err := mem.CreateGame(context.Background(), &models.Game{
		HostID:            hostID,
		FieldID:           1,
		Sport:             "futsal",
		SkillLevel:        "casual",
		StartTime:         start,
		EndTime:           start.Add(time.Hour),
		MinPlayers:        min,
		MaxPlayers:        max,
		PricePerPlayerPkr: decimal.NewFromInt(400),
	})
	require.NoError(t, err)
	return g
}

func addPaidPlayer(t *testing.T, mem *store.Memory, gameID, userID int64, status string) *models.GamePayment {
	t.Helper()
	ctx := context.Background()
	if status == models.PaymentStatusSucceeded {
		_, err := mem.AddPlayer(ctx, gameID, userID)
		require.NoError(t, err)
	}
	p, err := mem.CreatePayment(ctx, &models.GamePayment{
		GameID:         gameID,
		UserID:         userID,
		AmountPkr:      decimal.NewFromInt(400),
		Provider:       payment.ProviderMock,
		ProviderRef:    fmt.Sprintf("ref-%d-%d", gameID, userID),
		IdempotencyKey: fmt.Sprintf("key-%d-%d", gameID, userID),
		Status:         status,
	})
	require.NoError(t, err)
	return p
}

func TestSweepCancelsUnderfilledGames(t *testing.T) {
	mem := store.NewMemory()
	r, _ := newTestRunner(t, mem, DefaultConfig())
	ctx := context.Background()

	// starts in 20 minutes with 2 of 4 needed players
	underfilled := createGame(t, mem, 1, 20*time.Minute, 4, 8)
	paid := addPaidPlayer(t, mem, underfilled.ID, 2, models.PaymentStatusSucceeded)
	pending := addPaidPlayer(t, mem, underfilled.ID, 3, models.PaymentStatusPending)

	// same window but already has its minimum
	healthy := createGame(t, mem, 4, 25*time.Minute, 2, 4)
	addPaidPlayer(t, mem, healthy.ID, 5, models.PaymentStatusSucceeded)

	// underfilled but outside the window
	farOff := createGame(t, mem, 6, 3*time.Hour, 4, 8)

	r.RunOnce(ctx)

	g, err := mem.GetGameByID(ctx, underfilled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCancelled, g.Status)

	g, err = mem.GetGameByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusConfirmed, g.Status)

	g, err = mem.GetGameByID(ctx, farOff.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusOpen, g.Status)

	// exactly one refund for the settled payment, none for the pending one
	refunds, err := mem.ListRefundsByPaymentID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1)

	refunds, err = mem.ListRefundsByPaymentID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Empty(t, refunds)

	// a second pass refunds nothing twice
	r.RunOnce(ctx)
	refunds, err = mem.ListRefundsByPaymentID(ctx, paid.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1)
}

type failingStore struct {
	store.Store
	failGameID int64
}

func (f *failingStore) ListPaymentsByGameAndStatus(ctx context.Context, gameID int64, status string) ([]*models.GamePayment, error) {
	if gameID == f.failGameID {
		return nil, errors.New("boom")
	}
	return f.Store.ListPaymentsByGameAndStatus(ctx, gameID, status)
}

func TestSweepIsolatesPerGameFailures(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	// broken sorts first by start time
	broken := createGame(t, mem, 10, 15*time.Minute, 4, 8)
	fine := createGame(t, mem, 11, 25*time.Minute, 4, 8)

	fs := &failingStore{Store: mem, failGameID: broken.ID}
	r, _ := newTestRunner(t, fs, DefaultConfig())

	r.RunOnce(ctx)

	// the broken game still got its status flip before the refund step failed
	g, err := mem.GetGameByID(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCancelled, g.Status)

	// the failure did not stop the rest of the pass
	g, err = mem.GetGameByID(ctx, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCancelled, g.Status)
}

func TestSweepPurgesAgedEvents(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	created, err := mem.RecordPaymentEvent(ctx, &models.PaymentEvent{
		EventID: "evt_old", Provider: "mock", EventType: "payment.succeeded", Payload: []byte("{}"),
	})
	require.NoError(t, err)
	require.True(t, created)

	cfg := DefaultConfig()
	r, _ := newTestRunner(t, mem, cfg)
	r.RunOnce(ctx)

	// well inside retention, the receipt survives
	created, err = mem.RecordPaymentEvent(ctx, &models.PaymentEvent{
		EventID: "evt_old", Provider: "mock", EventType: "payment.succeeded", Payload: []byte("{}"),
	})
	require.NoError(t, err)
	assert.False(t, created)

	cfg.EventRetention = 0
	r, _ = newTestRunner(t, mem, cfg)
	r.RunOnce(ctx)

	created, err = mem.RecordPaymentEvent(ctx, &models.PaymentEvent{
		EventID: "evt_old", Provider: "mock", EventType: "payment.succeeded", Payload: []byte("{}"),
	})
	require.NoError(t, err)
	assert.True(t, created, "aged receipts are purged")
}

func TestSweepExpiresStalePendingIntents(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	g := createGame(t, mem, 1, 3*time.Hour, 2, 4)
	p := addPaidPlayer(t, mem, g.ID, 2, models.PaymentStatusPending)

	cfg := DefaultConfig()
	r, _ := newTestRunner(t, mem, cfg)
	r.RunOnce(ctx)

	got, err := mem.GetPaymentByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.Status, "fresh intents stay pending")

	cfg.PendingIntentTTL = 0
	r, _ = newTestRunner(t, mem, cfg)
	r.RunOnce(ctx)

	got, err = mem.GetPaymentByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.Status)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL_MIN", "2")
	t.Setenv("PENDING_INTENT_TTL_MIN", "45")

	cfg := ConfigFromEnv()
	assert.Equal(t, 2*time.Minute, cfg.Interval)
	assert.Equal(t, 45*time.Minute, cfg.PendingIntentTTL)
	assert.Equal(t, 30*time.Minute, cfg.CancelWindow)
}
