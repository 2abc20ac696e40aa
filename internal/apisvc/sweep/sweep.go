package sweep

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/avvvet/pickup-services/internal/apisvc/notify"
	"github.com/avvvet/pickup-services/internal/apisvc/service"
	"github.com/avvvet/pickup-services/internal/apisvc/store"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	// Interval between runs.
	Interval time.Duration
	// StartupDelay lets the rest of the process finish booting first.
	StartupDelay time.Duration
	// CancelWindow: games starting within this window are checked for the
	// minimum-player rule.
	CancelWindow time.Duration
	// EventRetention bounds the webhook receipt log.
	EventRetention time.Duration
	// PendingIntentTTL: pending payments older than this are expired so the
	// implicit capacity hold is released.
	PendingIntentTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Minute,
		StartupDelay:     10 * time.Second,
		CancelWindow:     30 * time.Minute,
		EventRetention:   14 * 24 * time.Hour,
		PendingIntentTTL: 30 * time.Minute,
	}
}

// ConfigFromEnv overlays SWEEP_INTERVAL_MIN and PENDING_INTENT_TTL_MIN on the
// defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("SWEEP_INTERVAL_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Interval = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("PENDING_INTENT_TTL_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PendingIntentTTL = time.Duration(n) * time.Minute
		}
	}
	return cfg
}

// Runner is the background housekeeping loop: it cancels underfilled games
// near their start time, purges aged webhook receipts and expires stale
// pending intents. It never crashes the host process.
type Runner struct {
	store  store.Store
	engine *service.GameService
	ops    *notify.OpsNotifier
	cfg    Config
}

func NewRunner(st store.Store, engine *service.GameService, ops *notify.OpsNotifier, cfg Config) *Runner {
	return &Runner{store: st, engine: engine, ops: ops, cfg: cfg}
}

// Start launches the loop and returns immediately. The loop stops when ctx is
// cancelled.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		select {
		case <-time.After(r.cfg.StartupDelay):
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		log.Infof("sweep running every %s", r.cfg.Interval)
		for {
			r.runProtected(ctx)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				log.Info("sweep stopped")
				return
			}
		}
	}()
}

func (r *Runner) runProtected(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("sweep panicked: %v", rec)
		}
	}()
	r.RunOnce(ctx)
}

// RunOnce executes one full sweep pass.
func (r *Runner) RunOnce(ctx context.Context) {
	r.cancelUnderfilled(ctx)
	r.purgeEvents(ctx)
	r.expirePendingIntents(ctx)
}

// cancelUnderfilled cancels every open/confirmed game starting within the
// window that has fewer than min_players. Each game is an independent unit of
// work: an error is logged and the sweep moves on.
func (r *Runner) cancelUnderfilled(ctx context.Context) {
	now := time.Now()
	threshold := now.Add(r.cfg.CancelWindow)

	games, err := r.store.ListGamesStartingBetween(ctx, now, threshold,
		[]string{models.GameStatusOpen, models.GameStatusConfirmed})
	if err != nil {
		log.Errorf("sweep: list upcoming games: %v", err)
		return
	}

	for _, game := range games {
		if game.CurrentPlayers >= game.MinPlayers {
			continue
		}
		reason := fmt.Sprintf("not enough players (%d joined, %d needed)",
			game.CurrentPlayers, game.MinPlayers)
		if err := r.engine.CancelGameForReason(ctx, game.ID, reason); err != nil {
			log.Errorf("sweep: cancel game %d: %v", game.ID, err)
			continue
		}
		log.Infof("sweep: cancelled underfilled game %d (%s)", game.ID, reason)
		r.ops.SendAlert(fmt.Sprintf(
			"*GAME AUTO-CANCELLED*\n\nGame: %d (%s)\nStart: %s\nPlayers: %d/%d minimum",
			game.ID, game.Sport, game.StartTime.Format(time.RFC822),
			game.CurrentPlayers, game.MinPlayers))
	}
}

func (r *Runner) purgeEvents(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.EventRetention)
	n, err := r.store.PurgePaymentEventsBefore(ctx, cutoff)
	if err != nil {
		log.Errorf("sweep: purge payment events: %v", err)
		return
	}
	if n > 0 {
		log.Infof("sweep: purged %d payment events older than %s", n, cutoff.Format(time.RFC3339))
	}
}

func (r *Runner) expirePendingIntents(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.PendingIntentTTL)
	n, err := r.store.ExpirePendingPayments(ctx, cutoff)
	if err != nil {
		log.Errorf("sweep: expire pending intents: %v", err)
		return
	}
	if n > 0 {
		log.Infof("sweep: expired %d stale pending intents", n)
	}
}
