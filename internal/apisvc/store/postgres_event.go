package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
)

// RecordPaymentEvent inserts the webhook receipt, relying on the unique
// event_id index for deduplication. A conflicting insert is the duplicate
// delivery signal, not an error.
func (s *Postgres) RecordPaymentEvent(ctx context.Context, e *models.PaymentEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO payment_events (event_id, provider, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`, e.EventID, e.Provider, e.EventType, e.Payload)
	if err != nil {
		return false, translatePgError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) PurgePaymentEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM payment_events WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge payment events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) BlockUser(ctx context.Context, userID, blockedUserID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_blocks (user_id, blocked_user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, blocked_user_id) DO NOTHING
	`, userID, blockedUserID)
	if err != nil {
		return translatePgError(err)
	}
	return nil
}

func (s *Postgres) ListBlockedUsers(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT blocked_user_id FROM user_blocks WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}
	defer rows.Close()

	var blocked []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		blocked = append(blocked, id)
	}
	return blocked, rows.Err()
}
