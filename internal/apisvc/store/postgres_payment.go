package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, game_id, user_id, amount_pkr, provider, provider_ref,
	idempotency_key, status, redirect_url, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.GamePayment, error) {
	p := &models.GamePayment{}
	err := row.Scan(
		&p.ID,
		&p.GameID,
		&p.UserID,
		&p.AmountPkr,
		&p.Provider,
		&p.ProviderRef,
		&p.IdempotencyKey,
		&p.Status,
		&p.RedirectURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func (s *Postgres) CreatePayment(ctx context.Context, p *models.GamePayment) (*models.GamePayment, error) {
	query := `
		INSERT INTO game_payments (game_id, user_id, amount_pkr, provider, provider_ref,
			idempotency_key, status, redirect_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + paymentColumns
	created, err := scanPayment(s.db.QueryRow(ctx, query,
		p.GameID, p.UserID, p.AmountPkr, p.Provider, p.ProviderRef,
		p.IdempotencyKey, p.Status, p.RedirectURL))
	if err != nil {
		return nil, translatePgError(err)
	}
	return created, nil
}

func (s *Postgres) GetPaymentByID(ctx context.Context, id int64) (*models.GamePayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM game_payments WHERE id = $1`
	return scanPayment(s.db.QueryRow(ctx, query, id))
}

func (s *Postgres) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*models.GamePayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM game_payments WHERE idempotency_key = $1`
	return scanPayment(s.db.QueryRow(ctx, query, key))
}

func (s *Postgres) GetPaymentByProviderRef(ctx context.Context, providerRef string) (*models.GamePayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM game_payments WHERE provider_ref = $1`
	return scanPayment(s.db.QueryRow(ctx, query, providerRef))
}

func (s *Postgres) GetPaymentForUser(ctx context.Context, gameID, userID int64) (*models.GamePayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM game_payments
		WHERE game_id = $1 AND user_id = $2 AND status <> 'refunded'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(s.db.QueryRow(ctx, query, gameID, userID))
}

func (s *Postgres) UpdatePaymentStatus(ctx context.Context, id int64, from []string, to string) (*models.GamePayment, error) {
	query := `
		UPDATE game_payments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + paymentColumns
	return scanPayment(s.db.QueryRow(ctx, query, id, to, from))
}

func (s *Postgres) ListPaymentsByGameAndStatus(ctx context.Context, gameID int64, status string) ([]*models.GamePayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM game_payments
		WHERE game_id = $1 AND status = $2
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, gameID, status)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.GamePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *Postgres) ExpirePendingPayments(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE game_payments
		SET status = 'failed', updated_at = now()
		WHERE status = 'pending' AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) CreateRefund(ctx context.Context, r *models.Refund) (*models.Refund, error) {
	query := `
		INSERT INTO refunds (game_payment_id, amount_pkr, reason, status, provider_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, game_payment_id, amount_pkr, reason, status, provider_ref, created_at
	`
	created := &models.Refund{}
	err := s.db.QueryRow(ctx, query,
		r.GamePaymentID, r.AmountPkr, r.Reason, r.Status, r.ProviderRef,
	).Scan(
		&created.ID,
		&created.GamePaymentID,
		&created.AmountPkr,
		&created.Reason,
		&created.Status,
		&created.ProviderRef,
		&created.CreatedAt,
	)
	if err != nil {
		return nil, translatePgError(err)
	}
	return created, nil
}

func (s *Postgres) ListRefundsByPaymentID(ctx context.Context, gamePaymentID int64) ([]*models.Refund, error) {
	query := `
		SELECT id, game_payment_id, amount_pkr, reason, status, provider_ref, created_at
		FROM refunds
		WHERE game_payment_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, gamePaymentID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*models.Refund
	for rows.Next() {
		var r models.Refund
		if err := rows.Scan(&r.ID, &r.GamePaymentID, &r.AmountPkr, &r.Reason,
			&r.Status, &r.ProviderRef, &r.CreatedAt); err != nil {
			return nil, err
		}
		refunds = append(refunds, &r)
	}
	return refunds, rows.Err()
}
