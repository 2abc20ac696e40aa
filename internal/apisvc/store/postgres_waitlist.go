package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/jackc/pgx/v5"
)

func scanWaitlist(row pgx.Row) (*models.GameWaitlist, error) {
	w := &models.GameWaitlist{}
	err := row.Scan(&w.ID, &w.GameID, &w.UserID, &w.TokenID, &w.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan waitlist entry: %w", err)
	}
	return w, nil
}

func (s *Postgres) EnqueueWaitlist(ctx context.Context, gameID, userID int64) (*models.GameWaitlist, error) {
	var entry *models.GameWaitlist
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = scanWaitlist(tx.QueryRow(ctx, `
			INSERT INTO game_waitlist (game_id, user_id, token_id)
			VALUES ($1, $2, '')
			RETURNING id, game_id, user_id, token_id, joined_at
		`, gameID, userID))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyJoined
			}
			return translatePgError(err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE games SET waitlist_count = waitlist_count + 1, updated_at = now()
			WHERE id = $1
		`, gameID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Postgres) RemoveFromWaitlist(ctx context.Context, gameID, userID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM game_waitlist WHERE game_id = $1 AND user_id = $2
		`, gameID, userID)
		if err != nil {
			return translatePgError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		_, err = tx.Exec(ctx, `
			UPDATE games SET waitlist_count = waitlist_count - 1, updated_at = now()
			WHERE id = $1 AND waitlist_count > 0
		`, gameID)
		return err
	})
}

func (s *Postgres) PeekWaitlist(ctx context.Context, gameID int64) (*models.GameWaitlist, error) {
	return scanWaitlist(s.db.QueryRow(ctx, `
		SELECT id, game_id, user_id, token_id, joined_at
		FROM game_waitlist
		WHERE game_id = $1
		ORDER BY joined_at, id
		LIMIT 1
	`, gameID))
}

func (s *Postgres) SetWaitlistToken(ctx context.Context, gameID, userID int64, tokenID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE game_waitlist SET token_id = $3
		WHERE game_id = $1 AND user_id = $2
	`, gameID, userID, tokenID)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PromoteFromWaitlist consumes the entry and seats the player in one
// transaction. The token jti must match what was stored when the user was
// notified; a blank stored jti means no token was ever issued.
func (s *Postgres) PromoteFromWaitlist(ctx context.Context, gameID, userID int64, tokenID string) (*models.Game, error) {
	var updated *models.Game
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		game, err := scanGame(tx.QueryRow(ctx,
			`SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, gameID))
		if err != nil {
			return err
		}
		if game.Status == models.GameStatusCancelled || game.Status == models.GameStatusCompleted {
			return ErrGameCancelled
		}
		if game.CurrentPlayers >= game.MaxPlayers {
			return ErrGameFull
		}

		entry, err := scanWaitlist(tx.QueryRow(ctx, `
			SELECT id, game_id, user_id, token_id, joined_at
			FROM game_waitlist
			WHERE game_id = $1 AND user_id = $2
			FOR UPDATE
		`, gameID, userID))
		if err != nil {
			return err
		}
		if entry.TokenID == "" || entry.TokenID != tokenID {
			return ErrTokenMismatch
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM game_waitlist WHERE id = $1`, entry.ID); err != nil {
			return translatePgError(err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO game_players (game_id, user_id, is_host)
			VALUES ($1, $2, false)
		`, gameID, userID); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyJoined
			}
			return translatePgError(err)
		}

		count := game.CurrentPlayers + 1
		status := nextStatus(game.Status, count, game.MinPlayers, game.MaxPlayers)
		updated, err = scanGame(tx.QueryRow(ctx, `
			UPDATE games
			SET current_players = $2,
			    waitlist_count = waitlist_count - 1,
			    status = $3,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+gameColumns, gameID, count, status))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
