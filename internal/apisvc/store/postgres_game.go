package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/jackc/pgx/v5"
)

const gameColumns = `id, host_id, field_id, sport, skill_level, start_time, end_time,
	min_players, max_players, price_per_player_pkr, current_players, waitlist_count,
	status, created_at, updated_at`

func scanGame(row pgx.Row) (*models.Game, error) {
	g := &models.Game{}
	err := row.Scan(
		&g.ID,
		&g.HostID,
		&g.FieldID,
		&g.Sport,
		&g.SkillLevel,
		&g.StartTime,
		&g.EndTime,
		&g.MinPlayers,
		&g.MaxPlayers,
		&g.PricePerPlayerPkr,
		&g.CurrentPlayers,
		&g.WaitlistCount,
		&g.Status,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan game: %w", err)
	}
	return g, nil
}

// CreateGame inserts the game and the host membership row in one transaction.
// The host pays nothing, so no payment row is written here.
func (s *Postgres) CreateGame(ctx context.Context, g *models.Game) (*models.Game, error) {
	var created *models.Game
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO games (host_id, field_id, sport, skill_level, start_time, end_time,
				min_players, max_players, price_per_player_pkr, current_players, waitlist_count, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, 0, 'open')
			RETURNING ` + gameColumns
		var err error
		created, err = scanGame(tx.QueryRow(ctx, query,
			g.HostID, g.FieldID, g.Sport, g.SkillLevel, g.StartTime, g.EndTime,
			g.MinPlayers, g.MaxPlayers, g.PricePerPlayerPkr))
		if err != nil {
			return translatePgError(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO game_players (game_id, user_id, is_host)
			VALUES ($1, $2, true)
		`, created.ID, g.HostID)
		if err != nil {
			return translatePgError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Postgres) GetGameByID(ctx context.Context, gameID int64) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	return scanGame(s.db.QueryRow(ctx, query, gameID))
}

func (s *Postgres) SearchOpenGames(ctx context.Context, callerID int64, sport, skillLevel string) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'open'
		  AND ($2 = '' OR sport = $2)
		  AND ($3 = '' OR skill_level = $3)
		  AND host_id NOT IN (SELECT blocked_user_id FROM user_blocks WHERE user_id = $1)
		ORDER BY start_time
	`
	rows, err := s.db.Query(ctx, query, callerID, sport, skillLevel)
	if err != nil {
		return nil, fmt.Errorf("search games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *Postgres) ListGamesStartingBetween(ctx context.Context, from, to time.Time, statuses []string) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE start_time >= $1 AND start_time <= $2 AND status = ANY($3)
		ORDER BY start_time
	`
	rows, err := s.db.Query(ctx, query, from, to, statuses)
	if err != nil {
		return nil, fmt.Errorf("list games by window: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *Postgres) UpdateGameStatus(ctx context.Context, gameID int64, from []string, to string) (*models.Game, error) {
	query := `
		UPDATE games
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + gameColumns
	return scanGame(s.db.QueryRow(ctx, query, gameID, to, from))
}

func (s *Postgres) GetPlayersByGameID(ctx context.Context, gameID int64) ([]*models.GamePlayer, error) {
	query := `
		SELECT id, game_id, user_id, is_host, joined_at
		FROM game_players
		WHERE game_id = $1
		ORDER BY joined_at
	`
	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}
	defer rows.Close()

	var players []*models.GamePlayer
	for rows.Next() {
		var gp models.GamePlayer
		if err := rows.Scan(&gp.ID, &gp.GameID, &gp.UserID, &gp.IsHost, &gp.JoinedAt); err != nil {
			return nil, err
		}
		players = append(players, &gp)
	}
	return players, rows.Err()
}

// AddPlayer locks the game row, checks capacity and joinability, inserts the
// membership row and bumps current_players plus status in the same transaction.
func (s *Postgres) AddPlayer(ctx context.Context, gameID, userID int64) (*models.Game, error) {
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

		_, err = tx.Exec(ctx, `
			INSERT INTO game_players (game_id, user_id, is_host)
			VALUES ($1, $2, false)
		`, gameID, userID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyJoined
			}
			return translatePgError(err)
		}

		count := game.CurrentPlayers + 1
		status := nextStatus(game.Status, count, game.MinPlayers, game.MaxPlayers)
		updated, err = scanGame(tx.QueryRow(ctx, `
			UPDATE games SET current_players = $2, status = $3, updated_at = now()
			WHERE id = $1
			RETURNING `+gameColumns, gameID, count, status))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemovePlayer deletes the membership row and decrements the counter. The
// status is intentionally not recomputed: it never regresses except to
// cancelled.
func (s *Postgres) RemovePlayer(ctx context.Context, gameID, userID int64) (*models.Game, error) {
	var updated *models.Game
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := scanGame(tx.QueryRow(ctx,
			`SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, gameID)); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM game_players WHERE game_id = $1 AND user_id = $2
		`, gameID, userID)
		if err != nil {
			return translatePgError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		updated, err = scanGame(tx.QueryRow(ctx, `
			UPDATE games SET current_players = current_players - 1, updated_at = now()
			WHERE id = $1
			RETURNING `+gameColumns, gameID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func isUniqueViolation(err error) bool {
	translated := translatePgError(err)
	return errors.Is(translated, ErrDuplicateKey)
}

// nextStatus re-evaluates a game's status after the roster grew to count.
// Status only moves forward: a confirmed game stays confirmed below
// max_players, and filled is reached exactly at max_players.
func nextStatus(current string, count, minPlayers, maxPlayers int) string {
	if count >= maxPlayers {
		return models.GameStatusFilled
	}
	if count >= minPlayers {
		return models.GameStatusConfirmed
	}
	return current
}
