package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/smashpoint/league-system/models"
)

var (
	ErrGameResultConflict     = errors.New("game number already recorded for match")
	ErrGameResultMatchInvalid = errors.New("game result match conflict or invalid")
)

type GameResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, result *models.GameResult) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.GameResult, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.GameResult, error)
}

type postgresGameResultRepository struct {
	db *sql.DB
}

func NewPostgresGameResultRepository(db *sql.DB) GameResultRepository {
	return &postgresGameResultRepository{db: db}
}

func (r *postgresGameResultRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGameResultRepository) Create(ctx context.Context, exec SQLExecutor, result *models.GameResult) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO game_results (match_id, game_number, slot1_score, slot2_score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		result.MatchID,
		result.GameNumber,
		result.Slot1Score,
		result.Slot2Score,
	).Scan(&result.ID, &result.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrGameResultConflict
			case "23503": // foreign_key_violation
				return ErrGameResultMatchInvalid
			}
		}
		return fmt.Errorf("failed to create game result for match %d: %w", result.MatchID, err)
	}
	return nil
}

func (r *postgresGameResultRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.GameResult, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, game_number, slot1_score, slot2_score, created_at
		FROM game_results
		WHERE match_id = $1
		ORDER BY game_number ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list game results for match %d: %w", matchID, err)
	}
	defer rows.Close()

	return collectGameResults(rows)
}

func (r *postgresGameResultRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.GameResult, error) {
	query := `
		SELECT g.id, g.match_id, g.game_number, g.slot1_score, g.slot2_score, g.created_at
		FROM game_results g
		JOIN matches m ON m.id = g.match_id
		WHERE m.tournament_id = $1
		ORDER BY g.match_id ASC, g.game_number ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list game results for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	return collectGameResults(rows)
}

func collectGameResults(rows *sql.Rows) ([]models.GameResult, error) {
	results := make([]models.GameResult, 0)
	for rows.Next() {
		var g models.GameResult
		err := rows.Scan(&g.ID, &g.MatchID, &g.GameNumber, &g.Slot1Score, &g.Slot2Score, &g.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game result row: %w", err)
		}
		results = append(results, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during game result rows iteration: %w", err)
	}
	return results, nil
}
