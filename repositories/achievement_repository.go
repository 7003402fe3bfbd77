package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smashpoint/league-system/models"
)

type AchievementRepository interface {
	Unlock(ctx context.Context, exec SQLExecutor, playerID int, code string) (bool, error)
	ListByPlayer(ctx context.Context, playerID int) ([]models.PlayerAchievement, error)
}

type postgresAchievementRepository struct {
	db *sql.DB
}

func NewPostgresAchievementRepository(db *sql.DB) AchievementRepository {
	return &postgresAchievementRepository{db: db}
}

func (r *postgresAchievementRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// Unlock is idempotent. It reports true only on the first unlock, which
// is the signal to notify the player.
func (r *postgresAchievementRepository) Unlock(ctx context.Context, exec SQLExecutor, playerID int, code string) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO player_achievements (player_id, code)
		VALUES ($1, $2)
		ON CONFLICT (player_id, code) DO NOTHING`

	result, err := executor.ExecContext(ctx, query, playerID, code)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement %s for player %d: %w", code, playerID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *postgresAchievementRepository) ListByPlayer(ctx context.Context, playerID int) ([]models.PlayerAchievement, error) {
	query := `
		SELECT id, player_id, code, unlocked_at
		FROM player_achievements
		WHERE player_id = $1
		ORDER BY unlocked_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements for player %d: %w", playerID, err)
	}
	defer rows.Close()

	achievements := make([]models.PlayerAchievement, 0)
	for rows.Next() {
		var a models.PlayerAchievement
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.Code, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement row: %w", err)
		}
		achievements = append(achievements, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during achievement rows iteration: %w", err)
	}
	return achievements, nil
}
