package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smashpoint/league-system/models"
)

type StatsRepository interface {
	ClubStats(ctx context.Context) (*models.ClubStats, error)
}

type postgresStatsRepository struct {
	db *sql.DB
}

func NewPostgresStatsRepository(db *sql.DB) StatsRepository {
	return &postgresStatsRepository{db: db}
}

// ClubStats gathers the dashboard counters in one round trip.
func (r *postgresStatsRepository) ClubStats(ctx context.Context) (*models.ClubStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM players),
			(SELECT COUNT(*) FROM tournaments),
			(SELECT COUNT(*) FROM tournaments WHERE status IN ($1, $2)),
			(SELECT COUNT(*) FROM matches WHERE status IN ($3, $4)),
			(SELECT COUNT(*) FROM challenges WHERE status = $5)`

	stats := &models.ClubStats{}
	err := r.db.QueryRowContext(ctx, query,
		models.StatusEnrollment,
		models.StatusInProgress,
		models.MatchStatusCompleted,
		models.MatchStatusWalkover,
		models.ChallengeCompleted,
	).Scan(
		&stats.PlayersTotal,
		&stats.TournamentsTotal,
		&stats.ActiveTournaments,
		&stats.MatchesTotal,
		&stats.ChallengesTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load club stats: %w", err)
	}
	return stats, nil
}
