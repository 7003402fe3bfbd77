package services

import (
	"context"

	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/repositories"
)

// StatsService backs the club dashboard: headline counters and the
// rating leaderboard.
type StatsService interface {
	ClubStats(ctx context.Context) (*models.ClubStats, error)
	Leaderboard(ctx context.Context, limit, offset int) ([]*models.Player, error)
}

type statsService struct {
	statsRepo  repositories.StatsRepository
	playerRepo repositories.PlayerRepository
}

func NewStatsService(statsRepo repositories.StatsRepository, playerRepo repositories.PlayerRepository) StatsService {
	return &statsService{statsRepo: statsRepo, playerRepo: playerRepo}
}

func (s *statsService) ClubStats(ctx context.Context) (*models.ClubStats, error) {
	return s.statsRepo.ClubStats(ctx)
}

// Leaderboard lists players by rating. The repository's default order
// is rating descending already.
func (s *statsService) Leaderboard(ctx context.Context, limit, offset int) ([]*models.Player, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.playerRepo.List(ctx, repositories.PlayerFilter{Limit: limit, Offset: offset})
}
