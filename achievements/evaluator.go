package achievements

import (
	"context"
	"log/slog"

	"github.com/smashpoint/league-system/repositories"
)

// Evaluator awards badges after rating- or stat-affecting events. It is
// the services.AchievementSink collaborator: callers fire and forget,
// so failures are logged here and never propagate.
type Evaluator struct {
	playerRepo      repositories.PlayerRepository
	achievementRepo repositories.AchievementRepository
	logger          *slog.Logger
}

func NewEvaluator(
	playerRepo repositories.PlayerRepository,
	achievementRepo repositories.AchievementRepository,
	logger *slog.Logger,
) *Evaluator {
	return &Evaluator{
		playerRepo:      playerRepo,
		achievementRepo: achievementRepo,
		logger:          logger,
	}
}

func (e *Evaluator) PlayerStatsChanged(ctx context.Context, playerIDs []int) {
	for _, id := range playerIDs {
		e.evaluate(ctx, id, statBadges)
	}
}

func (e *Evaluator) TournamentCompleted(ctx context.Context, tournamentID int, winnerPlayerIDs []int) {
	for _, id := range winnerPlayerIDs {
		e.evaluate(ctx, id, titleBadges)
	}
}

func (e *Evaluator) evaluate(ctx context.Context, playerID int, badges []Badge) {
	player, err := e.playerRepo.GetByID(ctx, nil, playerID)
	if err != nil {
		e.logger.Error("achievement evaluation skipped", "player_id", playerID, "error", err)
		return
	}
	for _, badge := range badges {
		if !badge.Qualifies(player) {
			continue
		}
		unlocked, err := e.achievementRepo.Unlock(ctx, nil, playerID, badge.Code)
		if err != nil {
			e.logger.Error("failed to unlock achievement", "player_id", playerID, "code", badge.Code, "error", err)
			continue
		}
		if unlocked {
			e.logger.Info("achievement unlocked", "player_id", playerID, "code", badge.Code)
		}
	}
}
