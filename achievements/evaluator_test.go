package achievements

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/repositories"
)

type stubPlayerRepo struct {
	repositories.PlayerRepository
	players map[int]*models.Player
}

func (r *stubPlayerRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Player, error) {
	player, ok := r.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return player, nil
}

type stubAchievementRepo struct {
	repositories.AchievementRepository
	unlocked map[int][]string
}

func (r *stubAchievementRepo) Unlock(_ context.Context, _ repositories.SQLExecutor, playerID int, code string) (bool, error) {
	for _, existing := range r.unlocked[playerID] {
		if existing == code {
			return false, nil
		}
	}
	r.unlocked[playerID] = append(r.unlocked[playerID], code)
	return true, nil
}

func (r *stubAchievementRepo) ListByPlayer(_ context.Context, playerID int) ([]models.PlayerAchievement, error) {
	out := make([]models.PlayerAchievement, 0, len(r.unlocked[playerID]))
	for _, code := range r.unlocked[playerID] {
		out = append(out, models.PlayerAchievement{PlayerID: playerID, Code: code, UnlockedAt: time.Now()})
	}
	return out, nil
}

func newTestEvaluator(players ...*models.Player) (*Evaluator, *stubAchievementRepo) {
	byID := make(map[int]*models.Player)
	for _, p := range players {
		byID[p.ID] = p
	}
	achievementRepo := &stubAchievementRepo{unlocked: map[int][]string{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvaluator(&stubPlayerRepo{players: byID}, achievementRepo, logger), achievementRepo
}

func TestStatBadges(t *testing.T) {
	player := &models.Player{ID: 1, Rating: 1510, Wins: 3, BestStreak: 3}
	evaluator, repo := newTestEvaluator(player)

	evaluator.PlayerStatsChanged(context.Background(), []int{1})

	assert.ElementsMatch(t,
		[]string{CodeFirstWin, CodeRatingBreak1200, CodeRatingBreak1500},
		repo.unlocked[1])

	t.Run("idempotent on repeat", func(t *testing.T) {
		evaluator.PlayerStatsChanged(context.Background(), []int{1})
		assert.Len(t, repo.unlocked[1], 3)
	})

	t.Run("streak badge", func(t *testing.T) {
		player.BestStreak = 10
		evaluator.PlayerStatsChanged(context.Background(), []int{1})
		assert.Contains(t, repo.unlocked[1], CodeTenWinStreak)
	})
}

func TestTitleBadge(t *testing.T) {
	champion := &models.Player{ID: 1, Wins: 5, TournamentsWon: 1}
	evaluator, repo := newTestEvaluator(champion)

	evaluator.TournamentCompleted(context.Background(), 42, []int{1})
	require.Contains(t, repo.unlocked[1], CodeFirstTitle)
	assert.NotContains(t, repo.unlocked[1], CodeFirstWin)
}

func TestUnknownPlayerIsSkipped(t *testing.T) {
	evaluator, repo := newTestEvaluator()
	evaluator.PlayerStatsChanged(context.Background(), []int{99})
	assert.Empty(t, repo.unlocked[99])
}
