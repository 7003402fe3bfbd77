package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/ratings"
	"github.com/smashpoint/league-system/repositories"
)

// DefaultChallengeTTL is how long an unanswered challenge stays
// acceptable when no TTL is configured.
const DefaultChallengeTTL = 72 * time.Hour

type CreateChallengeInput struct {
	OpponentID        int  `json:"opponent_id"`
	ChallengerPartner *int `json:"challenger_partner_id,omitempty"`
	OpponentPartner   *int `json:"opponent_partner_id,omitempty"`
}

type ChallengeResultInput struct {
	WinnerSide int    `json:"winner_side"`
	Score      string `json:"score"`
}

// ChallengeService runs friendly matches outside any tournament: an
// invitation with a shareable token, an accept/decline handshake and a
// head-to-head rated result.
type ChallengeService interface {
	Create(ctx context.Context, challengerID int, input CreateChallengeInput) (*models.Challenge, error)
	GetByToken(ctx context.Context, token string) (*models.Challenge, error)
	ListForPlayer(ctx context.Context, playerID int, status *models.ChallengeStatus, limit, offset int) ([]*models.Challenge, error)
	Accept(ctx context.Context, challengeID, playerID int) (*models.Challenge, error)
	Decline(ctx context.Context, challengeID, playerID int) (*models.Challenge, error)
	Complete(ctx context.Context, challengeID, reporterID int, input ChallengeResultInput) (*models.Challenge, error)
	ExpireOverdue(ctx context.Context) (int64, error)
}

type challengeService struct {
	db            *sql.DB
	challengeRepo repositories.ChallengeRepository
	playerRepo    repositories.PlayerRepository
	achievements  AchievementSink
	ttl           time.Duration
}

func NewChallengeService(
	db *sql.DB,
	challengeRepo repositories.ChallengeRepository,
	playerRepo repositories.PlayerRepository,
	achievements AchievementSink,
	ttl time.Duration,
) ChallengeService {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &challengeService{
		db:            db,
		ttl:           ttl,
		challengeRepo: challengeRepo,
		playerRepo:    playerRepo,
		achievements:  achievements,
	}
}

func (s *challengeService) Create(ctx context.Context, challengerID int, input CreateChallengeInput) (*models.Challenge, error) {
	if input.OpponentID == challengerID {
		return nil, ErrSelfChallenge
	}
	if (input.ChallengerPartner == nil) != (input.OpponentPartner == nil) {
		return nil, ErrPartnerRequired
	}

	ids := []int{challengerID, input.OpponentID}
	if input.ChallengerPartner != nil {
		ids = append(ids, *input.ChallengerPartner)
	}
	if input.OpponentPartner != nil {
		ids = append(ids, *input.OpponentPartner)
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, ErrPartnerIsPlayer
		}
		seen[id] = true
	}
	for _, id := range ids {
		if _, err := s.playerRepo.GetByID(ctx, nil, id); err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return nil, fmt.Errorf("%w: player %d", ErrPlayerNotFound, id)
			}
			return nil, err
		}
	}

	challenge := &models.Challenge{
		Token:             uuid.NewString(),
		ChallengerID:      challengerID,
		ChallengerPartner: input.ChallengerPartner,
		OpponentID:        input.OpponentID,
		OpponentPartner:   input.OpponentPartner,
		Status:            models.ChallengePending,
		ExpiresAt:         time.Now().Add(s.ttl),
	}
	if err := s.challengeRepo.Create(ctx, challenge); err != nil {
		if errors.Is(err, repositories.ErrChallengePlayerInvalid) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return challenge, nil
}

func (s *challengeService) GetByToken(ctx context.Context, token string) (*models.Challenge, error) {
	challenge, err := s.challengeRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	if challenger, err := s.playerRepo.GetByID(ctx, nil, challenge.ChallengerID); err == nil {
		challenge.Challenger = challenger
	}
	if opponent, err := s.playerRepo.GetByID(ctx, nil, challenge.OpponentID); err == nil {
		challenge.Opponent = opponent
	}
	return challenge, nil
}

func (s *challengeService) ListForPlayer(ctx context.Context, playerID int, status *models.ChallengeStatus, limit, offset int) ([]*models.Challenge, error) {
	return s.challengeRepo.ListForPlayer(ctx, playerID, status, limit, offset)
}

// Accept moves a pending challenge to accepted. Only the challenged
// side may answer, and only while the invitation has not run out.
func (s *challengeService) Accept(ctx context.Context, challengeID, playerID int) (*models.Challenge, error) {
	return s.answer(ctx, challengeID, playerID, models.ChallengeAccepted)
}

func (s *challengeService) Decline(ctx context.Context, challengeID, playerID int) (*models.Challenge, error) {
	return s.answer(ctx, challengeID, playerID, models.ChallengeDeclined)
}

func (s *challengeService) answer(ctx context.Context, challengeID, playerID int, to models.ChallengeStatus) (*models.Challenge, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	if !onSide(playerID, challenge.OpponentID, challenge.OpponentPartner) {
		return nil, ErrForbiddenOperation
	}
	if challenge.Status != models.ChallengePending {
		return nil, ErrChallengeNotPending
	}
	if time.Now().After(challenge.ExpiresAt) {
		return nil, ErrChallengeExpired
	}

	swapped, err := s.challengeRepo.UpdateStatusIf(ctx, nil, challengeID, models.ChallengePending, to)
	if err != nil {
		return nil, err
	}
	if !swapped {
		current, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
		if err != nil {
			return nil, err
		}
		if current.Status == to {
			return nil, ErrConcurrentUpdate
		}
		return nil, ErrChallengeNotPending
	}
	challenge.Status = to
	return challenge, nil
}

// Complete records the result of an accepted challenge and applies the
// head-to-head rating exchange. Either participant may report; the
// guarded status write keeps a double report from paying out twice.
func (s *challengeService) Complete(ctx context.Context, challengeID, reporterID int, input ChallengeResultInput) (*models.Challenge, error) {
	if input.WinnerSide != 1 && input.WinnerSide != 2 {
		return nil, ErrInvalidWinnerSide
	}
	score := strings.TrimSpace(input.Score)
	if score != "" {
		var w, l int
		if n, err := fmt.Sscanf(score, "%d-%d", &w, &l); n != 2 || err != nil || w <= l || l < 0 {
			return nil, fmt.Errorf("%w: series score %q", ErrInvalidScore, score)
		}
	}

	var (
		challenge *models.Challenge
		statIDs   []int
	)
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		challenge, err = s.challengeRepo.GetByID(ctx, tx, challengeID)
		if err != nil {
			if errors.Is(err, repositories.ErrChallengeNotFound) {
				return ErrChallengeNotFound
			}
			return err
		}
		if !onSide(reporterID, challenge.ChallengerID, challenge.ChallengerPartner) &&
			!onSide(reporterID, challenge.OpponentID, challenge.OpponentPartner) {
			return ErrForbiddenOperation
		}
		if challenge.Status != models.ChallengeAccepted {
			return ErrChallengeNotAccepted
		}

		challengers, err := s.loadPlayers(ctx, tx, challenge.ChallengerID, challenge.ChallengerPartner)
		if err != nil {
			return err
		}
		opponents, err := s.loadPlayers(ctx, tx, challenge.OpponentID, challenge.OpponentPartner)
		if err != nil {
			return err
		}

		winners, losers := challengers, opponents
		if input.WinnerSide == 2 {
			winners, losers = opponents, challengers
		}
		var delta int
		if challenge.Doubles() {
			delta = ratings.HeadToHeadDoubles(winners[0].Rating, winners[1].Rating, losers[0].Rating, losers[1].Rating)
		} else {
			delta = ratings.HeadToHead(winners[0].Rating, losers[0].Rating)
		}
		challengerDelta, opponentDelta := delta, -delta
		if input.WinnerSide == 2 {
			challengerDelta, opponentDelta = -delta, delta
		}

		challenge.WinnerSide = &input.WinnerSide
		challenge.ChallengerDelta = &challengerDelta
		challenge.OpponentDelta = &opponentDelta
		if score != "" {
			challenge.Score = &score
		}
		settled, err := s.challengeRepo.CompleteIf(ctx, tx, challenge)
		if err != nil {
			return err
		}
		if !settled {
			current, err := s.challengeRepo.GetByID(ctx, tx, challengeID)
			if err != nil {
				return err
			}
			if current.Status == models.ChallengeCompleted {
				return ErrConcurrentUpdate
			}
			return ErrChallengeNotAccepted
		}
		challenge.Status = models.ChallengeCompleted

		applyOutcome(winners, losers, delta, -delta)
		for _, p := range winners {
			if err := s.playerRepo.UpdateStats(ctx, tx, p); err != nil {
				return err
			}
			statIDs = append(statIDs, p.ID)
		}
		for _, p := range losers {
			if err := s.playerRepo.UpdateStats(ctx, tx, p); err != nil {
				return err
			}
			statIDs = append(statIDs, p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.achievements.PlayerStatsChanged(ctx, statIDs)
	return challenge, nil
}

// ExpireOverdue sweeps pending challenges past their deadline. Run
// periodically; returns how many were expired.
func (s *challengeService) ExpireOverdue(ctx context.Context) (int64, error) {
	return s.challengeRepo.ExpirePending(ctx, time.Now())
}

func (s *challengeService) loadPlayers(ctx context.Context, tx *sql.Tx, playerID int, partnerID *int) ([]*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}
	players := []*models.Player{player}
	if partnerID != nil {
		partner, err := s.playerRepo.GetByID(ctx, tx, *partnerID)
		if err != nil {
			return nil, err
		}
		players = append(players, partner)
	}
	return players, nil
}

func onSide(playerID, sideID int, sidePartner *int) bool {
	if playerID == sideID {
		return true
	}
	return sidePartner != nil && *sidePartner == playerID
}
