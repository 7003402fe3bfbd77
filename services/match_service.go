package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/smashpoint/league-system/brackets"
	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/ratings"
	"github.com/smashpoint/league-system/repositories"
)

// WalkoverDisqualified is the walkover reason that additionally removes
// the losing enrollment from further play.
const WalkoverDisqualified = "disqualification"

type RecordResultInput struct {
	WinnerEnrollmentID int                `json:"winner_enrollment_id"`
	Games              []models.GameScore `json:"games"`
}

type QuickResultInput struct {
	WinnerEnrollmentID int    `json:"winner_enrollment_id"`
	Score              string `json:"score"`
}

type WalkoverInput struct {
	WinnerEnrollmentID int    `json:"winner_enrollment_id"`
	Reason             string `json:"reason"`
}

// MatchService records results and manages per-match state. All three
// recording modes share one pipeline: guard the terminal write, update
// ratings and format bookkeeping, advance the bracket, then check
// whether the tournament is finished.
type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	GetEffectiveBestOf(ctx context.Context, matchID int) (int, error)
	RecordResult(ctx context.Context, matchID int, input RecordResultInput) (*models.Match, error)
	RecordQuickResult(ctx context.Context, matchID int, input QuickResultInput) (*models.Match, error)
	RecordWalkover(ctx context.Context, matchID int, input WalkoverInput) (*models.Match, error)
	SetBestOf(ctx context.Context, matchID int, bestOf *int) (*models.Match, error)
	SetNextMatch(ctx context.Context, tournamentID, matchID int) error
	MarkInProgress(ctx context.Context, matchID int) error
	PlayerHistory(ctx context.Context, playerID, limit, offset int) ([]*models.Match, error)
}

type matchService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	gameRepo       repositories.GameResultRepository
	playerRepo     repositories.PlayerRepository
	notifier       Notifier
	achievements   AchievementSink
}

func NewMatchService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	gameRepo repositories.GameResultRepository,
	playerRepo repositories.PlayerRepository,
	notifier Notifier,
	achievements AchievementSink,
) MatchService {
	return &matchService{
		db:             db,
		tournamentRepo: tournamentRepo,
		enrollmentRepo: enrollmentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		gameRepo:       gameRepo,
		playerRepo:     playerRepo,
		notifier:       notifier,
		achievements:   achievements,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	games, err := s.gameRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}
	match.Games = games
	return match, nil
}

// PlayerHistory lists a player's finished tournament matches with
// per-game scores, newest first.
func (s *matchService) PlayerHistory(ctx context.Context, playerID, limit, offset int) ([]*models.Match, error) {
	if _, err := s.playerRepo.GetByID(ctx, nil, playerID); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	matches, err := s.matchRepo.ListCompletedByPlayer(ctx, nil, playerID, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, match := range matches {
		games, err := s.gameRepo.ListByMatch(ctx, nil, match.ID)
		if err != nil {
			return nil, err
		}
		match.Games = games
	}
	return matches, nil
}

func (s *matchService) GetEffectiveBestOf(ctx context.Context, matchID int) (int, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return 0, ErrMatchNotFound
		}
		return 0, err
	}
	round, err := s.roundRepo.GetByID(ctx, nil, match.RoundID)
	if err != nil {
		return 0, err
	}
	return brackets.EffectiveBestOf(match, round), nil
}

// RecordResult records a full per-game score list. Ratings replay the
// series game by game against the round multiplier.
func (s *matchService) RecordResult(ctx context.Context, matchID int, input RecordResultInput) (*models.Match, error) {
	return s.finish(ctx, matchID, input.WinnerEnrollmentID, func(match *models.Match, bestOf int) (*seriesOutcome, error) {
		winnerIsSlot1 := match.Slot1EnrollmentID != nil && *match.Slot1EnrollmentID == input.WinnerEnrollmentID
		if err := brackets.ValidateGameScores(bestOf, input.Games, winnerIsSlot1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScore, err)
		}
		needed := brackets.NeededWins(bestOf)
		return &seriesOutcome{
			status:      models.MatchStatusCompleted,
			games:       input.Games,
			winnerGames: needed,
			loserGames:  len(input.Games) - needed,
			rated:       true,
			perGame:     true,
		}, nil
	})
}

// RecordQuickResult records only the series score ("3-1"). One flat
// rating update, no game rows.
func (s *matchService) RecordQuickResult(ctx context.Context, matchID int, input QuickResultInput) (*models.Match, error) {
	return s.finish(ctx, matchID, input.WinnerEnrollmentID, func(match *models.Match, bestOf int) (*seriesOutcome, error) {
		winnerGames, loserGames, err := brackets.ValidateQuickScore(bestOf, input.Score)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScore, err)
		}
		return &seriesOutcome{
			status:      models.MatchStatusCompleted,
			winnerGames: winnerGames,
			loserGames:  loserGames,
			rated:       true,
		}, nil
	})
}

// RecordWalkover settles a match without play. Ratings and career
// counters stay untouched; the bracket advances as for any other win.
func (s *matchService) RecordWalkover(ctx context.Context, matchID int, input WalkoverInput) (*models.Match, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: walkover reason required", ErrValidationFailed)
	}
	return s.finish(ctx, matchID, input.WinnerEnrollmentID, func(match *models.Match, bestOf int) (*seriesOutcome, error) {
		return &seriesOutcome{
			status: models.MatchStatusWalkover,
			reason: &reason,
		}, nil
	})
}

// seriesOutcome is the mode-specific part of result recording, built
// inside the transaction once the effective best-of is known.
type seriesOutcome struct {
	status      models.MatchStatus
	reason      *string
	games       []models.GameScore
	winnerGames int
	loserGames  int
	rated       bool
	perGame     bool
}

// finish is the shared recording pipeline. The guarded status write
// protects against double submission: a concurrent request that settled
// the match first turns this call into a race-lost error.
func (s *matchService) finish(
	ctx context.Context,
	matchID int,
	winnerEnrollmentID int,
	build func(match *models.Match, bestOf int) (*seriesOutcome, error),
) (*models.Match, error) {
	var (
		match          *models.Match
		tournament     *models.Tournament
		champion       *models.Enrollment
		statsPlayerIDs []int
		tournamentDone bool
	)

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		match, err = s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.Terminal() {
			return ErrMatchAlreadyDecided
		}
		if !match.SlotsFilled() || match.Status == models.MatchStatusPending {
			return ErrMatchNotReady
		}
		if *match.Slot1EnrollmentID != winnerEnrollmentID && *match.Slot2EnrollmentID != winnerEnrollmentID {
			return fmt.Errorf("%w: enrollment %d is not a participant of match %d", ErrValidationFailed, winnerEnrollmentID, matchID)
		}

		tournament, err = s.tournamentRepo.GetByID(ctx, tx, match.TournamentID)
		if err != nil {
			return err
		}
		if tournament.Status != models.StatusInProgress {
			return ErrTournamentNotInProgress
		}

		round, err := s.roundRepo.GetByID(ctx, tx, match.RoundID)
		if err != nil {
			return err
		}

		outcome, err := build(match, brackets.EffectiveBestOf(match, round))
		if err != nil {
			return err
		}

		match.WinnerEnrollmentID = &winnerEnrollmentID
		match.Status = outcome.status
		match.WalkoverReason = outcome.reason
		settled, err := s.matchRepo.CompleteIf(ctx, tx, match)
		if err != nil {
			return err
		}
		if !settled {
			return s.settleRaceError(ctx, tx, matchID)
		}

		for i, g := range outcome.games {
			game := &models.GameResult{
				MatchID:    match.ID,
				GameNumber: i + 1,
				Slot1Score: g.Slot1,
				Slot2Score: g.Slot2,
			}
			if err := s.gameRepo.Create(ctx, tx, game); err != nil {
				return err
			}
			match.Games = append(match.Games, *game)
		}

		winnerEnr, winnerPlayers, err := s.loadSide(ctx, tx, winnerEnrollmentID)
		if err != nil {
			return err
		}
		loserID := match.LoserEnrollmentID()
		if loserID == nil {
			return fmt.Errorf("match %d has a winner but no loser", match.ID)
		}
		loserEnr, loserPlayers, err := s.loadSide(ctx, tx, *loserID)
		if err != nil {
			return err
		}

		if outcome.rated {
			winnerIsSlot1 := *match.Slot1EnrollmentID == winnerEnrollmentID
			winnerWon := make([]bool, len(outcome.games))
			for i, g := range outcome.games {
				winnerWon[i] = (g.Slot1 > g.Slot2) == winnerIsSlot1
			}
			winnerDelta, loserDelta := seriesDeltas(winnerPlayers, loserPlayers, winnerWon, round.Multiplier, outcome.perGame)
			applyOutcome(winnerPlayers, loserPlayers, winnerDelta, loserDelta)
			for _, p := range winnerPlayers {
				if err := s.playerRepo.UpdateStats(ctx, tx, p); err != nil {
					return err
				}
				statsPlayerIDs = append(statsPlayerIDs, p.ID)
			}
			for _, p := range loserPlayers {
				if err := s.playerRepo.UpdateStats(ctx, tx, p); err != nil {
					return err
				}
				statsPlayerIDs = append(statsPlayerIDs, p.ID)
			}
		}

		switch match.Segment {
		case models.SegmentSwissRound:
			winnerEnr.SwissPoints++
			winnerEnr.SwissOpponents = append(winnerEnr.SwissOpponents, int64(loserEnr.ID))
			loserEnr.SwissOpponents = append(loserEnr.SwissOpponents, int64(winnerEnr.ID))
			if err := s.enrollmentRepo.UpdateSwiss(ctx, tx, winnerEnr.ID, winnerEnr.SwissPoints, winnerEnr.SwissOpponents); err != nil {
				return err
			}
			if err := s.enrollmentRepo.UpdateSwiss(ctx, tx, loserEnr.ID, loserEnr.SwissPoints, loserEnr.SwissOpponents); err != nil {
				return err
			}
		case models.SegmentGroup:
			diff := outcome.winnerGames - outcome.loserGames
			winnerEnr.GroupPoints += 2
			winnerEnr.GroupWins++
			winnerEnr.GameDiff += diff
			loserEnr.GroupLosses++
			loserEnr.GameDiff -= diff
			if outcome.status == models.MatchStatusCompleted {
				// A played loss is worth one table point, a walkover none.
				loserEnr.GroupPoints++
			}
			if err := s.enrollmentRepo.UpdateGroupStats(ctx, tx, winnerEnr); err != nil {
				return err
			}
			if err := s.enrollmentRepo.UpdateGroupStats(ctx, tx, loserEnr); err != nil {
				return err
			}
		}

		reset := tournament.GrandFinalReset &&
			tournament.Format == models.FormatDoubleElimination &&
			match.Segment == models.SegmentFinals &&
			match.Source1MatchID != nil &&
			*match.Slot2EnrollmentID == winnerEnrollmentID

		eliminate := false
		switch match.Segment {
		case models.SegmentWinners:
			eliminate = tournament.Format != models.FormatDoubleElimination
		case models.SegmentLosers:
			eliminate = true
		case models.SegmentFinals:
			eliminate = !reset
		}
		if !eliminate && outcome.reason != nil && *outcome.reason == WalkoverDisqualified {
			eliminate = true
		}
		if eliminate {
			if err := s.enrollmentRepo.SetEliminated(ctx, tx, loserEnr.ID, match.RoundNumber); err != nil {
				return err
			}
		}

		all, err := s.matchRepo.ListByTournament(ctx, tx, match.TournamentID, nil, nil, nil)
		if err != nil {
			return err
		}
		enrollments, err := s.enrollmentRepo.ListByTournament(ctx, tx, match.TournamentID)
		if err != nil {
			return err
		}
		if err := applyPropagation(ctx, tx, s.matchRepo, all, enrollments); err != nil {
			return err
		}

		if reset {
			resetMatch, err := s.createGrandFinalReset(ctx, tx, tournament, match)
			if err != nil {
				return err
			}
			all = append(all, resetMatch)
		}

		champion, tournamentDone, err = s.maybeComplete(ctx, tx, tournament, all, enrollments)
		if err != nil {
			return err
		}
		if !tournamentDone && !reset {
			if live := lowestLiveRound(all); live > tournament.CurrentRound {
				if err := s.tournamentRepo.UpdateProgress(ctx, tx, tournament.ID, live, tournament.TotalRounds); err != nil {
					return err
				}
			}
		}

		return refreshNextFlag(ctx, tx, s.matchRepo, match.TournamentID, all)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(Event{
		Type:         EventMatchCompleted,
		TournamentID: match.TournamentID,
		Payload: map[string]interface{}{
			"match_id":             match.ID,
			"winner_enrollment_id": winnerEnrollmentID,
			"status":               match.Status,
		},
	})
	if len(statsPlayerIDs) > 0 {
		s.achievements.PlayerStatsChanged(ctx, statsPlayerIDs)
	}
	if tournamentDone {
		payload := map[string]interface{}{}
		var winnerIDs []int
		if champion != nil {
			payload["champion_enrollment_id"] = champion.ID
			winnerIDs = championPlayerIDs(champion)
		}
		s.notifier.Publish(Event{
			Type:         EventTournamentCompleted,
			TournamentID: match.TournamentID,
			Payload:      payload,
		})
		s.achievements.TournamentCompleted(ctx, match.TournamentID, winnerIDs)
	}
	return match, nil
}

// settleRaceError explains a failed guarded completion: the match either
// got settled by a concurrent request or was never recordable.
func (s *matchService) settleRaceError(ctx context.Context, tx *sql.Tx, matchID int) error {
	current, err := s.matchRepo.GetByID(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if current.Terminal() {
		return ErrConcurrentUpdate
	}
	return ErrMatchNotReady
}

func (s *matchService) loadSide(ctx context.Context, tx *sql.Tx, enrollmentID int) (*models.Enrollment, []*models.Player, error) {
	enrollment, err := s.enrollmentRepo.GetByID(ctx, tx, enrollmentID)
	if err != nil {
		return nil, nil, err
	}
	player, err := s.playerRepo.GetByID(ctx, tx, enrollment.PlayerID)
	if err != nil {
		return nil, nil, err
	}
	players := []*models.Player{player}
	if enrollment.PartnerID != nil {
		partner, err := s.playerRepo.GetByID(ctx, tx, *enrollment.PartnerID)
		if err != nil {
			return nil, nil, err
		}
		players = append(players, partner)
	}
	return enrollment, players, nil
}

// seriesDeltas computes the winner- and loser-side rating movement for a
// decided series. Doubles pairs move both teammates by the same amount.
func seriesDeltas(winners, losers []*models.Player, winnerWon []bool, multiplier int, perGame bool) (int, int) {
	doubles := len(winners) == 2 && len(losers) == 2
	if perGame {
		if doubles {
			return ratings.PerGameSeriesDoubles(
				winners[0].Rating, winners[1].Rating,
				losers[0].Rating, losers[1].Rating,
				winnerWon, multiplier,
			)
		}
		return ratings.PerGameSeries(winners[0].Rating, losers[0].Rating, winnerWon, multiplier)
	}
	if doubles {
		d := ratings.ScaledDoubles(winners[0].Rating, winners[1].Rating, losers[0].Rating, losers[1].Rating, multiplier)
		return d, -d
	}
	d := ratings.Scaled(winners[0].Rating, losers[0].Rating, multiplier)
	return d, -d
}

// createGrandFinalReset appends the second grand final after the losers
// finalist takes the first one. The extra round extends the tournament
// beyond its planned length.
func (s *matchService) createGrandFinalReset(ctx context.Context, tx *sql.Tx, tournament *models.Tournament, grandFinal *models.Match) (*models.Match, error) {
	number := grandFinal.RoundNumber + 1
	plannedRound, plannedMatch := brackets.GrandFinalResetRound(
		bracketConfig(tournament),
		number,
		*grandFinal.Slot1EnrollmentID,
		*grandFinal.Slot2EnrollmentID,
	)

	round := &models.Round{
		TournamentID: tournament.ID,
		Number:       plannedRound.Number,
		Name:         plannedRound.Name,
		Segment:      plannedRound.Segment,
		Multiplier:   plannedRound.Multiplier,
		BestOf:       plannedRound.BestOf,
	}
	if err := s.roundRepo.Create(ctx, tx, round); err != nil {
		return nil, err
	}

	match := &models.Match{
		TournamentID:      tournament.ID,
		RoundID:           round.ID,
		RoundNumber:       plannedMatch.Round,
		Position:          plannedMatch.Position,
		Segment:           plannedMatch.Segment,
		Slot1EnrollmentID: plannedMatch.Slot1,
		Slot2EnrollmentID: plannedMatch.Slot2,
		Status:            plannedMatch.Status,
	}
	if err := s.matchRepo.Create(ctx, tx, match); err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.UpdateProgress(ctx, tx, tournament.ID, number, number); err != nil {
		return nil, err
	}
	tournament.CurrentRound, tournament.TotalRounds = number, number
	return match, nil
}

func (s *matchService) maybeComplete(
	ctx context.Context,
	tx *sql.Tx,
	tournament *models.Tournament,
	matches []*models.Match,
	enrollments []*models.Enrollment,
) (*models.Enrollment, bool, error) {
	return completeIfFinished(ctx, tx, s.tournamentRepo, s.enrollmentRepo, s.playerRepo, tournament, matches, enrollments)
}

// completeIfFinished checks the format's finish condition and, when met,
// closes the tournament: completed status, placements, and the career
// tournament counters. Shared between result recording and swiss round
// generation, where a final round of byes can end the tournament with
// nothing left to record.
func completeIfFinished(
	ctx context.Context,
	tx *sql.Tx,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	playerRepo repositories.PlayerRepository,
	tournament *models.Tournament,
	matches []*models.Match,
	enrollments []*models.Enrollment,
) (*models.Enrollment, bool, error) {
	byID := make(map[int]*models.Enrollment, len(enrollments))
	for _, e := range enrollments {
		byID[e.ID] = e
	}

	var champion, runnerUp *models.Enrollment
	var placements []*models.Enrollment

	switch tournament.Format {
	case models.FormatSwiss:
		if tournament.CurrentRound < tournament.TotalRounds {
			return nil, false, nil
		}
		lastRoundSeen := false
		for _, m := range matches {
			if m.RoundNumber != tournament.TotalRounds {
				continue
			}
			lastRoundSeen = true
			if !m.Terminal() {
				return nil, false, nil
			}
		}
		if !lastRoundSeen {
			return nil, false, nil
		}
		placements = brackets.RankSwiss(enrollments)
		if len(placements) > 0 {
			champion = placements[0]
		}

	default:
		finalsRound := 0
		for _, m := range matches {
			if m.Segment == models.SegmentFinals && m.RoundNumber > finalsRound {
				finalsRound = m.RoundNumber
			}
		}
		if finalsRound == 0 {
			// Group stage only. The tournament finishes here when a
			// knockout would have a single participant.
			if tournament.Format != models.FormatRoundRobinKnockout {
				return nil, false, nil
			}
			for _, m := range matches {
				if !m.Terminal() {
					return nil, false, nil
				}
			}
			if knockoutSeats(tournament, enrollments) > 1 {
				return nil, false, nil
			}
			placements = brackets.RankGroup(enrollments)
			if len(placements) > 0 {
				champion = placements[0]
			}
		} else {
			var final *models.Match
			for _, m := range matches {
				if m.RoundNumber != finalsRound {
					continue
				}
				if !m.Terminal() {
					return nil, false, nil
				}
				if m.WinnerEnrollmentID != nil {
					final = m
				}
			}
			if final == nil {
				return nil, false, nil
			}
			champion = byID[*final.WinnerEnrollmentID]
			if loserID := final.LoserEnrollmentID(); loserID != nil {
				runnerUp = byID[*loserID]
			}
		}
	}
	if champion == nil {
		return nil, false, nil
	}

	if err := tournamentRepo.MarkCompleted(ctx, tx, tournament.ID); err != nil {
		return nil, false, err
	}

	if placements != nil {
		for i, e := range placements {
			if err := enrollmentRepo.SetPlacement(ctx, tx, e.ID, i+1); err != nil {
				return nil, false, err
			}
		}
	} else {
		if err := enrollmentRepo.SetPlacement(ctx, tx, champion.ID, 1); err != nil {
			return nil, false, err
		}
		if runnerUp != nil {
			if err := enrollmentRepo.SetPlacement(ctx, tx, runnerUp.ID, 2); err != nil {
				return nil, false, err
			}
		}
	}

	if err := playerRepo.IncrementTournamentsPlayed(ctx, tx, enrolledPlayerIDs(enrollments)); err != nil {
		return nil, false, err
	}
	if err := playerRepo.IncrementTournamentsWon(ctx, tx, championPlayerIDs(champion)); err != nil {
		return nil, false, err
	}
	return champion, true, nil
}

// knockoutSeats is the planned size of the knockout stage: advance per
// group times the number of groups actually drawn.
func knockoutSeats(tournament *models.Tournament, enrollments []*models.Enrollment) int {
	groups := make(map[int]bool)
	for _, e := range enrollments {
		if e.GroupID != nil {
			groups[*e.GroupID] = true
		}
	}
	advance := 1
	if tournament.AdvancePerGroup != nil {
		advance = *tournament.AdvancePerGroup
	}
	return advance * len(groups)
}

func championPlayerIDs(champion *models.Enrollment) []int {
	ids := []int{champion.PlayerID}
	if champion.PartnerID != nil {
		ids = append(ids, *champion.PartnerID)
	}
	return ids
}

// lowestLiveRound is the earliest round with an undecided match, zero
// when everything is terminal.
func lowestLiveRound(matches []*models.Match) int {
	lowest := 0
	for _, m := range matches {
		if m.Terminal() {
			continue
		}
		if lowest == 0 || m.RoundNumber < lowest {
			lowest = m.RoundNumber
		}
	}
	return lowest
}

// SetBestOf sets or clears the per-match series override. Rejected once
// the match is terminal, so a recorded result keeps the length it was
// validated against.
func (s *matchService) SetBestOf(ctx context.Context, matchID int, bestOf *int) (*models.Match, error) {
	if bestOf != nil && !brackets.ValidBestOf(*bestOf) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBestOf, *bestOf)
	}
	changed, err := s.matchRepo.SetBestOfIf(ctx, nil, matchID, bestOf)
	if err != nil {
		return nil, err
	}
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if !changed {
		return nil, ErrMatchBestOfLocked
	}
	return match, nil
}

// SetNextMatch pins a specific match as the featured one, overriding
// the automatic pick.
func (s *matchService) SetNextMatch(ctx context.Context, tournamentID, matchID int) error {
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.TournamentID != tournamentID {
			return ErrMatchNotFound
		}
		if match.Status != models.MatchStatusReady && match.Status != models.MatchStatusInProgress {
			return ErrMatchNotReady
		}
		if err := s.matchRepo.ClearNextFlag(ctx, tx, tournamentID); err != nil {
			return err
		}
		return s.matchRepo.SetNextFlag(ctx, tx, matchID)
	})
	if err != nil {
		return err
	}

	s.notifier.Publish(Event{
		Type:         EventMatchFeatured,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"match_id": matchID},
	})
	return nil
}

// MarkInProgress flags a ready match as on the table. Display state
// only; recording does not require it.
func (s *matchService) MarkInProgress(ctx context.Context, matchID int) error {
	moved, err := s.matchRepo.UpdateStatusIf(ctx, nil, matchID, models.MatchStatusReady, models.MatchStatusInProgress)
	if err != nil {
		return err
	}
	if moved {
		return nil
	}
	current, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if current.Terminal() {
		return ErrMatchAlreadyDecided
	}
	if current.Status == models.MatchStatusInProgress {
		return ErrConcurrentUpdate
	}
	return ErrMatchNotReady
}
