package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smashpoint/league-system/brackets"
	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/repositories"
)

// BracketService owns bracket generation: the initial structure at start
// plus the stages that only exist once earlier play finishes (swiss
// rounds, the knockout behind a group stage).
type BracketService interface {
	StartTournament(ctx context.Context, tournamentID int) (*models.Tournament, error)
	GenerateNextSwissRound(ctx context.Context, tournamentID int) ([]*models.Match, error)
	GenerateKnockoutStage(ctx context.Context, tournamentID int) ([]*models.Match, error)
}

type bracketService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	groupRepo      repositories.GroupRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	playerRepo     repositories.PlayerRepository
	notifier       Notifier
	achievements   AchievementSink
}

func NewBracketService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	groupRepo repositories.GroupRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	playerRepo repositories.PlayerRepository,
	notifier Notifier,
	achievements AchievementSink,
) BracketService {
	return &bracketService{
		db:             db,
		tournamentRepo: tournamentRepo,
		enrollmentRepo: enrollmentRepo,
		groupRepo:      groupRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		playerRepo:     playerRepo,
		notifier:       notifier,
		achievements:   achievements,
	}
}

// StartTournament generates the bracket and flips the tournament to
// in_progress in one transaction. The status flip is a compare-and-swap,
// so two concurrent starts cannot both generate a bracket.
func (s *bracketService) StartTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	if tournament.Status != models.StatusEnrollment {
		return nil, ErrTournamentNotStartable
	}

	enrollments, err := s.enrollmentRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments for tournament %d: %w", tournamentID, err)
	}
	if len(enrollments) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	generator, err := brackets.ForFormat(tournament.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	plan, err := generator.Generate(ctx, bracketConfig(tournament), entrantsFromEnrollments(enrollments))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	enrollmentByID := make(map[int]*models.Enrollment, len(enrollments))
	for _, e := range enrollments {
		enrollmentByID[e.ID] = e
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		swapped, err := s.tournamentRepo.UpdateStatusIf(ctx, tx, tournamentID, models.StatusEnrollment, models.StatusInProgress)
		if err != nil {
			return err
		}
		if !swapped {
			return s.startSwapError(ctx, tx, tournamentID)
		}

		for _, entrant := range plan.Entrants {
			e := enrollmentByID[entrant.EnrollmentID]
			if e == nil {
				return fmt.Errorf("plan references unknown enrollment %d", entrant.EnrollmentID)
			}
			if e.Seed != entrant.Seed {
				if err := s.enrollmentRepo.UpdateSeed(ctx, tx, e.ID, entrant.Seed, e.SeedLocked); err != nil {
					return err
				}
				e.Seed = entrant.Seed
			}
		}

		for _, pg := range plan.Groups {
			group := &models.Group{TournamentID: tournamentID, Name: pg.Name, Position: pg.Position}
			if err := s.groupRepo.Create(ctx, tx, group); err != nil {
				return err
			}
			for _, enrollmentID := range pg.EnrollmentIDs {
				if err := s.enrollmentRepo.AssignGroup(ctx, tx, enrollmentID, group.ID); err != nil {
					return err
				}
			}
		}

		created, err := s.persistPlan(ctx, tx, tournamentID, plan)
		if err != nil {
			return err
		}

		if err := applyPropagation(ctx, tx, s.matchRepo, created, enrollments); err != nil {
			return err
		}
		if err := s.creditSwissByes(ctx, tx, created, enrollmentByID); err != nil {
			return err
		}
		if err := refreshNextFlag(ctx, tx, s.matchRepo, tournamentID, created); err != nil {
			return err
		}

		return s.tournamentRepo.MarkStarted(ctx, tx, tournamentID, plan.TotalRounds)
	})
	if err != nil {
		return nil, err
	}

	started, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tournament %d: %w", tournamentID, err)
	}

	s.notifier.Publish(Event{
		Type:         EventTournamentStarted,
		TournamentID: tournamentID,
		Payload: map[string]interface{}{
			"format":       started.Format,
			"total_rounds": started.TotalRounds,
			"entrants":     len(enrollments),
		},
	})
	return started, nil
}

func (s *bracketService) startSwapError(ctx context.Context, tx *sql.Tx, tournamentID int) error {
	current, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to reload tournament %d: %w", tournamentID, err)
	}
	if current.Status == models.StatusInProgress {
		return ErrConcurrentUpdate
	}
	return ErrTournamentNotStartable
}

// GenerateNextSwissRound pairs the next swiss round from live standings.
// The current round must be fully played out first. A last round drawn
// entirely of byes leaves nothing to record, so the completion check
// runs here too.
func (s *bracketService) GenerateNextSwissRound(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	var (
		created        []*models.Match
		champion       *models.Enrollment
		tournamentDone bool
	)

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Format != models.FormatSwiss {
			return fmt.Errorf("%w: tournament is not swiss", ErrValidationFailed)
		}
		if tournament.Status != models.StatusInProgress {
			return ErrTournamentNotInProgress
		}
		if tournament.CurrentRound >= tournament.TotalRounds {
			return ErrSwissRoundsExhausted
		}

		matches, err := s.matchRepo.ListByTournament(ctx, tx, tournamentID, nil, nil, nil)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.RoundNumber == tournament.CurrentRound && !m.Terminal() {
				return ErrRoundNotComplete
			}
		}

		enrollments, err := s.enrollmentRepo.ListByTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		enrollmentByID := make(map[int]*models.Enrollment, len(enrollments))
		for _, e := range enrollments {
			enrollmentByID[e.ID] = e
		}

		next := tournament.CurrentRound + 1
		plan, err := brackets.NextSwissRound(bracketConfig(tournament), next, swissEntrantsFromEnrollments(enrollments))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}

		created, err = s.persistPlan(ctx, tx, tournamentID, plan)
		if err != nil {
			return err
		}
		if err := s.creditSwissByes(ctx, tx, created, enrollmentByID); err != nil {
			return err
		}
		all := append(matches, created...)
		if err := refreshNextFlag(ctx, tx, s.matchRepo, tournamentID, all); err != nil {
			return err
		}

		if err := s.tournamentRepo.UpdateProgress(ctx, tx, tournamentID, next, tournament.TotalRounds); err != nil {
			return err
		}
		tournament.CurrentRound = next

		champion, tournamentDone, err = completeIfFinished(ctx, tx, s.tournamentRepo, s.enrollmentRepo, s.playerRepo, tournament, all, enrollments)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(Event{
		Type:         EventRoundGenerated,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"stage": "swiss_round", "matches": len(created)},
	})
	if tournamentDone {
		payload := map[string]interface{}{}
		var winnerIDs []int
		if champion != nil {
			payload["champion_enrollment_id"] = champion.ID
			winnerIDs = championPlayerIDs(champion)
		}
		s.notifier.Publish(Event{
			Type:         EventTournamentCompleted,
			TournamentID: tournamentID,
			Payload:      payload,
		})
		s.achievements.TournamentCompleted(ctx, tournamentID, winnerIDs)
	}
	return created, nil
}

// GenerateKnockoutStage freezes group tables into a qualifier order and
// plans the elimination stage behind them: rank within group first, group
// position second, so all group winners outseed all runners-up.
func (s *bracketService) GenerateKnockoutStage(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	var created []*models.Match

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Format != models.FormatRoundRobinKnockout {
			return fmt.Errorf("%w: tournament has no knockout stage", ErrValidationFailed)
		}
		if tournament.Status != models.StatusInProgress {
			return ErrTournamentNotInProgress
		}

		rounds, err := s.roundRepo.ListByTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		lastGroupRound := 0
		for _, r := range rounds {
			if r.Segment != models.SegmentGroup {
				return ErrKnockoutAlreadyExists
			}
			if r.Number > lastGroupRound {
				lastGroupRound = r.Number
			}
		}

		matches, err := s.matchRepo.ListByTournament(ctx, tx, tournamentID, nil, nil, nil)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if !m.Terminal() {
				return ErrGroupStageNotComplete
			}
		}

		enrollments, err := s.enrollmentRepo.ListByTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		groups, err := s.groupRepo.ListByTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}

		qualifiers := knockoutQualifiers(tournament, groups, enrollments)
		if len(qualifiers) < 2 {
			return ErrNotEnoughPlayers
		}

		qualified := make(map[int]bool, len(qualifiers))
		for _, q := range qualifiers {
			qualified[q.EnrollmentID] = true
		}
		for _, e := range enrollments {
			if e.Active && !qualified[e.ID] {
				if err := s.enrollmentRepo.SetEliminated(ctx, tx, e.ID, lastGroupRound); err != nil {
					return err
				}
				e.Active = false
			}
		}

		plan, err := brackets.KnockoutStage(ctx, bracketConfig(tournament), lastGroupRound+1, qualifiers)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}

		created, err = s.persistPlan(ctx, tx, tournamentID, plan)
		if err != nil {
			return err
		}
		if err := applyPropagation(ctx, tx, s.matchRepo, created, enrollments); err != nil {
			return err
		}
		if err := refreshNextFlag(ctx, tx, s.matchRepo, tournamentID, append(matches, created...)); err != nil {
			return err
		}

		return s.tournamentRepo.UpdateProgress(ctx, tx, tournamentID, lastGroupRound+1, plan.TotalRounds)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(Event{
		Type:         EventRoundGenerated,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"stage": "knockout", "matches": len(created)},
	})
	return created, nil
}

// knockoutQualifiers locks the qualifier seeds: rank 1 of every group in
// group order, then rank 2 of every group, and so on.
func knockoutQualifiers(t *models.Tournament, groups []*models.Group, enrollments []*models.Enrollment) []brackets.Entrant {
	advance := 1
	if t.AdvancePerGroup != nil {
		advance = *t.AdvancePerGroup
	}

	rankedByGroup := make([][]*models.Enrollment, 0, len(groups))
	for _, g := range groups {
		members := make([]*models.Enrollment, 0)
		for _, e := range enrollments {
			if e.GroupID != nil && *e.GroupID == g.ID {
				members = append(members, e)
			}
		}
		rankedByGroup = append(rankedByGroup, brackets.RankGroup(members))
	}

	qualifiers := make([]brackets.Entrant, 0, advance*len(groups))
	for rank := 0; rank < advance; rank++ {
		for _, ranked := range rankedByGroup {
			if rank >= len(ranked) {
				continue
			}
			e := ranked[rank]
			rating := 0
			if e.Player != nil {
				rating = e.Player.Rating
			}
			qualifiers = append(qualifiers, brackets.Entrant{EnrollmentID: e.ID, Rating: rating})
		}
	}
	return qualifiers
}

// persistPlan writes a generated plan inside the caller's transaction:
// rounds first, then matches, then a second pass that rewires the
// plan-local source UIDs to real match ids. Returns the created matches
// with sources resolved, ready for propagation.
func (s *bracketService) persistPlan(ctx context.Context, tx *sql.Tx, tournamentID int, plan *brackets.Plan) ([]*models.Match, error) {
	roundIDByNumber := make(map[int]int, len(plan.Rounds))
	for i := range plan.Rounds {
		pr := plan.Rounds[i]
		round := &models.Round{
			TournamentID: tournamentID,
			Number:       pr.Number,
			Name:         pr.Name,
			Segment:      pr.Segment,
			Multiplier:   pr.Multiplier,
			BestOf:       pr.BestOf,
		}
		if err := s.roundRepo.Create(ctx, tx, round); err != nil {
			return nil, err
		}
		roundIDByNumber[pr.Number] = round.ID
	}

	created := make([]*models.Match, 0, len(plan.Matches))
	idByUID := make(map[string]int, len(plan.Matches))
	for i := range plan.Matches {
		pm := plan.Matches[i]
		roundID, ok := roundIDByNumber[pm.Round]
		if !ok {
			return nil, fmt.Errorf("plan match %s references unplanned round %d", pm.UID, pm.Round)
		}
		match := &models.Match{
			TournamentID:       tournamentID,
			RoundID:            roundID,
			RoundNumber:        pm.Round,
			Position:           pm.Position,
			Segment:            pm.Segment,
			Slot1EnrollmentID:  pm.Slot1,
			Slot2EnrollmentID:  pm.Slot2,
			WinnerEnrollmentID: pm.Winner,
			Status:             pm.Status,
		}
		if err := s.matchRepo.Create(ctx, tx, match); err != nil {
			return nil, err
		}
		idByUID[pm.UID] = match.ID
		created = append(created, match)
	}

	for i := range plan.Matches {
		pm := plan.Matches[i]
		if pm.Source1 == nil && pm.Source2 == nil {
			continue
		}
		match := created[i]

		var source1, source2 *int
		var take1, take2 bool
		if pm.Source1 != nil {
			id, ok := idByUID[pm.Source1.MatchUID]
			if !ok {
				return nil, fmt.Errorf("plan match %s references unknown source %s", pm.UID, pm.Source1.MatchUID)
			}
			source1, take1 = &id, pm.Source1.TakeLoser
		}
		if pm.Source2 != nil {
			id, ok := idByUID[pm.Source2.MatchUID]
			if !ok {
				return nil, fmt.Errorf("plan match %s references unknown source %s", pm.UID, pm.Source2.MatchUID)
			}
			source2, take2 = &id, pm.Source2.TakeLoser
		}

		if err := s.matchRepo.UpdateSources(ctx, tx, match.ID, source1, take1, source2, take2); err != nil {
			return nil, err
		}
		match.Source1MatchID, match.Source1TakeLoser = source1, take1
		match.Source2MatchID, match.Source2TakeLoser = source2, take2
	}

	return created, nil
}

// creditSwissByes awards the full-round point for swiss bye matches.
func (s *bracketService) creditSwissByes(ctx context.Context, tx *sql.Tx, created []*models.Match, enrollmentByID map[int]*models.Enrollment) error {
	for _, m := range created {
		if m.Segment != models.SegmentSwissRound || m.Status != models.MatchStatusBye || m.WinnerEnrollmentID == nil {
			continue
		}
		e := enrollmentByID[*m.WinnerEnrollmentID]
		if e == nil {
			return fmt.Errorf("swiss bye references unknown enrollment %d", *m.WinnerEnrollmentID)
		}
		e.SwissPoints++
		if err := s.enrollmentRepo.UpdateSwiss(ctx, tx, e.ID, e.SwissPoints, e.SwissOpponents); err != nil {
			return err
		}
	}
	return nil
}
