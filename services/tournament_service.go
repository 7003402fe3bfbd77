package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/smashpoint/league-system/brackets"
	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/repositories"
	"golang.org/x/sync/errgroup"
)

type TournamentInput struct {
	Name             string                  `json:"name"`
	Description      *string                 `json:"description"`
	Format           models.TournamentFormat `json:"format"`
	Arity            models.MatchArity       `json:"arity"`
	BaseMultiplier   *int                    `json:"base_multiplier"`
	FinalsMultiplier *int                    `json:"finals_multiplier"`
	DefaultBestOf    *int                    `json:"default_best_of"`
	GroupBestOf      *int                    `json:"group_best_of"`
	EarlyBestOf      *int                    `json:"early_best_of"`
	SemifinalBestOf  *int                    `json:"semifinal_best_of"`
	FinalBestOf      *int                    `json:"final_best_of"`
	SwissRounds      *int                    `json:"swiss_rounds"`
	GroupCount       *int                    `json:"group_count"`
	AdvancePerGroup  *int                    `json:"advance_per_group"`
	GrandFinalReset  *bool                   `json:"grand_final_reset"`
}

type EnrollInput struct {
	PlayerID  int  `json:"player_id"`
	PartnerID *int `json:"partner_id"`
}

type TournamentService interface {
	Create(ctx context.Context, creatorID int, input TournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetFullData(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.TournamentFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, id int, input TournamentInput) (*models.Tournament, error)
	OpenEnrollment(ctx context.Context, id int) (*models.Tournament, error)
	Cancel(ctx context.Context, id int) (*models.Tournament, error)
	Delete(ctx context.Context, id int) error
	Enroll(ctx context.Context, tournamentID int, input EnrollInput) (*models.Enrollment, error)
	Withdraw(ctx context.Context, tournamentID, enrollmentID, actorID int, actorRole models.PlayerRole) error
	SetSeed(ctx context.Context, tournamentID, enrollmentID, seed int) (*models.Enrollment, error)
	GetStandings(ctx context.Context, id int) ([]models.StandingRow, error)
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	groupRepo      repositories.GroupRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	gameRepo       repositories.GameResultRepository
	notifier       Notifier
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	groupRepo repositories.GroupRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	gameRepo repositories.GameResultRepository,
	notifier Notifier,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		enrollmentRepo: enrollmentRepo,
		groupRepo:      groupRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		gameRepo:       gameRepo,
		notifier:       notifier,
	}
}

func (s *tournamentService) Create(ctx context.Context, creatorID int, input TournamentInput) (*models.Tournament, error) {
	tournament := &models.Tournament{
		Name:             strings.TrimSpace(input.Name),
		Description:      input.Description,
		Format:           input.Format,
		Arity:            input.Arity,
		Status:           models.StatusDraft,
		BaseMultiplier:   100,
		FinalsMultiplier: 150,
		DefaultBestOf:    5,
		CreatedBy:        creatorID,
	}
	applyTournamentInput(tournament, input)

	if err := validateTournamentConfig(tournament); err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, nil
}

func applyTournamentInput(t *models.Tournament, input TournamentInput) {
	if input.BaseMultiplier != nil {
		t.BaseMultiplier = *input.BaseMultiplier
	}
	if input.FinalsMultiplier != nil {
		t.FinalsMultiplier = *input.FinalsMultiplier
	}
	if input.DefaultBestOf != nil {
		t.DefaultBestOf = *input.DefaultBestOf
	}
	t.GroupBestOf = input.GroupBestOf
	t.EarlyBestOf = input.EarlyBestOf
	t.SemifinalBestOf = input.SemifinalBestOf
	t.FinalBestOf = input.FinalBestOf
	t.SwissRounds = input.SwissRounds
	t.GroupCount = input.GroupCount
	t.AdvancePerGroup = input.AdvancePerGroup
	if input.GrandFinalReset != nil {
		t.GrandFinalReset = *input.GrandFinalReset
	}
}

func validateTournamentConfig(t *models.Tournament) error {
	if t.Name == "" {
		return ErrTournamentNameRequired
	}
	if !models.ValidTournamentFormat(t.Format) {
		return ErrInvalidFormat
	}
	if t.Arity != models.AritySingles && t.Arity != models.ArityDoubles {
		return ErrInvalidArity
	}
	if t.BaseMultiplier <= 0 || t.FinalsMultiplier <= 0 {
		return ErrInvalidMultiplier
	}

	for _, bo := range []*int{&t.DefaultBestOf, t.GroupBestOf, t.EarlyBestOf, t.SemifinalBestOf, t.FinalBestOf} {
		if bo == nil {
			continue
		}
		if !brackets.ValidBestOf(*bo) {
			return ErrInvalidBestOf
		}
	}

	if t.SwissRounds != nil {
		if t.Format != models.FormatSwiss {
			return fmt.Errorf("%w: swiss_rounds only applies to the swiss format", ErrValidationFailed)
		}
		if *t.SwissRounds < 1 {
			return fmt.Errorf("%w: swiss_rounds must be at least 1", ErrValidationFailed)
		}
	}
	if t.GroupCount != nil || t.AdvancePerGroup != nil {
		if t.Format != models.FormatRoundRobinKnockout {
			return fmt.Errorf("%w: group settings only apply to the round-robin format", ErrValidationFailed)
		}
	}
	if t.GroupCount != nil && *t.GroupCount < 1 {
		return fmt.Errorf("%w: group_count must be at least 1", ErrValidationFailed)
	}
	if t.AdvancePerGroup != nil && *t.AdvancePerGroup < 1 {
		return fmt.Errorf("%w: advance_per_group must be at least 1", ErrValidationFailed)
	}
	if t.GrandFinalReset && t.Format != models.FormatDoubleElimination {
		return fmt.Errorf("%w: grand_final_reset only applies to double elimination", ErrValidationFailed)
	}
	return nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", id, err)
	}
	return tournament, nil
}

// GetFullData loads the tournament with enrollments, rounds, matches,
// groups and per-game scores, fetched concurrently.
func (s *tournamentService) GetFullData(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		enrollments []*models.Enrollment
		rounds      []*models.Round
		matches     []*models.Match
		groups      []*models.Group
		games       []models.GameResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrollments, err = s.enrollmentRepo.ListByTournament(gctx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		rounds, err = s.roundRepo.ListByTournament(gctx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gctx, nil, id, nil, nil, nil)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.groupRepo.ListByTournament(gctx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		games, err = s.gameRepo.ListByTournament(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load tournament %d data: %w", id, err)
	}

	gamesByMatch := make(map[int][]models.GameResult)
	for _, game := range games {
		gamesByMatch[game.MatchID] = append(gamesByMatch[game.MatchID], game)
	}

	tournament.Enrollments = make([]models.Enrollment, 0, len(enrollments))
	for _, e := range enrollments {
		tournament.Enrollments = append(tournament.Enrollments, *e)
	}
	tournament.Rounds = make([]models.Round, 0, len(rounds))
	for _, r := range rounds {
		tournament.Rounds = append(tournament.Rounds, *r)
	}
	tournament.Matches = make([]models.Match, 0, len(matches))
	for _, m := range matches {
		m.Games = gamesByMatch[m.ID]
		tournament.Matches = append(tournament.Matches, *m)
	}
	tournament.Groups = make([]models.Group, 0, len(groups))
	for _, gr := range groups {
		tournament.Groups = append(tournament.Groups, *gr)
	}
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.TournamentFilter) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *tournamentService) Update(ctx context.Context, id int, input TournamentInput) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusDraft {
		return nil, ErrTournamentNotDraft
	}

	tournament.Name = strings.TrimSpace(input.Name)
	tournament.Description = input.Description
	tournament.Format = input.Format
	tournament.Arity = input.Arity
	tournament.GrandFinalReset = false
	applyTournamentInput(tournament, input)

	if err := validateTournamentConfig(tournament); err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.Update(ctx, nil, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to update tournament %d: %w", id, err)
	}
	return tournament, nil
}

func (s *tournamentService) OpenEnrollment(ctx context.Context, id int) (*models.Tournament, error) {
	swapped, err := s.tournamentRepo.UpdateStatusIf(ctx, nil, id, models.StatusDraft, models.StatusEnrollment)
	if err != nil {
		return nil, fmt.Errorf("failed to open enrollment for tournament %d: %w", id, err)
	}
	if !swapped {
		return nil, s.statusSwapError(ctx, id, models.StatusEnrollment, ErrTournamentNotDraft)
	}
	return s.GetByID(ctx, id)
}

func (s *tournamentService) Cancel(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch tournament.Status {
	case models.StatusDraft, models.StatusEnrollment:
	default:
		return nil, ErrTournamentNotCancelable
	}

	swapped, err := s.tournamentRepo.UpdateStatusIf(ctx, nil, id, tournament.Status, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel tournament %d: %w", id, err)
	}
	if !swapped {
		return nil, s.statusSwapError(ctx, id, models.StatusCancelled, ErrTournamentNotCancelable)
	}
	return s.GetByID(ctx, id)
}

func (s *tournamentService) Delete(ctx context.Context, id int) error {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tournament.Status != models.StatusDraft && tournament.Status != models.StatusCancelled {
		return ErrTournamentNotDeletable
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return nil
}

// statusSwapError classifies a failed compare-and-swap: the row reaching
// the wanted status through someone else's transition is a lost race,
// anything else is an ordinary state violation.
func (s *tournamentService) statusSwapError(ctx context.Context, id int, want models.TournamentStatus, stateErr error) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to reload tournament %d: %w", id, err)
	}
	if tournament.Status == want {
		return ErrConcurrentUpdate
	}
	return stateErr
}

func (s *tournamentService) Enroll(ctx context.Context, tournamentID int, input EnrollInput) (*models.Enrollment, error) {
	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusEnrollment {
		return nil, ErrEnrollmentNotOpen
	}

	switch tournament.Arity {
	case models.AritySingles:
		if input.PartnerID != nil {
			return nil, ErrPartnerNotAllowed
		}
	case models.ArityDoubles:
		if input.PartnerID == nil {
			return nil, ErrPartnerRequired
		}
		if *input.PartnerID == input.PlayerID {
			return nil, ErrPartnerIsPlayer
		}
	}

	for _, playerID := range enrollPlayerIDs(input) {
		enrolled, err := s.enrollmentRepo.HasPlayer(ctx, tournamentID, playerID)
		if err != nil {
			return nil, fmt.Errorf("failed to check enrollment for player %d: %w", playerID, err)
		}
		if enrolled {
			return nil, ErrAlreadyEnrolled
		}
	}

	enrollment := &models.Enrollment{
		TournamentID: tournamentID,
		PlayerID:     input.PlayerID,
		PartnerID:    input.PartnerID,
		Active:       true,
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if current.Status != models.StatusEnrollment {
			return ErrEnrollmentNotOpen
		}
		return s.enrollmentRepo.Create(ctx, tx, enrollment)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrEnrollmentConflict):
			return nil, ErrAlreadyEnrolled
		case errors.Is(err, repositories.ErrEnrollmentRefInvalid):
			return nil, ErrPlayerNotFound
		case errors.Is(err, ErrEnrollmentNotOpen):
			return nil, err
		}
		return nil, fmt.Errorf("failed to enroll in tournament %d: %w", tournamentID, err)
	}

	s.notifier.Publish(Event{
		Type:         EventEnrollmentChanged,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"action": "enrolled", "enrollment": enrollment},
	})
	return enrollment, nil
}

func enrollPlayerIDs(input EnrollInput) []int {
	ids := []int{input.PlayerID}
	if input.PartnerID != nil {
		ids = append(ids, *input.PartnerID)
	}
	return ids
}

func (s *tournamentService) Withdraw(ctx context.Context, tournamentID, enrollmentID, actorID int, actorRole models.PlayerRole) error {
	enrollment, err := s.enrollmentRepo.GetByID(ctx, nil, enrollmentID)
	if err != nil {
		if errors.Is(err, repositories.ErrEnrollmentNotFound) {
			return ErrEnrollmentNotFound
		}
		return fmt.Errorf("failed to load enrollment %d: %w", enrollmentID, err)
	}
	if enrollment.TournamentID != tournamentID {
		return ErrEnrollmentNotFound
	}

	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.Status != models.StatusEnrollment {
		return ErrEnrollmentNotOpen
	}

	isOwn := actorID == enrollment.PlayerID ||
		(enrollment.PartnerID != nil && actorID == *enrollment.PartnerID)
	if !isOwn && actorRole != models.RoleAdmin {
		return ErrForbiddenOperation
	}

	if err := s.enrollmentRepo.Delete(ctx, enrollmentID); err != nil {
		if errors.Is(err, repositories.ErrEnrollmentNotFound) {
			return ErrEnrollmentNotFound
		}
		return fmt.Errorf("failed to withdraw enrollment %d: %w", enrollmentID, err)
	}

	s.notifier.Publish(Event{
		Type:         EventEnrollmentChanged,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"action": "withdrawn", "enrollment_id": enrollmentID},
	})
	return nil
}

// SetSeed pins an enrollment to a seed position. Pinned seeds are
// locked, so bracket generation keeps them ahead of rating order.
func (s *tournamentService) SetSeed(ctx context.Context, tournamentID, enrollmentID, seed int) (*models.Enrollment, error) {
	if seed < 1 {
		return nil, fmt.Errorf("%w: seed must be positive", ErrValidationFailed)
	}

	enrollment, err := s.enrollmentRepo.GetByID(ctx, nil, enrollmentID)
	if err != nil {
		if errors.Is(err, repositories.ErrEnrollmentNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to load enrollment %d: %w", enrollmentID, err)
	}
	if enrollment.TournamentID != tournamentID {
		return nil, ErrEnrollmentNotFound
	}

	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusEnrollment {
		return nil, ErrEnrollmentNotOpen
	}

	if err := s.enrollmentRepo.UpdateSeed(ctx, nil, enrollmentID, seed, true); err != nil {
		return nil, fmt.Errorf("failed to set seed for enrollment %d: %w", enrollmentID, err)
	}
	enrollment.Seed = seed
	enrollment.SeedLocked = true

	s.notifier.Publish(Event{
		Type:         EventEnrollmentChanged,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"action": "seeded", "enrollment_id": enrollmentID, "seed": seed},
	})
	return enrollment, nil
}

func (s *tournamentService) GetStandings(ctx context.Context, id int) ([]models.StandingRow, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollmentRepo.ListByTournament(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments for tournament %d: %w", id, err)
	}

	switch tournament.Format {
	case models.FormatRoundRobinKnockout:
		groups, err := s.groupRepo.ListByTournament(ctx, nil, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load groups for tournament %d: %w", id, err)
		}
		return groupStandings(groups, enrollments), nil
	case models.FormatSwiss:
		matches, err := s.matchRepo.ListByTournament(ctx, nil, id, nil, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load matches for tournament %d: %w", id, err)
		}
		return swissStandings(enrollments, matches), nil
	default:
		matches, err := s.matchRepo.ListByTournament(ctx, nil, id, nil, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load matches for tournament %d: %w", id, err)
		}
		return eliminationStandings(enrollments, matches), nil
	}
}
