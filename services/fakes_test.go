package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/repositories"
	"github.com/smashpoint/league-system/storage"
)

// fakeStore is the shared in-memory backing for the repository fakes
// below. The fakes reproduce the postgres repositories' guards, orderings
// and sentinel errors, so service flows behave as they would against the
// real schema. Everything is copied on the way in and out, which keeps a
// forgotten Update call visible as a failing assertion instead of a
// silently shared pointer.
type fakeStore struct {
	nextID      int
	players     map[int]*models.Player
	tournaments map[int]*models.Tournament
	enrollments map[int]*models.Enrollment
	groups      map[int]*models.Group
	rounds      map[int]*models.Round
	matches     map[int]*models.Match
	games       []models.GameResult
	challenges  map[int]*models.Challenge
	unlocked    map[int][]models.PlayerAchievement
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:     map[int]*models.Player{},
		tournaments: map[int]*models.Tournament{},
		enrollments: map[int]*models.Enrollment{},
		groups:      map[int]*models.Group{},
		rounds:      map[int]*models.Round{},
		matches:     map[int]*models.Match{},
		challenges:  map[int]*models.Challenge{},
		unlocked:    map[int][]models.PlayerAchievement{},
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

func copyPlayer(p *models.Player) *models.Player {
	c := *p
	return &c
}

func copyTournament(t *models.Tournament) *models.Tournament {
	c := *t
	return &c
}

func copyEnrollment(e *models.Enrollment) *models.Enrollment {
	c := *e
	c.SwissOpponents = append([]int64(nil), e.SwissOpponents...)
	c.Player = nil
	c.Partner = nil
	return &c
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	c.Games = append([]models.GameResult(nil), m.Games...)
	return &c
}

func copyChallenge(c *models.Challenge) *models.Challenge {
	cp := *c
	cp.Challenger = nil
	cp.Opponent = nil
	return &cp
}

func slicePage[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type fakePlayerRepo struct {
	s *fakeStore
}

func (r *fakePlayerRepo) Create(ctx context.Context, player *models.Player) error {
	for _, existing := range r.s.players {
		if existing.Email == player.Email {
			return repositories.ErrPlayerEmailConflict
		}
	}
	player.ID = r.s.id()
	player.CreatedAt = time.Now()
	r.s.players[player.ID] = copyPlayer(player)
	return nil
}

func (r *fakePlayerRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Player, error) {
	player, ok := r.s.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return copyPlayer(player), nil
}

func (r *fakePlayerRepo) GetByEmail(ctx context.Context, email string) (*models.Player, error) {
	for _, player := range r.s.players {
		if player.Email == email {
			return copyPlayer(player), nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) List(ctx context.Context, filter repositories.PlayerFilter) ([]*models.Player, error) {
	players := make([]*models.Player, 0, len(r.s.players))
	for _, player := range r.s.players {
		if filter.Search != nil && *filter.Search != "" {
			needle := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(player.DisplayName), needle) &&
				!strings.Contains(strings.ToLower(player.Email), needle) {
				continue
			}
		}
		if filter.Role != nil && player.Role != *filter.Role {
			continue
		}
		players = append(players, copyPlayer(player))
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Rating != players[j].Rating {
			return players[i].Rating > players[j].Rating
		}
		return players[i].ID < players[j].ID
	})
	return slicePage(players, filter.Limit, filter.Offset), nil
}

func (r *fakePlayerRepo) UpdateProfile(ctx context.Context, player *models.Player) error {
	stored, ok := r.s.players[player.ID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	for id, other := range r.s.players {
		if id != player.ID && other.Email == player.Email {
			return repositories.ErrPlayerEmailConflict
		}
	}
	stored.Email = player.Email
	stored.DisplayName = player.DisplayName
	return nil
}

func (r *fakePlayerRepo) UpdateAvatarKey(ctx context.Context, id int, key *string) error {
	stored, ok := r.s.players[id]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	stored.AvatarKey = key
	return nil
}

func (r *fakePlayerRepo) UpdateRole(ctx context.Context, id int, role models.PlayerRole) error {
	stored, ok := r.s.players[id]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	stored.Role = role
	return nil
}

func (r *fakePlayerRepo) UpdateStats(ctx context.Context, exec repositories.SQLExecutor, player *models.Player) error {
	stored, ok := r.s.players[player.ID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	stored.Rating = player.Rating
	stored.Wins = player.Wins
	stored.Losses = player.Losses
	stored.CurrentStreak = player.CurrentStreak
	stored.BestStreak = player.BestStreak
	return nil
}

func (r *fakePlayerRepo) IncrementTournamentsPlayed(ctx context.Context, exec repositories.SQLExecutor, playerIDs []int) error {
	for _, id := range playerIDs {
		if stored, ok := r.s.players[id]; ok {
			stored.TournamentsPlayed++
		}
	}
	return nil
}

func (r *fakePlayerRepo) IncrementTournamentsWon(ctx context.Context, exec repositories.SQLExecutor, playerIDs []int) error {
	for _, id := range playerIDs {
		if stored, ok := r.s.players[id]; ok {
			stored.TournamentsWon++
		}
	}
	return nil
}

type fakeTournamentRepo struct {
	s *fakeStore

	// beforeStatusSwap runs just before the CAS guard is evaluated, so a
	// test can lose the race on purpose.
	beforeStatusSwap func()
}

func (r *fakeTournamentRepo) Create(ctx context.Context, tournament *models.Tournament) error {
	for _, existing := range r.s.tournaments {
		if existing.Name == tournament.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	if _, ok := r.s.players[tournament.CreatedBy]; !ok {
		return repositories.ErrTournamentOwnerInvalid
	}
	tournament.ID = r.s.id()
	tournament.CreatedAt = time.Now()
	r.s.tournaments[tournament.ID] = copyTournament(tournament)
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	tournament, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return copyTournament(tournament), nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, filter repositories.TournamentFilter) ([]*models.Tournament, error) {
	tournaments := make([]*models.Tournament, 0, len(r.s.tournaments))
	for _, tournament := range r.s.tournaments {
		if filter.Status != nil && tournament.Status != *filter.Status {
			continue
		}
		if filter.Format != nil && tournament.Format != *filter.Format {
			continue
		}
		if filter.CreatedBy != nil && tournament.CreatedBy != *filter.CreatedBy {
			continue
		}
		tournaments = append(tournaments, copyTournament(tournament))
	}
	sort.Slice(tournaments, func(i, j int) bool {
		return tournaments[i].ID > tournaments[j].ID
	})
	return slicePage(tournaments, filter.Limit, filter.Offset), nil
}

func (r *fakeTournamentRepo) Update(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error {
	stored, ok := r.s.tournaments[tournament.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	for id, other := range r.s.tournaments {
		if id != tournament.ID && other.Name == tournament.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	stored.Name = tournament.Name
	stored.Description = tournament.Description
	stored.Format = tournament.Format
	stored.Arity = tournament.Arity
	stored.BaseMultiplier = tournament.BaseMultiplier
	stored.FinalsMultiplier = tournament.FinalsMultiplier
	stored.DefaultBestOf = tournament.DefaultBestOf
	stored.GroupBestOf = tournament.GroupBestOf
	stored.EarlyBestOf = tournament.EarlyBestOf
	stored.SemifinalBestOf = tournament.SemifinalBestOf
	stored.FinalBestOf = tournament.FinalBestOf
	stored.SwissRounds = tournament.SwissRounds
	stored.GroupCount = tournament.GroupCount
	stored.AdvancePerGroup = tournament.AdvancePerGroup
	stored.GrandFinalReset = tournament.GrandFinalReset
	return nil
}

func (r *fakeTournamentRepo) UpdateStatusIf(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	if r.beforeStatusSwap != nil {
		r.beforeStatusSwap()
	}
	stored, ok := r.s.tournaments[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	return true, nil
}

func (r *fakeTournamentRepo) MarkStarted(ctx context.Context, exec repositories.SQLExecutor, id int, totalRounds int) error {
	stored, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	now := time.Now()
	stored.StartedAt = &now
	stored.CurrentRound = 1
	stored.TotalRounds = totalRounds
	return nil
}

func (r *fakeTournamentRepo) UpdateProgress(ctx context.Context, exec repositories.SQLExecutor, id int, currentRound, totalRounds int) error {
	stored, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	stored.CurrentRound = currentRound
	stored.TotalRounds = totalRounds
	return nil
}

func (r *fakeTournamentRepo) MarkCompleted(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	stored, ok := r.s.tournaments[id]
	if !ok || stored.Status != models.StatusInProgress {
		return repositories.ErrTournamentNotFound
	}
	now := time.Now()
	stored.Status = models.StatusCompleted
	stored.CompletedAt = &now
	return nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.s.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.s.tournaments, id)
	for eid, e := range r.s.enrollments {
		if e.TournamentID == id {
			delete(r.s.enrollments, eid)
		}
	}
	for gid, g := range r.s.groups {
		if g.TournamentID == id {
			delete(r.s.groups, gid)
		}
	}
	for rid, round := range r.s.rounds {
		if round.TournamentID == id {
			delete(r.s.rounds, rid)
		}
	}
	for mid, m := range r.s.matches {
		if m.TournamentID == id {
			delete(r.s.matches, mid)
		}
	}
	return nil
}

type fakeEnrollmentRepo struct {
	s *fakeStore
}

func (r *fakeEnrollmentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, enrollment *models.Enrollment) error {
	if _, ok := r.s.tournaments[enrollment.TournamentID]; !ok {
		return repositories.ErrEnrollmentRefInvalid
	}
	if _, ok := r.s.players[enrollment.PlayerID]; !ok {
		return repositories.ErrEnrollmentRefInvalid
	}
	for _, existing := range r.s.enrollments {
		if existing.TournamentID == enrollment.TournamentID && existing.PlayerID == enrollment.PlayerID {
			return repositories.ErrEnrollmentConflict
		}
	}
	enrollment.ID = r.s.id()
	enrollment.CreatedAt = time.Now()
	r.s.enrollments[enrollment.ID] = copyEnrollment(enrollment)
	return nil
}

func (r *fakeEnrollmentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Enrollment, error) {
	enrollment, ok := r.s.enrollments[id]
	if !ok {
		return nil, repositories.ErrEnrollmentNotFound
	}
	return copyEnrollment(enrollment), nil
}

func (r *fakeEnrollmentRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	enrollments := make([]*models.Enrollment, 0)
	for _, e := range r.s.enrollments {
		if e.TournamentID != tournamentID {
			continue
		}
		c := copyEnrollment(e)
		if p, ok := r.s.players[c.PlayerID]; ok {
			c.Player = &models.Player{ID: p.ID, DisplayName: p.DisplayName, Rating: p.Rating}
		}
		if c.PartnerID != nil {
			if p, ok := r.s.players[*c.PartnerID]; ok {
				c.Partner = &models.Player{ID: p.ID, DisplayName: p.DisplayName, Rating: p.Rating}
			}
		}
		enrollments = append(enrollments, c)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		if enrollments[i].Seed != enrollments[j].Seed {
			return enrollments[i].Seed < enrollments[j].Seed
		}
		return enrollments[i].ID < enrollments[j].ID
	})
	return enrollments, nil
}

func (r *fakeEnrollmentRepo) HasPlayer(ctx context.Context, tournamentID, playerID int) (bool, error) {
	for _, e := range r.s.enrollments {
		if e.TournamentID != tournamentID {
			continue
		}
		if e.PlayerID == playerID || (e.PartnerID != nil && *e.PartnerID == playerID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEnrollmentRepo) UpdateSeed(ctx context.Context, exec repositories.SQLExecutor, id, seed int, locked bool) error {
	stored, ok := r.s.enrollments[id]
	if !ok {
		return repositories.ErrEnrollmentNotFound
	}
	stored.Seed = seed
	stored.SeedLocked = locked
	return nil
}

func (r *fakeEnrollmentRepo) UpdateSwiss(ctx context.Context, exec repositories.SQLExecutor, id, points int, opponents []int64) error {
	stored, ok := r.s.enrollments[id]
	if !ok {
		return repositories.ErrEnrollmentNotFound
	}
	stored.SwissPoints = points
	stored.SwissOpponents = append([]int64(nil), opponents...)
	return nil
}

func (r *fakeEnrollmentRepo) AssignGroup(ctx context.Context, exec repositories.SQLExecutor, id, groupID int) error {
	stored, ok := r.s.enrollments[id]
	if !ok {
		return repositories.ErrEnrollmentNotFound
	}
	stored.GroupID = &groupID
	return nil
}

func (r *fakeEnrollmentRepo) UpdateGroupStats(ctx context.Context, exec repositories.SQLExecutor, enrollment *models.Enrollment) error {
	stored, ok := r.s.enrollments[enrollment.ID]
	if !ok {
		return repositories.ErrEnrollmentNotFound
	}
	stored.GroupPoints = enrollment.GroupPoints
	stored.GroupWins = enrollment.GroupWins
	stored.GroupLosses = enrollment.GroupLosses
	stored.GameDiff = enrollment.GameDiff
	return nil
}

func (r *fakeEnrollmentRepo) SetEliminated(ctx context.Context, exec repositories.SQLExecutor, id, round int) error {
	stored, ok := r.s.enrollments[id]
	if !ok {
		return repositories.ErrEnrollmentNotFound
	}
	eliminated := round
	stored.Active = false
	stored.EliminatedInRound = &eliminated
	return nil
}

func (r *fakeEnrollmentRepo) SetPlacement(ctx context.Context, exec repositories.SQLExecutor, id, placement int) error {
	stored, ok := r.s.enrollments[id]
	if !ok {
		return repositories.ErrEnrollmentNotFound
	}
	p := placement
	stored.Placement = &p
	return nil
}

func (r *fakeEnrollmentRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.s.enrollments[id]; !ok {
		return repositories.ErrEnrollmentNotFound
	}
	delete(r.s.enrollments, id)
	return nil
}

type fakeGroupRepo struct {
	s *fakeStore
}

func (r *fakeGroupRepo) Create(ctx context.Context, exec repositories.SQLExecutor, group *models.Group) error {
	group.ID = r.s.id()
	c := *group
	r.s.groups[group.ID] = &c
	return nil
}

func (r *fakeGroupRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Group, error) {
	groups := make([]*models.Group, 0)
	for _, g := range r.s.groups {
		if g.TournamentID == tournamentID {
			c := *g
			groups = append(groups, &c)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Position < groups[j].Position
	})
	return groups, nil
}

type fakeRoundRepo struct {
	s *fakeStore
}

func (r *fakeRoundRepo) Create(ctx context.Context, exec repositories.SQLExecutor, round *models.Round) error {
	for _, existing := range r.s.rounds {
		if existing.TournamentID == round.TournamentID &&
			existing.Number == round.Number &&
			existing.Segment == round.Segment {
			return repositories.ErrRoundConflict
		}
	}
	round.ID = r.s.id()
	round.CreatedAt = time.Now()
	c := *round
	r.s.rounds[round.ID] = &c
	return nil
}

func (r *fakeRoundRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Round, error) {
	round, ok := r.s.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	c := *round
	return &c, nil
}

func (r *fakeRoundRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Round, error) {
	rounds := make([]*models.Round, 0)
	for _, round := range r.s.rounds {
		if round.TournamentID == tournamentID {
			c := *round
			rounds = append(rounds, &c)
		}
	}
	sort.Slice(rounds, func(i, j int) bool {
		if rounds[i].Number != rounds[j].Number {
			return rounds[i].Number < rounds[j].Number
		}
		return rounds[i].ID < rounds[j].ID
	})
	return rounds, nil
}

type fakeMatchRepo struct {
	s *fakeStore

	// beforeComplete runs just before the CompleteIf guard, so a test can
	// settle the match concurrently.
	beforeComplete func()
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	match.ID = r.s.id()
	match.CreatedAt = time.Now()
	stored := copyMatch(match)
	stored.Games = nil
	stored.Source1MatchID = nil
	stored.Source1TakeLoser = false
	stored.Source2MatchID = nil
	stored.Source2TakeLoser = false
	stored.IsNext = false
	stored.WalkoverReason = nil
	stored.PlayedAt = nil
	r.s.matches[match.ID] = stored
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	match, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(match), nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, round *int, segment *models.Segment, status *models.MatchStatus) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for _, match := range r.s.matches {
		if match.TournamentID != tournamentID {
			continue
		}
		if round != nil && match.RoundNumber != *round {
			continue
		}
		if segment != nil && match.Segment != *segment {
			continue
		}
		if status != nil && match.Status != *status {
			continue
		}
		matches = append(matches, copyMatch(match))
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RoundNumber != matches[j].RoundNumber {
			return matches[i].RoundNumber < matches[j].RoundNumber
		}
		return matches[i].Position < matches[j].Position
	})
	return matches, nil
}

func (r *fakeMatchRepo) ListCompletedByPlayer(ctx context.Context, exec repositories.SQLExecutor, playerID, limit, offset int) ([]*models.Match, error) {
	owns := func(enrollmentID *int) bool {
		if enrollmentID == nil {
			return false
		}
		e, ok := r.s.enrollments[*enrollmentID]
		if !ok {
			return false
		}
		return e.PlayerID == playerID || (e.PartnerID != nil && *e.PartnerID == playerID)
	}

	matches := make([]*models.Match, 0)
	for _, match := range r.s.matches {
		if match.Status != models.MatchStatusCompleted && match.Status != models.MatchStatusWalkover {
			continue
		}
		if !owns(match.Slot1EnrollmentID) && !owns(match.Slot2EnrollmentID) {
			continue
		}
		matches = append(matches, copyMatch(match))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })
	if offset >= len(matches) {
		return []*models.Match{}, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *fakeMatchRepo) UpdateSources(ctx context.Context, exec repositories.SQLExecutor, id int, source1 *int, source1TakeLoser bool, source2 *int, source2TakeLoser bool) error {
	stored, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.Source1MatchID = source1
	stored.Source1TakeLoser = source1TakeLoser
	stored.Source2MatchID = source2
	stored.Source2TakeLoser = source2TakeLoser
	return nil
}

func (r *fakeMatchRepo) UpdateSlotsStatusWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	stored, ok := r.s.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.Slot1EnrollmentID = match.Slot1EnrollmentID
	stored.Slot2EnrollmentID = match.Slot2EnrollmentID
	stored.WinnerEnrollmentID = match.WinnerEnrollmentID
	stored.Status = match.Status
	return nil
}

func (r *fakeMatchRepo) UpdateStatusIf(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.MatchStatus) (bool, error) {
	stored, ok := r.s.matches[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	return true, nil
}

func (r *fakeMatchRepo) CompleteIf(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) (bool, error) {
	if r.beforeComplete != nil {
		r.beforeComplete()
	}
	stored, ok := r.s.matches[match.ID]
	if !ok {
		return false, nil
	}
	if stored.Status != models.MatchStatusReady && stored.Status != models.MatchStatusInProgress {
		return false, nil
	}
	now := time.Now()
	stored.WinnerEnrollmentID = match.WinnerEnrollmentID
	stored.Status = match.Status
	stored.WalkoverReason = match.WalkoverReason
	stored.PlayedAt = &now
	return true, nil
}

func (r *fakeMatchRepo) SetBestOfIf(ctx context.Context, exec repositories.SQLExecutor, id int, bestOf *int) (bool, error) {
	stored, ok := r.s.matches[id]
	if !ok || stored.Terminal() {
		return false, nil
	}
	stored.BestOf = bestOf
	return true, nil
}

func (r *fakeMatchRepo) ClearNextFlag(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	for _, match := range r.s.matches {
		if match.TournamentID == tournamentID {
			match.IsNext = false
		}
	}
	return nil
}

func (r *fakeMatchRepo) SetNextFlag(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	stored, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.IsNext = true
	return nil
}

type fakeGameRepo struct {
	s *fakeStore
}

func (r *fakeGameRepo) Create(ctx context.Context, exec repositories.SQLExecutor, result *models.GameResult) error {
	if _, ok := r.s.matches[result.MatchID]; !ok {
		return fmt.Errorf("game result references missing match %d", result.MatchID)
	}
	result.ID = r.s.id()
	result.CreatedAt = time.Now()
	r.s.games = append(r.s.games, *result)
	return nil
}

func (r *fakeGameRepo) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.GameResult, error) {
	games := make([]models.GameResult, 0)
	for _, game := range r.s.games {
		if game.MatchID == matchID {
			games = append(games, game)
		}
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].GameNumber < games[j].GameNumber
	})
	return games, nil
}

func (r *fakeGameRepo) ListByTournament(ctx context.Context, tournamentID int) ([]models.GameResult, error) {
	games := make([]models.GameResult, 0)
	for _, game := range r.s.games {
		match, ok := r.s.matches[game.MatchID]
		if ok && match.TournamentID == tournamentID {
			games = append(games, game)
		}
	}
	sort.Slice(games, func(i, j int) bool {
		if games[i].MatchID != games[j].MatchID {
			return games[i].MatchID < games[j].MatchID
		}
		return games[i].GameNumber < games[j].GameNumber
	})
	return games, nil
}

type fakeChallengeRepo struct {
	s *fakeStore

	beforeComplete func()
}

func (r *fakeChallengeRepo) Create(ctx context.Context, challenge *models.Challenge) error {
	for _, existing := range r.s.challenges {
		if existing.Token == challenge.Token {
			return repositories.ErrChallengeTokenConflict
		}
	}
	ids := []int{challenge.ChallengerID, challenge.OpponentID}
	if challenge.ChallengerPartner != nil {
		ids = append(ids, *challenge.ChallengerPartner)
	}
	if challenge.OpponentPartner != nil {
		ids = append(ids, *challenge.OpponentPartner)
	}
	for _, id := range ids {
		if _, ok := r.s.players[id]; !ok {
			return repositories.ErrChallengePlayerInvalid
		}
	}
	challenge.ID = r.s.id()
	challenge.CreatedAt = time.Now()
	r.s.challenges[challenge.ID] = copyChallenge(challenge)
	return nil
}

func (r *fakeChallengeRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Challenge, error) {
	challenge, ok := r.s.challenges[id]
	if !ok {
		return nil, repositories.ErrChallengeNotFound
	}
	return copyChallenge(challenge), nil
}

func (r *fakeChallengeRepo) GetByToken(ctx context.Context, token string) (*models.Challenge, error) {
	for _, challenge := range r.s.challenges {
		if challenge.Token == token {
			return copyChallenge(challenge), nil
		}
	}
	return nil, repositories.ErrChallengeNotFound
}

func (r *fakeChallengeRepo) ListForPlayer(ctx context.Context, playerID int, status *models.ChallengeStatus, limit, offset int) ([]*models.Challenge, error) {
	challenges := make([]*models.Challenge, 0)
	for _, c := range r.s.challenges {
		onChallengerSide := c.ChallengerID == playerID ||
			(c.ChallengerPartner != nil && *c.ChallengerPartner == playerID)
		onOpponentSide := c.OpponentID == playerID ||
			(c.OpponentPartner != nil && *c.OpponentPartner == playerID)
		if !onChallengerSide && !onOpponentSide {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		challenges = append(challenges, copyChallenge(c))
	}
	sort.Slice(challenges, func(i, j int) bool {
		return challenges[i].ID > challenges[j].ID
	})
	return slicePage(challenges, limit, offset), nil
}

func (r *fakeChallengeRepo) UpdateStatusIf(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.ChallengeStatus) (bool, error) {
	stored, ok := r.s.challenges[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	return true, nil
}

func (r *fakeChallengeRepo) CompleteIf(ctx context.Context, exec repositories.SQLExecutor, challenge *models.Challenge) (bool, error) {
	if r.beforeComplete != nil {
		r.beforeComplete()
	}
	stored, ok := r.s.challenges[challenge.ID]
	if !ok || stored.Status != models.ChallengeAccepted {
		return false, nil
	}
	now := time.Now()
	stored.Status = models.ChallengeCompleted
	stored.WinnerSide = challenge.WinnerSide
	stored.Score = challenge.Score
	stored.ChallengerDelta = challenge.ChallengerDelta
	stored.OpponentDelta = challenge.OpponentDelta
	stored.CompletedAt = &now
	return true, nil
}

func (r *fakeChallengeRepo) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	var expired int64
	for _, challenge := range r.s.challenges {
		if challenge.Status == models.ChallengePending && challenge.ExpiresAt.Before(cutoff) {
			challenge.Status = models.ChallengeExpired
			expired++
		}
	}
	return expired, nil
}

type fakeAchievementRepo struct {
	s *fakeStore
}

func (r *fakeAchievementRepo) Unlock(ctx context.Context, exec repositories.SQLExecutor, playerID int, code string) (bool, error) {
	for _, unlocked := range r.s.unlocked[playerID] {
		if unlocked.Code == code {
			return false, nil
		}
	}
	r.s.unlocked[playerID] = append(r.s.unlocked[playerID], models.PlayerAchievement{
		ID:         r.s.id(),
		PlayerID:   playerID,
		Code:       code,
		UnlockedAt: time.Now(),
	})
	return true, nil
}

func (r *fakeAchievementRepo) ListByPlayer(ctx context.Context, playerID int) ([]models.PlayerAchievement, error) {
	return append([]models.PlayerAchievement(nil), r.s.unlocked[playerID]...), nil
}

type fakeStatsRepo struct {
	s *fakeStore
}

func (r *fakeStatsRepo) ClubStats(ctx context.Context) (*models.ClubStats, error) {
	stats := &models.ClubStats{PlayersTotal: len(r.s.players), TournamentsTotal: len(r.s.tournaments)}
	for _, tournament := range r.s.tournaments {
		if tournament.Status == models.StatusEnrollment || tournament.Status == models.StatusInProgress {
			stats.ActiveTournaments++
		}
	}
	for _, match := range r.s.matches {
		if match.Status == models.MatchStatusCompleted || match.Status == models.MatchStatusWalkover {
			stats.MatchesTotal++
		}
	}
	for _, challenge := range r.s.challenges {
		if challenge.Status == models.ChallengeCompleted {
			stats.ChallengesTotal++
		}
	}
	return stats, nil
}

type fakeUploader struct {
	uploads []string
	deletes []string
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	u.uploads = append(u.uploads, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key, ETag: "test"}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.deletes = append(u.deletes, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type recordingNotifier struct {
	events []Event
}

func (n *recordingNotifier) Publish(event Event) {
	n.events = append(n.events, event)
}

func (n *recordingNotifier) ofType(eventType string) []Event {
	matched := make([]Event, 0)
	for _, event := range n.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type recordingSink struct {
	statsCalls [][]int
	completed  []int
	winners    [][]int
}

func (s *recordingSink) PlayerStatsChanged(_ context.Context, playerIDs []int) {
	s.statsCalls = append(s.statsCalls, append([]int(nil), playerIDs...))
}

func (s *recordingSink) TournamentCompleted(_ context.Context, tournamentID int, winnerPlayerIDs []int) {
	s.completed = append(s.completed, tournamentID)
	s.winners = append(s.winners, append([]int(nil), winnerPlayerIDs...))
}

var (
	_ repositories.PlayerRepository      = (*fakePlayerRepo)(nil)
	_ repositories.TournamentRepository  = (*fakeTournamentRepo)(nil)
	_ repositories.EnrollmentRepository  = (*fakeEnrollmentRepo)(nil)
	_ repositories.GroupRepository       = (*fakeGroupRepo)(nil)
	_ repositories.RoundRepository       = (*fakeRoundRepo)(nil)
	_ repositories.MatchRepository       = (*fakeMatchRepo)(nil)
	_ repositories.GameResultRepository  = (*fakeGameRepo)(nil)
	_ repositories.ChallengeRepository   = (*fakeChallengeRepo)(nil)
	_ repositories.AchievementRepository = (*fakeAchievementRepo)(nil)
	_ repositories.StatsRepository       = (*fakeStatsRepo)(nil)
	_ storage.FileUploader               = (*fakeUploader)(nil)
	_ Notifier                           = (*recordingNotifier)(nil)
	_ AchievementSink                    = (*recordingSink)(nil)
)

// fixture wires every service onto the fakes. newFixture also replaces
// runInTx with a pass-through, which is package state, so fixture-based
// tests must not run in parallel.
type fixture struct {
	t *testing.T

	store    *fakeStore
	notifier *recordingNotifier
	sink     *recordingSink
	uploader *fakeUploader

	playerRepo      *fakePlayerRepo
	tournamentRepo  *fakeTournamentRepo
	enrollmentRepo  *fakeEnrollmentRepo
	groupRepo       *fakeGroupRepo
	roundRepo       *fakeRoundRepo
	matchRepo       *fakeMatchRepo
	gameRepo        *fakeGameRepo
	challengeRepo   *fakeChallengeRepo
	achievementRepo *fakeAchievementRepo
	statsRepo       *fakeStatsRepo

	auth        AuthService
	players     PlayerService
	tournaments TournamentService
	brackets    BracketService
	matches     MatchService
	challenges  ChallengeService
	stats       StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	prevTx := runInTx
	runInTx = func(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
		return fn(nil)
	}
	t.Cleanup(func() { runInTx = prevTx })

	store := newFakeStore()
	f := &fixture{
		t:               t,
		store:           store,
		notifier:        &recordingNotifier{},
		sink:            &recordingSink{},
		uploader:        &fakeUploader{},
		playerRepo:      &fakePlayerRepo{s: store},
		tournamentRepo:  &fakeTournamentRepo{s: store},
		enrollmentRepo:  &fakeEnrollmentRepo{s: store},
		groupRepo:       &fakeGroupRepo{s: store},
		roundRepo:       &fakeRoundRepo{s: store},
		matchRepo:       &fakeMatchRepo{s: store},
		gameRepo:        &fakeGameRepo{s: store},
		challengeRepo:   &fakeChallengeRepo{s: store},
		achievementRepo: &fakeAchievementRepo{s: store},
		statsRepo:       &fakeStatsRepo{s: store},
	}

	f.auth = NewAuthService(f.playerRepo)
	f.players = NewPlayerService(f.playerRepo, f.achievementRepo, f.uploader)
	f.tournaments = NewTournamentService(nil, f.tournamentRepo, f.enrollmentRepo, f.groupRepo, f.roundRepo, f.matchRepo, f.gameRepo, f.notifier)
	f.brackets = NewBracketService(nil, f.tournamentRepo, f.enrollmentRepo, f.groupRepo, f.roundRepo, f.matchRepo, f.playerRepo, f.notifier, f.sink)
	f.matches = NewMatchService(nil, f.tournamentRepo, f.enrollmentRepo, f.roundRepo, f.matchRepo, f.gameRepo, f.playerRepo, f.notifier, f.sink)
	f.challenges = NewChallengeService(nil, f.challengeRepo, f.playerRepo, f.sink, DefaultChallengeTTL)
	f.stats = NewStatsService(f.statsRepo, f.playerRepo)
	return f
}

func (f *fixture) seedPlayer(name string, rating int) *models.Player {
	f.t.Helper()

	player := &models.Player{
		Email:        fmt.Sprintf("player%d@club.test", len(f.store.players)+1),
		PasswordHash: "not-a-real-hash",
		DisplayName:  name,
		Role:         models.RoleMember,
		Rating:       rating,
	}
	require.NoError(f.t, f.playerRepo.Create(context.Background(), player))
	return player
}

func (f *fixture) seedTournament(format models.TournamentFormat, status models.TournamentStatus, mutate func(*models.Tournament)) *models.Tournament {
	f.t.Helper()

	owner := f.seedPlayer("Owner", models.DefaultRating)
	tournament := &models.Tournament{
		Name:             fmt.Sprintf("Club Open %d", len(f.store.tournaments)+1),
		Format:           format,
		Arity:            models.AritySingles,
		Status:           status,
		BaseMultiplier:   100,
		FinalsMultiplier: 150,
		DefaultBestOf:    5,
		CreatedBy:        owner.ID,
	}
	if mutate != nil {
		mutate(tournament)
	}
	require.NoError(f.t, f.tournamentRepo.Create(context.Background(), tournament))
	return tournament
}

func (f *fixture) seedEnrollment(tournamentID int, player, partner *models.Player) *models.Enrollment {
	f.t.Helper()

	enrollment := &models.Enrollment{
		TournamentID: tournamentID,
		PlayerID:     player.ID,
		Active:       true,
	}
	if partner != nil {
		enrollment.PartnerID = &partner.ID
	}
	require.NoError(f.t, f.enrollmentRepo.Create(context.Background(), nil, enrollment))
	return enrollment
}

// seedField enrolls one fresh player per rating, in the given order.
func (f *fixture) seedField(tournamentID int, ratings ...int) []*models.Enrollment {
	f.t.Helper()

	enrollments := make([]*models.Enrollment, 0, len(ratings))
	for _, rating := range ratings {
		player := f.seedPlayer(fmt.Sprintf("Player %d", len(f.store.players)+1), rating)
		enrollments = append(enrollments, f.seedEnrollment(tournamentID, player, nil))
	}
	return enrollments
}

func (f *fixture) reloadTournament(id int) *models.Tournament {
	f.t.Helper()

	tournament, err := f.tournamentRepo.GetByID(context.Background(), nil, id)
	require.NoError(f.t, err)
	return tournament
}

func (f *fixture) reloadEnrollment(id int) *models.Enrollment {
	f.t.Helper()

	enrollment, err := f.enrollmentRepo.GetByID(context.Background(), nil, id)
	require.NoError(f.t, err)
	return enrollment
}

func (f *fixture) reloadMatch(id int) *models.Match {
	f.t.Helper()

	match, err := f.matchRepo.GetByID(context.Background(), nil, id)
	require.NoError(f.t, err)
	return match
}

func (f *fixture) reloadPlayer(id int) *models.Player {
	f.t.Helper()

	player, err := f.playerRepo.GetByID(context.Background(), nil, id)
	require.NoError(f.t, err)
	return player
}

func (f *fixture) listMatches(tournamentID int) []*models.Match {
	f.t.Helper()

	matches, err := f.matchRepo.ListByTournament(context.Background(), nil, tournamentID, nil, nil, nil)
	require.NoError(f.t, err)
	return matches
}

func (f *fixture) matchAt(tournamentID, round, position int) *models.Match {
	f.t.Helper()

	for _, match := range f.listMatches(tournamentID) {
		if match.RoundNumber == round && match.Position == position {
			return match
		}
	}
	f.t.Fatalf("no match at round %d position %d", round, position)
	return nil
}

// quickWin records a 3-0 quick result, valid for any best-of-5 match.
func (f *fixture) quickWin(matchID, winnerEnrollmentID int) *models.Match {
	f.t.Helper()

	match, err := f.matches.RecordQuickResult(context.Background(), matchID, QuickResultInput{
		WinnerEnrollmentID: winnerEnrollmentID,
		Score:              "3-0",
	})
	require.NoError(f.t, err)
	return match
}
