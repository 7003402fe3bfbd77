package services

import (
	"context"
	"database/sql"
	"sort"

	"github.com/smashpoint/league-system/brackets"
	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/ratings"
	"github.com/smashpoint/league-system/repositories"
)

// runInTx wraps service mutations in one transaction per logical
// operation. A variable so tests can run the bodies without a database.
var runInTx = repositories.WithTx

func bracketConfig(t *models.Tournament) brackets.Config {
	return brackets.Config{
		BaseMultiplier:   t.BaseMultiplier,
		FinalsMultiplier: t.FinalsMultiplier,
		DefaultBestOf:    t.DefaultBestOf,
		GroupBestOf:      t.GroupBestOf,
		EarlyBestOf:      t.EarlyBestOf,
		SemifinalBestOf:  t.SemifinalBestOf,
		FinalBestOf:      t.FinalBestOf,
		SwissRounds:      t.SwissRounds,
		GroupCount:       t.GroupCount,
		AdvancePerGroup:  t.AdvancePerGroup,
		GrandFinalReset:  t.GrandFinalReset,
	}
}

func entrantsFromEnrollments(enrollments []*models.Enrollment) []brackets.Entrant {
	entrants := make([]brackets.Entrant, 0, len(enrollments))
	for _, e := range enrollments {
		rating := 0
		if e.Player != nil {
			rating = e.Player.Rating
		}
		if e.Partner != nil {
			rating = ratings.TeamAverage(rating, e.Partner.Rating)
		}
		entrants = append(entrants, brackets.Entrant{
			EnrollmentID: e.ID,
			Rating:       rating,
			Seed:         e.Seed,
			Locked:       e.SeedLocked,
		})
	}
	return entrants
}

func swissEntrantsFromEnrollments(enrollments []*models.Enrollment) []brackets.SwissEntrant {
	entrants := make([]brackets.SwissEntrant, 0, len(enrollments))
	for _, e := range enrollments {
		if !e.Active {
			continue
		}
		entrants = append(entrants, brackets.SwissEntrant{
			EnrollmentID: e.ID,
			Seed:         e.Seed,
			Points:       e.SwissPoints,
			Opponents:    e.SwissOpponents,
		})
	}
	return entrants
}

// applyOutcome credits a decided series to both sides' career stats:
// rating deltas, win and loss counters, streaks. Callers persist the
// touched players afterwards.
func applyOutcome(winners, losers []*models.Player, winnerDelta, loserDelta int) {
	for _, p := range winners {
		p.Rating += winnerDelta
		p.Wins++
		p.CurrentStreak++
		if p.CurrentStreak > p.BestStreak {
			p.BestStreak = p.CurrentStreak
		}
	}
	for _, p := range losers {
		p.Rating += loserDelta
		p.Losses++
		p.CurrentStreak = 0
	}
}

// applyPropagation runs the advancement engine over the given match graph
// and persists whatever it changed. At generation time this resolves byes
// into next-round slots; after a result it moves the winner forward.
// Inactive enrollments are barred from being seated.
func applyPropagation(ctx context.Context, tx *sql.Tx, matchRepo repositories.MatchRepository, matches []*models.Match, enrollments []*models.Enrollment) error {
	barred := make(map[int]bool)
	for _, e := range enrollments {
		if !e.Active {
			barred[e.ID] = true
		}
	}
	for _, changed := range brackets.Propagate(matches, barred) {
		if err := matchRepo.UpdateSlotsStatusWinner(ctx, tx, changed); err != nil {
			return err
		}
	}
	return nil
}

// refreshNextFlag repoints the featured-match flag at the earliest ready
// match, or just clears it when nothing is ready. The in-memory matches
// are updated to mirror the database writes.
func refreshNextFlag(ctx context.Context, tx *sql.Tx, matchRepo repositories.MatchRepository, tournamentID int, matches []*models.Match) error {
	if err := matchRepo.ClearNextFlag(ctx, tx, tournamentID); err != nil {
		return err
	}
	next := brackets.SelectNext(matches)
	brackets.ApplyNextFlag(matches, next)
	if next == nil {
		return nil
	}
	return matchRepo.SetNextFlag(ctx, tx, next.ID)
}

// enrolledPlayerIDs flattens enrollments to player ids, partners included.
func enrolledPlayerIDs(enrollments []*models.Enrollment) []int {
	ids := make([]int, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.PlayerID)
		if e.PartnerID != nil {
			ids = append(ids, *e.PartnerID)
		}
	}
	return ids
}

func enrollmentNames(e *models.Enrollment) (player, partner string) {
	if e.Player != nil {
		player = e.Player.DisplayName
	}
	if e.Partner != nil {
		partner = e.Partner.DisplayName
	}
	return player, partner
}

// winLossByEnrollment tallies played terminal matches. Byes do not count
// as played wins.
func winLossByEnrollment(matches []*models.Match) map[int][2]int {
	tally := make(map[int][2]int)
	for _, m := range matches {
		if m.Status != models.MatchStatusCompleted && m.Status != models.MatchStatusWalkover {
			continue
		}
		if m.WinnerEnrollmentID == nil {
			continue
		}
		winner := *m.WinnerEnrollmentID
		wt := tally[winner]
		wt[0]++
		tally[winner] = wt
		if loserID := m.LoserEnrollmentID(); loserID != nil {
			lt := tally[*loserID]
			lt[1]++
			tally[*loserID] = lt
		}
	}
	return tally
}

func groupStandings(groups []*models.Group, enrollments []*models.Enrollment) []models.StandingRow {
	rows := make([]models.StandingRow, 0, len(enrollments))
	for _, g := range groups {
		members := make([]*models.Enrollment, 0)
		for _, e := range enrollments {
			if e.GroupID != nil && *e.GroupID == g.ID {
				members = append(members, e)
			}
		}
		for rank, e := range brackets.RankGroup(members) {
			player, partner := enrollmentNames(e)
			rows = append(rows, models.StandingRow{
				Rank:         rank + 1,
				EnrollmentID: e.ID,
				PlayerName:   player,
				PartnerName:  partner,
				GroupName:    g.Name,
				Points:       e.GroupPoints,
				Wins:         e.GroupWins,
				Losses:       e.GroupLosses,
				GameDiff:     e.GameDiff,
				Placement:    e.Placement,
			})
		}
	}
	return rows
}

func swissStandings(enrollments []*models.Enrollment, matches []*models.Match) []models.StandingRow {
	tally := winLossByEnrollment(matches)
	rows := make([]models.StandingRow, 0, len(enrollments))
	for rank, e := range brackets.RankSwiss(enrollments) {
		player, partner := enrollmentNames(e)
		wl := tally[e.ID]
		rows = append(rows, models.StandingRow{
			Rank:         rank + 1,
			EnrollmentID: e.ID,
			PlayerName:   player,
			PartnerName:  partner,
			Points:       e.SwissPoints,
			Wins:         wl[0],
			Losses:       wl[1],
			Placement:    e.Placement,
		})
	}
	return rows
}

// eliminationStandings ranks finished placements first, then survivors,
// then the eliminated by how deep they got.
func eliminationStandings(enrollments []*models.Enrollment, matches []*models.Match) []models.StandingRow {
	tally := winLossByEnrollment(matches)

	ordered := make([]*models.Enrollment, len(enrollments))
	copy(ordered, enrollments)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if (a.Placement != nil) != (b.Placement != nil) {
			return a.Placement != nil
		}
		if a.Placement != nil && b.Placement != nil && *a.Placement != *b.Placement {
			return *a.Placement < *b.Placement
		}
		if a.Active != b.Active {
			return a.Active
		}
		ar, br := 0, 0
		if a.EliminatedInRound != nil {
			ar = *a.EliminatedInRound
		}
		if b.EliminatedInRound != nil {
			br = *b.EliminatedInRound
		}
		if ar != br {
			return ar > br
		}
		return a.Seed < b.Seed
	})

	rows := make([]models.StandingRow, 0, len(ordered))
	for rank, e := range ordered {
		player, partner := enrollmentNames(e)
		wl := tally[e.ID]
		rows = append(rows, models.StandingRow{
			Rank:         rank + 1,
			EnrollmentID: e.ID,
			PlayerName:   player,
			PartnerName:  partner,
			Wins:         wl[0],
			Losses:       wl[1],
			Placement:    e.Placement,
		})
	}
	return rows
}
