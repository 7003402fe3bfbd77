package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smashpoint/league-system/models"
)

func TestStartTournamentTwoEntrants(t *testing.T) {
	f := newFixture(t)
	tournament := f.seedTournament(models.FormatSingleElimination, models.StatusEnrollment, nil)
	enrollments := f.seedField(tournament.ID, 1200, 1000)

	started, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, started.Status)
	assert.Equal(t, 1, started.CurrentRound)
	assert.Equal(t, 1, started.TotalRounds)

	matches := f.listMatches(tournament.ID)
	require.Len(t, matches, 1)
	final := matches[0]
	assert.Equal(t, models.SegmentFinals, final.Segment)
	assert.Equal(t, models.MatchStatusReady, final.Status)
	assert.True(t, final.IsNext)
	require.NotNil(t, final.Slot1EnrollmentID)
	require.NotNil(t, final.Slot2EnrollmentID)
	assert.Equal(t, enrollments[0].ID, *final.Slot1EnrollmentID)
	assert.Equal(t, enrollments[1].ID, *final.Slot2EnrollmentID)

	events := f.notifier.ofType(EventTournamentStarted)
	require.Len(t, events, 1)
	assert.Equal(t, tournament.ID, events[0].TournamentID)
}

func TestStartTournamentFiveEntrantsPadsWithByes(t *testing.T) {
	f := newFixture(t)
	tournament := f.seedTournament(models.FormatSingleElimination, models.StatusEnrollment, nil)
	f.seedField(tournament.ID, 1500, 1400, 1300, 1200, 1100)

	started, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, started.TotalRounds)

	byes, real := 0, 0
	for _, m := range f.listMatches(tournament.ID) {
		if m.RoundNumber != 1 {
			continue
		}
		if m.Status == models.MatchStatusBye {
			byes++
		} else {
			real++
		}
	}
	assert.Equal(t, 3, byes)
	assert.Equal(t, 1, real)

	// Byes cascade at generation time: every round-2 slot fed by a bye
	// is already filled.
	for _, m := range f.listMatches(tournament.ID) {
		if m.RoundNumber != 2 {
			continue
		}
		if m.Status == models.MatchStatusReady {
			assert.True(t, m.SlotsFilled())
		}
	}
}

func TestStartTournamentAssignsSeedsByRating(t *testing.T) {
	f := newFixture(t)
	tournament := f.seedTournament(models.FormatSingleElimination, models.StatusEnrollment, nil)
	enrollments := f.seedField(tournament.ID, 900, 1600, 1200)

	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, f.reloadEnrollment(enrollments[0].ID).Seed)
	assert.Equal(t, 1, f.reloadEnrollment(enrollments[1].ID).Seed)
	assert.Equal(t, 2, f.reloadEnrollment(enrollments[2].ID).Seed)
}

func TestStartTournamentDoublesSeedsRoundedPairAverage(t *testing.T) {
	f := newFixture(t)
	tournament := f.seedTournament(models.FormatSingleElimination, models.StatusEnrollment, func(t *models.Tournament) {
		t.Arity = models.ArityDoubles
	})
	teamA := f.seedEnrollment(tournament.ID, f.seedPlayer("A1", 999), f.seedPlayer("A2", 1000))
	teamB := f.seedEnrollment(tournament.ID, f.seedPlayer("B1", 1000), f.seedPlayer("B2", 1000))

	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	// 999 and 1000 average to 1000 after rounding, so the teams tie
	// and enrollment order breaks it. A truncated average would rank
	// the first team at 999 and hand the top seed away.
	assert.Equal(t, 1, f.reloadEnrollment(teamA.ID).Seed)
	assert.Equal(t, 2, f.reloadEnrollment(teamB.ID).Seed)
}

func TestStartTournamentGuards(t *testing.T) {
	f := newFixture(t)

	t.Run("not found", func(t *testing.T) {
		_, err := f.brackets.StartTournament(context.Background(), 9999)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("wrong status", func(t *testing.T) {
		draft := f.seedTournament(models.FormatSingleElimination, models.StatusDraft, nil)
		f.seedField(draft.ID, 1000, 1000)
		_, err := f.brackets.StartTournament(context.Background(), draft.ID)
		assert.ErrorIs(t, err, ErrTournamentNotStartable)
	})

	t.Run("not enough players", func(t *testing.T) {
		lonely := f.seedTournament(models.FormatSingleElimination, models.StatusEnrollment, nil)
		f.seedField(lonely.ID, 1000)
		_, err := f.brackets.StartTournament(context.Background(), lonely.ID)
		assert.ErrorIs(t, err, ErrNotEnoughPlayers)
	})
}

func TestStartTournamentRaceLost(t *testing.T) {
	f := newFixture(t)
	tournament := f.seedTournament(models.FormatSingleElimination, models.StatusEnrollment, nil)
	f.seedField(tournament.ID, 1000, 1000)

	// The other request wins the compare-and-swap just before ours runs.
	f.tournamentRepo.beforeStatusSwap = func() {
		f.tournamentRepo.beforeStatusSwap = nil
		f.store.tournaments[tournament.ID].Status = models.StatusInProgress
	}

	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestStartSwissOddFieldCreditsBye(t *testing.T) {
	f := newFixture(t)
	tournament := f.seedTournament(models.FormatSwiss, models.StatusEnrollment, nil)
	enrollments := f.seedField(tournament.ID, 1500, 1400, 1300, 1200, 1100)

	started, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, started.TotalRounds) // ceil(log2 5)

	var bye *models.Match
	playable := 0
	for _, m := range f.listMatches(tournament.ID) {
		require.Equal(t, models.SegmentSwissRound, m.Segment)
		if m.Status == models.MatchStatusBye {
			bye = m
		} else {
			playable++
		}
	}
	assert.Equal(t, 2, playable)
	require.NotNil(t, bye)

	// The bye is worth a full-round win, awarded immediately.
	require.NotNil(t, bye.WinnerEnrollmentID)
	assert.Equal(t, enrollments[4].ID, *bye.WinnerEnrollmentID)
	assert.Equal(t, 1, f.reloadEnrollment(enrollments[4].ID).SwissPoints)
}

func TestStartRoundRobinDrawsGroups(t *testing.T) {
	f := newFixture(t)
	groupCount, advance := 2, 2
	tournament := f.seedTournament(models.FormatRoundRobinKnockout, models.StatusEnrollment, func(t *models.Tournament) {
		t.GroupCount = &groupCount
		t.AdvancePerGroup = &advance
	})
	enrollments := f.seedField(tournament.ID, 1800, 1700, 1600, 1500, 1400, 1300, 1200, 1100)

	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	groups, err := f.groupRepo.ListByTournament(context.Background(), nil, tournament.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	perGroup := make(map[int]int)
	for _, e := range enrollments {
		reloaded := f.reloadEnrollment(e.ID)
		require.NotNil(t, reloaded.GroupID)
		perGroup[*reloaded.GroupID]++
	}
	for _, size := range perGroup {
		assert.Equal(t, 4, size)
	}

	// Full round robin inside each group: 4 players -> 3 script steps,
	// 2 matches per step per group.
	matches := f.listMatches(tournament.ID)
	assert.Len(t, matches, 12)
	for _, m := range matches {
		assert.Equal(t, models.SegmentGroup, m.Segment)
	}
}

func TestStartRoundRobinAdvanceExceedsSmallestGroup(t *testing.T) {
	f := newFixture(t)
	groupCount, advance := 2, 3
	tournament := f.seedTournament(models.FormatRoundRobinKnockout, models.StatusEnrollment, func(t *models.Tournament) {
		t.GroupCount = &groupCount
		t.AdvancePerGroup = &advance
	})
	f.seedField(tournament.ID, 1400, 1300, 1200, 1100, 1000)

	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestGenerateNextSwissRound(t *testing.T) {
	f := newFixture(t)
	tournament := f.seedTournament(models.FormatSwiss, models.StatusEnrollment, nil)
	enrollments := f.seedField(tournament.ID, 1600, 1500, 1400, 1300)

	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	t.Run("round not complete", func(t *testing.T) {
		_, err := f.brackets.GenerateNextSwissRound(context.Background(), tournament.ID)
		assert.ErrorIs(t, err, ErrRoundNotComplete)
	})

	// Round 1 pairs adjacent seeds: 1v2 and 3v4. Let the seeds hold.
	f.quickWin(f.matchAt(tournament.ID, 1, 1).ID, enrollments[0].ID)
	f.quickWin(f.matchAt(tournament.ID, 1, 2).ID, enrollments[2].ID)

	created, err := f.brackets.GenerateNextSwissRound(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)

	// Winners meet winners, losers meet losers.
	top := created[0]
	require.True(t, top.SlotsFilled())
	paired := map[int]bool{*top.Slot1EnrollmentID: true, *top.Slot2EnrollmentID: true}
	assert.True(t, paired[enrollments[0].ID])
	assert.True(t, paired[enrollments[2].ID])

	assert.Equal(t, 2, f.reloadTournament(tournament.ID).CurrentRound)

	t.Run("rounds exhausted", func(t *testing.T) {
		// Round 2 of 2 is live, so there is nothing left to generate.
		_, err := f.brackets.GenerateNextSwissRound(context.Background(), tournament.ID)
		assert.ErrorIs(t, err, ErrSwissRoundsExhausted)
	})

	t.Run("wrong format", func(t *testing.T) {
		single := f.seedTournament(models.FormatSingleElimination, models.StatusEnrollment, nil)
		f.seedField(single.ID, 1000, 1000)
		_, err := f.brackets.StartTournament(context.Background(), single.ID)
		require.NoError(t, err)
		_, err = f.brackets.GenerateNextSwissRound(context.Background(), single.ID)
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
}

func TestGenerateNextSwissRoundAllByeFinalCompletes(t *testing.T) {
	f := newFixture(t)
	rounds := 2
	tournament := f.seedTournament(models.FormatSwiss, models.StatusEnrollment, func(t *models.Tournament) {
		t.SwissRounds = &rounds
	})
	enrollments := f.seedField(tournament.ID, 1200, 1100)
	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	f.quickWin(f.matchAt(tournament.ID, 1, 1).ID, enrollments[0].ID)

	// Both entrants have faced each other, so round two is drawn as a
	// pair of byes and there is nothing left to record.
	created, err := f.brackets.GenerateNextSwissRound(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, m := range created {
		assert.Equal(t, models.MatchStatusBye, m.Status)
	}

	done := f.reloadTournament(tournament.ID)
	assert.Equal(t, models.StatusCompleted, done.Status)

	winner := f.reloadEnrollment(enrollments[0].ID)
	require.NotNil(t, winner.Placement)
	assert.Equal(t, 1, *winner.Placement)
	assert.Equal(t, 2, winner.SwissPoints)
	require.NotNil(t, f.reloadEnrollment(enrollments[1].ID).Placement)
	assert.Equal(t, 2, *f.reloadEnrollment(enrollments[1].ID).Placement)

	assert.Equal(t, 1, f.reloadPlayer(winner.PlayerID).TournamentsWon)
	assert.Equal(t, 1, f.reloadPlayer(winner.PlayerID).TournamentsPlayed)

	require.Len(t, f.notifier.ofType(EventTournamentCompleted), 1)
	assert.Equal(t, []int{tournament.ID}, f.sink.completed)
}

// playOutGroups settles every group match in favor of the higher-rated
// side, so group tables finish in seeding order.
func playOutGroups(t *testing.T, f *fixture, tournamentID int) {
	t.Helper()
	for _, m := range f.listMatches(tournamentID) {
		if m.Terminal() {
			continue
		}
		slot1 := f.reloadEnrollment(*m.Slot1EnrollmentID)
		slot2 := f.reloadEnrollment(*m.Slot2EnrollmentID)
		winner := slot1
		if f.reloadPlayer(slot2.PlayerID).Rating > f.reloadPlayer(slot1.PlayerID).Rating {
			winner = slot2
		}
		f.quickWin(m.ID, winner.ID)
	}
}

func TestGenerateKnockoutStageTwoGroupsOfFour(t *testing.T) {
	f := newFixture(t)
	groupCount, advance := 2, 2
	tournament := f.seedTournament(models.FormatRoundRobinKnockout, models.StatusEnrollment, func(t *models.Tournament) {
		t.GroupCount = &groupCount
		t.AdvancePerGroup = &advance
	})
	f.seedField(tournament.ID, 1800, 1700, 1600, 1500, 1400, 1300, 1200, 1100)

	_, err := f.brackets.StartTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	t.Run("group stage not complete", func(t *testing.T) {
		_, err := f.brackets.GenerateKnockoutStage(context.Background(), tournament.ID)
		assert.ErrorIs(t, err, ErrGroupStageNotComplete)
	})

	playOutGroups(t, f, tournament.ID)

	created, err := f.brackets.GenerateKnockoutStage(context.Background(), tournament.ID)
	require.NoError(t, err)

	// Four qualifiers -> one semifinal round and one final round.
	require.Len(t, created, 3)
	seats := make(map[int]bool)
	rounds := make(map[int]models.Segment)
	for _, m := range created {
		rounds[m.RoundNumber] = m.Segment
		if m.Slot1EnrollmentID != nil {
			seats[*m.Slot1EnrollmentID] = true
		}
		if m.Slot2EnrollmentID != nil {
			seats[*m.Slot2EnrollmentID] = true
		}
	}
	assert.Len(t, seats, 4)
	assert.Len(t, rounds, 2)

	// Knockout numbering continues after the three group rounds.
	assert.Equal(t, models.SegmentWinners, rounds[4])
	assert.Equal(t, models.SegmentFinals, rounds[5])
	assert.Equal(t, 5, f.reloadTournament(tournament.ID).TotalRounds)

	// Non-qualifiers are out.
	eliminated := 0
	for _, e := range f.store.enrollments {
		if e.TournamentID == tournament.ID && !e.Active {
			eliminated++
		}
	}
	assert.Equal(t, 4, eliminated)

	t.Run("knockout already exists", func(t *testing.T) {
		_, err := f.brackets.GenerateKnockoutStage(context.Background(), tournament.ID)
		assert.ErrorIs(t, err, ErrKnockoutAlreadyExists)
	})
}
