package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smashpoint/league-system/models"
)

func TestSwissRoundOnePairsAdjacentSeeds(t *testing.T) {
	plan, err := NewSwissGenerator().Generate(context.Background(), defaultConfig(), evenField(8))
	require.NoError(t, err)

	assert.Equal(t, 3, plan.TotalRounds)
	require.Len(t, plan.Rounds, 1)
	assert.Equal(t, models.SegmentSwissRound, plan.Rounds[0].Segment)
	assert.Equal(t, "Round 1", plan.Rounds[0].Name)

	require.Len(t, plan.Matches, 4)
	assert.Equal(t, [2]int{1, 2}, matchSlots(plan.Matches[0]))
	assert.Equal(t, [2]int{3, 4}, matchSlots(plan.Matches[1]))
	assert.Equal(t, [2]int{5, 6}, matchSlots(plan.Matches[2]))
	assert.Equal(t, [2]int{7, 8}, matchSlots(plan.Matches[3]))
}

func TestSwissOddFieldByeGoesToLowestSeed(t *testing.T) {
	plan, err := NewSwissGenerator().Generate(context.Background(), defaultConfig(), evenField(7))
	require.NoError(t, err)

	require.Len(t, plan.Matches, 4)
	bye := plan.Matches[3]
	assert.Equal(t, models.MatchStatusBye, bye.Status)
	require.NotNil(t, bye.Winner)
	assert.Equal(t, 7, *bye.Winner)
	assert.Nil(t, bye.Slot2)
}

func TestSwissConfiguredRoundCount(t *testing.T) {
	cfg := defaultConfig()
	five := 5
	cfg.SwissRounds = &five
	plan, err := NewSwissGenerator().Generate(context.Background(), cfg, evenField(8))
	require.NoError(t, err)
	assert.Equal(t, 5, plan.TotalRounds)

	zero := 0
	cfg.SwissRounds = &zero
	_, err = NewSwissGenerator().Generate(context.Background(), cfg, evenField(8))
	assert.Error(t, err)
}

func TestNextSwissRoundPairsByPoints(t *testing.T) {
	// After round one of a four-player field: winners on one point
	// meet, losers meet, nobody rematches.
	entrants := []SwissEntrant{
		{EnrollmentID: 1, Seed: 1, Points: 1, Opponents: []int64{2}},
		{EnrollmentID: 2, Seed: 2, Points: 0, Opponents: []int64{1}},
		{EnrollmentID: 3, Seed: 3, Points: 1, Opponents: []int64{4}},
		{EnrollmentID: 4, Seed: 4, Points: 0, Opponents: []int64{3}},
	}
	plan, err := NextSwissRound(defaultConfig(), 2, entrants)
	require.NoError(t, err)

	require.Len(t, plan.Rounds, 1)
	assert.Equal(t, 2, plan.Rounds[0].Number)
	assert.Equal(t, "Round 2", plan.Rounds[0].Name)
	require.Len(t, plan.Matches, 2)
	assert.Equal(t, [2]int{1, 3}, matchSlots(plan.Matches[0]))
	assert.Equal(t, [2]int{2, 4}, matchSlots(plan.Matches[1]))
}

func TestNextSwissRoundAvoidsOnlyPossibleRepeat(t *testing.T) {
	// Round three of four players: the leader has faced seeds 2 and 3,
	// so the only repeat-free pairing is 1v4 and 2v3.
	entrants := []SwissEntrant{
		{EnrollmentID: 1, Seed: 1, Points: 2, Opponents: []int64{2, 3}},
		{EnrollmentID: 2, Seed: 2, Points: 1, Opponents: []int64{1, 4}},
		{EnrollmentID: 3, Seed: 3, Points: 1, Opponents: []int64{4, 1}},
		{EnrollmentID: 4, Seed: 4, Points: 0, Opponents: []int64{3, 2}},
	}
	plan, err := NextSwissRound(defaultConfig(), 3, entrants)
	require.NoError(t, err)

	require.Len(t, plan.Matches, 2)
	assert.Equal(t, [2]int{1, 4}, matchSlots(plan.Matches[0]))
	assert.Equal(t, [2]int{2, 3}, matchSlots(plan.Matches[1]))
}

func TestSwissExhaustedHistoryFallsBackToByes(t *testing.T) {
	// Two players who already met cannot be paired again; both sit
	// out with a bye instead of rematching.
	entrants := []SwissEntrant{
		{EnrollmentID: 1, Seed: 1, Points: 1, Opponents: []int64{2}},
		{EnrollmentID: 2, Seed: 2, Points: 0, Opponents: []int64{1}},
	}
	plan, err := NextSwissRound(defaultConfig(), 2, entrants)
	require.NoError(t, err)

	require.Len(t, plan.Matches, 2)
	for _, m := range plan.Matches {
		assert.Equal(t, models.MatchStatusBye, m.Status)
		assert.NotNil(t, m.Winner)
	}
}

func TestSwissNeverRepeatsPairingsAcrossTournament(t *testing.T) {
	const n = 16
	cfg := defaultConfig()

	plan, err := NewSwissGenerator().Generate(context.Background(), cfg, evenField(n))
	require.NoError(t, err)
	rounds := plan.TotalRounds
	require.Equal(t, 4, rounds)

	type pairKey [2]int
	seen := map[pairKey]int{}
	points := map[int]int{}
	history := map[int][]int64{}

	record := func(matches []PlannedMatch, round int) {
		for _, m := range matches {
			if m.Status == models.MatchStatusBye {
				points[*m.Winner]++
				continue
			}
			a, b := *m.Slot1, *m.Slot2
			if a > b {
				a, b = b, a
			}
			key := pairKey{a, b}
			assert.Zero(t, seen[key], "pair %v repeated in round %d", key, round)
			seen[key] = round
			history[a] = append(history[a], int64(b))
			history[b] = append(history[b], int64(a))
			// lower enrollment id wins
			points[a]++
		}
	}

	record(plan.Matches, 1)
	for r := 2; r <= rounds; r++ {
		entrants := make([]SwissEntrant, 0, n)
		for id := 1; id <= n; id++ {
			entrants = append(entrants, SwissEntrant{
				EnrollmentID: id,
				Seed:         id,
				Points:       points[id],
				Opponents:    history[id],
			})
		}
		next, err := NextSwissRound(cfg, r, entrants)
		require.NoError(t, err, "round %d", r)
		require.Len(t, next.Matches, n/2, "round %d", r)
		record(next.Matches, r)
	}
}

func TestSwissRejectsTinyField(t *testing.T) {
	_, err := NewSwissGenerator().Generate(context.Background(), defaultConfig(), evenField(1))
	assert.Error(t, err)
}

func matchSlots(m PlannedMatch) [2]int {
	out := [2]int{}
	if m.Slot1 != nil {
		out[0] = *m.Slot1
	}
	if m.Slot2 != nil {
		out[1] = *m.Slot2
	}
	return out
}
