package brackets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smashpoint/league-system/models"
)

// materialize turns a plan into match rows the way the persistence layer
// does: ids by plan order, UID references resolved to ids.
func materialize(t *testing.T, plan *Plan) []*models.Match {
	t.Helper()

	idByUID := make(map[string]int, len(plan.Matches))
	for i, pm := range plan.Matches {
		idByUID[pm.UID] = i + 1
	}

	out := make([]*models.Match, 0, len(plan.Matches))
	for i, pm := range plan.Matches {
		m := &models.Match{
			ID:                 i + 1,
			RoundNumber:        pm.Round,
			Position:           pm.Position,
			Segment:            pm.Segment,
			Slot1EnrollmentID:  copyInt(pm.Slot1),
			Slot2EnrollmentID:  copyInt(pm.Slot2),
			WinnerEnrollmentID: copyInt(pm.Winner),
			Status:             pm.Status,
		}
		if pm.Source1 != nil {
			id, ok := idByUID[pm.Source1.MatchUID]
			require.True(t, ok, "unknown source uid %s", pm.Source1.MatchUID)
			m.Source1MatchID = &id
			m.Source1TakeLoser = pm.Source1.TakeLoser
		}
		if pm.Source2 != nil {
			id, ok := idByUID[pm.Source2.MatchUID]
			require.True(t, ok, "unknown source uid %s", pm.Source2.MatchUID)
			m.Source2MatchID = &id
			m.Source2TakeLoser = pm.Source2.TakeLoser
		}
		out = append(out, m)
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func entrantsWithRatings(ratings ...int) []Entrant {
	out := make([]Entrant, 0, len(ratings))
	for i, r := range ratings {
		out = append(out, Entrant{EnrollmentID: i + 1, Rating: r})
	}
	return out
}

// evenField builds n entrants where enrollment id i+1 has rating
// 2000-10i, so seeding order matches enrollment order.
func evenField(n int) []Entrant {
	out := make([]Entrant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Entrant{EnrollmentID: i + 1, Rating: 2000 - 10*i})
	}
	return out
}

// simulate propagates and records results until every match is
// terminal. pickWinner decides each playable match; defaults to the
// lower enrollment id (the stronger seed in evenField terms).
func simulate(t *testing.T, matches []*models.Match, pickWinner func(*models.Match) int) {
	t.Helper()
	if pickWinner == nil {
		pickWinner = func(m *models.Match) int {
			if *m.Slot1EnrollmentID < *m.Slot2EnrollmentID {
				return *m.Slot1EnrollmentID
			}
			return *m.Slot2EnrollmentID
		}
	}

	for iter := 0; ; iter++ {
		require.Less(t, iter, 10*len(matches)+10, "simulation did not terminate")
		Propagate(matches, nil)

		var playable *models.Match
		for _, m := range matches {
			if m.Status == models.MatchStatusReady {
				playable = m
				break
			}
		}
		if playable == nil {
			break
		}
		winner := pickWinner(playable)
		playable.Status = models.MatchStatusCompleted
		playable.WinnerEnrollmentID = &winner
	}

	for _, m := range matches {
		require.True(t, m.Terminal(), "match %d (round %d pos %d) stuck in %s",
			m.ID, m.RoundNumber, m.Position, m.Status)
	}
}
