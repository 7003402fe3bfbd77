package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/smashpoint/league-system/models"
)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// Generate pads the seeded field to the next power of two, pairs seeds in
// standard bracket order and links every later round to its feeder
// matches with winner-advances references. The last round is tagged
// finals and carries the finals multiplier.
func (g *SingleEliminationGenerator) Generate(ctx context.Context, cfg Config, entrants []Entrant) (*Plan, error) {
	if len(entrants) < 2 {
		return nil, errors.New("single elimination needs at least 2 entrants")
	}

	seeded := AssignSeeds(entrants)
	tree := elimTree(seeded, "W")
	size := nextPowerOfTwo(len(seeded))
	start := cfg.StartRound
	if start <= 0 {
		start = 1
	}

	plan := &Plan{Entrants: seeded}
	for r, roundMatches := range tree {
		number := start + r
		playersLeft := size >> uint(r)
		segment := models.SegmentWinners
		if playersLeft == 2 {
			segment = models.SegmentFinals
		}
		name := eliminationRoundName(playersLeft)
		plan.Rounds = append(plan.Rounds, PlannedRound{
			Number:     number,
			Name:       name,
			Segment:    segment,
			Multiplier: multiplierFor(cfg, segment),
			BestOf:     RoundBestOf(cfg, ClassifyRound(name, segment)),
		})
		for i := range roundMatches {
			roundMatches[i].Round = number
			roundMatches[i].Position = i + 1
			roundMatches[i].Segment = segment
			plan.Matches = append(plan.Matches, roundMatches[i])
		}
	}
	plan.TotalRounds = start - 1 + len(tree)
	return plan, nil
}

// elimTree builds the match graph of a padded elimination bracket,
// grouped by local round. Round one gets participants straight from the
// seed order; a pairing against a missing seed becomes a bye whose
// winner is the present entrant. Later rounds reference their feeders by
// UID and stay pending until propagation fills them.
func elimTree(seeded []Entrant, uidPrefix string) [][]PlannedMatch {
	size := nextPowerOfTwo(len(seeded))
	numRounds := log2(size)
	order := seedOrder(size)

	bySeed := func(seed int) *int {
		if seed <= len(seeded) {
			return intPtr(seeded[seed-1].EnrollmentID)
		}
		return nil
	}

	rounds := make([][]PlannedMatch, numRounds)
	first := make([]PlannedMatch, 0, size/2)
	for p := 0; p < size/2; p++ {
		m := PlannedMatch{
			UID:    fmt.Sprintf("%s1M%d", uidPrefix, p+1),
			Slot1:  bySeed(order[2*p]),
			Slot2:  bySeed(order[2*p+1]),
			Status: models.MatchStatusReady,
		}
		if m.Slot1 == nil {
			m.Status = models.MatchStatusBye
			m.Winner = m.Slot2
		} else if m.Slot2 == nil {
			m.Status = models.MatchStatusBye
			m.Winner = m.Slot1
		}
		first = append(first, m)
	}
	rounds[0] = first

	for r := 1; r < numRounds; r++ {
		count := size >> uint(r+1)
		cur := make([]PlannedMatch, 0, count)
		for p := 0; p < count; p++ {
			cur = append(cur, PlannedMatch{
				UID:     fmt.Sprintf("%s%dM%d", uidPrefix, r+1, p+1),
				Source1: &SourceRef{MatchUID: rounds[r-1][2*p].UID},
				Source2: &SourceRef{MatchUID: rounds[r-1][2*p+1].UID},
				Status:  models.MatchStatusPending,
			})
		}
		rounds[r] = cur
	}
	return rounds
}

func eliminationRoundName(playersLeft int) string {
	switch playersLeft {
	case 2:
		return "Finals"
	case 4:
		return "Semifinals"
	case 8:
		return "Quarterfinals"
	}
	return fmt.Sprintf("Round of %d", playersLeft)
}

func multiplierFor(cfg Config, segment models.Segment) int {
	if segment == models.SegmentFinals {
		return cfg.FinalsMultiplier
	}
	return cfg.BaseMultiplier
}
