package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/smashpoint/league-system/models"
)

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() Generator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) GetName() string {
	return "DoubleElimination"
}

// Generate builds a winners bracket over the padded field, a losers
// bracket fed by winners-bracket losers, and a grand final between both
// champions. Losers rounds alternate between drop-in rounds (a losers
// survivor against a fresh winners-bracket loser, taken in reversed
// match order to delay rematches) and pairing rounds among survivors.
// Round numbers follow play order: W1, L1, then W/L interleaved, grand
// final last. A bracket reset round is not planned here; it is appended
// later if the losers finalist takes the first grand final.
func (g *DoubleEliminationGenerator) Generate(ctx context.Context, cfg Config, entrants []Entrant) (*Plan, error) {
	if len(entrants) < 2 {
		return nil, errors.New("double elimination needs at least 2 entrants")
	}

	seeded := AssignSeeds(entrants)
	winners := elimTree(seeded, "W")
	size := nextPowerOfTwo(len(seeded))
	k := log2(size)
	start := cfg.StartRound
	if start <= 0 {
		start = 1
	}

	plan := &Plan{Entrants: seeded}
	number := start
	addRound := func(name string, segment models.Segment, matches []PlannedMatch) {
		plan.Rounds = append(plan.Rounds, PlannedRound{
			Number:     number,
			Name:       name,
			Segment:    segment,
			Multiplier: multiplierFor(cfg, segment),
			BestOf:     RoundBestOf(cfg, ClassifyRound(name, segment)),
		})
		for i := range matches {
			matches[i].Round = number
			matches[i].Position = i + 1
			matches[i].Segment = segment
			plan.Matches = append(plan.Matches, matches[i])
		}
		number++
	}
	winnersName := func(local int) string {
		if local == k {
			return "Winners Final"
		}
		return fmt.Sprintf("Winners Round %d", local)
	}

	grandFinal := PlannedMatch{
		UID:     "GF1",
		Source1: &SourceRef{MatchUID: fmt.Sprintf("W%dM1", k)},
		Status:  models.MatchStatusPending,
	}

	if k == 1 {
		// Two entrants: no losers bracket, the loser of the only
		// winners match goes straight to the grand final.
		grandFinal.Source2 = &SourceRef{MatchUID: "W1M1", TakeLoser: true}
		addRound(winnersName(1), models.SegmentWinners, winners[0])
		addRound("Grand Final", models.SegmentFinals, []PlannedMatch{grandFinal})
		plan.TotalRounds = number - 1
		return plan, nil
	}

	losers := buildLosersBracket(size, k)
	grandFinal.Source2 = &SourceRef{MatchUID: losers[len(losers)-1][0].UID}
	losersName := func(local int) string {
		if local == 2*k-2 {
			return "Losers Final"
		}
		return fmt.Sprintf("Losers Round %d", local)
	}

	addRound(winnersName(1), models.SegmentWinners, winners[0])
	addRound(losersName(1), models.SegmentLosers, losers[0])
	for j := 2; j < k; j++ {
		addRound(winnersName(j), models.SegmentWinners, winners[j-1])
		addRound(losersName(2*j-2), models.SegmentLosers, losers[2*j-3])
		addRound(losersName(2*j-1), models.SegmentLosers, losers[2*j-2])
	}
	addRound(winnersName(k), models.SegmentWinners, winners[k-1])
	addRound(losersName(2*k-2), models.SegmentLosers, losers[2*k-3])
	addRound("Grand Final", models.SegmentFinals, []PlannedMatch{grandFinal})

	plan.TotalRounds = number - 1
	return plan, nil
}

// buildLosersBracket lays out the 2(k-1) losers rounds for a winners
// bracket of size 2^k, k >= 2. Matches reference winners-bracket matches
// by UID with loser polarity; slots stay empty until propagation.
func buildLosersBracket(size, k int) [][]PlannedMatch {
	rounds := make([][]PlannedMatch, 0, 2*k-2)

	first := make([]PlannedMatch, 0, size/4)
	for p := 1; p <= size/4; p++ {
		first = append(first, PlannedMatch{
			UID:     fmt.Sprintf("L1M%d", p),
			Source1: &SourceRef{MatchUID: fmt.Sprintf("W1M%d", 2*p-1), TakeLoser: true},
			Source2: &SourceRef{MatchUID: fmt.Sprintf("W1M%d", 2*p), TakeLoser: true},
			Status:  models.MatchStatusPending,
		})
	}
	rounds = append(rounds, first)

	for j := 2; j <= k; j++ {
		prev := rounds[len(rounds)-1]
		dropCount := size >> uint(j)

		major := make([]PlannedMatch, 0, dropCount)
		for p := 1; p <= dropCount; p++ {
			major = append(major, PlannedMatch{
				UID:     fmt.Sprintf("L%dM%d", 2*j-2, p),
				Source1: &SourceRef{MatchUID: prev[p-1].UID},
				Source2: &SourceRef{MatchUID: fmt.Sprintf("W%dM%d", j, dropCount-p+1), TakeLoser: true},
				Status:  models.MatchStatusPending,
			})
		}
		rounds = append(rounds, major)

		if j < k {
			minor := make([]PlannedMatch, 0, dropCount/2)
			for p := 1; p <= dropCount/2; p++ {
				minor = append(minor, PlannedMatch{
					UID:     fmt.Sprintf("L%dM%d", 2*j-1, p),
					Source1: &SourceRef{MatchUID: major[2*p-2].UID},
					Source2: &SourceRef{MatchUID: major[2*p-1].UID},
					Status:  models.MatchStatusPending,
				})
			}
			rounds = append(rounds, minor)
		}
	}
	return rounds
}

// GrandFinalResetRound plans the second grand final for the case where
// the losers-bracket finalist wins the first one. Both players are known
// at that point, so the match starts ready with filled slots.
func GrandFinalResetRound(cfg Config, number int, slot1, slot2 int) (PlannedRound, PlannedMatch) {
	round := PlannedRound{
		Number:     number,
		Name:       "Grand Final Reset",
		Segment:    models.SegmentFinals,
		Multiplier: multiplierFor(cfg, models.SegmentFinals),
		BestOf:     RoundBestOf(cfg, ClassFinal),
	}
	match := PlannedMatch{
		UID:      "GF2",
		Round:    number,
		Position: 1,
		Segment:  models.SegmentFinals,
		Slot1:    intPtr(slot1),
		Slot2:    intPtr(slot2),
		Status:   models.MatchStatusReady,
	}
	return round, match
}
