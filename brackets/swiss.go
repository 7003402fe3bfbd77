package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/smashpoint/league-system/models"
)

type SwissGenerator struct{}

func NewSwissGenerator() Generator {
	return &SwissGenerator{}
}

func (g *SwissGenerator) GetName() string {
	return "Swiss"
}

// SwissEntrant is one participant as the Swiss pairer sees it: seed for
// ordering, cumulative points, and the enrollment ids already faced.
type SwissEntrant struct {
	EnrollmentID int
	Seed         int
	Points       int
	Opponents    []int64
}

// Generate seeds the field and builds round one; later rounds are paired
// from live standings via NextSwissRound. The total round count defaults
// to ceil(log2 n) unless configured.
func (g *SwissGenerator) Generate(ctx context.Context, cfg Config, entrants []Entrant) (*Plan, error) {
	if len(entrants) < 2 {
		return nil, errors.New("swiss needs at least 2 entrants")
	}

	seeded := AssignSeeds(entrants)
	totalRounds := log2(len(seeded))
	if cfg.SwissRounds != nil {
		if *cfg.SwissRounds < 1 {
			return nil, errors.New("swiss round count must be at least 1")
		}
		totalRounds = *cfg.SwissRounds
	}

	first := make([]SwissEntrant, 0, len(seeded))
	for _, e := range seeded {
		first = append(first, SwissEntrant{EnrollmentID: e.EnrollmentID, Seed: e.Seed})
	}
	round, matches, err := planSwissRound(cfg, 1, first)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Entrants:    seeded,
		Rounds:      []PlannedRound{round},
		Matches:     matches,
		TotalRounds: totalRounds,
	}, nil
}

// NextSwissRound pairs one subsequent round from the current standings.
// The plan carries only the new round; the tournament's total round
// count is unchanged by it.
func NextSwissRound(cfg Config, roundNumber int, entrants []SwissEntrant) (*Plan, error) {
	if len(entrants) < 2 {
		return nil, errors.New("swiss round needs at least 2 active entrants")
	}
	round, matches, err := planSwissRound(cfg, roundNumber, entrants)
	if err != nil {
		return nil, err
	}
	return &Plan{Rounds: []PlannedRound{round}, Matches: matches}, nil
}

func planSwissRound(cfg Config, number int, entrants []SwissEntrant) (PlannedRound, []PlannedMatch, error) {
	ordered := make([]SwissEntrant, len(entrants))
	copy(ordered, entrants)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Points != ordered[j].Points {
			return ordered[i].Points > ordered[j].Points
		}
		return ordered[i].Seed < ordered[j].Seed
	})

	pairs, byes := pairSwiss(ordered)

	name := fmt.Sprintf("Round %d", number)
	round := PlannedRound{
		Number:     number,
		Name:       name,
		Segment:    models.SegmentSwissRound,
		Multiplier: multiplierFor(cfg, models.SegmentSwissRound),
		BestOf:     RoundBestOf(cfg, ClassifyRound(name, models.SegmentSwissRound)),
	}

	matches := make([]PlannedMatch, 0, len(pairs)+len(byes))
	pos := 1
	for _, p := range pairs {
		matches = append(matches, PlannedMatch{
			UID:      fmt.Sprintf("S%dM%d", number, pos),
			Round:    number,
			Position: pos,
			Segment:  models.SegmentSwissRound,
			Slot1:    intPtr(p[0].EnrollmentID),
			Slot2:    intPtr(p[1].EnrollmentID),
			Status:   models.MatchStatusReady,
		})
		pos++
	}
	for _, b := range byes {
		matches = append(matches, PlannedMatch{
			UID:      fmt.Sprintf("S%dM%d", number, pos),
			Round:    number,
			Position: pos,
			Segment:  models.SegmentSwissRound,
			Slot1:    intPtr(b.EnrollmentID),
			Status:   models.MatchStatusBye,
			Winner:   intPtr(b.EnrollmentID),
		})
		pos++
	}
	return round, matches, nil
}

// pairSwiss pairs the standings-ordered field without repeating any
// pairing in either side's history. Byes go to the lowest-ranked
// entrants that cannot be paired. Only when no repeat-free pairing
// exists at all does it degrade to adjacent pairing with repeats.
func pairSwiss(ordered []SwissEntrant) (pairs [][2]SwissEntrant, byes []SwissEntrant) {
	n := len(ordered)
	if n == 0 {
		return nil, nil
	}

	if n%2 == 0 {
		if p, ok := perfectPairing(ordered); ok {
			return p, nil
		}
		// Someone has faced everyone available: sit out the lowest
		// two entrants that make the remainder pairable.
		for i := n - 1; i >= 1; i-- {
			for j := i - 1; j >= 0; j-- {
				if p, ok := perfectPairing(removeTwo(ordered, j, i)); ok {
					return p, []SwissEntrant{ordered[j], ordered[i]}
				}
			}
		}
	} else {
		for i := n - 1; i >= 0; i-- {
			if p, ok := perfectPairing(removeOne(ordered, i)); ok {
				return p, []SwissEntrant{ordered[i]}
			}
		}
	}

	// History leaves no repeat-free pairing. Pair adjacent instead.
	rest := ordered
	if len(rest)%2 == 1 {
		byes = append(byes, rest[len(rest)-1])
		rest = rest[:len(rest)-1]
	}
	for i := 0; i+1 < len(rest); i += 2 {
		pairs = append(pairs, [2]SwissEntrant{rest[i], rest[i+1]})
	}
	return pairs, byes
}

// perfectPairing pairs every entrant with no history repeats, greedily
// from the top of the standings with backtracking.
func perfectPairing(remaining []SwissEntrant) ([][2]SwissEntrant, bool) {
	if len(remaining) == 0 {
		return nil, true
	}
	a := remaining[0]
	for i := 1; i < len(remaining); i++ {
		b := remaining[i]
		if haveFaced(a, b) {
			continue
		}
		tail, ok := perfectPairing(removeTwo(remaining, 0, i))
		if !ok {
			continue
		}
		return append([][2]SwissEntrant{{a, b}}, tail...), true
	}
	return nil, false
}

func haveFaced(a, b SwissEntrant) bool {
	for _, id := range a.Opponents {
		if int(id) == b.EnrollmentID {
			return true
		}
	}
	for _, id := range b.Opponents {
		if int(id) == a.EnrollmentID {
			return true
		}
	}
	return false
}

func removeOne(list []SwissEntrant, i int) []SwissEntrant {
	out := make([]SwissEntrant, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

// removeTwo drops the elements at i and j, i < j.
func removeTwo(list []SwissEntrant, i, j int) []SwissEntrant {
	out := make([]SwissEntrant, 0, len(list)-2)
	out = append(out, list[:i]...)
	out = append(out, list[i+1:j]...)
	return append(out, list[j+1:]...)
}
