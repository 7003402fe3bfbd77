package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/smashpoint/league-system/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() Generator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobinKnockout"
}

const restMarker = -1

// Generate deals the seeded field into groups serpentine style and
// schedules a full round-robin inside each group with the circle
// method. Every schedule step becomes one tournament round carrying
// that step's matches across all groups; resting entrants in odd-sized
// groups simply sit the step out, no bye rows are created. The knockout
// stage is planned separately once group play completes.
func (g *RoundRobinGenerator) Generate(ctx context.Context, cfg Config, entrants []Entrant) (*Plan, error) {
	n := len(entrants)
	if n < 2 {
		return nil, errors.New("round robin needs at least 2 entrants")
	}

	seeded := AssignSeeds(entrants)

	groupCount := (n + 3) / 4
	if cfg.GroupCount != nil {
		groupCount = *cfg.GroupCount
	}
	if groupCount < 1 || groupCount > n/2 {
		return nil, fmt.Errorf("group count %d is impossible for %d entrants", groupCount, n)
	}

	advance := 1
	if cfg.AdvancePerGroup != nil {
		advance = *cfg.AdvancePerGroup
	}
	if advance < 1 {
		return nil, errors.New("advance per group must be at least 1")
	}

	groups := snakeSplit(seeded, groupCount)
	smallest := len(groups[0])
	for _, grp := range groups {
		if len(grp) < smallest {
			smallest = len(grp)
		}
	}
	if advance > smallest {
		return nil, fmt.Errorf("advance per group %d exceeds smallest group size %d", advance, smallest)
	}

	plan := &Plan{Entrants: seeded}
	schedules := make([][][][2]int, len(groups))
	steps := 0
	for i, grp := range groups {
		ids := make([]int, 0, len(grp))
		for _, e := range grp {
			ids = append(ids, e.EnrollmentID)
		}
		plan.Groups = append(plan.Groups, PlannedGroup{
			Name:          groupName(i),
			Position:      i + 1,
			EnrollmentIDs: ids,
		})
		schedules[i] = circleSchedule(ids)
		if len(schedules[i]) > steps {
			steps = len(schedules[i])
		}
	}

	start := cfg.StartRound
	if start <= 0 {
		start = 1
	}
	for step := 0; step < steps; step++ {
		number := start + step
		name := fmt.Sprintf("Group Round %d", step+1)
		plan.Rounds = append(plan.Rounds, PlannedRound{
			Number:     number,
			Name:       name,
			Segment:    models.SegmentGroup,
			Multiplier: multiplierFor(cfg, models.SegmentGroup),
			BestOf:     RoundBestOf(cfg, ClassifyRound(name, models.SegmentGroup)),
		})
		pos := 1
		for gi := range groups {
			if step >= len(schedules[gi]) {
				continue
			}
			for _, pair := range schedules[gi][step] {
				plan.Matches = append(plan.Matches, PlannedMatch{
					UID:        fmt.Sprintf("R%dG%dM%d", number, gi+1, pos),
					Round:      number,
					Position:   pos,
					Segment:    models.SegmentGroup,
					Slot1:      intPtr(pair[0]),
					Slot2:      intPtr(pair[1]),
					Status:     models.MatchStatusReady,
					GroupIndex: intPtr(gi),
				})
				pos++
			}
		}
	}
	plan.TotalRounds = start - 1 + steps
	return plan, nil
}

// KnockoutStage plans the elimination stage that follows group play.
// Qualifiers must arrive already ordered (group ranks interleaved); the
// order is locked in so standings, not ratings, decide the pairings.
// Round numbering continues from startRound.
func KnockoutStage(ctx context.Context, cfg Config, startRound int, qualifiers []Entrant) (*Plan, error) {
	if len(qualifiers) < 2 {
		return nil, errors.New("knockout stage needs at least 2 qualifiers")
	}
	locked := make([]Entrant, len(qualifiers))
	copy(locked, qualifiers)
	for i := range locked {
		locked[i].Seed = i + 1
		locked[i].Locked = true
	}
	knockCfg := cfg
	knockCfg.StartRound = startRound
	return NewSingleEliminationGenerator().Generate(ctx, knockCfg, locked)
}

// snakeSplit deals entrants into groups serpentine style so top seeds
// spread evenly and group sizes differ by at most one.
func snakeSplit(seeded []Entrant, groupCount int) [][]Entrant {
	groups := make([][]Entrant, groupCount)
	idx, dir := 0, 1
	for _, e := range seeded {
		groups[idx] = append(groups[idx], e)
		next := idx + dir
		if next == groupCount || next < 0 {
			dir = -dir
		} else {
			idx = next
		}
	}
	return groups
}

// circleSchedule produces the steps of a full round-robin over the ids:
// every pair meets exactly once. Odd-sized fields rotate through a rest
// slot instead.
func circleSchedule(ids []int) [][][2]int {
	arr := make([]int, len(ids))
	copy(arr, ids)
	if len(arr)%2 == 1 {
		arr = append(arr, restMarker)
	}
	s := len(arr)
	if s < 2 {
		return nil
	}

	steps := make([][][2]int, 0, s-1)
	for r := 0; r < s-1; r++ {
		var pairs [][2]int
		for i := 0; i < s/2; i++ {
			a, b := arr[i], arr[s-1-i]
			if a == restMarker || b == restMarker {
				continue
			}
			pairs = append(pairs, [2]int{a, b})
		}
		steps = append(steps, pairs)

		last := arr[s-1]
		copy(arr[2:], arr[1:s-1])
		arr[1] = last
	}
	return steps
}

func groupName(i int) string {
	if i < 26 {
		return fmt.Sprintf("Group %c", rune('A'+i))
	}
	return fmt.Sprintf("Group %d", i+1)
}
