package brackets

import (
	"context"
	"fmt"

	"github.com/smashpoint/league-system/models"
)

// Entrant is one seeded competitor as the generators see it: an enrollment
// id plus the rating used for ordering. Seed is written by AssignSeeds;
// Locked marks a manual override that outranks rating order.
type Entrant struct {
	EnrollmentID int
	Rating       int
	Seed         int
	Locked       bool
}

// SourceRef wires a match slot to the match that feeds it. TakeLoser
// selects the loser of the source instead of the winner (losers-bracket
// drop-ins, grand final without a losers champion).
type SourceRef struct {
	MatchUID  string
	TakeLoser bool
}

// PlannedMatch is a match before persistence. UIDs are plan-local; the
// caller maps them to database ids when creating rows. Slots are set
// directly when the participant is known at generation time, otherwise
// through Source1/Source2. Bye matches carry their sole participant as
// Winner already.
type PlannedMatch struct {
	UID        string
	Round      int
	Position   int
	Segment    models.Segment
	Slot1      *int
	Slot2      *int
	Source1    *SourceRef
	Source2    *SourceRef
	Status     models.MatchStatus
	Winner     *int
	GroupIndex *int
}

type PlannedRound struct {
	Number     int
	Name       string
	Segment    models.Segment
	Multiplier int
	BestOf     int
}

// PlannedGroup carries the entrants assigned to one round-robin group.
type PlannedGroup struct {
	Name          string
	Position      int
	EnrollmentIDs []int
}

// Plan is the full output of one generation step: rounds and matches in
// creation order (every SourceRef points at an earlier match in Matches),
// plus the post-seeding entrant order and the group partition when the
// format has one.
type Plan struct {
	Entrants    []Entrant
	Rounds      []PlannedRound
	Matches     []PlannedMatch
	Groups      []PlannedGroup
	TotalRounds int
}

// Config is the slice of tournament configuration the generators need.
// Multipliers are percentages (100 = base K). StartRound is the first
// global round number to assign, so a knockout stage can continue the
// numbering of the group stage it follows.
type Config struct {
	BaseMultiplier   int
	FinalsMultiplier int
	DefaultBestOf    int
	GroupBestOf      *int
	EarlyBestOf      *int
	SemifinalBestOf  *int
	FinalBestOf      *int
	SwissRounds      *int
	GroupCount       *int
	AdvancePerGroup  *int
	GrandFinalReset  bool
	StartRound       int
}

type Generator interface {
	Generate(ctx context.Context, cfg Config, entrants []Entrant) (*Plan, error)

	GetName() string
}

// ForFormat returns the generator for a tournament format.
func ForFormat(format models.TournamentFormat) (Generator, error) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.FormatDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case models.FormatSwiss:
		return NewSwissGenerator(), nil
	case models.FormatRoundRobinKnockout:
		return NewRoundRobinGenerator(), nil
	}
	return nil, fmt.Errorf("no bracket generator for format %q", format)
}

func intPtr(v int) *int { return &v }

func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

func log2(n int) int {
	k := 0
	for v := 1; v < n; v <<= 1 {
		k++
	}
	return k
}
