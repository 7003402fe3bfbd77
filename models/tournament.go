package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	StatusDraft      TournamentStatus = "draft"
	StatusEnrollment TournamentStatus = "enrollment"
	StatusInProgress TournamentStatus = "in_progress"
	StatusCompleted  TournamentStatus = "completed"
	StatusCancelled  TournamentStatus = "cancelled"
)

type TournamentFormat string

const (
	FormatSingleElimination  TournamentFormat = "single_elimination"
	FormatDoubleElimination  TournamentFormat = "double_elimination"
	FormatSwiss              TournamentFormat = "swiss"
	FormatRoundRobinKnockout TournamentFormat = "round_robin_knockout"
)

type MatchArity string

const (
	AritySingles MatchArity = "singles"
	ArityDoubles MatchArity = "doubles"
)

// Multipliers are percentages: 100 means the base K-factor, 150 means x1.5.
type Tournament struct {
	ID               int              `json:"id"`
	Name             string           `json:"name"`
	Description      *string          `json:"description,omitempty"`
	Format           TournamentFormat `json:"format"`
	Arity            MatchArity       `json:"arity"`
	Status           TournamentStatus `json:"status"`
	BaseMultiplier   int              `json:"base_multiplier"`
	FinalsMultiplier int              `json:"finals_multiplier"`
	DefaultBestOf    int              `json:"default_best_of"`
	GroupBestOf      *int             `json:"group_best_of,omitempty"`
	EarlyBestOf      *int             `json:"early_best_of,omitempty"`
	SemifinalBestOf  *int             `json:"semifinal_best_of,omitempty"`
	FinalBestOf      *int             `json:"final_best_of,omitempty"`
	SwissRounds      *int             `json:"swiss_rounds,omitempty"`
	GroupCount       *int             `json:"group_count,omitempty"`
	AdvancePerGroup  *int             `json:"advance_per_group,omitempty"`
	GrandFinalReset  bool             `json:"grand_final_reset"`
	CurrentRound     int              `json:"current_round"`
	TotalRounds      int              `json:"total_rounds"`
	CreatedBy        int              `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`

	Enrollments []Enrollment `json:"enrollments,omitempty"`
	Rounds      []Round      `json:"rounds,omitempty"`
	Matches     []Match      `json:"matches,omitempty"`
	Groups      []Group      `json:"groups,omitempty"`
}

func ValidTournamentFormat(f TournamentFormat) bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination, FormatSwiss, FormatRoundRobinKnockout:
		return true
	}
	return false
}
