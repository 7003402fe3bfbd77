package models

import "time"

// MatchStatus is the match state machine: pending -> ready -> completed,
// with bye and walkover as alternative terminals. in_progress is a
// display-only transient set by operators, never required by the engine.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusReady      MatchStatus = "ready"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusBye        MatchStatus = "bye"
	MatchStatusWalkover   MatchStatus = "walkover"
)

// Match slots are filled either directly at generation time or through
// advance-from references: SourceNMatchID names the match whose result
// feeds slot N, SourceNTakeLoser selects the loser instead of the winner
// (losers-bracket drop-ins).
type Match struct {
	ID                 int         `json:"id"`
	TournamentID       int         `json:"tournament_id"`
	RoundID            int         `json:"round_id"`
	RoundNumber        int         `json:"round_number"`
	Position           int         `json:"position"`
	Segment            Segment     `json:"segment"`
	Slot1EnrollmentID  *int        `json:"slot1_enrollment_id,omitempty"`
	Slot2EnrollmentID  *int        `json:"slot2_enrollment_id,omitempty"`
	Source1MatchID     *int        `json:"source1_match_id,omitempty"`
	Source1TakeLoser   bool        `json:"source1_take_loser"`
	Source2MatchID     *int        `json:"source2_match_id,omitempty"`
	Source2TakeLoser   bool        `json:"source2_take_loser"`
	WinnerEnrollmentID *int        `json:"winner_enrollment_id,omitempty"`
	BestOf             *int        `json:"best_of,omitempty"`
	Status             MatchStatus `json:"status"`
	WalkoverReason     *string     `json:"walkover_reason,omitempty"`
	IsNext             bool        `json:"is_next"`
	PlayedAt           *time.Time  `json:"played_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`

	Games []GameResult `json:"games,omitempty"`
}

// Terminal reports whether the match can no longer change outcome.
func (m *Match) Terminal() bool {
	switch m.Status {
	case MatchStatusCompleted, MatchStatusBye, MatchStatusWalkover:
		return true
	}
	return false
}

// SlotsFilled reports whether both participant slots are set.
func (m *Match) SlotsFilled() bool {
	return m.Slot1EnrollmentID != nil && m.Slot2EnrollmentID != nil
}

// LoserEnrollmentID derives the loser from the winner and the two slots.
// Returns nil for undecided matches and for byes with an empty slot.
func (m *Match) LoserEnrollmentID() *int {
	if m.WinnerEnrollmentID == nil {
		return nil
	}
	if m.Slot1EnrollmentID != nil && *m.Slot1EnrollmentID != *m.WinnerEnrollmentID {
		return m.Slot1EnrollmentID
	}
	if m.Slot2EnrollmentID != nil && *m.Slot2EnrollmentID != *m.WinnerEnrollmentID {
		return m.Slot2EnrollmentID
	}
	return nil
}
