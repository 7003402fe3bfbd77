package models

import "time"

// Enrollment binds a player (plus partner for doubles) to one tournament.
// SwissOpponents holds prior opponent enrollment ids in pairing order.
type Enrollment struct {
	ID                int       `json:"id"`
	TournamentID      int       `json:"tournament_id"`
	PlayerID          int       `json:"player_id"`
	PartnerID         *int      `json:"partner_id,omitempty"`
	Seed              int       `json:"seed"`
	SeedLocked        bool      `json:"seed_locked"`
	SwissPoints       int       `json:"swiss_points"`
	SwissOpponents    []int64   `json:"swiss_opponents,omitempty"`
	GroupID           *int      `json:"group_id,omitempty"`
	GroupPoints       int       `json:"group_points"`
	GroupWins         int       `json:"group_wins"`
	GroupLosses       int       `json:"group_losses"`
	GameDiff          int       `json:"game_diff"`
	Active            bool      `json:"active"`
	EliminatedInRound *int      `json:"eliminated_in_round,omitempty"`
	Placement         *int      `json:"placement,omitempty"`
	CreatedAt         time.Time `json:"created_at"`

	Player  *Player `json:"player,omitempty"`
	Partner *Player `json:"partner,omitempty"`
}

// HasFaced reports whether the given enrollment already appears in the
// Swiss opponent history.
func (e *Enrollment) HasFaced(enrollmentID int) bool {
	for _, id := range e.SwissOpponents {
		if int(id) == enrollmentID {
			return true
		}
	}
	return false
}
