package models

// Group is a named subset of enrollments, used only by the
// round-robin-knockout format.
type Group struct {
	ID           int    `json:"id"`
	TournamentID int    `json:"tournament_id"`
	Name         string `json:"name"`
	Position     int    `json:"position"`
}
