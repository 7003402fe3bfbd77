package models

// StandingRow is a computed standings line for group tables, Swiss tables
// and final placements. Never persisted; ranking lives in brackets.
type StandingRow struct {
	Rank         int    `json:"rank"`
	EnrollmentID int    `json:"enrollment_id"`
	PlayerName   string `json:"player_name"`
	PartnerName  string `json:"partner_name,omitempty"`
	GroupName    string `json:"group_name,omitempty"`
	Points       int    `json:"points"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	GameDiff     int    `json:"game_diff"`
	Placement    *int   `json:"placement,omitempty"`
}
