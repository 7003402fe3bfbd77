package models

type ClubStats struct {
	PlayersTotal      int `json:"players_total"`
	TournamentsTotal  int `json:"tournaments_total"`
	ActiveTournaments int `json:"active_tournaments"`
	MatchesTotal      int `json:"matches_total"`
	ChallengesTotal   int `json:"challenges_total"`
}
