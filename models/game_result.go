package models

import "time"

// GameResult is an immutable record of one game inside a best-of series.
// Scores are stored from the slots' perspective, not the winner's.
type GameResult struct {
	ID         int       `json:"id"`
	MatchID    int       `json:"match_id"`
	GameNumber int       `json:"game_number"`
	Slot1Score int       `json:"slot1_score"`
	Slot2Score int       `json:"slot2_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// GameScore is the request-side shape of a single game line.
type GameScore struct {
	Slot1 int `json:"slot1"`
	Slot2 int `json:"slot2"`
}
