package models

import "time"

// PlayerAchievement records an unlocked badge. Badge definitions live in
// the achievements package; the code is the join key.
type PlayerAchievement struct {
	ID         int       `json:"id"`
	PlayerID   int       `json:"player_id"`
	Code       string    `json:"code"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
