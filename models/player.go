package models

import "time"

type PlayerRole string

const (
	RoleMember PlayerRole = "member"
	RoleAdmin  PlayerRole = "admin"
)

// DefaultRating is the rating every new player starts from.
const DefaultRating = 1000

type Player struct {
	ID                int        `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	DisplayName       string     `json:"display_name"`
	Role              PlayerRole `json:"role"`
	Rating            int        `json:"rating"`
	Wins              int        `json:"wins"`
	Losses            int        `json:"losses"`
	CurrentStreak     int        `json:"current_streak"`
	BestStreak        int        `json:"best_streak"`
	TournamentsPlayed int        `json:"tournaments_played"`
	TournamentsWon    int        `json:"tournaments_won"`
	AvatarKey         *string    `json:"-"`
	AvatarURL         *string    `json:"avatar_url,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
