package models

import "time"

type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeAccepted  ChallengeStatus = "accepted"
	ChallengeDeclined  ChallengeStatus = "declined"
	ChallengeExpired   ChallengeStatus = "expired"
	ChallengeCompleted ChallengeStatus = "completed"
)

// Challenge is a friendly-match invitation. Once completed it doubles as
// the historical record of the match: winner side plus a series score.
type Challenge struct {
	ID                int             `json:"id"`
	Token             string          `json:"token"`
	ChallengerID      int             `json:"challenger_id"`
	ChallengerPartner *int            `json:"challenger_partner_id,omitempty"`
	OpponentID        int             `json:"opponent_id"`
	OpponentPartner   *int            `json:"opponent_partner_id,omitempty"`
	Status            ChallengeStatus `json:"status"`
	WinnerSide        *int            `json:"winner_side,omitempty"` // 1 = challenger side, 2 = opponent side
	Score             *string         `json:"score,omitempty"`
	ChallengerDelta   *int            `json:"challenger_delta,omitempty"`
	OpponentDelta     *int            `json:"opponent_delta,omitempty"`
	ExpiresAt         time.Time       `json:"expires_at"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`

	Challenger *Player `json:"challenger,omitempty"`
	Opponent   *Player `json:"opponent,omitempty"`
}

// Doubles reports whether the challenge involves partners on both sides.
func (c *Challenge) Doubles() bool {
	return c.ChallengerPartner != nil && c.OpponentPartner != nil
}
