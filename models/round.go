package models

import "time"

// Segment identifies which sub-graph of the bracket a round or match
// belongs to. (tournament, number, segment) is unique per round.
type Segment string

const (
	SegmentWinners    Segment = "winners"
	SegmentLosers     Segment = "losers"
	SegmentFinals     Segment = "finals"
	SegmentGroup      Segment = "group"
	SegmentSwissRound Segment = "swiss_round"
)

type Round struct {
	ID           int       `json:"id"`
	TournamentID int       `json:"tournament_id"`
	Number       int       `json:"number"`
	Name         string    `json:"name"`
	Segment      Segment   `json:"segment"`
	Multiplier   int       `json:"multiplier"`
	BestOf       int       `json:"best_of"`
	CreatedAt    time.Time `json:"created_at"`
}
