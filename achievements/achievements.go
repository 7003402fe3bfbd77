package achievements

import (
	"github.com/smashpoint/league-system/models"
)

// Badge codes are stable identifiers stored per player; display strings
// live client-side.
const (
	CodeFirstWin         = "first_win"
	CodeTenWinStreak     = "ten_win_streak"
	CodeFirstTitle       = "first_title"
	CodeRatingBreak1200  = "rating_1200"
	CodeRatingBreak1500  = "rating_1500"
	CodeRatingBreak1800  = "rating_1800"
	CodeSeasonedCampaign = "ten_tournaments"
)

type Badge struct {
	Code      string
	Qualifies func(p *models.Player) bool
}

// statBadges are evaluated whenever a player's counters change.
// Streak badges key off BestStreak so a later loss cannot un-earn them.
var statBadges = []Badge{
	{CodeFirstWin, func(p *models.Player) bool { return p.Wins >= 1 }},
	{CodeTenWinStreak, func(p *models.Player) bool { return p.BestStreak >= 10 }},
	{CodeRatingBreak1200, func(p *models.Player) bool { return p.Rating >= 1200 }},
	{CodeRatingBreak1500, func(p *models.Player) bool { return p.Rating >= 1500 }},
	{CodeRatingBreak1800, func(p *models.Player) bool { return p.Rating >= 1800 }},
	{CodeSeasonedCampaign, func(p *models.Player) bool { return p.TournamentsPlayed >= 10 }},
}

// titleBadges are evaluated only for tournament winners.
var titleBadges = []Badge{
	{CodeFirstTitle, func(p *models.Player) bool { return p.TournamentsWon >= 1 }},
}
