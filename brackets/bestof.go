package brackets

import (
	"fmt"
	"strings"

	"github.com/smashpoint/league-system/models"
)

// StageClass buckets a round for best-of override lookup.
type StageClass string

const (
	ClassGroup     StageClass = "group"
	ClassEarly     StageClass = "early"
	ClassSemifinal StageClass = "semifinal"
	ClassFinal     StageClass = "final"
)

// ErrInvalidBestOf rejects series lengths outside {1,3,5,7}.
var ErrInvalidBestOf = fmt.Errorf("best-of must be one of 1, 3, 5, 7")

func ValidBestOf(v int) bool {
	switch v {
	case 1, 3, 5, 7:
		return true
	}
	return false
}

// NeededWins is the number of game wins that decides a series.
func NeededWins(bestOf int) int {
	return bestOf/2 + 1
}

// ClassifyRound buckets a round by its segment and name. Group rounds are
// their own class; the finals segment and the last matches feeding it
// (semifinals, the winners and losers finals of a double elimination)
// get the late-stage overrides; everything else is early.
func ClassifyRound(name string, segment models.Segment) StageClass {
	if segment == models.SegmentGroup {
		return ClassGroup
	}
	if segment == models.SegmentFinals {
		return ClassFinal
	}
	switch {
	case strings.Contains(name, "Semifinal"),
		name == "Winners Final",
		name == "Losers Final":
		return ClassSemifinal
	case name == "Finals":
		return ClassFinal
	}
	return ClassEarly
}

// RoundBestOf resolves the best-of recorded on a round at generation
// time: the per-stage override for its class when configured, otherwise
// the tournament default.
func RoundBestOf(cfg Config, class StageClass) int {
	var override *int
	switch class {
	case ClassGroup:
		override = cfg.GroupBestOf
	case ClassEarly:
		override = cfg.EarlyBestOf
	case ClassSemifinal:
		override = cfg.SemifinalBestOf
	case ClassFinal:
		override = cfg.FinalBestOf
	}
	if override != nil {
		return *override
	}
	return cfg.DefaultBestOf
}

// EffectiveBestOf is the three-level resolution for a concrete match:
// match override, then the round value (which already folded in the
// tournament default at generation time).
func EffectiveBestOf(match *models.Match, round *models.Round) int {
	if match != nil && match.BestOf != nil {
		return *match.BestOf
	}
	return round.BestOf
}

// ValidateGameScores checks a full per-game score list against the
// series length: the declared winner takes exactly the needed wins, the
// loser stays strictly below, every game has a winner, and the series
// ends on the deciding game.
func ValidateGameScores(bestOf int, games []models.GameScore, winnerIsSlot1 bool) error {
	if !ValidBestOf(bestOf) {
		return ErrInvalidBestOf
	}
	if len(games) == 0 {
		return fmt.Errorf("no game scores given")
	}
	needed := NeededWins(bestOf)

	winnerWins, loserWins := 0, 0
	for i, g := range games {
		if g.Slot1 < 0 || g.Slot2 < 0 {
			return fmt.Errorf("game %d: negative score", i+1)
		}
		if g.Slot1 == g.Slot2 {
			return fmt.Errorf("game %d: drawn game score %d-%d", i+1, g.Slot1, g.Slot2)
		}
		slot1Won := g.Slot1 > g.Slot2
		if slot1Won == winnerIsSlot1 {
			winnerWins++
		} else {
			loserWins++
		}
		if winnerWins == needed && i != len(games)-1 {
			return fmt.Errorf("series already decided after game %d", i+1)
		}
	}
	if winnerWins != needed {
		return fmt.Errorf("winner has %d game wins, best-of %d requires %d", winnerWins, bestOf, needed)
	}
	if loserWins >= needed {
		return fmt.Errorf("loser cannot reach %d game wins in a best-of %d", loserWins, bestOf)
	}
	return nil
}

// ValidateQuickScore checks a "3-1" style series score. Only the exact
// strings "{needed}-{k}" for k below needed are accepted; returns the
// parsed game counts.
func ValidateQuickScore(bestOf int, score string) (winnerGames, loserGames int, err error) {
	if !ValidBestOf(bestOf) {
		return 0, 0, ErrInvalidBestOf
	}
	needed := NeededWins(bestOf)
	for k := 0; k < needed; k++ {
		if score == fmt.Sprintf("%d-%d", needed, k) {
			return needed, k, nil
		}
	}
	return 0, 0, fmt.Errorf("series score %q is not valid for a best-of %d", score, bestOf)
}
