package ratings

import "math"

// BaseK is the K-factor at multiplier 100.
const BaseK = 32.0

// DoublesFactor reduces doubles updates: a pair match moves individual
// ratings by 75% of the singles amount.
const DoublesFactor = 0.75

// Expected is the logistic expected score of a player rated a against
// a player rated b.
func Expected(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// HeadToHead computes the singles delta for a win by the first player
// outside any tournament. The loser moves by the negation.
func HeadToHead(winner, loser int) int {
	return delta(BaseK, winner, loser)
}

// HeadToHeadDoubles computes the per-player delta for a doubles win,
// applied identically to both teammates. Teams compare by average
// rating and the K-factor carries the doubles reduction.
func HeadToHeadDoubles(winner1, winner2, loser1, loser2 int) int {
	return delta(BaseK*DoublesFactor, TeamAverage(winner1, winner2), TeamAverage(loser1, loser2))
}

// Scaled computes a singles delta with the K-factor scaled by a round
// multiplier percentage: 100 is the base K, 150 means x1.5.
func Scaled(winner, loser, multiplier int) int {
	return delta(BaseK*float64(multiplier)/100.0, winner, loser)
}

// ScaledDoubles is Scaled for a doubles pairing.
func ScaledDoubles(winner1, winner2, loser1, loser2, multiplier int) int {
	k := BaseK * DoublesFactor * float64(multiplier) / 100.0
	return delta(k, TeamAverage(winner1, winner2), TeamAverage(loser1, loser2))
}

// PerGameSeries replays a best-of series game by game: every game moves
// both ratings before the next one is evaluated, so an upset mid-series
// pays out against already-updated numbers. winnerWonGame holds one
// entry per game, true when the eventual series winner took it. Returns
// the net deltas; they always sum to zero.
func PerGameSeries(winnerRating, loserRating int, winnerWonGame []bool, multiplier int) (winnerDelta, loserDelta int) {
	w, l := winnerRating, loserRating
	for _, won := range winnerWonGame {
		if won {
			d := Scaled(w, l, multiplier)
			w += d
			l -= d
		} else {
			d := Scaled(l, w, multiplier)
			l += d
			w -= d
		}
	}
	return w - winnerRating, l - loserRating
}

// PerGameSeriesDoubles is PerGameSeries for doubles. Both teammates on
// a side always move together, so one delta per side suffices.
func PerGameSeriesDoubles(winner1, winner2, loser1, loser2 int, winnerWonGame []bool, multiplier int) (winnerDelta, loserDelta int) {
	cw1, cw2, cl1, cl2 := winner1, winner2, loser1, loser2
	for _, won := range winnerWonGame {
		if won {
			d := ScaledDoubles(cw1, cw2, cl1, cl2, multiplier)
			cw1 += d
			cw2 += d
			cl1 -= d
			cl2 -= d
		} else {
			d := ScaledDoubles(cl1, cl2, cw1, cw2, multiplier)
			cl1 += d
			cl2 += d
			cw1 -= d
			cw2 -= d
		}
	}
	return cw1 - winner1, cl1 - loser1
}

// delta rounds half away from zero so both sides always move by the
// same magnitude.
func delta(k float64, winner, loser int) int {
	return int(math.Round(k * (1.0 - Expected(winner, loser))))
}

// TeamAverage is the pair rating for doubles, rounded half away from
// zero like every other rating quantity.
func TeamAverage(a, b int) int {
	return int(math.Round(float64(a+b) / 2.0))
}
