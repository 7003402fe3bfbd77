package brackets

import (
	"sort"

	"github.com/smashpoint/league-system/models"
)

// RankGroup orders group members for standings and knockout
// qualification: points, then wins, then game differential, with seed
// as the deterministic tail tiebreak. Returns a sorted copy.
func RankGroup(enrollments []*models.Enrollment) []*models.Enrollment {
	ranked := make([]*models.Enrollment, len(enrollments))
	copy(ranked, enrollments)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.GroupPoints != b.GroupPoints {
			return a.GroupPoints > b.GroupPoints
		}
		if a.GroupWins != b.GroupWins {
			return a.GroupWins > b.GroupWins
		}
		if a.GameDiff != b.GameDiff {
			return a.GameDiff > b.GameDiff
		}
		return a.Seed < b.Seed
	})
	return ranked
}

// RankSwiss orders Swiss participants by cumulative points, seed as the
// tail tiebreak. Returns a sorted copy.
func RankSwiss(enrollments []*models.Enrollment) []*models.Enrollment {
	ranked := make([]*models.Enrollment, len(enrollments))
	copy(ranked, enrollments)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.SwissPoints != b.SwissPoints {
			return a.SwissPoints > b.SwissPoints
		}
		return a.Seed < b.Seed
	})
	return ranked
}
