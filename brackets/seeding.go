package brackets

import "sort"

// AssignSeeds orders entrants into seed positions and writes 1-based seed
// numbers. Manual overrides win: two locked entrants with explicit seeds
// compare by seed, a locked entrant outranks an unlocked one, everything
// else falls back to rating descending. The sort is stable so equal
// ratings keep enrollment order.
func AssignSeeds(entrants []Entrant) []Entrant {
	seeded := make([]Entrant, len(entrants))
	copy(seeded, entrants)

	sort.SliceStable(seeded, func(i, j int) bool {
		a, b := seeded[i], seeded[j]
		if a.Locked && b.Locked && a.Seed > 0 && b.Seed > 0 {
			return a.Seed < b.Seed
		}
		if a.Locked != b.Locked {
			return a.Locked
		}
		return a.Rating > b.Rating
	})

	for i := range seeded {
		seeded[i].Seed = i + 1
	}
	return seeded
}

// seedOrder returns the standard bracket placement of seeds for a field
// of the given size (a power of two): consecutive pairs form the first
// round, and the top two seeds cannot meet before the final.
// size 8 yields [1 8 4 5 2 7 3 6].
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		doubled := make([]int, 0, len(order)*2)
		mirror := len(order)*2 + 1
		for _, s := range order {
			doubled = append(doubled, s, mirror-s)
		}
		order = doubled
	}
	return order
}
