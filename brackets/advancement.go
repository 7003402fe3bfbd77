package brackets

import "github.com/smashpoint/league-system/models"

// Propagate walks the advance-from references of a tournament's match
// set and fills every slot whose source match has turned terminal,
// flipping pending matches to ready once both slots hold participants.
// A slot is dead when its source can no longer produce anyone (a bye
// has no loser, an empty bye not even a winner): one live slot against
// a dead one makes the match a bye for the live participant, two dead
// slots make it an empty bye, and either way the cascade continues
// downstream. Runs to a fixpoint and returns the matches it changed.
// Generated byes are resolved by running this immediately after
// bracket creation; recorded results reuse the same path.
//
// Enrollments in barred can no longer play (disqualified); a feed that
// would seat one counts as dead, so a disqualified winners-bracket
// loser never surfaces in the losers bracket.
func Propagate(matches []*models.Match, barred map[int]bool) []*models.Match {
	byID := make(map[int]*models.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}

	// feed resolves one slot: the participant the source sends, and
	// whether the slot can still be filled later.
	feed := func(sourceID *int, takeLoser bool) (participant *int, dead bool) {
		if sourceID == nil {
			return nil, true
		}
		src := byID[*sourceID]
		if src == nil || !src.Terminal() {
			return nil, false
		}
		if takeLoser {
			participant = src.LoserEnrollmentID()
		} else {
			participant = src.WinnerEnrollmentID
		}
		if participant != nil && barred[*participant] {
			return nil, true
		}
		return participant, participant == nil
	}

	changedSet := make(map[int]*models.Match)
	for {
		changed := false
		for _, m := range matches {
			if m.Status != models.MatchStatusPending {
				continue
			}

			dead1, dead2 := false, false
			if m.Slot1EnrollmentID == nil {
				var p *int
				p, dead1 = feed(m.Source1MatchID, m.Source1TakeLoser)
				if p != nil {
					m.Slot1EnrollmentID = p
					changedSet[m.ID] = m
					changed = true
				}
			}
			if m.Slot2EnrollmentID == nil {
				var p *int
				p, dead2 = feed(m.Source2MatchID, m.Source2TakeLoser)
				if p != nil {
					m.Slot2EnrollmentID = p
					changedSet[m.ID] = m
					changed = true
				}
			}

			switch {
			case m.SlotsFilled():
				m.Status = models.MatchStatusReady
			case m.Slot1EnrollmentID != nil && dead2:
				m.Status = models.MatchStatusBye
				m.WinnerEnrollmentID = m.Slot1EnrollmentID
			case m.Slot2EnrollmentID != nil && dead1:
				m.Status = models.MatchStatusBye
				m.WinnerEnrollmentID = m.Slot2EnrollmentID
			case dead1 && dead2:
				m.Status = models.MatchStatusBye
			}
			if m.Status != models.MatchStatusPending {
				changedSet[m.ID] = m
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	out := make([]*models.Match, 0, len(changedSet))
	for _, m := range matches {
		if _, ok := changedSet[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

// SelectNext picks the match to play next: lowest round number, then
// lowest position, among ready matches. Matches an operator moved to
// in_progress are already on a table and are skipped.
func SelectNext(matches []*models.Match) *models.Match {
	var best *models.Match
	for _, m := range matches {
		if m.Status != models.MatchStatusReady {
			continue
		}
		if best == nil ||
			m.RoundNumber < best.RoundNumber ||
			(m.RoundNumber == best.RoundNumber && m.Position < best.Position) {
			best = m
		}
	}
	return best
}

// ApplyNextFlag points the is-next flag at the chosen match and clears
// it everywhere else; a nil choice just clears. Returns changed matches.
func ApplyNextFlag(matches []*models.Match, next *models.Match) []*models.Match {
	var changed []*models.Match
	for _, m := range matches {
		want := next != nil && m.ID == next.ID
		if m.IsNext != want {
			m.IsNext = want
			changed = append(changed, m)
		}
	}
	return changed
}
