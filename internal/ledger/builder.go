package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/jason-s-yu/matchledger/internal/rating"
)

// Snapshot is the rating state of every rated participant, read before any
// write of the same operation.
type Snapshot map[uuid.UUID]models.PlayerRatings

// BuildLedgerEntry runs the calculator for the match exactly once and freezes
// the result. The submission must already be validated. Guests never appear
// in Deltas.
func BuildLedgerEntry(sub *models.MatchSubmission, snap Snapshot, calc rating.Calculator, now time.Time) *models.LedgerEntry {
	entry := &models.LedgerEntry{
		MatchID:    sub.MatchID,
		GroupID:    sub.GroupID,
		Mode:       sub.Mode,
		Team1:      append([]models.Participant(nil), sub.Team1...),
		Team2:      append([]models.Participant(nil), sub.Team2...),
		Team1Score: sub.Team1Score,
		Team2Score: sub.Team2Score,
		Winner:     sub.Winner,
		SeriesType: sub.SeriesType,
		Sweep:      sub.Sweep,
		Multiplier: calc.Multiplier(sub.Sweep),
		Deltas:     make(map[uuid.UUID]models.RatingDelta),
		CreatedBy:  sub.SubmittedBy,
		CreatedAt:  now.UTC(),
	}

	team1Won := sub.Winner == models.SideTeam1
	switch sub.Mode {
	case models.ModeSingles:
		buildSingles(entry, snap, calc, team1Won)
	case models.ModeDoubles:
		buildDoubles(entry, snap, calc, team1Won)
	}
	return entry
}

// buildSingles rates a guest opponent at models.DefaultRating.
func buildSingles(entry *models.LedgerEntry, snap Snapshot, calc rating.Calculator, team1Won bool) {
	a, b := entry.Team1[0], entry.Team2[0]
	if a.IsGuest() && b.IsGuest() {
		return
	}
	ra, rb := singlesRating(a, snap), singlesRating(b, snap)
	da, db := calc.Singles(ra, rb, team1Won, entry.Sweep)
	if !a.IsGuest() {
		entry.Deltas[a.PlayerID] = da
	}
	if !b.IsGuest() {
		entry.Deltas[b.PlayerID] = db
	}
}

// singlesRating is the rating a 1v1 slot plays at. A guest opponent plays at
// models.DefaultRating; it never gets a delta of its own.
func singlesRating(p models.Participant, snap Snapshot) int {
	if p.IsGuest() {
		return models.DefaultRating
	}
	return snap[p.PlayerID].Singles.Rating
}

func buildDoubles(entry *models.LedgerEntry, snap Snapshot, calc rating.Calculator, team1Won bool) {
	t1, t2 := calc.Doubles(doublesInfo(entry.Team1, snap), doublesInfo(entry.Team2, snap), team1Won, entry.Sweep)
	collect := func(team []models.Participant, deltas [2]*models.RatingDelta) {
		for i, p := range team {
			if d := deltas[i]; d != nil {
				entry.Deltas[p.PlayerID] = *d
			}
		}
	}
	collect(entry.Team1, t1)
	collect(entry.Team2, t2)
}

// doublesInfo uses the doubles rating but the combined game count of both modes.
func doublesInfo(team []models.Participant, snap Snapshot) [2]*rating.PlayerInfo {
	var out [2]*rating.PlayerInfo
	for i, p := range team {
		if p.IsGuest() {
			continue
		}
		r := snap[p.PlayerID]
		out[i] = &rating.PlayerInfo{
			Rating:      r.Doubles.Rating,
			GamesPlayed: r.GamesPlayed(),
		}
	}
	return out
}

// ApplyDelta returns the state after a match: the frozen new rating and one
// more win or loss.
func ApplyDelta(st models.PlayerRatingState, d models.RatingDelta, won bool) models.PlayerRatingState {
	next := st
	next.Rating = d.NewRating
	if won {
		next.Wins++
	} else {
		next.Losses++
	}
	return next
}

// ReverseDelta undoes ApplyDelta from the frozen delta, never by re-running
// the calculator. Only this entry's stored change is removed, so later matches
// keep their effect; a player who has not played since gets OldRating back
// exactly. Counters are clamped at zero; a negative count would mean an
// earlier bug.
func ReverseDelta(st models.PlayerRatingState, d models.RatingDelta, won bool) models.PlayerRatingState {
	prev := st
	prev.Rating = st.Rating - d.Change
	if won {
		prev.Wins = max(prev.Wins-1, 0)
	} else {
		prev.Losses = max(prev.Losses-1, 0)
	}
	return prev
}
