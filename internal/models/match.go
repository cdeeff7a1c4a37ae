package models

import (
	"time"

	"github.com/google/uuid"
)

// Side identifies one team of a match.
type Side int

const (
	SideNone Side = iota
	SideTeam1
	SideTeam2
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	switch s {
	case SideTeam1:
		return SideTeam2
	case SideTeam2:
		return SideTeam1
	}
	return SideNone
}

// SeriesType is the match format.
type SeriesType string

const (
	SeriesBestOf1 SeriesType = "bo1"
	SeriesBestOf3 SeriesType = "bo3"
)

// Participant is one slot of a match: a registered player or a guest.
// Guests carry only a display name and are never rated.
type Participant struct {
	PlayerID  uuid.UUID `json:"player_id,omitempty"`
	GuestName string    `json:"guest_name,omitempty"`
}

// IsGuest reports whether the slot is filled by an unregistered guest.
func (p Participant) IsGuest() bool {
	return p.PlayerID == uuid.Nil
}

// MatchSubmission is an incoming match report.
type MatchSubmission struct {
	MatchID     uuid.UUID     `json:"match_id,omitempty"`
	GroupID     uuid.UUID     `json:"group_id"`
	Mode        Mode          `json:"mode"`
	Team1       []Participant `json:"team1"`
	Team2       []Participant `json:"team2"`
	Team1Score  int           `json:"team1_score"`
	Team2Score  int           `json:"team2_score"`
	Winner      Side          `json:"winner"`
	SeriesType  SeriesType    `json:"series_type,omitempty"`
	Sweep       bool          `json:"sweep,omitempty"`
	SubmittedBy uuid.UUID     `json:"submitted_by,omitempty"`
}

// RatingDelta is the frozen rating change of one rated participant.
// NewRating == OldRating + Change always holds.
type RatingDelta struct {
	OldRating int `json:"old_rating"`
	NewRating int `json:"new_rating"`
	Change    int `json:"change"`
}

// LedgerEntry is the immutable record of a match and its rating effects.
type LedgerEntry struct {
	MatchID    uuid.UUID                 `json:"match_id"`
	GroupID    uuid.UUID                 `json:"group_id"`
	Mode       Mode                      `json:"mode"`
	Team1      []Participant             `json:"team1"`
	Team2      []Participant             `json:"team2"`
	Team1Score int                       `json:"team1_score"`
	Team2Score int                       `json:"team2_score"`
	Winner     Side                      `json:"winner"`
	SeriesType SeriesType                `json:"series_type"`
	Sweep      bool                      `json:"sweep"`
	Multiplier float64                   `json:"multiplier"`
	Deltas     map[uuid.UUID]RatingDelta `json:"deltas"`
	CreatedBy  uuid.UUID                 `json:"created_by,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
}

// Team returns the participants of a side.
func (e *LedgerEntry) Team(s Side) []Participant {
	switch s {
	case SideTeam1:
		return e.Team1
	case SideTeam2:
		return e.Team2
	}
	return nil
}

// SideOf returns the side a registered player played on.
func (e *LedgerEntry) SideOf(playerID uuid.UUID) (Side, bool) {
	for _, s := range []Side{SideTeam1, SideTeam2} {
		for _, p := range e.Team(s) {
			if !p.IsGuest() && p.PlayerID == playerID {
				return s, true
			}
		}
	}
	return SideNone, false
}

// Won reports whether the player was on the winning side.
func (e *LedgerEntry) Won(playerID uuid.UUID) bool {
	s, ok := e.SideOf(playerID)
	return ok && s == e.Winner
}

// RatedPlayers lists registered participants in slot order.
func (e *LedgerEntry) RatedPlayers() []uuid.UUID {
	return ratedPlayers(e.Team1, e.Team2)
}

// RatedPlayers lists registered participants in slot order.
func (s *MatchSubmission) RatedPlayers() []uuid.UUID {
	return ratedPlayers(s.Team1, s.Team2)
}

func ratedPlayers(teams ...[]Participant) []uuid.UUID {
	var ids []uuid.UUID
	for _, team := range teams {
		for _, p := range team {
			if !p.IsGuest() {
				ids = append(ids, p.PlayerID)
			}
		}
	}
	return ids
}

// LedgerEvent types.
const (
	EventMatchRecorded = "match_recorded"
	EventMatchDeleted  = "match_deleted"
)

// LedgerEvent is published after a ledger entry is created or removed.
type LedgerEvent struct {
	Type  string      `json:"type"`
	Entry LedgerEntry `json:"entry"`
	At    int64       `json:"at"` // epoch millis
}
