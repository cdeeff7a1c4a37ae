package models

// Mode is the game mode a rating belongs to.
type Mode string

const (
	// ModeSingles is a 1v1 match.
	ModeSingles Mode = "1v1"
	// ModeDoubles is a 2v2 team match.
	ModeDoubles Mode = "2v2"
)

// DefaultRating is the rating every player starts at, in both modes.
const DefaultRating = 1200

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSingles || m == ModeDoubles
}

// TeamSize returns the number of participants per side for the mode.
func (m Mode) TeamSize() int {
	if m == ModeDoubles {
		return 2
	}
	return 1
}

// PlayerRatingState is a player's rating and record in a single mode.
// Only the ledger engine writes it.
type PlayerRatingState struct {
	Rating int `json:"rating"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// NewPlayerRatingState returns the state of a player who has not played yet.
func NewPlayerRatingState() PlayerRatingState {
	return PlayerRatingState{Rating: DefaultRating}
}

// GamesPlayed is wins plus losses.
func (s PlayerRatingState) GamesPlayed() int {
	return s.Wins + s.Losses
}

// PlayerRatings bundles a player's state in both modes.
type PlayerRatings struct {
	Singles PlayerRatingState `json:"singles"`
	Doubles PlayerRatingState `json:"doubles"`
}

// Mode returns the state for the given mode.
func (p PlayerRatings) Mode(m Mode) PlayerRatingState {
	if m == ModeDoubles {
		return p.Doubles
	}
	return p.Singles
}

// GamesPlayed is the combined singles and doubles game count.
func (p PlayerRatings) GamesPlayed() int {
	return p.Singles.GamesPlayed() + p.Doubles.GamesPlayed()
}
