package rating

import (
	"math"

	"github.com/jason-s-yu/matchledger/internal/models"
)

const (
	// DefaultSinglesK is the fixed K-factor for 1v1 matches.
	DefaultSinglesK = 32.0
	// DefaultSweepMultiplier scales every delta of a 2-0 best-of-3.
	DefaultSweepMultiplier = 1.2
	// NoMultiplier leaves deltas unscaled.
	NoMultiplier = 1.0
)

// PlayerInfo is the calculator input for one rated doubles player.
type PlayerInfo struct {
	Rating      int
	GamesPlayed int
}

// Calculator holds the tunable constants of the rating system.
type Calculator struct {
	SinglesK        float64
	SweepMultiplier float64
}

// DefaultCalculator returns a Calculator with the standard constants.
func DefaultCalculator() Calculator {
	return Calculator{
		SinglesK:        DefaultSinglesK,
		SweepMultiplier: DefaultSweepMultiplier,
	}
}

// Multiplier returns the delta multiplier for a match.
func (c Calculator) Multiplier(sweep bool) float64 {
	if sweep {
		return c.SweepMultiplier
	}
	return NoMultiplier
}

// Singles computes both deltas of a 1v1 match.
func (c Calculator) Singles(ratingA, ratingB int, aWon, sweep bool) (models.RatingDelta, models.RatingDelta) {
	return Calculate1v1(ratingA, ratingB, aWon, c.SinglesK, c.Multiplier(sweep))
}

// Doubles computes the deltas of a 2v2 match. A nil slot is a guest.
func (c Calculator) Doubles(team1, team2 [2]*PlayerInfo, team1Won, sweep bool) ([2]*models.RatingDelta, [2]*models.RatingDelta) {
	return Calculate2v2(team1, team2, team1Won, c.Multiplier(sweep))
}

// newDelta rounds the continuous new rating exactly once.
func newDelta(old int, next float64) models.RatingDelta {
	n := int(math.Round(next))
	return models.RatingDelta{
		OldRating: old,
		NewRating: n,
		Change:    n - old,
	}
}

func actual(won bool) float64 {
	if won {
		return 1
	}
	return 0
}

// Calculate1v1 is classic Elo with a fixed k. Each new rating is rounded on its
// own, so the two changes are not always exact negatives of each other.
// Callers pass models.DefaultRating for a guest side and drop its delta.
func Calculate1v1(ratingA, ratingB int, aWon bool, k, multiplier float64) (models.RatingDelta, models.RatingDelta) {
	expectedA := ExpectedScore1v1(ratingA, ratingB)
	expectedB := 1 - expectedA
	actualA := actual(aWon)
	actualB := 1 - actualA

	a := newDelta(ratingA, float64(ratingA)+k*(actualA-expectedA)*multiplier)
	b := newDelta(ratingB, float64(ratingB)+k*(actualB-expectedB)*multiplier)
	return a, b
}

// Calculate2v2 updates each rated player independently: expected score against
// both opponents on the team curve, scaled by the player's own K-factor.
// Guest slots (nil) play at models.DefaultRating and get no delta.
func Calculate2v2(team1, team2 [2]*PlayerInfo, team1Won bool, multiplier float64) ([2]*models.RatingDelta, [2]*models.RatingDelta) {
	return teamDeltas(team1, team2, team1Won, multiplier), teamDeltas(team2, team1, !team1Won, multiplier)
}

func teamDeltas(team, opponents [2]*PlayerInfo, won bool, multiplier float64) [2]*models.RatingDelta {
	var out [2]*models.RatingDelta
	opp1, opp2 := slotRating(opponents[0]), slotRating(opponents[1])
	for i, p := range team {
		if p == nil {
			continue
		}
		expected := ExpectedScoreTeam(p.Rating, opp1, opp2)
		k := KFactor(p.GamesPlayed)
		d := newDelta(p.Rating, float64(p.Rating)+k*multiplier*(actual(won)-expected))
		out[i] = &d
	}
	return out
}

func slotRating(p *PlayerInfo) int {
	if p == nil {
		return models.DefaultRating
	}
	return p.Rating
}
