package rating

import "math"

const (
	// SinglesDivisor is the logistic scale used for 1v1 expected scores.
	SinglesDivisor = 400.0
	// TeamDivisor is the softer scale used for 2v2 expected scores.
	TeamDivisor = 500.0

	// KFactorBase is the K-factor of a player with no games.
	KFactorBase = 50.0
	// KFactorDecayGames controls how fast K decays with experience.
	KFactorDecayGames = 300.0
)

// expectedScore is the logistic win probability of a against b.
func expectedScore(a, b, divisor float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/divisor))
}

// ExpectedScore1v1 returns the probability that a player rated a beats one rated b.
// ExpectedScore1v1(a, b) + ExpectedScore1v1(b, a) == 1.
func ExpectedScore1v1(a, b int) float64 {
	return expectedScore(float64(a), float64(b), SinglesDivisor)
}

// ExpectedScoreTeam averages a player's expected score against each of the two
// opponents individually, on the TeamDivisor curve.
func ExpectedScoreTeam(player, opp1, opp2 int) float64 {
	p := float64(player)
	e1 := expectedScore(p, float64(opp1), TeamDivisor)
	e2 := expectedScore(p, float64(opp2), TeamDivisor)
	return (e1 + e2) / 2
}

// KFactor decays from KFactorBase toward zero as gamesPlayed grows.
// For doubles, gamesPlayed is the player's combined singles and doubles count.
func KFactor(gamesPlayed int) float64 {
	if gamesPlayed < 0 {
		gamesPlayed = 0
	}
	return KFactorBase / (1 + float64(gamesPlayed)/KFactorDecayGames)
}
