package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/jason-s-yu/matchledger/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReverseDelta(t *testing.T) {
	start := models.PlayerRatingState{Rating: 1300, Wins: 4, Losses: 2}
	d := models.RatingDelta{OldRating: 1300, NewRating: 1291, Change: -9}

	lost := ApplyDelta(start, d, false)
	assert.Equal(t, models.PlayerRatingState{Rating: 1291, Wins: 4, Losses: 3}, lost)
	assert.Equal(t, start, ReverseDelta(lost, d, false))

	won := ApplyDelta(start, models.RatingDelta{OldRating: 1300, NewRating: 1310, Change: 10}, true)
	assert.Equal(t, 5, won.Wins)
	assert.Equal(t, start, ReverseDelta(won, models.RatingDelta{OldRating: 1300, NewRating: 1310, Change: 10}, true))

	// input is never mutated
	assert.Equal(t, models.PlayerRatingState{Rating: 1300, Wins: 4, Losses: 2}, start)
}

func TestReverseDeltaClampsCounters(t *testing.T) {
	st := models.PlayerRatingState{Rating: 1216}
	d := models.RatingDelta{OldRating: 1200, NewRating: 1216, Change: 16}

	prev := ReverseDelta(st, d, true)
	assert.Equal(t, 0, prev.Wins)
	assert.Equal(t, 0, prev.Losses)
	assert.Equal(t, 1200, prev.Rating)
}

func TestReverseDeltaAfterLaterMatch(t *testing.T) {
	d := models.RatingDelta{OldRating: 1200, NewRating: 1216, Change: 16}
	// a later match moved the player from 1216 to 1199
	st := models.PlayerRatingState{Rating: 1199, Wins: 1, Losses: 1}

	prev := ReverseDelta(st, d, true)
	assert.Equal(t, models.PlayerRatingState{Rating: 1183, Wins: 0, Losses: 1}, prev)
}

func TestBuildLedgerEntry(t *testing.T) {
	group, a, b := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := singles(group, a, b, models.SideTeam2)
	sub.MatchID = uuid.New()
	sub.SeriesType = models.SeriesBestOf3
	sub.Team1Score, sub.Team2Score = 0, 2
	require.NoError(t, ValidateSubmission(&sub))

	snap := Snapshot{
		a: {Singles: models.PlayerRatingState{Rating: 1200}},
		b: {Singles: models.PlayerRatingState{Rating: 1200}},
	}
	entry := BuildLedgerEntry(&sub, snap, rating.DefaultCalculator(), now)

	assert.Equal(t, sub.MatchID, entry.MatchID)
	assert.Equal(t, group, entry.GroupID)
	assert.True(t, entry.Sweep)
	assert.Equal(t, rating.DefaultSweepMultiplier, entry.Multiplier)
	assert.Equal(t, now, entry.CreatedAt)
	assert.Equal(t, a, entry.CreatedBy)
	assert.Equal(t, models.RatingDelta{OldRating: 1200, NewRating: 1181, Change: -19}, entry.Deltas[a])
	assert.Equal(t, models.RatingDelta{OldRating: 1200, NewRating: 1219, Change: 19}, entry.Deltas[b])
	assert.True(t, entry.Won(b))
	assert.False(t, entry.Won(a))

	// same inputs, same entry
	again := BuildLedgerEntry(&sub, snap, rating.DefaultCalculator(), now)
	assert.Equal(t, entry, again)
}

func TestBuildLedgerEntryDoublesGuest(t *testing.T) {
	group := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sub := doubles(group,
		[2]models.Participant{player(ids[0]), guest("g")},
		[2]models.Participant{player(ids[1]), player(ids[2])},
		models.SideTeam1)
	require.NoError(t, ValidateSubmission(&sub))

	snap := Snapshot{}
	for _, id := range ids {
		snap[id] = models.PlayerRatings{
			Singles: models.NewPlayerRatingState(),
			Doubles: models.NewPlayerRatingState(),
		}
	}
	entry := BuildLedgerEntry(&sub, snap, rating.DefaultCalculator(), time.Now())

	require.Len(t, entry.Deltas, 3)
	assert.Equal(t, 25, entry.Deltas[ids[0]].Change)
	assert.Equal(t, -25, entry.Deltas[ids[1]].Change)
	assert.Equal(t, -25, entry.Deltas[ids[2]].Change)
	assert.Equal(t, ids, entry.RatedPlayers())
}
