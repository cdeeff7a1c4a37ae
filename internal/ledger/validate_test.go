package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSubmission(t *testing.T) {
	group := uuid.New()
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	one := func(p models.Participant) []models.Participant { return []models.Participant{p} }
	two := func(p, q models.Participant) []models.Participant { return []models.Participant{p, q} }

	tests := []struct {
		name  string
		sub   models.MatchSubmission
		valid bool
	}{
		{"singles", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Winner: models.SideTeam1}, true},
		{"doubles with guest", models.MatchSubmission{GroupID: group, Mode: models.ModeDoubles, Team1: two(player(a), player(b)), Team2: two(player(c), guest("x")), Winner: models.SideTeam2}, true},
		{"goal score", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Team1Score: 10, Team2Score: 8, Winner: models.SideTeam1}, true},
		{"bo3 2-1", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Team1Score: 1, Team2Score: 2, Winner: models.SideTeam2, SeriesType: models.SeriesBestOf3}, true},

		{"missing group", models.MatchSubmission{Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Winner: models.SideTeam1}, false},
		{"unknown mode", models.MatchSubmission{GroupID: group, Mode: "3v3", Team1: one(player(a)), Team2: one(player(b)), Winner: models.SideTeam1}, false},
		{"doubles short a player", models.MatchSubmission{GroupID: group, Mode: models.ModeDoubles, Team1: two(player(a), player(b)), Team2: one(player(c)), Winner: models.SideTeam1}, false},
		{"singles with four", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: two(player(a), player(b)), Team2: two(player(c), player(d)), Winner: models.SideTeam1}, false},
		{"empty slot", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(models.Participant{}), Team2: one(player(b)), Winner: models.SideTeam1}, false},
		{"player and guest", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(models.Participant{PlayerID: a, GuestName: "a"}), Team2: one(player(b)), Winner: models.SideTeam1}, false},
		{"duplicate player", models.MatchSubmission{GroupID: group, Mode: models.ModeDoubles, Team1: two(player(a), player(b)), Team2: two(player(a), player(c)), Winner: models.SideTeam1}, false},
		{"no winner", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b))}, false},
		{"winner out of range", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Winner: 3}, false},
		{"winner has lower score", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Team1Score: 5, Team2Score: 10, Winner: models.SideTeam1}, false},
		{"negative score", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Team1Score: -1, Winner: models.SideTeam2}, false},
		{"bo1 sweep", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Winner: models.SideTeam1, Sweep: true}, false},
		{"bo3 impossible score", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Team1Score: 3, Team2Score: 0, Winner: models.SideTeam1, SeriesType: models.SeriesBestOf3}, false},
		{"bo3 sweep flag on 2-1", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Team1Score: 2, Team2Score: 1, Winner: models.SideTeam1, SeriesType: models.SeriesBestOf3, Sweep: true}, false},
		{"unknown series", models.MatchSubmission{GroupID: group, Mode: models.ModeSingles, Team1: one(player(a)), Team2: one(player(b)), Winner: models.SideTeam1, SeriesType: "bo5"}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sub := test.sub
			err := ValidateSubmission(&sub)
			if test.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateSubmissionDerivesSweep(t *testing.T) {
	sub := singles(uuid.New(), uuid.New(), uuid.New(), models.SideTeam2)
	sub.SeriesType = models.SeriesBestOf3
	sub.Team1Score, sub.Team2Score = 0, 2

	require.NoError(t, ValidateSubmission(&sub))
	assert.True(t, sub.Sweep)

	sub = singles(uuid.New(), uuid.New(), uuid.New(), models.SideTeam1)
	require.NoError(t, ValidateSubmission(&sub))
	assert.Equal(t, models.SeriesBestOf1, sub.SeriesType)
	assert.False(t, sub.Sweep)
}
