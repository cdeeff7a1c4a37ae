package ledger

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/models"
)

// ValidateSubmission checks the mode-specific required fields of a match.
// It fills in SeriesType when omitted and derives the sweep flag from a
// 2-0 best-of-3 score.
func ValidateSubmission(sub *models.MatchSubmission) error {
	if sub.GroupID == uuid.Nil {
		return validationError(sub, "group_id is required")
	}
	if !sub.Mode.Valid() {
		return validationError(sub, "unknown mode %q", sub.Mode)
	}

	size := sub.Mode.TeamSize()
	if len(sub.Team1) != size || len(sub.Team2) != size {
		return validationError(sub, "mode %s needs %d participants per team, got %d and %d",
			sub.Mode, size, len(sub.Team1), len(sub.Team2))
	}

	seen := make(map[uuid.UUID]bool)
	for _, team := range [][]models.Participant{sub.Team1, sub.Team2} {
		for _, p := range team {
			if p.IsGuest() {
				if p.GuestName == "" {
					return validationError(sub, "participant without player_id or guest_name")
				}
				continue
			}
			if p.GuestName != "" {
				return validationError(sub, "participant %s is both a player and a guest", p.PlayerID)
			}
			if seen[p.PlayerID] {
				return validationError(sub, "player %s appears more than once", p.PlayerID)
			}
			seen[p.PlayerID] = true
		}
	}

	if sub.Winner != models.SideTeam1 && sub.Winner != models.SideTeam2 {
		return validationError(sub, "winner must be 1 or 2, got %d", sub.Winner)
	}

	if sub.SeriesType == "" {
		sub.SeriesType = models.SeriesBestOf1
	}
	if sub.Team1Score < 0 || sub.Team2Score < 0 {
		return validationError(sub, "scores must not be negative")
	}
	winScore, loseScore := sub.Team1Score, sub.Team2Score
	if sub.Winner == models.SideTeam2 {
		winScore, loseScore = loseScore, winScore
	}

	switch sub.SeriesType {
	case models.SeriesBestOf1:
		if (winScore != 0 || loseScore != 0) && winScore <= loseScore {
			return validationError(sub, "winning side must have the higher score, got %d-%d", winScore, loseScore)
		}
		if sub.Sweep {
			return validationError(sub, "a best-of-1 match cannot be a sweep")
		}
	case models.SeriesBestOf3:
		if winScore != 2 || loseScore > 1 {
			return validationError(sub, "best-of-3 score must be 2-0 or 2-1 for the winner, got %d-%d", winScore, loseScore)
		}
		if sub.Sweep && loseScore != 0 {
			return validationError(sub, "sweep flag set but series ended %d-%d", winScore, loseScore)
		}
		sub.Sweep = loseScore == 0
	default:
		return validationError(sub, "unknown series type %q", sub.SeriesType)
	}
	return nil
}
