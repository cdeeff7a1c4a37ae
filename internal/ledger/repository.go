package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/kv"
	"github.com/jason-s-yu/matchledger/internal/models"
)

const (
	matchPrefix  = "match:"
	intentPrefix = "intent:"
)

func playerKey(groupID, playerID uuid.UUID, mode models.Mode) string {
	return fmt.Sprintf("group:%s:player:%s:%s", groupID, playerID, mode)
}

func matchKey(matchID uuid.UUID) string {
	return matchPrefix + matchID.String()
}

func intentKey(matchID uuid.UUID) string {
	return intentPrefix + matchID.String()
}

// Repository is typed JSON access to player states and ledger entries.
type Repository struct {
	store kv.Store
}

func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) getJSON(ctx context.Context, key string, v any) error {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.store.Put(ctx, key, data)
}

// GetPlayerRatingState returns kv.ErrNotFound when the player has no record in the mode.
func (r *Repository) GetPlayerRatingState(ctx context.Context, groupID, playerID uuid.UUID, mode models.Mode) (models.PlayerRatingState, error) {
	var st models.PlayerRatingState
	err := r.getJSON(ctx, playerKey(groupID, playerID, mode), &st)
	return st, err
}

func (r *Repository) PutPlayerRatingState(ctx context.Context, groupID, playerID uuid.UUID, mode models.Mode, st models.PlayerRatingState) error {
	return r.putJSON(ctx, playerKey(groupID, playerID, mode), st)
}

// GetPlayerRatings reads both modes of a player.
func (r *Repository) GetPlayerRatings(ctx context.Context, groupID, playerID uuid.UUID) (models.PlayerRatings, error) {
	var out models.PlayerRatings
	var err error
	if out.Singles, err = r.GetPlayerRatingState(ctx, groupID, playerID, models.ModeSingles); err != nil {
		return out, err
	}
	out.Doubles, err = r.GetPlayerRatingState(ctx, groupID, playerID, models.ModeDoubles)
	return out, err
}

// CreatePlayer registers a player in a group with default states in both
// modes. Existing records are left untouched.
func (r *Repository) CreatePlayer(ctx context.Context, groupID, playerID uuid.UUID) error {
	for _, mode := range []models.Mode{models.ModeSingles, models.ModeDoubles} {
		_, err := r.GetPlayerRatingState(ctx, groupID, playerID, mode)
		if err == nil {
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		if err := r.PutPlayerRatingState(ctx, groupID, playerID, mode, models.NewPlayerRatingState()); err != nil {
			return err
		}
	}
	return nil
}

// GetLedgerEntry returns kv.ErrNotFound when the match does not exist.
func (r *Repository) GetLedgerEntry(ctx context.Context, matchID uuid.UUID) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	if err := r.getJSON(ctx, matchKey(matchID), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) PutLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	return r.putJSON(ctx, matchKey(e.MatchID), e)
}

func (r *Repository) DeleteLedgerEntry(ctx context.Context, matchID uuid.UUID) error {
	return r.store.Delete(ctx, matchKey(matchID))
}

// ListLedgerEntries returns a group's matches, oldest first.
func (r *Repository) ListLedgerEntries(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error) {
	raw, err := r.store.Scan(ctx, matchPrefix)
	if err != nil {
		return nil, err
	}
	var out []models.LedgerEntry
	for key, data := range raw {
		var e models.LedgerEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if e.GroupID == groupID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].MatchID.String() < out[j].MatchID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
