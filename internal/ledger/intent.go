package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/kv"
	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	opApply   = "apply"
	opReverse = "reverse"
)

// intent is written before the first player record of an apply or reverse
// and removed after the ledger entry write. A leftover intent means the
// operation was interrupted; Before and After are keyed by player store key.
type intent struct {
	Op        string                              `json:"op"`
	MatchID   uuid.UUID                           `json:"match_id"`
	GroupID   uuid.UUID                           `json:"group_id"`
	Players   []uuid.UUID                         `json:"players"`
	Entry     *models.LedgerEntry                 `json:"entry"`
	Before    map[string]models.PlayerRatingState `json:"before"`
	After     map[string]models.PlayerRatingState `json:"after"`
	CreatedAt time.Time                           `json:"created_at"`
}

func newIntent(op string, entry *models.LedgerEntry, now time.Time) *intent {
	return &intent{
		Op:        op,
		MatchID:   entry.MatchID,
		GroupID:   entry.GroupID,
		Players:   entry.RatedPlayers(),
		Entry:     entry,
		Before:    make(map[string]models.PlayerRatingState),
		After:     make(map[string]models.PlayerRatingState),
		CreatedAt: now.UTC(),
	}
}

func (in *intent) keys() []string {
	keys := make([]string, 0, len(in.After))
	for k := range in.After {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// committed reports whether the ledger write of the intent happened, given
// whether the entry currently exists.
func (in *intent) committed(entryExists bool) bool {
	if in.Op == opApply {
		return entryExists
	}
	return !entryExists
}

// maxResolveRounds bounds how often lockResolved retries after resolving
// leftover intents.
const maxResolveRounds = 3

// commit writes the intent, every After state, then runs finish (the ledger
// put or delete) and clears the intent. Any failure, including a failed
// clear, rolls the whole operation back.
func (e *Engine) commit(ctx context.Context, in *intent, finish func(context.Context) error) error {
	if err := e.repo.putJSON(ctx, intentKey(in.MatchID), in); err != nil {
		return fmt.Errorf("write intent: %w", err)
	}
	for _, key := range in.keys() {
		if err := e.repo.putJSON(ctx, key, in.After[key]); err != nil {
			return e.abort(ctx, in, fmt.Errorf("write %s: %w", key, err))
		}
	}
	if err := finish(ctx); err != nil {
		return e.abort(ctx, in, err)
	}
	if err := e.clearIntent(ctx, in.MatchID); err != nil {
		return e.abort(ctx, in, err)
	}
	return nil
}

func (e *Engine) abort(ctx context.Context, in *intent, cause error) error {
	// roll back even if the caller's context is done
	ctx = context.WithoutCancel(ctx)
	if err := e.rollback(ctx, in); err != nil {
		e.log.WithFields(logrus.Fields{
			"match_id": in.MatchID,
			"group_id": in.GroupID,
			"op":       in.Op,
		}).WithError(err).Error("rollback failed, intent kept for recovery")
		return fmt.Errorf("%w (rollback failed, pending recovery: %v)", cause, err)
	}
	e.log.WithFields(logrus.Fields{
		"match_id": in.MatchID,
		"op":       in.Op,
	}).WithError(cause).Warn("rolled back")
	return cause
}

// rollback restores every Before state and the ledger entry's prior presence,
// then clears the intent.
func (e *Engine) rollback(ctx context.Context, in *intent) error {
	for _, key := range in.keys() {
		if err := e.moveKey(ctx, in, key, in.After[key], in.Before[key]); err != nil {
			return err
		}
	}
	switch in.Op {
	case opApply:
		if err := e.repo.DeleteLedgerEntry(ctx, in.MatchID); err != nil && !errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("remove partial entry: %w", err)
		}
	case opReverse:
		if err := e.repo.PutLedgerEntry(ctx, in.Entry); err != nil {
			return fmt.Errorf("restore entry: %w", err)
		}
	}
	return e.clearIntent(ctx, in.MatchID)
}

// rollForward finishes an intent whose ledger write already happened.
func (e *Engine) rollForward(ctx context.Context, in *intent) error {
	for _, key := range in.keys() {
		if err := e.moveKey(ctx, in, key, in.Before[key], in.After[key]); err != nil {
			return err
		}
	}
	return e.clearIntent(ctx, in.MatchID)
}

// moveKey writes to only while the key still holds from. A key already at to
// is left alone. Any other value was written by a later operation and is kept.
func (e *Engine) moveKey(ctx context.Context, in *intent, key string, from, to models.PlayerRatingState) error {
	var cur models.PlayerRatingState
	err := e.repo.getJSON(ctx, key, &cur)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read %s: %w", key, err)
	case cur == to:
		return nil
	case cur != from:
		e.log.WithFields(logrus.Fields{
			"match_id": in.MatchID,
			"op":       in.Op,
			"key":      key,
		}).Warn("player state changed since intent, keeping it")
		return nil
	}
	if err := e.repo.putJSON(ctx, key, to); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (e *Engine) clearIntent(ctx context.Context, matchID uuid.UUID) error {
	if err := e.repo.store.Delete(ctx, intentKey(matchID)); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("clear intent: %w", err)
	}
	return nil
}

func (e *Engine) loadIntent(ctx context.Context, matchID uuid.UUID) (*intent, error) {
	var in intent
	if err := e.repo.getJSON(ctx, intentKey(matchID), &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// pendingIntents returns the match ids of leftover intents for matchID or for
// any of the players in the group.
func (e *Engine) pendingIntents(ctx context.Context, groupID, matchID uuid.UUID, players []uuid.UUID) ([]uuid.UUID, error) {
	raw, err := e.repo.store.Scan(ctx, intentPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan intents: %w", err)
	}
	want := make(map[uuid.UUID]bool, len(players))
	for _, id := range players {
		want[id] = true
	}

	var pending []uuid.UUID
	for key, data := range raw {
		var in intent
		if err := json.Unmarshal(data, &in); err != nil {
			e.log.WithField("key", key).Warn("skipping malformed intent")
			continue
		}
		if in.MatchID == matchID {
			pending = append(pending, in.MatchID)
			continue
		}
		if in.GroupID != groupID {
			continue
		}
		for _, id := range in.Players {
			if want[id] {
				pending = append(pending, in.MatchID)
				break
			}
		}
	}
	return pending, nil
}

// lockResolved takes the locks of a match and its players once no leftover
// intent touches them. Intents are only written under those same locks, so
// the set stays empty for as long as the locks are held.
func (e *Engine) lockResolved(ctx context.Context, groupID, matchID uuid.UUID, players []uuid.UUID) (func(), error) {
	for round := 0; ; round++ {
		unlock := e.locks.Lock(lockKeys(groupID, matchID, players)...)
		pending, err := e.pendingIntents(ctx, groupID, matchID, players)
		if err != nil {
			unlock()
			return nil, err
		}
		if len(pending) == 0 {
			return unlock, nil
		}
		unlock()

		if round == maxResolveRounds {
			return nil, fmt.Errorf("%d intents still pending for match %s", len(pending), matchID)
		}
		for _, id := range pending {
			if _, err := e.recoverMatch(ctx, id); err != nil {
				return nil, fmt.Errorf("resolve intent %s: %w", id, err)
			}
		}
	}
}

// recoverMatch resolves a leftover intent for one match, if any.
func (e *Engine) recoverMatch(ctx context.Context, matchID uuid.UUID) (bool, error) {
	in, err := e.loadIntent(ctx, matchID)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	unlock := e.locks.Lock(lockKeys(in.GroupID, matchID, in.Players)...)
	defer unlock()

	// another caller may have resolved it while we waited
	in, err = e.loadIntent(ctx, matchID)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = e.repo.GetLedgerEntry(ctx, matchID)
	exists := err == nil
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return false, err
	}

	fields := logrus.Fields{"match_id": matchID, "group_id": in.GroupID, "op": in.Op}
	if in.committed(exists) {
		e.log.WithFields(fields).Info("recovering interrupted operation forward")
		return true, e.rollForward(ctx, in)
	}
	e.log.WithFields(fields).Info("rolling back interrupted operation")
	return true, e.rollback(ctx, in)
}

// Recover resolves every leftover intent in the store and returns how many
// were resolved. Call it at startup.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	raw, err := e.repo.store.Scan(ctx, intentPrefix)
	if err != nil {
		return 0, fmt.Errorf("scan intents: %w", err)
	}
	n := 0
	for key := range raw {
		matchID, err := uuid.Parse(strings.TrimPrefix(key, intentPrefix))
		if err != nil {
			e.log.WithField("key", key).Warn("skipping malformed intent key")
			continue
		}
		ok, err := e.recoverMatch(ctx, matchID)
		if err != nil {
			return n, fmt.Errorf("recover match %s: %w", matchID, err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}
