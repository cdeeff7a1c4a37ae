// Package ledger applies match results to player ratings and reverses them
// exactly when a match is deleted.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/kv"
	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/jason-s-yu/matchledger/internal/rating"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Publisher receives ledger events after an operation succeeded.
type Publisher interface {
	Publish(ctx context.Context, ev models.LedgerEvent) error
}

// Engine records and deletes matches. Updates touching the same player are
// serialized; every apply and reverse is guarded by a write-ahead intent.
type Engine struct {
	repo      *Repository
	calc      rating.Calculator
	locks     *Locker
	publisher Publisher
	log       logrus.FieldLogger
	now       func() time.Time
}

type Option func(*Engine)

func WithCalculator(c rating.Calculator) Option {
	return func(e *Engine) { e.calc = c }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store kv.Store, opts ...Option) *Engine {
	e := &Engine{
		repo:  NewRepository(store),
		calc:  rating.DefaultCalculator(),
		locks: NewLocker(),
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Repository exposes the typed store the engine writes through.
func (e *Engine) Repository() *Repository {
	return e.repo
}

// RecordResult is what RecordMatch returns. Stats are already applied and the
// entry persisted.
type RecordResult struct {
	Entry  *models.LedgerEntry               `json:"entry"`
	Deltas map[uuid.UUID]models.RatingDelta `json:"deltas"`
}

func playerLockKey(groupID, playerID uuid.UUID) string {
	return fmt.Sprintf("group:%s:player:%s", groupID, playerID)
}

func lockKeys(groupID, matchID uuid.UUID, players []uuid.UUID) []string {
	keys := make([]string, 0, len(players)+1)
	keys = append(keys, matchKey(matchID))
	for _, id := range players {
		keys = append(keys, playerLockKey(groupID, id))
	}
	return keys
}

// RecordMatch validates the submission, computes deltas from a snapshot of
// every rated participant, applies them and persists the ledger entry.
// Either all of it happens or none of it is visible.
func (e *Engine) RecordMatch(ctx context.Context, sub models.MatchSubmission) (*RecordResult, error) {
	if err := ValidateSubmission(&sub); err != nil {
		return nil, err
	}
	if sub.MatchID == uuid.Nil {
		sub.MatchID = uuid.New()
	}
	fail := func(kind error, err error) error {
		return &MatchError{Op: "record", MatchID: sub.MatchID, GroupID: sub.GroupID, Mode: sub.Mode, Kind: kind, Err: err}
	}

	players := sub.RatedPlayers()
	unlock, err := e.lockResolved(ctx, sub.GroupID, sub.MatchID, players)
	if err != nil {
		return nil, fail(ErrStorageFailure, err)
	}
	defer unlock()

	_, err = e.repo.GetLedgerEntry(ctx, sub.MatchID)
	switch {
	case err == nil:
		return nil, fail(ErrValidation, errors.New("match already recorded"))
	case !errors.Is(err, kv.ErrNotFound):
		return nil, fail(ErrStorageFailure, err)
	}

	modes := []models.Mode{models.ModeSingles}
	if sub.Mode == models.ModeDoubles {
		// doubles K-factor uses combined experience
		modes = append(modes, models.ModeDoubles)
	}
	snap, err := e.snapshot(ctx, "record", sub.GroupID, sub.MatchID, players, modes...)
	if err != nil {
		return nil, err
	}

	entry := BuildLedgerEntry(&sub, snap, e.calc, e.now())
	in := newIntent(opApply, entry, e.now())
	for id, d := range entry.Deltas {
		key := playerKey(entry.GroupID, id, entry.Mode)
		before := snap[id].Mode(entry.Mode)
		in.Before[key] = before
		in.After[key] = ApplyDelta(before, d, entry.Won(id))
	}

	err = e.commit(ctx, in, func(ctx context.Context) error {
		return e.repo.PutLedgerEntry(ctx, entry)
	})
	if err != nil {
		return nil, fail(ErrStorageFailure, err)
	}

	e.logDeltas(entry, "match recorded")
	e.publish(ctx, models.EventMatchRecorded, entry)
	return &RecordResult{Entry: entry, Deltas: entry.Deltas}, nil
}

// DeleteMatch reverses every rated participant's stats to the ratings frozen
// in the entry, then removes the entry. The requester must have played in the
// match or submitted it.
func (e *Engine) DeleteMatch(ctx context.Context, matchID, requesterID uuid.UUID) error {
	fail := func(entry *models.LedgerEntry, kind error, err error) error {
		me := &MatchError{Op: "delete", MatchID: matchID, PlayerID: requesterID, Kind: kind, Err: err}
		if entry != nil {
			me.GroupID = entry.GroupID
			me.Mode = entry.Mode
		}
		return me
	}
	load := func() (*models.LedgerEntry, error) {
		entry, err := e.repo.GetLedgerEntry(ctx, matchID)
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fail(nil, ErrLedgerEntryNotFound, nil)
		}
		if err != nil {
			return nil, fail(nil, ErrStorageFailure, err)
		}
		return entry, nil
	}

	if _, err := e.recoverMatch(ctx, matchID); err != nil {
		return fail(nil, ErrStorageFailure, err)
	}

	// the participant set is immutable, so it is safe to read it unlocked
	entry, err := load()
	if err != nil {
		return err
	}
	unlock, err := e.lockResolved(ctx, entry.GroupID, matchID, entry.RatedPlayers())
	if err != nil {
		return fail(entry, ErrStorageFailure, err)
	}
	defer unlock()

	// a concurrent delete may have won the race
	if entry, err = load(); err != nil {
		return err
	}
	if !canModify(entry, requesterID) {
		return fail(entry, ErrForbidden, nil)
	}

	players := make([]uuid.UUID, 0, len(entry.Deltas))
	for id := range entry.Deltas {
		players = append(players, id)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].String() < players[j].String() })

	snap, err := e.snapshot(ctx, "delete", entry.GroupID, matchID, players, entry.Mode)
	if err != nil {
		return err
	}

	in := newIntent(opReverse, entry, e.now())
	for _, id := range players {
		key := playerKey(entry.GroupID, id, entry.Mode)
		current := snap[id].Mode(entry.Mode)
		in.Before[key] = current
		in.After[key] = ReverseDelta(current, entry.Deltas[id], entry.Won(id))
	}

	err = e.commit(ctx, in, func(ctx context.Context) error {
		return e.repo.DeleteLedgerEntry(ctx, matchID)
	})
	if err != nil {
		return fail(entry, ErrStorageFailure, err)
	}

	e.logDeltas(entry, "match deleted")
	e.publish(ctx, models.EventMatchDeleted, entry)
	return nil
}

func canModify(entry *models.LedgerEntry, requesterID uuid.UUID) bool {
	if requesterID == uuid.Nil {
		return false
	}
	if entry.CreatedBy == requesterID {
		return true
	}
	_, played := entry.SideOf(requesterID)
	return played
}

// snapshot reads the state of every player in the given modes concurrently.
// All reads complete before any write of the calling operation.
func (e *Engine) snapshot(ctx context.Context, op string, groupID, matchID uuid.UUID, players []uuid.UUID, modes ...models.Mode) (Snapshot, error) {
	var mu sync.Mutex
	snap := make(Snapshot, len(players))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range players {
		g.Go(func() error {
			var r models.PlayerRatings
			for _, mode := range modes {
				st, err := e.repo.GetPlayerRatingState(gctx, groupID, id, mode)
				if err != nil {
					kind := ErrStorageFailure
					if errors.Is(err, kv.ErrNotFound) {
						kind = ErrParticipantNotFound
					}
					return &MatchError{Op: op, MatchID: matchID, GroupID: groupID, PlayerID: id, Mode: mode, Kind: kind, Err: err}
				}
				if mode == models.ModeDoubles {
					r.Doubles = st
				} else {
					r.Singles = st
				}
			}
			mu.Lock()
			snap[id] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (e *Engine) logDeltas(entry *models.LedgerEntry, msg string) {
	for id, d := range entry.Deltas {
		e.log.WithFields(logrus.Fields{
			"match_id":   entry.MatchID,
			"group_id":   entry.GroupID,
			"mode":       entry.Mode,
			"player_id":  id,
			"old_rating": d.OldRating,
			"new_rating": d.NewRating,
			"change":     d.Change,
		}).Debug(msg)
	}
	e.log.WithFields(logrus.Fields{
		"match_id": entry.MatchID,
		"group_id": entry.GroupID,
		"mode":     entry.Mode,
		"sweep":    entry.Sweep,
	}).Info(msg)
}

// publish never fails the operation; the ledger entry is the source of truth.
func (e *Engine) publish(ctx context.Context, typ string, entry *models.LedgerEntry) {
	if e.publisher == nil {
		return
	}
	ev := models.LedgerEvent{Type: typ, Entry: *entry, At: e.now().UnixMilli()}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.WithError(err).WithField("match_id", entry.MatchID).Warn("failed to publish ledger event")
	}
}

// CreatePlayer registers a player in a group at the default rating.
func (e *Engine) CreatePlayer(ctx context.Context, groupID, playerID uuid.UUID) error {
	unlock := e.locks.Lock(playerLockKey(groupID, playerID))
	defer unlock()
	if err := e.repo.CreatePlayer(ctx, groupID, playerID); err != nil {
		return &MatchError{Op: "create_player", GroupID: groupID, PlayerID: playerID, Kind: ErrStorageFailure, Err: err}
	}
	return nil
}

// PlayerRatings returns a player's current state in both modes.
func (e *Engine) PlayerRatings(ctx context.Context, groupID, playerID uuid.UUID) (models.PlayerRatings, error) {
	r, err := e.repo.GetPlayerRatings(ctx, groupID, playerID)
	if err != nil {
		kind := ErrStorageFailure
		if errors.Is(err, kv.ErrNotFound) {
			kind = ErrParticipantNotFound
		}
		return r, &MatchError{Op: "ratings", GroupID: groupID, PlayerID: playerID, Kind: kind, Err: err}
	}
	return r, nil
}

// Matches lists a group's ledger, oldest first.
func (e *Engine) Matches(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error) {
	entries, err := e.repo.ListLedgerEntries(ctx, groupID)
	if err != nil {
		return nil, &MatchError{Op: "list", GroupID: groupID, Kind: ErrStorageFailure, Err: err}
	}
	return entries, nil
}
