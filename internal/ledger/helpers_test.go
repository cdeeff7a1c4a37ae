package ledger

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/kv"
	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected storage failure")

// faultyStore wraps a store and fails writes on demand. Once crashed, every
// write fails, which simulates a process dying mid-operation.
type faultyStore struct {
	kv.Store

	mu         sync.Mutex
	failPut    func(key string) bool
	failDelete func(key string) bool
	crashed    bool
	crashOnHit bool
}

func (f *faultyStore) shouldFail(check func(string) bool, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crashed {
		return true
	}
	if check != nil && check(key) {
		if f.crashOnHit {
			f.crashed = true
		}
		return true
	}
	return false
}

func (f *faultyStore) Put(ctx context.Context, key string, value []byte) error {
	if f.shouldFail(f.failPut, key) {
		return errInjected
	}
	return f.Store.Put(ctx, key, value)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.shouldFail(f.failDelete, key) {
		return errInjected
	}
	return f.Store.Delete(ctx, key)
}

func (f *faultyStore) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut = nil
	f.failDelete = nil
	f.crashed = false
	f.crashOnHit = false
}

func hasPrefix(prefix string) func(string) bool {
	return func(key string) bool { return strings.HasPrefix(key, prefix) }
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestEngine(t *testing.T, store kv.Store, opts ...Option) *Engine {
	t.Helper()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	base := []Option{
		WithLogger(quietLogger()),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		}),
	}
	return NewEngine(store, append(base, opts...)...)
}

func newPlayers(t *testing.T, e *Engine, groupID uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, e.CreatePlayer(context.Background(), groupID, ids[i]))
	}
	return ids
}

func player(id uuid.UUID) models.Participant {
	return models.Participant{PlayerID: id}
}

func guest(name string) models.Participant {
	return models.Participant{GuestName: name}
}

func singles(groupID, a, b uuid.UUID, winner models.Side) models.MatchSubmission {
	return models.MatchSubmission{
		GroupID:     groupID,
		Mode:        models.ModeSingles,
		Team1:       []models.Participant{player(a)},
		Team2:       []models.Participant{player(b)},
		Winner:      winner,
		SubmittedBy: a,
	}
}

func doubles(groupID uuid.UUID, team1, team2 [2]models.Participant, winner models.Side) models.MatchSubmission {
	return models.MatchSubmission{
		GroupID: groupID,
		Mode:    models.ModeDoubles,
		Team1:   team1[:],
		Team2:   team2[:],
		Winner:  winner,
	}
}

func state(t *testing.T, e *Engine, groupID, playerID uuid.UUID, mode models.Mode) models.PlayerRatingState {
	t.Helper()
	st, err := e.Repository().GetPlayerRatingState(context.Background(), groupID, playerID, mode)
	require.NoError(t, err)
	return st
}

func countPrefix(t *testing.T, s kv.Store, prefix string) int {
	t.Helper()
	found, err := s.Scan(context.Background(), prefix)
	require.NoError(t, err)
	return len(found)
}
