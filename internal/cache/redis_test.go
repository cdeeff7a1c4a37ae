package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a local redis for the round trip; skipped otherwise.
func TestPublishAndPop(t *testing.T) {
	rdb, err := Connect("localhost:6379", 0)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	queue := "test_events_" + uuid.NewString()
	defer rdb.Del(context.Background(), queue)

	player := uuid.New()
	ev := models.LedgerEvent{
		Type: models.EventMatchRecorded,
		Entry: models.LedgerEntry{
			MatchID: uuid.New(),
			GroupID: uuid.New(),
			Mode:    models.ModeSingles,
			Deltas:  map[uuid.UUID]models.RatingDelta{player: {OldRating: 1200, NewRating: 1216, Change: 16}},
		},
		At: time.Now().UnixMilli(),
	}
	require.NoError(t, NewQueuePublisher(rdb, queue).Publish(ctx, ev))

	got, err := PopEvent(ctx, rdb, queue, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev.Entry.MatchID, got.Entry.MatchID)
	assert.Equal(t, 16, got.Entry.Deltas[player].Change)

	got, err = PopEvent(ctx, rdb, queue, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}
