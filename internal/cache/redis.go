// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/matchledger/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for ledger events.
var DefaultQueueName = "matchledger_events"

// Connect creates a Redis client and pings it.
func Connect(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// QueuePublisher pushes ledger events onto a Redis list for the historian.
type QueuePublisher struct {
	rdb   *redis.Client
	queue string
}

func NewQueuePublisher(rdb *redis.Client, queue string) *QueuePublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &QueuePublisher{rdb: rdb, queue: queue}
}

// Publish serializes the event to JSON and RPushes it.
func (p *QueuePublisher) Publish(ctx context.Context, ev models.LedgerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal LedgerEvent: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// PopEvent blocks up to timeout for the next event. It returns (nil, nil)
// when the queue stayed empty.
func PopEvent(ctx context.Context, rdb *redis.Client, queue string, timeout time.Duration) (*models.LedgerEvent, error) {
	res, err := rdb.BLPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var ev models.LedgerEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, fmt.Errorf("invalid ledger event: %w", err)
	}
	return &ev, nil
}
