// cmd/historian is an asynchronous historian service that pops ledger events
// from a Redis queue and persists per-player rating history to PostgreSQL.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/matchledger/internal/cache"
	"github.com/jason-s-yu/matchledger/internal/config"
	"github.com/jason-s-yu/matchledger/internal/database"
	"github.com/jason-s-yu/matchledger/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.Postgres.ConnString())
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureHistorySchema(ctx, pool); err != nil {
		logger.Fatalf("schema: %v", err)
	}

	rdb, err := cache.Connect(cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	queue := cfg.EventsQueue
	if queue == "" {
		queue = cache.DefaultQueueName
	}

	h := NewHistorian(
		func(ctx context.Context, timeout time.Duration) (*models.LedgerEvent, error) {
			return cache.PopEvent(ctx, rdb, queue, timeout)
		},
		func(ctx context.Context, events []models.LedgerEvent) error {
			return database.InsertRatingHistory(ctx, pool, events)
		},
		cfg.HistorianBatchSize,
		cfg.HistorianFlushDelay,
		logger.WithField("queue", queue),
	)

	logger.Info("matchledger-historian service started.")
	h.Run(ctx)
	logger.Info("matchledger-historian shutting down.")
}
