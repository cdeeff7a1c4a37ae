// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/matchledger/internal/auth"
	"github.com/jason-s-yu/matchledger/internal/cache"
	"github.com/jason-s-yu/matchledger/internal/config"
	"github.com/jason-s-yu/matchledger/internal/database"
	"github.com/jason-s-yu/matchledger/internal/handlers"
	"github.com/jason-s-yu/matchledger/internal/kv"
	"github.com/jason-s-yu/matchledger/internal/ledger"
	"github.com/jason-s-yu/matchledger/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.AuthPrivateKeyPath != "" {
		err = auth.InitFromPath(cfg.AuthPrivateKeyPath, cfg.AuthPublicKeyPath, cfg.TokenExpire)
	} else {
		err = auth.Init(cfg.TokenExpire)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, rdb, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer store.Close()

	opts := []ledger.Option{
		ledger.WithCalculator(cfg.Calculator()),
		ledger.WithLogger(logger),
	}
	if cfg.EventsQueue != "" {
		if rdb == nil {
			rdb, err = cache.Connect(cfg.Redis.Addr, cfg.Redis.DB)
			if err != nil {
				logger.Fatalf("events queue: %v", err)
			}
			defer rdb.Close()
		}
		opts = append(opts, ledger.WithPublisher(cache.NewQueuePublisher(rdb, cfg.EventsQueue)))
	}
	engine := ledger.NewEngine(store, opts...)

	// finish anything a previous process left half done before taking traffic
	n, err := engine.Recover(ctx)
	if err != nil {
		logger.Fatalf("recover: %v", err)
	}
	if n > 0 {
		logger.Warnf("recovered %d interrupted match operations", n)
	}

	mux := http.NewServeMux()
	handlers.NewMatchServer(engine).Register(mux, middleware.LogMiddleware(logger))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s (store=%s)", srv.Addr, cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}

// openStore opens the configured backend. The redis client is returned so the
// event publisher can share it; the store owns and closes it.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, *redis.Client, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := cache.Connect(cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(rdb, cfg.Redis.Namespace), rdb, nil
	case config.BackendPostgres:
		pool, err := database.ConnectDB(ctx, cfg.Postgres.ConnString())
		if err != nil {
			return nil, nil, err
		}
		store := kv.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.BackendBolt:
		store, err := kv.OpenBoltStore(cfg.BoltPath)
		return store, nil, err
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
