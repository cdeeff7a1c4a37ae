package config

import (
	"testing"
	"time"

	"github.com/jason-s-yu/matchledger/internal/rating"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_BACKEND", "RATING_K_1V1", "RATING_SWEEP_MULTIPLIER", "TOKEN_EXPIRE_TIME", "LOG_LEVEL", "HISTORIAN_BATCH_SIZE"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, time.Duration(0), cfg.TokenExpire)
	assert.Equal(t, rating.DefaultCalculator(), cfg.Calculator())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendBolt)
	t.Setenv("BOLT_PATH", "/tmp/x.db")
	t.Setenv("RATING_K_1V1", "24")
	t.Setenv("RATING_SWEEP_MULTIPLIER", "1.5")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("HISTORIAN_FLUSH_MS", "250")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "5433")
	t.Setenv("PG_DATABASE", "ledger")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.BoltPath)
	assert.Equal(t, 24.0, cfg.Calculator().SinglesK)
	assert.Equal(t, 1.5, cfg.Calculator().SweepMultiplier)
	assert.Equal(t, 72*time.Hour, cfg.TokenExpire)
	assert.Equal(t, 250*time.Millisecond, cfg.HistorianFlushDelay)
	assert.Equal(t, "postgres://u:p@db:5433/ledger", cfg.Postgres.ConnString())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"unknown backend":  {"STORE_BACKEND", "mongo"},
		"zero k":           {"RATING_K_1V1", "0"},
		"small multiplier": {"RATING_SWEEP_MULTIPLIER", "0.5"},
		"bad expiry":       {"TOKEN_EXPIRE_TIME", "soon"},
		"bad log level":    {"LOG_LEVEL", "loud"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
