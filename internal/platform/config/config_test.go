package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "medrecords", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 168*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 30*time.Minute, cfg.PostgresConnMaxLifetime)
	assert.Equal(t, "records:audit", cfg.AuditStream)
	assert.False(t, cfg.TokenAuthEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("AUDIT_DEDUP_CACHE_SIZE", "16")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 16, cfg.AuditDedupCache)
	assert.True(t, cfg.TokenAuthEnabled())
}

func TestLoadRejectsInvalidWorkerSettings(t *testing.T) {
	t.Run("poll interval", func(t *testing.T) {
		t.Setenv("OUTBOX_POLL_INTERVAL", "0s")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OUTBOX_POLL_INTERVAL")
	})
	t.Run("batch size", func(t *testing.T) {
		t.Setenv("OUTBOX_BATCH_SIZE", "-1")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OUTBOX_BATCH_SIZE")
	})
	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("IDEMPOTENCY_TTL", "forever")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Config{LogLevel: raw}.SlogLevel(), "level %q", raw)
	}
}
