package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, QueueRedis, cfg.Queue)
	assert.Equal(t, 100, cfg.SendBatchSize)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.EqualValues(t, 25, cfg.DBMaxConns)
	assert.Empty(t, cfg.InternalToken)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("QUEUE", "inline")
	t.Setenv("SEND_BATCH_SIZE", "25")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, QueueInline, cfg.Queue)
	assert.Equal(t, 25, cfg.SendBatchSize)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}

func TestLoadConfig_RejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE", "mongo")

	_, err := LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid STORAGE")
}

func TestLoadConfig_RejectsBadFailureRate(t *testing.T) {
	t.Setenv("MAILER_FAILURE_RATE", "1.5")

	_, err := LoadConfig()
	assert.Error(t, err)
}
