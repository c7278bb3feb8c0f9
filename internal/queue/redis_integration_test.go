//go:build integration

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisClient connects to REDIS_URL and skips the test when it is unset.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisLocker_ReleaseKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	rdb := redisClient(t)
	l := NewRedisLocker(rdb)
	key := "test:lock:" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(ctx, key) })

	stale, ok, err := l.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)
	fresh, ok, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, key, stale))
	held, err := rdb.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, fresh, held)

	require.NoError(t, l.Release(ctx, key, fresh))
	assert.Zero(t, rdb.Exists(ctx, key).Val())
}

func TestRedisQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	rdb := redisClient(t)
	q := NewRedisQueue(rdb, "test:jobs:"+uuid.NewString())

	first := NewJob(uuid.New(), uuid.New())
	second := NewJob(uuid.New(), uuid.New())
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.CampaignID, got.CampaignID)
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.CampaignID, got.CampaignID)
}
