package ratelimit

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

func TestConsume_NilClientAllows(t *testing.T) {
	l := New(nil, "")
	res, err := l.Consume(context.Background(), "payments", "user-1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestConsume_BlocksAfterLimit(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	l := New(client, "sewago:test:rate_limit")
	subject := uuid.NewString()

	for i := 1; i <= 3; i++ {
		res, err := l.Consume(ctx, "payments", subject, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "hit %d should be allowed", i)
		assert.Equal(t, i, res.Count)
	}

	res, err := l.Consume(ctx, "payments", subject, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.GreaterOrEqual(t, res.RetryAfter, 1)
}
