package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheKey(t *testing.T) {
	c := NewRedisCache(nil, "yatube")
	assert.Equal(t, "yatube:page:anon:/", c.key("page:anon:/"))

	// Un préfixe déjà terminé par ":" n'est pas doublé
	assert.Equal(t, "yatube:page:anon:/", NewRedisCache(nil, "yatube:").key("page:anon:/"))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	c := NewRedisCache(client, fmt.Sprintf("test:%d", time.Now().UnixNano()))

	_, ok, err := c.Get(ctx, "/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "/", []byte("page"), 2*time.Second))
	got, ok, err := c.Get(ctx, "/")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("page"), got)

	ttl, err := client.TTL(ctx, c.key("/")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
