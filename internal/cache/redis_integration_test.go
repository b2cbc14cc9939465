//go:build integration

package cache

// Integration tests for RedisCache; they need a running Redis instance.
//
// Run with:
//
//	go test -tags=integration -run TestRedisCache ./internal/cache/...
//
// Override the host via REDIS_HOST env var (default: localhost).

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisHost() string {
	if h := os.Getenv("REDIS_HOST"); h != "" {
		return h
	}
	return "localhost"
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := NewRedisCache(ctx, RedisOptions{Host: redisHost(), Port: 6379, DB: 15, DefaultTTL: time.Minute}, logger)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer func() { _ = c.Close() }()

	key := AliasKey("it", uuid.NewString())

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("anchor-42"), time.Second))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "anchor-42", string(got))

	require.NoError(t, c.Delete(ctx, key))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
