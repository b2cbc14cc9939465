package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "ssot:anchor:anchor-42", AnchorKey("anchor-42"))
	assert.Equal(t, "ssot:alias:frontend:checkout", AliasKey("frontend", "checkout"))
	assert.NotEqual(t, AliasKey("a", "b:c"), AnchorKey("a:b:c"))
	assert.NotEqual(t, AliasKey("a:b", "c"), AliasKey("a", "b:c"))
	assert.NotEqual(t, AliasKey("a%3Ab", "c"), AliasKey("a:b", "c"))
	assert.Equal(t, "ssot:alias:a%3Ab:c", AliasKey("a:b", "c"))
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)
	defer func() { _ = c.Close() }()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// Mutating the returned slice must not change the cached value.
	got[0] = 'x'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again)

	require.NoError(t, c.Delete(ctx, "k", "never-set"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), 20*time.Millisecond))
	require.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "short")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_Closed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrClosed)
	assert.ErrorIs(t, c.Delete(ctx, "k"), ErrClosed)
}
