package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond))

	ok, err := c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(25 * time.Millisecond)

	_, err = c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err = c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))
	require.NoError(t, c.Delete(ctx, "k1"))

	_, err := c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting a missing key is not an error.
	assert.NoError(t, c.Delete(ctx, "never-set"))
}

func TestMemoryCacheGetReturnsCopy(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), again, "mutating a returned value must not affect the cache")
}
