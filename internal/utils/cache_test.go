package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCacheRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	var out map[string]string
	hit, err := GetCache(ctx, rdb, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	gen, err := CacheGeneration(ctx, rdb, "k")
	require.NoError(t, err)
	assert.Zero(t, gen)

	stored, err := FillCache(ctx, rdb, "k", gen, map[string]string{"a": "b"}, CacheTTL)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, CacheTTL, mr.TTL("k"))

	hit, err = GetCache(ctx, rdb, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]string{"a": "b"}, out)

	require.NoError(t, InvalidateCache(ctx, rdb, "k"))
	assert.False(t, mr.Exists("k"))
	gen, err = CacheGeneration(ctx, rdb, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)
}

func TestFillCacheSkipsAfterInvalidation(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	gen, err := CacheGeneration(ctx, rdb, "k")
	require.NoError(t, err)

	// A writer invalidates between the reader's generation read and its fill
	require.NoError(t, InvalidateCache(ctx, rdb, "k"))

	stored, err := FillCache(ctx, rdb, "k", gen, "stale", CacheTTL)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("k"))

	gen, err = CacheGeneration(ctx, rdb, "k")
	require.NoError(t, err)
	stored, err = FillCache(ctx, rdb, "k", gen, "fresh", CacheTTL)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestCacheDisabled(t *testing.T) {
	ctx := context.Background()
	var out string
	hit, err := GetCache(ctx, nil, "k", &out)
	assert.NoError(t, err)
	assert.False(t, hit)
	gen, err := CacheGeneration(ctx, nil, "k")
	assert.NoError(t, err)
	assert.Zero(t, gen)
	stored, err := FillCache(ctx, nil, "k", gen, "v", CacheTTL)
	assert.NoError(t, err)
	assert.False(t, stored)
	assert.NoError(t, InvalidateCache(ctx, nil, "k"))
}

func TestCacheDropsUndecodableEntry(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("k", "{not json"))
	var out map[string]string
	hit, err := GetCache(ctx, rdb, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("k"))
}

func TestInvalidateCacheManyKeys(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "2"))
	require.NoError(t, InvalidateCache(ctx, rdb, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	assert.NoError(t, InvalidateCache(ctx, rdb))
}
