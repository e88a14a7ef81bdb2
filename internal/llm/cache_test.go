package llm

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/config"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewCache(config.CacheConfig{
		Enabled: true,
		Addr:    mr.Addr(),
		TTL:     time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestCachePutGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "small", "prompt-a")
	assert.False(t, ok)

	cache.Put(ctx, "small", "prompt-a", "answer-a")
	got, ok := cache.Get(ctx, "small", "prompt-a")
	assert.True(t, ok)
	assert.Equal(t, "answer-a", got)
}

func TestCacheKeyIncludesModel(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "small", "same prompt", "from small")
	_, ok := cache.Get(ctx, "large", "same prompt")
	assert.False(t, ok, "different model must not share cache entries")
}

func TestCacheFailureIsSoft(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewCache(config.CacheConfig{Addr: mr.Addr(), TTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	mr.Close()

	ctx := context.Background()
	// A dead cache is a miss on read and a no-op on write, never a panic or error.
	_, ok := cache.Get(ctx, "small", "p")
	assert.False(t, ok)
	cache.Put(ctx, "small", "p", "v")
}

func TestCacheConnectFailure(t *testing.T) {
	_, err := NewCache(config.CacheConfig{Addr: "127.0.0.1:1", TTL: time.Minute}, zap.NewNop())
	assert.Error(t, err)
}
