package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo/resource"
)

func TestLRUBasics(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(1024, nil)

	key := Key{Path: "a.lgsnap", Offset: 0}

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, []byte("hello"))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, nil)

	c.Set(ctx, Key{Path: "a", Offset: 0}, []byte("aaaa"))
	c.Set(ctx, Key{Path: "a", Offset: 1}, []byte("bbbb"))

	// Touch block 0 so block 1 is the eviction victim.
	_, ok := c.Get(ctx, Key{Path: "a", Offset: 0})
	require.True(t, ok)

	c.Set(ctx, Key{Path: "a", Offset: 2}, []byte("cccc"))

	_, ok = c.Get(ctx, Key{Path: "a", Offset: 0})
	assert.True(t, ok)

	_, ok = c.Get(ctx, Key{Path: "a", Offset: 1})
	assert.False(t, ok)

	_, ok = c.Get(ctx, Key{Path: "a", Offset: 2})
	assert.True(t, ok)
}

func TestLRUOversizedBlockSkipped(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(4, nil)

	c.Set(ctx, Key{Path: "a", Offset: 0}, []byte("toolarge"))

	_, ok := c.Get(ctx, Key{Path: "a", Offset: 0})
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Size())
}

func TestLRUUpdateExisting(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(1024, nil)

	key := Key{Path: "a", Offset: 0}
	c.Set(ctx, key, []byte("short"))
	c.Set(ctx, key, []byte("considerably longer value"))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("considerably longer value"), got)
	assert.Equal(t, int64(len("considerably longer value")), c.Size())
}

func TestLRUInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(1024, nil)

	c.Set(ctx, Key{Path: "a", Offset: 0}, []byte("x"))
	c.Set(ctx, Key{Path: "a", Offset: 1}, []byte("y"))
	c.Set(ctx, Key{Path: "b", Offset: 0}, []byte("z"))

	c.Invalidate(func(key Key) bool {
		return key.Path == "a"
	})

	_, ok := c.Get(ctx, Key{Path: "a", Offset: 0})
	assert.False(t, ok)

	_, ok = c.Get(ctx, Key{Path: "b", Offset: 0})
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Size())
}

func TestLRUResourceAccounting(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 8})
	c := NewLRU(1024, rc)

	c.Set(ctx, Key{Path: "a", Offset: 0}, []byte("12345678"))
	assert.Equal(t, int64(8), rc.MemoryUsage())

	// The budget is exhausted, so the next block is dropped silently.
	c.Set(ctx, Key{Path: "a", Offset: 1}, []byte("x"))

	_, ok := c.Get(ctx, Key{Path: "a", Offset: 1})
	assert.False(t, ok)

	// Eviction must return bytes to the controller.
	require.NoError(t, c.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}
