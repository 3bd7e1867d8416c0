package distcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo/align"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/store"
)

func newTestCache(t *testing.T, optFns ...func(o *Options)) (*Cache, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()

	return New(st, align.Cartesian, optFns...), st
}

func TestCacheGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	a := model.Minimum{ID: 1, Coords: []float64{0, 0}}
	b := model.Minimum{ID: 2, Coords: []float64{3, 4}}

	t.Run("ComputesOnMiss", func(t *testing.T) {
		d, err := c.GetOrCompute(ctx, a, b)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, d, 1e-12)
		assert.Equal(t, 1, c.PendingCount())
	})

	t.Run("HitSkipsCompute", func(t *testing.T) {
		d, err := c.GetOrCompute(ctx, b, a)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, d, 1e-12)
		assert.Equal(t, 1, c.PendingCount())
	})

	t.Run("OrderInsensitive", func(t *testing.T) {
		d, ok := c.Get(core.MakePair(2, 1))
		assert.True(t, ok)
		assert.InDelta(t, 5.0, d, 1e-12)
	})
}

func TestCacheFlushPending(t *testing.T) {
	ctx := context.Background()

	t.Run("BelowThresholdIsNoop", func(t *testing.T) {
		c, st := newTestCache(t, func(o *Options) { o.MaxPending = 3 })

		c.Record(core.MakePair(1, 2), 1.0)
		c.Record(core.MakePair(1, 3), 2.0)

		n, err := c.FlushPending(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 2, c.PendingCount())

		persisted := 0
		for _, err := range st.Distances(ctx) {
			require.NoError(t, err)
			persisted++
		}

		assert.Zero(t, persisted)
	})

	t.Run("ThresholdTriggersWrite", func(t *testing.T) {
		c, st := newTestCache(t, func(o *Options) { o.MaxPending = 3 })

		c.Record(core.MakePair(1, 2), 1.0)
		c.Record(core.MakePair(1, 3), 2.0)
		c.Record(core.MakePair(2, 3), 3.0)

		n, err := c.FlushPending(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Zero(t, c.PendingCount())

		persisted := 0
		for _, err := range st.Distances(ctx) {
			require.NoError(t, err)
			persisted++
		}

		assert.Equal(t, 3, persisted)
	})

	t.Run("ForceFlushesBelowThreshold", func(t *testing.T) {
		c, _ := newTestCache(t)

		c.Record(core.MakePair(1, 2), 1.0)

		n, err := c.FlushPending(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Zero(t, c.PendingCount())
	})

	t.Run("FailureRestoresQueue", func(t *testing.T) {
		st := store.NewMemoryStore()
		require.NoError(t, st.Close())

		c := New(st, align.Cartesian)
		c.Record(core.MakePair(1, 2), 1.0)

		_, err := c.FlushPending(ctx, true)
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrClosed))
		assert.Equal(t, 1, c.PendingCount())
	})
}

func TestCacheWarm(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	require.NoError(t, st.BulkWriteDistances(ctx, []model.DistanceEntry{
		{Pair: core.MakePair(1, 2), Dist: 1.5},
		{Pair: core.MakePair(2, 3), Dist: 2.5},
	}))

	c := New(st, align.Cartesian)

	loaded, err := c.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 2, c.Len())
	assert.Zero(t, c.PendingCount())

	d, ok := c.Get(core.MakePair(1, 2))
	assert.True(t, ok)
	assert.InDelta(t, 1.5, d, 1e-12)
}

func TestCacheRepoint(t *testing.T) {
	t.Run("RewritesToSurvivor", func(t *testing.T) {
		c, _ := newTestCache(t)

		c.Record(core.MakePair(3, 5), 7.0)
		c.Repoint(2, 3)

		_, ok := c.Get(core.MakePair(3, 5))
		assert.False(t, ok)

		d, ok := c.Get(core.MakePair(2, 5))
		assert.True(t, ok)
		assert.InDelta(t, 7.0, d, 1e-12)
	})

	t.Run("ExistingEntryWins", func(t *testing.T) {
		c, _ := newTestCache(t)

		c.Record(core.MakePair(2, 5), 1.0)
		c.Record(core.MakePair(3, 5), 7.0)
		c.Repoint(2, 3)

		d, ok := c.Get(core.MakePair(2, 5))
		assert.True(t, ok)
		assert.InDelta(t, 1.0, d, 1e-12)
	})

	t.Run("DropsSelfPair", func(t *testing.T) {
		c, _ := newTestCache(t)

		c.Record(core.MakePair(2, 3), 4.0)
		c.Repoint(2, 3)

		assert.Zero(t, c.Len())
		assert.Zero(t, c.PendingCount())
	})

	t.Run("RewritesPendingQueue", func(t *testing.T) {
		ctx := context.Background()
		c, st := newTestCache(t)

		c.Record(core.MakePair(3, 5), 7.0)
		c.Repoint(2, 3)

		n, err := c.FlushPending(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got := make(map[core.Pair]float64)
		for e, err := range st.Distances(ctx) {
			require.NoError(t, err)
			got[e.Pair] = e.Dist
		}

		assert.InDelta(t, 7.0, got[core.MakePair(2, 5)], 1e-12)
		_, stale := got[core.MakePair(3, 5)]
		assert.False(t, stale)
	})
}

func TestCacheForget(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	c.Record(core.MakePair(1, 2), 1.0)
	c.Record(core.MakePair(1, 3), 2.0)

	c.Forget([]core.Pair{core.MakePair(1, 2)})

	_, ok := c.Get(core.MakePair(1, 2))
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	n, err := c.FlushPending(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
