package distgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo/align"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/distcache"
	"github.com/hupe1980/landgo/graph"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/store"
)

// seedLine persists minima on a line and registers them with the
// connectivity graph. Returns the records keyed by id.
func seedLine(t *testing.T, st *store.MemoryStore, cg *graph.Graph, coords map[core.MinimumID]float64) map[core.MinimumID]model.Minimum {
	t.Helper()

	ctx := context.Background()
	minima := make(map[core.MinimumID]model.Minimum, len(coords))

	for id, x := range coords {
		m := onLine(id, x)
		minima[id] = m

		require.NoError(t, st.PutMinimum(ctx, m))
		cg.AddMinimum(id)
	}

	return minima
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultAdmitsOnlyEndpoints", func(t *testing.T) {
		g, cg, cache, st := newTestGraph(t)
		minima := seedLine(t, st, cg, map[core.MinimumID]float64{1: 0, 2: 10, 3: 5})

		require.NoError(t, g.Initialize(ctx, minima[1], minima[2]))

		assert.Equal(t, 2, g.Len())
		assert.False(t, g.Contains(3))

		d, ok := cache.Get(core.MakePair(1, 2))
		require.True(t, ok)
		assert.InDelta(t, 10.0, d, 1e-12)
	})

	t.Run("WarmLoadsPersistedDistances", func(t *testing.T) {
		g, cg, cache, st := newTestGraph(t)
		minima := seedLine(t, st, cg, map[core.MinimumID]float64{1: 0, 2: 10})

		require.NoError(t, st.BulkWriteDistances(ctx, []model.DistanceEntry{
			{Pair: core.MakePair(7, 8), Dist: 1.25},
		}))

		require.NoError(t, g.Initialize(ctx, minima[1], minima[2]))

		d, ok := cache.Get(core.MakePair(7, 8))
		require.True(t, ok)
		assert.InDelta(t, 1.25, d, 1e-12)
	})

	t.Run("AdmitAll", func(t *testing.T) {
		g, cg, _, st := newTestGraph(t)
		minima := seedLine(t, st, cg, map[core.MinimumID]float64{1: 0, 2: 10, 3: 5, 4: 7})

		require.NoError(t, g.Initialize(ctx, minima[1], minima[2], func(o *InitOptions) {
			o.AdmitAll = true
		}))

		assert.Equal(t, 4, g.Len())
	})

	t.Run("AdmitRelevant", func(t *testing.T) {
		g, cg, _, st := newTestGraph(t)
		minima := seedLine(t, st, cg, map[core.MinimumID]float64{
			1: 0,  // start
			2: 10, // end
			3: 3,  // relevant, both legs cached
			4: 20, // too far from start
			5: 4,  // would be relevant but distances unknown
		})

		require.NoError(t, st.BulkWriteDistances(ctx, []model.DistanceEntry{
			{Pair: core.MakePair(1, 3), Dist: 3},
			{Pair: core.MakePair(2, 3), Dist: 7},
			{Pair: core.MakePair(1, 4), Dist: 20},
			{Pair: core.MakePair(2, 4), Dist: 10},
		}))

		require.NoError(t, g.Initialize(ctx, minima[1], minima[2], func(o *InitOptions) {
			o.AdmitRelevant = true
		}))

		assert.True(t, g.Contains(3))
		assert.False(t, g.Contains(4))
		assert.False(t, g.Contains(5))
		assert.Equal(t, 3, g.Len())
	})

	t.Run("RelevanceFilterNeverComputes", func(t *testing.T) {
		computes := 0
		counting := func(a, b []float64) (align.Result, error) {
			computes++

			return align.Cartesian(a, b)
		}

		st := store.NewMemoryStore()
		cg := graph.New()
		cache := distcache.New(st, counting)
		g := New(st, cg, cache)

		minima := seedLine(t, st, cg, map[core.MinimumID]float64{1: 0, 2: 10, 3: 30, 4: 40})

		require.NoError(t, g.Initialize(ctx, minima[1], minima[2], func(o *InitOptions) {
			o.AdmitRelevant = true
		}))

		// Only the start to end priming distance is ever computed; the
		// filter rejects 3 and 4 without touching the align routine.
		assert.Equal(t, 1, computes)
		assert.Equal(t, 2, g.Len())
	})

	t.Run("SkipWarm", func(t *testing.T) {
		g, cg, cache, st := newTestGraph(t)
		minima := seedLine(t, st, cg, map[core.MinimumID]float64{1: 0, 2: 10, 3: 5})

		require.NoError(t, st.BulkWriteDistances(ctx, []model.DistanceEntry{
			{Pair: core.MakePair(7, 8), Dist: 1.25},
		}))

		require.NoError(t, g.Initialize(ctx, minima[1], minima[2], func(o *InitOptions) {
			o.SkipWarm = true
			o.AdmitAll = true
		}))

		// Nothing warmed and the widening pass is skipped with it.
		_, ok := cache.Get(core.MakePair(7, 8))
		assert.False(t, ok)
		assert.Equal(t, 2, g.Len())
	})
}
