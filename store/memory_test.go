package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
)

func TestMemoryStoreMinima(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("PutAndGet", func(t *testing.T) {
		m := model.Minimum{ID: 1, Energy: -4.5, Coords: []float64{0, 1, 2}}
		require.NoError(t, s.PutMinimum(ctx, m))

		got, err := s.Minimum(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.Minimum(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("NextIDSkipsExisting", func(t *testing.T) {
		require.NoError(t, s.PutMinimum(ctx, model.Minimum{ID: 7, Energy: 0}))

		id, err := s.NextMinimumID(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.MinimumID(8), id)
	})

	t.Run("Iterate", func(t *testing.T) {
		seen := make(map[core.MinimumID]bool)
		for m, err := range s.Minima(ctx) {
			require.NoError(t, err)
			seen[m.ID] = true
		}

		assert.True(t, seen[1])
		assert.True(t, seen[7])
	})
}

func TestMemoryStoreDistances(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	entries := []model.DistanceEntry{
		{Pair: core.MakePair(1, 2), Dist: 1.5},
		{Pair: core.MakePair(2, 3), Dist: 2.5},
	}
	require.NoError(t, s.BulkWriteDistances(ctx, entries))

	t.Run("Scan", func(t *testing.T) {
		got := make(map[core.Pair]float64)
		for e, err := range s.Distances(ctx) {
			require.NoError(t, err)
			got[e.Pair] = e.Dist
		}

		assert.Len(t, got, 2)
		assert.InDelta(t, 1.5, got[core.MakePair(1, 2)], 1e-12)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.BulkWriteDistances(ctx, []model.DistanceEntry{
			{Pair: core.MakePair(1, 2), Dist: 9.0},
		}))

		got := make(map[core.Pair]float64)
		for e, err := range s.Distances(ctx) {
			require.NoError(t, err)
			got[e.Pair] = e.Dist
		}

		assert.InDelta(t, 9.0, got[core.MakePair(1, 2)], 1e-12)
	})

	t.Run("DeleteMinimumPurges", func(t *testing.T) {
		require.NoError(t, s.DeleteMinimum(ctx, 2))

		count := 0
		for _, err := range s.Distances(ctx) {
			require.NoError(t, err)
			count++
		}

		assert.Zero(t, count)
	})
}

func TestMemoryStoreTx(t *testing.T) {
	ctx := context.Background()

	countDistances := func(t *testing.T, s *MemoryStore) int {
		t.Helper()

		n := 0
		for _, err := range s.Distances(ctx) {
			require.NoError(t, err)
			n++
		}

		return n
	}

	t.Run("CommitApplies", func(t *testing.T) {
		s := NewMemoryStore()

		tx, err := s.Begin(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.WriteDistances([]model.DistanceEntry{
			{Pair: core.MakePair(1, 2), Dist: 0.5},
		}))

		assert.Zero(t, countDistances(t, s))

		require.NoError(t, tx.Commit())
		assert.Equal(t, 1, countDistances(t, s))
	})

	t.Run("RollbackDiscards", func(t *testing.T) {
		s := NewMemoryStore()

		tx, err := s.Begin(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.WriteDistances([]model.DistanceEntry{
			{Pair: core.MakePair(1, 2), Dist: 0.5},
		}))
		require.NoError(t, tx.Rollback())

		assert.Zero(t, countDistances(t, s))
	})

	t.Run("UseAfterCommit", func(t *testing.T) {
		s := NewMemoryStore()

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.ErrorIs(t, tx.WriteDistances(nil), ErrTxDone)
		assert.ErrorIs(t, tx.Commit(), ErrTxDone)
		assert.NoError(t, tx.Rollback())
	})
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Minimum(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, s.PutMinimum(ctx, model.Minimum{ID: 1}), ErrClosed)
}
