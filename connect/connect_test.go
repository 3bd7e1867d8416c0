package connect_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/landgo"
	"github.com/hupe1980/landgo/connect"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/resource"
)

func newSession(t *testing.T) *landgo.Session {
	t.Helper()

	s, err := landgo.Memory().Cartesian().Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func addMinimum(t *testing.T, s *landgo.Session, energy float64, coords ...float64) model.Minimum {
	t.Helper()

	m, err := s.AddMinimum(context.Background(), energy, coords)
	require.NoError(t, err)

	return m
}

// saddleBetween builds the outcome for a direct connection of the attempted
// pair.
func saddleBetween(attempt connect.Attempt) connect.Outcome {
	return connect.Outcome{Segments: []connect.Segment{{
		Minima: []connect.Point{
			{ID: attempt.From.ID},
			{ID: attempt.To.ID},
		},
		Saddles: []connect.Point{
			{Energy: max(attempt.From.Energy, attempt.To.Energy) + 1},
		},
	}}}
}

func TestDriverDirectConnection(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -2, 3, 4)

	var attempts []core.Pair
	lc := connect.LocalConnectFunc(func(_ context.Context, attempt connect.Attempt) (connect.Outcome, error) {
		attempts = append(attempts, core.MakePair(attempt.From.ID, attempt.To.ID))

		return saddleBetween(attempt), nil
	})

	res, err := connect.New(s, start, end, lc).Run(ctx)
	require.NoError(t, err)

	assert.True(t, res.Connected)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 0, res.NewMinima)
	assert.Equal(t, 1, res.NewTransitionStates)
	assert.Equal(t, []core.Pair{core.MakePair(start.ID, end.ID)}, attempts)
	assert.True(t, s.Connected(start.ID, end.ID))
}

func TestDriverChainThroughDiscovery(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -1, 10, 0)

	// The search finds an intermediate minimum with a saddle on each side.
	lc := connect.LocalConnectFunc(func(_ context.Context, attempt connect.Attempt) (connect.Outcome, error) {
		return connect.Outcome{Segments: []connect.Segment{{
			Minima: []connect.Point{
				{ID: attempt.From.ID},
				{Energy: -0.5, Coords: []float64{5, 0}},
				{ID: attempt.To.ID},
			},
			Saddles: []connect.Point{
				{Energy: 1.0, Coords: []float64{2.5, 0}},
				{Energy: 1.2, Coords: []float64{7.5, 0}},
			},
		}}}, nil
	})

	res, err := connect.New(s, start, end, lc).Run(ctx)
	require.NoError(t, err)

	assert.True(t, res.Connected)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, res.NewMinima)
	assert.Equal(t, 2, res.NewTransitionStates)

	stats := s.Stats()
	assert.Equal(t, 3, stats.Minima)
	assert.Equal(t, 1, stats.Components)
}

func TestDriverFailureExhaustsPair(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -1, 5, 0)

	lc := connect.LocalConnectFunc(func(context.Context, connect.Attempt) (connect.Outcome, error) {
		return connect.Outcome{}, nil
	})

	res, err := connect.New(s, start, end, lc).Run(ctx)
	require.NoError(t, err)

	assert.False(t, res.Connected)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 1, res.Attempts)
}

func TestDriverSearchErrorCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -1, 5, 0)

	lc := connect.LocalConnectFunc(func(context.Context, connect.Attempt) (connect.Outcome, error) {
		return connect.Outcome{}, errors.New("saddle search diverged")
	})

	res, err := connect.New(s, start, end, lc).Run(ctx)
	require.NoError(t, err)

	assert.True(t, res.Exhausted)
	assert.Equal(t, 1, res.Attempts)
}

func TestDriverRoutesAroundHardPairs(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	mid := addMinimum(t, s, -1, 1, 0)
	end := addMinimum(t, s, -1, 2, 0)
	require.NoError(t, s.Admit(ctx, mid))

	var attempts []core.Pair
	lc := connect.LocalConnectFunc(func(_ context.Context, attempt connect.Attempt) (connect.Outcome, error) {
		attempts = append(attempts, core.MakePair(attempt.From.ID, attempt.To.ID))

		return saddleBetween(attempt), nil
	})

	res, err := connect.New(s, start, end, lc).Run(ctx)
	require.NoError(t, err)

	// Two short hops through the middle beat one long jump.
	assert.True(t, res.Connected)
	assert.Equal(t, 2, res.Attempts)
	assert.ElementsMatch(t, []core.Pair{
		core.MakePair(start.ID, mid.ID),
		core.MakePair(mid.ID, end.ID),
	}, attempts)
}

func TestDriverMergesDeclaredDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -1, 5, 0)
	twin := addMinimum(t, s, -1, 5.001, 0)
	require.NoError(t, s.Admit(ctx, twin))

	lc := connect.LocalConnectFunc(func(context.Context, connect.Attempt) (connect.Outcome, error) {
		return connect.Outcome{Duplicates: []connect.Duplicate{{Keep: end.ID, Drop: twin.ID}}}, nil
	})

	res, err := connect.New(s, start, end, lc, func(o *connect.Options) {
		o.MaxAttempts = 1
	}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Merged)
	assert.False(t, s.Admitted(twin.ID))

	_, err = s.Minimum(ctx, twin.ID)
	assert.ErrorIs(t, err, landgo.ErrNotFound)
}

func TestDriverAttemptBudget(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -1, 50, 0)

	// Every attempt discovers an unrelated minimum and never joins the
	// attempted pair, so viable pairs keep appearing.
	n := 0
	lc := connect.LocalConnectFunc(func(context.Context, connect.Attempt) (connect.Outcome, error) {
		n++

		return connect.Outcome{Segments: []connect.Segment{{
			Minima: []connect.Point{{Energy: 0, Coords: []float64{100 + float64(n), 50}}},
		}}}, nil
	})

	res, err := connect.New(s, start, end, lc, func(o *connect.Options) {
		o.MaxAttempts = 3
		o.CheckInterval = 2
	}).Run(ctx)
	require.NoError(t, err)

	assert.False(t, res.Connected)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, res.NewMinima)
}

func TestDriverHonorsCancellation(t *testing.T) {
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -1, 5, 0)

	ctx, cancel := context.WithCancel(context.Background())

	lc := connect.LocalConnectFunc(func(ctx context.Context, _ connect.Attempt) (connect.Outcome, error) {
		cancel()

		return connect.Outcome{}, ctx.Err()
	})

	_, err := connect.New(s, start, end, lc).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriverWithController(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	start := addMinimum(t, s, -1, 0, 0)
	end := addMinimum(t, s, -1, 3, 4)

	rc := resource.NewController(resource.Config{MaxWorkers: 1, AttemptsPerSec: 1000})

	lc := connect.LocalConnectFunc(func(_ context.Context, attempt connect.Attempt) (connect.Outcome, error) {
		// The worker slot is held during the search.
		assert.False(t, rc.TryAcquireWorker())

		return saddleBetween(attempt), nil
	})

	res, err := connect.New(s, start, end, lc, func(o *connect.Options) {
		o.Controller = rc
	}).Run(ctx)
	require.NoError(t, err)

	assert.True(t, res.Connected)
	assert.True(t, rc.TryAcquireWorker())
	rc.ReleaseWorker()
}

func ExampleDriver() {
	ctx := context.Background()

	s := landgo.Memory().Cartesian().MustBuild(ctx)
	defer s.Close()

	start, _ := s.AddMinimum(ctx, -1.0, []float64{0, 0})
	end, _ := s.AddMinimum(ctx, -1.2, []float64{3, 4})

	lc := connect.LocalConnectFunc(func(_ context.Context, attempt connect.Attempt) (connect.Outcome, error) {
		return connect.Outcome{Segments: []connect.Segment{{
			Minima: []connect.Point{
				{ID: attempt.From.ID},
				{ID: attempt.To.ID},
			},
			Saddles: []connect.Point{{Energy: 0.5, Coords: []float64{1.5, 2}}},
		}}}, nil
	})

	res, err := connect.New(s, start, end, lc).Run(ctx)
	if err != nil {
		panic(err)
	}

	fmt.Printf("connected=%v attempts=%d saddles=%d\n", res.Connected, res.Attempts, res.NewTransitionStates)
	// Output: connected=true attempts=1 saddles=1
}
