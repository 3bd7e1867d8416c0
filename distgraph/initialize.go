package distgraph

import (
	"context"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
)

// InitOptions contains options for setting up the graph for a connection
// attempt between a start and an end minimum.
type InitOptions struct {
	// AdmitAll admits every known minimum. Expensive: admission cost is
	// quadratic in the number of admitted nodes.
	AdmitAll bool

	// AdmitRelevant admits only minima whose distances to both endpoints
	// are already cached and no larger than the start to end distance. A
	// pure filter over cached values that never computes new distances
	// during selection.
	AdmitRelevant bool

	// SkipWarm skips loading persisted distances into the cache. The
	// admission passes are skipped too because without the warm cache
	// the relevance filter has nothing to work with and a full admission
	// would recompute every distance.
	SkipWarm bool
}

// Initialize prepares the graph for connecting start to end. It warms the
// cache from the store, primes the start to end distance and admits both
// endpoints. By default no other minima are admitted; AdmitAll or
// AdmitRelevant widen the initial admission set.
func (g *Graph) Initialize(ctx context.Context, start, end model.Minimum, optFns ...func(o *InitOptions)) error {
	opts := InitOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if !opts.SkipWarm {
		if _, err := g.cache.Warm(ctx); err != nil {
			return err
		}
	}

	if _, err := g.cache.GetOrCompute(ctx, start, end); err != nil {
		return err
	}

	if err := g.Admit(ctx, start); err != nil {
		return err
	}

	if err := g.Admit(ctx, end); err != nil {
		return err
	}

	if opts.SkipWarm {
		return nil
	}

	switch {
	case opts.AdmitAll:
		return g.admitAll(ctx)
	case opts.AdmitRelevant:
		return g.admitRelevant(ctx, start, end)
	}

	return nil
}

func (g *Graph) admitAll(ctx context.Context) error {
	for m, err := range g.st.Minima(ctx) {
		if err != nil {
			return err
		}

		if !g.cg.Contains(m.ID) {
			continue
		}

		if err := g.Admit(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

func (g *Graph) admitRelevant(ctx context.Context, start, end model.Minimum) error {
	dse, ok := g.cache.Get(core.MakePair(start.ID, end.ID))
	if !ok {
		return nil
	}

	for m, err := range g.st.Minima(ctx) {
		if err != nil {
			return err
		}

		if m.ID == start.ID || m.ID == end.ID {
			continue
		}

		if !g.cg.Contains(m.ID) {
			continue
		}

		d1, ok := g.cache.Get(core.MakePair(m.ID, start.ID))
		if !ok || d1 > dse {
			continue
		}

		d2, ok := g.cache.Get(core.MakePair(m.ID, end.ID))
		if !ok || d2 > dse {
			continue
		}

		if err := g.Admit(ctx, m); err != nil {
			return err
		}
	}

	return nil
}
