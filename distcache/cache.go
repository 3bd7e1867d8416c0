// Package distcache provides an in-memory cache of pairwise distances with
// deferred bulk persistence.
//
// Every distance computed through the cache is remembered and queued for
// persistence. The queue is written to the store in batches so that a long
// exploration run does not pay a storage round trip per distance call.
package distcache

import (
	"context"
	"sync"

	"github.com/hupe1980/landgo/align"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/store"
)

// Options contains options for the distance cache.
type Options struct {
	// MaxPending is the number of queued entries that triggers an
	// automatic flush to the store.
	MaxPending int
}

// DefaultOptions contains the default options for the distance cache.
var DefaultOptions = Options{
	MaxPending: 300,
}

// Cache caches pairwise distances and batches their persistence.
type Cache struct {
	mu      sync.RWMutex
	store   store.Store
	alignFn align.Func
	entries map[core.Pair]float64
	pending []model.DistanceEntry
	opts    Options
}

// New creates a distance cache backed by the given store. Distances missing
// from the cache are computed with alignFn.
func New(st store.Store, alignFn align.Func, optFns ...func(o *Options)) *Cache {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Cache{
		store:   st,
		alignFn: alignFn,
		entries: make(map[core.Pair]float64),
		opts:    opts,
	}
}

// Get returns the cached distance for a pair, if present. Pair ordering is
// irrelevant because pairs are canonical.
func (c *Cache) Get(p core.Pair) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.entries[p]

	return d, ok
}

// GetOrCompute returns the distance between two minima, computing and
// recording it on a cache miss.
func (c *Cache) GetOrCompute(ctx context.Context, a, b model.Minimum) (float64, error) {
	p := core.MakePair(a.ID, b.ID)

	if d, ok := c.Get(p); ok {
		return d, nil
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res, err := c.alignFn(a.Coords, b.Coords)
	if err != nil {
		return 0, err
	}

	c.Record(p, res.Dist)

	return res.Dist, nil
}

// Record stores a distance in the cache and queues it for persistence.
func (c *Cache) Record(p core.Pair, dist float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[p] = dist
	c.pending = append(c.pending, model.DistanceEntry{Pair: p, Dist: dist})
}

// Warm loads all persisted distances into the cache. Loaded entries are not
// queued for persistence again. It returns the number of entries loaded.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	loaded := 0

	for e, err := range c.store.Distances(ctx) {
		if err != nil {
			return loaded, err
		}

		c.mu.Lock()
		c.entries[e.Pair] = e.Dist
		c.mu.Unlock()

		loaded++
	}

	return loaded, nil
}

// PendingCount returns the number of entries queued for persistence.
func (c *Cache) PendingCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.pending)
}

// Len returns the number of cached distances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// TakePending removes and returns the queued entries. Without force it
// returns nil while the queue is below the flush threshold. Callers that
// fail to persist the batch must hand it back via Restore.
func (c *Cache) TakePending(force bool) []model.DistanceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && len(c.pending) < c.opts.MaxPending {
		return nil
	}

	batch := c.pending
	c.pending = nil

	return batch
}

// Restore re-queues a batch previously obtained from TakePending.
func (c *Cache) Restore(batch []model.DistanceEntry) {
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(batch, c.pending...)
}

// FlushPending writes queued entries to the store. Without force it is a
// no-op while the queue is below the flush threshold. It returns the number
// of entries written.
func (c *Cache) FlushPending(ctx context.Context, force bool) (int, error) {
	batch := c.TakePending(force)
	if len(batch) == 0 {
		return 0, nil
	}

	if err := c.store.BulkWriteDistances(ctx, batch); err != nil {
		c.Restore(batch)

		return 0, err
	}

	return len(batch), nil
}

// Repoint rewrites cached entries so that distances recorded against drop
// are carried by keep instead. On a collision the entry already held by
// keep wins. Entries that would pair keep with itself are removed.
func (c *Cache) Repoint(keep, drop core.MinimumID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for p, d := range c.entries {
		if !p.Contains(drop) {
			continue
		}

		delete(c.entries, p)

		np := p.Replace(drop, keep)
		if np.Degenerate() {
			continue
		}

		if _, exists := c.entries[np]; !exists {
			c.entries[np] = d
		}
	}

	pending := c.pending[:0]

	for _, e := range c.pending {
		if !e.Pair.Contains(drop) {
			pending = append(pending, e)

			continue
		}

		np := e.Pair.Replace(drop, keep)
		if np.Degenerate() {
			continue
		}

		d, ok := c.entries[np]
		if !ok {
			continue
		}

		pending = append(pending, model.DistanceEntry{Pair: np, Dist: d})
	}

	c.pending = pending
}

// Forget drops pairs from the cache. Queued persistence is unaffected, so a
// forgotten distance is still written on the next flush.
func (c *Cache) Forget(pairs []core.Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range pairs {
		delete(c.entries, p)
	}
}
