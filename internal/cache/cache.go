// Package cache provides an LRU block cache for archive reads.
//
// Remote archive backends pay a round trip per read. The block cache keeps
// recently fetched blocks in memory so that repeated header probes and
// restores of the same snapshot hit the backend once. Capacity is accounted
// against the session's resource controller when one is attached.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/landgo/resource"
)

// Key identifies one cached block.
type Key struct {
	// Path is the archive name the block belongs to.
	Path string
	// Offset is the block index within the archive.
	Offset uint64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok is false on a miss.
	Get(ctx context.Context, key Key) (b []byte, ok bool)

	// Set caches a block. The caller must treat b as immutable afterwards.
	Set(ctx context.Context, key Key, b []byte)

	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)

	// Close releases any resources.
	Close() error

	// Stats returns hit and miss counters.
	Stats() (hits, misses int64)
}

// LRU is a capacity-bounded BlockCache with least-recently-used eviction.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

var _ BlockCache = (*LRU)(nil)

type entry struct {
	key   Key
	value []byte
}

// NewLRU creates a cache holding up to capacity bytes. A non-nil controller
// additionally accounts cached bytes against the global memory budget.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached block.
func (c *LRU) Get(_ context.Context, key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)

		return ent.Value.(*entry).value, true
	}

	c.misses.Add(1)

	return nil, false
}

// Set caches a block. Blocks larger than the capacity are not cached, and a
// denied memory reservation drops the block rather than blocking the read
// path.
func (c *LRU) Set(_ context.Context, key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	itemSize := int64(len(b))

	if ent, ok := c.items[key]; ok {
		old := ent.Value.(*entry)
		oldSize := int64(len(old.value))

		if itemSize > oldSize && !c.tryReserve(itemSize-oldSize) {
			return
		}
		if itemSize < oldSize {
			c.release(oldSize - itemSize)
		}

		old.value = b
		c.size += itemSize - oldSize
		c.evictList.MoveToFront(ent)
		c.evictOverflow()

		return
	}

	if itemSize > c.capacity {
		return
	}

	// Evict locally first so released bytes are available for reservation.
	for c.size+itemSize > c.capacity {
		tail := c.evictList.Back()
		if tail == nil {
			break
		}
		c.removeElement(tail)
	}

	if !c.tryReserve(itemSize) {
		return
	}

	c.items[key] = c.evictList.PushFront(&entry{key: key, value: b})
	c.size += itemSize
}

// Invalidate removes entries matching the predicate.
func (c *LRU) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element

	for key, element := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, element)
		}
	}

	for _, e := range toRemove {
		c.removeElement(e)
	}
}

// Close releases all cached blocks.
func (c *LRU) Close() error {
	c.Invalidate(func(Key) bool { return true })

	return nil
}

// Stats returns hit and miss counters.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the current size of the cache in bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

func (c *LRU) evictOverflow() {
	for c.size > c.capacity {
		tail := c.evictList.Back()
		if tail == nil {
			break
		}
		c.removeElement(tail)
	}
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)

	ent := e.Value.(*entry)
	delete(c.items, ent.key)
	c.size -= int64(len(ent.value))
	c.release(int64(len(ent.value)))
}

func (c *LRU) tryReserve(bytes int64) bool {
	if c.rc == nil {
		return true
	}

	return c.rc.TryAcquireMemory(bytes)
}

func (c *LRU) release(bytes int64) {
	if c.rc == nil {
		return
	}

	c.rc.ReleaseMemory(bytes)
}
