// Package resource bounds the memory, concurrency and attempt rate of
// landscape exploration.
//
// A Controller is shared between the archive block cache, which accounts
// its bytes against the memory budget, and the connect driver, which
// reserves a worker slot per in-flight local search and paces attempts
// through the rate limiter. All methods are nil-safe: a nil Controller
// enforces nothing.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values disable the corresponding
// limit.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, usage is tracked but not limited.
	MemoryLimitBytes int64

	// MaxWorkers is the maximum number of concurrent connection attempts.
	// If 0, defaults to 1.
	MaxWorkers int64

	// AttemptsPerSec caps the rate of local search invocations.
	// If 0, unlimited.
	AttemptsPerSec float64
}

// Controller manages shared resources across a session and its drivers.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	workerSem *semaphore.Weighted

	attemptLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a controller for the given limits.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.AttemptsPerSec > 0 {
		c.attemptLimiter = rate.NewLimiter(rate.Limit(cfg.AttemptsPerSec), 1)
	}

	return c
}

// AcquireMemory reserves memory, blocking until the budget allows it or ctx
// is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)

	return nil
}

// TryAcquireMemory reserves memory without blocking. Returns false when the
// budget would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)

	return true
}

// ReleaseMemory returns reserved memory to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}

	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}

	return c.memUsed.Load()
}

// AcquireWorker reserves a worker slot, blocking while all slots are busy.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}

	return c.workerSem.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}

	return c.workerSem.TryAcquire(1)
}

// ReleaseWorker returns a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}

	c.workerSem.Release(1)
}

// AwaitAttempt blocks until the attempt rate limit permits another local
// search invocation.
func (c *Controller) AwaitAttempt(ctx context.Context) error {
	if c == nil || c.attemptLimiter == nil {
		return nil
	}

	return c.attemptLimiter.Wait(ctx)
}
